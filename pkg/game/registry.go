package game

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cbodonnell/arena/pkg/auth"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/workers"
	"github.com/google/uuid"
)

// Registry maps room ids to rooms and tracks which room each identity is in.
type Registry struct {
	worldFactory  WorldFactory
	saveMatchChan chan<- workers.SaveMatchRequest
	recordEvery   uint32
	maxPlayers    int
	logger        *log.Logger

	lock       sync.RWMutex
	rooms      map[string]*MatchRoom
	membership map[string]string
}

type RegistryOptions struct {
	// WorldFactory defaults to NewArenaWorld
	WorldFactory  WorldFactory
	SaveMatchChan chan<- workers.SaveMatchRequest
	RecordEvery   uint32
	MaxPlayers    int
	Logger        *log.Logger
}

func NewRegistry(opts RegistryOptions) *Registry {
	factory := opts.WorldFactory
	if factory == nil {
		factory = NewArenaWorld
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		worldFactory:  factory,
		saveMatchChan: opts.SaveMatchChan,
		recordEvery:   opts.RecordEvery,
		maxPlayers:    opts.MaxPlayers,
		logger:        logger,
		rooms:         make(map[string]*MatchRoom),
		membership:    make(map[string]string),
	}
}

// Create registers a new room in the lobby phase. Nothing is registered if
// the room's world cannot be created.
func (g *Registry) Create(creatorID string) (*MatchRoom, error) {
	world, err := g.worldFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create room world: %v", err)
	}

	room := NewMatchRoom(NewMatchRoomOptions{
		ID:              uuid.New().String(),
		CreatorID:       creatorID,
		World:           world,
		MaxPlayers:      g.maxPlayers,
		OnEmpty:         g.onEmpty,
		OnPlayerRemoved: g.onPlayerRemoved,
		SaveMatchChan:   g.saveMatchChan,
		RecordEvery:     g.recordEvery,
		Logger:          g.logger,
	})

	g.lock.Lock()
	g.rooms[room.ID()] = room
	g.lock.Unlock()

	g.logger.Info("Room %s created by %s", room.ID(), creatorID)
	return room, nil
}

func (g *Registry) Get(roomID string) (*MatchRoom, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	room, ok := g.rooms[roomID]
	if !ok {
		return nil, &NotFoundError{Kind: "room", ID: roomID}
	}
	return room, nil
}

// Delete unregisters a room and forgets its members.
func (g *Registry) Delete(roomID string) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if _, ok := g.rooms[roomID]; !ok {
		return
	}
	delete(g.rooms, roomID)
	for key, id := range g.membership {
		if id == roomID {
			delete(g.membership, key)
		}
	}
	g.logger.Info("Room %s deleted", roomID)
}

// List returns every room ordered by creation time.
func (g *Registry) List() []*MatchRoom {
	g.lock.RLock()
	rooms := make([]*MatchRoom, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.lock.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].createdAt.Equal(rooms[j].createdAt) {
			return rooms[i].id < rooms[j].id
		}
		return rooms[i].createdAt.Before(rooms[j].createdAt)
	})
	return rooms
}

func (g *Registry) Len() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return len(g.rooms)
}

// Join adds identity to the room. An identity can be in one room at a time.
func (g *Registry) Join(roomID string, identity auth.Identity, sender Sender) (*MatchRoom, *Player, error) {
	room, err := g.Get(roomID)
	if err != nil {
		return nil, nil, err
	}

	key := identity.Key()
	g.lock.Lock()
	if current, ok := g.membership[key]; ok && current != roomID {
		g.lock.Unlock()
		return nil, nil, ErrAlreadyInRoom
	}
	g.membership[key] = roomID
	g.lock.Unlock()

	player, err := room.AddPlayer(identity, sender)
	if err != nil {
		g.lock.Lock()
		if g.membership[key] == roomID && room.playerByIdentity(key) == nil {
			delete(g.membership, key)
		}
		g.lock.Unlock()
		return nil, nil, err
	}
	return room, player, nil
}

// RoomOf returns the id of the room identity is in.
func (g *Registry) RoomOf(identity auth.Identity) (string, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	id, ok := g.membership[identity.Key()]
	return id, ok
}

func (g *Registry) onPlayerRemoved(room *MatchRoom, p *Player) {
	key := p.Identity.Key()
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.membership[key] == room.ID() {
		delete(g.membership, key)
	}
}

func (g *Registry) onEmpty(room *MatchRoom) {
	g.Delete(room.ID())
}

// Leave removes identity from whatever room it is in.
func (g *Registry) Leave(identity auth.Identity) error {
	roomID, ok := g.RoomOf(identity)
	if !ok {
		return &NotFoundError{Kind: "member", ID: identity.Key()}
	}
	room, err := g.Get(roomID)
	if err != nil {
		return err
	}

	p := room.playerByIdentity(identity.Key())
	if p == nil {
		g.lock.Lock()
		delete(g.membership, identity.Key())
		g.lock.Unlock()
		return nil
	}
	room.RemovePlayer(p)
	return nil
}

func (r *MatchRoom) playerByIdentity(key string) *Player {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, p := range r.players {
		if p.Identity.Key() == key {
			return p
		}
	}
	return nil
}
