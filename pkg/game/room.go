package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/arena/pkg/auth"
	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/physics"
	"github.com/cbodonnell/arena/pkg/replay"
	"github.com/cbodonnell/arena/pkg/repositories/models"
	"github.com/cbodonnell/arena/pkg/workers"
	"github.com/google/uuid"
)

// Phase is the lifecycle phase of a room.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseActive
	// PhaseVoting is PhaseActive with voting in progress
	PhaseVoting
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseActive:
		return "active"
	case PhaseVoting:
		return "voting"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MatchRoom owns a physics world and the players in it. All state is
// guarded by lock; callbacks to the owner run after it is released.
type MatchRoom struct {
	id              string
	creatorID       string
	createdAt       time.Time
	world           physics.World
	stepper         *physics.Stepper
	maxPlayers      int
	now             func() time.Time
	onEmpty         func(*MatchRoom)
	onPlayerRemoved func(*MatchRoom, *Player)
	saveMatchChan   chan<- workers.SaveMatchRequest
	recordEvery     uint32
	logger          *log.Logger
	metrics         *RoomMetrics

	lock       sync.Mutex
	players    []*Player
	host       *Player
	phase      Phase
	voting     bool
	tick       uint32
	lastTick   time.Time
	timer      *time.Timer
	generation uint64
	deleted    bool
	after      []func()

	matchID      string
	startedAt    time.Time
	startTick    uint32
	participants []string
	recorder     *replay.Recorder
}

// NewMatchRoomOptions contains options for creating a new MatchRoom.
type NewMatchRoomOptions struct {
	ID        string
	CreatorID string
	World     physics.World
	// MaxPlayers defaults to constants.MaxPlayersPerRoom
	MaxPlayers int
	// Now defaults to time.Now
	Now func() time.Time
	// OnEmpty is called once the room has ended with nobody left in it
	OnEmpty func(*MatchRoom)
	// OnPlayerRemoved is called whenever a player leaves the roster
	OnPlayerRemoved func(*MatchRoom, *Player)
	SaveMatchChan   chan<- workers.SaveMatchRequest
	// RecordEvery is the replay recording interval in ticks; 0 disables recording
	RecordEvery uint32
	Logger      *log.Logger
}

func NewMatchRoom(opts NewMatchRoomOptions) *MatchRoom {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	maxPlayers := opts.MaxPlayers
	if maxPlayers <= 0 || maxPlayers > constants.MaxPlayersPerRoom {
		maxPlayers = constants.MaxPlayersPerRoom
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &MatchRoom{
		id:              id,
		creatorID:       opts.CreatorID,
		createdAt:       now(),
		world:           opts.World,
		stepper:         physics.NewStepper(physics.StepperOptions{FixedTimestep: constants.FixedTimestep, MaxSteps: constants.MaxSteps}),
		maxPlayers:      maxPlayers,
		now:             now,
		onEmpty:         opts.OnEmpty,
		onPlayerRemoved: opts.OnPlayerRemoved,
		saveMatchChan:   opts.SaveMatchChan,
		recordEvery:     opts.RecordEvery,
		logger:          logger.With("room", id),
		metrics:         &RoomMetrics{},
		phase:           PhaseLobby,
	}
}

// unlock releases the room and runs the callbacks queued while it was held.
func (r *MatchRoom) unlock() {
	after := r.after
	r.after = nil
	r.lock.Unlock()
	for _, f := range after {
		f()
	}
}

func (r *MatchRoom) ID() string {
	return r.id
}

func (r *MatchRoom) CreatorID() string {
	return r.creatorID
}

func (r *MatchRoom) Phase() Phase {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.phaseLocked()
}

func (r *MatchRoom) phaseLocked() Phase {
	if r.phase == PhaseActive && r.voting {
		return PhaseVoting
	}
	return r.phase
}

func (r *MatchRoom) Tick() uint32 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.tick
}

// Host returns the id of the host, or 0 when the room is empty.
func (r *MatchRoom) Host() uint8 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.hostIDLocked()
}

func (r *MatchRoom) hostIDLocked() uint8 {
	if r.host == nil {
		return 0
	}
	return r.host.ID
}

func (r *MatchRoom) IsHost(p *Player) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.host != nil && r.host == p
}

// Roster returns the players in join order.
func (r *MatchRoom) Roster() []messages.RosterEntry {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.rosterLocked()
}

func (r *MatchRoom) rosterLocked() []messages.RosterEntry {
	entries := make([]messages.RosterEntry, 0, len(r.players))
	for _, p := range r.players {
		entries = append(entries, p.rosterEntry())
	}
	return entries
}

func (r *MatchRoom) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.players)
}

func (r *MatchRoom) Metrics() RoomMetricsSnapshot {
	return r.metrics.Snapshot()
}

// RoomInfo is the public summary of a room.
type RoomInfo struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
	Phase     string    `json:"phase"`
	Tick      uint32    `json:"tick"`
	Players   int       `json:"players"`
	Capacity  int       `json:"capacity"`
	HostID    uint8     `json:"hostId"`
}

func (r *MatchRoom) Info() RoomInfo {
	r.lock.Lock()
	defer r.lock.Unlock()
	return RoomInfo{
		ID:        r.id,
		CreatorID: r.creatorID,
		CreatedAt: r.createdAt,
		Phase:     r.phaseLocked().String(),
		Tick:      r.tick,
		Players:   len(r.players),
		Capacity:  r.maxPlayers,
		HostID:    r.hostIDLocked(),
	}
}

// AddPlayer attaches identity to the room through sender. During play a
// disconnected player with the same identity is reattached; anyone else
// joining after the start is a spectator.
func (r *MatchRoom) AddPlayer(identity auth.Identity, sender Sender) (*Player, error) {
	r.lock.Lock()
	defer r.unlock()

	if r.phase == PhaseEnded || r.deleted {
		return nil, ErrInvalidPhase
	}

	for _, p := range r.players {
		if p.Identity.Key() != identity.Key() {
			continue
		}
		if p.connected {
			return nil, ErrAlreadyInRoom
		}
		p.connected = true
		p.sender = sender
		// sequence numbers restart with every connection
		p.lastProcessedSequence = 0
		p.processedAny = false
		r.logger.Info("Player %d (%s) reconnected", p.ID, identity.Key())
		r.announceJoinLocked(p)
		return p, nil
	}

	if len(r.players) >= r.maxPlayers {
		return nil, &CapacityError{RoomID: r.id, Capacity: r.maxPlayers}
	}

	id := r.smallestUnusedIDLocked()
	body, err := r.world.CreateBody(PlayerBodyDef(id))
	if err != nil {
		return nil, fmt.Errorf("failed to create body for player %d: %v", id, err)
	}

	p := newPlayer(id, identity, body, sender)
	p.alive = r.phase == PhaseLobby
	r.players = append(r.players, p)
	if r.host == nil {
		r.host = p
	}
	if r.phase == PhaseActive {
		r.participants = append(r.participants, identity.Key())
	}

	r.logger.Info("Player %d (%s) joined", p.ID, identity.Key())
	r.announceJoinLocked(p)
	return p, nil
}

func (r *MatchRoom) announceJoinLocked(p *Player) {
	joined := messages.JoinedPayload{
		RoomID:   r.id,
		PlayerID: p.ID,
		HostID:   r.hostIDLocked(),
		AudioID:  p.AudioID,
		Tick:     r.tick,
	}
	if err := p.send(messages.KindJoined, joined); err != nil {
		r.logger.Debug("Failed to send joined to player %d: %v", p.ID, err)
	}
	if err := p.send(messages.KindPhase, r.phasePayloadLocked()); err != nil {
		r.logger.Debug("Failed to send phase to player %d: %v", p.ID, err)
	}
	r.broadcastRosterLocked()
	r.broadcastVoiceLocked()
}

// smallestUnusedIDLocked returns the lowest id >= 1 not held by a player.
func (r *MatchRoom) smallestUnusedIDLocked() uint8 {
	used := make(map[uint8]bool, len(r.players))
	for _, p := range r.players {
		used[p.ID] = true
	}
	id := uint8(1)
	for used[id] {
		id++
	}
	return id
}

// RemovePlayer takes p out of the room. An emptied room ends and is deleted.
func (r *MatchRoom) RemovePlayer(p *Player) {
	r.lock.Lock()
	defer r.unlock()
	r.removeLocked(p)
}

func (r *MatchRoom) removeLocked(p *Player) {
	if !r.detachLocked(p) {
		r.logger.Debug("Ignoring removal of player %d: not in the room", p.ID)
		return
	}

	if len(r.players) == 0 {
		if r.phase != PhaseEnded {
			r.endLocked()
		} else {
			r.deleteLocked()
		}
		return
	}

	r.broadcastRosterLocked()
	r.broadcastVoiceLocked()
}

// detachLocked removes p from the roster and the world without ending the room.
func (r *MatchRoom) detachLocked(p *Player) bool {
	idx := -1
	for i, q := range r.players {
		if q == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.world.DestroyBody(p.Body)
	r.stepper.Forget(p.Body)
	p.inputs.ClearQueue()
	p.connected = false
	p.sender = nil

	if r.host == p {
		r.host = nil
		if len(r.players) > 0 {
			r.host = r.players[0]
		}
	}

	r.logger.Info("Player %d (%s) left", p.ID, p.Identity.Key())
	if r.onPlayerRemoved != nil {
		cb := r.onPlayerRemoved
		r.after = append(r.after, func() { cb(r, p) })
	}
	return true
}

// HandleDisconnect runs when p's connection is disposed. Outside of play the
// player is removed. During play the player is frozen in place until the
// match ends, and the match ends once nobody is connected.
func (r *MatchRoom) HandleDisconnect(p *Player) {
	r.lock.Lock()
	defer r.unlock()

	if r.phase != PhaseActive {
		r.removeLocked(p)
		return
	}

	found := false
	for _, q := range r.players {
		if q == p {
			found = true
			break
		}
	}
	if !found || !p.connected {
		return
	}

	p.connected = false
	p.sender = nil
	p.inputs.ClearQueue()
	r.world.SetLinearVelocity(p.Body, kinematic.Vector{})
	r.logger.Info("Player %d (%s) disconnected", p.ID, p.Identity.Key())

	for _, q := range r.players {
		if q.connected {
			r.broadcastRosterLocked()
			r.broadcastVoiceLocked()
			return
		}
	}
	r.endLocked()
}

// StartGame moves the room from the lobby into play and starts the tick loop.
func (r *MatchRoom) StartGame() error {
	r.lock.Lock()
	defer r.unlock()

	if r.phase != PhaseLobby {
		return ErrInvalidPhase
	}

	now := r.now()
	r.phase = PhaseActive
	r.voting = false
	r.matchID = uuid.New().String()
	r.startedAt = now
	r.startTick = r.tick
	r.participants = r.participants[:0]
	for _, p := range r.players {
		p.alive = true
		r.participants = append(r.participants, p.Identity.Key())
	}
	if r.recordEvery > 0 {
		r.recorder = replay.NewRecorder()
	}

	r.startLoopLocked(now)
	r.logger.Info("Match %s started with %d players", r.matchID, len(r.players))

	r.broadcastPhaseLocked()
	r.broadcastRosterLocked()
	r.broadcastVoiceLocked()
	return nil
}

// EndGame ends the match. Disconnected players are dropped from the roster.
func (r *MatchRoom) EndGame() error {
	r.lock.Lock()
	defer r.unlock()

	if r.phase != PhaseActive {
		return ErrInvalidPhase
	}
	r.endLocked()
	return nil
}

func (r *MatchRoom) endLocked() {
	wasActive := r.phase == PhaseActive
	r.phase = PhaseEnded
	r.voting = false
	r.stopLoopLocked()

	var gone []*Player
	for _, p := range r.players {
		if !p.connected {
			gone = append(gone, p)
		}
	}
	for _, p := range gone {
		r.detachLocked(p)
	}

	if wasActive {
		r.saveMatchLocked()
	}
	r.logger.Info("Room ended with %d players", len(r.players))

	if len(r.players) == 0 {
		r.deleteLocked()
		return
	}

	r.broadcastPhaseLocked()
	r.broadcastRosterLocked()
	r.broadcastVoiceLocked()
}

func (r *MatchRoom) saveMatchLocked() {
	if r.saveMatchChan == nil {
		return
	}

	req := workers.SaveMatchRequest{
		Match: &models.Match{
			ID:        r.matchID,
			RoomID:    r.id,
			CreatorID: r.creatorID,
			StartedAt: r.startedAt,
			EndedAt:   r.now(),
			Ticks:     r.tick - r.startTick,
			PlayerIDs: append([]string(nil), r.participants...),
		},
		Recorder: r.recorder,
	}
	select {
	case r.saveMatchChan <- req:
	default:
		r.logger.Warn("Save queue is full, dropping match %s", r.matchID)
	}
}

func (r *MatchRoom) deleteLocked() {
	if r.deleted {
		return
	}
	r.deleted = true
	r.stopLoopLocked()
	r.logger.Debug("Room is empty, deleting")
	if r.onEmpty != nil {
		cb := r.onEmpty
		r.after = append(r.after, func() { cb(r) })
	}
}

func (r *MatchRoom) StartVoting() error {
	r.lock.Lock()
	defer r.unlock()

	if r.phase != PhaseActive || r.voting {
		return ErrInvalidPhase
	}
	r.voting = true
	r.broadcastPhaseLocked()
	r.broadcastVoiceLocked()
	return nil
}

func (r *MatchRoom) EndVoting() error {
	r.lock.Lock()
	defer r.unlock()

	if r.phase != PhaseActive || !r.voting {
		return ErrInvalidPhase
	}
	r.voting = false
	r.broadcastPhaseLocked()
	r.broadcastVoiceLocked()
	return nil
}

// KillPlayer marks a player as dead. The player keeps moving as a spectator.
func (r *MatchRoom) KillPlayer(id uint8) error {
	r.lock.Lock()
	defer r.unlock()

	if r.phase != PhaseActive {
		return ErrInvalidPhase
	}

	var target *Player
	for _, p := range r.players {
		if p.ID == id {
			target = p
			break
		}
	}
	if target == nil {
		return &NotFoundError{Kind: "player", ID: fmt.Sprint(id)}
	}
	if !target.alive {
		return nil
	}

	target.alive = false
	r.logger.Info("Player %d was eliminated", id)
	for _, p := range r.players {
		if err := p.send(messages.KindEliminate, messages.EliminatePayload{PlayerID: id}); err != nil {
			r.logger.Debug("Failed to send elimination to player %d: %v", p.ID, err)
		}
	}
	r.broadcastRosterLocked()
	r.broadcastVoiceLocked()
	return nil
}

// EnqueueInput queues an input for the next tick. Inputs outside of play
// are discarded.
func (r *MatchRoom) EnqueueInput(p *Player, input *messages.InputMessage) error {
	r.lock.Lock()
	active := r.phase == PhaseActive && p.connected
	r.lock.Unlock()

	if !active {
		r.metrics.inputsSkipped.Add(1)
		return nil
	}
	if err := p.inputs.Enqueue(input); err != nil {
		r.metrics.inputsDropped.Add(1)
		return fmt.Errorf("failed to queue input %d: %v", input.Sequence, err)
	}
	return nil
}

func (r *MatchRoom) phasePayloadLocked() messages.PhasePayload {
	return messages.PhasePayload{
		Phase:  r.phase.String(),
		Voting: r.voting,
		Tick:   r.tick,
	}
}

func (r *MatchRoom) broadcastPhaseLocked() {
	payload := r.phasePayloadLocked()
	for _, p := range r.players {
		if err := p.send(messages.KindPhase, payload); err != nil {
			r.logger.Debug("Failed to send phase to player %d: %v", p.ID, err)
		}
	}
}

func (r *MatchRoom) broadcastRosterLocked() {
	payload := messages.RosterPayload{
		HostID:  r.hostIDLocked(),
		Players: r.rosterLocked(),
	}
	for _, p := range r.players {
		if err := p.send(messages.KindRoster, payload); err != nil {
			r.logger.Debug("Failed to send roster to player %d: %v", p.ID, err)
		}
	}
}
