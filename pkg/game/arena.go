package game

import (
	"fmt"

	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/cbodonnell/arena/pkg/physics"
)

const (
	spawnOrigin  = 128.0
	spawnSpacing = 160.0
	spawnColumns = 5
	spawnSlots   = constants.MaxPlayersPerRoom
)

// WorldFactory creates the physics world of a new room.
type WorldFactory func() (physics.World, error)

type rect struct {
	x, y, w, h float64
}

// Obstacles are aligned to the collision grid.
var arenaObstacles = []rect{
	{960, 704, 128, 128},
	{1408, 320, 64, 256},
	{384, 1024, 256, 64},
	{1600, 1088, 160, 160},
}

// NewArenaWorld creates the walled arena every room plays in.
func NewArenaWorld() (physics.World, error) {
	w, err := physics.NewResolvWorld(physics.WorldOptions{
		Width:      constants.ArenaWidth,
		Height:     constants.ArenaHeight,
		CellWidth:  constants.CellSize,
		CellHeight: constants.CellSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create arena world: %v", err)
	}

	width, height, wall := constants.ArenaWidth, constants.ArenaHeight, constants.WallThickness
	statics := []rect{
		{0, 0, width, wall},
		{0, height - wall, width, wall},
		{0, wall, wall, height - 2*wall},
		{width - wall, wall, wall, height - 2*wall},
	}
	statics = append(statics, arenaObstacles...)

	for _, s := range statics {
		_, err := w.CreateBody(physics.BodyDef{
			Kind:     physics.BodyStatic,
			Position: kinematic.NewVector(s.x, s.y),
			Size:     kinematic.NewVector(s.w, s.h),
			Group:    "level",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add arena wall: %v", err)
		}
	}

	return w, nil
}

// SpawnPoint returns the starting position of the player with the given id.
func SpawnPoint(id uint8) kinematic.Vector {
	slot := (int(id) + spawnSlots - 1) % spawnSlots
	return kinematic.NewVector(
		spawnOrigin+float64(slot%spawnColumns)*spawnSpacing,
		spawnOrigin+float64(slot/spawnColumns)*spawnSpacing,
	)
}

// PlayerBodyDef describes the body of player id at its spawn point. Clients
// build their local body from it so prediction starts where the server does.
func PlayerBodyDef(id uint8) physics.BodyDef {
	return physics.BodyDef{
		Kind:     physics.BodyDynamic,
		Position: SpawnPoint(id),
		Size:     kinematic.NewVector(constants.PlayerWidth, constants.PlayerHeight),
		Group:    "player",
	}
}
