package constants

import "time"

// These values are shared by the server and clients and must match exactly
// on both ends or prediction will diverge.
const (
	// TickRate is the number of simulation ticks per second
	TickRate = 20
	// FixedTimestep is the duration of one simulation sub-step
	FixedTimestep = time.Second / TickRate
	// MaxSteps caps the sub-steps taken by a single Stepper.Step call
	MaxSteps = 5

	// ViewWindowWidth is the width of the area reported around each player
	ViewWindowWidth float64 = 800.0
	// ViewWindowHeight is the height of the area reported around each player
	ViewWindowHeight float64 = 600.0

	// MaxPlayersPerRoom is the room capacity
	MaxPlayersPerRoom = 15

	// PlayerSpeed is the speed at which players move, in units per second
	PlayerSpeed float64 = 200.0
	// Player Height
	PlayerHeight float64 = 32.0
	// Player Width
	PlayerWidth float64 = 32.0

	// ArenaWidth is the width of the walled play area
	ArenaWidth float64 = 2048.0
	// ArenaHeight is the height of the walled play area
	ArenaHeight float64 = 1536.0
	// WallThickness is the thickness of the arena boundary
	WallThickness float64 = 16.0
	// CellSize is the collision grid cell size
	CellSize = 16
)
