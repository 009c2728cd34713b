package game

import (
	"errors"
	"fmt"

	"github.com/cbodonnell/arena/pkg/messages"
)

var (
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrNotHost       = errors.New("only the host can do that")
	ErrInvalidPhase  = errors.New("not allowed in the current phase")
)

// CapacityError is returned when joining a full room.
type CapacityError struct {
	RoomID   string
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("room %s is full (%d players)", e.RoomID, e.Capacity)
}

func IsCapacityError(err error) bool {
	var e *CapacityError
	return errors.As(err, &e)
}

// NotFoundError is returned for an unknown room or player.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// StatusFor maps an error to the status code carried by a control reply.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return messages.StatusOK
	case IsCapacityError(err):
		return messages.StatusUnavailable
	case IsNotFound(err):
		return messages.StatusNotFound
	case errors.Is(err, ErrNotHost):
		return messages.StatusForbidden
	case errors.Is(err, ErrInvalidPhase), errors.Is(err, ErrAlreadyInRoom):
		return messages.StatusConflict
	default:
		return messages.StatusBadRequest
	}
}
