package network

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

const (
	// ClosePolicyViolation is sent when a peer exceeds the message size ceiling
	ClosePolicyViolation = websocket.ClosePolicyViolation
	// CloseNormal is sent on an orderly dispose
	CloseNormal = websocket.CloseNormalClosure
)

// ErrSendBufferFull is returned when the outbound buffer cannot take another frame.
var ErrSendBufferFull = errors.New("send buffer full")

// NotConnectedError is returned by sends on a channel that is not open.
type NotConnectedError struct {
	ChannelID string
	State     State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("channel %s is not connected (%s)", e.ChannelID, e.State)
}

func IsNotConnected(err error) bool {
	var nc *NotConnectedError
	return errors.As(err, &nc)
}

// PolicyViolationError reports an inbound frame over the size ceiling.
type PolicyViolationError struct {
	Size  int
	Limit int
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("message of at least %d bytes exceeds limit of %d", e.Size, e.Limit)
}

func IsPolicyViolation(err error) bool {
	var pv *PolicyViolationError
	return errors.As(err, &pv)
}
