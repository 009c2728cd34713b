package prediction

import (
	"time"

	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/cbodonnell/arena/pkg/messages"
)

const (
	remoteBufferSize = 8
)

// RemoteBuffer smooths other players between snapshots by rendering them
// slightly in the past and interpolating between the two surrounding
// snapshots.
type RemoteBuffer struct {
	localID uint8
	delay   time.Duration
	samples []remoteSample
}

type remoteSample struct {
	tick       uint32
	receivedAt time.Time
	positions  map[uint8]kinematic.Vector
}

// NewRemoteBuffer creates a buffer for everyone but localID. A non-positive
// delay renders one tick behind.
func NewRemoteBuffer(localID uint8, delay time.Duration) *RemoteBuffer {
	if delay <= 0 {
		delay = constants.FixedTimestep
	}
	return &RemoteBuffer{
		localID: localID,
		delay:   delay,
	}
}

// Observe stores a snapshot. Snapshots older than the latest are ignored.
func (b *RemoteBuffer) Observe(snapshot *messages.SnapshotMessage, receivedAt time.Time) bool {
	if n := len(b.samples); n > 0 && snapshot.Tick <= b.samples[n-1].tick {
		return false
	}

	sample := remoteSample{
		tick:       snapshot.Tick,
		receivedAt: receivedAt,
		positions:  make(map[uint8]kinematic.Vector, len(snapshot.Players)),
	}
	for _, p := range snapshot.Players {
		if p.ID == b.localID {
			continue
		}
		sample.positions[p.ID] = kinematic.NewVector(float64(p.X), float64(p.Y))
	}

	b.samples = append(b.samples, sample)
	if len(b.samples) > remoteBufferSize {
		b.samples = append(b.samples[:0], b.samples[len(b.samples)-remoteBufferSize:]...)
	}
	return true
}

// IDs returns the remote players in the latest snapshot.
func (b *RemoteBuffer) IDs() []uint8 {
	if len(b.samples) == 0 {
		return nil
	}
	latest := b.samples[len(b.samples)-1]
	ids := make([]uint8, 0, len(latest.positions))
	for id := range latest.positions {
		ids = append(ids, id)
	}
	return ids
}

// Position returns where to draw player id at now. Players missing from the
// latest snapshot are not drawn.
func (b *RemoteBuffer) Position(id uint8, now time.Time) (kinematic.Vector, bool) {
	if len(b.samples) == 0 {
		return kinematic.Vector{}, false
	}
	if _, ok := b.samples[len(b.samples)-1].positions[id]; !ok {
		return kinematic.Vector{}, false
	}

	renderAt := now.Add(-b.delay)
	var prev, next *remoteSample
	for i := range b.samples {
		s := &b.samples[i]
		if _, ok := s.positions[id]; !ok {
			continue
		}
		if !s.receivedAt.After(renderAt) {
			prev = s
		} else if next == nil {
			next = s
		}
	}

	switch {
	case prev == nil:
		return next.positions[id], true
	case next == nil:
		return prev.positions[id], true
	}

	span := next.receivedAt.Sub(prev.receivedAt)
	if span <= 0 {
		return next.positions[id], true
	}
	ratio := float64(renderAt.Sub(prev.receivedAt)) / float64(span)
	return kinematic.Lerp(prev.positions[id], next.positions[id], ratio), true
}
