package game

import (
	"sync/atomic"
	"time"
)

// RoomMetrics counts what a room's tick loop does.
type RoomMetrics struct {
	ticks          atomic.Uint64
	steps          atomic.Uint64
	inputsApplied  atomic.Uint64
	inputsSkipped  atomic.Uint64
	inputsDropped  atomic.Uint64
	snapshotsSent  atomic.Uint64
	sendsDropped   atomic.Uint64
	totalTickNanos atomic.Int64
	lastTickNanos  atomic.Int64
}

type RoomMetricsSnapshot struct {
	Ticks         uint64  `json:"ticks"`
	Steps         uint64  `json:"steps"`
	InputsApplied uint64  `json:"inputsApplied"`
	InputsSkipped uint64  `json:"inputsSkipped"`
	InputsDropped uint64  `json:"inputsDropped"`
	SnapshotsSent uint64  `json:"snapshotsSent"`
	SendsDropped  uint64  `json:"sendsDropped"`
	LastTickMs    float64 `json:"lastTickMs"`
	AvgTickMs     float64 `json:"avgTickMs"`
}

func (m *RoomMetrics) addTick(steps int, d time.Duration) {
	m.ticks.Add(1)
	m.steps.Add(uint64(steps))
	m.totalTickNanos.Add(int64(d))
	m.lastTickNanos.Store(int64(d))
}

// Snapshot returns a read-only copy.
func (m *RoomMetrics) Snapshot() RoomMetricsSnapshot {
	ticks := m.ticks.Load()
	var avg float64
	if ticks > 0 {
		avg = float64(m.totalTickNanos.Load()) / float64(ticks) / 1e6
	}
	return RoomMetricsSnapshot{
		Ticks:         ticks,
		Steps:         m.steps.Load(),
		InputsApplied: m.inputsApplied.Load(),
		InputsSkipped: m.inputsSkipped.Load(),
		InputsDropped: m.inputsDropped.Load(),
		SnapshotsSent: m.snapshotsSent.Load(),
		SendsDropped:  m.sendsDropped.Load(),
		LastTickMs:    float64(m.lastTickNanos.Load()) / 1e6,
		AvgTickMs:     avg,
	}
}
