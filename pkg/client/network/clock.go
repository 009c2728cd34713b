package network

import (
	"sort"
	"sync"
	"time"

	"github.com/cbodonnell/arena/pkg/messages"
)

const (
	recentRTTCount = 10
)

// ClockSync estimates the server clock from sync time round trips.
type ClockSync struct {
	lock       sync.Mutex
	offset     int64
	ping       float64
	recentRTTs []int64
	synced     bool
}

func NewClockSync() *ClockSync {
	return &ClockSync{}
}

// Observe records a sync time reply received at receivedAt.
func (c *ClockSync) Observe(reply messages.SyncTimePayload, receivedAt time.Time) {
	now := receivedAt.UnixMilli()
	rtt := now - reply.ClientTime
	if rtt < 0 {
		return
	}
	serverTime := reply.ServerTime + rtt/2

	c.lock.Lock()
	defer c.lock.Unlock()

	// keep track of the last few RTTs to calculate an average ping
	c.recentRTTs = append(c.recentRTTs, rtt)
	for len(c.recentRTTs) > recentRTTCount {
		c.recentRTTs = c.recentRTTs[1:]
	}

	sampleRTTs := removeOutlierRTTs(c.recentRTTs)
	ping := 0.0
	for _, p := range sampleRTTs {
		ping += float64(p)
	}
	c.ping = ping / float64(len(sampleRTTs))
	c.offset = serverTime - now
	c.synced = true
}

// ServerTime returns the estimated server clock at now in unix milliseconds.
func (c *ClockSync) ServerTime(now time.Time) (int64, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return now.UnixMilli() + c.offset, c.synced
}

// Ping returns the average round trip in milliseconds, ignoring outliers.
func (c *ClockSync) Ping() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ping
}

// removeOutlierRTTs removes outlier RTTs from the recent RTTs.
// An outlier RTT is defined as an RTT that is greater than 2 times the median RTT
// and is also greater than 20ms.
func removeOutlierRTTs(recentRTTs []int64) []int64 {
	result := make([]int64, 0, len(recentRTTs))
	median := medianRTT(recentRTTs)
	for _, rtt := range recentRTTs {
		if rtt > 2*median && rtt > 20 {
			continue
		}
		result = append(result, rtt)
	}
	return result
}

func medianRTT(recentRTTs []int64) int64 {
	if len(recentRTTs) == 0 {
		return 0
	}
	sorted := make([]int64, len(recentRTTs))
	copy(sorted, recentRTTs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	if len(sorted)%2 == 0 {
		return (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	return sorted[len(sorted)/2]
}
