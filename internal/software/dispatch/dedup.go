package dispatch

import (
	"sync"
	"time"
)

// dedupWindow bounds how long a raidId suppresses a repeat fan-out
// (spec §4.4's DedupEntry: "now - lastEmittedAt < 5s").
const dedupWindow = 5 * time.Second

// dedupRegistry is the in-memory DedupEntry map (spec §6's state S).
type dedupRegistry struct {
	mu      sync.Mutex
	emitted map[string]time.Time
}

func newDedupRegistry() *dedupRegistry {
	return &dedupRegistry{emitted: make(map[string]time.Time)}
}

// shouldFanOut reports whether raidId's offer should be (re-)broadcast now,
// recording the emission timestamp when it does. On a false return fan-out
// is skipped and BookRide reports OfferedTo 0; its result carries no field
// that marks the booking as a repeat.
func (d *dedupRegistry) shouldFanOut(raidID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.emitted[raidID]; ok && now.Sub(last) < dedupWindow {
		return false
	}
	d.emitted[raidID] = now
	return true
}
