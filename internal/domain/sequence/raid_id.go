// Package sequence implements the Ride Identity Service (spec §4.5): a
// single seeded counter row that produces human-readable ride ids.
package sequence

import "fmt"

const (
	// RaidIDMin and RaidIDMax bound the six-digit numeric suffix. The
	// sequence wraps back to RaidIDMin once it would exceed RaidIDMax.
	RaidIDMin = 100000
	RaidIDMax = 999999

	// CounterKey is the single seeded row id the counter lives at.
	CounterKey = "raidId"
)

// Counter mirrors the single seeded `sequence_counters` row.
type Counter struct {
	Key   string
	Value int
}

// NewCounter seeds a counter at RaidIDMin - 1 so the first Next() call
// yields RaidIDMin.
func NewCounter() *Counter {
	return &Counter{Key: CounterKey, Value: RaidIDMin - 1}
}

// Next advances the counter and returns the next raw numeric value,
// wrapping 999999 -> 100000 (spec §4.5).
func (c *Counter) Next() int {
	c.Value++
	if c.Value > RaidIDMax {
		c.Value = RaidIDMin
	}
	return c.Value
}

// Format renders a numeric sequence value as a RIDnnnnnn raidId.
func Format(value int) string {
	return fmt.Sprintf("RID%06d", value)
}
