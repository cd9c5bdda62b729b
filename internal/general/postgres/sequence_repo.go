package postgres

import (
	"context"

	"ride-hail/internal/domain/sequence"
	"ride-hail/internal/ports"
)

// SequenceRepo backs the Ride Identity Service with a single seeded,
// row-locked counter (spec §4.5).
type SequenceRepo struct{}

// NewSequenceRepo constructs a new SequenceRepo.
func NewSequenceRepo() ports.SequenceRepository {
	return &SequenceRepo{}
}

// NextRaidID locks the counter row, advances and wraps it, and returns the
// formatted raidId. Callers must run this within a serializing transaction.
func (repo *SequenceRepo) NextRaidID(ctx context.Context) (string, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return "", err
	}

	var current int
	err = tx.QueryRow(ctx, `
		SELECT value FROM sequence_counters WHERE key = $1 FOR UPDATE
	`, sequence.CounterKey).Scan(&current)
	if err != nil {
		return "", err
	}

	counter := &sequence.Counter{Key: sequence.CounterKey, Value: current}
	next := counter.Next()

	_, err = tx.Exec(ctx, `
		UPDATE sequence_counters SET value = $1 WHERE key = $2
	`, next, sequence.CounterKey)
	if err != nil {
		return "", err
	}

	return sequence.Format(next), nil
}
