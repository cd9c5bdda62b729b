package postgres

import (
	"context"
	"errors"

	"ride-hail/internal/domain/wallet"
	"ride-hail/internal/ports"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo persists wallet ledger entries using pgx and plain SQL.
type TransactionRepo struct{}

// NewTransactionRepo constructs a new TransactionRepo.
func NewTransactionRepo() ports.TransactionRepository {
	return &TransactionRepo{}
}

// Create inserts a ledger entry. A repeated IdempotencyKey is a no-op
// success (spec §4.2): the unique index absorbs the conflict and we report
// inserted=false instead of surfacing an error.
func (repo *TransactionRepo) Create(ctx context.Context, tx *wallet.Transaction) (bool, error) {
	dbTx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	var rideRef *string
	if tx.RideRef != nil {
		rideRef = tx.RideRef
	}

	var idempotencyKey *string
	if tx.IdempotencyKey != "" {
		idempotencyKey = &tx.IdempotencyKey
	}

	err = dbTx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (
			subject_id, type, method, amount, balance_after, description, ride_ref, idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id, created_at
	`,
		tx.SubjectID, string(tx.Type), string(tx.Method), tx.Amount, tx.BalanceAfter,
		tx.Description, rideRef, idempotencyKey,
	).Scan(&tx.ID, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// ListForSubject returns the most recent ledger entries for a subject.
func (repo *TransactionRepo) ListForSubject(ctx context.Context, subjectID string, limit int) ([]*wallet.Transaction, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := tx.Query(ctx, `
		SELECT id, created_at, subject_id, type, method, amount, balance_after, description, ride_ref, COALESCE(idempotency_key, '')
		FROM wallet_transactions
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*wallet.Transaction
	for rows.Next() {
		var t wallet.Transaction
		var typeText, methodText string
		if err := rows.Scan(
			&t.ID, &t.CreatedAt, &t.SubjectID, &typeText, &methodText,
			&t.Amount, &t.BalanceAfter, &t.Description, &t.RideRef, &t.IdempotencyKey,
		); err != nil {
			return nil, err
		}
		t.Type = wallet.Type(typeText)
		t.Method = wallet.Method(methodText)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
