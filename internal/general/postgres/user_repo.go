package postgres

import (
	"context"
	"encoding/json"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/ports"
)

// UserRepo persists users using pgx and plain SQL.
type UserRepo struct{}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

// CreateUser inserts a new user row.
func (repo *UserRepo) CreateUser(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if u.ID == "" {
		if err := tx.QueryRow(ctx, `
			INSERT INTO users (internal_id, email, role, status, password_hash, attrs, wallet)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
			RETURNING id, internal_id, created_at, updated_at
		`,
			u.Email,
			u.Role.String(),
			u.Status.String(),
			u.PasswordHash,
			u.Attrs,
			u.Wallet,
		).Scan(&u.ID, &u.InternalID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		return nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, internal_id, email, role, status, password_hash, attrs, wallet)
		VALUES ($1, gen_random_uuid(), $2, $3, $4, $5, $6, $7)
		RETURNING internal_id, created_at, updated_at
	`,
		u.ID,
		u.Email,
		u.Role.String(),
		u.Status.String(),
		u.PasswordHash,
		u.Attrs,
		u.Wallet,
	).Scan(&u.InternalID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return err
	}

	return nil
}

const selectUserColumns = `
	SELECT
		id, internal_id, created_at, updated_at,
		email, role, status, password_hash, attrs, wallet
	FROM users
`

func scanUserRow(row rowScanner) (*user.User, error) {
	var out user.User
	var roleText, statusText string
	var attrsRaw []byte

	err := row.Scan(
		&out.ID, &out.InternalID, &out.CreatedAt, &out.UpdatedAt,
		&out.Email, &roleText, &statusText, &out.PasswordHash, &attrsRaw, &out.Wallet,
	)
	if err != nil {
		return nil, err
	}

	out.Role = user.Role(roleText)
	out.Status = user.Status(statusText)

	if len(attrsRaw) > 0 {
		var attrs user.Attrs
		if err := json.Unmarshal(attrsRaw, &attrs); err != nil {
			return nil, err
		}
		out.Attrs = attrs
	} else {
		out.Attrs = make(user.Attrs)
	}

	return &out, nil
}

// GetByID returns one user by id.
func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectUserColumns+` WHERE id = $1`, id)
	return scanUserRow(row)
}

// GetByInternalID returns one user by its opaque internal id.
func (repo *UserRepo) GetByInternalID(ctx context.Context, internalID string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectUserColumns+` WHERE internal_id = $1`, internalID)
	return scanUserRow(row)
}

// UpdateWallet persists a new wallet balance (caller applied the domain mutation already).
func (repo *UserRepo) UpdateWallet(ctx context.Context, userID string, newBalance int) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET wallet = $1, updated_at = now()
		WHERE id = $2
	`, newBalance, userID)
	return err
}
