package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-insurance/insurance-manager/internal/platform/db"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, input NewUser) (*User, error)
	ConfirmEmail(ctx context.Context, userID, email string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT id::text, email, password_hash, created_at, email_confirmed_at FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts the user and its profile in one transaction. It never
// touches client rows; those are claimed by ConfirmEmail.
func (r *PGRepository) CreateUser(ctx context.Context, input NewUser) (*User, error) {
	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, email_confirmed_at)
VALUES ($1, $2, CASE WHEN $3 THEN NOW() END)
RETURNING id::text, email, password_hash, created_at, email_confirmed_at`,
			input.Email, input.PasswordHash, input.Confirmed).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.ConfirmedAt)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return shared.ErrEmailTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO profiles (id, role, full_name) VALUES ($1::uuid, $2, $3)`, user.ID, input.Role, input.FullName); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ConfirmEmail marks the address as confirmed and, for client accounts, claims
// the unlinked client rows registered under it. The email must still match
// the account so a token issued before an address change cannot be replayed.
func (r *PGRepository) ConfirmEmail(ctx context.Context, userID, email string) (*User, error) {
	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, NOW())
WHERE id = $1::uuid AND email = $2
RETURNING id::text, email, password_hash, created_at, email_confirmed_at`, userID, email).
			Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.ConfirmedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("confirm user: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE clients SET user_id = p.id, updated_at = NOW()
FROM profiles p
WHERE p.id = $1::uuid AND p.role = 'client'
  AND clients.user_id IS NULL AND lower(clients.email) = lower($2)`, user.ID, user.Email)
		if err != nil {
			return fmt.Errorf("link client: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile loads the profile row for a user.
func (r *PGRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var (
		profile Profile
		role    *string
	)
	err := r.pool.QueryRow(ctx, `SELECT id::text, role, full_name FROM profiles WHERE id = $1::uuid`, userID).
		Scan(&profile.ID, &role, &profile.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if role != nil {
		profile.Role = *role
	}
	return &profile, nil
}

var _ Repository = (*PGRepository)(nil)
