package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// Repository defines persistence for clients.
type Repository interface {
	Create(ctx context.Context, client Client) (Client, error)
	Update(ctx context.Context, client Client) (Client, error)
	Get(ctx context.Context, id string) (Client, error)
	List(ctx context.Context) ([]Client, error)
	ListByUser(ctx context.Context, userID string) ([]Client, error)
	Count(ctx context.Context) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const clientColumns = `id::text, name, phone, email, dob, user_id::text, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var (
		c      Client
		email  *string
		userID *string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &email, &c.DOB, &userID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Client{}, err
	}
	if email != nil {
		c.Email = *email
	}
	if userID != nil {
		c.UserID = *userID
	}
	return c, nil
}

// Create inserts a client.
func (r *PGRepository) Create(ctx context.Context, client Client) (Client, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO clients (name, phone, email, dob)
VALUES ($1, $2, NULLIF($3, ''), $4)
RETURNING `+clientColumns, client.Name, client.Phone, client.Email, client.DOB)
	created, err := scanClient(row)
	if err != nil {
		return Client{}, fmt.Errorf("insert client: %w", err)
	}
	return created, nil
}

// Update overwrites the editable fields of a client.
func (r *PGRepository) Update(ctx context.Context, client Client) (Client, error) {
	row := r.pool.QueryRow(ctx, `UPDATE clients
SET name = $2, phone = $3, email = NULLIF($4, ''), dob = $5, updated_at = NOW()
WHERE id = $1::uuid
RETURNING `+clientColumns, client.ID, client.Name, client.Phone, client.Email, client.DOB)
	updated, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, fmt.Errorf("update client: %w", err)
	}
	return updated, nil
}

// Get loads a client by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, err
	}
	return client, nil
}

// List returns every client ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Client, error) {
	return r.query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name ASC, created_at ASC`)
}

// ListByUser returns the clients linked to a signed-in user.
func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Client, error) {
	return r.query(ctx, `SELECT `+clientColumns+` FROM clients WHERE user_id = $1::uuid ORDER BY name ASC`, userID)
}

// Count returns the number of clients.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]Client, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, client)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
