package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// Repository defines persistence for notifications.
type Repository interface {
	ListUnread(ctx context.Context, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Exists(ctx context.Context, policyID, kind string, dueDate time.Time) (bool, error)
	InsertBatch(ctx context.Context, items []Notification) ([]Notification, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListUnread returns the newest unread notifications.
func (r *PGRepository) ListUnread(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, created_at, type, message, policy_id::text, client_id::text, due_date, is_read
FROM notifications WHERE is_read = FALSE ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var (
			n        Notification
			policyID *string
			clientID *string
		)
		if err := rows.Scan(&n.ID, &n.CreatedAt, &n.Type, &n.Message, &policyID, &clientID, &n.DueDate, &n.IsRead); err != nil {
			return nil, err
		}
		if policyID != nil {
			n.PolicyID = *policyID
		}
		if clientID != nil {
			n.ClientID = *clientID
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notification as read.
func (r *PGRepository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification as read.
func (r *PGRepository) MarkAllRead(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE is_read = FALSE`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Exists reports whether a notification with the same key was written.
func (r *PGRepository) Exists(ctx context.Context, policyID, kind string, dueDate time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM notifications WHERE policy_id = $1::uuid AND type = $2 AND due_date = $3)`,
		policyID, kind, dueDate).Scan(&exists)
	return exists, err
}

// InsertBatch writes all items in one round trip. Rows that collide with
// the (policy_id, type, due_date) key are skipped; the inserted rows are
// returned.
func (r *PGRepository) InsertBatch(ctx context.Context, items []Notification) ([]Notification, error) {
	if len(items) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO notifications (type, message, policy_id, client_id, due_date)
VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5)
ON CONFLICT (policy_id, type, due_date) DO NOTHING
RETURNING id::text, created_at`, item.Type, item.Message, item.PolicyID, item.ClientID, item.DueDate)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := make([]Notification, 0, len(items))
	for _, item := range items {
		err := results.QueryRow().Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return inserted, fmt.Errorf("insert notification: %w", err)
		}
		inserted = append(inserted, item)
	}
	return inserted, nil
}

var _ Repository = (*PGRepository)(nil)
