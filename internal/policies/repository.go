package policies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-insurance/insurance-manager/internal/platform/db"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// Repository defines persistence for policies.
type Repository interface {
	Create(ctx context.Context, policy Policy) (Policy, error)
	Update(ctx context.Context, policy Policy) (Policy, error)
	Get(ctx context.Context, id string) (Policy, error)
	ListByClient(ctx context.Context, clientID string) ([]Policy, error)
	ListForUser(ctx context.Context, userID string) ([]Policy, error)
	CountActive(ctx context.Context) (int, error)
	CountActiveDueBetween(ctx context.Context, from, to time.Time) (int, error)
	ActiveDueBetween(ctx context.Context, from, to time.Time) ([]Policy, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const policyColumns = `p.id::text, p.client_id::text, p.company, p.plan_name, p.policy_no, p.premium::float8,
p.due_date, p.status, p.commission_percentage::float8, p.created_at, p.updated_at,
COALESCE(c.name, ''), COALESCE(c.phone, ''), COALESCE(c.email, '')`

const policyFrom = ` FROM policies p LEFT JOIN clients c ON c.id = p.client_id`

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.ClientID, &p.Company, &p.PlanName, &p.PolicyNo, &p.Premium,
		&p.DueDate, &p.Status, &p.CommissionPercentage, &p.CreatedAt, &p.UpdatedAt,
		&p.ClientName, &p.ClientPhone, &p.ClientEmail)
	return p, err
}

// Create inserts a policy and returns it with client details joined.
func (r *PGRepository) Create(ctx context.Context, policy Policy) (Policy, error) {
	var id string
	err := r.pool.QueryRow(ctx, `INSERT INTO policies
(client_id, company, plan_name, policy_no, premium, due_date, status, commission_percentage)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text`,
		policy.ClientID, policy.Company, policy.PlanName, policy.PolicyNo, policy.Premium,
		policy.DueDate, policy.Status, policy.CommissionPercentage).Scan(&id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Policy{}, shared.ErrNotFound
		}
		return Policy{}, fmt.Errorf("insert policy: %w", err)
	}
	return r.Get(ctx, id)
}

// Update overwrites the editable fields of a policy.
func (r *PGRepository) Update(ctx context.Context, policy Policy) (Policy, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE policies
SET company = $2, plan_name = $3, policy_no = $4, premium = $5, due_date = $6, status = $7,
    commission_percentage = $8, updated_at = NOW()
WHERE id = $1::uuid`,
		policy.ID, policy.Company, policy.PlanName, policy.PolicyNo, policy.Premium,
		policy.DueDate, policy.Status, policy.CommissionPercentage)
	if err != nil {
		return Policy{}, fmt.Errorf("update policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Policy{}, shared.ErrNotFound
	}
	return r.Get(ctx, policy.ID)
}

// Get loads a policy by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Policy, error) {
	policy, err := scanPolicy(r.pool.QueryRow(ctx, `SELECT `+policyColumns+policyFrom+` WHERE p.id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, shared.ErrNotFound
		}
		return Policy{}, err
	}
	return policy, nil
}

// ListByClient returns a client's policies by ascending due date.
func (r *PGRepository) ListByClient(ctx context.Context, clientID string) ([]Policy, error) {
	return r.query(ctx, `SELECT `+policyColumns+policyFrom+` WHERE p.client_id = $1::uuid ORDER BY p.due_date ASC`, clientID)
}

// ListForUser returns the policies of every client owned by userID.
func (r *PGRepository) ListForUser(ctx context.Context, userID string) ([]Policy, error) {
	return r.query(ctx, `SELECT `+policyColumns+policyFrom+` WHERE c.user_id = $1::uuid ORDER BY p.due_date ASC`, userID)
}

// CountActive counts policies in Active status.
func (r *PGRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM policies WHERE status = $1`, StatusActive).Scan(&count)
	return count, err
}

// CountActiveDueBetween counts Active policies due within [from, to].
func (r *PGRepository) CountActiveDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM policies WHERE status = $1 AND due_date BETWEEN $2 AND $3`,
		StatusActive, from, to).Scan(&count)
	return count, err
}

// ActiveDueBetween lists Active policies due within [from, to], soonest first.
func (r *PGRepository) ActiveDueBetween(ctx context.Context, from, to time.Time) ([]Policy, error) {
	return r.query(ctx, `SELECT `+policyColumns+policyFrom+`
WHERE p.status = $1 AND p.due_date BETWEEN $2 AND $3
ORDER BY p.due_date ASC, p.created_at ASC`, StatusActive, from, to)
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, policy)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
