package policies

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// ClientFinder resolves the owning client of a policy.
type ClientFinder interface {
	Get(ctx context.Context, id string) (clients.Client, error)
}

// Service implements policy record-keeping.
type Service struct {
	repo    Repository
	clients ClientFinder
	feed    realtime.Publisher
	audit   shared.AuditRecorder
	logger  *slog.Logger
}

// NewService constructs a Service. feed and audit may be nil.
func NewService(repo Repository, clientFinder ClientFinder, feed realtime.Publisher, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clients: clientFinder, feed: feed, audit: audit, logger: logger}
}

// Create validates and stores a policy for an existing client.
func (s *Service) Create(ctx context.Context, actorID, clientID string, input Input) (Policy, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return Policy{}, err
	}
	policy, err := fromInput(input)
	if err != nil {
		return Policy{}, err
	}
	policy.ClientID = client.ID
	created, err := s.repo.Create(ctx, policy)
	if err != nil {
		return Policy{}, err
	}
	s.afterWrite(ctx, actorID, shared.ActionPolicyCreate, realtime.OpInsert, created)
	return created, nil
}

// Update validates and overwrites an existing policy.
func (s *Service) Update(ctx context.Context, actorID, id string, input Input) (Policy, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	policy, err := fromInput(input)
	if err != nil {
		return Policy{}, err
	}
	policy.ID = existing.ID
	policy.ClientID = existing.ClientID
	updated, err := s.repo.Update(ctx, policy)
	if err != nil {
		return Policy{}, err
	}
	s.afterWrite(ctx, actorID, shared.ActionPolicyUpdate, realtime.OpUpdate, updated)
	return updated, nil
}

// Get loads a policy by id.
func (s *Service) Get(ctx context.Context, id string) (Policy, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Policy{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// ListByClient returns a client's policies ordered by due date.
func (s *Service) ListByClient(ctx context.Context, clientID string) ([]Policy, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, shared.ErrNotFound
	}
	return s.repo.ListByClient(ctx, clientID)
}

// ListForUser returns the "My Policies" rows of a client-role user.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Policy, error) {
	if userID == "" {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListForUser(ctx, userID)
}

// CountActive counts Active policies.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

// CountActiveDueBetween counts Active policies due within [from, to].
func (s *Service) CountActiveDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.repo.CountActiveDueBetween(ctx, from, to)
}

// UpcomingRenewals lists Active policies due within [from, to], soonest first.
func (s *Service) UpcomingRenewals(ctx context.Context, from, to time.Time) ([]Policy, error) {
	if to.Before(from) {
		return nil, errors.New("policies: renewal window ends before it starts")
	}
	return s.repo.ActiveDueBetween(ctx, from, to)
}

func fromInput(input Input) (Policy, error) {
	policy := Policy{
		Company:  strings.TrimSpace(input.Company),
		PlanName: strings.TrimSpace(input.PlanName),
		PolicyNo: strings.TrimSpace(input.PolicyNo),
		Status:   strings.TrimSpace(input.Status),
	}
	premium := strings.TrimSpace(input.Premium)
	dueDate := strings.TrimSpace(input.DueDate)
	commission := strings.TrimSpace(input.CommissionPercentage)
	if policy.Company == "" || policy.PlanName == "" || policy.PolicyNo == "" || premium == "" || dueDate == "" || commission == "" {
		return Policy{}, shared.Invalid("Please fill in all required fields.")
	}

	if policy.Status == "" {
		policy.Status = StatusActive
	}
	if !validStatus(policy.Status) {
		return Policy{}, shared.Invalid("Status must be one of Active, Expired or Lapsed.")
	}

	value, err := parseNumber(premium)
	if err != nil || value < 0 {
		return Policy{}, shared.Invalid("Premium must be a non-negative number.")
	}
	policy.Premium = value

	value, err = parseNumber(commission)
	if err != nil || value < 0 || value > 100 {
		return Policy{}, shared.Invalid("Commission must be between 0 and 100.")
	}
	policy.CommissionPercentage = value

	due, err := time.Parse(DateLayout, dueDate)
	if err != nil {
		return Policy{}, shared.Invalid("Due date must be a valid date (YYYY-MM-DD).")
	}
	policy.DueDate = due
	return policy, nil
}

func validStatus(status string) bool {
	for _, candidate := range Statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func parseNumber(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, strconv.ErrRange
	}
	return value, nil
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (s *Service) afterWrite(ctx context.Context, actorID, action, op string, policy Policy) {
	realtime.PublishQuietly(ctx, s.feed, s.logger, realtime.Change{Table: realtime.TablePolicies, Op: op, ID: policy.ID})
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "policy",
		EntityID: policy.ID,
		Meta: map[string]any{
			"client_id": policy.ClientID,
			"policy_no": policy.PolicyNo,
			"status":    policy.Status,
		},
	})
	if err != nil {
		s.logger.Warn("audit policy", slog.String("action", action), slog.Any("error", err))
	}
}
