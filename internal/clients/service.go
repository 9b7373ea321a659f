package clients

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// Service implements client record-keeping.
type Service struct {
	repo     Repository
	feed     realtime.Publisher
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a Service. feed and audit may be nil.
func NewService(repo Repository, feed realtime.Publisher, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		feed:     feed,
		audit:    audit,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create validates and stores a new client.
func (s *Service) Create(ctx context.Context, actorID string, input Input) (Client, error) {
	client, err := s.fromInput(input)
	if err != nil {
		return Client{}, err
	}
	created, err := s.repo.Create(ctx, client)
	if err != nil {
		return Client{}, err
	}
	s.afterWrite(ctx, actorID, shared.ActionClientCreate, realtime.OpInsert, created)
	return created, nil
}

// Update validates and overwrites an existing client.
func (s *Service) Update(ctx context.Context, actorID, id string, input Input) (Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Client{}, shared.ErrNotFound
	}
	client, err := s.fromInput(input)
	if err != nil {
		return Client{}, err
	}
	client.ID = id
	updated, err := s.repo.Update(ctx, client)
	if err != nil {
		return Client{}, err
	}
	s.afterWrite(ctx, actorID, shared.ActionClientUpdate, realtime.OpUpdate, updated)
	return updated, nil
}

// Get loads a client by id.
func (s *Service) Get(ctx context.Context, id string) (Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Client{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns every client ordered by name.
func (s *Service) List(ctx context.Context) ([]Client, error) {
	return s.repo.List(ctx)
}

// Count returns the number of clients.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// ForUser returns only the clients owned by userID.
func (s *Service) ForUser(ctx context.Context, userID string) ([]Client, error) {
	if userID == "" {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) fromInput(input Input) (Client, error) {
	client := Client{
		Name:  strings.TrimSpace(input.Name),
		Phone: strings.TrimSpace(input.Phone),
		Email: strings.ToLower(strings.TrimSpace(input.Email)),
	}
	if client.Name == "" || client.Phone == "" {
		return Client{}, shared.Invalid("Client Name and Phone are required.")
	}
	if client.Email != "" {
		if err := s.validate.Var(client.Email, "email"); err != nil {
			return Client{}, shared.Invalid("Please enter a valid email address.")
		}
	}
	if raw := strings.TrimSpace(input.DOB); raw != "" {
		dob, err := time.Parse(DateLayout, raw)
		if err != nil {
			return Client{}, shared.Invalid("Date of birth must be a valid date (YYYY-MM-DD).")
		}
		if dob.After(s.now()) {
			return Client{}, shared.Invalid("Date of birth cannot be in the future.")
		}
		client.DOB = &dob
	}
	return client, nil
}

func (s *Service) afterWrite(ctx context.Context, actorID, action, op string, client Client) {
	realtime.PublishQuietly(ctx, s.feed, s.logger, realtime.Change{Table: realtime.TableClients, Op: op, ID: client.ID})
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "client",
		EntityID: client.ID,
		Meta:     map[string]any{"name": client.Name},
	})
	if err != nil {
		s.logger.Warn("audit client", slog.String("action", action), slog.Any("error", err))
	}
}
