package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// DefaultUnreadLimit caps the dashboard notification panel.
const DefaultUnreadLimit = 20

// Service exposes notification reads and writes.
type Service struct {
	repo   Repository
	feed   realtime.Publisher
	logger *slog.Logger
}

// NewService constructs a Service. feed may be nil.
func NewService(repo Repository, feed realtime.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, feed: feed, logger: logger}
}

// ListUnread returns up to limit unread notifications, newest first.
func (s *Service) ListUnread(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultUnreadLimit
	}
	return s.repo.ListUnread(ctx, limit)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return err
	}
	realtime.PublishQuietly(ctx, s.feed, s.logger, realtime.Change{Table: realtime.TableNotifications, Op: realtime.OpUpdate, ID: id})
	return nil
}

// MarkAllRead flags every unread notification as read.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		realtime.PublishQuietly(ctx, s.feed, s.logger, realtime.Change{Table: realtime.TableNotifications, Op: realtime.OpUpdate})
	}
	return count, nil
}

// Exists reports whether a notification keyed by (policy, type, due date)
// has already been written.
func (s *Service) Exists(ctx context.Context, policyID, kind string, dueDate time.Time) (bool, error) {
	return s.repo.Exists(ctx, policyID, kind, dueDate)
}

// InsertRenewals stores renewal reminders and returns the ones actually
// written.
func (s *Service) InsertRenewals(ctx context.Context, items []Notification) ([]Notification, error) {
	for i := range items {
		if items[i].Type == "" {
			items[i].Type = TypeRenewalDue
		}
	}
	inserted, err := s.repo.InsertBatch(ctx, items)
	if err != nil {
		return inserted, err
	}
	for _, n := range inserted {
		realtime.PublishQuietly(ctx, s.feed, s.logger, realtime.Change{Table: realtime.TableNotifications, Op: realtime.OpInsert, ID: n.ID})
	}
	return inserted, nil
}
