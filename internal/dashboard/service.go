// Package dashboard assembles the role-specific dashboard views.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/notifications"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

const (
	soonDays     = 7
	upcomingDays = 30
)

// ClientReader is the read side of the clients service.
type ClientReader interface {
	Get(ctx context.Context, id string) (clients.Client, error)
	List(ctx context.Context) ([]clients.Client, error)
	Count(ctx context.Context) (int, error)
	ForUser(ctx context.Context, userID string) ([]clients.Client, error)
}

// PolicyReader is the read side of the policies service.
type PolicyReader interface {
	ListByClient(ctx context.Context, clientID string) ([]policies.Policy, error)
	ListForUser(ctx context.Context, userID string) ([]policies.Policy, error)
	CountActive(ctx context.Context) (int, error)
	CountActiveDueBetween(ctx context.Context, from, to time.Time) (int, error)
	UpcomingRenewals(ctx context.Context, from, to time.Time) ([]policies.Policy, error)
}

// NotificationReader lists unread notifications.
type NotificationReader interface {
	ListUnread(ctx context.Context, limit int) ([]notifications.Notification, error)
}

// ProfileReader loads the signed-in user's profile.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (*auth.Profile, error)
}

// Stats are the admin summary counters.
type Stats struct {
	ClientCount          int
	ActivePolicyCount    int
	RenewalsDueThisMonth int
}

// AdminView is everything the admin dashboard renders.
type AdminView struct {
	FullName      string
	Stats         Stats
	DueSoon       []policies.Policy
	Upcoming      []policies.Policy
	Notifications []notifications.Notification
	Clients       []clients.Client
}

// ClientView is the self-service "My Policies" page.
type ClientView struct {
	FullName string
	Linked   bool
	Policies []policies.Policy
}

// ClientDetail is a single client with its policies.
type ClientDetail struct {
	Client   clients.Client
	Policies []policies.Policy
}

// Service reads dashboard data.
type Service struct {
	clients       ClientReader
	policies      PolicyReader
	notifications NotificationReader
	profiles      ProfileReader
	logger        *slog.Logger
}

// NewService constructs the dashboard service.
func NewService(clientReader ClientReader, policyReader PolicyReader, notificationReader NotificationReader, profiles ProfileReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		clients:       clientReader,
		policies:      policyReader,
		notifications: notificationReader,
		profiles:      profiles,
		logger:        logger,
	}
}

// MonthRange returns the first and last calendar day of now's month in UTC.
func MonthRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// Admin loads the admin dashboard. Counters, renewals and notifications
// degrade to empty values on failure; a failing client list is returned as
// an error.
func (s *Service) Admin(ctx context.Context, userID string, now time.Time) (AdminView, error) {
	today := truncateDay(now)
	soon := today.AddDate(0, 0, soonDays)
	monthStart, monthEnd := MonthRange(now)

	var view AdminView
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := s.clients.List(gctx)
		if err != nil {
			return fmt.Errorf("client fetch error: %w", err)
		}
		view.Clients = list
		return nil
	})
	g.Go(func() error {
		view.Stats.ClientCount = s.count(gctx, "client count", s.clients.Count)
		return nil
	})
	g.Go(func() error {
		view.Stats.ActivePolicyCount = s.count(gctx, "active policy count", s.policies.CountActive)
		return nil
	})
	g.Go(func() error {
		view.Stats.RenewalsDueThisMonth = s.count(gctx, "renewals due count", func(ctx context.Context) (int, error) {
			return s.policies.CountActiveDueBetween(ctx, monthStart, monthEnd)
		})
		return nil
	})
	g.Go(func() error {
		upcoming, err := s.policies.UpcomingRenewals(gctx, today, today.AddDate(0, 0, upcomingDays))
		if err != nil {
			s.logger.Error("fetch upcoming renewals", slog.Any("error", err))
			return nil
		}
		view.Upcoming = upcoming
		view.DueSoon = dueBy(upcoming, soon)
		return nil
	})
	g.Go(func() error {
		if s.notifications == nil {
			return nil
		}
		items, err := s.notifications.ListUnread(gctx, notifications.DefaultUnreadLimit)
		if err != nil {
			s.logger.Error("fetch unread notifications", slog.Any("error", err))
			return nil
		}
		view.Notifications = items
		return nil
	})
	g.Go(func() error {
		view.FullName = s.fullName(gctx, userID)
		return nil
	})

	if err := g.Wait(); err != nil {
		return AdminView{}, err
	}
	return view, nil
}

// Client loads the self-service view for a client-role user.
func (s *Service) Client(ctx context.Context, userID string) (ClientView, error) {
	if userID == "" {
		return ClientView{}, shared.ErrForbidden
	}
	list, err := s.policies.ListForUser(ctx, userID)
	if err != nil {
		return ClientView{}, err
	}
	view := ClientView{FullName: s.fullName(ctx, userID), Policies: list}
	linked, err := s.clients.ForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("lookup linked client", slog.Any("error", err))
	}
	view.Linked = len(linked) > 0 || len(list) > 0
	return view, nil
}

// Detail loads one client and its policies ordered by due date.
func (s *Service) Detail(ctx context.Context, clientID string) (ClientDetail, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return ClientDetail{}, err
	}
	list, err := s.policies.ListByClient(ctx, client.ID)
	if err != nil {
		return ClientDetail{}, err
	}
	return ClientDetail{Client: client, Policies: list}, nil
}

func (s *Service) count(ctx context.Context, name string, fn func(context.Context) (int, error)) int {
	n, err := fn(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("fetch "+name, slog.Any("error", err))
		}
		return 0
	}
	return n
}

func (s *Service) fullName(ctx context.Context, userID string) string {
	if s.profiles == nil || userID == "" {
		return ""
	}
	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil || profile == nil {
		return ""
	}
	return profile.FullName
}

func dueBy(list []policies.Policy, limit time.Time) []policies.Policy {
	out := make([]policies.Policy, 0, len(list))
	for _, p := range list {
		if !p.DueDate.After(limit) {
			out = append(out, p)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
