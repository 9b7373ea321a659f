package dashboard

import (
	"context"
	"time"

	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/notifications"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

type stubClients struct {
	rows     []clients.Client
	listErr  error
	countErr error
	linked   map[string][]clients.Client
}

func (s *stubClients) Get(_ context.Context, id string) (clients.Client, error) {
	for _, c := range s.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return clients.Client{}, shared.ErrNotFound
}

func (s *stubClients) List(context.Context) ([]clients.Client, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.rows, nil
}

func (s *stubClients) Count(context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.rows), nil
}

func (s *stubClients) ForUser(_ context.Context, userID string) ([]clients.Client, error) {
	return s.linked[userID], nil
}

type stubPolicies struct {
	rows        []policies.Policy
	byUser      map[string][]policies.Policy
	activeErr   error
	upcomingErr error
	dueFrom     time.Time
	dueTo       time.Time
}

func (s *stubPolicies) ListByClient(_ context.Context, clientID string) ([]policies.Policy, error) {
	var out []policies.Policy
	for _, p := range s.rows {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPolicies) ListForUser(_ context.Context, userID string) ([]policies.Policy, error) {
	return s.byUser[userID], nil
}

func (s *stubPolicies) CountActive(context.Context) (int, error) {
	if s.activeErr != nil {
		return 0, s.activeErr
	}
	n := 0
	for _, p := range s.rows {
		if p.Status == policies.StatusActive {
			n++
		}
	}
	return n, nil
}

func (s *stubPolicies) CountActiveDueBetween(_ context.Context, from, to time.Time) (int, error) {
	s.dueFrom, s.dueTo = from, to
	n := 0
	for _, p := range s.rows {
		if p.Status == policies.StatusActive && !p.DueDate.Before(from) && !p.DueDate.After(to) {
			n++
		}
	}
	return n, nil
}

func (s *stubPolicies) UpcomingRenewals(_ context.Context, from, to time.Time) ([]policies.Policy, error) {
	if s.upcomingErr != nil {
		return nil, s.upcomingErr
	}
	var out []policies.Policy
	for _, p := range s.rows {
		if p.Status == policies.StatusActive && !p.DueDate.Before(from) && !p.DueDate.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubNotifications struct {
	items []notifications.Notification
	err   error
}

func (s *stubNotifications) ListUnread(context.Context, int) ([]notifications.Notification, error) {
	return s.items, s.err
}

type stubProfiles struct{}

func (stubProfiles) Profile(_ context.Context, userID string) (*auth.Profile, error) {
	switch userID {
	case "admin-1":
		return &auth.Profile{ID: userID, Role: auth.RoleAdmin, FullName: "Sunil"}, nil
	case "client-1":
		return &auth.Profile{ID: userID, Role: auth.RoleClient, FullName: "Asha"}, nil
	}
	return nil, shared.ErrNotFound
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() (*stubClients, *stubPolicies, *stubNotifications) {
	clientRows := &stubClients{rows: []clients.Client{
		{ID: "c1", Name: "Asha", Phone: "111", Email: "asha@example.com"},
		{ID: "c2", Name: "Ravi", Phone: "222"},
	}}
	policyRows := &stubPolicies{rows: []policies.Policy{
		{ID: "p1", ClientID: "c1", ClientName: "Asha", PlanName: "Jeevan", Premium: 1500, Status: policies.StatusActive, DueDate: day(2026, 3, 12)},
		{ID: "p2", ClientID: "c1", ClientName: "Asha", PlanName: "Health", Premium: 900, Status: policies.StatusActive, DueDate: day(2026, 3, 30)},
		{ID: "p3", ClientID: "c2", PlanName: "", Premium: 100, Status: policies.StatusActive, DueDate: day(2026, 4, 2)},
		{ID: "p4", ClientID: "c2", ClientName: "Ravi", PlanName: "Old", Status: policies.StatusLapsed, DueDate: day(2026, 3, 11)},
	}}
	notes := &stubNotifications{items: []notifications.Notification{
		{ID: "n1", Type: notifications.TypeRenewalDue, Message: `Renewal Due: Policy "Jeevan" for client "Asha" is due on 12/03/2026.`},
	}}
	return clientRows, policyRows, notes
}
