package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(time.Date(2026, 2, 14, 22, 0, 0, 0, time.UTC))
	require.Equal(t, day(2026, 2, 1), from)
	require.Equal(t, day(2026, 2, 28), to)

	from, to = MonthRange(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	require.Equal(t, day(2026, 12, 1), from)
	require.Equal(t, day(2026, 12, 31), to)
}

func TestAdminViewAggregates(t *testing.T) {
	clientRows, policyRows, notes := fixture()
	svc := NewService(clientRows, policyRows, notes, stubProfiles{}, nil)

	view, err := svc.Admin(context.Background(), "admin-1", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "Sunil", view.FullName)
	require.Equal(t, 2, view.Stats.ClientCount)
	require.Equal(t, 3, view.Stats.ActivePolicyCount)
	require.Equal(t, 2, view.Stats.RenewalsDueThisMonth)
	require.Equal(t, day(2026, 3, 1), policyRows.dueFrom)
	require.Equal(t, day(2026, 3, 31), policyRows.dueTo)

	require.Len(t, view.Upcoming, 3)
	require.Len(t, view.DueSoon, 1)
	require.Equal(t, "p1", view.DueSoon[0].ID)
	require.Len(t, view.Notifications, 1)
	require.Len(t, view.Clients, 2)
}

func TestAdminViewDegradesFailingStats(t *testing.T) {
	clientRows, policyRows, notes := fixture()
	clientRows.countErr = errors.New("count failed")
	policyRows.activeErr = errors.New("active failed")
	policyRows.upcomingErr = errors.New("renewals failed")
	notes.err = errors.New("notifications failed")
	svc := NewService(clientRows, policyRows, notes, stubProfiles{}, nil)

	view, err := svc.Admin(context.Background(), "admin-1", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, view.Stats.ClientCount)
	require.Zero(t, view.Stats.ActivePolicyCount)
	require.Empty(t, view.Upcoming)
	require.Empty(t, view.DueSoon)
	require.Empty(t, view.Notifications)
	require.Len(t, view.Clients, 2)
}

func TestAdminViewFailsOnClientList(t *testing.T) {
	clientRows, policyRows, notes := fixture()
	clientRows.listErr = errors.New("boom")
	svc := NewService(clientRows, policyRows, notes, stubProfiles{}, nil)

	_, err := svc.Admin(context.Background(), "admin-1", time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "client fetch error")
}

func TestClientViewScopesToUser(t *testing.T) {
	clientRows, policyRows, notes := fixture()
	policyRows.byUser = map[string][]policies.Policy{"client-1": {policyRows.rows[0]}}
	clientRows.linked = map[string][]clients.Client{"client-1": {clientRows.rows[0]}}
	svc := NewService(clientRows, policyRows, notes, stubProfiles{}, nil)

	view, err := svc.Client(context.Background(), "client-1")
	require.NoError(t, err)
	require.Equal(t, "Asha", view.FullName)
	require.True(t, view.Linked)
	require.Len(t, view.Policies, 1)
	require.Equal(t, "p1", view.Policies[0].ID)

	view, err = svc.Client(context.Background(), "stranger")
	require.NoError(t, err)
	require.False(t, view.Linked)
	require.Empty(t, view.Policies)

	_, err = svc.Client(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDetail(t *testing.T) {
	clientRows, policyRows, notes := fixture()
	svc := NewService(clientRows, policyRows, notes, stubProfiles{}, nil)

	detail, err := svc.Detail(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "Asha", detail.Client.Name)
	require.Len(t, detail.Policies, 2)

	_, err = svc.Detail(context.Background(), "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
