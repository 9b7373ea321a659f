package clients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

type memoryRepo struct {
	rows map[string]Client
	seq  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string]Client{}}
}

func (m *memoryRepo) Create(ctx context.Context, client Client) (Client, error) {
	m.seq++
	client.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.seq)
	m.rows[client.ID] = client
	return client, nil
}

func (m *memoryRepo) Update(ctx context.Context, client Client) (Client, error) {
	if _, ok := m.rows[client.ID]; !ok {
		return Client{}, shared.ErrNotFound
	}
	m.rows[client.ID] = client
	return client, nil
}

func (m *memoryRepo) Get(ctx context.Context, id string) (Client, error) {
	client, ok := m.rows[id]
	if !ok {
		return Client{}, shared.ErrNotFound
	}
	return client, nil
}

func (m *memoryRepo) List(ctx context.Context) ([]Client, error) {
	out := make([]Client, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) ListByUser(ctx context.Context, userID string) ([]Client, error) {
	var out []Client
	for _, c := range m.rows {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context) (int, error) {
	return len(m.rows), nil
}

type recordingFeed struct {
	changes []realtime.Change
}

func (f *recordingFeed) Publish(ctx context.Context, change realtime.Change) error {
	f.changes = append(f.changes, change)
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func newTestService() (*Service, *memoryRepo, *recordingFeed, *recordingAudit) {
	repo := newMemoryRepo()
	feed := &recordingFeed{}
	audit := &recordingAudit{}
	svc := NewService(repo, feed, audit, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, feed, audit
}

func TestCreateTrimsAndPublishes(t *testing.T) {
	svc, repo, feed, audit := newTestService()

	client, err := svc.Create(context.Background(), "admin-1", Input{Name: "  Ravi Kumar ", Phone: " 98450 ", Email: " Ravi@Example.COM ", DOB: "1980-02-29"})
	require.NoError(t, err)
	require.Equal(t, "Ravi Kumar", client.Name)
	require.Equal(t, "98450", client.Phone)
	require.Equal(t, "ravi@example.com", client.Email)
	require.Equal(t, "1980-02-29", client.DOBString())
	require.Len(t, repo.rows, 1)

	require.Equal(t, []realtime.Change{{Table: realtime.TableClients, Op: realtime.OpInsert, ID: client.ID}}, feed.changes)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "client.create", audit.logs[0].Action)
	require.Equal(t, "admin-1", audit.logs[0].ActorID)
}

func TestCreateValidation(t *testing.T) {
	svc, repo, feed, _ := newTestService()

	cases := []struct {
		input   Input
		message string
	}{
		{Input{Name: "  ", Phone: "1"}, "Client Name and Phone are required."},
		{Input{Name: "A", Phone: ""}, "Client Name and Phone are required."},
		{Input{Name: "A", Phone: "1", Email: "not-an-email"}, "Please enter a valid email address."},
		{Input{Name: "A", Phone: "1", DOB: "31/12/1990"}, "Date of birth must be a valid date (YYYY-MM-DD)."},
		{Input{Name: "A", Phone: "1", DOB: "2030-01-01"}, "Date of birth cannot be in the future."},
	}
	for _, tc := range cases {
		_, err := svc.Create(context.Background(), "", tc.input)
		require.ErrorIs(t, err, shared.ErrValidation)
		require.Equal(t, tc.message, shared.UserSafeMessage(err))
	}
	require.Empty(t, repo.rows)
	require.Empty(t, feed.changes)
}

func TestUpdateUnknownClient(t *testing.T) {
	svc, _, feed, _ := newTestService()

	_, err := svc.Update(context.Background(), "", "not-a-uuid", Input{Name: "A", Phone: "1"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Update(context.Background(), "", "00000000-0000-0000-0000-000000000099", Input{Name: "A", Phone: "1"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, feed.changes)
}

func TestUpdatePublishesAndAuditFailureIsTolerated(t *testing.T) {
	svc, _, feed, audit := newTestService()
	created, err := svc.Create(context.Background(), "", Input{Name: "A", Phone: "1"})
	require.NoError(t, err)
	audit.err = errors.New("audit down")

	updated, err := svc.Update(context.Background(), "", created.ID, Input{Name: "B", Phone: "2"})
	require.NoError(t, err)
	require.Equal(t, "B", updated.Name)
	require.Equal(t, realtime.Change{Table: realtime.TableClients, Op: realtime.OpUpdate, ID: created.ID}, feed.changes[1])
}

func TestForUserScopesRows(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.rows["a"] = Client{ID: "a", Name: "Mine", UserID: "u1"}
	repo.rows["b"] = Client{ID: "b", Name: "Other", UserID: "u2"}

	mine, err := svc.ForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Mine", mine[0].Name)

	_, err = svc.ForUser(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrForbidden)
}
