package policies

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

type memoryRepo struct {
	rows    map[string]Policy
	clients map[string]clients.Client
	seq     int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string]Policy{}, clients: map[string]clients.Client{}}
}

func (m *memoryRepo) addClient(id, name, userID string) clients.Client {
	c := clients.Client{ID: id, Name: name, UserID: userID}
	m.clients[id] = c
	return c
}

func (m *memoryRepo) Get(ctx context.Context, id string) (Policy, error) {
	p, ok := m.rows[id]
	if !ok {
		return Policy{}, shared.ErrNotFound
	}
	p.ClientName = m.clients[p.ClientID].Name
	return p, nil
}

func (m *memoryRepo) Create(ctx context.Context, policy Policy) (Policy, error) {
	m.seq++
	policy.ID = fmt.Sprintf("10000000-0000-0000-0000-%012d", m.seq)
	m.rows[policy.ID] = policy
	return m.Get(ctx, policy.ID)
}

func (m *memoryRepo) Update(ctx context.Context, policy Policy) (Policy, error) {
	if _, ok := m.rows[policy.ID]; !ok {
		return Policy{}, shared.ErrNotFound
	}
	m.rows[policy.ID] = policy
	return m.Get(ctx, policy.ID)
}

func (m *memoryRepo) filter(keep func(Policy) bool) []Policy {
	var out []Policy
	for _, p := range m.rows {
		if keep(p) {
			p.ClientName = m.clients[p.ClientID].Name
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func (m *memoryRepo) ListByClient(ctx context.Context, clientID string) ([]Policy, error) {
	return m.filter(func(p Policy) bool { return p.ClientID == clientID }), nil
}

func (m *memoryRepo) ListForUser(ctx context.Context, userID string) ([]Policy, error) {
	return m.filter(func(p Policy) bool { return m.clients[p.ClientID].UserID == userID }), nil
}

func (m *memoryRepo) CountActive(ctx context.Context) (int, error) {
	return len(m.filter(func(p Policy) bool { return p.Status == StatusActive })), nil
}

func (m *memoryRepo) CountActiveDueBetween(ctx context.Context, from, to time.Time) (int, error) {
	rows, _ := m.ActiveDueBetween(ctx, from, to)
	return len(rows), nil
}

func (m *memoryRepo) ActiveDueBetween(ctx context.Context, from, to time.Time) ([]Policy, error) {
	return m.filter(func(p Policy) bool {
		return p.Status == StatusActive && !p.DueDate.Before(from) && !p.DueDate.After(to)
	}), nil
}

// clientLookup serves clients out of the memory repo.
type clientLookup struct{ repo *memoryRepo }

func (c clientLookup) Get(ctx context.Context, id string) (clients.Client, error) {
	client, ok := c.repo.clients[id]
	if !ok {
		return clients.Client{}, shared.ErrNotFound
	}
	return client, nil
}

type recordingFeed struct {
	changes []realtime.Change
}

func (f *recordingFeed) Publish(ctx context.Context, change realtime.Change) error {
	f.changes = append(f.changes, change)
	return nil
}

const testClientID = "20000000-0000-0000-0000-000000000001"

func newTestService() (*Service, *memoryRepo, *recordingFeed) {
	repo := newMemoryRepo()
	repo.addClient(testClientID, "Kiran", "user-1")
	feed := &recordingFeed{}
	return NewService(repo, clientLookup{repo: repo}, feed, nil, nil), repo, feed
}

func validInput() Input {
	return Input{
		Company:              "LIC",
		PlanName:             "Jeevan Anand",
		PolicyNo:             "P-100",
		Premium:              "12,500.50",
		DueDate:              "2024-07-15",
		CommissionPercentage: "7.5",
	}
}
