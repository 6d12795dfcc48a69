package orchestrators

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"licensedesk/internal/adapters/federation"
	auditStore "licensedesk/internal/adapters/storage/audit"
	outboxStore "licensedesk/internal/adapters/storage/outbox"
	"licensedesk/internal/domain/audit"
	"licensedesk/internal/domain/licensing"
	"licensedesk/internal/domain/member"
	domainOutbox "licensedesk/internal/domain/outbox"
)

var deskNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memSlots implements transfer.Store for testing.
type memSlots struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemSlots() *memSlots { return &memSlots{values: map[string]string{}} }

func (m *memSlots) Get(_ context.Context, owner, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[owner+"/"+key]
	return v, ok, nil
}

func (m *memSlots) Put(_ context.Context, owner, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[owner+"/"+key] = value
	return nil
}

func (m *memSlots) Delete(_ context.Context, owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, owner+"/"+key)
	return nil
}

// memCache implements selectioncache.Store for testing.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]int
}

func newMemCache() *memCache { return &memCache{entries: map[string][]int{}} }

func cacheKey(owner string, club int) string {
	return owner + "/" + strconv.Itoa(club)
}

func (m *memCache) Get(_ context.Context, owner string, club int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[cacheKey(owner, club)], nil
}

func (m *memCache) Put(_ context.Context, owner string, club int, ids []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey(owner, club)] = append([]int(nil), ids...)
	return nil
}

func (m *memCache) Delete(_ context.Context, owner string, club int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, cacheKey(owner, club))
	return nil
}

// memOutbox implements outbox.Store for testing.
type memOutbox struct {
	mu      sync.Mutex
	entries map[string]domainOutbox.Entry
}

func newMemOutbox() *memOutbox { return &memOutbox{entries: map[string]domainOutbox.Entry{}} }

func (m *memOutbox) GetByID(_ context.Context, id string) (domainOutbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domainOutbox.Entry{}, outboxStore.ErrNotFound
	}
	return e, nil
}

func (m *memOutbox) Save(_ context.Context, e domainOutbox.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *memOutbox) list(match func(domainOutbox.Entry) bool, limit int) []domainOutbox.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domainOutbox.Entry
	for _, e := range m.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memOutbox) ListPending(_ context.Context, limit int) ([]domainOutbox.Entry, error) {
	return m.list(func(e domainOutbox.Entry) bool {
		return e.Status == domainOutbox.StatusPending || e.Status == domainOutbox.StatusRetrying
	}, limit), nil
}

func (m *memOutbox) ListDue(_ context.Context, now time.Time, limit int) ([]domainOutbox.Entry, error) {
	return m.list(func(e domainOutbox.Entry) bool {
		return (e.Status == domainOutbox.StatusPending || e.Status == domainOutbox.StatusRetrying) &&
			(e.NextAttemptAt.IsZero() || !now.Before(e.NextAttemptAt))
	}, limit), nil
}

func (m *memOutbox) ListFailed(_ context.Context, limit int) ([]domainOutbox.Entry, error) {
	return m.list(func(e domainOutbox.Entry) bool { return e.Status == domainOutbox.StatusFailed }, limit), nil
}

func (m *memOutbox) PurgeSettled(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if (e.Status == domainOutbox.StatusDone || e.Status == domainOutbox.StatusAbandoned) && e.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// fakeBackend implements EligibilityQuerier, BatchOrderCreator and ClubDirectory.
type fakeBackend struct {
	mu sync.Mutex

	eligibility    licensing.EligibilityResult
	eligibilityErr error
	queries        []licensing.EligibilityRequest
	// gates[i], when present, blocks the i-th eligibility call until it yields a result.
	gates []chan licensing.EligibilityResult

	orderRes licensing.BatchOrderResult
	orderErr error
	orders   []licensing.BatchOrderRequest
	// orderGate, when set, blocks CreateBatchOrder until closed.
	orderGate chan struct{}

	roster      []member.Member
	rosterErr   error
	rosterCalls int
	club        federation.Club
	clubErr     error
}

func (f *fakeBackend) QueryEligibility(_ context.Context, req licensing.EligibilityRequest) (licensing.EligibilityResult, error) {
	f.mu.Lock()
	idx := len(f.queries)
	f.queries = append(f.queries, req)
	var gate chan licensing.EligibilityResult
	if idx < len(f.gates) {
		gate = f.gates[idx]
	}
	res, err := f.eligibility, f.eligibilityErr
	f.mu.Unlock()
	if gate != nil {
		return <-gate, nil
	}
	return res, err
}

func (f *fakeBackend) CreateBatchOrder(_ context.Context, req licensing.BatchOrderRequest) (licensing.BatchOrderResult, error) {
	f.mu.Lock()
	f.orders = append(f.orders, req)
	gate := f.orderGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.orderRes, f.orderErr
}

func (f *fakeBackend) ListClubMembers(_ context.Context, clubID int) ([]member.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterCalls++
	return f.roster, f.rosterErr
}

func (f *fakeBackend) setRoster(roster []member.Member, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roster, f.rosterErr = roster, err
}

func (f *fakeBackend) GetClub(_ context.Context, clubID int) (federation.Club, error) {
	return f.club, f.clubErr
}

func (f *fakeBackend) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeBackend) query(i int) licensing.EligibilityRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[i]
}

func (f *fakeBackend) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

var errBackendDown = errors.New("backend down")

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// memAudit implements the audit store for testing.
type memAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memAudit) Save(_ context.Context, e audit.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAudit) List(_ context.Context, _ auditStore.Filter, limit int) ([]audit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]audit.Event(nil), m.events...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAudit) recorded() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.events...)
}
