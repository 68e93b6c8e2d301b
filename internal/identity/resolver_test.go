package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	gets int
	fail error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) GetTimezone(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.fail != nil {
		return "", m.fail
	}
	tz, ok := m.data[userID]
	if !ok {
		return "", schedule.E(schedule.KindNotFound, "get timezone", errors.New("not found"))
	}
	return tz, nil
}

func (m *mockStore) SetTimezone(_ context.Context, userID, tz string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = tz
	return nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestResolver(t *testing.T, store *mockStore, clock Clock) *Resolver {
	t.Helper()
	r, err := NewResolverWithClock(store, 8, time.Minute, clock)
	if err != nil {
		t.Fatalf("NewResolverWithClock: %v", err)
	}
	return r
}

// --- Tests ---

func TestGet_DefaultsToUTC(t *testing.T) {
	r := newTestResolver(t, newMockStore(), &mockClock{now: time.Now()})

	tz, err := r.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tz != DefaultTimezone {
		t.Errorf("tz = %q, want %q", tz, DefaultTimezone)
	}
}

func TestGet_CachesWithinTTL(t *testing.T) {
	store := newMockStore()
	store.data["u1"] = "Europe/Berlin"
	clock := &mockClock{now: time.Now()}
	r := newTestResolver(t, store, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tz, err := r.Get(ctx, "u1")
		if err != nil || tz != "Europe/Berlin" {
			t.Fatalf("Get = %q, %v", tz, err)
		}
	}
	if store.calls() != 1 {
		t.Errorf("store calls = %d, want 1", store.calls())
	}

	store.data["u1"] = "Asia/Tokyo"
	clock.Advance(2 * time.Minute)
	tz, _ := r.Get(ctx, "u1")
	if tz != "Asia/Tokyo" {
		t.Errorf("after TTL tz = %q, want Asia/Tokyo", tz)
	}
	if store.calls() != 2 {
		t.Errorf("store calls = %d, want 2", store.calls())
	}
}

func TestSet_RefreshesCache(t *testing.T) {
	store := newMockStore()
	r := newTestResolver(t, store, &mockClock{now: time.Now()})
	ctx := context.Background()

	if _, err := r.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := r.Set(ctx, "u1", "America/New_York"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	tz, _ := r.Get(ctx, "u1")
	if tz != "America/New_York" {
		t.Errorf("tz = %q, want America/New_York", tz)
	}
	if store.calls() != 1 {
		t.Errorf("store calls = %d, want 1 (Set should refresh cache)", store.calls())
	}
}

func TestInvalidate(t *testing.T) {
	store := newMockStore()
	store.data["u1"] = "Europe/Berlin"
	r := newTestResolver(t, store, &mockClock{now: time.Now()})
	ctx := context.Background()

	r.Get(ctx, "u1")
	r.Invalidate("u1")
	r.Get(ctx, "u1")
	if store.calls() != 2 {
		t.Errorf("store calls = %d, want 2 after invalidate", store.calls())
	}
}

func TestResolve_Override(t *testing.T) {
	store := newMockStore()
	r := newTestResolver(t, store, &mockClock{now: time.Now()})
	ctx := context.Background()

	tz, err := r.Resolve(ctx, "u1", "Asia/Tokyo")
	if err != nil || tz != "Asia/Tokyo" {
		t.Errorf("Resolve override = %q, %v", tz, err)
	}
	if store.calls() != 0 {
		t.Errorf("override should not hit the store")
	}
	if _, err := r.Resolve(ctx, "u1", "Bad/Zone"); !schedule.IsKind(err, schedule.KindValidation) {
		t.Errorf("bad override error = %v, want validation", err)
	}
}

func TestGet_StoreErrorIsTransient(t *testing.T) {
	store := newMockStore()
	store.fail = errors.New("database is locked")
	r := newTestResolver(t, store, &mockClock{now: time.Now()})

	if _, err := r.Get(context.Background(), "u1"); !schedule.IsKind(err, schedule.KindTransient) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestGet_Concurrent(t *testing.T) {
	store := newMockStore()
	store.data["u1"] = "Europe/Berlin"
	r := newTestResolver(t, store, &mockClock{now: time.Now()})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tz, err := r.Get(context.Background(), "u1"); err != nil || tz != "Europe/Berlin" {
				t.Errorf("Get = %q, %v", tz, err)
			}
		}()
	}
	wg.Wait()
}
