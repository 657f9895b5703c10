package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"raccordement_backend/internal/auth/roles"
	"raccordement_backend/platform/httpkit"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu        sync.Mutex
	dayStart  time.Time
	weekStart time.Time
	month     time.Time
	taskCalls []*uuid.UUID
	failPay   bool
}

func (f *fakeStore) LeadCounts(_ context.Context, dayStart, weekStart time.Time) (int, int, error) {
	f.mu.Lock()
	f.dayStart, f.weekStart = dayStart, weekStart
	f.mu.Unlock()
	return 3, 12, nil
}

func (f *fakeStore) Conversion(context.Context, time.Time) (int, int, error) { return 40, 10, nil }

func (f *fakeStore) RequestsByStatus(context.Context) (map[string]int, error) {
	return map[string]int{"new": 4, "completed": 2}, nil
}

func (f *fakeStore) PaymentsByStatus(context.Context) (map[string]int, error) {
	if f.failPay {
		return nil, errors.New("db down")
	}
	return map[string]int{"paid": 5}, nil
}

func (f *fakeStore) RevenueSince(_ context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	f.month = since
	f.mu.Unlock()
	return 64500, nil
}

func (f *fakeStore) OpenTasks(_ context.Context, assignee *uuid.UUID) (int, error) {
	f.mu.Lock()
	f.taskCalls = append(f.taskCalls, assignee)
	f.mu.Unlock()
	if assignee == nil {
		return 9, nil
	}
	return 2, nil
}

func newTestService(store Store) *Service {
	svc := New(store)
	// Thursday 12 March 2026, 08:30 in Paris.
	svc.now = func() time.Time { return time.Date(2026, 3, 12, 7, 30, 0, 0, time.UTC) }
	return svc
}

func TestStatsForManager(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	stats, err := svc.Stats(context.Background(), httpkit.NewIdentity(uuid.New(), []string{roles.Manager, roles.Agent}))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LeadsToday != 3 || stats.LeadsThisWeek != 12 {
		t.Fatalf("unexpected lead counts %+v", stats)
	}
	if stats.ConversionRate != 25 {
		t.Fatalf("expected 25%% conversion, got %v", stats.ConversionRate)
	}
	if stats.RequestsByStatus["new"] != 4 || stats.PaymentsByStatus["paid"] != 5 {
		t.Fatalf("unexpected breakdowns %+v", stats)
	}
	if stats.RevenueMonthCents != 64500 {
		t.Fatalf("unexpected revenue %d", stats.RevenueMonthCents)
	}
	if stats.OpenTasks != 9 || stats.MyOpenTasks != 2 {
		t.Fatalf("unexpected task counts %+v", stats)
	}

	if got := store.dayStart.Format(time.RFC3339); got != "2026-03-12T00:00:00+01:00" {
		t.Fatalf("day should start at Paris midnight, got %s", got)
	}
	if got := store.weekStart.Format("2006-01-02"); got != "2026-03-09" {
		t.Fatalf("week should start on Monday, got %s", got)
	}
	if got := store.month.Format("2006-01-02"); got != "2026-03-01" {
		t.Fatalf("month should start on the 1st, got %s", got)
	}
}

func TestStatsForAgentOnlyCountsOwnTasks(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	stats, err := svc.Stats(context.Background(), httpkit.NewIdentity(uuid.New(), []string{roles.Agent}))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.OpenTasks != 2 || stats.MyOpenTasks != 2 {
		t.Fatalf("agent should only see own tasks, got %+v", stats)
	}
	for _, a := range store.taskCalls {
		if a == nil {
			t.Fatalf("agent stats must not query all tasks")
		}
	}
}

func TestStatsFailsWhenAQueryFails(t *testing.T) {
	svc := newTestService(&fakeStore{failPay: true})
	if _, err := svc.Stats(context.Background(), httpkit.NewIdentity(uuid.New(), []string{roles.Agent})); err == nil {
		t.Fatalf("expected error")
	}
}
