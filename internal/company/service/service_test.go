package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"raccordement_backend/internal/company/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
)

type fakeRegistry struct {
	calls   int
	company *transport.Company
	err     error
}

func (f *fakeRegistry) Lookup(context.Context, string) (*transport.Company, error) {
	f.calls++
	return f.company, f.err
}

func TestLookupRejectsBadChecksumWithoutCallingOut(t *testing.T) {
	reg := &fakeRegistry{}
	svc := New(reg, logger.Discard())

	for _, id := range []string{"552032535", "12345", "55203253400647", "abcdefghi"} {
		_, err := svc.Lookup(context.Background(), id)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", id, err)
		}
	}
	if reg.calls != 0 {
		t.Fatalf("registry must not be called, got %d calls", reg.calls)
	}
}

func TestLookupNormalizesAndCaches(t *testing.T) {
	reg := &fakeRegistry{company: &transport.Company{SIREN: "552032534", Name: "DANONE", Active: true}}
	svc := New(reg, logger.Discard())

	for i := 0; i < 3; i++ {
		company, err := svc.Lookup(context.Background(), "552 032 534")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if company.Name != "DANONE" {
			t.Fatalf("unexpected company %+v", company)
		}
	}
	if reg.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", reg.calls)
	}

	svc.now = func() time.Time { return time.Now().Add(cacheTTL + time.Minute) }
	if _, err := svc.Lookup(context.Background(), "552032534"); err != nil {
		t.Fatalf("lookup after expiry: %v", err)
	}
	if reg.calls != 2 {
		t.Fatalf("expected cache expiry to refetch, got %d calls", reg.calls)
	}
}

func TestLookupNotFoundIsCached(t *testing.T) {
	reg := &fakeRegistry{}
	svc := New(reg, logger.Discard())

	for i := 0; i < 2; i++ {
		if _, err := svc.Lookup(context.Background(), "73282932000074"); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if reg.calls != 1 {
		t.Fatalf("expected negative result cached, got %d calls", reg.calls)
	}
}

func TestLookupUpstreamFailureIsUnavailable(t *testing.T) {
	svc := New(&fakeRegistry{err: errors.New("timeout")}, logger.Discard())
	if _, err := svc.Lookup(context.Background(), "732829320"); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestCacheIsBoundedAndDropsExpiredEntries(t *testing.T) {
	reg := &fakeRegistry{company: &transport.Company{Name: "ACME", Active: true}}
	svc := newService(reg, logger.Discard(), 2)
	ctx := context.Background()

	for _, id := range []string{"552032534", "732829320", "542051180"} {
		if _, err := svc.Lookup(ctx, id); err != nil {
			t.Fatalf("lookup %s: %v", id, err)
		}
	}
	if n := svc.cache.Len(); n != 2 {
		t.Fatalf("expected cache capped at 2, got %d", n)
	}
	if _, err := svc.Lookup(ctx, "552032534"); err != nil {
		t.Fatalf("lookup evicted: %v", err)
	}
	if reg.calls != 4 {
		t.Fatalf("expected the oldest entry to be evicted, got %d calls", reg.calls)
	}

	svc.now = func() time.Time { return time.Now().Add(cacheTTL + time.Minute) }
	if _, ok := svc.fromCache("552032534"); ok {
		t.Fatal("expired entry served")
	}
	if svc.cache.Contains("552032534") {
		t.Fatal("expired entry kept in cache")
	}
}
