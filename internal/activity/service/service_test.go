package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/activity/repository"
	"raccordement_backend/internal/activity/transport"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	inserted   []repository.InsertParams
	insertErr  error
	listParams repository.ListParams
	cutoff     time.Time
}

func (f *fakeStore) Insert(_ context.Context, p repository.InsertParams) error {
	f.inserted = append(f.inserted, p)
	return f.insertErr
}

func (f *fakeStore) List(_ context.Context, p repository.ListParams) ([]repository.Log, int, error) {
	f.listParams = p
	return []repository.Log{{ID: uuid.New(), Action: "lead.assigned", EntityType: audit.EntityLead}}, 41, nil
}

func (f *fakeStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestRecordSerialisesDetails(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, logger.Discard())
	actor := uuid.New()

	svc.Record(context.Background(), audit.Entry{
		ActorID:    &actor,
		Action:     "request.status_changed",
		EntityType: audit.EntityRequest,
		EntityID:   "RAC-2026-ABC123",
		Details:    map[string]any{"from": "new", "to": "validated"},
	})

	if len(store.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.inserted))
	}
	got := store.inserted[0]
	if got.ActorID == nil || *got.ActorID != actor {
		t.Fatal("actor not preserved")
	}
	var details map[string]string
	if err := json.Unmarshal(got.Details, &details); err != nil || details["to"] != "validated" {
		t.Fatalf("unexpected details %s", got.Details)
	}
	if got.IPAddress != nil {
		t.Fatal("no IP expected outside a request")
	}
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("db down")}
	svc := New(store, logger.Discard())

	svc.Record(context.Background(), audit.Entry{Action: "payment.paid", EntityType: audit.EntityPayment})
	if len(store.inserted) != 1 {
		t.Fatal("insert should have been attempted")
	}
}

func TestListClampsPagination(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, logger.Discard())

	resp, err := svc.List(context.Background(), transport.ListRequest{Page: 0, PageSize: 500, EntityType: "lead"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.listParams.Limit != 100 || store.listParams.Offset != 0 {
		t.Fatalf("unexpected paging %+v", store.listParams)
	}
	if store.listParams.EntityType == nil || *store.listParams.EntityType != "lead" {
		t.Fatal("entity type filter not forwarded")
	}
	if store.listParams.EntityID != nil {
		t.Fatal("empty filters must be nil")
	}
	if resp.Total != 41 || resp.TotalPages != 1 || len(resp.Items) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPurgeUsesRetention(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, logger.Discard())

	n, err := svc.Purge(context.Background(), 90*24*time.Hour)
	if err != nil || n != 3 {
		t.Fatalf("purge: %d %v", n, err)
	}
	age := time.Since(store.cutoff)
	if age < 89*24*time.Hour || age > 91*24*time.Hour {
		t.Fatalf("unexpected cutoff %s", store.cutoff)
	}
}
