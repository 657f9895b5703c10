package exports

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type memoryStore struct {
	keys     map[string]APIKey
	events   []ConversionEvent
	exported map[string]struct{}
	recorded []ExportRecord
	touched  []uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]APIKey{}, exported: map[string]struct{}{}}
}

func (s *memoryStore) GetAPIKeyByHash(_ context.Context, hash string) (APIKey, error) {
	key, ok := s.keys[hash]
	if !ok || !key.IsActive {
		return APIKey{}, apperr.NotFound("export credential not found")
	}
	return key, nil
}

func (s *memoryStore) CreateAPIKey(_ context.Context, name, hash, prefix string, createdBy *uuid.UUID) (APIKey, error) {
	key := APIKey{ID: uuid.New(), Name: name, KeyHash: hash, KeyPrefix: prefix, IsActive: true, CreatedBy: createdBy, CreatedAt: time.Now()}
	s.keys[hash] = key
	return key, nil
}

func (s *memoryStore) ListAPIKeys(context.Context) ([]APIKey, error) {
	out := make([]APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out, nil
}

func (s *memoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	for hash, k := range s.keys {
		if k.ID == id {
			k.IsActive = false
			s.keys[hash] = k
			return nil
		}
	}
	return apperr.NotFound("export credential not found")
}

func (s *memoryStore) TouchAPIKey(_ context.Context, id uuid.UUID) { s.touched = append(s.touched, id) }

func (s *memoryStore) ListConversionEvents(context.Context, time.Time, time.Time, int) ([]ConversionEvent, error) {
	return s.events, nil
}

func (s *memoryStore) ListExportedKeys(_ context.Context, orderIDs []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, id := range orderIDs {
		k := exportKey(id, conversionPaidRequest)
		if _, ok := s.exported[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (s *memoryStore) RecordExports(_ context.Context, rows []ExportRecord) error {
	for _, r := range rows {
		s.exported[exportKey(r.OrderID, r.ConversionName)] = struct{}{}
	}
	s.recorded = append(s.recorded, rows...)
	return nil
}

func newTestRouter(store *memoryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, validator.New(), logger.Discard())
	r := gin.New()
	g := r.Group("/exports", APIKeyAuthMiddleware(store))
	g.GET("/google-ads/conversions.csv", h.ExportGoogleAdsCSV)
	return r
}

func seedKey(t *testing.T, store *memoryStore) string {
	t.Helper()
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := store.CreateAPIKey(context.Background(), "ads", hash, prefix, nil); err != nil {
		t.Fatalf("create key: %v", err)
	}
	return plaintext
}

func download(r *gin.Engine, key, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/exports/google-ads/conversions.csv"+query, nil)
	if key != "" {
		req.Header.Set("X-Export-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExportRequiresValidKey(t *testing.T) {
	store := newMemoryStore()
	r := newTestRouter(store)

	if w := download(r, "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", w.Code)
	}
	if w := download(r, "gads_wrong", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", w.Code)
	}
}

func TestExportWritesPaidConversionsOnce(t *testing.T) {
	store := newMemoryStore()
	key := seedKey(t, store)
	store.events = []ConversionEvent{
		{RequestID: uuid.New(), Reference: "RAC-2026-0001", GCLID: "gclid-1", Email: "Jean.Dupont@gmail.com", Phone: "06 12 34 56 78", AmountCents: 12900, PaidAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{RequestID: uuid.New(), Reference: "RAC-2026-0002", GCLID: "", AmountCents: 12900, PaidAt: time.Now()},
	}
	r := newTestRouter(store)

	w := download(r, key, "?enhanced=true")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	records, err := readCSV(w.Body.String())
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected params, header and one row, got %d lines", len(records))
	}
	if records[0][0] != "Parameters:TimeZone=Europe/Paris" {
		t.Fatalf("unexpected parameters line %q", records[0][0])
	}
	if len(records[1]) != 8 || records[1][0] != "Google Click ID" || records[1][7] != "Phone Number" {
		t.Fatalf("unexpected header %v", records[1])
	}
	row := records[2]
	if len(row) != 8 {
		t.Fatalf("expected eight columns, got %v", row)
	}
	if row[0] != "gclid-1" || row[1] != conversionPaidRequest || row[3] != "129.00" || row[5] != "RAC-2026-0001" {
		t.Fatalf("unexpected row %v", row)
	}
	if row[2] != "2026-03-02 10:00:00+0100" {
		t.Fatalf("conversion time not in Paris time: %q", row[2])
	}
	if row[6] != hashEmail("jeandupont@gmail.com") || row[7] != sha256Sum("+33612345678") {
		t.Fatalf("enhanced columns not hashed as expected: %v", row[6:])
	}
	if len(store.touched) != 1 {
		t.Fatalf("expected key usage to be recorded")
	}

	again := download(r, key, "")
	records, err = readCSV(again.Body.String())
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("second export should only contain headers, got %d lines", len(records))
	}
}

// readCSV accepts the one-field parameters line ahead of the header.
func readCSV(body string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func TestExportRejectsBadParameters(t *testing.T) {
	store := newMemoryStore()
	key := seedKey(t, store)
	r := newTestRouter(store)

	if w := download(r, key, "?fromDate=2026-05-01&toDate=2026-04-01"); w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", w.Code)
	}
	if w := download(r, key, "?timezone=Mars/Olympus"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad timezone: expected 400, got %d", w.Code)
	}
}

func TestRevokedKeyIsRejected(t *testing.T) {
	store := newMemoryStore()
	key := seedKey(t, store)
	for _, k := range store.keys {
		if err := store.RevokeAPIKey(context.Background(), k.ID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
	}
	if w := download(newTestRouter(store), key, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revoke, got %d", w.Code)
	}
}

func TestParseLimitClamps(t *testing.T) {
	cases := map[string]int{"": 5000, "abc": 5000, "0": 5000, "10": 10, "999999": 50000}
	for raw, want := range cases {
		if got := parseLimit(raw, 5000, 50000); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestHashPhoneSkipsInvalidNumbers(t *testing.T) {
	if got := hashPhone("not a phone"); got != "" {
		t.Fatalf("expected empty hash, got %q", got)
	}
}
