package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	leadstransport "raccordement_backend/internal/leads/transport"
	paymentstransport "raccordement_backend/internal/payments/transport"
	requeststransport "raccordement_backend/internal/requests/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type memoryKeys struct {
	keys    map[string]APIKey
	touched int
}

func newMemoryKeys() *memoryKeys { return &memoryKeys{keys: map[string]APIKey{}} }

func (s *memoryKeys) GetByHash(_ context.Context, hash string) (APIKey, error) {
	k, ok := s.keys[hash]
	if !ok || !k.IsActive {
		return APIKey{}, apperr.NotFound("partner API key not found")
	}
	return k, nil
}

func (s *memoryKeys) Touch(context.Context, uuid.UUID) { s.touched++ }

func (s *memoryKeys) Create(_ context.Context, name, hash, prefix string, createdBy *uuid.UUID) (APIKey, error) {
	k := APIKey{ID: uuid.New(), Name: name, KeyHash: hash, KeyPrefix: prefix, IsActive: true, CreatedBy: createdBy, CreatedAt: time.Now()}
	s.keys[hash] = k
	return k, nil
}

func (s *memoryKeys) List(context.Context) ([]APIKey, error) {
	out := make([]APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out, nil
}

func (s *memoryKeys) Revoke(_ context.Context, id uuid.UUID) error {
	for h, k := range s.keys {
		if k.ID == id {
			k.IsActive = false
			s.keys[h] = k
			return nil
		}
	}
	return apperr.NotFound("partner API key not found")
}

// funnel plays leads, requests and payments at once.
type funnel struct {
	started  []leadstransport.StartRequest
	requests map[string]requeststransport.RequestResponse
	links    int
}

func newFunnel() *funnel { return &funnel{requests: map[string]requeststransport.RequestResponse{}} }

func (f *funnel) Start(_ context.Context, req leadstransport.StartRequest) (leadstransport.StartResponse, error) {
	f.started = append(f.started, req)
	return leadstransport.StartResponse{
		SessionToken: "session-" + uuid.NewString(),
		Lead:         leadstransport.FunnelLead{CurrentStep: 1, Status: "new"},
	}, nil
}

func (f *funnel) CompleteForPartner(_ context.Context, _ string, keyID uuid.UUID) (leadstransport.CompleteResponse, error) {
	ref := "RAC-2026-" + uuid.NewString()[:4]
	f.requests[ref] = requeststransport.RequestResponse{
		ID:            uuid.New(),
		Reference:     ref,
		Status:        "pending_payment",
		PaymentStatus: "unpaid",
		AmountCents:   12900,
		Currency:      "EUR",
		Source:        sourcePartner,
		PartnerKeyID:  &keyID,
	}
	return leadstransport.CompleteResponse{Reference: ref, AmountCents: 12900, Currency: "EUR"}, nil
}

func (f *funnel) GetByReference(_ context.Context, ref string) (requeststransport.RequestResponse, error) {
	r, ok := f.requests[ref]
	if !ok {
		return requeststransport.RequestResponse{}, apperr.NotFound("request not found")
	}
	return r, nil
}

func (f *funnel) PaymentLink(_ context.Context, ref string) (paymentstransport.PaymentLinkResponse, error) {
	f.links++
	return paymentstransport.PaymentLinkResponse{Reference: ref, URL: "https://example.test/paiement/" + ref, AmountCents: 12900, Currency: "EUR"}, nil
}

func newPartnerRouter(keys *memoryKeys, f *funnel, limiter *httpkit.KeyedRateLimiter, quota Quota) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Discard()
	h := NewHandler(keys, NewService(f, f, f, log), validator.New(), log)
	if limiter == nil {
		limiter = httpkit.NewKeyedRateLimiter(1000, 1000, nil)
	}
	r := gin.New()
	g := r.Group("/api/partner/v1", APIKeyAuthMiddleware(keys), limiter.RateLimitBy(rateLimitKey), QuotaMiddleware(quota, log))
	g.POST("/leads", h.SubmitLead)
	g.POST("/requests", h.SubmitRequest)
	g.GET("/requests/:reference", h.GetRequest)
	g.POST("/requests/:reference/payment-link", h.PaymentLink)
	return r
}

func seedPartnerKey(t *testing.T, keys *memoryKeys) string {
	t.Helper()
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := keys.Create(context.Background(), "comparateur", hash, prefix, nil); err != nil {
		t.Fatalf("create key: %v", err)
	}
	return plaintext
}

func call(r *gin.Engine, method, path, key string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validSubmission() map[string]any {
	return map[string]any{
		"clientType":     "particulier",
		"connectionType": "nouveau_raccordement",
		"firstName":      "Claire",
		"lastName":       "Martin",
		"email":          "claire.martin@example.fr",
		"phone":          "0612345678",
		"street":         "12 rue des Lilas",
		"postalCode":     "69003",
		"city":           "Lyon",
		"consent":        true,
	}
}

func TestGenerateAPIKeyShape(t *testing.T) {
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(plaintext) != len(keyPrefix)+64 || prefix != plaintext[:11] {
		t.Fatalf("unexpected key %q prefix %q", plaintext, prefix)
	}
	if HashKey(plaintext) != hash {
		t.Fatal("hash does not match plaintext")
	}
}

func TestPartnerRoutesRequireKey(t *testing.T) {
	r := newPartnerRouter(newMemoryKeys(), newFunnel(), nil, nil)
	if w := call(r, http.MethodPost, "/api/partner/v1/leads", "", map[string]any{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/api/partner/v1/leads", "pk_nope", map[string]any{}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key: expected 401, got %d", w.Code)
	}
}

func TestSubmitLeadTagsSource(t *testing.T) {
	keys, f := newMemoryKeys(), newFunnel()
	key := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, nil, nil)

	w := call(r, http.MethodPost, "/api/partner/v1/leads", key, map[string]any{"clientType": "professionnel", "utmSource": "comparateur"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.started) != 1 || f.started[0].Source != sourcePartner {
		t.Fatalf("lead not started with partner source: %+v", f.started)
	}
	if keys.touched != 1 {
		t.Fatalf("expected key usage to be recorded")
	}
}

func TestSubmitRequestAndReadBack(t *testing.T) {
	keys, f := newMemoryKeys(), newFunnel()
	key := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, nil, nil)

	w := call(r, http.MethodPost, "/api/partner/v1/requests", key, validSubmission())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var view RequestView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Reference == "" || view.AmountCents != 12900 {
		t.Fatalf("unexpected view %+v", view)
	}
	if got := f.started[0]; got.Consent == nil || !*got.Consent || got.City == nil || *got.City != "Lyon" {
		t.Fatalf("step data not forwarded: %+v", got.StepData)
	}

	if w := call(r, http.MethodGet, "/api/partner/v1/requests/"+view.Reference, key, nil); w.Code != http.StatusOK {
		t.Fatalf("read back: expected 200, got %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/api/partner/v1/requests/"+view.Reference+"/payment-link", key, nil); w.Code != http.StatusOK {
		t.Fatalf("payment link: expected 200, got %d", w.Code)
	}
	if f.links != 1 {
		t.Fatalf("expected one payment link, got %d", f.links)
	}
}

func TestSubmitRequestRequiresConsent(t *testing.T) {
	keys, f := newMemoryKeys(), newFunnel()
	key := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, nil, nil)

	body := validSubmission()
	body["consent"] = false
	if w := call(r, http.MethodPost, "/api/partner/v1/requests", key, body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(f.started) != 0 {
		t.Fatal("no lead should be created without consent")
	}
}

func TestOtherKeysCannotSeeRequest(t *testing.T) {
	keys, f := newMemoryKeys(), newFunnel()
	owner := seedPartnerKey(t, keys)
	other := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, nil, nil)

	w := call(r, http.MethodPost, "/api/partner/v1/requests", owner, validSubmission())
	var view RequestView
	_ = json.Unmarshal(w.Body.Bytes(), &view)

	if w := call(r, http.MethodGet, "/api/partner/v1/requests/"+view.Reference, other, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another key, got %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/api/partner/v1/requests/"+view.Reference+"/payment-link", other, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another key, got %d", w.Code)
	}
	if f.links != 0 {
		t.Fatal("payment link must not be created for another key")
	}
}

func TestRateLimitIsPerKey(t *testing.T) {
	keys, f := newMemoryKeys(), newFunnel()
	first := seedPartnerKey(t, keys)
	second := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, httpkit.NewKeyedRateLimiter(0, 1, nil), nil)

	if w := call(r, http.MethodPost, "/api/partner/v1/leads", first, map[string]any{}); w.Code != http.StatusCreated {
		t.Fatalf("first call: expected 201, got %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/api/partner/v1/leads", first, map[string]any{}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second call: expected 429, got %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/api/partner/v1/leads", second, map[string]any{}); w.Code != http.StatusCreated {
		t.Fatalf("other key: expected 201, got %d", w.Code)
	}
}

func TestRedisQuotaBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	keys, f := newMemoryKeys(), newFunnel()
	key := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, nil, NewRedisQuota(client, 2))

	for i := 0; i < 2; i++ {
		w := call(r, http.MethodPost, "/api/partner/v1/leads", key, map[string]any{})
		if w.Code != http.StatusCreated {
			t.Fatalf("call %d: expected 201, got %d", i, w.Code)
		}
	}
	w := call(r, http.MethodPost, "/api/partner/v1/leads", key, map[string]any{})
	if w.Code != http.StatusTooManyRequests || w.Header().Get(quotaHeader) != "0" {
		t.Fatalf("expected 429 with empty quota, got %d", w.Code)
	}
}

func TestQuotaFailureLetsRequestThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	keys, f := newMemoryKeys(), newFunnel()
	key := seedPartnerKey(t, keys)
	r := newPartnerRouter(keys, f, nil, NewRedisQuota(client, 1))

	if w := call(r, http.MethodPost, "/api/partner/v1/leads", key, map[string]any{}); w.Code != http.StatusCreated {
		t.Fatalf("expected request to pass when redis is down, got %d", w.Code)
	}
}

func TestAdminKeyLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keys, f := newMemoryKeys(), newFunnel()
	log := logger.Discard()
	h := NewHandler(keys, NewService(f, f, f, log), validator.New(), log)
	adminID := uuid.New()

	r := gin.New()
	admin := r.Group("/admin/partner-keys", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, adminID)
		c.Set(httpkit.ContextRolesKey, []string{"admin"})
	})
	admin.POST("", h.HandleCreateAPIKey)
	admin.GET("", h.HandleListAPIKeys)
	admin.DELETE("/:id", h.HandleRevokeAPIKey)

	w := call(r, http.MethodPost, "/admin/partner-keys", "", map[string]any{"name": "Comparateur énergie"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created CreateAPIKeyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Key == "" || created.KeyPrefix != created.Key[:11] {
		t.Fatalf("plaintext key not returned once: %+v", created)
	}

	w = call(r, http.MethodGet, "/admin/partner-keys", "", nil)
	if w.Code != http.StatusOK || bytes.Contains(w.Body.Bytes(), []byte(created.Key)) {
		t.Fatalf("list must not leak the plaintext key: %s", w.Body.String())
	}

	if w := call(r, http.MethodDelete, "/admin/partner-keys/"+created.ID.String(), "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", w.Code)
	}
	if _, err := keys.GetByHash(context.Background(), HashKey(created.Key)); err == nil {
		t.Fatal("revoked key still resolves")
	}
	if w := call(r, http.MethodDelete, "/admin/partner-keys/"+uuid.NewString(), "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown key: expected 404, got %d", w.Code)
	}
}
