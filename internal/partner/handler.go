package partner

import (
	"context"
	"net/http"
	"strings"

	paymentstransport "raccordement_backend/internal/payments/transport"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyStore is the persistence the admin endpoints need.
type KeyStore interface {
	keyLookup
	Create(ctx context.Context, name, keyHash, prefix string, createdBy *uuid.UUID) (APIKey, error)
	List(ctx context.Context) ([]APIKey, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

type submissions interface {
	SubmitLead(ctx context.Context, keyID uuid.UUID, req SubmitLeadRequest) (LeadResponse, error)
	SubmitRequest(ctx context.Context, keyID uuid.UUID, req SubmitRequest) (RequestView, error)
	GetRequest(ctx context.Context, keyID uuid.UUID, reference string) (RequestView, error)
	PaymentLink(ctx context.Context, keyID uuid.UUID, reference string) (paymentstransport.PaymentLinkResponse, error)
}

type Handler struct {
	keys KeyStore
	svc  submissions
	val  *validator.Validator
	log  *logger.Logger
}

func NewHandler(keys KeyStore, svc submissions, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{keys: keys, svc: svc, val: val, log: log}
}

// ---- Key management (admin) ----

// HandleCreateAPIKey handles POST /api/v1/admin/partner-keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req CreateAPIKeyRequest
	if !h.bind(c, &req) {
		return
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate API key", nil)
		return
	}

	createdBy := identity.UserID()
	key, err := h.keys.Create(c.Request.Context(), strings.TrimSpace(req.Name), hash, prefix, &createdBy)
	if httpkit.HandleError(c, err) {
		return
	}

	h.log.Info("partner key created", "keyId", key.ID, "by", createdBy)
	httpkit.JSON(c, http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toAPIKeyResponse(key),
		Key:            plaintext,
	})
}

// HandleListAPIKeys handles GET /api/v1/admin/partner-keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]APIKeyResponse, len(keys))
	for i, k := range keys {
		out[i] = toAPIKeyResponse(k)
	}
	httpkit.OK(c, out)
}

// HandleRevokeAPIKey handles DELETE /api/v1/admin/partner-keys/:id
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}
	if err := h.keys.Revoke(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	h.log.Info("partner key revoked", "keyId", id)
	c.Status(http.StatusNoContent)
}

// ---- Partner endpoints ----

// SubmitLead handles POST /api/partner/v1/leads
func (h *Handler) SubmitLead(c *gin.Context) {
	keyID, ok := h.keyID(c)
	if !ok {
		return
	}
	var req SubmitLeadRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.SubmitLead(c.Request.Context(), keyID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, res)
}

// SubmitRequest handles POST /api/partner/v1/requests
func (h *Handler) SubmitRequest(c *gin.Context) {
	keyID, ok := h.keyID(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.SubmitRequest(c.Request.Context(), keyID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, res)
}

// GetRequest handles GET /api/partner/v1/requests/:reference
func (h *Handler) GetRequest(c *gin.Context) {
	keyID, ok := h.keyID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetRequest(c.Request.Context(), keyID, c.Param("reference"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

// PaymentLink handles POST /api/partner/v1/requests/:reference/payment-link
func (h *Handler) PaymentLink(c *gin.Context) {
	keyID, ok := h.keyID(c)
	if !ok {
		return
	}
	res, err := h.svc.PaymentLink(c.Request.Context(), keyID, c.Param("reference"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

func (h *Handler) keyID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := keyIDFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "missing API key"})
	}
	return id, ok
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := h.val.Struct(dst); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return false
	}
	return true
}

func toAPIKeyResponse(k APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		IsActive:   k.IsActive,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
	}
}
