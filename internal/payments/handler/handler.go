package handler

import (
	"io"
	"net/http"

	"raccordement_backend/internal/payments/service"
	"raccordement_backend/internal/payments/transport"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid payment id"

	maxWebhookBytes = 64 << 10
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// CreateIntent handles POST /api/v1/public/requests/:reference/payment-intent
func (h *Handler) CreateIntent(c *gin.Context) {
	result, err := h.svc.CreateIntent(c.Request.Context(), c.Param("reference"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Status handles GET /api/v1/public/payments/:paymentId/status
func (h *Handler) Status(c *gin.Context) {
	result, err := h.svc.Status(c.Request.Context(), c.Param("paymentId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Webhook handles POST /api/v1/webhooks/stripe
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "payload too large", nil)
		return
	}
	if httpkit.HandleError(c, h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))) {
		return
	}
	httpkit.OK(c, gin.H{"received": true})
}

// List handles GET /api/v1/payments
func (h *Handler) List(c *gin.Context) {
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get handles GET /api/v1/payments/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Refund handles POST /api/v1/payments/:id/refund
func (h *Handler) Refund(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	result, err := h.svc.Refund(c.Request.Context(), identity.UserID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Receipt handles GET /api/v1/payments/:id/receipt
func (h *Handler) Receipt(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	out, name, err := h.svc.Receipt(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", out)
}
