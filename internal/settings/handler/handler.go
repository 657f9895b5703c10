package handler

import (
	"net/http"

	"raccordement_backend/internal/settings/service"
	"raccordement_backend/internal/settings/transport"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// ListConfigs handles GET /api/v1/settings/configs
func (h *Handler) ListConfigs(c *gin.Context) {
	result, err := h.svc.ListConfigs(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SetConfig handles PUT /api/v1/settings/configs/:key
func (h *Handler) SetConfig(c *gin.Context) {
	var req transport.SetConfigRequest
	if !h.bind(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.SetConfig(c.Request.Context(), identity.UserID(), c.Param("key"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListTemplates handles GET /api/v1/settings/email-templates
func (h *Handler) ListTemplates(c *gin.Context) {
	result, err := h.svc.ListTemplates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetTemplate handles GET /api/v1/settings/email-templates/:id
func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.GetTemplate(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateTemplate handles POST /api/v1/settings/email-templates
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req transport.CreateTemplateRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.CreateTemplate(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// UpdateTemplate handles PUT /api/v1/settings/email-templates/:id
func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateTemplateRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.UpdateTemplate(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteTemplate handles DELETE /api/v1/settings/email-templates/:id
func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteTemplate(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// PreviewTemplate handles POST /api/v1/settings/email-templates/:id/preview
func (h *Handler) PreviewTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.PreviewRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}
	result, err := h.svc.PreviewTemplate(c.Request.Context(), id, req.Variables)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// TestTemplate handles POST /api/v1/settings/email-templates/:id/test
func (h *Handler) TestTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	to, err := h.svc.SendTestTemplate(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"message": "test email sent", "to": to})
}

// ListAnimations handles GET /api/v1/settings/animations
func (h *Handler) ListAnimations(c *gin.Context) {
	result, err := h.svc.ListAnimations(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// PublicAnimations handles GET /api/v1/public/animations
func (h *Handler) PublicAnimations(c *gin.Context) {
	result, err := h.svc.PublicAnimations(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	httpkit.OK(c, result)
}

// GetAnimation handles GET /api/v1/settings/animations/:id
func (h *Handler) GetAnimation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.svc.GetAnimation(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateAnimation handles POST /api/v1/settings/animations
func (h *Handler) CreateAnimation(c *gin.Context) {
	var req transport.CreateAnimationRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.CreateAnimation(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// UpdateAnimation handles PATCH /api/v1/settings/animations/:id
func (h *Handler) UpdateAnimation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.UpdateAnimationRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.svc.UpdateAnimation(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteAnimation handles DELETE /api/v1/settings/animations/:id
func (h *Handler) DeleteAnimation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteAnimation(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}
