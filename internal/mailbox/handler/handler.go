package handler

import (
	"net/http"
	"strconv"

	"raccordement_backend/internal/mailbox/service"
	"raccordement_backend/internal/mailbox/transport"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/folders", h.Folders)
	rg.GET("/messages", h.Messages)
	rg.GET("/messages/:uid", h.Message)
}

// Folders handles GET /api/v1/mailbox/folders
func (h *Handler) Folders(c *gin.Context) {
	httpkit.OK(c, h.svc.Folders(c.Request.Context()))
}

// Messages handles GET /api/v1/mailbox/messages
func (h *Handler) Messages(c *gin.Context) {
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid query", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}
	httpkit.OK(c, h.svc.Messages(c.Request.Context(), req))
}

// Message handles GET /api/v1/mailbox/messages/:uid
func (h *Handler) Message(c *gin.Context) {
	uid, err := strconv.Atoi(c.Param("uid"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid message uid", nil)
		return
	}
	res, err := h.svc.Message(c.Request.Context(), c.Query("folder"), uid)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}
