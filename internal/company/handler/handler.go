package handler

import (
	"raccordement_backend/internal/company/service"
	"raccordement_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Lookup handles GET /api/v1/public/company/:identifier
func (h *Handler) Lookup(c *gin.Context) {
	company, err := h.svc.Lookup(c.Request.Context(), c.Param("identifier"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, company)
}
