// Package assistant drafts emails, lead summaries and internal notes with
// Gemini, falling back to French templates.
package assistant

import (
	"context"

	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/ai/textgen"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"
)

type Module struct {
	service *Service
	handler *Handler
}

func NewModule(ctx context.Context, cfg config.AIConfig, val *validator.Validator, log *logger.Logger) *Module {
	var gen Generator
	if cfg.IsAIEnabled() {
		g, err := textgen.New(ctx, textgen.Config{
			APIKey:      cfg.GetGeminiAPIKey(),
			Model:       cfg.GetGeminiModel(),
			Instruction: Instruction,
		})
		if err != nil {
			log.Warn("assistant model unavailable, using templates", "error", err)
		} else {
			gen = g
		}
	} else {
		log.Info("GEMINI_API_KEY not set, assistant uses templates")
	}
	svc := NewService(gen, log)
	return &Module{service: svc, handler: NewHandler(svc, val)}
}

func (m *Module) Name() string { return "assistant" }

// Service is handed to the leads module for summaries.
func (m *Module) Service() *Service { return m.service }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/ai/generate", m.handler.Generate)
}

var _ apphttp.Module = (*Module)(nil)
