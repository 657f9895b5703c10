package assistant

import (
	"context"
	"strings"
	"time"

	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/metrics"
)

const generateTimeout = 30 * time.Second

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GenerateRequest struct {
	Purpose      string            `json:"purpose" validate:"required,oneof=email_reply lead_summary request_note free"`
	Context      map[string]string `json:"context" validate:"max=30"`
	Instructions string            `json:"instructions" validate:"max=2000"`
}

type GenerateResponse struct {
	Purpose   string `json:"purpose"`
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
}

// Service writes texts with the model when there is one and from
// templates otherwise.
type Service struct {
	gen Generator
	log *logger.Logger
}

// NewService accepts a nil generator.
func NewService(gen Generator, log *logger.Logger) *Service {
	return &Service{gen: gen, log: log}
}

func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if _, ok := purposeInstructions[req.Purpose]; !ok {
		return GenerateResponse{}, apperr.Validation("unknown purpose")
	}
	if req.Purpose == PurposeFree && strings.TrimSpace(req.Instructions) == "" {
		return GenerateResponse{}, apperr.Validation("instructions are required for free generation")
	}
	text, generated := s.generate(ctx, req.Purpose, req.Context, req.Instructions)
	return GenerateResponse{Purpose: req.Purpose, Text: text, Generated: generated}, nil
}

// SummarizeLead is used by the leads module.
func (s *Service) SummarizeLead(ctx context.Context, facts map[string]string) (string, bool) {
	return s.generate(ctx, PurposeLeadSummary, facts, "")
}

func (s *Service) generate(ctx context.Context, purpose string, facts map[string]string, instructions string) (string, bool) {
	if s.gen == nil {
		return fallbackText(purpose, facts), false
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(ctx, buildPrompt(purpose, facts, instructions))
	metrics.ObserveJob("assistant."+purpose, start, err)
	if err != nil {
		s.log.Warn("text generation failed, using template", "purpose", purpose, "error", err)
		return fallbackText(purpose, facts), false
	}
	return text, true
}
