// Package textgen runs single-turn text generation through an ADK agent
// backed by a Gemini model.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const appName = "raccordement-assistant"

// ErrEmptyOutput is returned when the model produced no text.
var ErrEmptyOutput = errors.New("model returned no text")

// Config selects the model and the system instruction.
type Config struct {
	APIKey      string
	Model       string
	Instruction string
}

// Generator produces text for a prompt. Calls are serialised.
type Generator struct {
	runner         *runner.Runner
	sessionService session.Service
	runMu          sync.Mutex
}

// New creates the agent and its runner.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	llm, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create model: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "RaccordementAssistant",
		Model:       llm,
		Description: "Writes short French texts for an electrical connection back office.",
		Instruction: cfg.Instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create runner: %w", err)
	}

	return &Generator{runner: r, sessionService: sessionService}, nil
}

// Generate runs the prompt in a throwaway session and returns the trimmed text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	userID := "staff"
	sessionID := uuid.NewString()
	if _, err := g.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("gemini: create session: %w", err)
	}
	defer func() {
		_ = g.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	msg := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}

	var out strings.Builder
	for event, err := range g.runner.Run(ctx, userID, sessionID, msg, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return "", fmt.Errorf("gemini: run: %w", err)
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			out.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}
