package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/droidvox/internal/memory"
	"github.com/MrWong99/droidvox/pkg/provider/llm"
)

// Responder turns the conversation window into a reply through an
// [llm.Provider], usually a resilience.LLMFallback chaining the hosted
// primary and the local backend.
type Responder struct {
	provider    llm.Provider
	persona     string
	maxTokens   int
	temperature float64
}

// NewResponder returns a responder injecting persona as the system prompt.
// Zero maxTokens or temperature leave the backend defaults.
func NewResponder(p llm.Provider, persona string, maxTokens int, temperature float64) *Responder {
	return &Responder{provider: p, persona: persona, maxTokens: maxTokens, temperature: temperature}
}

// Respond asks the backend for the next assistant turn after window.
func (r *Responder) Respond(ctx context.Context, window []memory.Turn) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: r.persona,
		Messages:     toMessages(window),
		MaxTokens:    r.maxTokens,
		Temperature:  r.temperature,
	}
	resp, err := r.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("orchestrator: respond: %w", err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("orchestrator: respond: %w", llm.ErrEmptyResponse)
	}
	return reply, nil
}

func toMessages(window []memory.Turn) []llm.Message {
	msgs := make([]llm.Message, len(window))
	for i, t := range window {
		role := llm.RoleUser
		if t.Role == memory.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs[i] = llm.Message{Role: role, Content: t.Text}
	}
	return msgs
}
