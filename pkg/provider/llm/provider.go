// Package llm defines the Provider interface for language-model backends that
// generate the droid's replies.
//
// A provider turns a persona (system prompt) plus a short conversation window
// into a single reply. Replies are short and consumed whole, so there is no
// streaming API. How the conversation is serialised is the provider's
// business: chat APIs receive structured messages, raw completion endpoints
// receive a template-rendered prompt.
//
// Implementors must be safe for concurrent use and must return promptly when
// ctx is cancelled.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answered successfully but
// produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation history.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the text of the turn.
	Content string
}

// Usage holds token accounting information returned by the backend. Backends
// that do not report usage leave it zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// SystemPrompt is the persona, injected ahead of Messages.
	SystemPrompt string

	// Messages is the ordered conversation window, oldest first.
	Messages []Message

	// Temperature controls output randomness. Zero uses the backend default.
	Temperature float64

	// MaxTokens caps the reply length. Zero uses the backend default.
	MaxTokens int

	// Stop lists sequences that end generation. Backends without stop
	// support ignore it.
	Stop []string
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any reply-generating backend.
type Provider interface {
	// Complete sends req to the model and waits for the full reply.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
