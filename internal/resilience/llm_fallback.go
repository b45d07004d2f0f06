package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/droidvox/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] over an ordered list of reply
// backends: the hosted primary first, then local ones. A backend that times
// out or errors is given up on for this request and the next one is asked.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend. timeout bounds each primary attempt.
func NewLLMFallback(primary llm.Provider, name string, timeout time.Duration, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(Entry[llm.Provider]{Name: name, Value: primary, Timeout: timeout}, cfg),
	}
}

// AddFallback registers an additional reply backend.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider, timeout time.Duration) {
	f.group.Add(Entry[llm.Provider]{Name: name, Value: provider, Timeout: timeout})
}

// Backends returns the backend names in try order.
func (f *LLMFallback) Backends() []string { return f.group.Names() }

// Complete asks each backend in turn and returns the first reply.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
