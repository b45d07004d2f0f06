// Package mock provides a test double for [stt.Provider].
//
// Example:
//
//	p := &mock.Provider{Text: "hola"}
//	text, _ := p.Transcribe(ctx, stt.Request{Audio: pcm})
//	calls := p.Calls()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/droidvox/pkg/provider/stt"
)

// Provider is a mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Err is nil.
	Text string

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// TranscribeFunc, if set, overrides Text and Err.
	TranscribeFunc func(ctx context.Context, req stt.Request) (string, error)

	calls []stt.Request
}

// Transcribe records the call and returns Text, Err.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	fn, text, err := p.TranscribeFunc, p.Text, p.Err
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return text, err
}

// Calls returns a copy of every request passed to Transcribe.
func (p *Provider) Calls() []stt.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stt.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

var _ stt.Provider = (*Provider)(nil)
