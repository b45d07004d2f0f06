// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: audio.Silence(time.Second, 22050)}
//	pcm, _ := p.Synthesize(ctx, "hola")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from every successful Synthesize call.
	Result audio.PCM

	// Err, if non-nil, is returned from Synthesize.
	Err error

	// SynthesizeFunc, if set, overrides Result and Err.
	SynthesizeFunc func(ctx context.Context, text string) (audio.PCM, error)

	texts []string
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.PCM, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	fn, res, err := p.SynthesizeFunc, p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return res, err
}

// Texts returns a copy of every text passed to Synthesize, in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = nil
}
