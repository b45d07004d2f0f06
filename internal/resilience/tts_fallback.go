package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] over an ordered list of synthesis
// backends, e.g. the online edge voice with local piper behind it.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, name string, timeout time.Duration, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(Entry[tts.Provider]{Name: name, Value: primary, Timeout: timeout}, cfg),
	}
}

// AddFallback registers an additional synthesis backend.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider, timeout time.Duration) {
	f.group.Add(Entry[tts.Provider]{Name: name, Value: provider, Timeout: timeout})
}

// Synthesize returns audio from the first backend that produces it.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) (audio.PCM, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p tts.Provider) (audio.PCM, error) {
		return p.Synthesize(ctx, text)
	})
}
