package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/droidvox/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] over an ordered list of transcription
// backends, e.g. a whisper server with the in-process model behind it.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, name string, timeout time.Duration, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(Entry[stt.Provider]{Name: name, Value: primary, Timeout: timeout}, cfg),
	}
}

// AddFallback registers an additional transcription backend.
func (f *STTFallback) AddFallback(name string, provider stt.Provider, timeout time.Duration) {
	f.group.Add(Entry[stt.Provider]{Name: name, Value: provider, Timeout: timeout})
}

// Transcribe returns the first backend's successful transcript.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p stt.Provider) (string, error) {
		return p.Transcribe(ctx, req)
	})
}
