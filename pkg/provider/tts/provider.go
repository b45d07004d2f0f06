// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider turns one sanitized reply into mono PCM. Replies are short
// (a sentence or two), so synthesis is a single batch call per utterance and
// the result is handed straight to the playback sink.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// ErrEmptyText is returned when Synthesize is called with blank text.
var ErrEmptyText = errors.New("tts: empty text")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech. The returned PCM carries the
	// backend's native sample rate; callers resample if their sink needs to.
	//
	// Returns an error if the backend cannot be reached, produces no audio,
	// or ctx is cancelled first.
	Synthesize(ctx context.Context, text string) (audio.PCM, error)
}
