// Package stt defines the Provider interface for speech-to-text backends.
//
// The listening loop segments speech itself, so transcription is a single
// batch call per utterance: the flattened utterance audio goes in, text comes
// out. An empty result is a valid answer meaning "nothing intelligible".
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// Request is one utterance to transcribe.
type Request struct {
	// Audio is the mono utterance audio.
	Audio audio.PCM

	// Language is an ISO 639-1 hint (e.g. "es"). Empty lets the provider
	// use its configured default.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the text spoken in req.Audio. Leading and trailing
	// whitespace is trimmed. A provider that hears nothing returns "" and a
	// nil error.
	Transcribe(ctx context.Context, req Request) (string, error)
}
