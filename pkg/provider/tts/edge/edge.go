// Package edge provides a tts.Provider backed by Microsoft Edge's online
// read-aloud service through github.com/wujunwei928/edge-tts-go.
//
// The service answers with MP3, which is decoded to mono PCM with go-mp3.
// No API key is needed; a network connection is.
package edge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/audio/clip"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// DefaultVoice is a Castilian Spanish neural voice.
const DefaultVoice = "es-ES-AlvaroNeural"

var _ tts.Provider = (*Provider)(nil)

// synthFunc renders text with voice and returns the encoded MP3.
type synthFunc func(voice, text string) ([]byte, error)

// Option is a functional option for configuring an edge Provider.
type Option func(*Provider)

// WithVoice selects the voice short name (e.g. "es-MX-JorgeNeural").
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithRate sets the speaking rate as a signed percentage (e.g. "+10%").
func WithRate(rate string) Option {
	return func(p *Provider) {
		p.rate = rate
	}
}

// Provider implements tts.Provider against the Edge read-aloud service.
type Provider struct {
	voice string
	rate  string
	synth synthFunc
}

// New creates an edge Provider.
func New(opts ...Option) *Provider {
	p := &Provider{voice: DefaultVoice}
	for _, o := range opts {
		o(p)
	}
	p.synth = p.synthesizeMP3
	return p
}

// communicator prepares one read-aloud request. Options are validated here;
// no connection is opened until Stream.
func (p *Provider) communicator(voice, text string) (*edge_tts.Communicate, error) {
	opts := []edge_tts.CommunicateOption{edge_tts.SetVoice(voice)}
	if p.rate != "" {
		opts = append(opts, edge_tts.SetRate(p.rate))
	}
	c, err := edge_tts.NewCommunicate(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("create communicator: %w", err)
	}
	return c, nil
}

func (p *Provider) synthesizeMP3(voice, text string) ([]byte, error) {
	c, err := p.communicator(voice, text)
	if err != nil {
		return nil, err
	}
	return c.Stream()
}

type synthResult struct {
	mp3 []byte
	err error
}

// Synthesize implements tts.Provider. The underlying client has no context
// support, so a cancelled ctx abandons the request rather than aborting it.
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.PCM, error) {
	if strings.TrimSpace(text) == "" {
		return audio.PCM{}, tts.ErrEmptyText
	}

	done := make(chan synthResult, 1)
	go func() {
		mp3, err := p.synth(p.voice, text)
		done <- synthResult{mp3: mp3, err: err}
	}()

	var res synthResult
	select {
	case <-ctx.Done():
		return audio.PCM{}, fmt.Errorf("edge: %w", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return audio.PCM{}, fmt.Errorf("edge: synthesize: %w", res.err)
	}
	if len(res.mp3) == 0 {
		return audio.PCM{}, errors.New("edge: service returned no audio")
	}

	pcm, err := clip.DecodeMP3(bytes.NewReader(res.mp3))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("edge: %w", err)
	}
	return pcm, nil
}
