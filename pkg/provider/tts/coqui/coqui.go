// Package coqui provides a tts.Provider backed by a locally running Coqui TTS
// server, reached over its REST API.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is GET /api/tts with URL query
//     parameters.
//
//   - APIModeXTTS: the Coqui XTTS v2 API server. Synthesis is
//     POST /tts_to_audio/ with a JSON body and requires a speaker.
//
// Both servers answer with a complete WAV file, which is decoded to mono PCM.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002", coqui.WithLanguage("es"))
//	pcm, err := p.Synthesize(ctx, "Hola, humano.")
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/audio/clip"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "es"
	defaultTimeout  = 30 * time.Second
	xttsEndpoint    = "/tts_to_audio/"
	apiTTSEndpoint  = "/api/tts"
)

// APIMode selects which Coqui server API the provider targets.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server. Defaults to "es".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSpeaker sets the speaker: a speaker_id for multi-speaker standard
// models, or the speaker_wav name in XTTS mode.
func WithSpeaker(speaker string) Option {
	return func(p *Provider) {
		p.speaker = speaker
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. APIModeStandard is the default.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// Provider implements tts.Provider backed by a Coqui TTS server.
// It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	speaker    string
	apiMode    APIMode
	httpClient *http.Client
}

// New creates a Provider for the server at serverURL
// (e.g. "http://localhost:5002").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.apiMode != APIModeStandard && p.apiMode != APIModeXTTS {
		return nil, fmt.Errorf("coqui: unknown api mode %q", p.apiMode)
	}
	if p.apiMode == APIModeXTTS && p.speaker == "" {
		return nil, errors.New("coqui: a speaker is required in xtts mode")
	}
	return p, nil
}

// xttsRequest is the JSON body sent to POST /tts_to_audio/.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.PCM, error) {
	if strings.TrimSpace(text) == "" {
		return audio.PCM{}, tts.ErrEmptyText
	}

	var (
		req *http.Request
		err error
	)
	if p.apiMode == APIModeXTTS {
		req, err = p.xttsRequest(ctx, text)
	} else {
		req, err = p.standardRequest(ctx, text)
	}
	if err != nil {
		return audio.PCM{}, err
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return audio.PCM{}, fmt.Errorf("coqui: %s %s returned status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	pcm, err := clip.DecodeWAV(wav)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("coqui: %w", err)
	}
	if pcm.Empty() {
		return audio.PCM{}, errors.New("coqui: server returned no audio")
	}
	return pcm, nil
}

func (p *Provider) standardRequest(ctx context.Context, text string) (*http.Request, error) {
	params := url.Values{}
	params.Set("text", text)
	if p.speaker != "" {
		params.Set("speaker_id", p.speaker)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	return req, nil
}

func (p *Provider) xttsRequest(ctx context.Context, text string) (*http.Request, error) {
	data, err := json.Marshal(xttsRequest{Text: text, SpeakerWav: p.speaker, Language: p.language})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+xttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
