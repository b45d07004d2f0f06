// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary, which exposes
// POST /inference and accepts a WAV upload as multipart/form-data.
// [NativeProvider] links whisper.cpp directly through its CGO bindings and
// runs inference in-process.
//
// whisper.cpp expects 16 kHz mono input; both providers resample other rates.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("es"))
//	text, err := p.Transcribe(ctx, stt.Request{Audio: utterance})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/audio/clip"
	"github.com/MrWong99/droidvox/pkg/provider/stt"
)

const (
	// modelSampleRate is the only input rate whisper.cpp models accept.
	modelSampleRate = 16000

	defaultLanguage = "es"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language code sent with every request when
// the request carries none. Defaults to "es".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the HTTP client. The default has a 30 s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe encodes the utterance as a 16 kHz WAV file and posts it to the
// /inference endpoint.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	if req.Audio.Empty() {
		return "", nil
	}
	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	wav := clip.EncodeWAV(toModelRate(req.Audio))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := map[string]string{
		"language":        lang,
		"model":           p.model,
		"response_format": "json",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

func toModelRate(pcm audio.PCM) audio.PCM {
	if pcm.SampleRate == modelSampleRate || pcm.SampleRate <= 0 {
		return audio.PCM{Samples: pcm.Samples, SampleRate: modelSampleRate}
	}
	return audio.PCM{
		Samples:    audio.Resample(pcm.Samples, pcm.SampleRate, modelSampleRate),
		SampleRate: modelSampleRate,
	}
}
