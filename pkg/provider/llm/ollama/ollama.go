// Package ollama provides an LLM provider backed by a local Ollama server.
//
// Unlike chat-style providers it talks to the raw /api/generate endpoint and
// renders the conversation itself with the Llama 3 header template, so the
// prompt the model sees is byte-for-byte predictable regardless of the chat
// template baked into the Ollama model file.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/MrWong99/droidvox/pkg/provider/llm"
)

// Llama 3 prompt template tokens.
const (
	beginOfText = "<|begin_of_text|>"
	startHeader = "<|start_header_id|>"
	endHeader   = "<|end_header_id|>"
	endOfTurn   = "<|eot_id|>"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	defaultTemperature = 0.3
	defaultTimeout     = 60 * time.Second
)

// Provider implements llm.Provider using Ollama's raw generate API.
type Provider struct {
	client      *api.Client
	model       string
	temperature float64
}

var _ llm.Provider = (*Provider)(nil)

type config struct {
	baseURL     string
	timeout     time.Duration
	temperature float64
	httpClient  *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL sets the Ollama server URL. Defaults to http://localhost:11434.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithTimeout sets the HTTP timeout. Defaults to 60 s; local models are slow
// to load on first use.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithTemperature sets the sampling temperature used when a request does not
// carry one. Defaults to 0.3.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithHTTPClient replaces the HTTP client. WithTimeout is ignored when set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New creates an Ollama provider for model (e.g. "llama3.2").
func New(model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama: model must not be empty")
	}
	cfg := &config{
		baseURL:     defaultBaseURL,
		timeout:     defaultTimeout,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(cfg)
	}
	base, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse base URL %q: %w", cfg.baseURL, err)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	return &Provider{
		client:      api.NewClient(base, hc),
		model:       model,
		temperature: cfg.temperature,
	}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	stream := false
	temp := req.Temperature
	if temp == 0 {
		temp = p.temperature
	}
	stop := req.Stop
	if len(stop) == 0 {
		stop = []string{endOfTurn}
	}
	options := map[string]any{
		"temperature": temp,
		"stop":        stop,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	genReq := &api.GenerateRequest{
		Model:   p.model,
		Prompt:  FormatLlama3(req.SystemPrompt, req.Messages),
		Raw:     true,
		Stream:  &stream,
		Options: options,
	}

	var (
		sb    strings.Builder
		usage llm.Usage
	)
	err := p.client.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		if resp.Done {
			usage = llm.Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: generate: %w", err)
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, fmt.Errorf("ollama: %w", llm.ErrEmptyResponse)
	}
	return &llm.CompletionResponse{Content: content, Usage: usage}, nil
}

// FormatLlama3 renders a persona and conversation window with the Llama 3
// header template, ending with an open assistant header so the model
// continues as the assistant.
func FormatLlama3(system string, msgs []llm.Message) string {
	var sb strings.Builder
	sb.WriteString(beginOfText)
	writeTurn(&sb, llm.RoleSystem, system)
	for _, m := range msgs {
		writeTurn(&sb, m.Role, m.Content)
	}
	sb.WriteString(startHeader + llm.RoleAssistant + endHeader + "\n\n")
	return sb.String()
}

func writeTurn(sb *strings.Builder, role, text string) {
	sb.WriteString(startHeader)
	sb.WriteString(role)
	sb.WriteString(endHeader)
	sb.WriteString("\n\n")
	sb.WriteString(text)
	sb.WriteString(endOfTurn)
}
