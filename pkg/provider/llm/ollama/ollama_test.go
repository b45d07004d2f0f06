package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/droidvox/pkg/provider/llm"
	"github.com/MrWong99/droidvox/pkg/provider/llm/ollama"
)

func TestFormatLlama3(t *testing.T) {
	got := ollama.FormatLlama3("Eres R2-D2.", []llm.Message{
		{Role: llm.RoleUser, Content: "hola"},
		{Role: llm.RoleAssistant, Content: "bip"},
	})
	want := "<|begin_of_text|>" +
		"<|start_header_id|>system<|end_header_id|>\n\nEres R2-D2.<|eot_id|>" +
		"<|start_header_id|>user<|end_header_id|>\n\nhola<|eot_id|>" +
		"<|start_header_id|>assistant<|end_header_id|>\n\nbip<|eot_id|>" +
		"<|start_header_id|>assistant<|end_header_id|>\n\n"
	if got != want {
		t.Errorf("FormatLlama3 =\n%q\nwant\n%q", got, want)
	}
}

type generateBody struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Raw     bool           `json:"raw"`
	Stream  *bool          `json:"stream"`
	Options map[string]any `json:"options"`
}

func newGenerateServer(t *testing.T, reply string, got *generateBody) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3.2",
			"response":          reply,
			"done":              true,
			"prompt_eval_count": 20,
			"eval_count":        5,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_RawRequest(t *testing.T) {
	var body generateBody
	srv := newGenerateServer(t, " Bip. ", &body)
	p, err := ollama.New("llama3.2", ollama.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "persona",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "hola"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Bip." {
		t.Errorf("Content = %q, want %q", resp.Content, "Bip.")
	}
	if resp.Usage.TotalTokens != 25 {
		t.Errorf("TotalTokens = %d, want 25", resp.Usage.TotalTokens)
	}
	if !body.Raw {
		t.Error("request not sent in raw mode")
	}
	if body.Stream == nil || *body.Stream {
		t.Error("request should disable streaming")
	}
	if body.Model != "llama3.2" {
		t.Errorf("model = %q", body.Model)
	}
	if body.Prompt != ollama.FormatLlama3("persona", []llm.Message{{Role: llm.RoleUser, Content: "hola"}}) {
		t.Errorf("prompt = %q", body.Prompt)
	}
	if temp, _ := body.Options["temperature"].(float64); temp != 0.3 {
		t.Errorf("temperature = %v, want 0.3", body.Options["temperature"])
	}
	stop, _ := body.Options["stop"].([]any)
	if len(stop) != 1 || stop[0] != "<|eot_id|>" {
		t.Errorf("stop = %v, want [<|eot_id|>]", body.Options["stop"])
	}
}

func TestComplete_EmptyResponseIsError(t *testing.T) {
	srv := newGenerateServer(t, "  ", nil)
	p, _ := ollama.New("llama3.2", ollama.WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3.2' not found"}`))
	}))
	defer srv.Close()
	p, _ := ollama.New("llama3.2", ollama.WithBaseURL(srv.URL))
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := ollama.New(""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := ollama.New("llama3.2", ollama.WithBaseURL("://bad")); err == nil {
		t.Error("expected error for unparsable URL")
	}
}
