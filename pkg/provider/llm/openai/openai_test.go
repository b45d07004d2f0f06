package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/droidvox/pkg/provider/llm"
)

// TestConvertMessage checks that each role maps to the matching SDK union arm.
func TestConvertMessage(t *testing.T) {
	tests := []struct {
		role  string
		check func(t *testing.T, role string)
	}{
		{llm.RoleSystem, func(t *testing.T, role string) {
			p, err := convertMessage(llm.Message{Role: role, Content: "x"})
			if err != nil || p.OfSystem == nil {
				t.Fatalf("system: param=%+v err=%v", p, err)
			}
		}},
		{llm.RoleUser, func(t *testing.T, role string) {
			p, err := convertMessage(llm.Message{Role: role, Content: "x"})
			if err != nil || p.OfUser == nil {
				t.Fatalf("user: param=%+v err=%v", p, err)
			}
		}},
		{llm.RoleAssistant, func(t *testing.T, role string) {
			p, err := convertMessage(llm.Message{Role: role, Content: "x"})
			if err != nil || p.OfAssistant == nil {
				t.Fatalf("assistant: param=%+v err=%v", p, err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) { tt.check(t, tt.role) })
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles are rejected.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(llm.Message{Role: "tool"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

// TestBuildParams_SystemFirst checks that the persona precedes the window.
func TestBuildParams_SystemFirst(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Eres R2-D2.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hola"},
			{Role: llm.RoleAssistant, Content: "bip"},
		},
		MaxTokens: 60,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message is not the system prompt")
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 60 {
		t.Errorf("MaxCompletionTokens = %+v, want 60", params.MaxCompletionTokens)
	}
}

// newChatServer fakes POST /chat/completions with a fixed reply.
func newChatServer(t *testing.T, status int, content string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "gpt-4o-mini" {
			http.Error(w, "bad model", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_Success(t *testing.T) {
	var hits atomic.Int32
	srv := newChatServer(t, http.StatusOK, " ¡Bip bup! ", &hits)
	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hola"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "¡Bip bup!" {
		t.Errorf("Content = %q, want trimmed reply", resp.Content)
	}
	if resp.Usage.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", resp.Usage.TotalTokens)
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	var hits atomic.Int32
	srv := newChatServer(t, http.StatusOK, "   ", &hits)
	p, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hola"}},
	})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestComplete_ServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := newChatServer(t, http.StatusInternalServerError, "", &hits)
	p, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hola"}},
	}); err == nil {
		t.Fatal("expected error")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

// TestNew_MissingAPIKey checks that an empty API key is rejected.
func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestNew_MissingModel checks that an empty model is rejected.
func TestNew_MissingModel(t *testing.T) {
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for missing model")
	}
}
