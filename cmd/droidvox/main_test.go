package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/MrWong99/droidvox/internal/config"
	"github.com/MrWong99/droidvox/internal/resilience"
)

func TestRegisterBuiltinProviders_CoversKnownNames(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	for kind, names := range config.ValidProviderNames {
		registered := reg.Names(kind)
		for _, name := range names {
			if !slices.Contains(registered, name) {
				t.Errorf("%s provider %q has no factory (registered: %v)", kind, name, registered)
			}
		}
	}
}

func TestRegisterBuiltinProviders_Factories(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	t.Run("openai", func(t *testing.T) {
		if _, err := reg.CreateLLM(config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("openai without key", func(t *testing.T) {
		if _, err := reg.CreateLLM(config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}); err == nil {
			t.Fatal("expected error for missing api key")
		}
	})
	t.Run("ollama", func(t *testing.T) {
		_, err := reg.CreateLLM(config.ProviderEntry{
			Name:    "ollama",
			Model:   "llama3.2",
			BaseURL: "http://localhost:11434",
			Options: map[string]any{"temperature": 0.5},
		})
		if err != nil {
			t.Fatal(err)
		}
	})
	t.Run("whisper", func(t *testing.T) {
		_, err := reg.CreateSTT(config.ProviderEntry{
			Name:    "whisper",
			BaseURL: "http://localhost:8080",
			Options: map[string]any{"language": "es"},
		})
		if err != nil {
			t.Fatal(err)
		}
	})
	t.Run("piper", func(t *testing.T) {
		_, err := reg.CreateTTS(config.ProviderEntry{
			Name:    "piper",
			Model:   "voice.onnx",
			Options: map[string]any{"binary": "/usr/bin/piper", "speaker": 1, "sample_rate": 22050},
		})
		if err != nil {
			t.Fatal(err)
		}
	})
	t.Run("coqui xtts needs speaker", func(t *testing.T) {
		_, err := reg.CreateTTS(config.ProviderEntry{
			Name:    "coqui",
			BaseURL: "http://localhost:5002",
			Options: map[string]any{"api_mode": "xtts"},
		})
		if err == nil {
			t.Fatal("expected error for xtts without speaker")
		}
	})
	t.Run("edge", func(t *testing.T) {
		p, err := reg.CreateTTS(config.ProviderEntry{Name: "edge"})
		if err != nil || p == nil {
			t.Fatalf("edge = %v, %v", p, err)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		t.Setenv("OPENAI_KEY", "sk-test")
		cfg, err := loadConfig("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Providers.LLM.Name != "openai" {
			t.Errorf("llm = %q", cfg.Providers.LLM.Name)
		}
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("err = %v, want os.ErrNotExist", err)
		}
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   config.LogLevel
		enabled slog.Level
		muted   slog.Level
	}{
		{config.LogDebug, slog.LevelDebug, slog.LevelDebug - 1},
		{config.LogInfo, slog.LevelInfo, slog.LevelDebug},
		{config.LogWarn, slog.LevelWarn, slog.LevelInfo},
		{config.LogError, slog.LevelError, slog.LevelWarn},
		{"", slog.LevelInfo, slog.LevelDebug},
	}
	ctx := context.Background()
	for _, tc := range tests {
		l := newLogger(tc.level)
		if !l.Enabled(ctx, tc.enabled) {
			t.Errorf("%q: level %s should be enabled", tc.level, tc.enabled)
		}
		if l.Enabled(ctx, tc.muted) {
			t.Errorf("%q: level %s should be muted", tc.level, tc.muted)
		}
	}
}

func TestBuildLLM(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	t.Run("default chain with key", func(t *testing.T) {
		t.Setenv("OPENAI_KEY", "sk-test")
		chain, err := buildLLM(config.Default().Providers, reg, resilience.FallbackConfig{})
		if err != nil {
			t.Fatal(err)
		}
		if got := chain.Backends(); !slices.Equal(got, []string{"openai", "ollama"}) {
			t.Errorf("chain = %v", got)
		}
	})

	t.Run("no key falls back to local model", func(t *testing.T) {
		t.Setenv("OPENAI_KEY", "")
		cfg := config.Default()
		if err := config.Validate(cfg); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		chain, err := buildLLM(cfg.Providers, reg, resilience.FallbackConfig{})
		if err != nil {
			t.Fatal(err)
		}
		if got := chain.Backends(); !slices.Equal(got, []string{"ollama"}) {
			t.Errorf("chain = %v, want [ollama]", got)
		}
	})

	t.Run("no key and no fallback", func(t *testing.T) {
		pc := config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}}
		if _, err := buildLLM(pc, reg, resilience.FallbackConfig{}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("broken fallback is an error", func(t *testing.T) {
		pc := config.ProvidersConfig{
			LLM:         config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"},
			LLMFallback: config.ProviderEntry{Name: "ollama"},
		}
		if _, err := buildLLM(pc, reg, resilience.FallbackConfig{}); err == nil {
			t.Fatal("expected error for fallback without model")
		}
	})
}
