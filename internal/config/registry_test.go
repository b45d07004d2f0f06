package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/droidvox/internal/config"
	"github.com/MrWong99/droidvox/pkg/provider/llm"
	llmmock "github.com/MrWong99/droidvox/pkg/provider/llm/mock"
	"github.com/MrWong99/droidvox/pkg/provider/stt"
	sttmock "github.com/MrWong99/droidvox/pkg/provider/stt/mock"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/droidvox/pkg/provider/tts/mock"
)

func TestRegistry_Unknown(t *testing.T) {
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nonexistent"}
	if _, err := reg.CreateLLM(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("llm err = %v", err)
	}
	if _, err := reg.CreateSTT(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("stt err = %v", err)
	}
	if _, err := reg.CreateTTS(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("tts err = %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	reg := config.NewRegistry()
	wantLLM := &llmmock.Provider{}
	wantSTT := &sttmock.Provider{}
	wantTTS := &ttsmock.Provider{}

	var gotEntry config.ProviderEntry
	reg.RegisterLLM("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return wantLLM, nil
	})
	reg.RegisterSTT("stub", func(config.ProviderEntry) (stt.Provider, error) { return wantSTT, nil })
	reg.RegisterTTS("stub", func(config.ProviderEntry) (tts.Provider, error) { return wantTTS, nil })

	l, err := reg.CreateLLM(config.ProviderEntry{Name: "stub", Model: "m"})
	if err != nil || l != wantLLM {
		t.Errorf("CreateLLM = %v, %v", l, err)
	}
	if gotEntry.Model != "m" {
		t.Errorf("factory got entry %+v", gotEntry)
	}
	if s, err := reg.CreateSTT(config.ProviderEntry{Name: "stub"}); err != nil || s != wantSTT {
		t.Errorf("CreateSTT = %v, %v", s, err)
	}
	if p, err := reg.CreateTTS(config.ProviderEntry{Name: "stub"}); err != nil || p != wantTTS {
		t.Errorf("CreateTTS = %v, %v", p, err)
	}

	// Sanity check that the stub satisfies the interface end to end.
	if _, err := l.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Errorf("stub Complete: %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTTS("piper", nil)
	reg.RegisterTTS("edge", nil)
	got := reg.Names("tts")
	if len(got) != 2 || got[0] != "edge" || got[1] != "piper" {
		t.Errorf("Names(tts) = %v", got)
	}
	if len(reg.Names("llm")) != 0 {
		t.Error("no llm providers registered")
	}
}
