package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/droidvox/pkg/provider/llm"
	"github.com/MrWong99/droidvox/pkg/provider/stt"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its configuration entry.
type Factory[T any] func(ProviderEntry) (T, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]Factory[llm.Provider]
	stt map[string]Factory[stt.Provider]
	tts map[string]Factory[tts.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]Factory[llm.Provider]),
		stt: make(map[string]Factory[stt.Provider]),
		tts: make(map[string]Factory[tts.Provider]),
	}
}

// RegisterLLM registers a reply backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = f
}

// RegisterSTT registers a transcription backend factory under name.
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = f
}

// RegisterTTS registers a synthesis backend factory under name.
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = f
}

// CreateLLM instantiates the reply backend registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSTT instantiates the transcription backend registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTTS instantiates the synthesis backend registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// Names returns the sorted provider names registered for kind
// ("llm", "stt" or "tts").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "llm":
		names = keys(r.llm)
	case "stt":
		names = keys(r.stt)
	case "tts":
		names = keys(r.tts)
	}
	slices.Sort(names)
	return names
}

func create[T any](r *Registry, table map[string]Factory[T], kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := table[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("config: create %s/%q: %w", kind, entry.Name, err)
	}
	return p, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
