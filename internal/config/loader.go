package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "ollama", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"whisper", "whisper-native"},
	"tts": {"piper", "coqui", "edge"},
}

// LoadEnv loads environment variables from the given .env files (default
// ".env"). Missing files are ignored; variables already set in the
// process environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %q: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. ${VAR} references in the file are expanded
// from the environment. A relative persona_file is resolved against the
// working directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)

	if cfg.Conversation.PersonaFile != "" {
		persona, err := os.ReadFile(cfg.Conversation.PersonaFile)
		if err != nil {
			return nil, fmt.Errorf("config: read persona file: %w", err)
		}
		cfg.Conversation.Persona = strings.TrimSpace(string(persona))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be positive, got %d", cfg.Audio.FrameSize))
	}

	if cfg.VAD.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("vad.silence_duration must be positive, got %s", cfg.VAD.SilenceDuration))
	}
	if cfg.VAD.CalibrationDuration <= 0 {
		errs = append(errs, fmt.Errorf("vad.calibration_duration must be positive, got %s", cfg.VAD.CalibrationDuration))
	}
	if cfg.VAD.SafetyMargin < 1 {
		errs = append(errs, fmt.Errorf("vad.safety_margin %.2f must be at least 1", cfg.VAD.SafetyMargin))
	}
	if cfg.VAD.NoiseFloor < 0 || cfg.VAD.NoiseFloor >= 1 {
		errs = append(errs, fmt.Errorf("vad.noise_floor %.4f is out of range [0, 1)", cfg.VAD.NoiseFloor))
	}

	c := cfg.Conversation
	if c.MaxMemoryTurns < 1 {
		errs = append(errs, fmt.Errorf("conversation.max_memory_turns must be at least 1, got %d", c.MaxMemoryTurns))
	}
	if c.MinTranscriptChars < 0 {
		errs = append(errs, fmt.Errorf("conversation.min_transcript_chars must not be negative, got %d", c.MinTranscriptChars))
	}
	if c.EchoSimilarity < 0 || c.EchoSimilarity > 1 {
		errs = append(errs, fmt.Errorf("conversation.echo_similarity %.2f is out of range [0, 1]", c.EchoSimilarity))
	}
	if strings.TrimSpace(c.Persona) == "" {
		errs = append(errs, errors.New("conversation.persona must not be empty"))
	}

	if cfg.Voice.Speed < 0.5 || cfg.Voice.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("voice.speed %.2f is out of range [0.5, 2.0]", cfg.Voice.Speed))
	}

	if BoolOr(cfg.Idle.Enabled, true) && cfg.Idle.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("idle.timeout must be positive while idle is enabled, got %s", cfg.Idle.Timeout))
	}
	if p := FloatOr(cfg.Idle.Probability, DefaultIdleProbability); p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("idle.probability %.2f is out of range [0, 1]", p))
	}
	if cfg.Idle.Volume < 0 {
		errs = append(errs, fmt.Errorf("idle.volume %.2f must not be negative", cfg.Idle.Volume))
	}

	errs = append(errs, validateConfusion(cfg)...)

	// Providers
	if !cfg.Providers.STT.Configured() {
		errs = append(errs, errors.New("providers.stt is required"))
	}
	if !cfg.Providers.LLM.Configured() {
		errs = append(errs, errors.New("providers.llm is required"))
	}
	if !cfg.Providers.TTS.Configured() {
		errs = append(errs, errors.New("providers.tts is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts", cfg.Providers.TTSFallback.Name)
	if !cfg.Providers.LLMFallback.Configured() {
		slog.Warn("providers.llm_fallback is not configured; a failed reply will fall straight to the apology")
	}

	if cfg.Actuator.Enabled {
		if cfg.Actuator.Port == "" {
			errs = append(errs, errors.New("actuator.port is required when the actuator is enabled"))
		}
		if cfg.Actuator.Baud <= 0 {
			errs = append(errs, fmt.Errorf("actuator.baud must be positive, got %d", cfg.Actuator.Baud))
		}
	}

	return errors.Join(errs...)
}

func validateConfusion(cfg *Config) []error {
	var errs []error
	f := cfg.Confusion
	weights := map[string]float64{
		"confusion.sassy_weight":   f.SassyWeight,
		"confusion.cantina.weight": f.Cantina.Weight,
		"confusion.panic.weight":   f.Panic.Weight,
	}
	var total float64
	for _, key := range slices.Sorted(maps.Keys(weights)) {
		w := weights[key]
		if w < 0 {
			errs = append(errs, fmt.Errorf("%s %.2f must not be negative", key, w))
		}
		total += w
	}
	if total <= 0 {
		errs = append(errs, errors.New("confusion weights must not all be zero"))
	}
	if f.SassyWeight > 0 && len(f.SassyLines) == 0 {
		errs = append(errs, errors.New("confusion.sassy_lines must not be empty when sassy_weight is set"))
	}
	branches := []struct {
		name string
		ThemedBranch
	}{{"cantina", f.Cantina}, {"panic", f.Panic}}
	for _, b := range branches {
		if b.Weight <= 0 {
			continue
		}
		if _, ok := cfg.Clips[b.Clip]; !ok {
			errs = append(errs, fmt.Errorf("confusion.%s.clip %q is not defined in clips", b.name, b.Clip))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name, "known", ValidProviderNames[kind])
	}
}
