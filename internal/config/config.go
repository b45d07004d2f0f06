// Package config provides the configuration schema, loader, and provider
// registry for droidvox.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for droidvox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	VAD          VADConfig          `yaml:"vad"`
	Conversation ConversationConfig `yaml:"conversation"`
	Voice        VoiceConfig        `yaml:"voice"`
	Idle         IdleConfig         `yaml:"idle"`
	Confusion    ConfusionConfig    `yaml:"confusion"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Actuator     ActuatorConfig     `yaml:"actuator"`

	// Clips maps a themed clip id (e.g. "cantina") to an audio file.
	Clips map[string]string `yaml:"clips"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr, when set, serves Prometheus metrics on /metrics
	// (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	// SampleRate of the microphone stream in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per captured frame.
	FrameSize int `yaml:"frame_size"`
}

// VADConfig tunes calibration and utterance segmentation.
type VADConfig struct {
	// SilenceDuration of continuous quiet that ends an utterance.
	SilenceDuration time.Duration `yaml:"silence_duration"`

	// CalibrationDuration is how long ambient noise is sampled at startup.
	CalibrationDuration time.Duration `yaml:"calibration_duration"`

	SafetyMargin float64       `yaml:"safety_margin"`
	NoiseFloor   float64       `yaml:"noise_floor"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ConversationConfig holds the persona and turn-handling knobs.
type ConversationConfig struct {
	MaxMemoryTurns int `yaml:"max_memory_turns"`

	// MinTranscriptChars: transcripts this short or shorter are noise.
	MinTranscriptChars int `yaml:"min_transcript_chars"`

	Language string `yaml:"language"`

	// UnknownMarker is the reply token the persona uses to signal confusion.
	UnknownMarker string `yaml:"unknown_marker"`

	// Persona is the system prompt. PersonaFile, when set, replaces it with
	// the file's contents.
	Persona     string `yaml:"persona"`
	PersonaFile string `yaml:"persona_file"`

	// Greeting is spoken once after calibration. Empty disables it.
	Greeting string `yaml:"greeting"`

	// FallbackReply is spoken when no reply backend answers.
	FallbackReply string `yaml:"fallback_reply"`

	// ConfusedReply is recorded as the assistant turn after a confusion
	// response, so the model sees that it was confused.
	ConfusedReply string `yaml:"confused_reply"`

	// EchoSimilarity is the Jaro-Winkler score at or above which a
	// transcript is treated as the droid hearing itself. 0 disables the check.
	EchoSimilarity float64 `yaml:"echo_similarity"`

	MaxReplyTokens int `yaml:"max_reply_tokens"`

	// Temperature for reply sampling. Zero leaves each backend's default.
	Temperature float64 `yaml:"temperature"`
}

// VoiceConfig shapes how replies sound.
type VoiceConfig struct {
	// Beeps plays a random droid chirp before every utterance.
	Beeps *bool `yaml:"beeps"`

	// RobotEffect applies the echo and speed-up chain to synthesized speech.
	RobotEffect *bool `yaml:"robot_effect"`

	// Speed is the playback speed factor of the robot effect.
	Speed float64 `yaml:"speed"`
}

// IdleConfig controls unprompted idle sounds.
type IdleConfig struct {
	// Enabled turns idle sounds on. Default true.
	Enabled *bool `yaml:"enabled"`

	Timeout time.Duration `yaml:"timeout"`

	// Probability is the chance an expired timer plays a sound. An explicit
	// 0 is kept, so the timer runs but never plays.
	Probability *float64 `yaml:"probability"`

	Folder string  `yaml:"folder"`
	Volume float64 `yaml:"volume"`

	// ResetOnSkip restarts the idle timer after a failed chance roll.
	ResetOnSkip *bool `yaml:"reset_on_skip"`
}

// ConfusionConfig drives the response to the unknown marker.
type ConfusionConfig struct {
	SassyWeight float64  `yaml:"sassy_weight"`
	SassyLines  []string `yaml:"sassy_lines"`

	Cantina ThemedBranch `yaml:"cantina"`
	Panic   ThemedBranch `yaml:"panic"`
}

// ThemedBranch speaks a lead-in line and then plays a clip.
type ThemedBranch struct {
	Weight      float64       `yaml:"weight"`
	Text        string        `yaml:"text"`
	Clip        string        `yaml:"clip"`
	Volume      float64       `yaml:"volume"`
	MaxDuration time.Duration `yaml:"max_duration"`
}

// ProvidersConfig selects the backend for each collaborator. Each entry
// names a provider registered in the [Registry]; fallbacks are optional.
type ProvidersConfig struct {
	STT         ProviderEntry `yaml:"stt"`
	STTFallback ProviderEntry `yaml:"stt_fallback"`
	LLM         ProviderEntry `yaml:"llm"`
	LLMFallback ProviderEntry `yaml:"llm_fallback"`
	TTS         ProviderEntry `yaml:"tts"`
	TTSFallback ProviderEntry `yaml:"tts_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "openai", "piper").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted APIs. ${VAR} references are
	// expanded from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider, or a model file path for
	// local engines.
	Model string `yaml:"model"`

	// Timeout bounds a single request. Zero means no extra bound.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// Configured reports whether the entry names a provider.
func (e ProviderEntry) Configured() bool { return e.Name != "" }

// StringOption returns Options[key] as a string, or def.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// IntOption returns Options[key] as an int, or def. YAML integers decode as
// int; floats are truncated.
func (e ProviderEntry) IntOption(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// FloatOption returns Options[key] as a float64, or def.
func (e ProviderEntry) FloatOption(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// ActuatorConfig configures the serial link to the droid's body.
type ActuatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
}

// FloatOr returns *v, or def when v is unset.
func FloatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// BoolOr returns *flag, or def when the flag is unset.
func BoolOr(flag *bool, def bool) bool {
	if flag == nil {
		return def
	}
	return *flag
}
