// Command droidvox runs the droid's listening loop: it calibrates the
// microphone, greets, and then answers whoever talks to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/droidvox/internal/app"
	"github.com/MrWong99/droidvox/internal/config"
	"github.com/MrWong99/droidvox/internal/observe"
	"github.com/MrWong99/droidvox/internal/resilience"
	"github.com/MrWong99/droidvox/pkg/audio/miniaudio"
	"github.com/MrWong99/droidvox/pkg/provider/llm"
	"github.com/MrWong99/droidvox/pkg/provider/llm/anyllm"
	"github.com/MrWong99/droidvox/pkg/provider/llm/ollama"
	"github.com/MrWong99/droidvox/pkg/provider/llm/openai"
	"github.com/MrWong99/droidvox/pkg/provider/stt"
	"github.com/MrWong99/droidvox/pkg/provider/stt/whisper"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
	"github.com/MrWong99/droidvox/pkg/provider/tts/coqui"
	"github.com/MrWong99/droidvox/pkg/provider/tts/edge"
	"github.com/MrWong99/droidvox/pkg/provider/tts/piper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "droidvox: %v\n", err)
		return 1
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "droidvox: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "droidvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("droidvox starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"metrics_addr", cfg.Server.MetricsAddr,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, closers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	opts := []app.Option{app.WithMetrics(metrics), app.WithMetricsHandler(tel.MetricsHandler)}
	for _, c := range closers {
		opts = append(opts, app.WithCloser(c))
	}
	application, err := app.New(cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("droid ready — press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path, or returns the built-in configuration when path is
// empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	return config.Load(path)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.StringOption("organization", ""); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		// The fallback chain is the retry policy.
		opts = append(opts, openai.WithMaxRetries(entry.IntOption("max_retries", 0)))
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ollama talks to the local server with a raw Llama-3 prompt.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []ollama.Option
		if entry.BaseURL != "" {
			opts = append(opts, ollama.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, ollama.WithTimeout(entry.Timeout))
		}
		if t := entry.FloatOption("temperature", -1); t >= 0 {
			opts = append(opts, ollama.WithTemperature(t))
		}
		return ollama.New(entry.Model, opts...)
	})

	// Every other hosted or local vendor goes through any-llm-go with the
	// same optional APIKey + BaseURL pattern.
	for _, vendor := range anyllm.Vendors {
		if vendor == "openai" || vendor == "ollama" {
			continue
		}
		reg.RegisterLLM(vendor, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(vendor, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(entry.StringOption("model_path", entry.Model), opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("piper", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []piper.Option
		if rate := entry.IntOption("sample_rate", 0); rate > 0 {
			opts = append(opts, piper.WithSampleRate(rate))
		}
		if speaker := entry.IntOption("speaker", -1); speaker >= 0 {
			opts = append(opts, piper.WithSpeaker(strconv.Itoa(speaker)))
		}
		return piper.New(entry.StringOption("binary", "piper"), entry.Model, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := entry.StringOption("speaker", ""); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := entry.StringOption("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if entry.Timeout > 0 {
			opts = append(opts, coqui.WithTimeout(entry.Timeout))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("edge", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []edge.Option{edge.WithVoice(entry.StringOption("voice", edge.DefaultVoice))}
		if rate := entry.StringOption("rate", ""); rate != "" {
			opts = append(opts, edge.WithRate(rate))
		}
		return edge.New(opts...), nil
	})

	for _, kind := range []string{"llm", "stt", "tts"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates every provider named in cfg, chains primaries
// with their fallbacks and opens the audio devices. The returned closers
// release whatever holds native resources.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*app.Providers, []func() error, error) {
	var closers []func() error
	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			closers = append(closers, c.Close)
		}
	}
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
		OnFailure: func(name string, err error) {
			kind := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				kind = "timeout"
			}
			metrics.RecordProviderError(context.Background(), name, kind)
		},
	}
	pc := cfg.Providers
	ps := &app.Providers{}

	// ── LLM ───────────────────────────────────────────────────────────────────
	llmChain, err := buildLLM(pc, reg, fbCfg)
	if err != nil {
		return nil, nil, err
	}
	ps.LLM = llmChain
	slog.Info("provider created", "kind", "llm", "chain", llmChain.Backends())

	// ── STT ───────────────────────────────────────────────────────────────────
	primarySTT, err := reg.CreateSTT(pc.STT)
	if err != nil {
		return nil, nil, err
	}
	track(primarySTT)
	sttChain := resilience.NewSTTFallback(primarySTT, pc.STT.Name, pc.STT.Timeout, fbCfg)
	if pc.STTFallback.Configured() {
		fb, err := reg.CreateSTT(pc.STTFallback)
		if err != nil {
			return nil, nil, err
		}
		track(fb)
		sttChain.AddFallback(pc.STTFallback.Name, fb, pc.STTFallback.Timeout)
	}
	ps.STT = sttChain
	slog.Info("provider created", "kind", "stt", "name", pc.STT.Name)

	// ── TTS ───────────────────────────────────────────────────────────────────
	primaryTTS, err := reg.CreateTTS(pc.TTS)
	if err != nil {
		return nil, nil, err
	}
	ttsChain := resilience.NewTTSFallback(primaryTTS, pc.TTS.Name, pc.TTS.Timeout, fbCfg)
	if pc.TTSFallback.Configured() {
		fb, err := reg.CreateTTS(pc.TTSFallback)
		if err != nil {
			return nil, nil, err
		}
		ttsChain.AddFallback(pc.TTSFallback.Name, fb, pc.TTSFallback.Timeout)
	}
	ps.TTS = ttsChain
	slog.Info("provider created", "kind", "tts", "name", pc.TTS.Name)

	// ── Audio devices ─────────────────────────────────────────────────────────
	capture, err := miniaudio.NewCapture(cfg.Audio.SampleRate, cfg.Audio.FrameSize)
	if err != nil {
		return nil, nil, err
	}
	player, err := miniaudio.NewPlayer()
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, player.Close)
	ps.Source, ps.Sink = capture, player

	return ps, closers, nil
}

// buildLLM chains the primary reply backend with its fallback. A primary
// that cannot be created (typically a hosted API without a key) is skipped
// when a fallback exists, so the droid still answers from the local model.
func buildLLM(pc config.ProvidersConfig, reg *config.Registry, fbCfg resilience.FallbackConfig) (*resilience.LLMFallback, error) {
	var fallback llm.Provider
	if pc.LLMFallback.Configured() {
		fb, err := reg.CreateLLM(pc.LLMFallback)
		if err != nil {
			return nil, err
		}
		fallback = fb
	}

	primary, err := reg.CreateLLM(pc.LLM)
	if err != nil {
		if fallback == nil {
			return nil, err
		}
		slog.Warn("primary llm unavailable, using fallback only",
			"primary", pc.LLM.Name, "fallback", pc.LLMFallback.Name, "err", err)
		return resilience.NewLLMFallback(fallback, pc.LLMFallback.Name, pc.LLMFallback.Timeout, fbCfg), nil
	}

	chain := resilience.NewLLMFallback(primary, pc.LLM.Name, pc.LLM.Timeout, fbCfg)
	if fallback != nil {
		chain.AddFallback(pc.LLMFallback.Name, fallback, pc.LLMFallback.Timeout)
	}
	return chain, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         droidvox — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("LLM fallback", cfg.Providers.LLMFallback.Name, cfg.Providers.LLMFallback.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Audio           : %-19s ║\n", fmt.Sprintf("%d Hz / %d", cfg.Audio.SampleRate, cfg.Audio.FrameSize))
	if cfg.Actuator.Enabled {
		fmt.Printf("║  Actuator        : %-19s ║\n", cfg.Actuator.Port)
	} else {
		fmt.Printf("║  Actuator        : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Themed clips    : %-19d ║\n", len(cfg.Clips))
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Metrics addr    : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:16]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
