// Package app wires all droidvox subsystems into a running droid.
//
// The App struct owns the full lifecycle: New builds every subsystem from
// the config and the providers resolved by main, Run starts capture, the
// body controller, the metrics/health listener and the consumer loop, and
// Shutdown releases devices in order.
//
// For testing, inject doubles through [Providers] (audio source and sink,
// STT, LLM, TTS) and the functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/droidvox/internal/actuator"
	"github.com/MrWong99/droidvox/internal/config"
	"github.com/MrWong99/droidvox/internal/health"
	"github.com/MrWong99/droidvox/internal/idle"
	"github.com/MrWong99/droidvox/internal/memory"
	"github.com/MrWong99/droidvox/internal/observe"
	"github.com/MrWong99/droidvox/internal/orchestrator"
	"github.com/MrWong99/droidvox/internal/playback"
	"github.com/MrWong99/droidvox/internal/vad"
	"github.com/MrWong99/droidvox/internal/voice"
	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/provider/llm"
	"github.com/MrWong99/droidvox/pkg/provider/stt"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// captureStale is how long without a captured frame before /readyz fails.
const captureStale = 3 * time.Second

// Providers holds one interface value per collaborator. All fields are
// required. Populated by main.go via the config registry and the audio
// devices.
type Providers struct {
	STT    stt.Provider
	LLM    llm.Provider
	TTS    tts.Provider
	Source audio.Source
	Sink   audio.Sink
}

// App owns all subsystem lifetimes and runs the listening loop.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	scrape    http.Handler
	rng       *rand.Rand
	calOpts   []vad.CalibratorOption

	// Subsystems, built in New.
	queue      *audio.FrameQueue
	segmenter  *vad.Segmenter
	calibrator *vad.Calibrator
	mouth      *voice.Voice
	turns      *orchestrator.Turns
	session    *orchestrator.Session
	body       actuator.Signaler
	controller *actuator.Controller
	health     *health.Handler

	calibrated health.Flag
	lastFrame  atomic.Int64 // unix nanos of the newest captured frame

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics instance. Default [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the handler served on /metrics when
// server.metrics_addr is configured.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithSignaler injects a body controller instead of building one from the
// actuator config.
func WithSignaler(s actuator.Signaler) Option {
	return func(a *App) { a.body = s }
}

// WithRand seeds every random choice (beeps, idle roll, confusion branch,
// idle file) from r.
func WithRand(r *rand.Rand) Option {
	return func(a *App) { a.rng = r }
}

// WithCalibratorOptions passes extra options to the startup calibrator.
func WithCalibratorOptions(opts ...vad.CalibratorOption) Option {
	return func(a *App) { a.calOpts = append(a.calOpts, opts...) }
}

// WithCloser registers fn to run during Shutdown. Closers run in
// registration order.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires the droid from cfg and providers. It does not touch any device;
// that happens in Run.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if err := providers.validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x64726f6964))
	}

	// ── 1. Body ──────────────────────────────────────────────────────────
	if a.body == nil {
		a.body = a.buildBody()
	}

	// ── 2. Output ────────────────────────────────────────────────────────
	a.mouth = voice.New(providers.TTS, providers.Sink,
		voice.WithBeeps(config.BoolOr(cfg.Voice.Beeps, true)),
		voice.WithRobotEffect(config.BoolOr(cfg.Voice.RobotEffect, true), cfg.Voice.Speed),
		voice.WithSignaler(a.body),
		voice.WithRand(a.rng),
		voice.WithMetrics(a.metrics),
	)
	clips := playback.NewClips(providers.Sink, cfg.Clips, a.metrics)
	idleSounds := playback.NewFolder(providers.Sink, cfg.Idle.Folder, cfg.Idle.Volume, a.rng)

	// ── 3. Listening ─────────────────────────────────────────────────────
	a.queue = audio.NewFrameQueue()
	a.segmenter = vad.NewSegmenter(cfg.VAD.NoiseFloor, cfg.VAD.SilenceDuration)
	a.calibrator = vad.NewCalibrator(cfg.VAD.SafetyMargin, cfg.VAD.NoiseFloor,
		append([]vad.CalibratorOption{vad.WithPollInterval(cfg.VAD.PollInterval)}, a.calOpts...)...)
	clock := idle.NewClock(time.Now())

	// ── 4. Turns ─────────────────────────────────────────────────────────
	conv := cfg.Conversation
	a.turns = orchestrator.NewTurns(orchestrator.TurnConfig{
		STT:            providers.STT,
		Responder:      orchestrator.NewResponder(providers.LLM, conv.Persona, conv.MaxReplyTokens, conv.Temperature),
		Speaker:        a.mouth,
		Clips:          clips,
		Memory:         memory.NewConversation(conv.MaxMemoryTurns),
		Confusion:      confusionPolicy(cfg.Confusion),
		Rand:           a.rng,
		Metrics:        a.metrics,
		Language:       conv.Language,
		MinChars:       conv.MinTranscriptChars,
		UnknownMarker:  conv.UnknownMarker,
		FallbackReply:  conv.FallbackReply,
		ConfusedReply:  conv.ConfusedReply,
		EchoSimilarity: conv.EchoSimilarity,
	})

	// ── 5. Idle + consumer loop ──────────────────────────────────────────
	var sched *idle.Scheduler
	if config.BoolOr(cfg.Idle.Enabled, true) {
		sched = idle.NewScheduler(clock, cfg.Idle.Timeout, a.rng, idleSounds.PlayRandom,
			idle.WithProbability(config.FloatOr(cfg.Idle.Probability, config.DefaultIdleProbability)),
			idle.WithResetOnSkip(config.BoolOr(cfg.Idle.ResetOnSkip, true)),
		)
	}
	a.session = orchestrator.NewSession(orchestrator.SessionConfig{
		Frames:    a.queue,
		Segmenter: a.segmenter,
		Clock:     clock,
		Idle:      sched,
		Turns:     a.turns,
		Poll:      cfg.VAD.PollInterval,
		Metrics:   a.metrics,
	})

	// ── 6. Health ────────────────────────────────────────────────────────
	a.health = health.New(
		a.calibrated.Checker("calibrated"),
		health.Checker{Name: "capture", Check: a.checkCapture},
	)

	return a, nil
}

func (p *Providers) validate() error {
	var errs []error
	if p == nil {
		return errors.New("providers are nil")
	}
	if p.STT == nil {
		errs = append(errs, errors.New("stt provider is required"))
	}
	if p.LLM == nil {
		errs = append(errs, errors.New("llm provider is required"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("tts provider is required"))
	}
	if p.Source == nil {
		errs = append(errs, errors.New("audio source is required"))
	}
	if p.Sink == nil {
		errs = append(errs, errors.New("audio sink is required"))
	}
	return errors.Join(errs...)
}

func (a *App) buildBody() actuator.Signaler {
	if !a.cfg.Actuator.Enabled {
		return actuator.Nop{}
	}
	a.controller = actuator.New(actuator.Config{
		Port: a.cfg.Actuator.Port,
		Baud: a.cfg.Actuator.Baud,
		OnResult: func(cmd actuator.Command, status string) {
			a.metrics.RecordActuator(context.Background(), cmd.String(), status)
		},
	})
	return a.controller
}

func confusionPolicy(c config.ConfusionConfig) orchestrator.ConfusionPolicy {
	branch := func(b config.ThemedBranch) orchestrator.ThemedBranch {
		return orchestrator.ThemedBranch{
			Weight:      b.Weight,
			Text:        b.Text,
			Clip:        b.Clip,
			Volume:      b.Volume,
			MaxDuration: b.MaxDuration,
		}
	}
	return orchestrator.ConfusionPolicy{
		SassyWeight: c.SassyWeight,
		SassyLines:  c.SassyLines,
		Cantina:     branch(c.Cantina),
		Panic:       branch(c.Panic),
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts capture and the consumer loop and blocks until ctx is
// cancelled or a fatal error occurs (unrecoverable audio device, failed
// calibration). A cancelled ctx returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.providers.Source.Run(ctx, a.push); err != nil {
			return fmt.Errorf("app: capture: %w", err)
		}
		return nil
	})
	if a.controller != nil {
		g.Go(func() error { return a.controller.Run(ctx) })
	}
	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		g.Go(func() error { return a.serveHTTP(ctx, addr) })
	}
	g.Go(func() error { return a.consume(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// push is the capture callback. It must never block.
func (a *App) push(f audio.AudioFrame) {
	a.queue.Push(f)
	a.lastFrame.Store(time.Now().UnixNano())
}

// consume calibrates, chirps, greets and then runs the listening loop.
func (a *App) consume(ctx context.Context) error {
	slog.Info("calibrating ambient noise", "window", a.cfg.VAD.CalibrationDuration)
	res, err := a.calibrator.Calibrate(ctx, a.queue, a.cfg.VAD.CalibrationDuration)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.segmenter.SetThreshold(res.Threshold)
	a.metrics.SetThreshold(ctx, res.Threshold)
	a.calibrated.Set()

	if config.BoolOr(a.cfg.Voice.Beeps, true) {
		if err := a.mouth.Chirp(ctx, audio.HappyTones); err != nil {
			slog.Warn("ready chirp failed", "err", err)
		}
	}
	if greeting := a.cfg.Conversation.Greeting; greeting != "" {
		a.turns.Speak(ctx, greeting)
	}
	a.session.Rearm(ctx)
	return a.session.Run(ctx)
}

func (a *App) checkCapture(context.Context) error {
	last := a.lastFrame.Load()
	if last == 0 {
		return errors.New("no frames captured yet")
	}
	if age := time.Since(time.Unix(0, last)); age > captureStale {
		return fmt.Errorf("no frames for %s", age.Round(time.Millisecond))
	}
	return nil
}

// Handler returns the HTTP handler for the metrics/health listener.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.scrape != nil {
		mux.Handle("GET /metrics", a.scrape)
	}
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) serveHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: metrics listener: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics listener shutdown", "err", err)
	}
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown runs the registered closers in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
