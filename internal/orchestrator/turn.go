// Package orchestrator drives the droid's conversation: it turns completed
// utterances into turns (transcribe, remember, respond, speak) and runs the
// single-threaded consumer loop that feeds the segmenter and the idle
// scheduler.
//
// Everything here runs on the consumer goroutine. Collaborator calls block
// the loop one at a time while the capture callback keeps queueing frames;
// after every completed utterance and every idle sound the queue is flushed
// so the droid never answers its own voice.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MrWong99/droidvox/internal/memory"
	"github.com/MrWong99/droidvox/internal/observe"
	"github.com/MrWong99/droidvox/internal/vad"
	"github.com/MrWong99/droidvox/pkg/provider/stt"
)

// Outcome classifies how a turn ended.
type Outcome string

const (
	// OutcomeAnswered means a reply was spoken and remembered.
	OutcomeAnswered Outcome = "answered"

	// OutcomeNoise means the transcript was empty, too short or failed.
	OutcomeNoise Outcome = "noise"

	// OutcomeEcho means the transcript matched the droid's own last words.
	OutcomeEcho Outcome = "echo"

	// OutcomeConfused means the responder returned the unknown marker.
	OutcomeConfused Outcome = "confused"

	// OutcomeFailed means no backend answered and the apology was spoken.
	OutcomeFailed Outcome = "failed"
)

// Speaker says text and blocks until playback ends. *voice.Voice
// satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ClipPlayer plays a themed clip by id. *playback.Clips satisfies it.
type ClipPlayer interface {
	Play(ctx context.Context, id string, volume float64, maxDur time.Duration) error
}

// TurnConfig holds everything a [Turns] handler needs.
type TurnConfig struct {
	STT       stt.Provider
	Responder *Responder
	Speaker   Speaker
	Clips     ClipPlayer
	Memory    *memory.Conversation
	Confusion ConfusionPolicy
	Rand      Rand
	Metrics   *observe.Metrics

	Language string

	// MinChars: transcripts of this many runes or fewer are noise.
	MinChars int

	// UnknownMarker in a reply triggers the confusion policy.
	UnknownMarker string

	// FallbackReply is spoken when no backend answers and stored as the
	// assistant turn, so the next request still alternates roles.
	FallbackReply string

	// ConfusedReply is stored as the assistant turn after a confused turn.
	ConfusedReply string

	// EchoSimilarity is the [IsEcho] threshold. Zero disables the guard.
	EchoSimilarity float64
}

// Turns handles completed utterances.
type Turns struct {
	cfg        TurnConfig
	lastSpoken string
}

// NewTurns returns a handler for cfg. A nil Metrics uses
// [observe.DefaultMetrics].
func NewTurns(cfg TurnConfig) *Turns {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Turns{cfg: cfg}
}

// Handle runs one full turn for u and reports how it ended. Collaborator
// failures are logged and degraded, never returned.
func (t *Turns) Handle(ctx context.Context, u *vad.Utterance) Outcome {
	ctx, span := observe.StartTurn(ctx, uuid.NewString())
	defer span.End()
	log := observe.Logger(ctx)

	outcome := t.handle(ctx, u)
	t.cfg.Metrics.RecordTurn(ctx, string(outcome))
	log.Info("turn finished", "outcome", outcome, "memory_turns", t.cfg.Memory.Len())
	return outcome
}

func (t *Turns) handle(ctx context.Context, u *vad.Utterance) Outcome {
	log := observe.Logger(ctx)
	t.cfg.Metrics.RecordUtterance(ctx, u.Duration())

	start := time.Now()
	text, err := t.cfg.STT.Transcribe(ctx, stt.Request{Audio: u.PCM(), Language: t.cfg.Language})
	t.cfg.Metrics.RecordStage(ctx, observe.StageSTT, time.Since(start))
	if err != nil {
		log.Warn("transcription failed, discarding utterance", "err", err)
		return OutcomeNoise
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= t.cfg.MinChars {
		log.Debug("transcript too short, treating as noise", "text", text)
		return OutcomeNoise
	}
	if IsEcho(text, t.lastSpoken, t.cfg.EchoSimilarity) {
		log.Info("transcript matches own speech, ignoring", "text", text)
		return OutcomeEcho
	}
	log.Info("user said", "text", text)

	t.cfg.Memory.AppendUser(text)

	start = time.Now()
	reply, err := t.cfg.Responder.Respond(ctx, t.cfg.Memory.Window())
	t.cfg.Metrics.RecordStage(ctx, observe.StageLLM, time.Since(start))
	if err != nil {
		log.Error("no reply backend answered", "err", err)
		t.speak(ctx, t.cfg.FallbackReply)
		t.cfg.Memory.AppendAssistant(t.cfg.FallbackReply)
		return OutcomeFailed
	}

	if t.cfg.UnknownMarker != "" && strings.Contains(reply, t.cfg.UnknownMarker) {
		t.confused(ctx)
		t.cfg.Memory.AppendAssistant(t.cfg.ConfusedReply)
		return OutcomeConfused
	}

	log.Info("droid replies", "text", reply)
	t.speak(ctx, reply)
	t.cfg.Memory.AppendAssistant(reply)
	return OutcomeAnswered
}

func (t *Turns) confused(ctx context.Context) {
	action := t.cfg.Confusion.Choose(t.cfg.Rand)
	log := observe.Logger(ctx)
	log.Info("responder has no answer", "branch", action.Branch)

	t.speak(ctx, action.Text)
	if action.Clip == "" || t.cfg.Clips == nil {
		return
	}
	if err := t.cfg.Clips.Play(ctx, action.Clip, action.Volume, action.MaxDuration); err != nil {
		log.Warn("confusion clip failed", "clip", action.Clip, "err", err)
	}
}

// Speak says text outside a user turn, e.g. the startup greeting.
func (t *Turns) Speak(ctx context.Context, text string) {
	t.speak(ctx, text)
}

func (t *Turns) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	t.lastSpoken = text
	if err := t.cfg.Speaker.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		observe.Logger(ctx).Warn("speech output failed", "err", err)
	}
}
