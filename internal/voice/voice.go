// Package voice is the droid's mouth: it turns a reply into audible speech.
//
// [Voice.Speak] sanitizes the text, plays a burst of droid beeps, flips the
// body into its talking pose, synthesizes the text, applies the robot effect
// chain and plays the result, then returns the body to rest. It blocks until
// the audio has finished.
package voice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/MrWong99/droidvox/internal/actuator"
	"github.com/MrWong99/droidvox/internal/observe"
	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// Robot effect parameters: a short slap-back echo before the speed-up.
const (
	echoDelay   = 6 * time.Millisecond
	echoGainIn  = 0.8
	echoGainOut = 0.88
	echoDecay   = 0.4
)

// DefaultSpeed is the playback speed-up of the robot effect.
const DefaultSpeed = 1.2

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Voice speaks replies through a TTS provider and an audio sink.
type Voice struct {
	tts     tts.Provider
	sink    audio.Sink
	body    actuator.Signaler
	rng     audio.Rand
	beeps   bool
	robot   bool
	speed   float64
	metrics *observe.Metrics
}

// Option configures a [Voice].
type Option func(*Voice)

// WithBeeps enables or disables the random chirp before speech. Default on.
func WithBeeps(enabled bool) Option {
	return func(v *Voice) { v.beeps = enabled }
}

// WithRobotEffect enables or disables the echo and speed-up chain and sets
// its speed factor. A non-positive speed keeps [DefaultSpeed]. Default on.
func WithRobotEffect(enabled bool, speed float64) Option {
	return func(v *Voice) {
		v.robot = enabled
		if speed > 0 {
			v.speed = speed
		}
	}
}

// WithSignaler sets the body controller notified around speech.
func WithSignaler(s actuator.Signaler) Option {
	return func(v *Voice) { v.body = s }
}

// WithRand sets the random source for beep generation.
func WithRand(r audio.Rand) Option {
	return func(v *Voice) { v.rng = r }
}

// WithMetrics sets the metrics sink. Default [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(v *Voice) { v.metrics = m }
}

// New returns a Voice synthesizing with p and playing through sink.
func New(p tts.Provider, sink audio.Sink, opts ...Option) *Voice {
	v := &Voice{
		tts:   p,
		sink:  sink,
		body:  actuator.Nop{},
		rng:   globalRand{},
		beeps: true,
		robot: true,
		speed: DefaultSpeed,
	}
	for _, o := range opts {
		o(v)
	}
	if v.metrics == nil {
		v.metrics = observe.DefaultMetrics()
	}
	return v
}

// Speak says text and blocks until playback ends. Text that is empty after
// sanitizing is not synthesized. Beep playback failures are logged only;
// synthesis and playback failures are returned.
func (v *Voice) Speak(ctx context.Context, text string) error {
	ctx, span := observe.StartSpan(ctx, "voice.speak")
	defer span.End()
	log := observe.Logger(ctx)

	if v.beeps {
		if err := v.sink.Play(ctx, audio.Beeps(audio.RandomTones(v.rng))); err != nil {
			log.Warn("voice: beeps failed", "err", err)
		}
	}

	clean := Sanitize(text)
	if clean == "" {
		log.Debug("voice: nothing to say after sanitizing", "raw", text)
		return nil
	}
	log.Info("voice: speaking", "text", clean)

	v.body.Signal(actuator.EyeTalk)
	defer v.body.Signal(actuator.EyeSilent)

	start := time.Now()
	pcm, err := v.tts.Synthesize(ctx, clean)
	v.metrics.RecordStage(ctx, observe.StageTTS, time.Since(start))
	if err != nil {
		return fmt.Errorf("voice: synthesize: %w", err)
	}

	if v.robot {
		pcm = Robotize(pcm, v.speed)
	}
	if err := v.sink.Play(ctx, pcm); err != nil {
		return fmt.Errorf("voice: play: %w", err)
	}
	return nil
}

// Chirp plays tones without speech, e.g. [audio.HappyTones].
func (v *Voice) Chirp(ctx context.Context, tones []audio.Tone) error {
	if err := v.sink.Play(ctx, audio.Beeps(tones)); err != nil {
		return fmt.Errorf("voice: chirp: %w", err)
	}
	return nil
}

// Robotize applies the droid voice chain: a 6 ms echo followed by a
// tape-style speed-up by factor.
func Robotize(pcm audio.PCM, factor float64) audio.PCM {
	pcm = audio.Echo(pcm, echoDelay, echoGainIn, echoGainOut, echoDecay)
	return audio.Speed(pcm, factor)
}
