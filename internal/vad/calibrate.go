package vad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// ErrCalibration is returned when the calibration window produced no frames,
// so no threshold could be derived.
var ErrCalibration = errors.New("vad: calibration failed")

// FrameReader is the consumer side of the capture queue.
// *audio.FrameQueue satisfies it.
type FrameReader interface {
	TryPop() (audio.AudioFrame, bool)
	Flush() int
}

// DeriveThreshold returns max(maxEnergy*margin, floor).
func DeriveThreshold(maxEnergy, margin, floor float64) float64 {
	return max(maxEnergy*margin, floor)
}

// CalibrationResult describes one calibration run.
type CalibrationResult struct {
	// Threshold is the derived noise threshold.
	Threshold float64

	// MaxEnergy is the loudest RMS observed during the window.
	MaxEnergy float64

	// Frames is how many frames were measured.
	Frames int

	// Flushed is how many frames were discarded after the window closed.
	Flushed int
}

// Calibrator measures ambient noise and derives a [Segmenter] threshold.
type Calibrator struct {
	margin float64
	floor  float64
	poll   time.Duration
	now    func() time.Time
	sleep  func(context.Context, time.Duration)
}

// CalibratorOption configures a [Calibrator].
type CalibratorOption func(*Calibrator)

// WithPollInterval sets how long the calibrator sleeps when the queue is
// empty. Default 10ms.
func WithPollInterval(d time.Duration) CalibratorOption {
	return func(c *Calibrator) { c.poll = d }
}

// WithClock replaces the wall clock and the sleep function. Tests use it to
// run calibration without real waiting.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration)) CalibratorOption {
	return func(c *Calibrator) {
		c.now = now
		c.sleep = sleep
	}
}

// NewCalibrator returns a calibrator applying margin to the loudest ambient
// frame and never returning less than floor.
func NewCalibrator(margin, floor float64, opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{
		margin: margin,
		floor:  floor,
		poll:   10 * time.Millisecond,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Calibrate drains frames from r for window of wall-clock time and derives a
// threshold from the loudest one. Frames still queued when the window closes
// are flushed so stale ambient audio never reaches the live session.
//
// Returns an error wrapping [ErrCalibration] if no frame arrived, or the
// context error if ctx ends first.
func (c *Calibrator) Calibrate(ctx context.Context, r FrameReader, window time.Duration) (CalibrationResult, error) {
	var res CalibrationResult
	deadline := c.now().Add(window)
	for c.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		f, ok := r.TryPop()
		if !ok {
			c.sleep(ctx, c.poll)
			continue
		}
		res.Frames++
		res.MaxEnergy = max(res.MaxEnergy, f.Energy())
	}
	res.Flushed = r.Flush()

	if res.Frames == 0 {
		return res, fmt.Errorf("%w: no audio frames during %s window", ErrCalibration, window)
	}
	res.Threshold = DeriveThreshold(res.MaxEnergy, c.margin, c.floor)
	slog.Info("vad: calibrated",
		"threshold", res.Threshold,
		"max_energy", res.MaxEnergy,
		"frames", res.Frames,
		"flushed", res.Flushed,
	)
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
