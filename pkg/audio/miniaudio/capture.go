package miniaudio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// Capture is an [audio.Source] reading the default (or configured) input
// device.
type Capture struct {
	sampleRate int
	frameSize  int
	maxReopens int
	reopenWait time.Duration

	// open runs one device stream; nil means the malgo device.
	open streamFunc
}

// streamFunc runs one capture stream feeding chunker until ctx ends or the
// stream stops on its own (stopped).
type streamFunc func(ctx context.Context, chunker *frameChunker) (stopped bool, err error)

var _ audio.Source = (*Capture)(nil)

// CaptureOption configures a [Capture].
type CaptureOption func(*Capture)

// WithMaxReopens sets how many consecutive times a stopped stream is reopened
// before Run gives up with [audio.ErrDevice]. Default 3.
func WithMaxReopens(n int) CaptureOption {
	return func(c *Capture) { c.maxReopens = n }
}

// WithReopenDelay sets the pause before reopening a stopped stream.
// Default 500ms.
func WithReopenDelay(d time.Duration) CaptureOption {
	return func(c *Capture) { c.reopenWait = d }
}

// NewCapture creates a capture source emitting frames of frameSize samples
// at sampleRate.
func NewCapture(sampleRate, frameSize int, opts ...CaptureOption) (*Capture, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("miniaudio: sample rate must be positive, got %d", sampleRate)
	}
	if frameSize <= 0 {
		return nil, fmt.Errorf("miniaudio: frame size must be positive, got %d", frameSize)
	}
	c := &Capture{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		maxReopens: 3,
		reopenWait: 500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Run implements [audio.Source]. An interrupted stream is reopened. A stream
// that delivered audio before stopping restarts the [WithMaxReopens] count,
// so only back-to-back failures end Run.
func (c *Capture) Run(ctx context.Context, push func(audio.AudioFrame)) error {
	open := c.open
	if open == nil {
		actx, err := initContext()
		if err != nil {
			return fmt.Errorf("%w: %w", audio.ErrDevice, err)
		}
		defer freeContext(actx)
		open = func(ctx context.Context, chunker *frameChunker) (bool, error) {
			return c.stream(ctx, actx, chunker)
		}
	}

	chunker := newFrameChunker(c.sampleRate, c.frameSize, push)
	failures := 0
	for {
		before := chunker.frames()
		stopped, err := open(ctx, chunker)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil && !stopped {
			return nil
		}
		if chunker.frames() > before {
			failures = 0
		}
		failures++
		if failures > c.maxReopens {
			if err == nil {
				err = fmt.Errorf("stream stopped %d times in a row", failures)
			}
			return fmt.Errorf("%w: capture: %w", audio.ErrDevice, err)
		}
		slog.Warn("miniaudio: capture stream interrupted, reopening",
			"attempt", failures,
			"err", err,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reopenWait):
		}
	}
}

// stream opens one capture device and runs it until ctx ends or the device
// stops on its own. stopped reports the latter.
func (c *Capture) stream(ctx context.Context, actx *malgo.AllocatedContext, chunker *frameChunker) (stopped bool, err error) {
	const channels = 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = uint32(c.sampleRate)
	cfg.Capture.Format = format
	cfg.Capture.Channels = channels
	cfg.Alsa.NoMMap = 1

	stopCh := make(chan struct{})
	var stopOnce sync.Once

	device, err := malgo.InitDevice(actx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(in) < n {
				return
			}
			chunker.write(in[:n])
		},
		Stop: func() {
			stopOnce.Do(func() { close(stopCh) })
		},
	})
	if err != nil {
		return false, fmt.Errorf("init capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return false, fmt.Errorf("start capture device: %w", err)
	}
	slog.Info("miniaudio: capture started", "sample_rate", c.sampleRate, "frame_size", c.frameSize)

	select {
	case <-ctx.Done():
		// Stop fires the Stop callback too; stopCh is ignored from here on.
		if err := device.Stop(); err != nil {
			slog.Warn("miniaudio: stop capture device", "err", err)
		}
		return false, nil
	case <-stopCh:
		return true, nil
	}
}

// frameChunker turns arbitrarily sized callback buffers into fixed-size
// frames. write is only called from the device callback thread.
type frameChunker struct {
	sampleRate int
	frameSize  int
	push       func(audio.AudioFrame)

	pending []float32
	samples int64 // samples emitted so far, for timestamps
	emitted atomic.Int64
}

func newFrameChunker(sampleRate, frameSize int, push func(audio.AudioFrame)) *frameChunker {
	return &frameChunker{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		push:       push,
		pending:    make([]float32, 0, frameSize*2),
	}
}

// frames reports how many frames have been pushed.
func (fc *frameChunker) frames() int64 { return fc.emitted.Load() }

func (fc *frameChunker) write(pcm []byte) {
	fc.pending = append(fc.pending, audio.Int16ToFloat32(pcm)...)
	for len(fc.pending) >= fc.frameSize {
		samples := make([]float32, fc.frameSize)
		copy(samples, fc.pending[:fc.frameSize])
		n := copy(fc.pending, fc.pending[fc.frameSize:])
		fc.pending = fc.pending[:n]

		ts := sampleOffset(fc.samples, fc.sampleRate)
		fc.samples += int64(fc.frameSize)
		fc.emitted.Add(1)
		fc.push(audio.AudioFrame{Samples: samples, SampleRate: fc.sampleRate, Timestamp: ts})
	}
}

// sampleOffset converts a sample count to elapsed stream time. Whole seconds
// are split off first so the multiplication cannot overflow.
func sampleOffset(samples int64, rate int) time.Duration {
	r := int64(rate)
	return time.Duration(samples/r)*time.Second + time.Duration(samples%r)*time.Second/time.Duration(r)
}
