package miniaudio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
)

func TestFrameChunker_FixedSizeFrames(t *testing.T) {
	var frames []audio.AudioFrame
	fc := newFrameChunker(1000, 4, func(f audio.AudioFrame) { frames = append(frames, f) })

	// 10 samples in uneven writes: 3 + 5 + 2.
	fc.write(audio.Float32ToInt16([]float32{0.1, 0.1, 0.1}))
	if len(frames) != 0 {
		t.Fatalf("emitted %d frames before a full frame was buffered", len(frames))
	}
	fc.write(audio.Float32ToInt16([]float32{0.2, 0.2, 0.2, 0.2, 0.2}))
	fc.write(audio.Float32ToInt16([]float32{0.3, 0.3}))

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	for i, f := range frames {
		if len(f.Samples) != 4 {
			t.Errorf("frame %d has %d samples, want 4", i, len(f.Samples))
		}
		if f.SampleRate != 1000 {
			t.Errorf("frame %d rate = %d, want 1000", i, f.SampleRate)
		}
	}
	if frames[0].Timestamp != 0 || frames[1].Timestamp != 4*time.Millisecond {
		t.Errorf("timestamps = %v, %v; want 0, 4ms", frames[0].Timestamp, frames[1].Timestamp)
	}
	if len(fc.pending) != 2 {
		t.Errorf("pending = %d samples, want 2", len(fc.pending))
	}
}

func TestFrameChunker_FramesDoNotAlias(t *testing.T) {
	var frames []audio.AudioFrame
	fc := newFrameChunker(1000, 2, func(f audio.AudioFrame) { frames = append(frames, f) })
	fc.write(audio.Float32ToInt16([]float32{0.5, 0.5, -0.5, -0.5}))
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Samples[0] <= 0 || frames[1].Samples[0] >= 0 {
		t.Errorf("frames share storage: %v %v", frames[0].Samples, frames[1].Samples)
	}
}

func TestNewCapture_Validation(t *testing.T) {
	if _, err := NewCapture(0, 4000); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := NewCapture(16000, 0); err == nil {
		t.Error("expected error for zero frame size")
	}
	c, err := NewCapture(16000, 4000, WithMaxReopens(5), WithReopenDelay(time.Second))
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if c.maxReopens != 5 || c.reopenWait != time.Second {
		t.Errorf("options not applied: %+v", c)
	}
}

// streamStep is one scripted stream: frames pushed before it ends, and the
// error it ends with (nil means the device stopped on its own).
type streamStep struct {
	frames int
	err    error
}

// scriptedStreams plays one step per open and cancels ctx once the script
// is exhausted.
func scriptedStreams(t *testing.T, cancel context.CancelFunc, steps []streamStep) (streamFunc, *int) {
	t.Helper()
	calls := 0
	return func(_ context.Context, chunker *frameChunker) (bool, error) {
		calls++
		if calls > len(steps) {
			cancel()
			return false, nil
		}
		step := steps[calls-1]
		for range step.frames {
			chunker.write(audio.Float32ToInt16(make([]float32, chunker.frameSize)))
		}
		return step.err == nil, step.err
	}, &calls
}

func TestCaptureRun_ReopensAfterHealthyStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Five separate interruptions, each after the device delivered audio.
	steps := []streamStep{{frames: 2}, {frames: 1}, {frames: 3}, {frames: 1}, {frames: 1}}
	c, _ := NewCapture(1000, 4, WithMaxReopens(1), WithReopenDelay(time.Millisecond))
	var calls *int
	c.open, calls = scriptedStreams(t, cancel, steps)

	pushed := 0
	if err := c.Run(ctx, func(audio.AudioFrame) { pushed++ }); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if *calls != len(steps)+1 {
		t.Errorf("streams opened = %d, want %d", *calls, len(steps)+1)
	}
	if pushed != 8 {
		t.Errorf("pushed %d frames, want 8", pushed)
	}
}

func TestCaptureRun_GivesUpOnConsecutiveFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unplugged := errors.New("unplugged")
	// Two failures, then a stream that delivered audio before stopping
	// restarts the count at one; the next two failures exceed the limit.
	steps := []streamStep{
		{err: unplugged}, {err: unplugged},
		{frames: 1},
		{err: unplugged}, {err: unplugged},
		{frames: 1},
	}
	c, _ := NewCapture(1000, 4, WithMaxReopens(2), WithReopenDelay(time.Millisecond))
	var calls *int
	c.open, calls = scriptedStreams(t, cancel, steps)

	err := c.Run(ctx, func(audio.AudioFrame) {})
	if !errors.Is(err, audio.ErrDevice) || !errors.Is(err, unplugged) {
		t.Fatalf("Run = %v, want ErrDevice wrapping the stream error", err)
	}
	if *calls != 5 {
		t.Errorf("streams opened = %d, want 5", *calls)
	}
}

func TestSampleOffset(t *testing.T) {
	tests := []struct {
		samples int64
		rate    int
		want    time.Duration
	}{
		{0, 16000, 0},
		{4000, 16000, 250 * time.Millisecond},
		{16001, 16000, time.Second + 62500*time.Nanosecond},
		// A week of audio at 16 kHz, past the point where
		// samples*time.Second would overflow int64.
		{7 * 86400 * 16000, 16000, 7 * 24 * time.Hour},
		{7*86400*16000 + 8000, 16000, 7*24*time.Hour + 500*time.Millisecond},
	}
	for _, tc := range tests {
		if got := sampleOffset(tc.samples, tc.rate); got != tc.want {
			t.Errorf("sampleOffset(%d, %d) = %v, want %v", tc.samples, tc.rate, got, tc.want)
		}
	}
}
