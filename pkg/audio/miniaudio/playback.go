package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// Player is an [audio.Sink] writing to the default output device.
type Player struct {
	mu   sync.Mutex // serialises Play calls
	actx *malgo.AllocatedContext
}

var _ audio.Sink = (*Player)(nil)

// NewPlayer allocates the miniaudio context used by every Play call.
func NewPlayer() (*Player, error) {
	actx, err := initContext()
	if err != nil {
		return nil, err
	}
	return &Player{actx: actx}, nil
}

// Play implements [audio.Sink]. A playback device is opened at the buffer's
// own sample rate, so callers never resample for output.
func (p *Player) Play(ctx context.Context, pcm audio.PCM) error {
	if pcm.Empty() {
		return nil
	}
	if pcm.SampleRate <= 0 {
		return fmt.Errorf("miniaudio: play: invalid sample rate %d", pcm.SampleRate)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	const channels = 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = uint32(pcm.SampleRate)
	cfg.Playback.Format = format
	cfg.Playback.Channels = channels
	cfg.Alsa.NoMMap = 1

	buf := audio.Float32ToInt16(pcm.Samples)
	done := make(chan struct{})
	var (
		pos      int
		doneOnce sync.Once
	)

	device, err := malgo.InitDevice(p.actx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n > len(out) {
				n = len(out)
			}
			copied := copy(out[:n], buf[pos:])
			pos += copied
			clear(out[copied:n])
			if pos >= len(buf) {
				doneOnce.Do(func() { close(done) })
			}
		},
	})
	if err != nil {
		return fmt.Errorf("miniaudio: init playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("miniaudio: start playback device: %w", err)
	}

	select {
	case <-done:
		// Let the device play out its last period before tearing it down.
		select {
		case <-ctx.Done():
		case <-time.After(tailPadding):
		}
	case <-ctx.Done():
	}
	if err := device.Stop(); err != nil {
		return fmt.Errorf("miniaudio: stop playback device: %w", err)
	}
	return ctx.Err()
}

// Close releases the miniaudio context.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	freeContext(p.actx)
	p.actx = nil
	return nil
}

const tailPadding = 100 * time.Millisecond
