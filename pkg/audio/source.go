// Package audio defines the frame types, the producer/consumer frame queue and
// the device abstractions used by the droidvox listening loop.
//
// The two device abstractions are:
//
//   - [Source] — a continuous microphone stream that pushes fixed-size
//     [AudioFrame] values into a caller-supplied sink without ever blocking.
//   - [Sink] — a speaker that plays a [PCM] buffer and returns once the audio
//     has finished.
//
// Hardware implementations live in audio/miniaudio; in-memory doubles live in
// audio/mock.
package audio

import (
	"context"
	"errors"
)

// ErrDevice reports an unrecoverable audio hardware or stream failure.
var ErrDevice = errors.New("audio: device error")

// Source is a continuous capture stream.
//
// Run opens the device and calls push once per captured frame, in capture
// order, from the device's real-time context, until ctx is cancelled. push
// must not block. Recoverable stream errors are logged and the stream is
// reopened; Run returns an error wrapping [ErrDevice] only when capture cannot
// continue. Run returns nil after ctx is cancelled.
type Source interface {
	Run(ctx context.Context, push func(AudioFrame)) error
}

// Sink plays audio to a speaker.
//
// Play blocks until pcm has been fully played or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, pcm PCM) error
}
