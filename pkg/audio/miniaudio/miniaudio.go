// Package miniaudio implements [audio.Source] and [audio.Sink] on top of the
// miniaudio library through github.com/gen2brain/malgo.
//
// Capture delivers 16-bit mono frames converted to normalized floats and
// chunked to a fixed frame size. Player opens a short-lived playback device per
// buffer and blocks until the device has drained it.
package miniaudio

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// initContext allocates a miniaudio context whose log lines go to slog at
// debug level.
func initContext() (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w", err)
	}
	return ctx, nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	if err := ctx.Uninit(); err != nil {
		slog.Warn("miniaudio: uninit context", "err", err)
	}
	ctx.Free()
}
