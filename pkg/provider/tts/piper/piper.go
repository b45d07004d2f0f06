// Package piper provides a tts.Provider that runs the Piper neural TTS binary
// as a subprocess, one process per utterance.
//
// The text is written to the process's stdin and Piper is asked for raw
// output (--output_raw): signed 16-bit little-endian mono samples at the
// voice model's rate, 22050 Hz for the "medium" models.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/provider/tts"
)

// DefaultSampleRate is the output rate of Piper's medium-quality voices.
const DefaultSampleRate = 22050

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a piper Provider.
type Option func(*Provider)

// WithSampleRate overrides the sample rate assumed for Piper's raw output.
// It must match the voice model (low = 16000, medium/high = 22050).
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithSpeaker selects a speaker index for multi-speaker voice models.
func WithSpeaker(id string) Option {
	return func(p *Provider) {
		p.speaker = id
	}
}

// Provider implements tts.Provider by invoking the piper executable.
type Provider struct {
	binary     string
	model      string
	speaker    string
	sampleRate int
}

// New creates a Provider running binary (e.g. "./piper/piper") with the
// voice model at modelPath (e.g. "./voices/es_ES-sharvard-medium.onnx").
func New(binary, modelPath string, opts ...Option) (*Provider, error) {
	if binary == "" {
		return nil, errors.New("piper: binary must not be empty")
	}
	if modelPath == "" {
		return nil, errors.New("piper: model path must not be empty")
	}
	p := &Provider{binary: binary, model: modelPath, sampleRate: DefaultSampleRate}
	for _, o := range opts {
		o(p)
	}
	if p.sampleRate <= 0 {
		return nil, fmt.Errorf("piper: invalid sample rate %d", p.sampleRate)
	}
	return p, nil
}

func (p *Provider) args() []string {
	args := []string{"--model", p.model, "--output_raw"}
	if p.speaker != "" {
		args = append(args, "--speaker", p.speaker)
	}
	return args
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) (audio.PCM, error) {
	if strings.TrimSpace(text) == "" {
		return audio.PCM{}, tts.ErrEmptyText
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	// Piper synthesizes one utterance per input line.
	cmd.Stdin = strings.NewReader(strings.ReplaceAll(text, "\n", " ") + "\n")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return audio.PCM{}, fmt.Errorf("piper: %w", ctx.Err())
		}
		return audio.PCM{}, fmt.Errorf("piper: run %s: %w: %s", p.binary, err, lastLine(stderr.String()))
	}
	if stdout.Len() < 2 {
		return audio.PCM{}, errors.New("piper: no audio produced")
	}
	return audio.PCM{
		Samples:    audio.Int16ToFloat32(stdout.Bytes()),
		SampleRate: p.sampleRate,
	}, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
