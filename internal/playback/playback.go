// Package playback plays prerecorded sound files: themed clips looked up by
// id, and random ambient sounds from the idle folder.
//
// Missing clips are a configuration problem, not a crash: both players
// report them as errors the caller logs and moves on from.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrWong99/droidvox/internal/observe"
	"github.com/MrWong99/droidvox/pkg/audio"
	"github.com/MrWong99/droidvox/pkg/audio/clip"
)

var (
	// ErrUnknownClip is returned for a clip id with no configured file.
	ErrUnknownClip = errors.New("playback: unknown clip")

	// ErrClipMissing is returned when a configured clip file does not exist.
	ErrClipMissing = errors.New("playback: clip file missing")
)

// Clips plays themed clips by id. Decoded audio is cached per file.
type Clips struct {
	sink    audio.Sink
	paths   map[string]string
	metrics *observe.Metrics

	mu    sync.Mutex
	cache map[string]audio.PCM
}

// NewClips returns a player for the id → file mapping in paths.
func NewClips(sink audio.Sink, paths map[string]string, m *observe.Metrics) *Clips {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	cp := make(map[string]string, len(paths))
	for id, p := range paths {
		cp[id] = p
	}
	return &Clips{sink: sink, paths: cp, metrics: m, cache: make(map[string]audio.PCM)}
}

// Play plays clip id at volume (1.0 = unchanged), cut to at most maxDur
// (0 = whole clip), and blocks until it finishes.
func (c *Clips) Play(ctx context.Context, id string, volume float64, maxDur time.Duration) error {
	path, ok := c.paths[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClip, id)
	}
	pcm, err := c.load(path)
	if err != nil {
		return err
	}
	pcm = clip.WithVolume(clip.Trim(pcm, maxDur), volume)

	start := time.Now()
	err = c.sink.Play(ctx, pcm)
	c.metrics.RecordStage(ctx, observe.StageClip, time.Since(start))
	if err != nil {
		return fmt.Errorf("playback: play %q: %w", id, err)
	}
	return nil
}

func (c *Clips) load(path string) (audio.PCM, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pcm, ok := c.cache[path]; ok {
		return pcm, nil
	}
	pcm, err := decodeFile(path)
	if err != nil {
		return audio.PCM{}, err
	}
	c.cache[path] = pcm
	return pcm, nil
}

func decodeFile(path string) (audio.PCM, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return audio.PCM{}, fmt.Errorf("%w: %s", ErrClipMissing, path)
	}
	pcm, err := clip.Decode(path)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("playback: %w", err)
	}
	return pcm, nil
}

// Rand picks a file index. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Folder plays a random supported file from a directory.
type Folder struct {
	sink   audio.Sink
	dir    string
	volume float64
	rng    Rand
}

// NewFolder returns a player for dir at volume. A nil rng uses the global
// math/rand/v2 source.
func NewFolder(sink audio.Sink, dir string, volume float64, rng Rand) *Folder {
	if rng == nil {
		rng = globalRand{}
	}
	return &Folder{sink: sink, dir: dir, volume: volume, rng: rng}
}

// PlayRandom plays one randomly chosen .wav or .mp3 from the folder. A
// missing or empty folder is a logged no-op.
func (f *Folder) PlayRandom(ctx context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("playback: idle folder missing", "dir", f.dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("playback: read %s: %w", f.dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && clip.Supported(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		slog.Debug("playback: idle folder empty", "dir", f.dir)
		return nil
	}

	name := files[f.rng.IntN(len(files))]
	pcm, err := decodeFile(filepath.Join(f.dir, name))
	if err != nil {
		return err
	}
	slog.Info("playback: idle sound", "file", name)
	if err := f.sink.Play(ctx, clip.WithVolume(pcm, f.volume)); err != nil {
		return fmt.Errorf("playback: play %s: %w", name, err)
	}
	return nil
}
