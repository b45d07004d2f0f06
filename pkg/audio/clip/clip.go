// Package clip decodes sound files (MP3 and 16-bit PCM WAV) into mono
// [audio.PCM] buffers for playback and speech synthesis responses.
package clip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// ErrUnsupportedFormat is returned for files that are neither MP3 nor WAV, or
// WAV files with a sample encoding other than 16-bit PCM.
var ErrUnsupportedFormat = errors.New("clip: unsupported format")

// Extensions lists the file extensions Decode understands, lower case.
var Extensions = []string{".wav", ".mp3"}

// Supported reports whether path has a decodable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Decode reads the file at path and decodes it according to its extension.
func Decode(path string) (audio.PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("clip: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return DecodeMP3(bytes.NewReader(data))
	case ".wav":
		return DecodeWAV(data)
	default:
		return audio.PCM{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo, which
// is downmixed to mono.
func DecodeMP3(r io.Reader) (audio.PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("clip: mp3 decoder: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("clip: decode mp3: %w", err)
	}
	stereo := audio.Int16ToFloat32(raw)
	return audio.PCM{
		Samples:    audio.DownmixInterleaved(stereo, 2),
		SampleRate: dec.SampleRate(),
	}, nil
}

// wavFormat holds the fields of a "fmt " chunk that matter for decoding.
type wavFormat struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// DecodeWAV decodes a RIFF/WAVE container holding 16-bit PCM. Chunks are
// walked rather than assuming a 44-byte header, since the fmt chunk size
// varies between encoders. Multi-channel audio is downmixed to mono.
func DecodeWAV(data []byte) (audio.PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return audio.PCM{}, errors.New("clip: not a RIFF/WAVE file")
	}

	var (
		format  wavFormat
		haveFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return audio.PCM{}, errors.New("clip: truncated fmt chunk")
			}
			f := data[body:]
			format = wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(f[0:2]),
				channels:      int(binary.LittleEndian.Uint16(f[2:4])),
				sampleRate:    int(binary.LittleEndian.Uint32(f[4:8])),
				bitsPerSample: int(binary.LittleEndian.Uint16(f[14:16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return audio.PCM{}, errors.New("clip: data chunk before fmt chunk")
			}
			// 1 = PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE.
			if (format.audioFormat != 1 && format.audioFormat != 0xFFFE) || format.bitsPerSample != 16 {
				return audio.PCM{}, fmt.Errorf("%w: wav format %d, %d bits",
					ErrUnsupportedFormat, format.audioFormat, format.bitsPerSample)
			}
			end := body + size
			// Streaming encoders write a placeholder size; take what is there.
			if size == 0 || end > len(data) {
				end = len(data)
			}
			samples := audio.Int16ToFloat32(data[body:end])
			return audio.PCM{
				Samples:    audio.DownmixInterleaved(samples, format.channels),
				SampleRate: format.sampleRate,
			}, nil
		}

		off = body + size
		if size%2 != 0 {
			off++
		}
	}
	return audio.PCM{}, errors.New("clip: missing data chunk")
}

// EncodeWAV wraps pcm in a 16-bit mono RIFF/WAVE container.
func EncodeWAV(pcm audio.PCM) []byte {
	body := audio.Float32ToInt16(pcm.Samples)
	var buf bytes.Buffer
	buf.Grow(44 + len(body))
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(body)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1)) // PCM
	_ = binary.Write(&buf, le, uint16(1)) // mono
	_ = binary.Write(&buf, le, uint32(pcm.SampleRate))
	_ = binary.Write(&buf, le, uint32(pcm.SampleRate*2))
	_ = binary.Write(&buf, le, uint16(2))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

// Trim returns at most max of pcm. A non-positive max leaves pcm untouched.
func Trim(pcm audio.PCM, max time.Duration) audio.PCM {
	if max <= 0 || pcm.SampleRate <= 0 {
		return pcm
	}
	n := int(int64(max) * int64(pcm.SampleRate) / int64(time.Second))
	if n >= len(pcm.Samples) {
		return pcm
	}
	return audio.PCM{Samples: pcm.Samples[:n], SampleRate: pcm.SampleRate}
}

// WithVolume returns pcm scaled by volume (1.0 = unchanged).
func WithVolume(pcm audio.PCM, volume float64) audio.PCM {
	if volume == 1 {
		return pcm
	}
	return audio.PCM{Samples: audio.Scale(pcm.Samples, volume), SampleRate: pcm.SampleRate}
}
