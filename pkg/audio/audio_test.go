package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
)

func constFrame(level float32, n int) audio.AudioFrame {
	s := make([]float32, n)
	for i := range s {
		s[i] = level
	}
	return audio.AudioFrame{Samples: s, SampleRate: 16000}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "constant", samples: []float32{0.5, -0.5, 0.5, -0.5}, want: 0.5},
		{name: "silence", samples: make([]float32, 100), want: 0},
		{name: "mixed", samples: []float32{3, 4}, want: math.Sqrt(12.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudioFrame_Duration(t *testing.T) {
	f := constFrame(0, 4000)
	if got := f.Duration(); got != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", got)
	}
	if got := (audio.AudioFrame{Samples: make([]float32, 10)}).Duration(); got != 0 {
		t.Errorf("Duration without rate = %v, want 0", got)
	}
}

func TestFlatten_PreservesOrder(t *testing.T) {
	frames := []audio.AudioFrame{
		{Samples: []float32{1, 2}, SampleRate: 16000},
		{Samples: []float32{3}, SampleRate: 16000},
		{Samples: []float32{4, 5}, SampleRate: 16000},
	}
	pcm := audio.Flatten(frames)
	want := []float32{1, 2, 3, 4, 5}
	if len(pcm.Samples) != len(want) {
		t.Fatalf("len = %d, want %d", len(pcm.Samples), len(want))
	}
	for i := range want {
		if pcm.Samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, pcm.Samples[i], want[i])
		}
	}
	if pcm.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", pcm.SampleRate)
	}
	if !audio.Flatten(nil).Empty() {
		t.Error("Flatten(nil) should be empty")
	}
}

func TestInt16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1}
	out := audio.Int16ToFloat32(audio.Float32ToInt16(in))
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1e-3 {
			t.Errorf("sample %d = %v, want ~%v", i, out[i], in[i])
		}
	}
}

func TestFloat32ToInt16_Clamps(t *testing.T) {
	b := audio.Float32ToInt16([]float32{2, -2})
	got := audio.Int16ToFloat32(b)
	if got[0] < 0.999 || got[1] > -0.999 {
		t.Errorf("clamped samples = %v, want ±1", got)
	}
}

func TestDownmixInterleaved(t *testing.T) {
	got := audio.DownmixInterleaved([]float32{0.2, 0.4, -1, 1}, 2)
	want := []float32{0.3, 0}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	if got := audio.Resample(in, 16000, 16000); len(got) != 4 {
		t.Errorf("same rate changed length: %d", len(got))
	}
	up := audio.Resample(in, 8000, 16000)
	if len(up) != 8 {
		t.Fatalf("upsampled len = %d, want 8", len(up))
	}
	if math.Abs(float64(up[1]-0.5)) > 1e-6 {
		t.Errorf("interpolated sample = %v, want 0.5", up[1])
	}
	down := audio.Resample(in, 16000, 8000)
	if len(down) != 2 {
		t.Errorf("downsampled len = %d, want 2", len(down))
	}
}

func TestScale(t *testing.T) {
	in := []float32{0.5, -0.5, 0.9}
	got := audio.Scale(in, 2)
	want := []float32{1, -1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
	if in[0] != 0.5 {
		t.Error("Scale modified its input")
	}
}

type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

func TestRandomTones_Bounds(t *testing.T) {
	for _, v := range []float64{0, 0.5, 0.999999} {
		tones := audio.RandomTones(&seqRand{vals: []float64{v}})
		if len(tones) != 8 {
			t.Fatalf("got %d tones, want 8", len(tones))
		}
		for _, tone := range tones {
			if tone.Freq < 500 || tone.Freq >= 3000 {
				t.Errorf("freq %v out of [500,3000)", tone.Freq)
			}
			if tone.Duration < 20*time.Millisecond || tone.Duration > 80*time.Millisecond {
				t.Errorf("duration %v out of [20ms,80ms]", tone.Duration)
			}
		}
	}
}

func TestBeeps_Length(t *testing.T) {
	pcm := audio.Beeps(audio.HappyTones)
	if pcm.SampleRate != audio.BeepRate {
		t.Fatalf("SampleRate = %d, want %d", pcm.SampleRate, audio.BeepRate)
	}
	// 240 ms of tones plus five 20 ms gaps.
	want := 0
	for _, tone := range audio.HappyTones {
		want += int(int64(tone.Duration)*audio.BeepRate/int64(time.Second)) + 882
	}
	if len(pcm.Samples) != want {
		t.Errorf("len = %d, want %d", len(pcm.Samples), want)
	}
	for i, s := range pcm.Samples {
		if s > 0.5 || s < -0.5 {
			t.Fatalf("sample %d = %v exceeds amplitude 0.5", i, s)
		}
	}
}

func TestEcho(t *testing.T) {
	in := audio.PCM{Samples: []float32{1, 0, 0, 0}, SampleRate: 1000}
	got := audio.Echo(in, 2*time.Millisecond, 1, 1, 0.5)
	want := []float32{1, 0, 0.5, 0}
	for i := range want {
		if math.Abs(float64(got.Samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got.Samples[i], want[i])
		}
	}
}

func TestSpeed(t *testing.T) {
	in := audio.PCM{Samples: make([]float32, 1200), SampleRate: 1000}
	got := audio.Speed(in, 1.2)
	if got.SampleRate != 1000 {
		t.Errorf("SampleRate = %d, want 1000", got.SampleRate)
	}
	if len(got.Samples) != 1000 {
		t.Errorf("len = %d, want 1000", len(got.Samples))
	}
	if same := audio.Speed(in, 1); len(same.Samples) != 1200 {
		t.Errorf("factor 1 changed length to %d", len(same.Samples))
	}
}
