package audio

import "time"

// AudioFrame is one fixed-size block of mono microphone samples. Frames are
// produced by a [Source] at a fixed cadence (sample rate / frame size) and are
// never mutated once pushed into a [FrameQueue].
type AudioFrame struct {
	// Samples holds normalized mono samples in [-1, 1].
	Samples []float32

	// SampleRate in Hz (16000 for the microphone path).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration reports how much audio the frame spans.
func (f AudioFrame) Duration() time.Duration {
	return samplesDuration(len(f.Samples), f.SampleRate)
}

// Energy returns the frame's root-mean-square level.
func (f AudioFrame) Energy() float64 {
	return RMS(f.Samples)
}

// PCM is a block of mono float samples at a known rate: a synthesized
// utterance, a decoded clip, or a flattened utterance buffer.
type PCM struct {
	Samples    []float32
	SampleRate int
}

// Duration reports how much audio the buffer spans.
func (p PCM) Duration() time.Duration {
	return samplesDuration(len(p.Samples), p.SampleRate)
}

// Empty reports whether the buffer holds no samples.
func (p PCM) Empty() bool { return len(p.Samples) == 0 }

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// Flatten concatenates the samples of frames in order. The result carries the
// sample rate of the first frame.
func Flatten(frames []AudioFrame) PCM {
	if len(frames) == 0 {
		return PCM{}
	}
	n := 0
	for _, f := range frames {
		n += len(f.Samples)
	}
	out := make([]float32, 0, n)
	for _, f := range frames {
		out = append(out, f.Samples...)
	}
	return PCM{Samples: out, SampleRate: frames[0].SampleRate}
}

// Silence returns d worth of zero samples at rate.
func Silence(d time.Duration, rate int) PCM {
	return PCM{Samples: make([]float32, samplesAt(d, rate)), SampleRate: rate}
}
