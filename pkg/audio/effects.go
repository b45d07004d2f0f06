package audio

import "time"

// Echo mixes a single delayed copy of p back onto itself. gainIn scales the
// input before mixing, decay scales the delayed copy and gainOut scales the
// sum. The output is clamped to [-1, 1] and has the same length as p.
func Echo(p PCM, delay time.Duration, gainIn, gainOut, decay float64) PCM {
	d := samplesAt(delay, p.SampleRate)
	out := make([]float32, len(p.Samples))
	for i, s := range p.Samples {
		v := float64(s) * gainIn
		if i >= d {
			v += float64(p.Samples[i-d]) * gainIn * decay
		}
		v *= gainOut
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return PCM{Samples: out, SampleRate: p.SampleRate}
}

// Speed plays p faster (factor > 1) or slower (factor < 1), shifting pitch
// along with tempo the way a tape machine would.
func Speed(p PCM, factor float64) PCM {
	if factor <= 0 || factor == 1 || p.SampleRate <= 0 {
		return p
	}
	src := int(float64(p.SampleRate) * factor)
	return PCM{Samples: Resample(p.Samples, src, p.SampleRate), SampleRate: p.SampleRate}
}
