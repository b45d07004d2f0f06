package audio

import (
	"math"
	"time"
)

// BeepRate is the sample rate of generated droid beeps.
const BeepRate = 44100

const (
	beepCount   = 8
	beepMinFreq = 500.0
	beepMaxFreq = 3000.0
	beepMinDur  = 0.02
	beepMaxDur  = 0.08
	beepGap     = 20 * time.Millisecond
)

// Rand is the random source used by beep generation. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// Tone is one frequency-modulated beep.
type Tone struct {
	Freq     float64
	Duration time.Duration
}

// HappyTones is the fixed chirp played on good news.
var HappyTones = []Tone{
	{Freq: 1200, Duration: 50 * time.Millisecond},
	{Freq: 800, Duration: 20 * time.Millisecond},
	{Freq: 2500, Duration: 50 * time.Millisecond},
	{Freq: 1500, Duration: 20 * time.Millisecond},
	{Freq: 4000, Duration: 100 * time.Millisecond},
}

// RandomTones draws the "processing" sequence played before speech: eight
// tones between 500 and 3000 Hz lasting 20 to 80 ms each.
func RandomTones(r Rand) []Tone {
	tones := make([]Tone, beepCount)
	for i := range tones {
		f := math.Floor(beepMinFreq + r.Float64()*(beepMaxFreq-beepMinFreq))
		d := beepMinDur + r.Float64()*(beepMaxDur-beepMinDur)
		tones[i] = Tone{Freq: f, Duration: time.Duration(d * float64(time.Second))}
	}
	return tones
}

// Beeps renders tones at [BeepRate]. Each tone is a sine whose frequency is
// wobbled by a 50 Hz modulator, shaped by a decaying exponential envelope
// and followed by 20 ms of silence.
func Beeps(tones []Tone) PCM {
	gap := Silence(beepGap, BeepRate).Samples
	var out []float32
	for _, tone := range tones {
		n := samplesAt(tone.Duration, BeepRate)
		for i := range n {
			t := float64(i) / BeepRate
			mod := 50 * math.Sin(2*math.Pi*50*t)
			wave := 0.5 * math.Sin(2*math.Pi*(tone.Freq+mod)*t)
			out = append(out, float32(wave*math.Exp(-5*t)))
		}
		out = append(out, gap...)
	}
	return PCM{Samples: out, SampleRate: BeepRate}
}

func samplesAt(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}
