package vad

import (
	"time"

	"github.com/MrWong99/droidvox/pkg/audio"
)

// State is the externally visible segmenter state.
type State int

const (
	// StateIdle means no utterance is being captured.
	StateIdle State = iota

	// StateRecording means the last frame was speech.
	StateRecording

	// StateTrailingSilence means speech was captured and the frames since have
	// been quiet, but not for long enough to end the utterance.
	StateTrailingSilence
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTrailingSilence:
		return "trailing_silence"
	default:
		return "unknown"
	}
}

// EventType classifies the outcome of feeding one frame to a [Segmenter].
type EventType int

const (
	// EventNone means nothing noteworthy happened.
	EventNone EventType = iota

	// EventSpeechStart means a loud frame opened a new utterance.
	EventSpeechStart

	// EventSpeechResume means speech returned during trailing silence.
	EventSpeechResume

	// EventUtteranceComplete means sustained silence closed the utterance;
	// [Event.Utterance] holds it.
	EventUtteranceComplete
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechResume:
		return "speech_resume"
	case EventUtteranceComplete:
		return "utterance_complete"
	default:
		return "unknown"
	}
}

// Event is the result of [Segmenter.Process].
type Event struct {
	Type EventType

	// Energy is the RMS of the processed frame.
	Energy float64

	// Utterance is set only for [EventUtteranceComplete].
	Utterance *Utterance
}

// Utterance is a contiguous, capture-ordered run of frames from the first
// loud frame through the last trailing-silence frame.
type Utterance struct {
	Frames []audio.AudioFrame
}

// PCM flattens the utterance into a single buffer.
func (u *Utterance) PCM() audio.PCM {
	return audio.Flatten(u.Frames)
}

// Duration is the total audio length of the utterance.
func (u *Utterance) Duration() time.Duration {
	var d time.Duration
	for _, f := range u.Frames {
		d += f.Duration()
	}
	return d
}

// segmentState is a tagged variant: each implementation carries exactly the
// payload valid for its state, so "idle with a buffer" cannot be expressed.
type segmentState interface {
	state() State
}

type idle struct{}

type recording struct {
	frames []audio.AudioFrame
}

type trailing struct {
	frames  []audio.AudioFrame
	silence time.Duration
}

func (idle) state() State      { return StateIdle }
func (recording) state() State { return StateRecording }
func (trailing) state() State  { return StateTrailingSilence }

// Segmenter is the voice-activity state machine.
//
// Silence is measured in captured audio time (the summed duration of quiet
// frames) rather than wall-clock time, so a consumer that falls behind the
// producer still segments exactly as a real-time one would.
type Segmenter struct {
	threshold float64
	silence   time.Duration
	st        segmentState
}

// NewSegmenter returns an idle segmenter. Frames with energy strictly above
// threshold count as speech; an utterance completes once the accumulated
// trailing silence exceeds silence.
func NewSegmenter(threshold float64, silence time.Duration) *Segmenter {
	return &Segmenter{threshold: threshold, silence: silence, st: idle{}}
}

// Threshold returns the current speech threshold.
func (s *Segmenter) Threshold() float64 { return s.threshold }

// SetThreshold replaces the speech threshold, e.g. after calibration.
func (s *Segmenter) SetThreshold(t float64) { s.threshold = t }

// State reports the current state.
func (s *Segmenter) State() State { return s.st.state() }

// Buffered returns how many frames the in-progress utterance holds.
func (s *Segmenter) Buffered() int {
	switch st := s.st.(type) {
	case recording:
		return len(st.frames)
	case trailing:
		return len(st.frames)
	default:
		return 0
	}
}

// Reset discards any in-progress utterance and returns to [StateIdle].
func (s *Segmenter) Reset() { s.st = idle{} }

// Process advances the state machine by one frame.
func (s *Segmenter) Process(f audio.AudioFrame) Event {
	energy := f.Energy()
	loud := energy > s.threshold
	ev := Event{Type: EventNone, Energy: energy}

	switch st := s.st.(type) {
	case idle:
		if loud {
			s.st = recording{frames: []audio.AudioFrame{f}}
			ev.Type = EventSpeechStart
		}

	case recording:
		st.frames = append(st.frames, f)
		if loud {
			s.st = st
		} else {
			s.st = trailing{frames: st.frames, silence: f.Duration()}
		}

	case trailing:
		st.frames = append(st.frames, f)
		if loud {
			s.st = recording{frames: st.frames}
			ev.Type = EventSpeechResume
			break
		}
		st.silence += f.Duration()
		if st.silence > s.silence {
			s.st = idle{}
			ev.Type = EventUtteranceComplete
			ev.Utterance = &Utterance{Frames: st.frames}
			break
		}
		s.st = st
	}
	return ev
}
