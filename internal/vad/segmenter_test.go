package vad_test

import (
	"testing"
	"time"

	"github.com/MrWong99/droidvox/internal/vad"
	"github.com/MrWong99/droidvox/pkg/audio"
)

const (
	loud  = float32(0.01)
	quiet = float32(0.001)
)

// feed processes frames in order and returns every non-None event.
func feed(s *vad.Segmenter, levels []float32) []vad.Event {
	var events []vad.Event
	for i, lvl := range levels {
		f := levelFrame(lvl)
		f.Timestamp = time.Duration(i) * 100 * time.Millisecond
		if ev := s.Process(f); ev.Type != vad.EventNone {
			events = append(events, ev)
		}
	}
	return events
}

func repeat(lvl float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = lvl
	}
	return out
}

func concat(parts ...[]float32) []float32 {
	var out []float32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func completions(events []vad.Event) []*vad.Utterance {
	var out []*vad.Utterance
	for _, ev := range events {
		if ev.Type == vad.EventUtteranceComplete {
			out = append(out, ev.Utterance)
		}
	}
	return out
}

func TestSegmenter_Transitions(t *testing.T) {
	s := vad.NewSegmenter(0.005, 300*time.Millisecond)
	steps := []struct {
		level float32
		state vad.State
		event vad.EventType
	}{
		{quiet, vad.StateIdle, vad.EventNone},
		{loud, vad.StateRecording, vad.EventSpeechStart},
		{loud, vad.StateRecording, vad.EventNone},
		{quiet, vad.StateTrailingSilence, vad.EventNone},
		{loud, vad.StateRecording, vad.EventSpeechResume},
		{quiet, vad.StateTrailingSilence, vad.EventNone},
		{quiet, vad.StateTrailingSilence, vad.EventNone},
		{quiet, vad.StateTrailingSilence, vad.EventNone},
		{quiet, vad.StateIdle, vad.EventUtteranceComplete},
	}
	for i, step := range steps {
		ev := s.Process(levelFrame(step.level))
		if ev.Type != step.event {
			t.Errorf("step %d: event = %v, want %v", i, ev.Type, step.event)
		}
		if s.State() != step.state {
			t.Errorf("step %d: state = %v, want %v", i, s.State(), step.state)
		}
	}
}

func TestSegmenter_Hysteresis(t *testing.T) {
	// 100 ms frames, 1.5 s silence: N = 16 quiet frames is the first N with
	// N*100ms > 1.5s.
	const n = 16
	s := vad.NewSegmenter(0.005, 1500*time.Millisecond)
	levels := concat(repeat(loud, 3), repeat(quiet, 1), repeat(loud, 2), repeat(quiet, n))
	utts := completions(feed(s, levels))

	if len(utts) != 1 {
		t.Fatalf("got %d utterances, want 1", len(utts))
	}
	u := utts[0]
	if len(u.Frames) != len(levels) {
		t.Fatalf("utterance has %d frames, want %d", len(u.Frames), len(levels))
	}
	for i, f := range u.Frames {
		if f.Timestamp != time.Duration(i)*100*time.Millisecond {
			t.Fatalf("frame %d out of order: ts %v", i, f.Timestamp)
		}
	}
	if s.State() != vad.StateIdle || s.Buffered() != 0 {
		t.Errorf("after completion state=%v buffered=%d, want idle/0", s.State(), s.Buffered())
	}
}

func TestSegmenter_ShortPauseDoesNotComplete(t *testing.T) {
	s := vad.NewSegmenter(0.005, 1500*time.Millisecond)
	// Exactly 1.5 s of silence is not "more than" the threshold.
	events := feed(s, concat(repeat(loud, 2), repeat(quiet, 15)))
	if n := len(completions(events)); n != 0 {
		t.Fatalf("got %d utterances, want 0", n)
	}
	if s.State() != vad.StateTrailingSilence {
		t.Errorf("state = %v, want trailing_silence", s.State())
	}
	if s.Buffered() != 17 {
		t.Errorf("Buffered = %d, want 17", s.Buffered())
	}
}

func TestSegmenter_SustainedSilenceStaysIdle(t *testing.T) {
	s := vad.NewSegmenter(0.005, 100*time.Millisecond)
	for i := range 10000 {
		ev := s.Process(levelFrame(quiet))
		if ev.Type != vad.EventNone {
			t.Fatalf("frame %d: event %v on silence", i, ev.Type)
		}
		if s.State() != vad.StateIdle {
			t.Fatalf("frame %d: state %v on silence", i, s.State())
		}
	}
}

func TestSegmenter_ThresholdIsStrict(t *testing.T) {
	s := vad.NewSegmenter(0.01, time.Second)
	if ev := s.Process(levelFrame(0.01)); ev.Type != vad.EventNone {
		t.Errorf("frame at threshold produced %v, want none", ev.Type)
	}
}

func TestSegmenter_EndToEnd(t *testing.T) {
	q := audio.NewFrameQueue()
	for _, lvl := range []float32{0.001, 0.002, 0.0015} {
		q.Push(levelFrame(lvl))
	}
	res, err := newTestCalibrator(1.5, 0.005).Calibrate(t.Context(), q, 2*time.Second)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	s := vad.NewSegmenter(res.Threshold, 1500*time.Millisecond)
	utts := completions(feed(s, concat(repeat(0.01, 5), repeat(0.001, 16))))
	if len(utts) != 1 {
		t.Fatalf("got %d utterances, want 1", len(utts))
	}
	if got := len(utts[0].Frames); got < 5+15 {
		t.Errorf("utterance has %d frames, want at least 20", got)
	}
	if got := utts[0].Duration(); got != 2100*time.Millisecond {
		t.Errorf("Duration = %v, want 2.1s", got)
	}
	if pcm := utts[0].PCM(); len(pcm.Samples) != 21*1600 {
		t.Errorf("PCM has %d samples, want %d", len(pcm.Samples), 21*1600)
	}
}

func TestSegmenter_Reset(t *testing.T) {
	s := vad.NewSegmenter(0.005, time.Second)
	feed(s, repeat(loud, 4))
	if s.Buffered() != 4 {
		t.Fatalf("Buffered = %d, want 4", s.Buffered())
	}
	s.Reset()
	if s.State() != vad.StateIdle || s.Buffered() != 0 {
		t.Errorf("after Reset state=%v buffered=%d", s.State(), s.Buffered())
	}
	if ev := s.Process(levelFrame(loud)); ev.Type != vad.EventSpeechStart {
		t.Errorf("first frame after Reset = %v, want speech_start", ev.Type)
	}
}

func TestUtteranceBuffersAreIndependent(t *testing.T) {
	s := vad.NewSegmenter(0.005, 100*time.Millisecond)
	first := completions(feed(s, concat(repeat(loud, 2), repeat(quiet, 2))))
	second := completions(feed(s, concat(repeat(loud, 3), repeat(quiet, 2))))
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d/%d utterances", len(first), len(second))
	}
	if len(first[0].Frames) != 4 || len(second[0].Frames) != 5 {
		t.Errorf("frame counts = %d/%d, want 4/5", len(first[0].Frames), len(second[0].Frames))
	}
}
