package orchestrator

import "time"

// Rand is the random source for confusion branches. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// ConfusionBranch names the behaviour picked when the responder has no
// answer.
type ConfusionBranch string

const (
	BranchSassy   ConfusionBranch = "sassy"
	BranchCantina ConfusionBranch = "cantina"
	BranchPanic   ConfusionBranch = "panic"
)

// ThemedBranch is a confusion response that speaks a lead-in line and then
// plays a clip.
type ThemedBranch struct {
	Weight      float64
	Text        string
	Clip        string
	Volume      float64
	MaxDuration time.Duration
}

// ConfusionAction is the single behaviour chosen for one confused turn.
type ConfusionAction struct {
	Branch ConfusionBranch

	// Text is spoken first. Never empty.
	Text string

	// Clip, when non-empty, is played after Text.
	Clip        string
	Volume      float64
	MaxDuration time.Duration
}

// ConfusionPolicy is a weighted choice between a sarcastic line and the
// themed clip branches.
type ConfusionPolicy struct {
	SassyWeight float64
	SassyLines  []string
	Cantina     ThemedBranch
	Panic       ThemedBranch
}

// fallbackSassy is used when the sassy branch wins but no lines are set.
const fallbackSassy = "Bip bup."

// Choose rolls once and returns exactly one action. Weights are relative;
// they need not sum to 1. If every weight is zero the sassy branch is used.
func (p ConfusionPolicy) Choose(r Rand) ConfusionAction {
	total := p.SassyWeight + p.Cantina.Weight + p.Panic.Weight
	if total > 0 {
		roll := r.Float64() * total
		switch {
		case roll < p.SassyWeight:
		case roll < p.SassyWeight+p.Cantina.Weight:
			return themed(BranchCantina, p.Cantina)
		default:
			if p.Panic.Weight > 0 {
				return themed(BranchPanic, p.Panic)
			}
			if p.Cantina.Weight > 0 {
				return themed(BranchCantina, p.Cantina)
			}
		}
	}

	text := fallbackSassy
	if n := len(p.SassyLines); n > 0 {
		text = p.SassyLines[r.IntN(n)]
	}
	return ConfusionAction{Branch: BranchSassy, Text: text}
}

func themed(b ConfusionBranch, t ThemedBranch) ConfusionAction {
	return ConfusionAction{
		Branch:      b,
		Text:        t.Text,
		Clip:        t.Clip,
		Volume:      t.Volume,
		MaxDuration: t.MaxDuration,
	}
}
