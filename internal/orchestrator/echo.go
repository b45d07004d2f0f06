package orchestrator

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// IsEcho reports whether transcript is the droid hearing its own last
// utterance: the case-insensitive Jaro-Winkler similarity of the two is at
// least threshold. A non-positive threshold or an empty side never matches.
func IsEcho(transcript, lastSpoken string, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	a := normalize(transcript)
	b := normalize(lastSpoken)
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= threshold
}

// normalize lower-cases s and keeps only letters, digits and single spaces,
// so whisper's punctuation choices do not affect the score.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
