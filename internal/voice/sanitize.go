package voice

import (
	"strings"
	"unicode"
)

// keep lists the punctuation that survives sanitizing. Everything else that
// is not a letter, digit or whitespace would be vocalized literally by most
// synthesizers ("asterisco", "almohadilla").
const keep = ",¿?¡!."

// Sanitize strips markdown and symbols from a reply before synthesis.
// Asterisks are removed first, then every rune that is not a letter, digit,
// underscore, whitespace or one of , ¿ ? ¡ ! . is dropped. The result is
// trimmed.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "*", "")
	text = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r), r == '_':
			return r
		case strings.ContainsRune(keep, r):
			return r
		}
		return -1
	}, text)
	return strings.TrimSpace(text)
}
