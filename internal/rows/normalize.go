package rows

import (
	"strings"
	"unicode"
)

var honorifics = map[string]bool{"mr": true, "mrs": true, "miss": true, "ms": true, "mz": true}

var suffixes = map[string]bool{"junior": true, "jr": true, "iii": true, "iv": true}

// NormalizeName reduces a free-text person name to a fuzzy duplicate
// detection key: tokens are lowercased and stripped of non-letters, a
// leading honorific and a trailing generational suffix are dropped, and
// only the first and last remaining tokens survive. Collisions are
// expected; this is an advisory key, not an identity.
func NormalizeName(name string) string {
	var tokens []string
	for _, word := range strings.Fields(name) {
		var b strings.Builder
		for _, r := range strings.ToLower(word) {
			if unicode.IsLetter(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
		}
	}
	if len(tokens) > 0 && honorifics[tokens[0]] {
		tokens = tokens[1:]
	}
	if len(tokens) > 0 && suffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return tokens[0]
	}
	return tokens[0] + " " + tokens[len(tokens)-1]
}
