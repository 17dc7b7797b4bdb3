package search

import (
	"strings"
	"unicode"
)

const (
	maxHighlights    = 3
	highlightContext = 50
	markOpen         = "<mark>"
	markClose        = "</mark>"
)

// Highlights returns up to three excerpts of content around the first
// occurrence of each query token, the match wrapped in <mark>.
func Highlights(content string, queryTokens []string) []string {
	text := []rune(content)
	lower := make([]rune, len(text))
	for i, r := range text {
		lower[i] = unicode.ToLower(r)
	}

	var out []string
	for _, tok := range queryTokens {
		if len(out) == maxHighlights {
			break
		}

		needle := []rune(tok)
		pos := indexRunes(lower, needle)
		if pos < 0 {
			continue
		}

		start := max(0, pos-highlightContext)
		end := min(len(text), pos+len(needle)+highlightContext)

		var b strings.Builder
		if start > 0 {
			b.WriteString("...")
		}
		b.WriteString(string(text[start:pos]))
		b.WriteString(markOpen)
		b.WriteString(string(text[pos : pos+len(needle)]))
		b.WriteString(markClose)
		b.WriteString(string(text[pos+len(needle) : end]))
		if end < len(text) {
			b.WriteString("...")
		}
		out = append(out, b.String())
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
