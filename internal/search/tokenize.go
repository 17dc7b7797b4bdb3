package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// anything that is neither an ASCII word character, whitespace nor Hebrew
var nonWord = regexp.MustCompile(`[^\w\s\x{0590}-\x{05FF}]+`)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// English
		"the", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of",
		"with", "by", "from", "is", "are", "was", "were", "be", "been", "it",
		"this", "that", "as", "not", "no",
		// Hebrew
		"של", "את", "על", "עם", "זה", "זו", "הוא", "היא", "אני", "או", "גם",
		"כי", "לא", "יש", "אם", "אל", "מה", "כל", "הם", "הן",
	} {
		stopWords[w] = struct{}{}
	}
}

// IsStopWord reports whether the lowercased token is ignored.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Tokenize lowercases text, strips punctuation, splits on whitespace and
// drops one-character tokens and stop words. Tokens are unique and keep
// their first-seen order.
func Tokenize(text string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), " ")

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) <= 1 || IsStopWord(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}
