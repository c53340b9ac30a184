// Package textutil holds the tokenization primitives shared by the
// normalizer, clustering engine and summarizer. All stages must agree on
// what a token is or similarity scores drift between runs.
package textutil

import "strings"

// Tokenize lowercases text and splits it into alphanumeric tokens.
// Punctuation becomes whitespace, so "Air-strike" yields ["air", "strike"].
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, text)
	return strings.Fields(text)
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		set[tok] = true
	}
	return set
}

// SliceSet converts a token slice to a set.
func SliceSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

// Jaccard computes set overlap in [0,1]. Two empty sets score 0.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ContainsWord checks if text contains word as a whole word (not substring).
// Both arguments must already be lowercase.
func ContainsWord(text, word string) bool {
	idx := strings.Index(text, word)
	if idx < 0 {
		return false
	}

	if idx > 0 && isAlphaNum(text[idx-1]) {
		// Not a word boundary, might be substring - check later occurrences
		return ContainsWord(text[idx+len(word):], word)
	}

	end := idx + len(word)
	if end < len(text) && isAlphaNum(text[end]) {
		return ContainsWord(text[end:], word)
	}

	return true
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
