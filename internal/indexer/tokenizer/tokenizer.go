// Package tokenizer turns field text into index terms: it lower-cases the
// input, splits on non-alphanumeric boundaries, drops stop-words and
// applies a suffix-stripping stemmer. Query terms go through the same
// analysis so they line up with what was indexed.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

// Longest suffixes first; the first rule whose result is long enough wins.
var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Token is a single analysed term and its position among the kept tokens.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into stemmed, lower-cased Tokens with stop-words
// and single-character words removed.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		term, ok := analyze(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

// Frequencies returns the term frequencies of text and the number of kept
// tokens, which is the field length used for length normalisation.
func Frequencies(text string) (map[string]uint32, int) {
	tokens := Tokenize(text)
	freqs := make(map[string]uint32, len(tokens))
	for _, tok := range tokens {
		freqs[tok.Term]++
	}
	return freqs, len(tokens)
}

// Term analyses a single query word. It reports false when the word is
// dropped by analysis.
func Term(word string) (string, bool) {
	tokens := Tokenize(word)
	if len(tokens) == 0 {
		return "", false
	}
	return tokens[0].Term, true
}

func analyze(word string) (string, bool) {
	if len(word) < 2 {
		return "", false
	}
	if _, isStop := stopWords[word]; isStop {
		return "", false
	}
	stemmed := stem(word)
	if stemmed == "" {
		return "", false
	}
	return stemmed, true
}

func stem(word string) string {
	for _, rule := range suffixRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
		if len(newWord) >= rule.minLen {
			return newWord
		}
	}
	return word
}
