// Package tokenizer splits raw text into word tokens and normalizes them the
// same way at training and inference time.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// punctuation is the ASCII punctuation set stripped from tokens.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Tokenize splits text into words and punctuation marks. Letters and digits form
// words; a hyphen, apostrophe or period between two word characters stays
// inside the word, as does a comma between two digits ("3.5", "1,000", "U.S").
// A period closing an abbreviation is kept ("U.S.", "Mr."), and English clitics
// are split off ("don't" -> "do", "n't").
func Tokenize(text string) []string {
	runes := []rune(norm.NFKC.String(text))
	var tokens []string
	i := 0
	for i < len(runes) {
		r := runes[i]
		if unicode.IsSpace(r) {
			i++
			continue
		}
		if !isWordRune(r) {
			tokens = append(tokens, string(r))
			i++
			continue
		}
		start := i
		for i < len(runes) {
			if isWordRune(runes[i]) {
				i++
				continue
			}
			if i+1 < len(runes) && joins(runes[i-1], runes[i], runes[i+1]) {
				i++
				continue
			}
			break
		}
		word := string(runes[start:i])
		if i < len(runes) && runes[i] == '.' && isAbbreviation(word) {
			word += "."
			i++
		}
		tokens = append(tokens, splitClitic(word)...)
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// joins reports whether r, seen between prev and next, belongs to the word.
func joins(prev, r, next rune) bool {
	switch r {
	case '-', '\'', '.':
		return isWordRune(next)
	case ',':
		return unicode.IsDigit(prev) && unicode.IsDigit(next)
	}
	return false
}

// abbreviations take a trailing period even when written alone.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "jr": true, "sr": true,
	"prof": true, "gen": true, "gov": true, "sen": true, "rep": true, "lt": true,
	"col": true, "sgt": true, "capt": true, "inc": true, "corp": true, "co": true,
	"ltd": true, "vs": true, "etc": true, "jan": true, "feb": true, "mar": true,
	"apr": true, "jun": true, "jul": true, "aug": true, "sep": true, "sept": true,
	"oct": true, "nov": true, "dec": true,
}

// isAbbreviation reports whether a period right after word closes it: dotted
// forms ending in a letter ("U.S"), single letters ("J") and common titles.
func isAbbreviation(word string) bool {
	runes := []rune(word)
	last := runes[len(runes)-1]
	if !unicode.IsLetter(last) {
		return false
	}
	if len(runes) == 1 || strings.ContainsRune(word, '.') {
		return true
	}
	return abbreviations[strings.ToLower(word)]
}

func splitClitic(word string) []string {
	idx := strings.IndexRune(word, '\'')
	if idx < 0 {
		return []string{word}
	}
	lower := strings.ToLower(word)
	if strings.HasSuffix(lower, "n't") && len(word) > 3 {
		return []string{word[:len(word)-3], word[len(word)-3:]}
	}
	if idx == 0 {
		return []string{word}
	}
	return []string{word[:idx], word[idx:]}
}

// Lower lowercases a token with Unicode case folding rules.
func Lower(token string) string {
	// A Caser keeps state, so one is built per call to stay goroutine-safe.
	return cases.Lower(language.Und).String(token)
}

// StripPunctuation removes every ASCII punctuation character from token.
func StripPunctuation(token string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, token)
}

// IsAlpha reports whether token is non-empty and made only of letters.
func IsAlpha(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Clean lowercases, strips punctuation and drops every token that is not
// purely alphabetic. Used where token positions carry no labels.
func Clean(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		w := StripPunctuation(Lower(tok))
		if IsAlpha(w) {
			out = append(out, w)
		}
	}
	return out
}

// Normalize lowercases and strips punctuation but keeps one output per input
// token, so per-token labels stay aligned. A token made only of punctuation
// keeps its lowercased form.
func Normalize(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		low := Lower(tok)
		if w := StripPunctuation(low); w != "" {
			out[i] = w
			continue
		}
		out[i] = low
	}
	return out
}
