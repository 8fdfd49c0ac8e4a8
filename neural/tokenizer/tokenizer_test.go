package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "Punctuation is split off",
			text:     "Thousands marched in London, today.",
			expected: []string{"Thousands", "marched", "in", "London", ",", "today", "."},
		},
		{
			name:     "Negation clitic",
			text:     "I don't like it",
			expected: []string{"I", "do", "n't", "like", "it"},
		},
		{
			name:     "Possessive clitic",
			text:     "Britain's army",
			expected: []string{"Britain", "'s", "army"},
		},
		{
			name:     "Hyphenated word stays whole",
			text:     "a well-known (actor)",
			expected: []string{"a", "well-known", "(", "actor", ")"},
		},
		{
			name:     "Abbreviations and numbers stay whole",
			text:     "U.S. 3.5 Mr.",
			expected: []string{"U.S.", "3.5", "Mr."},
		},
		{
			name:     "Initial keeps its period",
			text:     "George W. Bush",
			expected: []string{"George", "W.", "Bush"},
		},
		{
			name:     "Sentence period after a number is split",
			text:     "It rose 4.",
			expected: []string{"It", "rose", "4", "."},
		},
		{
			name:     "Comma between words is split",
			text:     "1, 2,000 and 3",
			expected: []string{"1", ",", "2,000", "and", "3"},
		},
		{
			name:     "Empty input",
			text:     "   ",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Tokenize(tc.text))
		})
	}
}

func TestTokenizeMatchesCorpusTokens(t *testing.T) {
	// Tokens as the GMB corpus writes this sentence, one per row.
	corpus := []string{"U.S.", "officials", "said", "3.5", "million", "Mr.", "Bush", "'s", "1,000", "troops", "."}
	got := Tokenize("U.S. officials said 3.5 million Mr. Bush's 1,000 troops.")
	assert.Equal(t, corpus, got)
	assert.Equal(t, Normalize(corpus), Normalize(got))
	assert.Equal(t, []string{"us", "35", "mr"}, Normalize(Tokenize("U.S. 3.5 Mr.")))
}

func TestCleanFiltersNonAlphabetic(t *testing.T) {
	got := Clean([]string{"The", "MOVIE", "was", "great!", "10/10", ",", "Don't"})
	assert.Equal(t, []string{"the", "movie", "was", "great", "dont"}, got)
}

func TestNormalizeKeepsAlignment(t *testing.T) {
	in := []string{"London", ",", "U.S.", "1990s", "..."}
	got := Normalize(in)
	assert.Len(t, got, len(in))
	assert.Equal(t, []string{"london", ",", "us", "1990s", "..."}, got)
}

func TestCleanIsDeterministic(t *testing.T) {
	tokens := Tokenize("Ça va? Très BIEN, merci!")
	assert.Equal(t, Clean(tokens), Clean(tokens))
	assert.Equal(t, []string{"ça", "va", "très", "bien", "merci"}, Clean(tokens))
}
