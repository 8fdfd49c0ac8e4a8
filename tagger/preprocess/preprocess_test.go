package preprocess

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golangast/marabou/neural/nnu/gobs"
	"github.com/golangast/marabou/neural/nnu/vocab"
)

func fitted(t *testing.T) *DataPreprocessor {
	t.Helper()
	p := New(6, 0.25, 0)
	x := [][]string{
		p.NormalizeTokens([]string{"Thousands", "marched", "in", "London", "."}),
		p.NormalizeTokens([]string{"Bush", "visited", "London"}),
	}
	y := [][]string{
		{"O", "O", "O", "B-geo", "O"},
		{"B-per", "O", "B-geo"},
	}
	_, _, err := p.TokenizeText(x, y)
	require.NoError(t, err)
	return p
}

func TestTokenizeTextPadsAndEncodes(t *testing.T) {
	p := New(4, 0.1, 0)
	X, Y, err := p.TokenizeText(
		[][]string{{"a", "b", "a", "c", "d"}, {"b"}},
		[][]string{{"O", "O", "O", "B-geo", "O"}, {"B-per"}},
	)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{2, 3, 2, 4}, {3, 0, 0, 0}}, X)
	assert.Equal(t, []string{"pad", "B-geo", "B-per", "O"}, p.Labels.ToLabel)
	assert.Equal(t, [][]int{{3, 3, 3, 1}, {2, 0, 0, 0}}, Y)
}

func TestTokenizeTextMisaligned(t *testing.T) {
	p := New(4, 0.1, 0)
	_, _, err := p.TokenizeText([][]string{{"a", "b"}}, [][]string{{"O"}})
	assert.ErrorIs(t, err, ErrMisaligned)
	_, _, err = p.TokenizeText([][]string{{"a"}}, nil)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestCleanData(t *testing.T) {
	p := New(4, 0.1, 0)
	got := p.CleanData([][]string{{"Great", "movie", "!", "10/10"}})
	assert.Equal(t, [][]string{{"great", "movie"}}, got)
}

func TestPreprocessDataIsDeterministic(t *testing.T) {
	p := fitted(t)
	texts := []string{"Bush marched in Paris today, again and again and again."}
	a, tokensA, nA, err := p.PreprocessData(texts)
	require.NoError(t, err)
	b, tokensB, nB, err := p.PreprocessData(texts)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, tokensA, tokensB)
	assert.Equal(t, nA, nB)
	assert.Equal(t, []int{6}, nA, "token count is capped at the sequence length")
	assert.Len(t, a[0], 6)
	assert.Equal(t, p.Words.ID("bush"), a[0][0])
	assert.Equal(t, vocab.UnknownID, a[0][3], "paris was never seen")
}

func TestPreprocessRequiresFit(t *testing.T) {
	p := New(4, 0.1, 0)
	_, _, _, err := p.PreprocessData([]string{"x"})
	assert.ErrorIs(t, err, ErrNotFitted)
	_, _, err = p.PreprocessText([]string{"x"})
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.ErrorIs(t, p.Save(&bytes.Buffer{}), ErrNotFitted)
}

func TestPreprocessText(t *testing.T) {
	p := New(5, 0.1, 0)
	p.TokenizeFeatures(p.CleanData([][]string{{"good", "film"}, {"bad", "film"}}))
	enc, n, err := p.PreprocessText([]string{"A GOOD film!!"})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, n)
	assert.Equal(t, []int{vocab.UnknownID, p.Words.ID("good"), p.Words.ID("film"), 0, 0}, enc[0])
}

func TestSplitIndices(t *testing.T) {
	train, test := SplitIndices(10, 0.25, 7)
	assert.Len(t, test, 3)
	assert.Len(t, train, 7)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, append(append([]int{}, train...), test...))

	train2, test2 := SplitIndices(10, 0.25, 7)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	train, test = SplitIndices(3, 0, 1)
	assert.Len(t, train, 3)
	assert.Empty(t, test)
}

func TestSplitKeepsRowsTogether(t *testing.T) {
	X := [][]int{{0}, {1}, {2}, {3}}
	Y := []float64{0, 1, 2, 3}
	Xtr, Xte, Ytr, Yte := Split(X, Y, 0.5, 3)
	require.Len(t, Xte, 2)
	for i := range Xtr {
		assert.Equal(t, float64(Xtr[i][0]), Ytr[i])
	}
	for i := range Xte {
		assert.Equal(t, float64(Xte[i][0]), Yte[i])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := fitted(t)
	dir := t.TempDir()
	path, err := p.SaveFile(dir, "named_entity_recognition_20200101_000000")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "named_entity_recognition_20200101_000000"+gobs.PreprocessorSuffix), path)

	q, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, p.MaxSequenceLength, q.MaxSequenceLength)
	assert.Equal(t, p.VocabSize, q.VocabSize)
	assert.Equal(t, p.Words.Index, q.Words.Index)
	assert.Equal(t, p.Words.Words, q.Words.Words)
	assert.Equal(t, p.Labels.ToLabel, q.Labels.ToLabel)

	text := []string{"Bush visited London."}
	a, _, _, err := p.PreprocessData(text)
	require.NoError(t, err)
	b, _, _, err := q.PreprocessData(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadWithoutLabels(t *testing.T) {
	p := New(3, 0.1, 10)
	p.TokenizeFeatures([][]string{{"good"}})
	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))
	q, err := Load(&buf)
	require.NoError(t, err)
	assert.Nil(t, q.Labels)
	assert.Equal(t, 10, q.VocabSize)
}
