package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const gmb = `Sentence #,Word,POS,Tag
Sentence: 1,Thousands,NNS,O
,of,IN,O
,demonstrators,NNS,O
,marched,VBD,O
,through,IN,O
,London,NNP,B-geo
Sentence: 2,Iranian,JJ,B-gpe
,officials,NNS,O
`

func TestReadNERGroupsSentences(t *testing.T) {
	e, err := ReadNER(strings.NewReader(gmb))
	require.NoError(t, err)
	require.Len(t, e.Sentences, 2)
	assert.Equal(t, []string{"Thousands", "of", "demonstrators", "marched", "through", "London"}, e.Sentences[0])
	assert.Equal(t, []string{"O", "O", "O", "O", "O", "B-geo"}, e.Tags[0])
	assert.Equal(t, []string{"B-gpe", "O"}, e.Tags[1])
}

func TestLoadNERCSVDecodesLatin1(t *testing.T) {
	text := "Sentence #,Word,POS,Tag\nSentence: 1,Gérard,NNP,B-per\n,visits,VBZ,O\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(text)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ner.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))

	e, err := LoadNERCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Gérard", "visits"}}, e.Sentences)
}

func TestReadNERMissingColumn(t *testing.T) {
	_, err := ReadNER(strings.NewReader("Sentence #,Word,POS\n"))
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestReadSentiment(t *testing.T) {
	data := "review,sentiment\n\"Loved it.<br />Great cast\",positive\nDull,negative\nFine,1\n"
	r, err := ReadSentiment(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Loved it. Great cast", "Dull", "Fine"}, r.Texts)
	assert.Equal(t, []float64{1, 0, 1}, r.Labels)

	_, err = ReadSentiment(strings.NewReader("review,sentiment\nmeh,neutral\n"))
	assert.ErrorIs(t, err, ErrBadLabel)
}
