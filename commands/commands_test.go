package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewsCSV = `review,sentiment
a great and wonderful film,positive
"great acting, great story",positive
wonderful! loved it,positive
a terrible and boring film,negative
"boring story, awful acting",negative
awful. hated it,negative
loved the wonderful music,positive
hated the boring music,negative
`

const gmbCSV = `Sentence #,Word,POS,Tag
Sentence: 1,John,NNP,B-per
,lives,VBZ,O
,in,IN,O
,London,NNP,B-geo
Sentence: 2,Mary,NNP,B-per
,visited,VBD,O
,Paris,NNP,B-geo
Sentence: 3,London,NNP,B-geo
,is,VBZ,O
,big,JJ,O
Sentence: 4,John,NNP,B-per
,met,VBD,O
,Mary,NNP,B-per
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviews.csv"), []byte(reviewsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ner.csv"), []byte(gmbCSV), 0o644))
	task := `{dataset: %s, max_sequence_length: 8, embedding_dimension: 4, hidden_units: 3, dense_units: 4, epochs: 2, batch_size: 2, validation_split: 0.25, workers: 2, vocab_size: 100}`
	yaml := fmt.Sprintf("log: {level: error}\npaths: {home: %s}\nsentiment: %s\nner: %s\n",
		dir,
		fmt.Sprintf(task, filepath.Join(dir, "reviews.csv")),
		fmt.Sprintf(task, filepath.Join(dir, "ner.csv")))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainThenPredictSentiment(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "train", "sentiment")
	require.NoError(t, err)
	assert.Contains(t, out, "saved sentiment_analysis_")
	assert.Contains(t, out, "weighted avg")

	out, err = execute(t, "--config", cfg, "predict", "sentiment", "a wonderful film", "boring")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "a wonderful film"))
}

func TestTrainThenPredictEntities(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "train", "ner")
	require.NoError(t, err)
	assert.Contains(t, out, "saved named_entity_recognition_")

	out, err = execute(t, "--config", cfg, "predict", "ner", "John visited London")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Word            | Pred \n"))
	assert.Contains(t, out, "London          | ")
}

func TestPredictWithoutModels(t *testing.T) {
	cfg := writeConfig(t)
	_, err := execute(t, "--config", cfg, "predict", "sentiment", "x")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "predict", "sentiment")
	assert.Error(t, err)
}

func TestServeFailsWithoutModels(t *testing.T) {
	cfg := writeConfig(t)
	_, err := execute(t, "--config", cfg, "serve", "--models", t.TempDir())
	assert.Error(t, err)
}
