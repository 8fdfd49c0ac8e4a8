package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandComputed(t *testing.T) {
	expected := []string{"O", "O", "O", "B-geo", "B-geo", "B-per"}
	predicted := []string{"O", "O", "B-geo", "B-geo", "O", "B-per"}

	r, err := New(expected, predicted)
	require.NoError(t, err)
	require.Len(t, r.Classes, 3)

	geo := r.Classes[0]
	assert.Equal(t, "B-geo", geo.Class)
	assert.InDelta(t, 0.5, geo.Precision, 1e-9)
	assert.InDelta(t, 0.5, geo.Recall, 1e-9)
	assert.Equal(t, 2, geo.Support)

	o := r.Classes[2]
	assert.Equal(t, "O", o.Class)
	assert.InDelta(t, 2.0/3.0, o.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, o.Recall, 1e-9)

	assert.InDelta(t, 4.0/6.0, r.Accuracy, 1e-9)
	assert.InDelta(t, (0.5+1+2.0/3.0)/3, r.MacroAvg.F1, 1e-9)
	assert.InDelta(t, (0.5*2+1*1+2.0/3.0*3)/6, r.WeightedAvg.Recall, 1e-9)
}

func TestNewPredictedOnlyClass(t *testing.T) {
	r, err := New([]string{"O"}, []string{"B-tim"})
	require.NoError(t, err)
	require.Len(t, r.Classes, 2)
	assert.Equal(t, "B-tim", r.Classes[0].Class)
	assert.Equal(t, 0, r.Classes[0].Support)
	assert.Zero(t, r.Classes[0].F1)
}

func TestNewLengthMismatch(t *testing.T) {
	_, err := New([]string{"O"}, nil)
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	r, err := New([]string{"negative", "positive"}, []string{"negative", "negative"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(r.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "classes         |precision  |recall     |f1-score   |support   |", lines[0])
	assert.Equal(t, "negative        |      0.50 |      1.00 |      0.67 |         1|", lines[1])
	assert.Equal(t, "positive        |      0.00 |      0.00 |      0.00 |         1|", lines[2])
	assert.Equal(t, "accuracy        |      0.50 |      0.50 |      0.50 |         2|", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "macro avg       |"))
	assert.True(t, strings.HasPrefix(lines[5], "weighted avg    |"))
}

func TestFlattenSkipsPadding(t *testing.T) {
	e, p := Flatten(
		[][]string{{"O", "B-geo", "pad"}, {"B-per"}},
		[][]string{{"O", "O", "O"}, {"B-per"}},
		"pad",
	)
	assert.Equal(t, []string{"O", "B-geo", "B-per"}, e)
	assert.Equal(t, []string{"O", "O", "B-per"}, p)
}
