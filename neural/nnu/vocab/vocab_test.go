package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordIndexRanksByFrequency(t *testing.T) {
	w := NewWordIndex(0)
	w.Fit([][]string{
		{"the", "cat", "sat"},
		{"the", "dog", "sat", "the"},
	})

	assert.Equal(t, PadID, w.Index[PadToken])
	assert.Equal(t, UnknownID, w.Index[UnknownToken])
	assert.Equal(t, 2, w.Index["the"])
	assert.Equal(t, 3, w.Index["sat"])
	assert.Equal(t, 4, w.Index["cat"], "ties keep first-occurrence order")
	assert.Equal(t, 5, w.Index["dog"])
	assert.Equal(t, 6, w.Size())
}

func TestWordIndexCapCollapsesToUnknown(t *testing.T) {
	w := NewWordIndex(4)
	w.Fit([][]string{{"a", "a", "a", "b", "b", "c"}})

	assert.Equal(t, []int{2, 3, UnknownID, UnknownID}, w.Encode([]string{"a", "b", "c", "zebra"}))
	assert.Equal(t, 4, w.Size())
	assert.Equal(t, 5, w.Len())
}

func TestWordIndexRefitResets(t *testing.T) {
	w := NewWordIndex(0)
	w.Fit([][]string{{"x"}})
	w.Fit([][]string{{"y"}})
	assert.Equal(t, UnknownID, w.ID("x"))
	assert.Equal(t, 2, w.ID("y"))
}

func TestLabelIndexRoundTrip(t *testing.T) {
	li := NewLabelIndex([][]string{{"O", "B-geo", "I-geo"}, {"B-per", "O"}})
	assert.Equal(t, 0, li.ToID[PadLabel])
	assert.Equal(t, []string{"pad", "B-geo", "B-per", "I-geo", "O"}, li.ToLabel)

	for label, id := range li.ToID {
		ids, err := li.Encode([]string{label})
		require.NoError(t, err)
		assert.Equal(t, []int{id}, ids)
		assert.Equal(t, []string{label}, li.Decode(ids))
	}

	_, err := li.Encode([]string{"B-xyz"})
	assert.ErrorIs(t, err, ErrUnknownLabel)
	assert.Equal(t, []string{PadLabel}, li.Decode([]int{42}))
}

func TestPad(t *testing.T) {
	assert.Equal(t, []int{5, 6, 0, 0}, Pad([]int{5, 6}, 4, 0))
	assert.Equal(t, []int{5, 6}, Pad([]int{5, 6, 7}, 2, 0))
	assert.Equal(t, 2, SequenceLength([]int{5, 6, 0, 0}))
	assert.Equal(t, 0, SequenceLength([]int{0, 0}))
}

func TestLabelIndexFromMap(t *testing.T) {
	li := NewLabelIndex([][]string{{"O", "B-tim"}})
	back, err := LabelIndexFromMap(li.ToID)
	require.NoError(t, err)
	assert.Equal(t, li.ToLabel, back.ToLabel)

	_, err = LabelIndexFromMap(map[string]int{"O": 0, "pad": 1})
	assert.Error(t, err)
	_, err = LabelIndexFromMap(map[string]int{"pad": 0, "O": 5})
	assert.Error(t, err)
}

func TestPadWordIsUnknown(t *testing.T) {
	w := NewWordIndex(0)
	w.Fit([][]string{{"pad", "thai"}})
	assert.Equal(t, []int{UnknownID, 2}, w.Encode([]string{"pad", "thai"}))
}
