package nn

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// logistic regression on two separable clusters
func trainToy(t *testing.T, workers int) (*Dense, *History) {
	t.Helper()
	xs := [][]float64{{1, 1}, {2, 1}, {1, 2}, {-1, -1}, {-2, -1}, {-1, -2}}
	ys := []float64{1, 1, 1, 0, 0, 0}
	d := NewDense("toy", 2, 1, Linear, rand.New(rand.NewSource(1)))

	run := func(i int, grad bool) Outcome {
		x := mat.NewDense(1, 2, xs[i])
		z, cache := d.Forward(x)
		loss, dz := BinaryCrossEntropyWithLogits(z.At(0, 0), ys[i])
		o := Outcome{Loss: loss, Count: 1}
		if (SigmoidFn(z.At(0, 0)) >= 0.5) == (ys[i] == 1) {
			o.Correct = 1
		}
		if grad {
			o.Grads = NewGrads()
			d.Backward(cache, mat.NewDense(1, 1, []float64{dz}), o.Grads)
		}
		return o
	}

	tr := &Trainer{Epochs: 30, BatchSize: 2, Workers: workers, Optimizer: NewAdam(0.1, 0), Seed: 7}
	hist, err := tr.Run(context.Background(), d.Params(), []int{0, 1, 2, 3, 4, 5}, []int{0, 3},
		func(i int) Outcome { return run(i, true) },
		func(i int) Outcome { return run(i, false) })
	require.NoError(t, err)
	return d, hist
}

func TestTrainerLearnsAndIsDeterministic(t *testing.T) {
	d1, h1 := trainToy(t, 1)
	d4, h4 := trainToy(t, 4)

	require.Len(t, h1.Epochs, 30)
	assert.Less(t, h1.Epochs[29].Loss, h1.Epochs[0].Loss)
	assert.Equal(t, 1.0, h1.Epochs[29].Accuracy)
	assert.Equal(t, 1.0, h1.Epochs[29].ValAccuracy)

	assert.Equal(t, d1.Kernel.W.RawMatrix().Data, d4.Kernel.W.RawMatrix().Data)
	assert.Equal(t, h1.Epochs, h4.Epochs)
}

func TestTrainerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &Trainer{Epochs: 3, BatchSize: 1, Optimizer: NewAdam(0.1, 0)}
	calls := 0
	_, err := tr.Run(ctx, nil, []int{0, 1}, nil, func(int) Outcome { calls++; return Outcome{} }, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestHistoryWriteTSV(t *testing.T) {
	h := &History{Epochs: []Epoch{{Loss: 0.5, Accuracy: 0.75}}}
	var buf bytes.Buffer
	require.NoError(t, h.WriteTSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1\t0.500000\t0.750000\t0.000000\t0.000000", lines[1])
}
