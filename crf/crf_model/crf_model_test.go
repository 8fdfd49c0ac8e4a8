package crf_model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/golangast/marabou/neural/nn"
)

func randomEmissions(rng *rand.Rand, T, L int) *mat.Dense {
	e := mat.NewDense(T, L, nil)
	for i := range e.RawMatrix().Data {
		e.RawMatrix().Data[i] = rng.NormFloat64()
	}
	return e
}

func randomModel(rng *rand.Rand, L int) *CRFModel {
	m := NewCRFModel("crf", L, rng)
	m.Transitions.Uniform(rng, 1)
	m.Start.Uniform(rng, 1)
	m.End.Uniform(rng, 1)
	return m
}

// allPaths enumerates every label sequence of length T over L labels.
func allPaths(T, L int) [][]int {
	paths := [][]int{{}}
	for t := 0; t < T; t++ {
		var next [][]int
		for _, p := range paths {
			for j := 0; j < L; j++ {
				next = append(next, append(append([]int(nil), p...), j))
			}
		}
		paths = next
	}
	return paths
}

func TestViterbiMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 5; trial++ {
		m := randomModel(rng, 3)
		e := randomEmissions(rng, 4, 3)

		best, bestScore := []int(nil), math.Inf(-1)
		for _, p := range allPaths(4, 3) {
			if s := m.Score(e, p); s > bestScore {
				best, bestScore = p, s
			}
		}
		out, err := m.Viterbi(e)
		require.NoError(t, err)
		assert.Equal(t, best, out.Labels)
		assert.InDelta(t, bestScore, out.Score, 1e-9)
	}
}

func TestLogPartitionMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	m := randomModel(rng, 3)
	e := randomEmissions(rng, 3, 3)
	var scores []float64
	for _, p := range allPaths(3, 3) {
		scores = append(scores, m.Score(e, p))
	}
	var z float64
	for _, s := range scores {
		z += math.Exp(s)
	}
	logZ, err := m.LogPartition(e)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(z), logZ, 1e-9)
}

func TestMarginalsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := randomModel(rng, 4)
	marg, err := m.Marginals(randomEmissions(rng, 6, 4))
	require.NoError(t, err)
	require.Len(t, marg, 6)
	for _, row := range marg {
		var s float64
		for _, p := range row {
			s += p
		}
		assert.InDelta(t, 1, s, 1e-9)
	}
}

func TestNegLogLikelihoodGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	m := randomModel(rng, 3)
	e := randomEmissions(rng, 4, 3)
	tags := []int{0, 2, 2, 1}

	g := nn.NewGrads()
	nll, dE, err := m.NegLogLikelihood(e, tags, g)
	require.NoError(t, err)
	assert.Greater(t, nll, 0.0)

	const eps = 1e-5
	f := func() float64 {
		v, _, err := m.NegLogLikelihood(e, tags, nn.NewGrads())
		require.NoError(t, err)
		return v
	}
	numeric := func(target *mat.Dense, i, j int) float64 {
		orig := target.At(i, j)
		target.Set(i, j, orig+eps)
		plus := f()
		target.Set(i, j, orig-eps)
		minus := f()
		target.Set(i, j, orig)
		return (plus - minus) / (2 * eps)
	}

	assert.InDelta(t, numeric(e, 1, 2), dE.At(1, 2), 1e-5)
	assert.InDelta(t, numeric(e, 3, 0), dE.At(3, 0), 1e-5)
	assert.InDelta(t, numeric(m.Transitions.W, 2, 2), g.For(m.Transitions).At(2, 2), 1e-5)
	assert.InDelta(t, numeric(m.Transitions.W, 0, 1), g.For(m.Transitions).At(0, 1), 1e-5)
	assert.InDelta(t, numeric(m.Start.W, 0, 0), g.For(m.Start).At(0, 0), 1e-5)
	assert.InDelta(t, numeric(m.End.W, 0, 1), g.For(m.End).At(0, 1), 1e-5)
}

func TestEmissionShapeChecked(t *testing.T) {
	m := NewCRFModel("crf", 3, rand.New(rand.NewSource(1)))
	_, err := m.Viterbi(mat.NewDense(2, 4, nil))
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	_, _, err = m.NegLogLikelihood(mat.NewDense(2, 3, nil), []int{1}, nn.NewGrads())
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)
}
