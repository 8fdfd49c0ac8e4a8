// Package crf_model implements a linear-chain conditional random field used as
// the output layer of the entity tagger. Emission scores come from the network;
// the model owns the label-to-label transition scores and the start/end scores.
package crf_model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/golangast/marabou/neural/nn"
)

// CRFModel holds transition and boundary energies for NumLabels labels.
type CRFModel struct {
	NumLabels   int
	Transitions *nn.Param // L x L, row is the previous label
	Start       *nn.Param // 1 x L
	End         *nn.Param // 1 x L
}

// ViterbiOutput is the best label path and its unnormalized score.
type ViterbiOutput struct {
	Labels []int
	Score  float64
}

// NewCRFModel creates a CRF with small random transitions.
func NewCRFModel(name string, numLabels int, rng *rand.Rand) *CRFModel {
	m := &CRFModel{
		NumLabels:   numLabels,
		Transitions: nn.NewParam(name+".transitions", numLabels, numLabels),
		Start:       nn.NewParam(name+".start", 1, numLabels),
		End:         nn.NewParam(name+".end", 1, numLabels),
	}
	m.Transitions.Uniform(rng, 0.05)
	return m
}

// Params returns the learnable parameters.
func (m *CRFModel) Params() []*nn.Param {
	return []*nn.Param{m.Transitions, m.Start, m.End}
}

func (m *CRFModel) check(emissions *mat.Dense) (int, error) {
	T, L := emissions.Dims()
	if L != m.NumLabels {
		return 0, fmt.Errorf("crf emissions have %d labels, want %d: %w", L, m.NumLabels, nn.ErrShapeMismatch)
	}
	return T, nil
}

// Score is the unnormalized log-score of a label path.
func (m *CRFModel) Score(emissions *mat.Dense, tags []int) float64 {
	start := m.Start.W.RawRowView(0)
	end := m.End.W.RawRowView(0)
	s := start[tags[0]] + end[tags[len(tags)-1]]
	for t, y := range tags {
		s += emissions.At(t, y)
		if t > 0 {
			s += m.Transitions.W.At(tags[t-1], y)
		}
	}
	return s
}

// forward returns log alpha (T x L): alpha[t][j] is the log-sum of scores of all
// prefixes ending in label j at position t, emission included.
func (m *CRFModel) forward(emissions *mat.Dense) [][]float64 {
	T, L := emissions.Dims()
	start := m.Start.W.RawRowView(0)
	alpha := make([][]float64, T)
	alpha[0] = make([]float64, L)
	for j := 0; j < L; j++ {
		alpha[0][j] = start[j] + emissions.At(0, j)
	}
	buf := make([]float64, L)
	for t := 1; t < T; t++ {
		alpha[t] = make([]float64, L)
		for j := 0; j < L; j++ {
			for i := 0; i < L; i++ {
				buf[i] = alpha[t-1][i] + m.Transitions.W.At(i, j)
			}
			alpha[t][j] = floats.LogSumExp(buf) + emissions.At(t, j)
		}
	}
	return alpha
}

// backward returns log beta (T x L): beta[t][i] is the log-sum of scores of all
// suffixes after position t given label i at t, end energy included.
func (m *CRFModel) backward(emissions *mat.Dense) [][]float64 {
	T, L := emissions.Dims()
	end := m.End.W.RawRowView(0)
	beta := make([][]float64, T)
	beta[T-1] = append([]float64(nil), end...)
	buf := make([]float64, L)
	for t := T - 2; t >= 0; t-- {
		beta[t] = make([]float64, L)
		for i := 0; i < L; i++ {
			for j := 0; j < L; j++ {
				buf[j] = m.Transitions.W.At(i, j) + emissions.At(t+1, j) + beta[t+1][j]
			}
			beta[t][i] = floats.LogSumExp(buf)
		}
	}
	return beta
}

func (m *CRFModel) logPartition(alpha [][]float64) float64 {
	last := alpha[len(alpha)-1]
	end := m.End.W.RawRowView(0)
	buf := make([]float64, len(last))
	for j := range last {
		buf[j] = last[j] + end[j]
	}
	return floats.LogSumExp(buf)
}

// LogPartition returns log Z for the emissions.
func (m *CRFModel) LogPartition(emissions *mat.Dense) (float64, error) {
	T, err := m.check(emissions)
	if err != nil {
		return 0, err
	}
	if T == 0 {
		return 0, nil
	}
	return m.logPartition(m.forward(emissions)), nil
}

// NegLogLikelihood returns -log p(tags | emissions), the gradient with respect to
// the emissions, and accumulates transition/boundary gradients into g.
func (m *CRFModel) NegLogLikelihood(emissions *mat.Dense, tags []int, g *nn.Grads) (float64, *mat.Dense, error) {
	T, err := m.check(emissions)
	if err != nil {
		return 0, nil, err
	}
	L := m.NumLabels
	if len(tags) != T {
		return 0, nil, fmt.Errorf("crf got %d tags for %d steps: %w", len(tags), T, nn.ErrShapeMismatch)
	}
	if T == 0 {
		return 0, nil, nil
	}
	alpha := m.forward(emissions)
	beta := m.backward(emissions)
	logZ := m.logPartition(alpha)
	nll := logZ - m.Score(emissions, tags)

	dE := mat.NewDense(T, L, nil)
	dTrans := g.For(m.Transitions)
	dStart := g.For(m.Start).RawRowView(0)
	dEnd := g.For(m.End).RawRowView(0)
	for t := 0; t < T; t++ {
		row := dE.RawRowView(t)
		for j := 0; j < L; j++ {
			row[j] = math.Exp(alpha[t][j] + beta[t][j] - logZ)
		}
		row[tags[t]] -= 1
	}
	for j := 0; j < L; j++ {
		dStart[j] += dE.At(0, j)
		dEnd[j] += dE.At(T-1, j)
	}
	for t := 1; t < T; t++ {
		for i := 0; i < L; i++ {
			for j := 0; j < L; j++ {
				p := math.Exp(alpha[t-1][i] + m.Transitions.W.At(i, j) + emissions.At(t, j) + beta[t][j] - logZ)
				dTrans.Set(i, j, dTrans.At(i, j)+p)
			}
		}
		dTrans.Set(tags[t-1], tags[t], dTrans.At(tags[t-1], tags[t])-1)
	}
	return nll, dE, nil
}

// Marginals returns p(y_t = j | emissions) for every position; each row sums to 1.
func (m *CRFModel) Marginals(emissions *mat.Dense) ([][]float64, error) {
	T, err := m.check(emissions)
	if err != nil {
		return nil, err
	}
	if T == 0 {
		return nil, nil
	}
	alpha := m.forward(emissions)
	beta := m.backward(emissions)
	logZ := m.logPartition(alpha)
	out := make([][]float64, T)
	for t := range out {
		out[t] = make([]float64, m.NumLabels)
		for j := range out[t] {
			out[t][j] = math.Exp(alpha[t][j] + beta[t][j] - logZ)
		}
	}
	return out, nil
}

// Viterbi returns the highest-scoring label path.
func (m *CRFModel) Viterbi(emissions *mat.Dense) (ViterbiOutput, error) {
	T, err := m.check(emissions)
	if err != nil {
		return ViterbiOutput{}, err
	}
	if T == 0 {
		return ViterbiOutput{}, nil
	}
	L := m.NumLabels
	start := m.Start.W.RawRowView(0)
	end := m.End.W.RawRowView(0)

	score := make([]float64, L)
	for j := 0; j < L; j++ {
		score[j] = start[j] + emissions.At(0, j)
	}
	backpointers := make([][]int, T)
	next := make([]float64, L)
	for t := 1; t < T; t++ {
		backpointers[t] = make([]int, L)
		for j := 0; j < L; j++ {
			best, arg := math.Inf(-1), 0
			for i := 0; i < L; i++ {
				if s := score[i] + m.Transitions.W.At(i, j); s > best {
					best, arg = s, i
				}
			}
			next[j] = best + emissions.At(t, j)
			backpointers[t][j] = arg
		}
		score, next = next, score
	}
	for j := range score {
		score[j] += end[j]
	}
	last := floats.MaxIdx(score)
	path := make([]int, T)
	path[T-1] = last
	for t := T - 1; t > 0; t-- {
		path[t-1] = backpointers[t][path[t]]
	}
	return ViterbiOutput{Labels: path, Score: score[last]}, nil
}
