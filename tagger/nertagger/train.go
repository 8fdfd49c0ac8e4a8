package nertagger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/report"
	"github.com/golangast/marabou/neural/nn"
	"github.com/golangast/marabou/neural/nnu/vocab"
	"github.com/golangast/marabou/tagger/preprocess"
)

// holdout is the share of the training rows scored after every epoch.
const holdout = 0.1

// ErrLengthMismatch is returned when inputs that must be parallel differ in length.
var ErrLengthMismatch = errors.New("length mismatch")

// Fit trains on Xtr/Ytr with mini-batch Adam. Ten percent of the training rows
// are held out for per-epoch validation. When test rows are given they are
// tagged after training and compared in a classification report over every
// non-padding position.
func (m *RNNModel) Fit(ctx context.Context, Xtr, Ytr, Xte, Yte [][]int) (*nn.History, *report.Report, error) {
	if err := checkParallel(Xtr, Ytr); err != nil {
		return nil, nil, fmt.Errorf("training data: %w", err)
	}
	if err := checkParallel(Xte, Yte); err != nil {
		return nil, nil, fmt.Errorf("test data: %w", err)
	}
	cfg := m.train
	trainIdx, valIdx := preprocess.SplitIndices(len(Xtr), holdout, cfg.Seed)
	m.log.Info("training started",
		zap.Int("train", len(trainIdx)),
		zap.Int("validation", len(valIdx)),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("head", m.Arch.Head))

	tr := &nn.Trainer{
		Epochs:    cfg.Epochs,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Optimizer: nn.NewAdam(cfg.LearningRate, cfg.ClipValue),
		Seed:      cfg.Seed,
		Log:       m.log,
	}
	hist, err := tr.Run(ctx, m.Params(), trainIdx, valIdx,
		func(i int) nn.Outcome { return m.example(Xtr[i], Ytr[i], true) },
		func(i int) nn.Outcome { return m.example(Xtr[i], Ytr[i], false) })
	if err != nil {
		return hist, nil, err
	}
	if len(Xte) == 0 {
		return hist, nil, nil
	}

	nTokens := make([]int, len(Xte))
	for i, row := range Xte {
		nTokens[i] = vocab.SequenceLength(row)
	}
	predicted, err := m.Predict(Xte, nTokens)
	if err != nil {
		return hist, nil, err
	}
	expected := make([][]string, len(Yte))
	for i, row := range Yte {
		expected[i] = m.Labels.Decode(row[:nTokens[i]])
	}
	rep, err := report.New(report.Flatten(expected, predicted, vocab.PadLabel))
	if err != nil {
		return hist, nil, err
	}
	m.log.Info("classification report", zap.Float64("accuracy", rep.Accuracy), zap.Float64("macro_f1", rep.MacroAvg.F1))
	return hist, rep, nil
}

func checkParallel(X, Y [][]int) error {
	if len(X) != len(Y) {
		return fmt.Errorf("%d feature rows, %d label rows: %w", len(X), len(Y), ErrLengthMismatch)
	}
	for i := range X {
		if len(X[i]) != len(Y[i]) {
			return fmt.Errorf("row %d: %d ids, %d labels: %w", i, len(X[i]), len(Y[i]), ErrLengthMismatch)
		}
	}
	return nil
}

// example scores one padded row over its unpadded prefix.
func (m *RNNModel) example(x, y []int, withGrads bool) nn.Outcome {
	T := vocab.SequenceLength(x)
	if T == 0 {
		return nn.Outcome{}
	}
	p := m.forward(x[:T])
	g := nn.NewGrads()
	loss, dLogits, err := m.loss(p.logits, y[:T], g)
	if err != nil {
		m.log.Error("loss failed", zap.Error(err))
		return nn.Outcome{}
	}
	out := nn.Outcome{Loss: loss, Count: T}
	if pred, err := m.decode(p.logits); err == nil {
		for t, id := range pred {
			if id == y[t] {
				out.Correct++
			}
		}
	}
	if withGrads {
		m.backward(p, dLogits, g)
		out.Grads = g
	}
	return out
}

// Predict tags every row and trims the result to nTokens[i] labels. A nil
// nTokens tags the full padded row.
func (m *RNNModel) Predict(encoded [][]int, nTokens []int) ([][]string, error) {
	type result struct {
		labels []string
		err    error
	}
	lengths, err := m.lengths(encoded, nTokens)
	if err != nil {
		return nil, err
	}
	idx := indices(len(encoded))
	results := iter.Map(idx, func(i *int) result {
		n := lengths[*i]
		if n == 0 {
			return result{labels: []string{}}
		}
		p := m.forward(encoded[*i][:n])
		ids, err := m.decode(p.logits)
		if err != nil {
			return result{err: err}
		}
		return result{labels: m.Labels.Decode(ids)}
	})
	out := make([][]string, len(results))
	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out[i] = r.labels
	}
	return out, nil
}

// PredictProba returns the per-token label distribution of every row, trimmed
// like Predict. With a CRF head these are the posterior marginals.
func (m *RNNModel) PredictProba(encoded [][]int, nTokens []int) ([][][]float64, error) {
	type result struct {
		probs [][]float64
		err   error
	}
	lengths, err := m.lengths(encoded, nTokens)
	if err != nil {
		return nil, err
	}
	results := iter.Map(indices(len(encoded)), func(i *int) result {
		n := lengths[*i]
		if n == 0 {
			return result{probs: [][]float64{}}
		}
		probs, err := m.probabilities(m.forward(encoded[*i][:n]).logits)
		return result{probs: probs, err: err}
	})
	out := make([][][]float64, len(results))
	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		out[i] = r.probs
	}
	return out, nil
}

func (m *RNNModel) lengths(encoded [][]int, nTokens []int) ([]int, error) {
	if nTokens != nil && len(nTokens) != len(encoded) {
		return nil, fmt.Errorf("%d rows, %d token counts: %w", len(encoded), len(nTokens), ErrLengthMismatch)
	}
	out := make([]int, len(encoded))
	for i, row := range encoded {
		out[i] = len(row)
		if nTokens != nil {
			out[i] = max(0, min(nTokens[i], len(row)))
		}
	}
	return out, nil
}

func indices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
