package sentiment

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

const holdout = 0.1

// ErrLengthMismatch is returned when inputs that must be parallel differ in length.
var ErrLengthMismatch = errors.New("length mismatch")

// Fit trains on Xtr/ytr (0 = negative, 1 = positive) with mini-batch Adam,
// holding out ten percent of the training rows for per-epoch validation. When
// test rows are given a classification report is computed over them.
func (m *RNNModel) Fit(ctx context.Context, Xtr [][]int, ytr []float64, Xte [][]int, yte []float64) (*nn.History, *report.Report, error) {
	if len(Xtr) != len(ytr) {
		return nil, nil, fmt.Errorf("training data: %d rows, %d labels: %w", len(Xtr), len(ytr), ErrLengthMismatch)
	}
	if len(Xte) != len(yte) {
		return nil, nil, fmt.Errorf("test data: %d rows, %d labels: %w", len(Xte), len(yte), ErrLengthMismatch)
	}
	cfg := m.train
	trainIdx, valIdx := preprocess.SplitIndices(len(Xtr), holdout, cfg.Seed)
	m.log.Info("training started",
		zap.Int("train", len(trainIdx)),
		zap.Int("validation", len(valIdx)),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("batch_size", cfg.BatchSize))

	tr := &nn.Trainer{
		Epochs:    cfg.Epochs,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Optimizer: nn.NewAdam(cfg.LearningRate, cfg.ClipValue),
		Seed:      cfg.Seed,
		Log:       m.log,
	}
	hist, err := tr.Run(ctx, m.Params(), trainIdx, valIdx,
		func(i int) nn.Outcome { return m.example(Xtr[i], ytr[i], true) },
		func(i int) nn.Outcome { return m.example(Xtr[i], ytr[i], false) })
	if err != nil || len(Xte) == 0 {
		return hist, nil, err
	}

	predicted, err := m.Predict(Xte, nil)
	if err != nil {
		return hist, nil, err
	}
	expected := make([]string, len(yte))
	for i, y := range yte {
		expected[i] = Label(y)
	}
	rep, err := report.New(expected, predicted)
	if err != nil {
		return hist, nil, err
	}
	m.log.Info("classification report", zap.Float64("accuracy", rep.Accuracy), zap.Float64("macro_f1", rep.MacroAvg.F1))
	return hist, rep, nil
}

func (m *RNNModel) example(x []int, y float64, withGrads bool) nn.Outcome {
	p := m.forward(x[:vocab.SequenceLength(x)])
	loss, dz := nn.BinaryCrossEntropyWithLogits(p.logit, y)
	out := nn.Outcome{Loss: loss, Count: 1}
	if Label(nn.SigmoidFn(p.logit)) == Label(y) {
		out.Correct = 1
	}
	if withGrads {
		out.Grads = nn.NewGrads()
		m.backward(p, dz, out.Grads)
	}
	return out
}

// PredictProba returns P(positive) for every row, reading nTokens[i] ids of
// row i. A nil nTokens reads each row up to its trailing padding.
func (m *RNNModel) PredictProba(encoded [][]int, nTokens []int) ([]float64, error) {
	if nTokens != nil && len(nTokens) != len(encoded) {
		return nil, fmt.Errorf("%d rows, %d token counts: %w", len(encoded), len(nTokens), ErrLengthMismatch)
	}
	idx := make([]int, len(encoded))
	for i := range idx {
		idx[i] = i
	}
	return iter.Map(idx, func(i *int) float64 {
		row := encoded[*i]
		n := vocab.SequenceLength(row)
		if nTokens != nil {
			n = max(0, min(nTokens[*i], len(row)))
		}
		return nn.SigmoidFn(m.forward(row[:n]).logit)
	}), nil
}

// Predict labels every row positive or negative.
func (m *RNNModel) Predict(encoded [][]int, nTokens []int) ([]string, error) {
	probs, err := m.PredictProba(encoded, nTokens)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(probs))
	for i, p := range probs {
		out[i] = Label(p)
	}
	return out, nil
}
