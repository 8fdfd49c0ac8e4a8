package nn

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// Outcome is the result of running one example through a model.
type Outcome struct {
	Loss    float64
	Correct int // correctly predicted units (tokens or texts)
	Count   int // units scored
	Grads   *Grads
}

// Epoch is one row of the learning curve.
type Epoch struct {
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// History records per-epoch training and validation metrics.
type History struct {
	Epochs []Epoch
}

// WriteTSV writes the learning curve as tab-separated values.
func (h *History) WriteTSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "epoch\tloss\taccuracy\tval_loss\tval_accuracy"); err != nil {
		return err
	}
	for i, e := range h.Epochs {
		if _, err := fmt.Fprintf(w, "%d\t%.6f\t%.6f\t%.6f\t%.6f\n", i+1, e.Loss, e.Accuracy, e.ValLoss, e.ValAccuracy); err != nil {
			return err
		}
	}
	return nil
}

// Trainer runs shuffled mini-batch gradient descent. Per-example gradients of a
// batch are computed concurrently and summed in example order, so a run is
// reproducible for a given seed regardless of Workers.
type Trainer struct {
	Epochs    int
	BatchSize int
	Workers   int
	Optimizer Optimizer
	Seed      int64
	Log       *zap.Logger
}

// Run trains params. step computes the outcome and gradients of example i;
// eval scores example i without gradients. train and val are example indices.
func (tr *Trainer) Run(ctx context.Context, params []*Param, train, val []int,
	step func(i int) Outcome, eval func(i int) Outcome) (*History, error) {
	log := tr.Log
	if log == nil {
		log = zap.NewNop()
	}
	batchSize := max(tr.BatchSize, 1)
	mapper := iter.Mapper[int, Outcome]{MaxGoroutines: max(tr.Workers, 1)}
	rng := rand.New(rand.NewSource(tr.Seed))
	order := append([]int(nil), train...)
	hist := &History{}

	for epoch := 0; epoch < tr.Epochs; epoch++ {
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		var loss float64
		var correct, count, seen int
		for start := 0; start < len(order); start += batchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			batch := order[start:min(start+batchSize, len(order))]
			outcomes := mapper.Map(batch, func(i *int) Outcome { return step(*i) })

			sum := NewGrads()
			for _, o := range outcomes {
				loss += o.Loss
				correct += o.Correct
				count += o.Count
				if o.Grads != nil {
					sum.Add(o.Grads)
				}
			}
			sum.Scale(1 / float64(len(batch)))
			tr.Optimizer.Step(params, sum)
			seen += len(batch)
		}

		e := Epoch{Loss: ratio(loss, seen), Accuracy: ratio(float64(correct), count)}
		if len(val) > 0 {
			vo := iter.Mapper[int, Outcome]{MaxGoroutines: max(tr.Workers, 1)}.Map(val, func(i *int) Outcome { return eval(*i) })
			var vl float64
			var vc, vn int
			for _, o := range vo {
				vl += o.Loss
				vc += o.Correct
				vn += o.Count
			}
			e.ValLoss, e.ValAccuracy = ratio(vl, len(val)), ratio(float64(vc), vn)
		}
		hist.Epochs = append(hist.Epochs, e)
		log.Info("epoch finished",
			zap.Int("epoch", epoch+1),
			zap.Int("epochs", tr.Epochs),
			zap.Float64("loss", e.Loss),
			zap.Float64("accuracy", e.Accuracy),
			zap.Float64("val_loss", e.ValLoss),
			zap.Float64("val_accuracy", e.ValAccuracy))
	}
	return hist, nil
}

func ratio(a float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return a / float64(n)
}
