package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Softmax returns the row-wise softmax of logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	r, c := logits.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := logits.RawRowView(i)
		lse := floats.LogSumExp(row)
		dst := out.RawRowView(i)
		for j, v := range row {
			dst[j] = math.Exp(v - lse)
		}
	}
	return out
}

// SoftmaxCrossEntropy computes the summed cross-entropy of logits (T x C) against
// targets and the gradient with respect to the logits. Targets equal to
// ignoreID contribute neither loss nor gradient.
func SoftmaxCrossEntropy(logits *mat.Dense, targets []int, ignoreID int) (float64, *mat.Dense) {
	probs := Softmax(logits)
	r, c := probs.Dims()
	grad := mat.NewDense(r, c, nil)
	var loss float64
	for t := 0; t < r && t < len(targets); t++ {
		y := targets[t]
		if y == ignoreID || y < 0 || y >= c {
			continue
		}
		p := probs.RawRowView(t)
		loss -= math.Log(p[y] + 1e-12)
		g := grad.RawRowView(t)
		copy(g, p)
		g[y] -= 1
	}
	return loss, grad
}

// BinaryCrossEntropyWithLogits returns the loss of a single logit z against a
// 0/1 target and dLoss/dz.
func BinaryCrossEntropyWithLogits(z, target float64) (float64, float64) {
	// log(1+exp(-|z|)) + max(z,0) - z*y is stable for large |z|.
	loss := math.Max(z, 0) - z*target + math.Log1p(math.Exp(-math.Abs(z)))
	return loss, sigmoid(z) - target
}

// SigmoidFn is the logistic function.
func SigmoidFn(x float64) float64 {
	return sigmoid(x)
}
