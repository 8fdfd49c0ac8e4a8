package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation selects the nonlinearity applied by a Dense layer.
type Activation int

const (
	Linear Activation = iota
	ReLU
)

// Dense is a time-distributed affine layer: every row of the input is projected
// independently, y = act(x W^T + b).
type Dense struct {
	In, Out    int
	Activation Activation
	Kernel     *Param // Out x In
	Bias       *Param // 1 x Out
}

// NewDense creates a Glorot-initialized dense layer.
func NewDense(name string, in, out int, act Activation, rng *rand.Rand) *Dense {
	d := &Dense{
		In:         in,
		Out:        out,
		Activation: act,
		Kernel:     NewParam(name+".kernel", out, in),
		Bias:       NewParam(name+".bias", 1, out),
	}
	d.Kernel.GlorotUniform(rng)
	return d
}

// Params returns the learnable parameters.
func (d *Dense) Params() []*Param {
	return []*Param{d.Kernel, d.Bias}
}

// DenseCache keeps the input and activated output of a forward pass.
type DenseCache struct {
	x, y *mat.Dense
}

// Forward projects x (T x In) to T x Out.
func (d *Dense) Forward(x *mat.Dense) (*mat.Dense, *DenseCache) {
	T, _ := x.Dims()
	y := mat.NewDense(T, d.Out, nil)
	y.Mul(x, d.Kernel.W.T())
	bias := d.Bias.W.RawRowView(0)
	for t := 0; t < T; t++ {
		row := y.RawRowView(t)
		for j := range row {
			row[j] += bias[j]
			if d.Activation == ReLU && row[j] < 0 {
				row[j] = 0
			}
		}
	}
	return y, &DenseCache{x: x, y: y}
}

// Backward accumulates kernel and bias gradients and returns dX.
func (d *Dense) Backward(cache *DenseCache, dY *mat.Dense, g *Grads) *mat.Dense {
	T, _ := dY.Dims()
	dZ := mat.DenseCopyOf(dY)
	for t := 0; t < T; t++ {
		row := dZ.RawRowView(t)
		out := cache.y.RawRowView(t)
		for j := range row {
			if d.Activation == ReLU && out[j] <= 0 {
				row[j] = 0
			}
		}
	}
	dKernel := g.For(d.Kernel)
	var dk mat.Dense
	dk.Mul(dZ.T(), cache.x)
	dKernel.Add(dKernel, &dk)

	dBias := g.For(d.Bias)
	bias := dBias.RawRowView(0)
	for t := 0; t < T; t++ {
		for j, v := range dZ.RawRowView(t) {
			bias[j] += v
		}
	}

	dX := mat.NewDense(T, d.In, nil)
	dX.Mul(dZ, d.Kernel.W)
	return dX
}
