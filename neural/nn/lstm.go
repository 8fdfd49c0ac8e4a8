package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSTM is a single-direction recurrent layer. Gate pre-activations are laid out
// as [input | forget | candidate | output], each HiddenSize wide.
type LSTM struct {
	InputSize  int
	HiddenSize int
	Reverse    bool

	Kernel    *Param // 4H x In
	Recurrent *Param // 4H x H
	Bias      *Param // 4H x 1
}

// NewLSTM creates an LSTM with Glorot-initialized weights and a forget-gate bias of 1.
func NewLSTM(name string, inputSize, hiddenSize int, reverse bool, rng *rand.Rand) *LSTM {
	l := &LSTM{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Reverse:    reverse,
		Kernel:     NewParam(name+".kernel", 4*hiddenSize, inputSize),
		Recurrent:  NewParam(name+".recurrent", 4*hiddenSize, hiddenSize),
		Bias:       NewParam(name+".bias", 4*hiddenSize, 1),
	}
	l.Kernel.GlorotUniform(rng)
	l.Recurrent.GlorotUniform(rng)
	for i := hiddenSize; i < 2*hiddenSize; i++ {
		l.Bias.W.Set(i, 0, 1)
	}
	return l
}

// Params returns the learnable parameters.
func (l *LSTM) Params() []*Param {
	return []*Param{l.Kernel, l.Recurrent, l.Bias}
}

// LSTMCache holds the activations of one forward pass, in processing order.
type LSTMCache struct {
	xs    *mat.Dense // inputs in processing order
	gates []*mat.VecDense
	cells []*mat.VecDense
	hs    []*mat.VecDense
}

// Forward runs the layer over xs (T x In) and returns the hidden states (T x H),
// aligned with the input rows regardless of direction.
func (l *LSTM) Forward(xs *mat.Dense) (*mat.Dense, *LSTMCache) {
	T, _ := xs.Dims()
	H := l.HiddenSize
	in := xs
	if l.Reverse {
		in = reverseRows(xs)
	}
	cache := &LSTMCache{
		xs:    in,
		gates: make([]*mat.VecDense, T),
		cells: make([]*mat.VecDense, T),
		hs:    make([]*mat.VecDense, T),
	}
	out := mat.NewDense(T, H, nil)
	h := mat.NewVecDense(H, nil)
	c := mat.NewVecDense(H, nil)
	bias := l.Bias.W.ColView(0)
	rec := mat.NewVecDense(4*H, nil)
	for t := 0; t < T; t++ {
		z := mat.NewVecDense(4*H, nil)
		z.MulVec(l.Kernel.W, in.RowView(t))
		rec.MulVec(l.Recurrent.W, h)
		z.AddVec(z, rec)
		z.AddVec(z, bias)

		raw := z.RawVector().Data
		nc := mat.NewVecDense(H, nil)
		nh := mat.NewVecDense(H, nil)
		for j := 0; j < H; j++ {
			ig := sigmoid(raw[j])
			fg := sigmoid(raw[H+j])
			gg := math.Tanh(raw[2*H+j])
			og := sigmoid(raw[3*H+j])
			raw[j], raw[H+j], raw[2*H+j], raw[3*H+j] = ig, fg, gg, og
			cv := fg*c.AtVec(j) + ig*gg
			nc.SetVec(j, cv)
			nh.SetVec(j, og*math.Tanh(cv))
		}
		cache.gates[t] = z
		cache.cells[t] = nc
		cache.hs[t] = nh
		h, c = nh, nc
		row := t
		if l.Reverse {
			row = T - 1 - t
		}
		out.SetRow(row, nh.RawVector().Data)
	}
	return out, cache
}

// Backward propagates dOut (T x H, aligned with the input rows) through time,
// accumulating weight gradients into g and returning dX (T x In).
func (l *LSTM) Backward(cache *LSTMCache, dOut *mat.Dense, g *Grads) *mat.Dense {
	T, _ := dOut.Dims()
	H := l.HiddenSize
	d := dOut
	if l.Reverse {
		d = reverseRows(dOut)
	}
	dKernel := g.For(l.Kernel)
	dRecurrent := g.For(l.Recurrent)
	dBias := g.For(l.Bias)

	dX := mat.NewDense(T, l.InputSize, nil)
	dhNext := mat.NewVecDense(H, nil)
	dcNext := make([]float64, H)
	dz := mat.NewVecDense(4*H, nil)
	dx := mat.NewVecDense(l.InputSize, nil)
	zeroH := mat.NewVecDense(H, nil)
	for t := T - 1; t >= 0; t-- {
		gates := cache.gates[t].RawVector().Data
		cell := cache.cells[t].RawVector().Data
		hPrev := zeroH
		var cPrev []float64
		if t > 0 {
			hPrev = cache.hs[t-1]
			cPrev = cache.cells[t-1].RawVector().Data
		}
		drow := d.RawRowView(t)
		dzRaw := dz.RawVector().Data
		for j := 0; j < H; j++ {
			ig, fg, gg, og := gates[j], gates[H+j], gates[2*H+j], gates[3*H+j]
			dh := drow[j] + dhNext.AtVec(j)
			tc := math.Tanh(cell[j])
			dc := dcNext[j] + dh*og*(1-tc*tc)
			var cp float64
			if cPrev != nil {
				cp = cPrev[j]
			}
			dzRaw[j] = dc * gg * ig * (1 - ig)
			dzRaw[H+j] = dc * cp * fg * (1 - fg)
			dzRaw[2*H+j] = dc * ig * (1 - gg*gg)
			dzRaw[3*H+j] = dh * tc * og * (1 - og)
			dcNext[j] = dc * fg
		}
		dKernel.RankOne(dKernel, 1, dz, cache.xs.RowView(t))
		if t > 0 {
			dRecurrent.RankOne(dRecurrent, 1, dz, hPrev)
		}
		for i := 0; i < 4*H; i++ {
			dBias.Set(i, 0, dBias.At(i, 0)+dzRaw[i])
		}
		dx.MulVec(l.Kernel.W.T(), dz)
		dX.SetRow(t, dx.RawVector().Data)
		dhNext.MulVec(l.Recurrent.W.T(), dz)
	}
	if l.Reverse {
		return reverseRows(dX)
	}
	return dX
}

// BiLSTM runs a forward and a backward LSTM and concatenates their outputs.
type BiLSTM struct {
	Fwd *LSTM
	Bwd *LSTM
}

// NewBiLSTM creates a bidirectional layer with `units` per direction.
func NewBiLSTM(name string, inputSize, units int, rng *rand.Rand) *BiLSTM {
	return &BiLSTM{
		Fwd: NewLSTM(name+".fwd", inputSize, units, false, rng),
		Bwd: NewLSTM(name+".bwd", inputSize, units, true, rng),
	}
}

// Params returns the learnable parameters of both directions.
func (b *BiLSTM) Params() []*Param {
	return append(b.Fwd.Params(), b.Bwd.Params()...)
}

// OutputSize is the width of the concatenated output.
func (b *BiLSTM) OutputSize() int {
	return b.Fwd.HiddenSize + b.Bwd.HiddenSize
}

// BiLSTMCache holds both directions' caches.
type BiLSTMCache struct {
	fwd, bwd *LSTMCache
}

// Forward returns T x (2*units).
func (b *BiLSTM) Forward(xs *mat.Dense) (*mat.Dense, *BiLSTMCache) {
	hf, cf := b.Fwd.Forward(xs)
	hb, cb := b.Bwd.Forward(xs)
	T, _ := xs.Dims()
	out := mat.NewDense(T, b.OutputSize(), nil)
	out.Augment(hf, hb)
	return out, &BiLSTMCache{fwd: cf, bwd: cb}
}

// Backward splits dOut between directions and sums their input gradients.
func (b *BiLSTM) Backward(cache *BiLSTMCache, dOut *mat.Dense, g *Grads) *mat.Dense {
	T, _ := dOut.Dims()
	hf := b.Fwd.HiddenSize
	dF := mat.DenseCopyOf(dOut.Slice(0, T, 0, hf))
	dB := mat.DenseCopyOf(dOut.Slice(0, T, hf, b.OutputSize()))
	dx := b.Fwd.Backward(cache.fwd, dF, g)
	dx.Add(dx, b.Bwd.Backward(cache.bwd, dB, g))
	return dx
}

func reverseRows(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		out.SetRow(r-1-i, m.RawRowView(i))
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
