// Package nn implements the layers used by the sentiment and entity models:
// embeddings, recurrent cells, dense projections, losses and the Adam optimizer.
//
// Layers never keep per-call state. Forward returns a cache that Backward consumes,
// so a single model can serve concurrent forward passes and per-example gradients
// can be computed in parallel.
package nn

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when a matrix does not have the shape a layer expects.
var ErrShapeMismatch = errors.New("shape mismatch")

// Param is a named, learnable matrix.
type Param struct {
	Name string
	W    *mat.Dense
	// Frozen params are skipped by the optimizer.
	Frozen bool
}

// NewParam allocates a zero-initialized rows x cols parameter.
func NewParam(name string, rows, cols int) *Param {
	return &Param{Name: name, W: mat.NewDense(rows, cols, nil)}
}

// Dims returns the parameter shape.
func (p *Param) Dims() (int, int) {
	return p.W.Dims()
}

// GlorotUniform fills p with values drawn from U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)).
func (p *Param) GlorotUniform(rng *rand.Rand) {
	r, c := p.W.Dims()
	limit := math.Sqrt(6.0 / float64(r+c))
	raw := p.W.RawMatrix().Data
	for i := range raw {
		raw[i] = (rng.Float64()*2 - 1) * limit
	}
}

// Uniform fills p with values drawn from U(-scale, scale).
func (p *Param) Uniform(rng *rand.Rand, scale float64) {
	raw := p.W.RawMatrix().Data
	for i := range raw {
		raw[i] = (rng.Float64()*2 - 1) * scale
	}
}

// Grads accumulates gradients for a set of parameters.
// Dense gradients are keyed by parameter name; Rows holds sparse row gradients
// (embedding lookups touch only a handful of rows per example).
type Grads struct {
	Dense map[string]*mat.Dense
	Rows  map[string]map[int][]float64
}

// NewGrads returns an empty gradient set.
func NewGrads() *Grads {
	return &Grads{
		Dense: make(map[string]*mat.Dense),
		Rows:  make(map[string]map[int][]float64),
	}
}

// For returns the dense gradient buffer for p, allocating it on first use.
func (g *Grads) For(p *Param) *mat.Dense {
	d, ok := g.Dense[p.Name]
	if !ok {
		r, c := p.W.Dims()
		d = mat.NewDense(r, c, nil)
		g.Dense[p.Name] = d
	}
	return d
}

// Row returns the sparse gradient row for p, allocating it on first use.
func (g *Grads) Row(p *Param, row int) []float64 {
	rows, ok := g.Rows[p.Name]
	if !ok {
		rows = make(map[int][]float64)
		g.Rows[p.Name] = rows
	}
	v, ok := rows[row]
	if !ok {
		_, c := p.W.Dims()
		v = make([]float64, c)
		rows[row] = v
	}
	return v
}

// Add accumulates other into g.
func (g *Grads) Add(other *Grads) {
	for name, d := range other.Dense {
		if cur, ok := g.Dense[name]; ok {
			cur.Add(cur, d)
			continue
		}
		g.Dense[name] = mat.DenseCopyOf(d)
	}
	for name, rows := range other.Rows {
		dst, ok := g.Rows[name]
		if !ok {
			dst = make(map[int][]float64, len(rows))
			g.Rows[name] = dst
		}
		for r, v := range rows {
			cur, ok := dst[r]
			if !ok {
				dst[r] = append([]float64(nil), v...)
				continue
			}
			for i := range v {
				cur[i] += v[i]
			}
		}
	}
}

// Scale multiplies every accumulated gradient by s.
func (g *Grads) Scale(s float64) {
	for _, d := range g.Dense {
		d.Scale(s, d)
	}
	for _, rows := range g.Rows {
		for _, v := range rows {
			for i := range v {
				v[i] *= s
			}
		}
	}
}
