package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Optimizer applies accumulated gradients to parameters.
type Optimizer interface {
	Step(params []*Param, g *Grads)
}

// Adam represents the Adam optimizer with element-wise gradient clipping.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	ClipValue    float64

	t int
	m map[string]*mat.Dense // 1st moment
	v map[string]*mat.Dense // 2nd moment
}

// NewAdam creates an Adam optimizer with the usual defaults.
func NewAdam(learningRate, clipValue float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		ClipValue:    clipValue,
		m:            make(map[string]*mat.Dense),
		v:            make(map[string]*mat.Dense),
	}
}

// Step performs a single optimization step. Sparse row gradients update only
// the touched rows.
func (o *Adam) Step(params []*Param, g *Grads) {
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		if p.Frozen {
			continue
		}
		m, v := o.moments(p)
		if d, ok := g.Dense[p.Name]; ok {
			r, _ := p.W.Dims()
			for i := 0; i < r; i++ {
				o.update(p.W.RawRowView(i), d.RawRowView(i), m.RawRowView(i), v.RawRowView(i), c1, c2)
			}
		}
		for row, grad := range g.Rows[p.Name] {
			o.update(p.W.RawRowView(row), grad, m.RawRowView(row), v.RawRowView(row), c1, c2)
		}
	}
}

func (o *Adam) update(w, grad, m, v []float64, c1, c2 float64) {
	for i := range w {
		gi := grad[i]
		if o.ClipValue > 0 {
			gi = math.Max(-o.ClipValue, math.Min(o.ClipValue, gi))
		}
		m[i] = o.Beta1*m[i] + (1-o.Beta1)*gi
		v[i] = o.Beta2*v[i] + (1-o.Beta2)*gi*gi
		w[i] -= o.LearningRate * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.Epsilon)
	}
}

func (o *Adam) moments(p *Param) (*mat.Dense, *mat.Dense) {
	m, ok := o.m[p.Name]
	if !ok {
		r, c := p.W.Dims()
		m = mat.NewDense(r, c, nil)
		o.m[p.Name] = m
		o.v[p.Name] = mat.NewDense(r, c, nil)
	}
	return m, o.v[p.Name]
}
