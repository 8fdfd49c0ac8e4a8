package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Embedding maps token ids to dense vectors.
type Embedding struct {
	VocabSize int
	Dim       int
	Weight    *Param
}

// NewEmbedding creates a trainable embedding initialized from U(-0.05, 0.05).
func NewEmbedding(name string, vocabSize, dim int, rng *rand.Rand) *Embedding {
	e := &Embedding{
		VocabSize: vocabSize,
		Dim:       dim,
		Weight:    NewParam(name+".weight", vocabSize, dim),
	}
	e.Weight.Uniform(rng, 0.05)
	return e
}

// LoadPretrained copies vectors into the embedding rows. Vectors for ids outside
// the table or with the wrong width are rejected.
func (e *Embedding) LoadPretrained(vectors map[int][]float64, trainable bool) error {
	for id, v := range vectors {
		if id < 0 || id >= e.VocabSize {
			continue
		}
		if len(v) != e.Dim {
			return fmt.Errorf("pretrained vector for id %d has %d dims, want %d: %w", id, len(v), e.Dim, ErrShapeMismatch)
		}
		e.Weight.W.SetRow(id, v)
	}
	e.Weight.Frozen = !trainable
	return nil
}

// Params returns the learnable parameters.
func (e *Embedding) Params() []*Param {
	return []*Param{e.Weight}
}

// Forward looks up ids and returns a len(ids) x Dim matrix. Ids outside the
// table read row 0, the padding row.
func (e *Embedding) Forward(ids []int) *mat.Dense {
	out := mat.NewDense(len(ids), e.Dim, nil)
	for t, id := range ids {
		out.SetRow(t, e.Weight.W.RawRowView(e.row(id)))
	}
	return out
}

// Backward accumulates sparse row gradients for the looked-up ids.
func (e *Embedding) Backward(ids []int, dOut *mat.Dense, g *Grads) {
	if e.Weight.Frozen {
		return
	}
	for t, id := range ids {
		row := g.Row(e.Weight, e.row(id))
		d := dOut.RawRowView(t)
		for i := range row {
			row[i] += d[i]
		}
	}
}

func (e *Embedding) row(id int) int {
	if id < 0 || id >= e.VocabSize {
		return 0
	}
	return id
}
