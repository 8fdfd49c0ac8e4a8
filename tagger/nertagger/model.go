// Package nertagger implements the recurrent named-entity tagger: an embedding,
// two stacked bidirectional LSTMs joined by a residual connection, a
// time-distributed ReLU layer and either a CRF or a softmax output.
package nertagger

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/golangast/marabou/crf/crf_model"
	"github.com/golangast/marabou/internal/config"
	"github.com/golangast/marabou/neural/nn"
	"github.com/golangast/marabou/neural/nnu/vocab"
	"github.com/golangast/marabou/neural/nnu/word2vec"
	"github.com/golangast/marabou/tagger/preprocess"
)

// Output heads.
const (
	HeadCRF     = "crf"
	HeadSoftmax = "softmax"
)

var (
	// ErrNotFitted is returned when building a model from an unfitted preprocessor.
	ErrNotFitted = errors.New("preprocessor has no word or label index")
	// ErrUnknownHead is returned for a head other than crf or softmax.
	ErrUnknownHead = errors.New("unknown output head")
)

// Architecture describes the layer sizes needed to rebuild a saved model.
type Architecture struct {
	Head               string
	HiddenUnits        int
	DenseUnits         int
	EmbeddingAlgorithm string
	TrainableEmbedding bool
}

// RNNModel is a sequence labeller.
type RNNModel struct {
	UsePretrainedEmbedding bool
	VocabSize              int
	EmbeddingDimension     int
	EmbeddingsPath         string
	MaxLength              int
	WordIndex              map[string]int
	Labels                 *vocab.LabelIndex
	Arch                   Architecture

	embedding *nn.Embedding
	lstm1     *nn.BiLSTM
	lstm2     *nn.BiLSTM
	hidden    *nn.Dense
	emit      *nn.Dense
	crf       *crf_model.CRFModel

	train config.TrainConfig
	log   *zap.Logger
}

// NewFromConfig builds an untrained model sized by cfg and the fitted
// preprocessor. With a pretrained embedding configured, the vectors are read
// from disk and copied into the embedding table.
func NewFromConfig(cfg config.TrainConfig, pre *preprocess.DataPreprocessor, log *zap.Logger) (*RNNModel, error) {
	if pre.Words == nil || pre.Labels == nil {
		return nil, ErrNotFitted
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &RNNModel{
		UsePretrainedEmbedding: cfg.PreTrainedEmbedding,
		VocabSize:              pre.Words.Size(),
		EmbeddingDimension:     cfg.EmbeddingDimension,
		EmbeddingsPath:         cfg.EmbeddingsPath(),
		MaxLength:              pre.MaxSequenceLength,
		WordIndex:              pre.Words.Index,
		Labels:                 pre.Labels,
		Arch: Architecture{
			Head:               cfg.Head,
			HiddenUnits:        cfg.HiddenUnits,
			DenseUnits:         cfg.DenseUnits,
			EmbeddingAlgorithm: cfg.EmbeddingAlgorithm,
			TrainableEmbedding: cfg.TrainableEmbedding,
		},
		train: cfg,
		log:   log,
	}
	if err := m.build(cfg.Seed); err != nil {
		return nil, err
	}
	if m.UsePretrainedEmbedding {
		vectors, err := word2vec.LoadFile(m.EmbeddingsPath, cfg.EmbeddingAlgorithm, m.EmbeddingDimension, pre.Words)
		if err != nil {
			return nil, err
		}
		if err := m.embedding.LoadPretrained(vectors.ByID, cfg.TrainableEmbedding); err != nil {
			return nil, err
		}
		log.Info("pretrained embedding loaded",
			zap.String("path", m.EmbeddingsPath),
			zap.Int("vectors", len(vectors.ByID)),
			zap.Float64("coverage", vectors.Coverage()))
	} else {
		log.Info("embedding trained with the model")
	}
	return m, nil
}

// WithLogger sets the logger.
func (m *RNNModel) WithLogger(log *zap.Logger) *RNNModel {
	if log != nil {
		m.log = log
	}
	return m
}

// SetTrainConfig replaces the hyperparameters used by Fit.
func (m *RNNModel) SetTrainConfig(cfg config.TrainConfig) {
	m.train = cfg
}

func (m *RNNModel) build(seed int64) error {
	if m.Arch.Head == "" {
		m.Arch.Head = HeadCRF
	}
	if m.Arch.Head != HeadCRF && m.Arch.Head != HeadSoftmax {
		return fmt.Errorf("%q: %w", m.Arch.Head, ErrUnknownHead)
	}
	if m.Arch.DenseUnits <= 0 {
		m.Arch.DenseUnits = 2 * m.Arch.HiddenUnits
	}
	if m.Labels == nil {
		return ErrNotFitted
	}
	rng := rand.New(rand.NewSource(seed))
	units := m.Arch.HiddenUnits
	m.embedding = nn.NewEmbedding("embedding", m.VocabSize, m.EmbeddingDimension, rng)
	m.lstm1 = nn.NewBiLSTM("bilstm1", m.EmbeddingDimension, units, rng)
	m.lstm2 = nn.NewBiLSTM("bilstm2", m.lstm1.OutputSize(), units, rng)
	m.hidden = nn.NewDense("hidden", m.lstm2.OutputSize(), m.Arch.DenseUnits, nn.ReLU, rng)
	m.emit = nn.NewDense("emissions", m.Arch.DenseUnits, m.Labels.Len(), nn.Linear, rng)
	if m.Arch.Head == HeadCRF {
		m.crf = crf_model.NewCRFModel("crf", m.Labels.Len(), rng)
	}
	return nil
}

// Params returns every learnable parameter in a fixed order.
func (m *RNNModel) Params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, m.embedding.Params()...)
	ps = append(ps, m.lstm1.Params()...)
	ps = append(ps, m.lstm2.Params()...)
	ps = append(ps, m.hidden.Params()...)
	ps = append(ps, m.emit.Params()...)
	if m.crf != nil {
		ps = append(ps, m.crf.Params()...)
	}
	return ps
}

// pass holds everything one forward pass needs for its backward pass.
type pass struct {
	ids    []int
	c1, c2 *nn.BiLSTMCache
	ch, ce *nn.DenseCache
	logits *mat.Dense
}

// forward runs ids through the network. ids must be non-empty.
func (m *RNNModel) forward(ids []int) *pass {
	x := m.embedding.Forward(ids)
	h1, c1 := m.lstm1.Forward(x)
	h2, c2 := m.lstm2.Forward(h1)
	var r mat.Dense
	r.Add(h1, h2)
	d, ch := m.hidden.Forward(&r)
	logits, ce := m.emit.Forward(d)
	return &pass{ids: ids, c1: c1, c2: c2, ch: ch, ce: ce, logits: logits}
}

func (m *RNNModel) backward(p *pass, dLogits *mat.Dense, g *nn.Grads) {
	dD := m.emit.Backward(p.ce, dLogits, g)
	dR := m.hidden.Backward(p.ch, dD, g)
	dH2 := m.lstm2.Backward(p.c2, dR, g)
	var dH1 mat.Dense
	dH1.Add(dH2, dR)
	dX := m.lstm1.Backward(p.c1, &dH1, g)
	m.embedding.Backward(p.ids, dX, g)
}

// loss scores gold tags against the logits and returns dLoss/dLogits.
func (m *RNNModel) loss(logits *mat.Dense, tags []int, g *nn.Grads) (float64, *mat.Dense, error) {
	if m.crf != nil {
		return m.crf.NegLogLikelihood(logits, tags, g)
	}
	l, d := nn.SoftmaxCrossEntropy(logits, tags, vocab.PadID)
	return l, d, nil
}

func (m *RNNModel) decode(logits *mat.Dense) ([]int, error) {
	if m.crf != nil {
		out, err := m.crf.Viterbi(logits)
		return out.Labels, err
	}
	T, _ := logits.Dims()
	ids := make([]int, T)
	for t := range ids {
		ids[t] = floats.MaxIdx(logits.RawRowView(t))
	}
	return ids, nil
}

func (m *RNNModel) probabilities(logits *mat.Dense) ([][]float64, error) {
	if m.crf != nil {
		return m.crf.Marginals(logits)
	}
	probs := nn.Softmax(logits)
	T, _ := probs.Dims()
	out := make([][]float64, T)
	for t := range out {
		out[t] = append([]float64(nil), probs.RawRowView(t)...)
	}
	return out, nil
}
