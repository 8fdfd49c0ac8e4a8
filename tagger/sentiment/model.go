// Package sentiment implements the recurrent review classifier: an embedding,
// a bidirectional LSTM, mean pooling over the real tokens and a sigmoid output
// giving the probability that a text is positive.
package sentiment

import (
	"errors"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/golangast/marabou/internal/config"
	"github.com/golangast/marabou/neural/nn"
	"github.com/golangast/marabou/neural/nnu/word2vec"
	"github.com/golangast/marabou/tagger/preprocess"
)

// Class labels.
const (
	Positive = "positive"
	Negative = "negative"
)

// ErrNotFitted is returned when building a model from an unfitted preprocessor.
var ErrNotFitted = errors.New("preprocessor has no word index")

// Architecture describes the layer sizes needed to rebuild a saved model.
type Architecture struct {
	HiddenUnits        int
	EmbeddingAlgorithm string
	TrainableEmbedding bool
}

// RNNModel is a binary text classifier.
type RNNModel struct {
	UsePretrainedEmbedding bool
	VocabSize              int
	EmbeddingDimension     int
	EmbeddingsPath         string
	MaxLength              int
	WordIndex              map[string]int
	Arch                   Architecture

	embedding *nn.Embedding
	lstm      *nn.BiLSTM
	out       *nn.Dense

	train config.TrainConfig
	log   *zap.Logger
}

// NewFromConfig builds an untrained classifier sized by cfg and the fitted preprocessor.
func NewFromConfig(cfg config.TrainConfig, pre *preprocess.DataPreprocessor, log *zap.Logger) (*RNNModel, error) {
	if pre.Words == nil {
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
		Arch: Architecture{
			HiddenUnits:        cfg.HiddenUnits,
			EmbeddingAlgorithm: cfg.EmbeddingAlgorithm,
			TrainableEmbedding: cfg.TrainableEmbedding,
		},
		train: cfg,
		log:   log,
	}
	m.build(cfg.Seed)
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
			zap.Float64("coverage", vectors.Coverage()))
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

func (m *RNNModel) build(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	m.embedding = nn.NewEmbedding("embedding", m.VocabSize, m.EmbeddingDimension, rng)
	m.lstm = nn.NewBiLSTM("bilstm", m.EmbeddingDimension, m.Arch.HiddenUnits, rng)
	m.out = nn.NewDense("output", m.lstm.OutputSize(), 1, nn.Linear, rng)
}

// Params returns every learnable parameter in a fixed order.
func (m *RNNModel) Params() []*nn.Param {
	var ps []*nn.Param
	ps = append(ps, m.embedding.Params()...)
	ps = append(ps, m.lstm.Params()...)
	return append(ps, m.out.Params()...)
}

type pass struct {
	ids   []int
	cache *nn.BiLSTMCache
	co    *nn.DenseCache
	logit float64
}

// forward scores ids. An empty sequence pools to the zero vector.
func (m *RNNModel) forward(ids []int) *pass {
	p := &pass{ids: ids}
	pooled := mat.NewDense(1, m.lstm.OutputSize(), nil)
	if len(ids) > 0 {
		var h *mat.Dense
		h, p.cache = m.lstm.Forward(m.embedding.Forward(ids))
		row := pooled.RawRowView(0)
		for t := range ids {
			for j, v := range h.RawRowView(t) {
				row[j] += v
			}
		}
		pooled.Scale(1/float64(len(ids)), pooled)
	}
	z, co := m.out.Forward(pooled)
	p.co, p.logit = co, z.At(0, 0)
	return p
}

func (m *RNNModel) backward(p *pass, dLogit float64, g *nn.Grads) {
	dPooled := m.out.Backward(p.co, mat.NewDense(1, 1, []float64{dLogit}), g)
	T := len(p.ids)
	if T == 0 {
		return
	}
	dH := mat.NewDense(T, m.lstm.OutputSize(), nil)
	for t := 0; t < T; t++ {
		row := dH.RawRowView(t)
		for j, v := range dPooled.RawRowView(0) {
			row[j] = v / float64(T)
		}
	}
	dX := m.lstm.Backward(p.cache, dH, g)
	m.embedding.Backward(p.ids, dX, g)
}

// Label maps a positive-class probability to a class label at 0.5.
func Label(p float64) string {
	if p >= 0.5 {
		return Positive
	}
	return Negative
}

// Score scales a positive-class probability to a percentage rounded to two decimals.
func Score(p float64) float64 {
	return math.Round(p*100*100) / 100
}
