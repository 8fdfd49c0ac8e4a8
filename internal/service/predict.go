package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/cache"
	"github.com/golangast/marabou/internal/logger"
	"github.com/golangast/marabou/internal/metrics"
	"github.com/golangast/marabou/neural/nnu/gobs"
	"github.com/golangast/marabou/tagger/nertagger"
	"github.com/golangast/marabou/tagger/sentiment"
)

// SentimentResult is the prediction for one text.
type SentimentResult struct {
	Text        string  `json:"text"`
	Probability float64 `json:"probability"`
	Score       float64 `json:"score"`
	Label       string  `json:"label"`
}

// EntityToken is one tagged word.
type EntityToken struct {
	Word   string `json:"word"`
	Label  string `json:"label"`
	Entity string `json:"entity"`
}

// EntityResult holds the tagged words of every text and their table rendering.
type EntityResult struct {
	Texts         [][]EntityToken `json:"texts"`
	Visualization string          `json:"visualization"`
}

type deps struct {
	cache   cache.Cache
	metrics *metrics.Metrics
	log     *zap.Logger
}

// SentimentService scores texts with the loaded sentiment model.
type SentimentService struct {
	model *SentimentModel
	deps
}

// NewSentimentService returns a service over m. c and mt may be nil.
func NewSentimentService(m *SentimentModel, c cache.Cache, mt *metrics.Metrics, log *zap.Logger) *SentimentService {
	return &SentimentService{model: m, deps: deps{cache: c, metrics: mt, log: logger.OrNop(log)}}
}

// Predict scores every text.
func (s *SentimentService) Predict(ctx context.Context, texts []string) (res []SentimentResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(gobs.TaskSentiment, len(texts), start, err) }()
	if s.model == nil {
		return nil, ErrModelNotLoaded
	}
	if blank(texts) {
		return nil, ErrEmptyQuery
	}
	return cached(ctx, s.deps, gobs.TaskSentiment, s.model.Artifact.Prefix, texts, func(missed []string) ([]SentimentResult, error) {
		encoded, nTokens, err := s.model.Pre.PreprocessText(missed)
		if err != nil {
			return nil, err
		}
		probs, err := s.model.Model.PredictProba(encoded, nTokens)
		if err != nil {
			return nil, err
		}
		out := make([]SentimentResult, len(missed))
		for i, p := range probs {
			out[i] = SentimentResult{Text: missed[i], Probability: p, Score: sentiment.Score(p), Label: sentiment.Label(p)}
		}
		return out, nil
	})
}

// EntityService tags texts with the loaded entity model.
type EntityService struct {
	model *EntityModel
	deps
}

// NewEntityService returns a service over m. c and mt may be nil.
func NewEntityService(m *EntityModel, c cache.Cache, mt *metrics.Metrics, log *zap.Logger) *EntityService {
	return &EntityService{model: m, deps: deps{cache: c, metrics: mt, log: logger.OrNop(log)}}
}

// Predict tags every word of every text. Words past the model's maximum
// length are left out.
func (s *EntityService) Predict(ctx context.Context, texts []string) (res EntityResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(gobs.TaskEntities, len(texts), start, err) }()
	if s.model == nil {
		return res, ErrModelNotLoaded
	}
	if blank(texts) {
		return res, ErrEmptyQuery
	}
	tagged, err := cached(ctx, s.deps, gobs.TaskEntities, s.model.Artifact.Prefix, texts, func(missed []string) ([][]EntityToken, error) {
		encoded, tokens, nTokens, err := s.model.Pre.PreprocessData(missed)
		if err != nil {
			return nil, err
		}
		labels, err := s.model.Model.Predict(encoded, nTokens)
		if err != nil {
			return nil, err
		}
		out := make([][]EntityToken, len(missed))
		for i := range labels {
			out[i] = make([]EntityToken, len(labels[i]))
			for j, label := range labels[i] {
				out[i][j] = EntityToken{Word: tokens[i][j], Label: label, Entity: nertagger.Describe(label)}
			}
		}
		return out, nil
	})
	if err != nil {
		return res, err
	}
	words := make([][]string, len(tagged))
	labels := make([][]string, len(tagged))
	for i, text := range tagged {
		for _, tok := range text {
			words[i] = append(words[i], tok.Word)
			labels[i] = append(labels[i], tok.Label)
		}
	}
	return EntityResult{Texts: tagged, Visualization: nertagger.Visualize(words, labels)}, nil
}

func blank(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

// cached answers texts from the cache where possible and computes the rest in
// one batch. Entries are scoped to the model saved as prefix. Cache failures
// degrade to a miss.
func cached[T any](ctx context.Context, d deps, task, prefix string, texts []string,
	compute func(missed []string) ([]T, error)) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]T, len(texts))
	var missed []string
	var at []int
	for i, text := range texts {
		if d.cache != nil {
			raw, err := d.cache.Get(ctx, cache.Key(task, prefix, text))
			if err == nil && json.Unmarshal(raw, &out[i]) == nil {
				d.metrics.Cache(task, true)
				continue
			}
			if err != nil && !errors.Is(err, cache.ErrMiss) {
				d.log.Warn("cache read failed", zap.String("task", task), zap.Error(err))
			}
			d.metrics.Cache(task, false)
		}
		missed = append(missed, text)
		at = append(at, i)
	}
	if len(missed) == 0 {
		return out, nil
	}
	fresh, err := compute(missed)
	if err != nil {
		return nil, err
	}
	for k, v := range fresh {
		out[at[k]] = v
		if d.cache == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err == nil {
			err = d.cache.Set(ctx, cache.Key(task, prefix, missed[k]), raw)
		}
		if err != nil {
			d.log.Warn("cache write failed", zap.String("task", task), zap.Error(err))
		}
	}
	return out, nil
}
