// Package service wraps the loaded models behind request-level prediction
// calls with caching and metrics.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/logger"
	"github.com/golangast/marabou/neural/nnu/gobs"
	"github.com/golangast/marabou/tagger/nertagger"
	"github.com/golangast/marabou/tagger/preprocess"
	"github.com/golangast/marabou/tagger/sentiment"
)

var (
	// ErrEmptyQuery is returned when a request carries no text.
	ErrEmptyQuery = errors.New("empty query")
	// ErrModelNotLoaded is returned when the task has no model in the registry.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrIncompatibleArtifact is returned when a model and its preprocessor disagree.
	ErrIncompatibleArtifact = errors.New("model and preprocessor are incompatible")
)

// SentimentModel is a loaded sentiment classifier with its preprocessor.
type SentimentModel struct {
	Artifact gobs.Artifact
	Model    *sentiment.RNNModel
	Pre      *preprocess.DataPreprocessor
}

// EntityModel is a loaded entity tagger with its preprocessor.
type EntityModel struct {
	Artifact gobs.Artifact
	Model    *nertagger.RNNModel
	Pre      *preprocess.DataPreprocessor
}

// Registry holds one model per task, loaded once at startup.
type Registry struct {
	Sentiment *SentimentModel
	Entities  *EntityModel
}

// Loaded reports which tasks have a model.
func (r *Registry) Loaded() map[string]bool {
	return map[string]bool{
		gobs.TaskSentiment: r != nil && r.Sentiment != nil,
		gobs.TaskEntities:  r != nil && r.Entities != nil,
	}
}

// LoadRegistry loads the newest artifact of both tasks from dir in parallel.
// Any missing or incompatible artifact fails the whole load.
func LoadRegistry(ctx context.Context, dir string, log *zap.Logger) (*Registry, error) {
	log = logger.OrNop(log)
	reg := &Registry{}
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		m, err := LoadSentiment(ctx, dir)
		if err != nil {
			return fmt.Errorf("%s: %w", gobs.TaskSentiment, err)
		}
		reg.Sentiment = m
		log.Info("model loaded", zap.String("task", gobs.TaskSentiment), zap.String("prefix", m.Artifact.Prefix))
		return nil
	})
	p.Go(func(ctx context.Context) error {
		m, err := LoadEntities(ctx, dir)
		if err != nil {
			return fmt.Errorf("%s: %w", gobs.TaskEntities, err)
		}
		reg.Entities = m
		log.Info("model loaded", zap.String("task", gobs.TaskEntities), zap.String("prefix", m.Artifact.Prefix),
			zap.Int("labels", m.Model.Labels.Len()))
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadSentiment loads the newest sentiment artifact in dir. It stops between
// files once ctx is done.
func LoadSentiment(ctx context.Context, dir string) (*SentimentModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := sentiment.LatestArtifact(dir)
	if err != nil {
		return nil, err
	}
	m, err := sentiment.Load(a)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pre, err := preprocess.LoadFile(a.Preprocessor())
	if err != nil {
		return nil, err
	}
	if err := compatible(m.MaxLength, m.VocabSize, len(m.WordIndex), pre); err != nil {
		return nil, err
	}
	return &SentimentModel{Artifact: a, Model: m, Pre: pre}, nil
}

// LoadEntities loads the newest entity artifact in dir. It stops between
// files once ctx is done.
func LoadEntities(ctx context.Context, dir string) (*EntityModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := nertagger.LatestArtifact(dir)
	if err != nil {
		return nil, err
	}
	m, err := nertagger.Load(a)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pre, err := preprocess.LoadFile(a.Preprocessor())
	if err != nil {
		return nil, err
	}
	if err := compatible(m.MaxLength, m.VocabSize, len(m.WordIndex), pre); err != nil {
		return nil, err
	}
	if pre.Labels == nil || pre.Labels.Len() != m.Labels.Len() {
		return nil, fmt.Errorf("label sets differ: %w", ErrIncompatibleArtifact)
	}
	return &EntityModel{Artifact: a, Model: m, Pre: pre}, nil
}

func compatible(maxLen, vocabSize, words int, pre *preprocess.DataPreprocessor) error {
	switch {
	case maxLen != pre.MaxSequenceLength:
		return fmt.Errorf("max length %d, preprocessor %d: %w", maxLen, pre.MaxSequenceLength, ErrIncompatibleArtifact)
	case vocabSize != pre.Words.Size():
		return fmt.Errorf("vocab size %d, preprocessor %d: %w", vocabSize, pre.Words.Size(), ErrIncompatibleArtifact)
	case words != len(pre.Words.Index):
		return fmt.Errorf("word index %d, preprocessor %d: %w", words, len(pre.Words.Index), ErrIncompatibleArtifact)
	}
	return nil
}
