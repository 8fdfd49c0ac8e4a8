package nertagger

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/config"
	"github.com/golangast/marabou/internal/report"
	"github.com/golangast/marabou/neural/nn"
	"github.com/golangast/marabou/neural/nnu/gobs"
	"github.com/golangast/marabou/tagger/preprocess"
)

// Result summarizes a training run.
type Result struct {
	Artifact   gobs.Artifact
	History    *nn.History
	Report     *report.Report
	ReportPath string
}

// Train runs the whole entity pipeline: normalize tokens, fit the
// vocabularies, split off a test set, train, then save the model, the
// preprocessor, the run configuration, the report and the learning curve.
func Train(ctx context.Context, cfg config.TrainConfig, paths config.PathsConfig,
	sentences, tags [][]string, now time.Time, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ner config: %w", err)
	}
	pre := preprocess.New(cfg.MaxSequenceLength, cfg.ValidationSplit, cfg.VocabSize).WithLogger(log)
	normalized := make([][]string, len(sentences))
	for i, s := range sentences {
		normalized[i] = pre.NormalizeTokens(s)
	}
	X, Y, err := pre.TokenizeText(normalized, tags)
	if err != nil {
		return nil, err
	}
	Xtr, Xte, Ytr, Yte := pre.SplitTrainTest(X, Y, cfg.Seed)

	m, err := NewFromConfig(cfg, pre, log)
	if err != nil {
		return nil, err
	}
	hist, rep, err := m.Fit(ctx, Xtr, Ytr, Xte, Yte)
	if err != nil {
		return nil, err
	}

	prefix := gobs.Prefix(gobs.TaskEntities, now)
	res := &Result{History: hist, Report: rep}
	if res.Artifact, err = m.Save(paths.TrainedModels, prefix); err != nil {
		return nil, err
	}
	if _, err := pre.SaveFile(paths.TrainedModels, prefix); err != nil {
		return nil, err
	}
	if err := config.WriteTrainConfig(filepath.Join(paths.TrainedModels, prefix+gobs.ConfigSuffix), cfg); err != nil {
		return nil, err
	}
	if rep != nil {
		if res.ReportPath, err = m.SaveClassificationReport(rep, paths.Perf, prefix); err != nil {
			return nil, err
		}
	}
	if _, err := m.SaveHistory(hist, paths.Perf, prefix); err != nil {
		return nil, err
	}
	return res, nil
}
