package sentiment

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
	"github.com/golangast/marabou/neural/tokenizer"
	"github.com/golangast/marabou/tagger/preprocess"
)

// Result summarizes a training run.
type Result struct {
	Artifact   gobs.Artifact
	History    *nn.History
	Report     *report.Report
	ReportPath string
}

// Train runs the whole sentiment pipeline on raw reviews and 0/1 labels and
// saves every artifact of the run.
func Train(ctx context.Context, cfg config.TrainConfig, paths config.PathsConfig,
	texts []string, labels []float64, now time.Time, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sentiment config: %w", err)
	}
	if len(texts) != len(labels) {
		return nil, fmt.Errorf("%d texts, %d labels: %w", len(texts), len(labels), ErrLengthMismatch)
	}
	pre := preprocess.New(cfg.MaxSequenceLength, cfg.ValidationSplit, cfg.VocabSize).WithLogger(log)
	lines := make([][]string, len(texts))
	for i, text := range texts {
		lines[i] = tokenizer.Tokenize(text)
	}
	X := pre.TokenizeFeatures(pre.CleanData(lines))
	Xtr, Xte, ytr, yte := preprocess.Split(X, labels, cfg.ValidationSplit, cfg.Seed)

	m, err := NewFromConfig(cfg, pre, log)
	if err != nil {
		return nil, err
	}
	hist, rep, err := m.Fit(ctx, Xtr, ytr, Xte, yte)
	if err != nil {
		return nil, err
	}

	prefix := gobs.Prefix(gobs.TaskSentiment, now)
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
