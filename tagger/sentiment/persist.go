package sentiment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/report"
	"github.com/golangast/marabou/neural/nn"
	"github.com/golangast/marabou/neural/nnu/gobs"
)

// Save writes the weight blob and the metadata record to dir.
func (m *RNNModel) Save(dir, prefix string) (gobs.Artifact, error) {
	a := gobs.Artifact{Dir: dir, Prefix: prefix}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return a, err
	}
	if err := gobs.SaveWeights(a.Weights(), m.Params()); err != nil {
		return a, fmt.Errorf("save weights: %w", err)
	}
	err := gobs.WriteFile(a.Class(), func(w io.Writer) error {
		return gobs.NewFieldWriter(w).
			Write("use_pretrained_embedding", m.UsePretrainedEmbedding).
			Write("vocab_size", m.VocabSize).
			Write("embedding_dimension", m.EmbeddingDimension).
			Write("embeddings_path", m.EmbeddingsPath).
			Write("max_length", m.MaxLength).
			Write("word_index", m.WordIndex).
			Write("architecture", m.Arch).
			Err()
	})
	if err != nil {
		return a, fmt.Errorf("save class: %w", err)
	}
	m.log.Info("model saved", zap.String("weights", a.Weights()), zap.String("class", a.Class()))
	return a, nil
}

// LoadFromFiles rebuilds a classifier from its metadata record and weight blob.
func LoadFromFiles(weightsPath, classPath string) (*RNNModel, error) {
	m := &RNNModel{log: zap.NewNop()}
	err := gobs.ReadFile(classPath, func(r io.Reader) error {
		return gobs.NewFieldReader(r).
			Read("use_pretrained_embedding", &m.UsePretrainedEmbedding).
			Read("vocab_size", &m.VocabSize).
			Read("embedding_dimension", &m.EmbeddingDimension).
			Read("embeddings_path", &m.EmbeddingsPath).
			Read("max_length", &m.MaxLength).
			Read("word_index", &m.WordIndex).
			Read("architecture", &m.Arch).
			Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load class %s: %w", classPath, err)
	}
	m.build(0)
	if err := gobs.LoadWeights(weightsPath, m.Params()); err != nil {
		return nil, fmt.Errorf("load weights %s: %w", weightsPath, err)
	}
	return m, nil
}

// Load rebuilds the classifier of artifact a.
func Load(a gobs.Artifact) (*RNNModel, error) {
	return LoadFromFiles(a.Weights(), a.Class())
}

// LatestArtifact finds the newest saved sentiment model in dir.
func LatestArtifact(dir string) (gobs.Artifact, error) {
	return gobs.Latest(dir, gobs.TaskSentiment)
}

// SaveClassificationReport writes rep to dir as <prefix>_report.txt.
func (m *RNNModel) SaveClassificationReport(rep *report.Report, dir, prefix string) (string, error) {
	path := filepath.Join(dir, prefix+gobs.ReportSuffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := gobs.WriteFile(path, rep.WriteText); err != nil {
		return "", err
	}
	m.log.Info("classification report saved", zap.String("path", path))
	return path, nil
}

// SaveHistory writes the learning curve to dir as <prefix>_history.tsv.
func (m *RNNModel) SaveHistory(h *nn.History, dir, prefix string) (string, error) {
	path := filepath.Join(dir, prefix+gobs.HistorySuffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := gobs.WriteFile(path, h.WriteTSV); err != nil {
		return "", err
	}
	return path, nil
}
