package gobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Task names used as artifact file prefixes.
const (
	TaskSentiment = "sentiment_analysis"
	TaskEntities  = "named_entity_recognition"
)

// Artifact file suffixes.
const (
	WeightsSuffix      = "_rnn_model.gob"
	ClassSuffix        = "_rnn_class.bin"
	PreprocessorSuffix = "_preprocessor.bin"
	ReportSuffix       = "_report.txt"
	HistorySuffix      = "_history.tsv"
	ConfigSuffix       = "_config.yaml"
)

var (
	// ErrNoArtifact is returned when no trained model exists for a task.
	ErrNoArtifact = errors.New("no trained model found")
	// ErrIncompleteArtifact is returned when a model lacks its class or preprocessor file.
	ErrIncompleteArtifact = errors.New("incomplete model artifact")
)

var digits = regexp.MustCompile(`\d+`)

// Prefix returns "<task>_YYYYmmdd_HHMMSS" for t.
func Prefix(task string, t time.Time) string {
	return task + "_" + t.Format("20060102_150405")
}

// Artifact locates the files of one saved model.
type Artifact struct {
	Dir    string
	Prefix string
}

// Weights is the path of the weight blob.
func (a Artifact) Weights() string { return filepath.Join(a.Dir, a.Prefix+WeightsSuffix) }

// Class is the path of the model metadata record.
func (a Artifact) Class() string { return filepath.Join(a.Dir, a.Prefix+ClassSuffix) }

// Preprocessor is the path of the preprocessor record.
func (a Artifact) Preprocessor() string { return filepath.Join(a.Dir, a.Prefix+PreprocessorSuffix) }

// Latest finds the newest complete artifact for task in dir. Candidates are
// ordered by the digits embedded in their file names.
func Latest(dir, task string) (Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%s in %s: %w", task, dir, ErrNoArtifact)
		}
		return Artifact{}, err
	}
	var best string
	var bestStamp int64 = -1
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, task) || !strings.HasSuffix(name, WeightsSuffix) {
			continue
		}
		stamp, err := strconv.ParseInt(strings.Join(digits.FindAllString(name, -1), ""), 10, 64)
		if err != nil {
			continue
		}
		if stamp > bestStamp {
			best, bestStamp = name, stamp
		}
	}
	if best == "" {
		return Artifact{}, fmt.Errorf("%s in %s: %w", task, dir, ErrNoArtifact)
	}
	a := Artifact{Dir: dir, Prefix: strings.TrimSuffix(best, WeightsSuffix)}
	for _, p := range []string{a.Class(), a.Preprocessor()} {
		if _, err := os.Stat(p); err != nil {
			return Artifact{}, fmt.Errorf("%s: %w", p, ErrIncompleteArtifact)
		}
	}
	return a, nil
}
