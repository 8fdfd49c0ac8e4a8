// Package preprocess turns raw text into the padded id sequences the models
// consume, and persists the fitted vocabularies next to each model.
package preprocess

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/golangast/marabou/neural/nnu/gobs"
	"github.com/golangast/marabou/neural/nnu/vocab"
	"github.com/golangast/marabou/neural/tokenizer"
)

var (
	// ErrNotFitted is returned when encoding before TokenizeText or TokenizeFeatures ran.
	ErrNotFitted = errors.New("preprocessor not fitted")
	// ErrMisaligned is returned when features and labels differ in count or length.
	ErrMisaligned = errors.New("features and labels are misaligned")
)

// DataPreprocessor cleans, tokenizes, encodes and pads text.
type DataPreprocessor struct {
	MaxSequenceLength int
	ValidationSplit   float64
	VocabSize         int
	Words             *vocab.WordIndex
	Labels            *vocab.LabelIndex

	log *zap.Logger
}

// New returns an unfitted preprocessor.
func New(maxSequenceLength int, validationSplit float64, vocabSize int) *DataPreprocessor {
	return &DataPreprocessor{
		MaxSequenceLength: maxSequenceLength,
		ValidationSplit:   validationSplit,
		VocabSize:         vocabSize,
		log:               zap.NewNop(),
	}
}

// WithLogger sets the logger used for progress messages.
func (p *DataPreprocessor) WithLogger(log *zap.Logger) *DataPreprocessor {
	if log != nil {
		p.log = log
	}
	return p
}

// CleanData lowercases every token, strips punctuation and drops anything
// that is not purely alphabetic.
func (p *DataPreprocessor) CleanData(lines [][]string) [][]string {
	out := make([][]string, len(lines))
	for i, line := range lines {
		out[i] = tokenizer.Clean(line)
	}
	p.log.Debug("data cleaned", zap.Int("lines", len(lines)))
	return out
}

// NormalizeTokens lowercases and strips punctuation without dropping tokens,
// so token-level labels stay aligned.
func (p *DataPreprocessor) NormalizeTokens(tokens []string) []string {
	return tokenizer.Normalize(tokens)
}

// TokenizeText fits the word and label vocabularies and returns padded
// feature and label id matrices.
func (p *DataPreprocessor) TokenizeText(x, y [][]string) ([][]int, [][]int, error) {
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("%d feature rows, %d label rows: %w", len(x), len(y), ErrMisaligned)
	}
	for i := range x {
		if len(x[i]) != len(y[i]) {
			return nil, nil, fmt.Errorf("row %d has %d tokens and %d labels: %w", i, len(x[i]), len(y[i]), ErrMisaligned)
		}
	}
	X := p.TokenizeFeatures(x)
	p.Labels = vocab.NewLabelIndex(y)
	Y := make([][]int, len(y))
	for i, labels := range y {
		ids, err := p.Labels.Encode(labels)
		if err != nil {
			return nil, nil, err
		}
		Y[i] = vocab.Pad(ids, p.MaxSequenceLength, vocab.PadID)
	}
	p.log.Info("labels tokenized",
		zap.Int("unique_labels", p.Labels.Len()),
		zap.Ints("labels_shape", []int{len(Y), p.MaxSequenceLength}))
	return X, Y, nil
}

// TokenizeFeatures fits the word index on x and returns padded id rows.
func (p *DataPreprocessor) TokenizeFeatures(x [][]string) [][]int {
	p.Words = vocab.NewWordIndex(p.VocabSize)
	p.Words.Fit(x)
	X := make([][]int, len(x))
	for i, tokens := range x {
		X[i] = vocab.Pad(p.Words.Encode(tokens), p.MaxSequenceLength, vocab.PadID)
	}
	p.log.Info("features tokenized",
		zap.Int("unique_tokens", p.Words.Len()),
		zap.Ints("features_shape", []int{len(X), p.MaxSequenceLength}))
	return X
}

// SplitTrainTest shuffles and holds out ValidationSplit of the rows.
func (p *DataPreprocessor) SplitTrainTest(X, Y [][]int, seed int64) (Xtr, Xte, Ytr, Yte [][]int) {
	Xtr, Xte, Ytr, Yte = Split(X, Y, p.ValidationSplit, seed)
	p.log.Info("data split", zap.Int("train", len(Xtr)), zap.Int("test", len(Xte)))
	return Xtr, Xte, Ytr, Yte
}

// SplitIndices shuffles 0..n-1 with seed and returns the train and held-out
// index sets. The held-out set has ceil(n*fraction) rows.
func SplitIndices(n int, fraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := 0
	if fraction > 0 {
		nTest = min(int(math.Ceil(float64(n)*fraction)), n)
	}
	return perm[nTest:], perm[:nTest]
}

// Split partitions rows of X and Y together.
func Split[T any](X [][]int, Y []T, fraction float64, seed int64) (Xtr, Xte [][]int, Ytr, Yte []T) {
	train, test := SplitIndices(len(X), fraction, seed)
	for _, i := range train {
		Xtr = append(Xtr, X[i])
		Ytr = append(Ytr, Y[i])
	}
	for _, i := range test {
		Xte = append(Xte, X[i])
		Yte = append(Yte, Y[i])
	}
	return Xtr, Xte, Ytr, Yte
}

// PreprocessData tokenizes raw texts for token labelling. It returns the padded
// ids, the raw tokens and the number of real tokens per text, capped at
// MaxSequenceLength.
func (p *DataPreprocessor) PreprocessData(texts []string) ([][]int, [][]string, []int, error) {
	lines := make([][]string, len(texts))
	for i, text := range texts {
		lines[i] = tokenizer.Tokenize(text)
	}
	encoded, nTokens, err := p.PreprocessTokens(lines)
	if err != nil {
		return nil, nil, nil, err
	}
	return encoded, lines, nTokens, nil
}

// PreprocessTokens encodes already tokenized lines.
func (p *DataPreprocessor) PreprocessTokens(lines [][]string) ([][]int, []int, error) {
	if p.Words == nil {
		return nil, nil, ErrNotFitted
	}
	encoded := make([][]int, len(lines))
	nTokens := make([]int, len(lines))
	for i, line := range lines {
		encoded[i] = vocab.Pad(p.Words.Encode(tokenizer.Normalize(line)), p.MaxSequenceLength, vocab.PadID)
		nTokens[i] = min(len(line), p.MaxSequenceLength)
	}
	return encoded, nTokens, nil
}

// PreprocessText tokenizes and cleans raw texts for whole-text classification.
func (p *DataPreprocessor) PreprocessText(texts []string) ([][]int, []int, error) {
	if p.Words == nil {
		return nil, nil, ErrNotFitted
	}
	encoded := make([][]int, len(texts))
	nTokens := make([]int, len(texts))
	for i, text := range texts {
		words := tokenizer.Clean(tokenizer.Tokenize(text))
		encoded[i] = vocab.Pad(p.Words.Encode(words), p.MaxSequenceLength, vocab.PadID)
		nTokens[i] = min(len(words), p.MaxSequenceLength)
	}
	return encoded, nTokens, nil
}

// Save writes the preprocessor fields in order: tokenizer,
// max_sequence_length, vocab_size, labels_to_idx.
func (p *DataPreprocessor) Save(w io.Writer) error {
	if p.Words == nil {
		return ErrNotFitted
	}
	labels := map[string]int{}
	if p.Labels != nil {
		labels = p.Labels.ToID
	}
	return gobs.NewFieldWriter(w).
		Write("tokenizer", p.Words).
		Write("max_sequence_length", p.MaxSequenceLength).
		Write("vocab_size", p.VocabSize).
		Write("labels_to_idx", labels).
		Err()
}

// Load reads a preprocessor written by Save.
func Load(r io.Reader) (*DataPreprocessor, error) {
	p := New(0, 0, 0)
	var labels map[string]int
	p.Words = &vocab.WordIndex{}
	err := gobs.NewFieldReader(r).
		Read("tokenizer", p.Words).
		Read("max_sequence_length", &p.MaxSequenceLength).
		Read("vocab_size", &p.VocabSize).
		Read("labels_to_idx", &labels).
		Err()
	if err != nil {
		return nil, fmt.Errorf("load preprocessor: %w", err)
	}
	if p.Words.Counts == nil {
		p.Words.Counts = make(map[string]int)
	}
	if len(labels) > 0 {
		if p.Labels, err = vocab.LabelIndexFromMap(labels); err != nil {
			return nil, fmt.Errorf("load preprocessor: %w", err)
		}
	}
	return p, nil
}

// SaveFile writes the preprocessor to dir as <prefix>_preprocessor.bin.
func (p *DataPreprocessor) SaveFile(dir, prefix string) (string, error) {
	path := filepath.Join(dir, prefix+gobs.PreprocessorSuffix)
	if err := gobs.WriteFile(path, p.Save); err != nil {
		return "", err
	}
	p.log.Info("preprocessor saved", zap.String("path", path))
	return path, nil
}

// LoadFile reads a preprocessor from path.
func LoadFile(path string) (*DataPreprocessor, error) {
	var p *DataPreprocessor
	err := gobs.ReadFile(path, func(r io.Reader) error {
		var err error
		p, err = Load(r)
		return err
	})
	return p, err
}
