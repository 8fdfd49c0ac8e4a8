// Package word2vec loads pretrained word vectors (GloVe and fastText text
// formats) and maps them onto a model vocabulary.
package word2vec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golangast/marabou/neural/nnu/vocab"
)

// Supported embedding algorithms.
const (
	GloVe    = "glove"
	FastText = "fasttext"
)

// ErrUnknownAlgorithm is returned for an embedding algorithm other than GloVe or FastText.
var ErrUnknownAlgorithm = errors.New("unknown embedding algorithm")

// WordVectors maps word ids to embedding rows.
type WordVectors map[int][]float64

// Vectors is a set of pretrained vectors restricted to a vocabulary.
type Vectors struct {
	Dim     int
	ByID    WordVectors
	Missing int // vocabulary words without a pretrained vector
}

// Coverage is the share of usable vocabulary ids that received a pretrained vector.
func (v *Vectors) Coverage() float64 {
	total := len(v.ByID) + v.Missing
	if total == 0 {
		return 0
	}
	return float64(len(v.ByID)) / float64(total)
}

// LoadFile reads the vectors at path for the words of index.
func LoadFile(path, algorithm string, dim int, index *vocab.WordIndex) (*Vectors, error) {
	if algorithm != GloVe && algorithm != FastText {
		return nil, fmt.Errorf("%q: %w", algorithm, ErrUnknownAlgorithm)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()
	return Read(f, algorithm, dim, index)
}

// Read parses "word v1 v2 ..." lines. FastText files start with a
// "count dim" header which is skipped. Only words present in index below its
// size cap are kept, and lines whose width differs from dim are ignored.
func Read(r io.Reader, algorithm string, dim int, index *vocab.WordIndex) (*Vectors, error) {
	out := &Vectors{Dim: dim, ByID: make(WordVectors)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		if first {
			first = false
			if algorithm == FastText && len(strings.Fields(line)) == 2 {
				continue
			}
		}
		fields := strings.Split(line, " ")
		if len(fields) != dim+1 {
			continue
		}
		id, ok := index.Index[fields[0]]
		if !ok || id < 2 || id >= index.Size() {
			continue
		}
		if _, seen := out.ByID[id]; seen {
			continue
		}
		vec := make([]float64, dim)
		bad := false
		for i, s := range fields[1:] {
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				bad = true
				break
			}
			vec[i] = x
		}
		if !bad {
			out.ByID[id] = vec
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	for id := 2; id < index.Size() && id < index.Len(); id++ {
		if _, ok := out.ByID[id]; !ok {
			out.Missing++
		}
	}
	return out, nil
}
