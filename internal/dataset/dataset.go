// Package dataset reads the training corpora: the GMB entity corpus
// ("Sentence #,Word,POS,Tag", ISO-8859-1) and labelled review CSVs.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ErrBadHeader is returned when a CSV lacks a required column.
var ErrBadHeader = errors.New("missing column")

// ErrBadLabel is returned for a sentiment label that is not positive/negative or 1/0.
var ErrBadLabel = errors.New("bad sentiment label")

// Entities is a token-labelled corpus.
type Entities struct {
	Sentences [][]string
	Tags      [][]string
}

// LoadNERCSV reads a latin-1 encoded GMB file from path.
func LoadNERCSV(path string) (*Entities, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNER(charmap.ISO8859_1.NewDecoder().Reader(f))
}

// ReadNER groups rows into sentences. A non-empty "Sentence #" cell starts a
// new sentence; rows with an empty cell continue the current one.
func ReadNER(r io.Reader) (*Entities, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columns(header, "sentence #", "word", "tag")
	if err != nil {
		return nil, err
	}
	out := &Entities{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= max(cols[0], cols[1], cols[2]) {
			return nil, fmt.Errorf("line %d: %d fields", line, len(rec))
		}
		if strings.TrimSpace(rec[cols[0]]) != "" || len(out.Sentences) == 0 {
			out.Sentences = append(out.Sentences, nil)
			out.Tags = append(out.Tags, nil)
		}
		last := len(out.Sentences) - 1
		out.Sentences[last] = append(out.Sentences[last], rec[cols[1]])
		out.Tags[last] = append(out.Tags[last], strings.TrimSpace(rec[cols[2]]))
	}
	return out, nil
}

// Reviews is a labelled text corpus; Labels are 1 for positive, 0 for negative.
type Reviews struct {
	Texts  []string
	Labels []float64
}

// LoadSentimentCSV reads a "review,sentiment" CSV from path.
func LoadSentimentCSV(path string) (*Reviews, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSentiment(f)
}

// ReadSentiment parses review/sentiment rows.
func ReadSentiment(r io.Reader) (*Reviews, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columns(header, "review", "sentiment")
	if err != nil {
		return nil, err
	}
	out := &Reviews{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= max(cols[0], cols[1]) {
			return nil, fmt.Errorf("line %d: %d fields", line, len(rec))
		}
		var y float64
		switch strings.ToLower(strings.TrimSpace(rec[cols[1]])) {
		case "positive", "pos", "1":
			y = 1
		case "negative", "neg", "0":
			y = 0
		default:
			return nil, fmt.Errorf("line %d: %q: %w", line, rec[cols[1]], ErrBadLabel)
		}
		out.Texts = append(out.Texts, strings.ReplaceAll(rec[cols[0]], "<br />", " "))
		out.Labels = append(out.Labels, y)
	}
	return out, nil
}

func columns(header []string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		idx[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")), name) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("%q: %w", name, ErrBadHeader)
		}
	}
	return idx, nil
}
