// Package vocab builds the token and label vocabularies shared by training and
// serving.
package vocab

import (
	"errors"
	"fmt"
	"sort"
)

const (
	PadToken     = "pad"
	UnknownToken = "<unk>"
	PadID        = 0
	UnknownID    = 1
	// PadLabel shares id 0 with the padding token.
	PadLabel = "pad"
)

// ErrUnknownLabel is returned when encoding a label that was not seen during fitting.
var ErrUnknownLabel = errors.New("unknown label")

// WordIndex maps tokens to ids ranked by corpus frequency.
// Ids below VocabSize are usable; everything else encodes to UnknownID.
type WordIndex struct {
	VocabSize int
	Index     map[string]int
	Counts    map[string]int
	Words     []string // id -> token
}

// NewWordIndex returns an empty index capped at vocabSize ids. A non-positive
// vocabSize disables the cap.
func NewWordIndex(vocabSize int) *WordIndex {
	w := &WordIndex{VocabSize: vocabSize}
	w.reset()
	return w
}

func (w *WordIndex) reset() {
	w.Index = map[string]int{PadToken: PadID, UnknownToken: UnknownID}
	w.Counts = make(map[string]int)
	w.Words = []string{PadToken, UnknownToken}
}

// Fit rebuilds the index from texts. Words are ranked by descending count;
// ties keep first-occurrence order.
func (w *WordIndex) Fit(texts [][]string) {
	w.reset()
	var order []string
	for _, text := range texts {
		for _, tok := range text {
			if tok == PadToken || tok == UnknownToken {
				continue
			}
			if _, ok := w.Counts[tok]; !ok {
				order = append(order, tok)
			}
			w.Counts[tok]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return w.Counts[order[i]] > w.Counts[order[j]]
	})
	for _, tok := range order {
		w.Index[tok] = len(w.Words)
		w.Words = append(w.Words, tok)
	}
}

// Size is the number of usable ids, which is also the embedding table height.
func (w *WordIndex) Size() int {
	if w.VocabSize > 0 {
		return w.VocabSize
	}
	return len(w.Words)
}

// Len is the number of distinct tokens known, ignoring the cap.
func (w *WordIndex) Len() int {
	return len(w.Words)
}

// ID returns the id of token, collapsing unseen and over-the-cap tokens to
// UnknownID. Only padding encodes to PadID, so the literal word "pad" is unknown.
func (w *WordIndex) ID(token string) int {
	id, ok := w.Index[token]
	if !ok || id == PadID || (w.VocabSize > 0 && id >= w.VocabSize) {
		return UnknownID
	}
	return id
}

// Encode maps tokens to ids.
func (w *WordIndex) Encode(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = w.ID(tok)
	}
	return ids
}

// Word returns the token for id, or UnknownToken when out of range.
func (w *WordIndex) Word(id int) string {
	if id < 0 || id >= len(w.Words) {
		return UnknownToken
	}
	return w.Words[id]
}

// LabelIndex maps tags to ids. PadLabel is always 0; the remaining labels are
// sorted so the mapping does not depend on corpus order.
type LabelIndex struct {
	ToID    map[string]int
	ToLabel []string
}

// NewLabelIndex collects the distinct labels of every sequence.
func NewLabelIndex(sequences [][]string) *LabelIndex {
	seen := make(map[string]struct{})
	for _, seq := range sequences {
		for _, l := range seq {
			if l != PadLabel {
				seen[l] = struct{}{}
			}
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	li := &LabelIndex{
		ToID:    map[string]int{PadLabel: 0},
		ToLabel: append([]string{PadLabel}, labels...),
	}
	for i, l := range labels {
		li.ToID[l] = i + 1
	}
	return li
}

// Len is the number of labels including PadLabel.
func (l *LabelIndex) Len() int {
	return len(l.ToLabel)
}

// Encode maps labels to ids.
func (l *LabelIndex) Encode(labels []string) ([]int, error) {
	ids := make([]int, len(labels))
	for i, lab := range labels {
		id, ok := l.ToID[lab]
		if !ok {
			return nil, fmt.Errorf("%q: %w", lab, ErrUnknownLabel)
		}
		ids[i] = id
	}
	return ids, nil
}

// Decode maps ids back to labels; out-of-range ids decode to PadLabel.
func (l *LabelIndex) Decode(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(l.ToLabel) {
			out[i] = PadLabel
			continue
		}
		out[i] = l.ToLabel[id]
	}
	return out
}

// Pad post-pads or post-truncates seq to length maxLen with value.
func Pad(seq []int, maxLen, value int) []int {
	out := make([]int, maxLen)
	n := copy(out, seq)
	for i := n; i < maxLen; i++ {
		out[i] = value
	}
	return out
}

// SequenceLength is the length of seq without trailing padding.
func SequenceLength(seq []int) int {
	n := len(seq)
	for n > 0 && seq[n-1] == PadID {
		n--
	}
	return n
}

// LabelIndexFromMap rebuilds a LabelIndex from a persisted label-to-id map.
// Ids must be dense from 0.
func LabelIndexFromMap(m map[string]int) (*LabelIndex, error) {
	li := &LabelIndex{ToID: make(map[string]int, len(m)), ToLabel: make([]string, len(m))}
	for label, id := range m {
		if id < 0 || id >= len(m) || li.ToLabel[id] != "" {
			return nil, fmt.Errorf("label %q has invalid id %d", label, id)
		}
		li.ToID[label] = id
		li.ToLabel[id] = label
	}
	if len(m) > 0 && li.ToLabel[0] != PadLabel {
		return nil, fmt.Errorf("label id 0 is %q, want %q", li.ToLabel[0], PadLabel)
	}
	return li, nil
}
