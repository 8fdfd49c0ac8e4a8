// Package report computes per-class precision, recall and F1 over flattened
// label sequences and renders them as a fixed-width text table.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Row is one line of the report.
type Row struct {
	Class     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a classification report.
type Report struct {
	Classes     []Row // sorted by class name
	Accuracy    float64
	Total       int
	MacroAvg    Row
	WeightedAvg Row
}

// New compares expected and predicted labels position by position. Classes are
// the union of labels seen in either slice.
func New(expected, predicted []string) (*Report, error) {
	if len(expected) != len(predicted) {
		return nil, fmt.Errorf("report: %d expected labels, %d predicted", len(expected), len(predicted))
	}
	tp := map[string]int{}
	support := map[string]int{}
	guessed := map[string]int{}
	correct := 0
	for i, want := range expected {
		got := predicted[i]
		support[want]++
		guessed[got]++
		if want == got {
			tp[want]++
			correct++
		}
	}
	classes := make([]string, 0, len(support)+len(guessed))
	for c := range support {
		classes = append(classes, c)
	}
	for c := range guessed {
		if _, ok := support[c]; !ok {
			classes = append(classes, c)
		}
	}
	sort.Strings(classes)

	r := &Report{Total: len(expected)}
	if r.Total > 0 {
		r.Accuracy = float64(correct) / float64(r.Total)
	}
	n := len(classes)
	prec, rec, f1, weights := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range classes {
		prec[i] = ratio(tp[c], guessed[c])
		rec[i] = ratio(tp[c], support[c])
		if prec[i]+rec[i] > 0 {
			f1[i] = 2 * prec[i] * rec[i] / (prec[i] + rec[i])
		}
		weights[i] = float64(support[c])
		r.Classes = append(r.Classes, Row{Class: c, Precision: prec[i], Recall: rec[i], F1: f1[i], Support: support[c]})
	}
	r.MacroAvg = Row{Class: "macro avg", Support: r.Total}
	r.WeightedAvg = Row{Class: "weighted avg", Support: r.Total}
	if n > 0 {
		r.MacroAvg.Precision = floats.Sum(prec) / float64(n)
		r.MacroAvg.Recall = floats.Sum(rec) / float64(n)
		r.MacroAvg.F1 = floats.Sum(f1) / float64(n)
	}
	if r.Total > 0 {
		r.WeightedAvg.Precision = floats.Dot(prec, weights) / float64(r.Total)
		r.WeightedAvg.Recall = floats.Dot(rec, weights) / float64(r.Total)
		r.WeightedAvg.F1 = floats.Dot(f1, weights) / float64(r.Total)
	}
	return r, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Round2 rounds to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

const (
	headerFormat = "%-15s |%-10s |%-10s |%-10s |%-10s|\n"
	rowFormat    = "%-15s |%10.2f |%10.2f |%10.2f |%10d|\n"
)

// WriteText writes the report as a pipe-separated table: one row per class,
// then accuracy, macro avg and weighted avg.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, headerFormat, "classes", "precision", "recall", "f1-score", "support")
	for _, row := range r.Classes {
		writeRow(&b, row)
	}
	acc := Round2(r.Accuracy)
	fmt.Fprintf(&b, "%-15s |%10.2f |%10.2f |%10.2f |%10d|\n", "accuracy", acc, acc, acc, r.Total)
	writeRow(&b, r.MacroAvg)
	writeRow(&b, r.WeightedAvg)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, row Row) {
	fmt.Fprintf(b, rowFormat, row.Class, Round2(row.Precision), Round2(row.Recall), Round2(row.F1), row.Support)
}

// String renders the report table.
func (r *Report) String() string {
	var b strings.Builder
	_ = r.WriteText(&b)
	return b.String()
}

// Flatten concatenates label sequences, dropping positions whose expected
// label is skip.
func Flatten(expected, predicted [][]string, skip string) ([]string, []string) {
	var e, p []string
	for i := range expected {
		for j, want := range expected[i] {
			if want == skip || j >= len(predicted[i]) {
				continue
			}
			e = append(e, want)
			p = append(p, predicted[i][j])
		}
	}
	return e, p
}
