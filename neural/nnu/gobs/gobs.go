// Package gobs handles saving and loading model artifacts using the gob encoding.
//
// Weights are a single gob stream of named matrices. Metadata records are a
// sequence of fields, each written as
//
//	uint32 name length | name | uint32 payload length | gob payload
//
// and must be read back in the order they were written.
package gobs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golangast/marabou/neural/nn"
)

var (
	// ErrFieldOrder is returned when a metadata field is not the one expected at its position.
	ErrFieldOrder = errors.New("metadata field out of order")
	// ErrMissingParam is returned when a weight blob lacks a parameter the model needs.
	ErrMissingParam = errors.New("missing parameter")
)

// maxFieldSize bounds a single field so a corrupt prefix cannot trigger a huge allocation.
const maxFieldSize = 1 << 30

// Matrix is the on-disk form of one parameter.
type Matrix struct {
	Name       string
	Rows, Cols int
	Data       []float64
}

// WriteWeights encodes params to w.
func WriteWeights(w io.Writer, params []*nn.Param) error {
	blob := make([]Matrix, len(params))
	for i, p := range params {
		r, c := p.Dims()
		data := make([]float64, 0, r*c)
		for row := 0; row < r; row++ {
			data = append(data, p.W.RawRowView(row)...)
		}
		blob[i] = Matrix{Name: p.Name, Rows: r, Cols: c, Data: data}
	}
	if err := gob.NewEncoder(w).Encode(blob); err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	return nil
}

// ReadWeights decodes a weight blob into params, matching by name and shape.
func ReadWeights(r io.Reader, params []*nn.Param) error {
	var blob []Matrix
	if err := gob.NewDecoder(r).Decode(&blob); err != nil {
		return fmt.Errorf("decode weights: %w", err)
	}
	byName := make(map[string]Matrix, len(blob))
	for _, m := range blob {
		byName[m.Name] = m
	}
	for _, p := range params {
		m, ok := byName[p.Name]
		if !ok {
			return fmt.Errorf("%s: %w", p.Name, ErrMissingParam)
		}
		r, c := p.Dims()
		if m.Rows != r || m.Cols != c || len(m.Data) != r*c {
			return fmt.Errorf("%s: stored %dx%d, model %dx%d: %w", p.Name, m.Rows, m.Cols, r, c, nn.ErrShapeMismatch)
		}
		for row := 0; row < r; row++ {
			p.W.SetRow(row, m.Data[row*c:(row+1)*c])
		}
	}
	return nil
}

// SaveWeights writes params to path.
func SaveWeights(path string, params []*nn.Param) error {
	return writeFile(path, func(w io.Writer) error { return WriteWeights(w, params) })
}

// LoadWeights reads params from path.
func LoadWeights(path string, params []*nn.Param) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadWeights(bufio.NewReader(f), params)
}

// FieldWriter writes named, length-prefixed fields.
type FieldWriter struct {
	w   io.Writer
	err error
}

// NewFieldWriter wraps w.
func NewFieldWriter(w io.Writer) *FieldWriter {
	return &FieldWriter{w: w}
}

// Write appends one field. After the first failure every call is a no-op and
// Err reports that failure.
func (fw *FieldWriter) Write(name string, v any) *FieldWriter {
	if fw.err != nil {
		return fw
	}
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		fw.err = fmt.Errorf("encode field %s: %w", name, err)
		return fw
	}
	if err := writeChunk(fw.w, []byte(name)); err != nil {
		fw.err = fmt.Errorf("write field %s: %w", name, err)
		return fw
	}
	if err := writeChunk(fw.w, payload.Bytes()); err != nil {
		fw.err = fmt.Errorf("write field %s: %w", name, err)
	}
	return fw
}

// Err returns the first error encountered.
func (fw *FieldWriter) Err() error {
	return fw.err
}

// FieldReader reads fields written by FieldWriter, in order.
type FieldReader struct {
	r   io.Reader
	err error
}

// NewFieldReader wraps r.
func NewFieldReader(r io.Reader) *FieldReader {
	return &FieldReader{r: r}
}

// Read decodes the next field into v, failing with ErrFieldOrder when the next
// field is not called name.
func (fr *FieldReader) Read(name string, v any) *FieldReader {
	if fr.err != nil {
		return fr
	}
	got, err := readChunk(fr.r)
	if err != nil {
		fr.err = fmt.Errorf("read field %s: %w", name, err)
		return fr
	}
	if string(got) != name {
		fr.err = fmt.Errorf("expected %q, found %q: %w", name, got, ErrFieldOrder)
		return fr
	}
	payload, err := readChunk(fr.r)
	if err != nil {
		fr.err = fmt.Errorf("read field %s: %w", name, err)
		return fr
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		fr.err = fmt.Errorf("decode field %s: %w", name, err)
	}
	return fr
}

// Err returns the first error encountered.
func (fr *FieldReader) Err() error {
	return fr.err
}

func writeChunk(w io.Writer, b []byte) error {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readChunk(r io.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(n[:])
	if size > maxFieldSize {
		return nil, fmt.Errorf("field of %d bytes exceeds limit", size)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteFile creates path and hands a buffered writer to fn.
func WriteFile(path string, fn func(w io.Writer) error) error {
	return writeFile(path, fn)
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile opens path and hands a buffered reader to fn.
func ReadFile(path string, fn func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(bufio.NewReader(f))
}
