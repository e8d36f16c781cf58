// Package journal reads and writes line-delimited, kind-tagged JSON record
// streams. Each line holds one record of the form {"kind":..,"data":..}.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed indicates a line could not be parsed as a record.
var ErrMalformed = errors.New("malformed journal record")

// maxLineSize bounds a single record line.
const maxLineSize = 4 << 20

// Record is one tagged line.
type Record struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the record payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s record: %w", r.Kind, err)
	}
	return nil
}

// Writer appends records to an underlying stream.
type Writer struct {
	w     *bufio.Writer
	count int
}

// NewWriter wraps w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes v as a record tagged kind.
func (w *Writer) Write(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	line, err := json.Marshal(Record{Kind: kind, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

// Flush writes any buffered records to the underlying stream.
func (w *Writer) Flush() error { return w.w.Flush() }

// Reader iterates records from a stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF at the end of the stream. Blank
// lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		raw := r.sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Record{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, r.line, err)
		}
		if rec.Kind == "" {
			return Record{}, fmt.Errorf("%w: line %d: missing kind", ErrMalformed, r.line)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return Record{}, io.EOF
}

// Line returns the line number of the record last returned by Next.
func (r *Reader) Line() int { return r.line }
