// Package stream exposes the export renderers as pull-based sequences so a
// large sheet can be written out one row at a time.
//
// The API follows bufio.Scanner:
//
//	lines := stream.CSV(ws, export.CSVOptions{})
//	for lines.Next() {
//	    fmt.Println(lines.Text())
//	}
//	if err := lines.Err(); err != nil {
//	    return err
//	}
//
// Output matches the batch functions in package export exactly. A stream
// cannot be rewound; build a new one to start over. Stopping early has no
// side effects.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
)

type lineSource interface {
	Next() (string, bool)
	Separator() string
}

// Lines yields rendered records of a text format.
type Lines struct {
	src lineSource
	cur string
	err error
	n   int
}

// CSV streams export.SheetToCSV output record by record.
func CSV(ws *model.Worksheet, opts export.CSVOptions) *Lines {
	enc, err := export.NewCSVEncoder(ws, opts)
	if err != nil {
		return &Lines{err: err}
	}
	return &Lines{src: enc}
}

// Text streams export.SheetToText output record by record.
func Text(ws *model.Worksheet, opts export.CSVOptions) *Lines {
	enc, err := export.NewTextEncoder(ws, opts)
	if err != nil {
		return &Lines{err: err}
	}
	return &Lines{src: enc}
}

// HTML streams export.SheetToHTML output: the document header and table
// tag, each row, then the closing markup.
func HTML(ws *model.Worksheet, opts export.HTMLOptions) *Lines {
	enc, err := export.NewHTMLEncoder(ws, opts)
	if err != nil {
		return &Lines{err: err}
	}
	return &Lines{src: enc}
}

// Next advances to the next record.
func (l *Lines) Next() bool {
	if l.err != nil || l.src == nil {
		return false
	}
	s, ok := l.src.Next()
	if !ok {
		l.src = nil
		return false
	}
	l.cur = s
	l.n++
	return true
}

// Text returns the current record without its separator.
func (l *Lines) Text() string {
	return l.cur
}

// Separator returns the string the batch output places between records.
func (l *Lines) Separator() string {
	if l.src == nil {
		return ""
	}
	return l.src.Separator()
}

// Err returns the error that stopped the stream, if any.
func (l *Lines) Err() error {
	return l.err
}

// All returns the remaining records as an iterator.
func (l *Lines) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for l.Next() {
			if !yield(l.Text()) {
				return
			}
		}
	}
}

// WriteTo writes the remaining records joined by the separator.
func (l *Lines) WriteTo(w io.Writer) (int64, error) {
	if l.err != nil {
		return 0, l.err
	}
	sep := l.Separator()
	var total int64
	for l.Next() {
		s := l.cur
		if l.n > 1 {
			s = sep + s
		}
		n, err := io.WriteString(w, s)
		total += int64(n)
		if err != nil {
			l.err = err
			return total, err
		}
	}
	return total, l.err
}

// Rows yields records or row slices from export.JSONEncoder.
type Rows struct {
	enc *export.JSONEncoder
	cur any
	err error
}

// JSON streams export.SheetToRecords output.
func JSON(ws *model.Worksheet, opts export.JSONOptions) *Rows {
	enc, err := export.NewJSONEncoder(ws, opts, false)
	return &Rows{enc: enc, err: err}
}

// Arrays streams export.SheetToRows output.
func Arrays(ws *model.Worksheet, opts export.JSONOptions) *Rows {
	enc, err := export.NewJSONEncoder(ws, opts, true)
	return &Rows{enc: enc, err: err}
}

// Next advances to the next row.
func (r *Rows) Next() bool {
	if r.err != nil || r.enc == nil {
		return false
	}
	v, ok := r.enc.Next()
	if !ok {
		r.enc = nil
		return false
	}
	r.cur = v
	return true
}

// Record returns the current row of a JSON stream, or nil for an Arrays
// stream.
func (r *Rows) Record() *model.Record {
	rec, _ := r.cur.(*model.Record)
	return rec
}

// Row returns the current row of an Arrays stream, or nil for a JSON
// stream.
func (r *Rows) Row() []any {
	row, _ := r.cur.([]any)
	return row
}

// Err returns the error that stopped the stream, if any.
func (r *Rows) Err() error {
	return r.err
}

// All returns the remaining rows as an iterator. Values are *model.Record
// or []any depending on how the stream was built.
func (r *Rows) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for r.Next() {
			if !yield(r.cur) {
				return
			}
		}
	}
}

// WriteTo writes the remaining rows as newline-delimited JSON.
func (r *Rows) WriteTo(w io.Writer) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	cw := &countingWriter{w: w}
	enc := json.NewEncoder(cw)
	enc.SetEscapeHTML(false)
	for r.Next() {
		if err := enc.Encode(r.cur); err != nil {
			r.err = fmt.Errorf("encoding row: %w", err)
			return cw.n, r.err
		}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
