// Package export converts worksheets to plain Go data and text formats: rows
// of values, ordered records, CSV and tab separated text, HTML tables and
// formula listings.
//
// Every function walks the sheet row-major over its range, so output is
// deterministic for both the sparse and dense layouts:
//
//	recs, err := export.SheetToRecords(ws, export.DefaultJSONOptions())
//	csv, err := export.SheetToCSV(ws, export.CSVOptions{})
//
// The row encoders (NewCSVEncoder, NewHTMLEncoder, NewJSONEncoder) produce
// the same output one row at a time and back the stream package.
package export

import (
	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

// BlankRows controls whether rows without values are emitted.
type BlankRows int

const (
	// BlankDefault uses the function's own default.
	BlankDefault BlankRows = iota
	// BlankInclude emits blank rows.
	BlankInclude
	// BlankSkip drops blank rows.
	BlankSkip
)

func (b BlankRows) include(def bool) bool {
	switch b {
	case BlankInclude:
		return true
	case BlankSkip:
		return false
	default:
		return def
	}
}

// JSONOptions controls SheetToRows and SheetToRecords.
type JSONOptions struct {
	// Header lists record keys by column. Columns past the end of the list
	// are dropped.
	Header []string
	// HeaderLetters keys records by column letter.
	HeaderLetters bool
	// HeaderIndex keys records by zero-based column offset within the range.
	HeaderIndex bool

	// Range overrides the sheet range.
	Range *address.Range
	// FirstRow skips rows above this zero-based row.
	FirstRow int

	BlankRows BlankRows
	// DefVal is written for empty cells when UseDefVal is set.
	DefVal    any
	UseDefVal bool

	// Formatted returns display text instead of typed values.
	Formatted bool
	// RawNumbers keeps numbers typed when Formatted is set.
	RawNumbers bool
	// DateNF replaces the format of date cells when formatting.
	DateNF     string
	SkipHidden bool
	Date1904   bool
	// Formatter renders text. Nil means numfmt.Default.
	Formatter numfmt.Formatter
}

// DefaultJSONOptions returns options producing typed values. It is the
// zero value.
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{}
}

func (o JSONOptions) validate(op string) error {
	modes := 0
	if o.Header != nil {
		modes++
	}
	if o.HeaderLetters {
		modes++
	}
	if o.HeaderIndex {
		modes++
	}
	if modes > 1 {
		return sheeterr.New(sheeterr.InvalidOption, op, "header, header letters and header index are mutually exclusive")
	}
	if o.FirstRow < 0 {
		return sheeterr.New(sheeterr.InvalidOption, op, "negative first row %d", o.FirstRow)
	}
	return nil
}

func (o JSONOptions) text() textOptions {
	return textOptions{formatter: o.Formatter, dateNF: o.DateNF, date1904: o.Date1904}
}

// CSVOptions controls SheetToCSV and SheetToText.
type CSVOptions struct {
	// FS separates fields. Empty means ",".
	FS string
	// RS separates records. Empty means "\n".
	RS string
	// Strip removes trailing field separators from each record.
	Strip bool
	// BlankRows defaults to including blank rows.
	BlankRows   BlankRows
	SkipHidden  bool
	ForceQuotes bool
	// RawNumbers writes numbers unformatted.
	RawNumbers bool
	DateNF     string
	Date1904   bool
	Formatter  numfmt.Formatter
	// Range overrides the sheet range.
	Range *address.Range
}

func (o CSVOptions) withDefaults(fs, rs string) CSVOptions {
	if o.FS == "" {
		o.FS = fs
	}
	if o.RS == "" {
		o.RS = rs
	}
	return o
}

func (o CSVOptions) text() textOptions {
	return textOptions{formatter: o.Formatter, dateNF: o.DateNF, date1904: o.Date1904}
}

// HTMLOptions controls SheetToHTML.
type HTMLOptions struct {
	// ID is the table id. Cell ids are "<ID>-A1", with "sjs" as the prefix
	// when ID is empty.
	ID string
	// Editable marks every cell contenteditable.
	Editable bool
	// Header and Footer replace the document wrapper around the table.
	Header *string
	Footer *string
	// Range overrides the sheet range.
	Range     *address.Range
	DateNF    string
	Date1904  bool
	Formatter numfmt.Formatter
}

// WalkOptions controls Walk.
type WalkOptions struct {
	// Range overrides the sheet range.
	Range *address.Range
	// SkipHidden leaves out hidden rows and columns.
	SkipHidden bool
}

// textOptions is the formatting part shared by every exporter.
type textOptions struct {
	formatter numfmt.Formatter
	dateNF    string
	date1904  bool
}

// cellText returns the display text of c: its cached text, or the formatter's
// rendering. DateNF replaces the format of date cells.
func (t textOptions) cellText(c *model.Cell) string {
	if c == nil {
		return ""
	}
	f := t.formatter
	if f == nil {
		f = numfmt.Default
	}
	opts := numfmt.Options{DateNF: t.dateNF, Date1904: t.date1904}
	if t.dateNF != "" && isDateCell(c) {
		cp := *c
		cp.NumFmt = model.NumberFormat{Code: t.dateNF}
		return f.Format(&cp, opts)
	}
	if c.Text != "" {
		return c.Text
	}
	return f.Format(c, opts)
}

func isDateCell(c *model.Cell) bool {
	switch c.Value.(type) {
	case model.Date:
		return true
	case model.Number:
		return numfmt.IsDateFormat(numfmt.Code(c.NumFmt))
	}
	return false
}

func invalidArrays(op string) error {
	return sheeterr.New(sheeterr.InvalidOption, op, "row arrays cannot be combined with a header mode")
}
