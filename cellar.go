// Package cellar reads, builds and writes spreadsheet workbooks.
//
// Basic usage:
//
//	wb, warnings, err := cellar.Open("report.xlsx").Workbook()
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", cellar.FormatWarnings(warnings))
//	}
//
// With options:
//
//	csv, err := cellar.Open("report.xlsx").
//	    Sheets("Summary").
//	    SheetRows(100).
//	    CSV("Summary")
//
// Read, Write and the SheetTo helpers cover the non-fluent use. The model,
// builder, export and codec packages are available for lower-level work.
package cellar

import (
	"fmt"
	"strings"
)

// Open returns a Reader for the named file. The file is read by the first
// terminal operation.
//
// Example:
//
//	names, err := cellar.Open("book.ods").SheetNames()
func Open(filename string) *Reader {
	return &Reader{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromBytes returns a Reader over an in-memory workbook.
//
// Example:
//
//	wb, _, err := cellar.FromBytes(data).CellDates().Workbook()
func FromBytes(data []byte) *Reader {
	return &Reader{
		data:       data,
		dataLoaded: true,
		options:    defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	names := cellar.Must(cellar.Open("book.xlsx").SheetNames())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustBook wraps a call to Reader.Workbook and panics if the error is
// non-nil. Warnings are discarded.
//
// Example:
//
//	wb := cellar.MustBook(cellar.Open("book.xlsx").Workbook())
func MustBook[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// Warning is a non-fatal problem reported while reading, such as a value
// coerced to text or a feature that was skipped.
type Warning struct {
	Message string
	// Attrs holds the structured context of the warning ("op", "cell",
	// "sheet" and so on).
	Attrs map[string]string
}

func (w Warning) String() string {
	if len(w.Attrs) == 0 {
		return w.Message
	}
	var sb strings.Builder
	sb.WriteString(w.Message)
	for _, k := range sortedKeys(w.Attrs) {
		fmt.Fprintf(&sb, " %s=%s", k, w.Attrs[k])
	}
	return sb.String()
}

// FormatWarnings joins warnings into one line each.
func FormatWarnings(warnings []Warning) string {
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}
