// Package textfmt reads and writes the line oriented interchange formats:
// SYLK and DIF in both directions, and EtherCalc (SocialCalc save) and RTF
// tables for output only.
//
// Like the delimited formats, each of these holds a single sheet. Decoded
// workbooks name it "Sheet1".
//
// SYLK formulas use R1C1 references on the wire and are converted to and
// from A1 form relative to the cell that holds them.
package textfmt

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/internal/codepage"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const sheetName = "Sheet1"

// decodeText returns data as a string. Input that is not UTF-8 is read in
// the requested code page, or Windows-1252 when none is given.
func decodeText(op string, data []byte, cp int) (string, error) {
	if cp == 0 {
		if utf8.Valid(data) {
			return string(data), nil
		}
		cp = codepage.Default
	}
	if !codepage.Supported(cp) {
		return "", sheeterr.New(sheeterr.InvalidOption, op, "unsupported code page %d", cp)
	}
	s, err := codepage.Decode(cp, data)
	if err != nil {
		return "", sheeterr.Wrap(sheeterr.TruncatedInput, op, err)
	}
	return s, nil
}

// newBook wraps ws in a one sheet workbook of the given type. A nil ws
// records the sheet name only, as the outline stages need.
func newBook(bookType string, ws *model.Worksheet) (*model.Workbook, error) {
	wb := model.NewWorkbook()
	wb.BookType = bookType
	if ws == nil {
		wb.SheetNames = append(wb.SheetNames, sheetName)
		return wb, nil
	}
	if _, err := wb.AppendSheet(ws, sheetName); err != nil {
		return nil, err
	}
	return wb, nil
}

// rowLimit is the number of rows to read, zero for all.
func rowLimit(req codec.DecodeRequest) int {
	if req.Stage == codec.StageRows {
		return req.Options.SheetRows
	}
	return 0
}

// encodeText converts the output to the requested code page.
func encodeText(op, s string, cp int) ([]byte, error) {
	if cp == 0 {
		return []byte(s), nil
	}
	if !codepage.Supported(cp) {
		return nil, sheeterr.New(sheeterr.InvalidOption, op, "unsupported code page %d", cp)
	}
	b, err := codepage.Encode(cp, s)
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.UnsupportedValue, op, err)
	}
	return b, nil
}

// Options controls the sheet writers.
type Options struct {
	// DateNF formats Date values that carry no number format.
	DateNF string
	// Date1904 selects the 1904 date system for serials.
	Date1904 bool
}

// numText renders a number the shortest way that reads back exactly.
func numText(f float64) string {
	if a := math.Abs(f); a != 0 && (a >= 1e21 || a < 1e-6) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
