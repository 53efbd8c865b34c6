// Package address converts between zero-indexed cell coordinates and A1-style
// references, and provides the range algebra used by worksheets.
//
// Columns use bijective base-26 lettering (A..Z, AA..ZZ, AAA..), rows are
// rendered 1-based. Letters are accepted in either case on input and always
// produced upper case.
package address

import (
	"math"
	"strconv"
	"strings"

	"github.com/tsawler/cellar/sheeterr"
)

// Excel's grid limits. Decoding does not enforce them; writers that target
// OOXML check against them.
const (
	MaxCols = 16384
	MaxRows = 1048576
)

// Cell is a zero-indexed cell coordinate.
type Cell struct {
	Row int
	Col int
}

// String returns the A1 reference of the cell.
func (c Cell) String() string {
	return EncodeCell(c)
}

// Offset returns the cell moved by dr rows and dc columns.
func (c Cell) Offset(dr, dc int) Cell {
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

// Less orders cells row-major.
func (c Cell) Less(o Cell) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// EncodeCol converts a zero-indexed column number to letters.
// 0=A, 25=Z, 26=AA, 701=ZZ. Negative input yields "".
func EncodeCol(col int) string {
	if col < 0 {
		return ""
	}

	// 14 letters cover every non-negative int64.
	var buf [14]byte
	i := len(buf)
	n := uint64(col) + 1 // Work in 1-indexed space
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// DecodeCol converts column letters to a zero-indexed column number.
func DecodeCol(s string) (int, error) {
	if s == "" {
		return 0, sheeterr.New(sheeterr.InvalidAddress, "decode_col", "empty column")
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d int
		switch {
		case c >= 'A' && c <= 'Z':
			d = int(c-'A') + 1
		case c >= 'a' && c <= 'z':
			d = int(c-'a') + 1
		default:
			return 0, sheeterr.New(sheeterr.InvalidAddress, "decode_col", "invalid column %q", s)
		}
		// n*26 + d - 1 must fit in an int.
		if n > (math.MaxInt-d+1)/26 {
			return 0, sheeterr.New(sheeterr.InvalidAddress, "decode_col", "column %q out of range", s)
		}
		n = n*26 + d
	}
	return n - 1, nil
}

// EncodeRow renders a zero-indexed row as its 1-based decimal label.
func EncodeRow(row int) string {
	return strconv.Itoa(row + 1)
}

// DecodeRow parses a 1-based decimal row label into a zero-indexed row.
func DecodeRow(s string) (int, error) {
	if s == "" {
		return 0, sheeterr.New(sheeterr.InvalidAddress, "decode_row", "empty row")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, sheeterr.New(sheeterr.InvalidAddress, "decode_row", "invalid row %q", s)
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &sheeterr.Error{Kind: sheeterr.InvalidAddress, Op: "decode_row", Msg: strconv.Quote(s), Err: err}
	}
	if n < 1 {
		return 0, sheeterr.New(sheeterr.InvalidAddress, "decode_row", "row %q must be positive", s)
	}
	return n - 1, nil
}

// EncodeCell returns the A1 reference for c.
func EncodeCell(c Cell) string {
	return EncodeCol(c.Col) + EncodeRow(c.Row)
}

// DecodeCell parses an A1 reference. The column letters must be followed
// immediately by the row digits with nothing after them.
func DecodeCell(s string) (Cell, error) {
	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == 0 {
		return Cell{}, sheeterr.New(sheeterr.InvalidAddress, "decode_cell", "no column letters in %q", s)
	}
	if i == len(s) {
		return Cell{}, sheeterr.New(sheeterr.InvalidAddress, "decode_cell", "no row number in %q", s)
	}

	col, err := DecodeCol(s[:i])
	if err != nil {
		return Cell{}, err
	}
	row, err := DecodeRow(s[i:])
	if err != nil {
		return Cell{}, sheeterr.New(sheeterr.InvalidAddress, "decode_cell", "invalid row in %q", s)
	}
	return Cell{Row: row, Col: col}, nil
}

// MustCell is like DecodeCell but panics on error. It is meant for literals.
func MustCell(s string) Cell {
	c, err := DecodeCell(s)
	if err != nil {
		panic(err)
	}
	return c
}

// EncodeRange returns "start:end" for r. A single-cell range keeps both halves.
func EncodeRange(r Range) string {
	return EncodeCell(r.Start) + ":" + EncodeCell(r.End)
}

// EncodeRangeCompact is EncodeRange but emits a bare cell for a single-cell
// range.
func EncodeRangeCompact(r Range) string {
	if r.Start == r.End {
		return EncodeCell(r.Start)
	}
	return EncodeRange(r)
}

// DecodeRange parses "A1:B2" or a bare cell reference, which decodes as a
// single-cell range. The result is normalized.
func DecodeRange(s string) (Range, error) {
	start, end, found := strings.Cut(s, ":")
	a, err := DecodeCell(start)
	if err != nil {
		return Range{}, sheeterr.New(sheeterr.InvalidAddress, "decode_range", "invalid start in %q", s)
	}
	if !found {
		return Range{Start: a, End: a}, nil
	}
	b, err := DecodeCell(end)
	if err != nil {
		return Range{}, sheeterr.New(sheeterr.InvalidAddress, "decode_range", "invalid end in %q", s)
	}
	return NewRange(a, b), nil
}

// MustRange is like DecodeRange but panics on error.
func MustRange(s string) Range {
	r, err := DecodeRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
