// Package builder creates and extends worksheets from plain Go data: arrays
// of rows (AOA) and lists of records.
//
// Basic usage:
//
//	ws, err := builder.AOAToSheet([][]any{
//	    {"Name", "Qty"},
//	    {"Apples", 3},
//	}, builder.Options{})
//
// Records keep their key order when given as *model.Record or as structs;
// plain maps are written in sorted key order because Go maps are unordered.
package builder

import (
	"log/slog"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// Options controls how values become cells.
type Options struct {
	// Dense selects the row slice layout for new sheets.
	Dense bool
	// SheetStubs writes nil values as Stub cells instead of skipping them.
	SheetStubs bool
	// NullError writes nil values as #NULL! errors. It wins over SheetStubs.
	NullError bool
	// CellDates stores time.Time values as Date cells. Otherwise they become
	// serial numbers carrying a date format.
	CellDates bool
	// DateNF is the format code given to date serials. Empty means builtin 14.
	DateNF string
	// Date1904 selects the 1904 date system for serials.
	Date1904 bool
	// Strict fails on values that have no cell representation instead of
	// converting them to text.
	Strict bool
	// Origin is where the first value is written. The zero Origin is A1.
	Origin Origin
	// Logger receives coercion warnings. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

type originKind int

const (
	originDefault originKind = iota
	originCell
	originRef
	originRow
	originAppend
)

// Origin selects the top-left cell of a write.
type Origin struct {
	kind originKind
	cell address.Cell
	ref  string
}

// OriginCell starts writing at c.
func OriginCell(c address.Cell) Origin {
	return Origin{kind: originCell, cell: c}
}

// OriginRef starts writing at an A1 reference such as "B3". A malformed
// reference is reported when the write happens.
func OriginRef(ref string) Origin {
	return Origin{kind: originRef, ref: ref}
}

// OriginRow starts writing at column A of row (zero-indexed).
func OriginRow(row int) Origin {
	return Origin{kind: originRow, cell: address.Cell{Row: row}}
}

// OriginAppend starts writing at column A of the first row below the
// sheet's current range.
func OriginAppend() Origin {
	return Origin{kind: originAppend}
}

// resolve returns the top-left cell for a write into a sheet whose current
// range is ref (ok false for an empty sheet).
func (o Origin) resolve(ref address.Range, ok bool) (address.Cell, error) {
	switch o.kind {
	case originCell, originRow:
		if o.cell.Row < 0 || o.cell.Col < 0 {
			return address.Cell{}, sheeterr.New(sheeterr.InvalidAddress, "origin", "negative origin %+v", o.cell)
		}
		return o.cell, nil
	case originRef:
		return address.DecodeCell(o.ref)
	case originAppend:
		if !ok {
			return address.Cell{}, nil
		}
		return address.Cell{Row: ref.End.Row + 1}, nil
	default:
		return address.Cell{}, nil
	}
}

// Resolve returns the top-left cell a write into ws would start at.
func (o Origin) Resolve(ws *model.Worksheet) (address.Cell, error) {
	ref, ok := ws.Ref()
	return o.resolve(ref, ok)
}
