package export

import (
	"math"
	"strconv"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// grid is the rows and columns an export visits, in order.
type grid struct {
	rng  address.Range
	rows []int
	cols []int
}

// newGrid resolves the visited area of ws. An empty sheet with no override
// yields an empty grid.
func newGrid(ws *model.Worksheet, override *address.Range, firstRow int, skipHidden bool) grid {
	var g grid
	rng, ok := ws.Ref()
	if override != nil {
		rng, ok = override.Normalize(), true
	}
	if !ok {
		return g
	}
	rng.Start.Row = max(rng.Start.Row, firstRow)
	if rng.Start.Row > rng.End.Row {
		return g
	}
	g.rng = rng

	for r := rng.Start.Row; r <= rng.End.Row; r++ {
		if skipHidden && ws.RowHidden(r) {
			continue
		}
		g.rows = append(g.rows, r)
	}
	for c := rng.Start.Col; c <= rng.End.Col; c++ {
		if skipHidden && ws.ColHidden(c) {
			continue
		}
		g.cols = append(g.cols, c)
	}
	return g
}

// Walk calls fn for every address of the sheet range in row-major order,
// passing nil for empty addresses. It stops at the first error fn returns.
func Walk(ws *model.Worksheet, opts WalkOptions, fn func(addr address.Cell, c *model.Cell) error) error {
	if ws == nil {
		return nilSheet("walk")
	}
	g := newGrid(ws, opts.Range, 0, opts.SkipHidden)
	for _, r := range g.rows {
		for _, col := range g.cols {
			addr := address.Cell{Row: r, Col: col}
			if err := fn(addr, ws.Cell(addr)); err != nil {
				return err
			}
		}
	}
	return nil
}

func nilSheet(op string) error {
	return sheeterr.New(sheeterr.InvalidOption, op, "nil worksheet")
}

// hasValue reports whether c holds data that makes its row non-blank.
func hasValue(c *model.Cell) bool {
	if c == nil {
		return false
	}
	switch c.Value.(type) {
	case nil, model.Stub:
		return c.Formula != ""
	}
	return true
}

// rawNumber renders a number the shortest way that reads back exactly,
// switching to exponent form for very large and very small magnitudes.
func rawNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
