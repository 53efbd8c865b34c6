package address

import "iter"

// Range is an inclusive rectangle of cells. Ranges built with NewRange,
// Normalize or DecodeRange always satisfy Start <= End on both axes.
type Range struct {
	Start Cell
	End   Cell
}

// NewRange returns the normalized range spanning a and b.
func NewRange(a, b Cell) Range {
	return Range{Start: a, End: b}.Normalize()
}

// Single returns the range holding only c.
func Single(c Cell) Range {
	return Range{Start: c, End: c}
}

// Normalize reorders the corners so Start <= End per axis.
func (r Range) Normalize() Range {
	if r.Start.Row > r.End.Row {
		r.Start.Row, r.End.Row = r.End.Row, r.Start.Row
	}
	if r.Start.Col > r.End.Col {
		r.Start.Col, r.End.Col = r.End.Col, r.Start.Col
	}
	return r
}

// String returns the compact A1 form: "A1:B2", or "A1" for a single cell.
func (r Range) String() string {
	return EncodeRangeCompact(r)
}

// Contains reports whether c lies inside r.
func (r Range) Contains(c Cell) bool {
	return c.Row >= r.Start.Row && c.Row <= r.End.Row &&
		c.Col >= r.Start.Col && c.Col <= r.End.Col
}

// ContainsRange reports whether o lies entirely inside r.
func (r Range) ContainsRange(o Range) bool {
	return r.Contains(o.Start) && r.Contains(o.End)
}

// Overlaps reports whether r and o share at least one cell.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Row <= o.End.Row && o.Start.Row <= r.End.Row &&
		r.Start.Col <= o.End.Col && o.Start.Col <= r.End.Col
}

// Rows returns the number of rows spanned.
func (r Range) Rows() int {
	return r.End.Row - r.Start.Row + 1
}

// Cols returns the number of columns spanned.
func (r Range) Cols() int {
	return r.End.Col - r.Start.Col + 1
}

// Extend returns the minimal range covering r and c.
func (r Range) Extend(c Cell) Range {
	r.Start.Row = min(r.Start.Row, c.Row)
	r.Start.Col = min(r.Start.Col, c.Col)
	r.End.Row = max(r.End.Row, c.Row)
	r.End.Col = max(r.End.Col, c.Col)
	return r
}

// Union returns the minimal range covering both r and o.
func (r Range) Union(o Range) Range {
	return r.Extend(o.Start).Extend(o.End)
}

// Intersect returns the overlap of r and o. ok is false when they are disjoint.
func (r Range) Intersect(o Range) (Range, bool) {
	if !r.Overlaps(o) {
		return Range{}, false
	}
	return Range{
		Start: Cell{Row: max(r.Start.Row, o.Start.Row), Col: max(r.Start.Col, o.Start.Col)},
		End:   Cell{Row: min(r.End.Row, o.End.Row), Col: min(r.End.Col, o.End.Col)},
	}, true
}

// Offset returns r shifted by dr rows and dc columns.
func (r Range) Offset(dr, dc int) Range {
	return Range{Start: r.Start.Offset(dr, dc), End: r.End.Offset(dr, dc)}
}

// Cells yields every cell of r in row-major order.
func (r Range) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(Cell{Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

// Bounds returns the minimal range covering every cell yielded by seq.
// ok is false when seq is empty.
func Bounds(seq iter.Seq[Cell]) (r Range, ok bool) {
	for c := range seq {
		if !ok {
			r, ok = Single(c), true
			continue
		}
		r = r.Extend(c)
	}
	return r, ok
}
