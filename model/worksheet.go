package model

import (
	"iter"
	"maps"
	"slices"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/sheeterr"
)

// SheetKind distinguishes worksheets from other sheet types.
type SheetKind int

const (
	KindWorksheet SheetKind = iota
	KindChart
	KindMacro
	KindDialog
)

func (k SheetKind) String() string {
	switch k {
	case KindWorksheet:
		return "sheet"
	case KindChart:
		return "chart"
	case KindMacro:
		return "macro"
	case KindDialog:
		return "dialog"
	default:
		return "unknown"
	}
}

// ColInfo describes one column. Widths are in Excel character units (Width,
// WCH) or pixels (WPX); MDW is the maximum digit width used for conversion.
type ColInfo struct {
	Hidden bool
	Width  float64
	WPX    float64
	WCH    float64
	MDW    float64
	Level  int
}

// RowInfo describes one row. HPX is pixels, HPT points.
type RowInfo struct {
	Hidden bool
	HPX    float64
	HPT    float64
	Level  int
}

// ProtectInfo holds sheet protection settings. A true flag permits the
// action while the sheet is protected.
type ProtectInfo struct {
	Password            string
	SelectLockedCells   bool
	SelectUnlockedCells bool
	FormatCells         bool
	FormatColumns       bool
	FormatRows          bool
	InsertColumns       bool
	InsertRows          bool
	InsertHyperlinks    bool
	DeleteColumns       bool
	DeleteRows          bool
	Sort                bool
	AutoFilter          bool
	PivotTables         bool
	Objects             bool
	Scenarios           bool
}

// AutoFilter is the filtered range of a sheet.
type AutoFilter struct {
	Ref address.Range
}

// Margins are page margins in inches.
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
	Header float64
	Footer float64
}

// DefaultMargins returns Excel's "normal" margin preset.
func DefaultMargins() Margins {
	return Margins{Left: 0.7, Right: 0.7, Top: 0.75, Bottom: 0.75, Header: 0.3, Footer: 0.3}
}

// Worksheet is a grid of cells plus the sheet's structural metadata.
//
// The bounding range returned by Ref always covers every stored cell. It is
// the minimal covering box unless it has been set explicitly with SetRef or
// widened with ExtendRef.
type Worksheet struct {
	Cols       []ColInfo // indexed by column
	Rows       []RowInfo // indexed by row
	Merges     []address.Range
	Protect    *ProtectInfo
	AutoFilter *AutoFilter
	Margins    *Margins
	Kind       SheetKind

	ref      address.Range
	hasRef   bool
	refFixed bool

	dense  bool
	cells  map[address.Cell]*Cell
	matrix [][]*Cell
	count  int
}

// NewWorksheet returns an empty sparse worksheet.
func NewWorksheet() *Worksheet {
	return &Worksheet{cells: make(map[address.Cell]*Cell)}
}

// NewDenseWorksheet returns an empty worksheet backed by row slices.
func NewDenseWorksheet() *Worksheet {
	return &Worksheet{dense: true}
}

// Dense reports whether the sheet uses the row slice layout.
func (ws *Worksheet) Dense() bool {
	return ws.dense
}

// Len returns the number of stored cells.
func (ws *Worksheet) Len() int {
	if ws.dense {
		return ws.count
	}
	return len(ws.cells)
}

// Ref returns the bounding range. ok is false for a sheet that has never
// held a cell and has no explicit range.
func (ws *Worksheet) Ref() (r address.Range, ok bool) {
	return ws.ref, ws.hasRef
}

// RefFixed reports whether the range was set explicitly.
func (ws *Worksheet) RefFixed() bool {
	return ws.refFixed
}

// SetRef overrides the bounding range. Cells outside r are removed so that
// every stored cell stays inside the range.
func (ws *Worksheet) SetRef(r address.Range) {
	r = r.Normalize()
	for addr := range ws.addresses() {
		if !r.Contains(addr) {
			ws.remove(addr)
		}
	}
	ws.ref, ws.hasRef, ws.refFixed = r, true, true
}

// ExtendRef widens the bounding range to cover r.
func (ws *Worksheet) ExtendRef(r address.Range) {
	r = r.Normalize()
	if ws.hasRef {
		r = ws.ref.Union(r)
	}
	ws.ref, ws.hasRef, ws.refFixed = r, true, true
}

// ResetRef drops any explicit range and recomputes the minimal box.
func (ws *Worksheet) ResetRef() {
	ws.refFixed = false
	ws.recomputeRef()
}

// Cell returns the cell at addr, or nil.
func (ws *Worksheet) Cell(addr address.Cell) *Cell {
	if ws.dense {
		if addr.Row < 0 || addr.Row >= len(ws.matrix) {
			return nil
		}
		row := ws.matrix[addr.Row]
		if addr.Col < 0 || addr.Col >= len(row) {
			return nil
		}
		return row[addr.Col]
	}
	return ws.cells[addr]
}

// CellAt returns the cell at an A1 reference, or nil.
func (ws *Worksheet) CellAt(ref string) (*Cell, error) {
	addr, err := address.DecodeCell(ref)
	if err != nil {
		return nil, err
	}
	return ws.Cell(addr), nil
}

// SetCell is like PutCell but panics on a negative address.
func (ws *Worksheet) SetCell(addr address.Cell, c *Cell) {
	if err := ws.PutCell(addr, c); err != nil {
		panic(err)
	}
}

// PutCell stores c at addr and grows the bounding range to cover it.
// A nil cell deletes the address.
func (ws *Worksheet) PutCell(addr address.Cell, c *Cell) error {
	if c == nil {
		ws.Delete(addr)
		return nil
	}
	if addr.Row < 0 || addr.Col < 0 {
		return sheeterr.New(sheeterr.InvalidAddress, "set_cell", "negative address %+v", addr)
	}

	if ws.dense {
		for len(ws.matrix) <= addr.Row {
			ws.matrix = append(ws.matrix, nil)
		}
		row := ws.matrix[addr.Row]
		if len(row) <= addr.Col {
			row = append(row, make([]*Cell, addr.Col-len(row)+1)...)
			ws.matrix[addr.Row] = row
		}
		if row[addr.Col] == nil {
			ws.count++
		}
		row[addr.Col] = c
	} else {
		if ws.cells == nil {
			ws.cells = make(map[address.Cell]*Cell)
		}
		ws.cells[addr] = c
	}

	if ws.hasRef {
		ws.ref = ws.ref.Extend(addr)
	} else {
		ws.ref, ws.hasRef = address.Single(addr), true
	}
	return nil
}

// Set stores a value at addr, keeping any existing cell metadata.
func (ws *Worksheet) Set(addr address.Cell, v Value) *Cell {
	c := ws.Cell(addr)
	if c == nil {
		c = &Cell{}
	}
	c.Value = v
	c.Text = ""
	ws.SetCell(addr, c)
	return c
}

// Delete removes the cell at addr. Unless the range was set explicitly it
// shrinks back to the minimal box.
func (ws *Worksheet) Delete(addr address.Cell) {
	if !ws.remove(addr) {
		return
	}
	if !ws.refFixed {
		ws.recomputeRef()
	}
}

func (ws *Worksheet) remove(addr address.Cell) bool {
	if ws.dense {
		if ws.Cell(addr) == nil {
			return false
		}
		ws.matrix[addr.Row][addr.Col] = nil
		ws.count--
		return true
	}
	if _, ok := ws.cells[addr]; !ok {
		return false
	}
	delete(ws.cells, addr)
	return true
}

func (ws *Worksheet) recomputeRef() {
	r, ok := address.Bounds(ws.addresses())
	ws.ref, ws.hasRef = r, ok
}

// addresses yields stored addresses in no particular order.
func (ws *Worksheet) addresses() iter.Seq[address.Cell] {
	if !ws.dense {
		return maps.Keys(ws.cells)
	}
	return func(yield func(address.Cell) bool) {
		for r, row := range ws.matrix {
			for c, cell := range row {
				if cell != nil && !yield(address.Cell{Row: r, Col: c}) {
					return
				}
			}
		}
	}
}

// All yields every stored cell in row-major order.
func (ws *Worksheet) All() iter.Seq2[address.Cell, *Cell] {
	if ws.dense {
		return func(yield func(address.Cell, *Cell) bool) {
			for r, row := range ws.matrix {
				for c, cell := range row {
					if cell != nil && !yield(address.Cell{Row: r, Col: c}, cell) {
						return
					}
				}
			}
		}
	}

	keys := slices.SortedFunc(maps.Keys(ws.cells), func(a, b address.Cell) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return func(yield func(address.Cell, *Cell) bool) {
		for _, k := range keys {
			if !yield(k, ws.cells[k]) {
				return
			}
		}
	}
}

// TruncateRows drops every cell at row n or below and clips the range.
func (ws *Worksheet) TruncateRows(n int) {
	if !ws.hasRef || ws.ref.End.Row < n {
		return
	}
	if n <= 0 || ws.ref.Start.Row >= n {
		for addr := range ws.addresses() {
			ws.remove(addr)
		}
		ws.matrix = nil
		ws.hasRef, ws.refFixed = false, false
		ws.ref = address.Range{}
		return
	}
	clipped := ws.ref
	clipped.End.Row = n - 1
	fixed := ws.refFixed
	ws.SetRef(clipped)
	if ws.dense && len(ws.matrix) > n {
		ws.matrix = ws.matrix[:n]
	}
	if len(ws.Rows) > n {
		ws.Rows = ws.Rows[:n]
	}
	if !fixed {
		ws.ResetRef()
	}
}

// SetArrayFormula stores an array formula over r. The top-left cell holds the
// formula and every cell in r records the enclosing range.
func (ws *Worksheet) SetArrayFormula(r address.Range, formula string) {
	r = r.Normalize()
	for addr := range r.Cells() {
		c := ws.Cell(addr)
		if c == nil {
			c = &Cell{}
		}
		c.Formula = ""
		c.ArrayRange = &r
		if addr == r.Start {
			c.Formula = formula
			if c.Value == nil {
				c.Value = Number(0)
			}
		}
		ws.SetCell(addr, c)
	}
}

// ColHidden reports whether column c is hidden.
func (ws *Worksheet) ColHidden(c int) bool {
	return c >= 0 && c < len(ws.Cols) && ws.Cols[c].Hidden
}

// RowHidden reports whether row r is hidden.
func (ws *Worksheet) RowHidden(r int) bool {
	return r >= 0 && r < len(ws.Rows) && ws.Rows[r].Hidden
}

// SetColInfo stores the info for column c, growing Cols as needed.
func (ws *Worksheet) SetColInfo(c int, info ColInfo) {
	for len(ws.Cols) <= c {
		ws.Cols = append(ws.Cols, ColInfo{})
	}
	ws.Cols[c] = info
}

// SetRowInfo stores the info for row r, growing Rows as needed.
func (ws *Worksheet) SetRowInfo(r int, info RowInfo) {
	for len(ws.Rows) <= r {
		ws.Rows = append(ws.Rows, RowInfo{})
	}
	ws.Rows[r] = info
}

// MergeAt returns the merged range containing addr.
func (ws *Worksheet) MergeAt(addr address.Cell) (address.Range, bool) {
	for _, m := range ws.Merges {
		if m.Contains(addr) {
			return m, true
		}
	}
	return address.Range{}, false
}
