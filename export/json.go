package export

import (
	"strconv"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
)

// JSONEncoder produces rows or records one sheet row at a time.
type JSONEncoder struct {
	ws     *model.Worksheet
	opts   JSONOptions
	text   textOptions
	g      grid
	arrays bool
	keys   []string // per visible column; "" drops the column
	rows   []int
	i      int
	blank  bool
}

// NewJSONEncoder returns an encoder yielding *model.Record values, or []any
// rows when arrays is set.
func NewJSONEncoder(ws *model.Worksheet, opts JSONOptions, arrays bool) (*JSONEncoder, error) {
	op := "sheet_to_json"
	if ws == nil {
		return nil, nilSheet(op)
	}
	if err := opts.validate(op); err != nil {
		return nil, err
	}
	if arrays && (opts.Header != nil || opts.HeaderLetters || opts.HeaderIndex) {
		return nil, invalidArrays(op)
	}

	e := &JSONEncoder{
		ws:     ws,
		opts:   opts,
		text:   opts.text(),
		g:      newGrid(ws, opts.Range, opts.FirstRow, opts.SkipHidden),
		arrays: arrays,
		blank:  opts.BlankRows.include(arrays),
	}
	e.rows = e.g.rows
	if !arrays {
		e.keys = e.header()
	}
	return e, nil
}

// header resolves the record key of every visible column. The default mode
// consumes the first row.
func (e *JSONEncoder) header() []string {
	keys := make([]string, len(e.g.cols))
	switch {
	case e.opts.HeaderLetters:
		for i, col := range e.g.cols {
			keys[i] = address.EncodeCol(col)
		}
	case e.opts.HeaderIndex:
		for i, col := range e.g.cols {
			keys[i] = strconv.Itoa(col - e.g.rng.Start.Col)
		}
	case e.opts.Header != nil:
		for i, col := range e.g.cols {
			if off := col - e.g.rng.Start.Col; off < len(e.opts.Header) {
				keys[i] = e.opts.Header[off]
			}
		}
	default:
		if len(e.rows) == 0 {
			return keys
		}
		hr := e.rows[0]
		e.rows = e.rows[1:]
		seen := map[string]bool{}
		for i, col := range e.g.cols {
			c := e.ws.Cell(address.Cell{Row: hr, Col: col})
			base := "__EMPTY"
			if hasValue(c) {
				base = e.text.cellText(c)
			}
			key := base
			for n := 1; seen[key]; n++ {
				key = base + "_" + strconv.Itoa(n)
			}
			seen[key] = true
			keys[i] = key
		}
	}
	return keys
}

// Next returns the next row as []any in arrays mode and as *model.Record
// otherwise. ok is false once every row has been emitted.
func (e *JSONEncoder) Next() (row any, ok bool) {
	for e.i < len(e.rows) {
		r := e.rows[e.i]
		e.i++

		out, empty := e.build(r)
		if empty && !e.blank {
			continue
		}
		return out, true
	}
	return nil, false
}

func (e *JSONEncoder) build(r int) (any, bool) {
	var (
		arr   []any
		rec   *model.Record
		empty = true
	)
	if e.arrays {
		arr = make([]any, len(e.g.cols))
	} else {
		rec = model.NewRecord()
	}
	put := func(i int, v any) {
		if e.arrays {
			arr[i] = v
		} else if e.keys[i] != "" {
			rec.Set(e.keys[i], v)
		}
	}

	for i, col := range e.g.cols {
		c := e.ws.Cell(address.Cell{Row: r, Col: col})
		v, present := e.value(c)
		switch {
		case present:
			put(i, v)
			if v != nil {
				empty = false
			}
		case e.opts.UseDefVal:
			put(i, e.opts.DefVal)
		}
	}

	if e.arrays {
		return arr, empty
	}
	return rec, empty
}

// value converts one cell. present is false for cells that contribute no
// key: missing, stub and error cells other than #NULL!, which maps to nil.
func (e *JSONEncoder) value(c *model.Cell) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch v := c.Value.(type) {
	case nil, model.Stub:
		return nil, false
	case model.ErrorCode:
		if v == model.ErrorNull {
			return nil, true
		}
		return nil, false
	case model.Number:
		if !e.opts.Formatted || e.opts.RawNumbers {
			return float64(v), true
		}
	case model.Bool:
		if !e.opts.Formatted {
			return bool(v), true
		}
	case model.String:
		if !e.opts.Formatted {
			return string(v), true
		}
	case model.Date:
		if !e.opts.Formatted {
			return v.Time(), true
		}
	}
	return e.text.cellText(c), true
}

// SheetToRows returns every row of ws as a slice of values. Empty cells are
// nil, or DefVal when UseDefVal is set. Blank rows are kept by default.
func SheetToRows(ws *model.Worksheet, opts JSONOptions) ([][]any, error) {
	enc, err := NewJSONEncoder(ws, opts, true)
	if err != nil {
		return nil, err
	}
	out := [][]any{}
	for {
		row, ok := enc.Next()
		if !ok {
			return out, nil
		}
		out = append(out, row.([]any))
	}
}

// SheetToRecords returns the rows of ws as ordered records. Without an
// explicit header mode the first row supplies the keys; duplicate keys get
// "_1", "_2" suffixes and empty header cells become "__EMPTY". Blank rows are
// skipped by default.
func SheetToRecords(ws *model.Worksheet, opts JSONOptions) ([]*model.Record, error) {
	enc, err := NewJSONEncoder(ws, opts, false)
	if err != nil {
		return nil, err
	}
	out := []*model.Record{}
	for {
		rec, ok := enc.Next()
		if !ok {
			return out, nil
		}
		out = append(out, rec.(*model.Record))
	}
}
