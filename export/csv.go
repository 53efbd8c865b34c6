package export

import (
	"strings"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
)

// CSVEncoder renders a sheet one delimited record at a time.
type CSVEncoder struct {
	ws    *model.Worksheet
	opts  CSVOptions
	text  textOptions
	g     grid
	i     int
	blank bool
}

// NewCSVEncoder returns an encoder for comma separated output.
func NewCSVEncoder(ws *model.Worksheet, opts CSVOptions) (*CSVEncoder, error) {
	return newDelimitedEncoder("sheet_to_csv", ws, opts.withDefaults(",", "\n"))
}

// NewTextEncoder returns an encoder for tab separated output.
func NewTextEncoder(ws *model.Worksheet, opts CSVOptions) (*CSVEncoder, error) {
	return newDelimitedEncoder("sheet_to_txt", ws, opts.withDefaults("\t", "\n"))
}

func newDelimitedEncoder(op string, ws *model.Worksheet, opts CSVOptions) (*CSVEncoder, error) {
	if ws == nil {
		return nil, nilSheet(op)
	}
	return &CSVEncoder{
		ws:    ws,
		opts:  opts,
		text:  opts.text(),
		g:     newGrid(ws, opts.Range, 0, opts.SkipHidden),
		blank: opts.BlankRows.include(true),
	}, nil
}

// Separator returns the record separator placed between records.
func (e *CSVEncoder) Separator() string {
	return e.opts.RS
}

// Next returns the next record without a separator. ok is false once every
// row has been emitted.
func (e *CSVEncoder) Next() (record string, ok bool) {
	for e.i < len(e.g.rows) {
		r := e.g.rows[e.i]
		e.i++

		row, empty := e.row(r)
		if empty && !e.blank {
			continue
		}
		if e.opts.Strip {
			for strings.HasSuffix(row, e.opts.FS) {
				row = strings.TrimSuffix(row, e.opts.FS)
			}
			if row == "" && !e.blank {
				continue
			}
		}
		return row, true
	}
	return "", false
}

func (e *CSVEncoder) row(r int) (string, bool) {
	var sb strings.Builder
	empty := true
	for i, col := range e.g.cols {
		if i > 0 {
			sb.WriteString(e.opts.FS)
		}
		txt, ok := e.field(e.ws.Cell(address.Cell{Row: r, Col: col}))
		if ok {
			empty = false
		}
		sb.WriteString(txt)
	}
	return sb.String(), empty
}

// field renders one cell. ok is false for cells without data.
func (e *CSVEncoder) field(c *model.Cell) (string, bool) {
	if c == nil {
		return "", false
	}
	switch v := c.Value.(type) {
	case nil, model.Stub:
		if c.Formula != "" && c.ArrayRange == nil {
			txt := "=" + c.Formula
			if strings.Contains(txt, ",") {
				txt = quote(txt)
			}
			return txt, true
		}
		return "", false
	case model.Number:
		var txt string
		if e.opts.RawNumbers {
			txt = rawNumber(float64(v))
		} else {
			txt = e.text.cellText(c)
		}
		return e.quoteField(txt), true
	default:
		return e.quoteField(e.text.cellText(c)), true
	}
}

func (e *CSVEncoder) quoteField(txt string) string {
	if txt == "" {
		return txt
	}
	if e.opts.ForceQuotes || strings.ContainsAny(txt, "\"\r\n") ||
		strings.Contains(txt, e.opts.FS) || strings.Contains(txt, e.opts.RS) {
		return quote(txt)
	}
	// A leading ID record would make the file read back as SYLK.
	if txt == "ID" {
		return `"ID"`
	}
	return txt
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// SheetToCSV renders ws as delimited text. Records are joined by RS with no
// trailing separator.
func SheetToCSV(ws *model.Worksheet, opts CSVOptions) (string, error) {
	enc, err := NewCSVEncoder(ws, opts)
	if err != nil {
		return "", err
	}
	return joinRecords(enc), nil
}

// SheetToText renders ws as tab separated text.
func SheetToText(ws *model.Worksheet, opts CSVOptions) (string, error) {
	enc, err := NewTextEncoder(ws, opts)
	if err != nil {
		return "", err
	}
	return joinRecords(enc), nil
}

func joinRecords(enc *CSVEncoder) string {
	var sb strings.Builder
	for n := 0; ; n++ {
		rec, ok := enc.Next()
		if !ok {
			break
		}
		if n > 0 {
			sb.WriteString(enc.Separator())
		}
		sb.WriteString(rec)
	}
	return sb.String()
}
