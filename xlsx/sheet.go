package xlsx

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

// maxCols is the column count of an Excel 2007+ sheet.
const maxCols = 16384

// sheetParser turns one worksheet part into cells.
type sheetParser struct {
	r      *reader
	ws     *model.Worksheet
	log    *slog.Logger
	shared map[int]sharedFormula
	arrays []address.Range
}

// sharedFormula is the master cell of a shared formula group.
type sharedFormula struct {
	origin  address.Cell
	formula string
}

func (p *sheetParser) rowLimit() int {
	if p.r.stage == codec.StageRows {
		return p.r.opts.SheetRows
	}
	return 0
}

func (p *sheetParser) parseRows(rows []rowXML) error {
	limit := p.rowLimit()
	prevRow := -1
	for _, row := range rows {
		rowIdx := prevRow + 1
		if row.R > 0 {
			rowIdx = row.R - 1 // Convert to 0-indexed
		}
		prevRow = rowIdx
		if limit > 0 && rowIdx >= limit {
			continue
		}

		if row.Hidden || row.CustomHeight || row.OutlineLevel > 0 {
			p.ws.SetRowInfo(rowIdx, model.RowInfo{
				Hidden: row.Hidden,
				HPT:    row.Ht,
				HPX:    row.Ht * 96 / 72,
				Level:  row.OutlineLevel,
			})
		}

		prevCol := -1
		for _, cx := range row.Cells {
			addr, err := cellPosition(cx.R, rowIdx, prevCol)
			if err != nil {
				if p.r.opts.WTF {
					return err
				}
				p.log.Warn("skipping cell with bad reference", "cell", cx.R)
				continue
			}
			prevCol = addr.Col

			c, err := p.cell(cx, addr)
			if err != nil {
				return err
			}
			if c != nil {
				p.ws.SetCell(addr, c)
			}
		}
	}
	return nil
}

// cell converts one <c> element. It returns nil for cells that carry
// nothing worth keeping.
func (p *sheetParser) cell(cx cellXML, addr address.Cell) (*model.Cell, error) {
	opts := p.r.opts
	c := &model.Cell{}
	nf := p.numberFormat(cx.S)
	v := ""
	if cx.V != nil {
		v = *cx.V
	}

	switch cx.T {
	case "s": // Shared string
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || idx < 0 || idx >= len(p.r.sst) {
			return nil, fmt.Errorf("cell %s: shared string index %q out of range", addr, v)
		}
		s := p.r.sst[idx]
		c.Value = model.String(s.text)
		if opts.CellHTML {
			c.HTML = s.html
		}
	case "str": // Formula string result
		c.Value = model.String(v)
	case "inlineStr":
		if cx.Is != nil {
			text, markup := richText(cx.Is.T, cx.Is.R)
			c.Value = model.String(text)
			if opts.CellHTML {
				c.HTML = markup
			}
		} else {
			c.Value = model.String(v)
		}
	case "b":
		c.Value = model.Bool(v == "1" || v == "true")
	case "e":
		code, ok := model.ParseErrorCode(v)
		if !ok {
			if opts.WTF {
				return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "cell %s: unknown error %q", addr, v)
			}
			p.log.Warn("unknown error value", "cell", addr.String(), "value", v)
			code = model.ErrorValue
		}
		c.Value = code
	case "d":
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05", v)
		}
		if err != nil {
			return nil, fmt.Errorf("cell %s: bad date %q", addr, v)
		}
		if opts.CellDates {
			c.Value = model.Date(t)
		} else {
			c.Value = model.Number(numfmt.TimeToSerial(t, p.r.date1904))
		}
	case "", "n":
		if v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("cell %s: bad number %q", addr, v)
			}
			if opts.CellDates && numfmt.IsDateFormat(numfmt.Code(nf)) {
				c.Value = model.Date(numfmt.SerialToTime(f, p.r.date1904))
			} else {
				c.Value = model.Number(f)
			}
		}
	default:
		if opts.WTF {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "cell %s: unknown type %q", addr, cx.T)
		}
		p.log.Warn("unknown cell type", "cell", addr.String(), "type", cx.T)
		c.Value = model.String(v)
	}

	if cx.F != nil && opts.CellFormula {
		c.Formula = p.formula(cx.F, addr)
	}
	if c.Value == nil && c.Formula == "" {
		if !opts.SheetStubs {
			return nil, nil
		}
		c.Value = model.Stub{}
	}

	c.NumFmt = nf
	if opts.CellText && c.Value != nil {
		if _, stub := c.Value.(model.Stub); !stub {
			c.Text = numfmt.Default.Format(c, numfmt.Options{DateNF: opts.DateNF, Date1904: p.r.date1904})
		}
	}
	if !opts.CellNF && !numfmt.IsDateFormat(numfmt.Code(nf)) {
		c.NumFmt = model.NumberFormat{}
	}
	if opts.CellStyles && cx.S >= 0 && cx.S < len(p.r.xfs) {
		xf := p.r.xfs[cx.S]
		c.Style = Style{XF: cx.S, NumFmtID: xf.NumFmtID, FontID: xf.FontID, FillID: xf.FillID, BorderID: xf.BorderID}
	}
	return c, nil
}

// numberFormat resolves a cellXfs index to a number format.
func (p *sheetParser) numberFormat(s int) model.NumberFormat {
	if s < 0 || s >= len(p.r.xfs) {
		return model.NumberFormat{}
	}
	id := p.r.xfs[s].NumFmtID
	nf := model.NumberFormat{ID: id}
	if code, ok := p.r.numFmts[id]; ok {
		nf.Code = code
	}
	return nf
}

// formula returns the formula text of a cell, expanding shared formulas
// and recording array ranges.
func (p *sheetParser) formula(f *formulaXML, addr address.Cell) string {
	switch f.T {
	case "shared":
		if f.Si == nil {
			return f.Text
		}
		if f.Text != "" {
			p.shared[*f.Si] = sharedFormula{origin: addr, formula: f.Text}
			return f.Text
		}
		master, ok := p.shared[*f.Si]
		if !ok {
			p.log.Warn("shared formula without master", "cell", addr.String(), "si", *f.Si)
			return ""
		}
		return shiftFormula(master.formula, addr.Row-master.origin.Row, addr.Col-master.origin.Col)
	case "array":
		if rng, err := decodeRange(f.Ref); err == nil {
			p.arrays = append(p.arrays, rng)
		} else {
			p.log.Warn("array formula with bad range", "cell", addr.String(), "ref", f.Ref)
		}
		return f.Text
	case "dataTable":
		return ""
	default:
		return f.Text
	}
}

// applyArrays tags every stored cell of an array formula with its range.
func (p *sheetParser) applyArrays() {
	for _, rng := range p.arrays {
		for addr := range rng.Cells() {
			if c := p.ws.Cell(addr); c != nil {
				r := rng
				c.ArrayRange = &r
			}
		}
	}
}

func (p *sheetParser) parseCols(cols []colXML) {
	for _, col := range cols {
		if col.Min < 1 {
			continue
		}
		last := min(col.Max, maxCols)
		info := model.ColInfo{Hidden: col.Hidden, Level: col.OutlineLevel}
		if col.Width > 0 {
			info.Width = col.Width
			info.WCH = col.Width
		}
		for c := col.Min; c <= last; c++ {
			p.ws.SetColInfo(c-1, info)
		}
	}
}

// parseHyperlinks attaches links to every cell of each hyperlink range.
// The top-left cell is created as a stub when it does not exist.
func (p *sheetParser) parseHyperlinks(links []hyperlinkXML, rels map[string]relationshipXML) {
	for _, hl := range links {
		rng, err := decodeRange(hl.Ref)
		if err != nil {
			p.log.Warn("skipping hyperlink with bad range", "ref", hl.Ref)
			continue
		}
		target := ""
		if rel, ok := rels[hl.RID]; ok {
			target = rel.Target
			if hl.Location != "" {
				target += "#" + hl.Location
			}
		} else if hl.Location != "" {
			target = "#" + hl.Location
		}
		if target == "" {
			continue
		}

		if p.ws.Cell(rng.Start) == nil {
			p.ws.SetCell(rng.Start, model.NewCell(model.Stub{}))
		}
		for addr := range rng.Cells() {
			if c := p.ws.Cell(addr); c != nil {
				c.Link = &model.Hyperlink{Target: target, Tooltip: hl.Tooltip}
			}
		}
	}
}

// parseComments reads the legacy comments part of a worksheet.
func (p *sheetParser) parseComments(part string, rels map[string]relationshipXML) error {
	for _, rel := range rels {
		if !strings.HasSuffix(rel.Type, relComments) {
			continue
		}
		var cx commentsXML
		if _, err := p.r.unmarshalPart(resolvePart(part, rel.Target), &cx); err != nil {
			return err
		}
		for _, cm := range cx.Comments {
			addr, err := decodeCell(cm.Ref)
			if err != nil {
				p.log.Warn("skipping comment with bad reference", "cell", cm.Ref)
				continue
			}
			author := ""
			if cm.AuthorID >= 0 && cm.AuthorID < len(cx.Authors) {
				author = cx.Authors[cm.AuthorID]
			}
			text, _ := richText(cm.Text.T, cm.Text.R)

			c := p.ws.Cell(addr)
			if c == nil {
				c = model.NewCell(model.Stub{})
				p.ws.SetCell(addr, c)
			}
			c.AddComment(text, author)
		}
	}
	return nil
}
