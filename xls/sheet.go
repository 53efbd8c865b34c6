package xls

import (
	"fmt"
	"log/slog"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

// maxCols is the column count of a BIFF8 sheet.
const maxCols = 256

// sheetParser turns one worksheet substream into cells.
type sheetParser struct {
	g        *globals
	opts     codec.ParseOptions
	limit    int // rows kept, zero for all
	ws       *model.Worksheet
	log      *slog.Logger
	shared   sharedStrings
	rtl      bool
	dim      *address.Range
	password string
}

// sharedStrings resolves LABELSST cells.
type sharedStrings interface {
	text(row, col int) (string, bool)
}

func (p *sheetParser) parse(stream []byte, offset int) error {
	if offset < 0 || offset >= len(stream) {
		return fmt.Errorf("sheet offset %d outside stream", offset)
	}
	rr := &recordReader{buf: stream, pos: offset}
	first, ok, err := rr.next()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sheet at offset %d is empty", offset)
	}
	if _, _, err := parseBOF(first); err != nil {
		return err
	}

	for {
		rec, ok, err := rr.next()
		if err != nil {
			return err
		}
		if !ok || rec.id == recEOF {
			break
		}
		if err := p.record(rec, rr); err != nil {
			return err
		}
	}

	if p.ws.Protect != nil {
		p.ws.Protect.Password = p.password
	}
	if p.dim != nil && p.ws.Len() > 0 {
		p.ws.ExtendRef(*p.dim)
	}
	return nil
}

func (p *sheetParser) record(rec record, rr *recordReader) error {
	d := rec.data
	switch rec.id {
	case recNumber:
		p.number(u16(d, 0), u16(d, 2), u16(d, 4), f64(d, 6))
	case recRK:
		p.number(u16(d, 0), u16(d, 2), u16(d, 4), rkNumber(u32(d, 6)))
	case recMulRK:
		row, col := u16(d, 0), u16(d, 2)
		for off := 4; off+6 <= len(d)-2; off += 6 {
			p.number(row, col, u16(d, off), rkNumber(u32(d, off+2)))
			col++
		}
	case recBlank:
		p.blank(u16(d, 0), u16(d, 2), u16(d, 4))
	case recMulBlank:
		row, col := u16(d, 0), u16(d, 2)
		for off := 4; off+2 <= len(d)-2; off += 2 {
			p.blank(row, col, u16(d, off))
			col++
		}
	case recLabel:
		if len(d) < 6 {
			return fmt.Errorf("LABEL record too short")
		}
		s, _, err := p.g.strings().read(d[6:], 2)
		if err != nil {
			return fmt.Errorf("LABEL record: %w", err)
		}
		p.put(u16(d, 0), u16(d, 2), u16(d, 4), model.String(s))
	case recLabelSST:
		row, col := u16(d, 0), u16(d, 2)
		s, ok := p.shared.text(row, col)
		if !ok {
			return fmt.Errorf("cell %s: shared string %d not found", address.Cell{Row: row, Col: col}, u32(d, 6))
		}
		p.put(row, col, u16(d, 4), model.String(s))
	case recBoolErr:
		return p.boolErr(d)
	case recFormula:
		return p.formula(d, rr)
	case recRow:
		p.row(d)
	case recColInfo:
		p.colInfo(d)
	case recMergedCells:
		n := u16(d, 0)
		for i := 0; i < n && 2+8*i+8 <= len(d); i++ {
			off := 2 + 8*i
			p.ws.Merges = append(p.ws.Merges, address.NewRange(
				address.Cell{Row: u16(d, off), Col: u16(d, off+4)},
				address.Cell{Row: u16(d, off+2), Col: u16(d, off+6)},
			))
		}
	case recDimension:
		p.dimension(d)
	case recWindow2:
		p.rtl = u16(d, 0)&0x0040 != 0
	case recProtect:
		if u16(d, 0) == 1 {
			p.ws.Protect = &model.ProtectInfo{SelectLockedCells: true, SelectUnlockedCells: true}
		}
	case recPassword:
		if h := u16(d, 0); h != 0 {
			p.password = fmt.Sprintf("%04X", h)
		}
	case recLeftMargin, recRightMargin, recTopMargin, recBottomMargin:
		p.margin(rec.id, f64(d, 0))
	case recSetup:
		if len(d) >= 32 {
			m := p.margins()
			m.Header, m.Footer = f64(d, 16), f64(d, 24)
		}
	}
	return nil
}

func (p *sheetParser) margins() *model.Margins {
	if p.ws.Margins == nil {
		m := model.DefaultMargins()
		p.ws.Margins = &m
	}
	return p.ws.Margins
}

func (p *sheetParser) margin(id uint16, v float64) {
	m := p.margins()
	switch id {
	case recLeftMargin:
		m.Left = v
	case recRightMargin:
		m.Right = v
	case recTopMargin:
		m.Top = v
	case recBottomMargin:
		m.Bottom = v
	}
}

func (p *sheetParser) skipRow(row int) bool {
	return p.limit > 0 && row >= p.limit
}

func (p *sheetParser) number(row, col, xf int, v float64) {
	nf := p.g.numberFormat(xf)
	if p.opts.CellDates && numfmt.IsDateFormat(numfmt.Code(nf)) {
		p.put(row, col, xf, model.Date(numfmt.SerialToTime(v, p.g.date1904)))
		return
	}
	p.put(row, col, xf, model.Number(v))
}

func (p *sheetParser) blank(row, col, xf int) {
	if p.opts.SheetStubs {
		p.put(row, col, xf, model.Stub{})
	}
}

// put stores a cell with the formatting the options ask for.
func (p *sheetParser) put(row, col, xf int, v model.Value) {
	if p.skipRow(row) || col >= maxCols {
		return
	}
	c := model.NewCell(v)
	nf := p.g.numberFormat(xf)
	c.NumFmt = nf
	if _, stub := v.(model.Stub); !stub && p.opts.CellText {
		c.Text = numfmt.Default.Format(c, numfmt.Options{DateNF: p.opts.DateNF, Date1904: p.g.date1904})
	}
	if !p.opts.CellNF && !numfmt.IsDateFormat(numfmt.Code(nf)) {
		c.NumFmt = model.NumberFormat{}
	}
	p.ws.SetCell(address.Cell{Row: row, Col: col}, c)
}

func (p *sheetParser) boolErr(d []byte) error {
	if len(d) < 8 {
		return fmt.Errorf("BOOLERR record too short")
	}
	row, col, xf := u16(d, 0), u16(d, 2), u16(d, 4)
	if d[7] == 0 {
		p.put(row, col, xf, model.Bool(d[6] != 0))
		return nil
	}
	return p.errorValue(row, col, xf, d[6])
}

func (p *sheetParser) errorValue(row, col, xf int, code byte) error {
	e := model.ErrorCode(code)
	if _, ok := model.ParseErrorCode(e.String()); !ok {
		addr := address.Cell{Row: row, Col: col}
		if p.opts.WTF {
			return sheeterr.New(sheeterr.UnsupportedValue, opDecode, "cell %s: unknown error code 0x%02X", addr, code)
		}
		p.log.Warn("unknown error value", "cell", addr.String(), "code", code)
		e = model.ErrorValue
	}
	p.put(row, col, xf, e)
	return nil
}

// formula stores the cached result of a FORMULA record. A string result
// is carried by the STRING record that follows.
func (p *sheetParser) formula(d []byte, rr *recordReader) error {
	if len(d) < 14 {
		return fmt.Errorf("FORMULA record too short")
	}
	row, col, xf := u16(d, 0), u16(d, 2), u16(d, 4)
	res := d[6:14]
	if res[6] != 0xFF || res[7] != 0xFF {
		p.number(row, col, xf, f64(d, 6))
		return nil
	}
	switch res[0] {
	case 0x00:
		for id, ok := rr.peek(); ok && (id == recArray || id == recShrFmla); id, ok = rr.peek() {
			if _, _, err := rr.next(); err != nil {
				return err
			}
		}
		if id, ok := rr.peek(); !ok || id != recString {
			p.put(row, col, xf, model.String(""))
			return nil
		}
		rec, _, err := rr.next()
		if err != nil {
			return err
		}
		s, _, err := p.g.strings().read(rec.data, 2)
		if err != nil {
			return fmt.Errorf("STRING record: %w", err)
		}
		p.put(row, col, xf, model.String(s))
	case 0x01:
		p.put(row, col, xf, model.Bool(res[2] != 0))
	case 0x02:
		return p.errorValue(row, col, xf, res[2])
	case 0x03:
		p.put(row, col, xf, model.String(""))
	}
	return nil
}

func (p *sheetParser) row(d []byte) {
	if len(d) < 16 {
		return
	}
	r := u16(d, 0)
	if p.skipRow(r) {
		return
	}
	height := u16(d, 6) & 0x7FFF
	flags := u16(d, 12)
	info := model.RowInfo{
		Hidden: flags&0x0020 != 0,
		Level:  flags & 0x0007,
	}
	if flags&0x0040 != 0 {
		info.HPT = float64(height) / 20
		info.HPX = info.HPT * 96 / 72
	}
	if info.Hidden || info.Level > 0 || info.HPT > 0 {
		p.ws.SetRowInfo(r, info)
	}
}

func (p *sheetParser) colInfo(d []byte) {
	if len(d) < 10 {
		return
	}
	first, last := u16(d, 0), min(u16(d, 2), maxCols-1)
	flags := u16(d, 8)
	info := model.ColInfo{
		Hidden: flags&0x0001 != 0,
		Level:  (flags >> 8) & 0x0007,
		Width:  float64(u16(d, 4)) / 256,
	}
	info.WCH = info.Width
	for c := first; c <= last; c++ {
		p.ws.SetColInfo(c, info)
	}
}

func (p *sheetParser) dimension(d []byte) {
	var r0, r1, c0, c1 int
	if p.g.version == biff8 {
		if len(d) < 12 {
			return
		}
		r0, r1, c0, c1 = int(u32(d, 0)), int(u32(d, 4)), u16(d, 8), u16(d, 10)
	} else {
		if len(d) < 8 {
			return
		}
		r0, r1, c0, c1 = u16(d, 0), u16(d, 2), u16(d, 4), u16(d, 6)
	}
	if r1 <= r0 || c1 <= c0 {
		return
	}
	if p.limit > 0 {
		r1 = min(r1, p.limit)
	}
	rng := address.NewRange(address.Cell{Row: r0, Col: c0}, address.Cell{Row: r1 - 1, Col: c1 - 1})
	p.dim = &rng
}
