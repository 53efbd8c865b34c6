package xls

import (
	"fmt"

	"github.com/tsawler/cellar/model"
)

// boundSheet is one BOUNDSHEET entry of the globals substream.
type boundSheet struct {
	name   string
	offset int
	state  model.Visibility
	kind   model.SheetKind
	module bool // VBA module, not a sheet
	record int  // position among all BOUNDSHEET records
}

// globals holds the workbook-level records of a BIFF stream.
type globals struct {
	version   int
	codepage  int
	date1904  bool
	encrypted bool
	user      string
	sheets    []boundSheet
	formats   map[int]string
	xfs       []int // number format id per XF record
}

func (g *globals) strings() stringDecoder {
	return stringDecoder{version: g.version, codepage: g.codepage}
}

// parseBOF reads the version and substream type of a BOF record.
func parseBOF(rec record) (version, kind int, err error) {
	if rec.id != recBOF || len(rec.data) < 4 {
		return 0, 0, fmt.Errorf("expected BOF record, found 0x%04X", rec.id)
	}
	return u16(rec.data, 0), u16(rec.data, 2), nil
}

// parseGlobals reads the globals substream at the start of the stream.
// It stops at the first FILEPASS record, since everything after it is
// encrypted.
func parseGlobals(stream []byte) (*globals, error) {
	rr := &recordReader{buf: stream}
	first, ok, err := rr.next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("empty workbook stream")
	}
	version, kind, err := parseBOF(first)
	if err != nil {
		return nil, err
	}
	if kind != bofGlobals {
		return nil, fmt.Errorf("stream starts with substream type 0x%04X", kind)
	}
	if version != biff5 && version != biff8 {
		return nil, fmt.Errorf("unsupported BIFF version 0x%04X", version)
	}

	g := &globals{version: version, formats: make(map[int]string)}
	if version == biff8 {
		g.codepage = 1200
	}
	for {
		rec, ok, err := rr.next()
		if err != nil {
			return nil, err
		}
		if !ok || rec.id == recEOF {
			return g, nil
		}
		switch rec.id {
		case recFilePass:
			g.encrypted = true
			return g, nil
		case recCodepage:
			if version < biff8 {
				g.codepage = u16(rec.data, 0)
			}
		case recDateMode:
			g.date1904 = u16(rec.data, 0) == 1
		case recWriteAccess:
			if s, _, err := g.strings().read(rec.data, g.lenSize()); err == nil {
				g.user = trimPadding(s)
			}
		case recBoundSheet:
			if err := g.boundSheet(rec.data); err != nil {
				return nil, err
			}
		case recFormat:
			if len(rec.data) < 3 {
				continue
			}
			code, _, err := g.strings().read(rec.data[2:], g.lenSize())
			if err != nil {
				return nil, fmt.Errorf("FORMAT record: %w", err)
			}
			g.formats[u16(rec.data, 0)] = code
		case recXF:
			g.xfs = append(g.xfs, u16(rec.data, 2))
		}
	}
}

// lenSize is the width of the length field of strings that are not
// short strings.
func (g *globals) lenSize() int {
	if g.version == biff8 {
		return 2
	}
	return 1
}

func (g *globals) boundSheet(data []byte) error {
	if len(data) < 7 {
		return fmt.Errorf("BOUNDSHEET record too short")
	}
	name, _, err := g.strings().read(data[6:], 1)
	if err != nil {
		return fmt.Errorf("BOUNDSHEET name: %w", err)
	}
	bs := boundSheet{
		name:   name,
		offset: int(u32(data, 0)),
		state:  model.Visibility(data[4] & 0x03),
		record: len(g.sheets),
	}
	switch data[5] {
	case 0x01:
		bs.kind = model.KindMacro
	case 0x02:
		bs.kind = model.KindChart
	case 0x06:
		bs.module = true
	}
	g.sheets = append(g.sheets, bs)
	return nil
}

// numberFormat returns the number format of XF index xf.
func (g *globals) numberFormat(xf int) model.NumberFormat {
	if xf < 0 || xf >= len(g.xfs) {
		return model.NumberFormat{}
	}
	id := g.xfs[xf]
	nf := model.NumberFormat{ID: id}
	if code, ok := g.formats[id]; ok {
		nf.Code = code
	}
	return nf
}

// trimPadding drops the space padding of fixed width strings.
func trimPadding(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == ' ' || s[end-1] == 0) {
		end--
	}
	return s[:end]
}
