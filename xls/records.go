package xls

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/tsawler/cellar/internal/codepage"
)

// BIFF record identifiers.
const (
	recFormula      = 0x0006
	recEOF          = 0x000A
	recProtect      = 0x0012
	recPassword     = 0x0013
	recDateMode     = 0x0022
	recLeftMargin   = 0x0026
	recRightMargin  = 0x0027
	recTopMargin    = 0x0028
	recBottomMargin = 0x0029
	recFilePass     = 0x002F
	recCodepage     = 0x0042
	recWriteAccess  = 0x005C
	recColInfo      = 0x007D
	recBoundSheet   = 0x0085
	recSetup        = 0x00A1
	recMulRK        = 0x00BD
	recMulBlank     = 0x00BE
	recXF           = 0x00E0
	recMergedCells  = 0x00E5
	recLabelSST     = 0x00FD
	recDimension    = 0x0200
	recBlank        = 0x0201
	recNumber       = 0x0203
	recLabel        = 0x0204
	recBoolErr      = 0x0205
	recString       = 0x0207
	recRow          = 0x0208
	recWindow2      = 0x023E
	recArray        = 0x0221
	recRK           = 0x027E
	recShrFmla      = 0x04BC
	recFormat       = 0x041E
	recBOF          = 0x0809
)

// bofGlobals is the BOF substream type of the workbook globals.
const bofGlobals = 0x0005

// BIFF versions as stored in the BOF record.
const (
	biff5 = 0x0500
	biff8 = 0x0600
)

type record struct {
	id   uint16
	data []byte
}

// recordReader walks the records of a workbook stream.
type recordReader struct {
	buf []byte
	pos int
}

// next returns the next record. ok is false at the end of the stream.
func (r *recordReader) next() (rec record, ok bool, err error) {
	if r.pos+4 > len(r.buf) {
		return record{}, false, nil
	}
	id := binary.LittleEndian.Uint16(r.buf[r.pos:])
	size := int(binary.LittleEndian.Uint16(r.buf[r.pos+2:]))
	start := r.pos + 4
	if start+size > len(r.buf) {
		return record{}, false, fmt.Errorf("record 0x%04X at offset %d: truncated", id, r.pos)
	}
	r.pos = start + size
	return record{id: id, data: r.buf[start : start+size]}, true, nil
}

// peek returns the identifier of the next record without consuming it.
func (r *recordReader) peek() (uint16, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(r.buf[r.pos:]), true
}

func u16(b []byte, off int) int {
	if off+2 > len(b) {
		return 0
	}
	return int(binary.LittleEndian.Uint16(b[off:]))
}

func u32(b []byte, off int) uint32 {
	if off+4 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off:])
}

func f64(b []byte, off int) float64 {
	if off+8 > len(b) {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}

// rkNumber decodes an RK value: a 30 bit integer or the high bits of a
// double, optionally scaled by 1/100.
func rkNumber(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// stringDecoder reads the string layouts of one BIFF version.
type stringDecoder struct {
	version  int
	codepage int
}

// read decodes a string whose character count takes lenSize bytes. It
// returns the string and the number of bytes consumed.
func (d stringDecoder) read(b []byte, lenSize int) (string, int, error) {
	if len(b) < lenSize {
		return "", 0, fmt.Errorf("string header truncated")
	}
	n := int(b[0])
	if lenSize == 2 {
		n = u16(b, 0)
	}
	if d.version < biff8 {
		end := lenSize + n
		if end > len(b) {
			return "", 0, fmt.Errorf("string of %d bytes truncated", n)
		}
		s, err := codepage.Decode(d.codepage, b[lenSize:end])
		if err != nil {
			return string(b[lenSize:end]), end, nil
		}
		return s, end, nil
	}
	return unicodeString(b, lenSize, n)
}

// unicodeString decodes a BIFF8 XLUnicodeString body of n characters
// starting after its length field.
func unicodeString(b []byte, lenSize, n int) (string, int, error) {
	pos := lenSize
	if pos >= len(b) {
		if n == 0 {
			return "", pos, nil
		}
		return "", 0, fmt.Errorf("string flags truncated")
	}
	flags := b[pos]
	pos++
	runs, ext := 0, 0
	if flags&0x08 != 0 {
		runs = u16(b, pos)
		pos += 2
	}
	if flags&0x04 != 0 {
		ext = int(u32(b, pos))
		pos += 4
	}

	var s string
	if flags&0x01 != 0 {
		end := pos + 2*n
		if end > len(b) {
			return "", 0, fmt.Errorf("string of %d characters truncated", n)
		}
		units := make([]uint16, n)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(b[pos+2*i:])
		}
		s = string(utf16.Decode(units))
		pos = end
	} else {
		end := pos + n
		if end > len(b) {
			return "", 0, fmt.Errorf("string of %d characters truncated", n)
		}
		runes := make([]rune, n)
		for i, c := range b[pos:end] {
			runes[i] = rune(c)
		}
		s = string(runes)
		pos = end
	}
	pos += 4*runs + ext
	return s, min(pos, len(b)), nil
}
