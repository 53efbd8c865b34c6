package xlsx

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/tsawler/cellar/address"
)

// Style is the cell style recorded when ParseOptions.CellStyles is set.
type Style struct {
	XF       int // index into cellXfs
	NumFmtID int
	FontID   int
	FillID   int
	BorderID int
}

// cellPosition resolves the r attribute of a <c> element. Writers may omit
// it, in which case the cell follows the previous one in the row.
func cellPosition(ref string, row, prevCol int) (address.Cell, error) {
	if ref == "" {
		return address.Cell{Row: row, Col: prevCol + 1}, nil
	}
	return decodeCell(ref)
}

// decodeCell and decodeRange accept the absolute markers that OOXML writers
// put on autofilter, name and merge references.
func decodeCell(ref string) (address.Cell, error) {
	return address.DecodeCell(strings.ReplaceAll(ref, "$", ""))
}

func decodeRange(ref string) (address.Range, error) {
	return address.DecodeRange(strings.ReplaceAll(ref, "$", ""))
}

// attrBool interprets an xsd:boolean attribute, falling back to def when
// the attribute is absent.
func attrBool(s string, def bool) bool {
	switch s {
	case "":
		return def
	case "1", "true":
		return true
	default:
		return false
	}
}

// richText flattens inline or shared string runs into plain text and an
// HTML rendering. html is empty when the runs carry no formatting.
func richText(t string, runs []rXML) (text, markup string) {
	if len(runs) == 0 {
		return t, ""
	}
	var plain, h strings.Builder
	styled := false
	for _, run := range runs {
		plain.WriteString(run.T)

		body := strings.ReplaceAll(html.EscapeString(run.T), "\n", "<br/>")
		if p := run.RPr; p != nil {
			for _, tag := range []struct {
				on   bool
				name string
			}{{p.B.on(), "b"}, {p.I.on(), "i"}, {p.U.on(), "u"}, {p.Strike.on(), "s"}} {
				if tag.on {
					body = "<" + tag.name + ">" + body + "</" + tag.name + ">"
					styled = true
				}
			}
		}
		h.WriteString(body)
	}
	if !styled {
		return plain.String(), ""
	}
	return plain.String(), h.String()
}

// shiftFormula moves the relative references of a shared formula by dr rows
// and dc columns. References pushed off the sheet become #REF!.
func shiftFormula(f string, dr, dc int) string {
	if dr == 0 && dc == 0 {
		return f
	}
	var sb strings.Builder
	for i := 0; i < len(f); {
		ch := f[i]
		if ch == '"' || ch == '\'' {
			j := closeQuote(f, i)
			sb.WriteString(f[i:j])
			i = j
			continue
		}
		if (ch == '$' || isUpper(ch)) && !identByte(prevByte(f, i)) {
			if ref, n, ok := scanRef(f[i:]); ok && !refFollower(nextByte(f, i+n)) {
				sb.WriteString(ref.shift(dr, dc))
				i += n
				continue
			}
		}
		sb.WriteByte(ch)
		i++
	}
	return sb.String()
}

type a1Ref struct {
	col, row       int
	colAbs, rowAbs bool
}

func (r a1Ref) shift(dr, dc int) string {
	if !r.colAbs {
		r.col += dc
	}
	if !r.rowAbs {
		r.row += dr
	}
	if r.col < 0 || r.row < 0 {
		return "#REF!"
	}
	var sb strings.Builder
	if r.colAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(address.EncodeCol(r.col))
	if r.rowAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(address.EncodeRow(r.row))
	return sb.String()
}

// scanRef reads an A1 reference at the start of s.
func scanRef(s string) (a1Ref, int, bool) {
	var ref a1Ref
	i := 0
	if i < len(s) && s[i] == '$' {
		ref.colAbs = true
		i++
	}
	start := i
	for i < len(s) && isUpper(s[i]) {
		i++
	}
	if i == start || i-start > 3 {
		return ref, 0, false
	}
	col, err := address.DecodeCol(s[start:i])
	if err != nil {
		return ref, 0, false
	}
	if i < len(s) && s[i] == '$' {
		ref.rowAbs = true
		i++
	}
	start = i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return ref, 0, false
	}
	row, err := strconv.Atoi(s[start:i])
	if err != nil || row < 1 {
		return ref, 0, false
	}
	ref.col, ref.row = col, row-1
	return ref, i, true
}

func closeQuote(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func prevByte(s string, i int) byte {
	if i == 0 {
		return 0
	}
	return s[i-1]
}

func nextByte(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func identByte(c byte) bool {
	return isUpper(c) || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '.'
}

// refFollower reports whether c would make the preceding text a name or a
// function call rather than a reference.
func refFollower(c byte) bool {
	return identByte(c) || c == '('
}
