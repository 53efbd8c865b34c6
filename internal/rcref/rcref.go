// Package rcref converts formula references between A1 and R1C1 notation.
//
// R1C1 references are written relative to a base cell: R[1]C[-1] is one
// row down and one column left, R2C3 is the absolute cell $C$2 and a bare R
// or C means the base row or column.
package rcref

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tsawler/cellar/address"
)

var (
	a1Cell = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})(\$?)([0-9]{1,7})`)
	rcCell = regexp.MustCompile(`^[Rr](\[-?[0-9]+\]|[0-9]+)?[Cc](\[-?[0-9]+\]|[0-9]+)?`)
)

// ToRC rewrites the A1 references of formula relative to base, e.g.
// "B2+$A$1" at A1 becomes "R[1]C[1]+R1C1".
func ToRC(formula string, base address.Cell) string {
	return rewriteRefs(formula, a1Cell, func(m []string) (string, bool) {
		col, err := address.DecodeCol(m[2])
		if err != nil || col >= address.MaxCols {
			return "", false
		}
		row, err := strconv.Atoi(m[4])
		if err != nil || row < 1 || row > address.MaxRows {
			return "", false
		}
		r := rcPart("R", row-1, base.Row, m[3] == "$")
		c := rcPart("C", col, base.Col, m[1] == "$")
		return r + c, true
	})
}

func rcPart(axis string, v, base int, abs bool) string {
	switch {
	case abs:
		return axis + strconv.Itoa(v+1)
	case v == base:
		return axis
	default:
		return axis + "[" + strconv.Itoa(v-base) + "]"
	}
}

// ToA1 rewrites R1C1 references relative to base back to A1 form.
func ToA1(formula string, base address.Cell) string {
	return rewriteRefs(formula, rcCell, func(m []string) (string, bool) {
		row, rabs, ok := rcAxis(m[1], base.Row)
		if !ok {
			return "", false
		}
		col, cabs, ok := rcAxis(m[2], base.Col)
		if !ok || row < 0 || col < 0 || row >= address.MaxRows || col >= address.MaxCols {
			return "", false
		}
		var sb strings.Builder
		if cabs {
			sb.WriteByte('$')
		}
		sb.WriteString(address.EncodeCol(col))
		if rabs {
			sb.WriteByte('$')
		}
		sb.WriteString(strconv.Itoa(row + 1))
		return sb.String(), true
	})
}

func rcAxis(s string, base int) (v int, abs, ok bool) {
	switch {
	case s == "":
		return base, false, true
	case s[0] == '[':
		n, err := strconv.Atoi(s[1 : len(s)-1])
		return base + n, false, err == nil
	default:
		n, err := strconv.Atoi(s)
		return n - 1, true, err == nil
	}
}

// rewriteRefs replaces every match of re that stands alone as a reference:
// outside string literals, not inside a longer name, not a function name and
// not a sheet qualifier.
func rewriteRefs(f string, re *regexp.Regexp, conv func([]string) (string, bool)) string {
	var sb strings.Builder
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c == '"' {
			j := i + 1
			for j < len(f) {
				if f[j] == '"' {
					if j+1 < len(f) && f[j+1] == '"' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			j = min(j+1, len(f))
			sb.WriteString(f[i:j])
			i = j - 1
			continue
		}
		if i == 0 || !isNameByte(f[i-1]) {
			if m := re.FindStringSubmatch(f[i:]); m != nil {
				next := i + len(m[0])
				if next >= len(f) || (f[next] != '(' && f[next] != '!' && !isNameByte(f[next])) {
					if s, ok := conv(m); ok {
						sb.WriteString(s)
						i = next - 1
						continue
					}
				}
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func isNameByte(c byte) bool {
	return c == '_' || c == '.' || c == '\'' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
