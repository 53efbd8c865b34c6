package ods

import (
	"regexp"
	"strconv"
	"strings"
)

// formulaPrefixes are the namespace prefixes ODF producers put in front of
// table:formula values.
var formulaPrefixes = []string{"of:=", "oooc:=", "msoxl:=", "="}

// a1Ref matches an A1 reference or range, optionally sheet qualified, at the
// start of the input.
var a1Ref = regexp.MustCompile(`^(?:('(?:[^']|'')+'|[A-Za-z_][A-Za-z0-9_.]*)!)?\$?[A-Za-z]{1,3}\$?[0-9]+(?::\$?[A-Za-z]{1,3}\$?[0-9]+)?`)

// fromODF converts an OpenFormula expression to A1 syntax: bracketed
// references lose their brackets and dots, sheet names move in front of a
// "!" and argument separators become commas.
func fromODF(f string) string {
	for _, p := range formulaPrefixes {
		if strings.HasPrefix(f, p) {
			f = f[len(p):]
			break
		}
	}
	var sb strings.Builder
	for i := 0; i < len(f); i++ {
		switch c := f[i]; c {
		case '"':
			j := closeQuote(f, i)
			sb.WriteString(f[i:j])
			i = j - 1
		case '[':
			j := strings.IndexByte(f[i:], ']')
			if j < 0 {
				sb.WriteString(f[i:])
				return sb.String()
			}
			sb.WriteString(fromODFRef(f[i+1 : i+j]))
			i += j
		case ';':
			sb.WriteByte(',')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// fromODFRef converts the inside of a bracketed reference, such as
// ".A1:.B2" or "$Sheet2.$A$1".
func fromODFRef(ref string) string {
	sheet, cells := splitODFRange(ref)
	if sheet == "" {
		return cells
	}
	return quoteSheet(sheet) + "!" + cells
}

// splitODFRange splits an ODF range address into its sheet name, taken
// from the first part, and the A1 cells with absolute markers kept.
func splitODFRange(ref string) (sheet, cells string) {
	parts := splitOutsideQuotes(ref, ':')
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		s, cell := splitSheetCell(p)
		if i == 0 {
			sheet = s
		}
		out = append(out, cell)
	}
	return sheet, strings.Join(out, ":")
}

// splitSheetCell splits "$'My Sheet'.$A$1" at the last dot outside quotes.
func splitSheetCell(p string) (sheet, cell string) {
	dot := -1
	quoted := false
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\'':
			quoted = !quoted
		case '.':
			if !quoted {
				dot = i
			}
		}
	}
	if dot < 0 {
		return "", p
	}
	sheet = strings.TrimPrefix(p[:dot], "$")
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, p[dot+1:]
}

func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			quoted = !quoted
		case sep:
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// toODF converts an A1 formula to OpenFormula with the "of:=" prefix.
func toODF(f string) string {
	var sb strings.Builder
	sb.WriteString("of:=")
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c == '"' {
			j := closeQuote(f, i)
			sb.WriteString(f[i:j])
			i = j - 1
			continue
		}
		if c == ',' {
			sb.WriteByte(';')
			continue
		}
		if i == 0 || !isNameByte(f[i-1]) {
			if m := a1Ref.FindString(f[i:]); m != "" {
				next := i + len(m)
				if next >= len(f) || (f[next] != '(' && !isNameByte(f[next])) {
					sb.WriteString("[" + toODFRef(m) + "]")
					i = next - 1
					continue
				}
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// toODFRef converts "Sheet2!A1:B2" to "Sheet2.A1:.B2" and "A1" to ".A1".
func toODFRef(ref string) string {
	sheet := ""
	if i := strings.LastIndexByte(ref, '!'); i >= 0 {
		sheet, ref = ref[:i], ref[i+1:]
	}
	parts := strings.Split(ref, ":")
	for i, p := range parts {
		if i == 0 {
			parts[i] = sheet + "." + p
		} else {
			parts[i] = "." + p
		}
	}
	return strings.Join(parts, ":")
}

// rangeAddress renders a sheet range for table:cell-range-address.
func rangeAddress(sheet, cells string) string {
	s := "$" + odfSheet(sheet)
	parts := strings.Split(cells, ":")
	for i, p := range parts {
		if i == 0 {
			parts[i] = s + "." + p
		} else {
			parts[i] = "." + p
		}
	}
	return strings.Join(parts, ":")
}

// odfSheet quotes a sheet name for an ODF address when needed.
func odfSheet(name string) string {
	if strings.ContainsAny(name, " .'!:$-") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

// quoteSheet quotes a sheet name for an A1 reference when needed.
func quoteSheet(name string) string {
	if name == "" {
		return name
	}
	for _, r := range name {
		if !(r == '_' || r == '.' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r > 0x7f) {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "'" + name + "'"
	}
	return name
}

// closeQuote returns the index just past the string literal starting at i.
func closeQuote(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] == '"' {
			if j+1 < len(s) && s[j+1] == '"' {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(s)
}

func isNameByte(c byte) bool {
	return c == '_' || c == '.' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// parseLength converts an ODF length such as "2.258cm" to points.
func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	i := 0
	for ; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' {
			break
		}
	}
	if i == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(s[i:]) {
	case "in":
		return v * 72
	case "cm":
		return v * 28.3465
	case "mm":
		return v * 2.83465
	case "px":
		return v * 0.75
	case "pc":
		return v * 12
	default:
		return v
	}
}
