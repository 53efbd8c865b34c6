// Package numfmt renders cell values as display text using Excel number
// format codes.
//
// The package provides the default [Formatter] used by the export package,
// the table of builtin format ids, date format detection and conversion
// between date serials and time.Time in both the 1900 and 1904 date systems.
// Format codes are tokenized with github.com/xuri/nfp.
package numfmt

import "github.com/tsawler/cellar/model"

// builtin maps the implicit format ids every OOXML/BIFF reader knows about.
var builtin = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "m/d/yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

// Builtin returns the format code for a builtin id.
func Builtin(id int) (string, bool) {
	code, ok := builtin[id]
	return code, ok
}

// BuiltinID returns the builtin id of a format code, if it has one.
func BuiltinID(code string) (int, bool) {
	for id, c := range builtin {
		if c == code {
			return id, true
		}
	}
	return 0, false
}

// Code resolves a cell number format to its format code. Unknown ids
// resolve to "General".
func Code(f model.NumberFormat) string {
	if f.Code != "" {
		return f.Code
	}
	if code, ok := builtin[f.ID]; ok {
		return code
	}
	return "General"
}

// DefaultDateFormat is the builtin id 14 code used for dates without an
// explicit format.
const DefaultDateFormat = "m/d/yy"
