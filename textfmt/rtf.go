package textfmt

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opRTFEncode = "sheet_to_rtf"

// RTFEncoder writes a sheet as an RTF table.
type RTFEncoder struct{}

// Encode implements codec.Encoder.
func (RTFEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := SheetToRTF(ws, Options{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// SheetToRTF renders ws as one RTF table row per sheet row, holding the
// formatted text of each cell.
func SheetToRTF(ws *model.Worksheet, opts Options) (string, error) {
	if ws == nil {
		return "", sheeterr.New(sheeterr.InvalidOption, opRTFEncode, "nil worksheet")
	}
	ref, ok := ws.Ref()
	if !ok {
		return `{\rtf1\ansi}`, nil
	}

	var sb strings.Builder
	sb.WriteString(`{\rtf1\ansi`)
	rowHeader := func() {
		sb.WriteString(`\trowd\trautofit1`)
		for c := ref.Start.Col; c <= ref.End.Col; c++ {
			sb.WriteString(`\cellx` + strconv.Itoa(c+1))
		}
		sb.WriteString(`\pard\intbl`)
	}

	lastRow := -1
	err := export.Walk(ws, export.WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		if addr.Row != lastRow {
			if lastRow >= 0 {
				sb.WriteString(`\pard\intbl\row`)
			}
			rowHeader()
			lastRow = addr.Row
		}
		sb.WriteByte(' ')
		if c != nil && c.Value != nil {
			if _, stub := c.Value.(model.Stub); !stub {
				sb.WriteByte(' ')
				sb.WriteString(rtfEscape(numfmt.FormatCell(c, numfmt.Options{DateNF: opts.DateNF, Date1904: opts.Date1904})))
			}
		}
		sb.WriteString(`\cell`)
		return nil
	})
	if err != nil {
		return "", err
	}
	if lastRow >= 0 {
		sb.WriteString(`\pard\intbl\row`)
	}
	sb.WriteString("}")
	return sb.String(), nil
}

// rtfEscape escapes control characters and writes non-ASCII runes as \u
// control words with a "?" fallback.
func rtfEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '{' || r == '}':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\line `)
		case r < 0x80:
			sb.WriteRune(r)
		default:
			for _, u := range utf16.Encode([]rune{r}) {
				sb.WriteString(`\u` + strconv.Itoa(int(int16(u))) + "?")
			}
		}
	}
	return sb.String()
}
