package textfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opETHEncode = "sheet_to_eth"

const (
	ethHeader = "socialcalc:version:1.5\n" +
		"MIME-Version: 1.0\n" +
		"Content-Type: multipart/mixed; boundary=SocialCalcSpreadsheetControlSave"
	ethSep = "--SocialCalcSpreadsheetControlSave\n" +
		"Content-type: text/plain; charset=UTF-8\n"
	ethMeta = "# SocialCalc Spreadsheet Control Save\n" +
		"part:sheet"
	ethEnd = "--SocialCalcSpreadsheetControlSave--"
)

// ETHEncoder writes EtherCalc (SocialCalc save) documents.
type ETHEncoder struct{}

// Encode implements codec.Encoder.
func (ETHEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := SheetToETH(ws, Options{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// SheetToETH renders ws as a SocialCalc save document. Error cells are left
// out; SocialCalc has no literal error value.
func SheetToETH(ws *model.Worksheet, opts Options) (string, error) {
	if ws == nil {
		return "", sheeterr.New(sheeterr.InvalidOption, opETHEncode, "nil worksheet")
	}
	data, err := ethData(ws, opts)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{ethHeader, ethSep, ethMeta, ethSep, data, ethEnd}, "\n"), nil
}

func ethData(ws *model.Worksheet, opts Options) (string, error) {
	ref, ok := ws.Ref()
	if !ok {
		return "", nil
	}
	lines := []string{"version:1.5"}
	err := export.Walk(ws, export.WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		if c == nil {
			return nil
		}
		line, ok := ethCell(addr, c, opts)
		if !ok {
			return nil
		}
		if m, merged := ws.MergeAt(addr); merged && m.Start == addr {
			if m.Cols() > 1 {
				line += ":colspan:" + strconv.Itoa(m.Cols())
			}
			if m.Rows() > 1 {
				line += ":rowspan:" + strconv.Itoa(m.Rows())
			}
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return "", err
	}
	lines = append(lines,
		fmt.Sprintf("sheet:c:%d:r:%d:tvf:1", ref.Cols(), ref.Rows()),
		"valueformat:1:text-wiki")
	return strings.Join(lines, "\n"), nil
}

func ethCell(addr address.Cell, c *model.Cell, opts Options) (string, bool) {
	coord := addr.String()
	switch v := c.Value.(type) {
	case model.String:
		return "cell:" + coord + ":t:" + ethEscape(string(v)), true
	case model.Number:
		if c.Formula == "" {
			return "cell:" + coord + ":v:" + numText(float64(v)), true
		}
		return "cell:" + coord + ":vtf:n:" + numText(float64(v)) + ":" + ethEscape(c.Formula), true
	case model.Bool:
		n, text := "0", "FALSE"
		if v {
			n, text = "1", "TRUE"
		}
		kind := "vt"
		if c.Formula != "" {
			kind, text = "vtf", c.Formula
		}
		return "cell:" + coord + ":" + kind + ":nl:" + n + ":" + ethEscape(text), true
	case model.Date:
		serial := numfmt.TimeToSerial(v.Time(), opts.Date1904)
		text := c.Text
		if text == "" {
			code := numfmt.Code(c.NumFmt)
			if code == "" || code == "General" {
				code = dateCode(opts)
			}
			text = numfmt.FormatValue(v, code, opts.Date1904)
		}
		return "cell:" + coord + ":vtc:nd:" + numText(serial) + ":" + ethEscape(text), true
	}
	return "", false
}

// ethEscape applies the SocialCalc field escapes.
func ethEscape(s string) string {
	return strings.NewReplacer(`\`, `\b`, ":", `\c`, "\n", `\n`).Replace(s)
}
