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

const (
	opDIFDecode = "dif_decode"
	opDIFEncode = "sheet_to_dif"
)

// DIFDecoder reads Data Interchange Format files.
type DIFDecoder struct{}

// Decode implements codec.Decoder.
func (DIFDecoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return DecodeDIF(data, req)
}

// DIFEncoder writes Data Interchange Format files.
type DIFEncoder struct{}

// Encode implements codec.Encoder.
func (DIFEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return EncodeDIF(wb, opts)
}

// DecodeDIF parses a DIF file. The header sections are skipped; each
// BOT directive of the data section starts a new row.
func DecodeDIF(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	text, err := decodeText(opDIFDecode, data, req.Options.Codepage)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "TABLE" {
		return nil, sheeterr.New(sheeterr.TruncatedInput, opDIFDecode, "missing TABLE header")
	}
	if !req.Stage.ParsesCells() {
		return newBook("dif", nil)
	}

	// Header items are three lines: topic, "vector,value" and a string.
	i, found := 0, false
	for ; i < len(lines); i += 3 {
		if strings.TrimSpace(lines[i]) == "DATA" {
			i += 3
			found = true
			break
		}
	}
	if !found {
		return nil, sheeterr.New(sheeterr.TruncatedInput, opDIFDecode, "missing DATA section")
	}

	opts := req.Options
	limit := rowLimit(req)
	ws := opts.NewSheet()
	row, col := -1, 0
	ended := false
	for ; i+1 < len(lines); i += 2 {
		kind, num, _ := strings.Cut(strings.TrimSpace(lines[i]), ",")
		str := strings.TrimSpace(lines[i+1])
		if kind == "-1" {
			switch str {
			case "BOT":
				row++
				col = 0
				continue
			case "EOD":
				ended = true
			}
			if ended {
				break
			}
			continue
		}
		if row < 0 {
			return nil, sheeterr.New(sheeterr.TruncatedInput, opDIFDecode, "line %d: value before BOT", i+1)
		}
		if limit > 0 && row >= limit {
			col++
			continue
		}
		if col >= address.MaxCols {
			return nil, sheeterr.New(sheeterr.InvalidAddress, opDIFDecode, "line %d: too many columns", i+1)
		}
		addr := address.Cell{Row: row, Col: col}
		col++

		c, err := difCell(kind, num, str, opts)
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.KindOf(err), opDIFDecode, fmt.Errorf("line %d: %w", i+1, err))
		}
		if c != nil {
			ws.SetCell(addr, c)
		}
	}
	if !ended {
		opts.Log().Warn("DIF file has no EOD directive", "op", opDIFDecode)
	}
	return newBook("dif", ws)
}

func difCell(kind, num, str string, opts codec.ParseOptions) (*model.Cell, error) {
	switch kind {
	case "0":
		switch str {
		case "V":
			f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil {
				return nil, sheeterr.New(sheeterr.UnsupportedValue, opDIFDecode, "bad number %q", num)
			}
			return model.NewCell(model.Number(f)), nil
		case "TRUE":
			return model.NewCell(model.Bool(true)), nil
		case "FALSE":
			return model.NewCell(model.Bool(false)), nil
		case "NA":
			return model.NewCell(model.ErrorNA), nil
		case "ERROR":
			return model.NewCell(model.ErrorValue), nil
		}
		if opts.WTF {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, opDIFDecode, "unknown value indicator %q", str)
		}
		opts.Log().Warn("unknown DIF value indicator", "op", opDIFDecode, "indicator", str)
		return nil, nil
	case "1":
		s := unquoteDIF(str)
		switch {
		case s == "":
			if opts.SheetStubs {
				return model.NewCell(model.Stub{}), nil
			}
			return nil, nil
		case opts.CellFormula && len(s) > 1 && s[0] == '=':
			return &model.Cell{Formula: s[1:]}, nil
		}
		return model.NewCell(model.String(s)), nil
	}
	return nil, sheeterr.New(sheeterr.UnsupportedValue, opDIFDecode, "unknown data type %q", kind)
}

func unquoteDIF(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `""`, `"`)
}

// EncodeDIF writes the selected sheet as DIF.
func EncodeDIF(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := SheetToDIF(ws, Options{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	return encodeText(opDIFEncode, s, opts.Codepage)
}

// SheetToDIF renders ws as DIF. Dates are written as their formatted text
// and error values as the NA or ERROR indicators.
func SheetToDIF(ws *model.Worksheet, opts Options) (string, error) {
	if ws == nil {
		return "", sheeterr.New(sheeterr.InvalidOption, opDIFEncode, "nil worksheet")
	}
	rows, cols := 0, 0
	if ref, ok := ws.Ref(); ok {
		rows, cols = ref.Rows(), ref.Cols()
	}
	out := []string{
		"TABLE", "0,1", `""`,
		"VECTORS", "0," + strconv.Itoa(cols), `""`,
		"TUPLES", "0," + strconv.Itoa(rows), `""`,
		"DATA", "0,0", `""`,
	}
	lastRow := -1
	err := export.Walk(ws, export.WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		if addr.Row != lastRow {
			out = append(out, "-1,0", "BOT")
			lastRow = addr.Row
		}
		out = append(out, difField(c, opts)...)
		return nil
	})
	if err != nil {
		return "", err
	}
	out = append(out, "-1,0", "EOD")
	return strings.Join(out, "\r\n"), nil
}

func difField(c *model.Cell, opts Options) []string {
	if c == nil {
		return []string{"1,0", `""`}
	}
	switch v := c.Value.(type) {
	case model.Number:
		return []string{"0," + numText(float64(v)), "V"}
	case model.Bool:
		if v {
			return []string{"0,1", "TRUE"}
		}
		return []string{"0,0", "FALSE"}
	case model.ErrorCode:
		if v == model.ErrorNA {
			return []string{"0,0", "NA"}
		}
		return []string{"0,0", "ERROR"}
	case model.String:
		return []string{"1,0", quoteDIF(string(v))}
	case model.Date:
		text := c.Text
		if text == "" {
			code := numfmt.Code(c.NumFmt)
			if code == "" || code == "General" {
				code = dateCode(opts)
			}
			text = numfmt.FormatValue(v, code, opts.Date1904)
		}
		return []string{"1,0", quoteDIF(text)}
	}
	return []string{"1,0", `""`}
}

// quoteDIF quotes a string field. DIF has no escape for line breaks, so
// they become spaces.
func quoteDIF(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
