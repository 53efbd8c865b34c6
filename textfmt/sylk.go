package textfmt

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/internal/rcref"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const (
	opSYLKDecode = "sylk_decode"
	opSYLKEncode = "sheet_to_slk"
)

// sylkNewline stands for a line break inside a SYLK string.
const sylkNewline = "\x1b :"

// SYLKDecoder reads SYLK (Symbolic Link) files.
type SYLKDecoder struct{}

// Decode implements codec.Decoder.
func (SYLKDecoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return DecodeSYLK(data, req)
}

// SYLKEncoder writes SYLK files.
type SYLKEncoder struct{}

// Encode implements codec.Encoder.
func (SYLKEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return EncodeSYLK(wb, opts)
}

// sylkReader holds the decoding state. SYLK records carry the current row
// and column forward, so a C record may omit Y or X.
type sylkReader struct {
	opts     codec.ParseOptions
	limit    int
	ws       *model.Worksheet
	row, col int
	formats  []string
	cellFmt  map[address.Cell]int
	date1904 bool
}

// DecodeSYLK parses a SYLK file into a one sheet workbook.
func DecodeSYLK(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	text, err := decodeText(opSYLKDecode, data, req.Options.Codepage)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(text, "ID;") {
		return nil, sheeterr.New(sheeterr.TruncatedInput, opSYLKDecode, "missing ID record")
	}
	if !req.Stage.ParsesCells() {
		return newBook("sylk", nil)
	}

	r := &sylkReader{
		opts:    req.Options,
		limit:   rowLimit(req),
		ws:      req.Options.NewSheet(),
		cellFmt: make(map[address.Cell]int),
	}
	ended := false
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := splitSYLK(line)
		if fields[0] == "E" {
			ended = true
			break
		}
		if err := r.record(fields); err != nil {
			return nil, sheeterr.Wrap(sheeterr.KindOf(err), opSYLKDecode, fmt.Errorf("line %d: %w", n+1, err))
		}
	}
	if !ended {
		req.Options.Log().Warn("SYLK file has no E record", "op", opSYLKDecode)
	}
	r.applyFormats()

	wb, err := newBook("sylk", r.ws)
	if err != nil {
		return nil, err
	}
	if r.date1904 {
		wb.Settings = &model.Settings{Date1904: true}
	}
	return wb, nil
}

func (r *sylkReader) record(f []string) error {
	switch f[0] {
	case "ID", "B", "NN", "NE", "NU", "W":
	case "O":
		for _, v := range f[1:] {
			if v == "V4" {
				r.date1904 = true
			}
		}
	case "P":
		for _, v := range f[1:] {
			if strings.HasPrefix(v, "P") {
				r.formats = append(r.formats, v[1:])
			}
		}
	case "C":
		return r.cell(f[1:])
	case "F":
		return r.format(f[1:])
	default:
		if r.opts.WTF {
			return sheeterr.New(sheeterr.UnsupportedValue, opSYLKDecode, "unknown record %q", f[0])
		}
		r.opts.Log().Debug("skipping SYLK record", "op", opSYLKDecode, "record", f[0])
	}
	return nil
}

// position applies a Y or X field to the current position.
func (r *sylkReader) position(v string) (bool, error) {
	if v == "" || (v[0] != 'Y' && v[0] != 'X') {
		return false, nil
	}
	n, err := strconv.Atoi(v[1:])
	if err != nil || n < 1 {
		return true, sheeterr.New(sheeterr.InvalidAddress, opSYLKDecode, "bad position %q", v)
	}
	if v[0] == 'Y' {
		if n > address.MaxRows {
			return true, sheeterr.New(sheeterr.InvalidAddress, opSYLKDecode, "row %d out of range", n)
		}
		r.row = n - 1
	} else {
		if n > address.MaxCols {
			return true, sheeterr.New(sheeterr.InvalidAddress, opSYLKDecode, "column %d out of range", n)
		}
		r.col = n - 1
	}
	return true, nil
}

func (r *sylkReader) cell(fields []string) error {
	var (
		value   *string
		formula string
		comment string
	)
	for _, v := range fields {
		if ok, err := r.position(v); ok {
			if err != nil {
				return err
			}
			continue
		}
		if v == "" {
			continue
		}
		switch v[0] {
		case 'K':
			k := v[1:]
			value = &k
		case 'E':
			formula = v[1:]
		case 'A':
			comment = v[1:]
		}
	}
	if r.limit > 0 && r.row >= r.limit {
		return nil
	}

	addr := address.Cell{Row: r.row, Col: r.col}
	var c *model.Cell
	if value != nil {
		val, err := sylkValue(*value)
		if err != nil {
			return err
		}
		c = model.NewCell(val)
	}
	if formula != "" && r.opts.CellFormula {
		if c == nil {
			c = &model.Cell{}
		}
		c.Formula = rcref.ToA1(formula, addr)
	}
	if comment != "" {
		if c == nil {
			c = model.NewCell(model.Stub{})
		}
		c.AddComment(unescapeSYLK(comment), "")
	}
	if c == nil {
		if !r.opts.SheetStubs {
			return nil
		}
		c = model.NewCell(model.Stub{})
	}
	r.ws.SetCell(addr, c)
	return nil
}

func sylkValue(k string) (model.Value, error) {
	switch {
	case strings.HasPrefix(k, `"`):
		s := strings.TrimSuffix(k[1:], `"`)
		return model.String(unescapeSYLK(strings.ReplaceAll(s, `""`, `"`))), nil
	case k == "TRUE":
		return model.Bool(true), nil
	case k == "FALSE":
		return model.Bool(false), nil
	case strings.HasPrefix(k, "#"):
		if e, ok := model.ParseErrorCode(k); ok {
			return e, nil
		}
		return model.String(k), nil
	}
	f, err := strconv.ParseFloat(k, 64)
	if err != nil {
		return nil, sheeterr.New(sheeterr.UnsupportedValue, opSYLKDecode, "bad value %q", k)
	}
	return model.Number(f), nil
}

func (r *sylkReader) format(fields []string) error {
	fmtIdx := -1
	rowSel := -1
	for _, v := range fields {
		if ok, err := r.position(v); ok {
			if err != nil {
				return err
			}
			continue
		}
		if v == "" {
			continue
		}
		switch v[0] {
		case 'P':
			if n, err := strconv.Atoi(v[1:]); err == nil {
				fmtIdx = n
			}
		case 'W':
			// W<first> <last> <width in characters>
			parts := strings.Fields(v[1:])
			if len(parts) != 3 {
				continue
			}
			first, err1 := strconv.Atoi(parts[0])
			last, err2 := strconv.Atoi(parts[1])
			wch, err3 := strconv.ParseFloat(parts[2], 64)
			if err1 != nil || err2 != nil || err3 != nil || first < 1 || last < first || last > address.MaxCols {
				continue
			}
			for c := first - 1; c < last; c++ {
				r.ws.SetColInfo(c, model.ColInfo{WCH: wch, Hidden: wch == 0})
			}
		case 'M':
			if n, err := strconv.Atoi(v[1:]); err == nil {
				rowSel = n
			}
		case 'R':
			if n, err := strconv.Atoi(v[1:]); err == nil && n >= 1 && rowSel >= 0 {
				hpt := float64(rowSel) / 20
				r.ws.SetRowInfo(n-1, model.RowInfo{HPT: hpt, Hidden: hpt == 0})
			}
		}
	}
	if fmtIdx >= 0 {
		r.cellFmt[address.Cell{Row: r.row, Col: r.col}] = fmtIdx
	}
	return nil
}

// applyFormats attaches the picture formats to their cells once all cells
// are known, since F records may come before or after the C record.
func (r *sylkReader) applyFormats() {
	for addr, i := range r.cellFmt {
		c := r.ws.Cell(addr)
		if c == nil || i >= len(r.formats) {
			continue
		}
		code := r.formats[i]
		date := numfmt.IsDateFormat(code)
		if n, ok := c.Value.(model.Number); ok && date && r.opts.CellDates {
			c.Value = model.Date(numfmt.SerialToTime(float64(n), r.date1904))
		}
		if r.opts.CellNF || date {
			c.NumFmt = model.NumberFormat{Code: code}
			if id, ok := numfmt.BuiltinID(code); ok {
				c.NumFmt.ID = id
			}
		}
	}
	if !r.opts.CellText {
		return
	}
	for _, c := range r.ws.All() {
		if c.Value != nil {
			c.Text = numfmt.FormatCell(c, numfmt.Options{DateNF: r.opts.DateNF, Date1904: r.date1904})
		}
	}
}

// splitSYLK splits a record on ";" where ";;" stands for a literal ";".
func splitSYLK(line string) []string {
	var (
		out []string
		sb  strings.Builder
	)
	for i := 0; i < len(line); i++ {
		if line[i] == ';' {
			if i+1 < len(line) && line[i+1] == ';' {
				sb.WriteByte(';')
				i++
				continue
			}
			out = append(out, sb.String())
			sb.Reset()
			continue
		}
		sb.WriteByte(line[i])
	}
	return append(out, sb.String())
}

func unescapeSYLK(s string) string {
	return strings.ReplaceAll(s, sylkNewline, "\n")
}

func escapeSYLK(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", sylkNewline)
	return strings.ReplaceAll(s, ";", ";;")
}

// EncodeSYLK writes the selected sheet as SYLK.
func EncodeSYLK(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := SheetToSLK(ws, Options{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	return encodeText(opSYLKEncode, s, opts.Codepage)
}

// SheetToSLK renders ws as SYLK. Formulas are written in R1C1 form and
// every distinct number format becomes a picture record.
func SheetToSLK(ws *model.Worksheet, opts Options) (string, error) {
	if ws == nil {
		return "", sheeterr.New(sheeterr.InvalidOption, opSYLKEncode, "nil worksheet")
	}
	var (
		cells   []string
		formats []string
	)
	err := export.Walk(ws, export.WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		if c == nil {
			return nil
		}
		rec, ok := sylkCell(addr, c, opts.Date1904)
		if !ok {
			return nil
		}
		code := numfmt.Code(c.NumFmt)
		if _, isDate := c.Value.(model.Date); isDate && c.NumFmt.ID == 0 && c.NumFmt.Code == "" {
			code = dateCode(opts)
		}
		if code != "" && code != "General" {
			i := slices.Index(formats, code)
			if i < 0 {
				i = len(formats)
				formats = append(formats, code)
			}
			cells = append(cells, fmt.Sprintf("F;P%d;Y%d;X%d", i, addr.Row+1, addr.Col+1))
		}
		cells = append(cells, rec)
		return nil
	})
	if err != nil {
		return "", err
	}

	out := []string{"ID;PWXL;N;E"}
	if opts.Date1904 {
		out = append(out, "O;V4")
	}
	for _, code := range formats {
		out = append(out, "P;P"+escapeSYLK(code))
	}
	if ref, ok := ws.Ref(); ok {
		out = append(out, fmt.Sprintf("B;Y%d;X%d;D%d %d %d %d",
			ref.End.Row+1, ref.End.Col+1, ref.Start.Row, ref.Start.Col, ref.End.Row, ref.End.Col))
	}
	for i, col := range ws.Cols {
		switch {
		case col.Hidden:
			out = append(out, fmt.Sprintf("F;W%d %d 0", i+1, i+1))
		case col.WCH > 0:
			out = append(out, fmt.Sprintf("F;W%d %d %s", i+1, i+1, strconv.FormatFloat(col.WCH, 'f', -1, 64)))
		case col.Width > 0:
			out = append(out, fmt.Sprintf("F;W%d %d %s", i+1, i+1, strconv.FormatFloat(col.Width, 'f', -1, 64)))
		}
	}
	for i, row := range ws.Rows {
		switch {
		case row.Hidden:
			out = append(out, fmt.Sprintf("F;M0;R%d", i+1))
		case row.HPT > 0:
			out = append(out, fmt.Sprintf("F;M%d;R%d", int(row.HPT*20), i+1))
		}
	}
	out = append(out, cells...)
	out = append(out, "E")
	return strings.Join(out, "\r\n") + "\r\n", nil
}

// sylkCell renders the C record of one cell. Dates are written as serials
// so the picture format can display them.
func sylkCell(addr address.Cell, c *model.Cell, date1904 bool) (string, bool) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "C;Y%d;X%d", addr.Row+1, addr.Col+1)
	hasValue := true
	switch v := c.Value.(type) {
	case model.Number:
		sb.WriteString(";K" + numText(float64(v)))
	case model.Bool:
		if v {
			sb.WriteString(";KTRUE")
		} else {
			sb.WriteString(";KFALSE")
		}
	case model.ErrorCode:
		sb.WriteString(";K" + v.String())
	case model.String:
		sb.WriteString(`;K"` + escapeSYLK(strings.ReplaceAll(string(v), `"`, `""`)) + `"`)
	case model.Date:
		sb.WriteString(";K" + numText(numfmt.TimeToSerial(v.Time(), date1904)))
	default:
		hasValue = false
	}
	if c.Formula != "" {
		sb.WriteString(";E" + escapeSYLK(rcref.ToRC(c.Formula, addr)))
	} else if !hasValue && len(c.Comments) == 0 {
		return "", false
	}
	if len(c.Comments) > 0 {
		sb.WriteString(";A" + escapeSYLK(c.Comments[0].Text))
	}
	return sb.String(), true
}

func dateCode(opts Options) string {
	if opts.DateNF != "" {
		return opts.DateNF
	}
	code, _ := numfmt.Builtin(14)
	return code
}
