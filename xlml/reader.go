package xlml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/internal/rcref"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opDecode = "xlml_decode"

// namedFormats maps the SpreadsheetML format names to format codes.
var namedFormats = map[string]string{
	"General":         "General",
	"General Number":  "General",
	"General Date":    "m/d/yy h:mm",
	"Long Date":       "dddd, mmmm dd, yyyy",
	"Medium Date":     "dd-mmm-yy",
	"Short Date":      "m/d/yy",
	"Long Time":       "h:mm:ss AM/PM",
	"Medium Time":     "h:mm AM/PM",
	"Short Time":      "h:mm",
	"Currency":        `"$"#,##0.00_);[Red]\("$"#,##0.00\)`,
	"Euro Currency":   `"€"#,##0.00`,
	"Fixed":           "0.00",
	"Standard":        "#,##0.00",
	"Percent":         "0.00%",
	"Scientific":      "0.00E+00",
	"Yes/No":          `"Yes";"Yes";"No"`,
	"True/False":      `"True";"True";"False"`,
	"On/Off":          `"Yes";"Yes";"No"`,
	"0.00E+00":        "0.00E+00",
	"@":               "@",
	"Short Date Time": "m/d/yy h:mm",
}

// Decoder reads SpreadsheetML 2003 documents.
type Decoder struct{}

// Decode implements codec.Decoder.
func (Decoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return Decode(data, req)
}

// Decode parses a SpreadsheetML document.
func Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	if !req.Stage.ParsesCells() {
		var doc outlineXML
		if err := unmarshal(data, &doc); err != nil {
			return nil, err
		}
		wb := newBook(doc.Props, doc.Custom, doc.Excel, req.Options)
		for i, s := range doc.Sheets {
			wb.SheetNames = append(wb.SheetNames, s.Name)
			setVisibility(wb, i, s.Options)
		}
		wb.Settings.Names = definedNames(doc.Names, nil)
		return wb, nil
	}

	var doc workbookXML
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	r := &reader{
		opts:   req.Options,
		limit:  rowLimit(req),
		styles: styleFormats(doc.Styles),
	}
	wb := newBook(doc.Props, doc.Custom, doc.Excel, req.Options)
	r.date1904 = wb.Settings.Date1904
	wb.Settings.Names = definedNames(doc.Names, nil)

	for i, s := range doc.Sheets {
		if !req.Options.Wants(s.Name, i) {
			continue
		}
		ws, err := r.sheet(s)
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.KindOf(err), opDecode, fmt.Errorf("sheet %q: %w", s.Name, err))
		}
		if _, err := wb.AppendSheet(ws, s.Name); err != nil {
			return nil, err
		}
		j := len(wb.SheetNames) - 1
		setVisibility(wb, j, s.Options)
		if s.Options.RightToLeft != nil && j == 0 {
			wb.Settings.Views = []model.View{{RTL: true}}
		}
		wb.Settings.Names = append(wb.Settings.Names, definedNames(s.Names, &j)...)
	}
	return wb, nil
}

// unmarshal decodes the document, honoring its declared encoding. UTF-16
// input is recognized by its byte order mark.
func unmarshal(data []byte, v any) error {
	var in io.Reader = bytes.NewReader(data)
	utf16 := bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
	if utf16 || bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		in = transform.NewReader(in, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}
	dec := xml.NewDecoder(in)
	dec.Strict = false
	dec.CharsetReader = func(label string, r io.Reader) (io.Reader, error) {
		if utf16 || strings.HasPrefix(strings.ToLower(label), "utf-16") {
			return r, nil
		}
		return charset.NewReaderLabel(label, r)
	}
	if err := dec.Decode(v); err != nil {
		return sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, fmt.Errorf("parsing workbook: %w", err))
	}
	return nil
}

func rowLimit(req codec.DecodeRequest) int {
	if req.Stage == codec.StageRows {
		return req.Options.SheetRows
	}
	return 0
}

func newBook(p docPropsXML, custom customPropsXML, excel excelWorkbookXML, opts codec.ParseOptions) *model.Workbook {
	wb := model.NewWorkbook()
	wb.BookType = "xlml"
	wb.Settings = &model.Settings{Date1904: excel.Date1904 != nil}
	wb.Props = properties(p)
	wb.Custprops = customProperties(custom, opts)
	return wb
}

func properties(p docPropsXML) *model.Properties {
	props := model.Properties{
		Title:      p.Title,
		Subject:    p.Subject,
		Author:     p.Author,
		Keywords:   p.Keywords,
		Comments:   p.Description,
		LastAuthor: p.LastAuthor,
		Category:   p.Category,
		Manager:    p.Manager,
		Company:    p.Company,
		AppVersion: p.Version,
	}
	props.CreatedDate, _ = time.Parse(time.RFC3339, p.Created)
	props.ModifiedDate, _ = time.Parse(time.RFC3339, p.LastSaved)
	if props == (model.Properties{}) {
		return nil
	}
	return &props
}

func customProperties(c customPropsXML, opts codec.ParseOptions) map[string]any {
	if len(c.Props) == 0 {
		return nil
	}
	out := make(map[string]any, len(c.Props))
	for _, p := range c.Props {
		name := unescapeName(p.XMLName.Local)
		switch p.Type {
		case "float", "number", "i4", "int":
			if f, err := strconv.ParseFloat(p.Value, 64); err == nil {
				out[name] = f
				continue
			}
		case "boolean":
			out[name] = flag(p.Value)
			continue
		case "dateTime.tz", "dateTime":
			if t, err := time.Parse(time.RFC3339, p.Value); err == nil {
				out[name] = t
				continue
			}
		case "string", "":
		default:
			opts.Log().Debug("custom property kept as text", "op", opDecode, "name", name, "type", p.Type)
		}
		out[name] = p.Value
	}
	return out
}

func setVisibility(wb *model.Workbook, i int, o optionsXML) {
	switch o.Visible {
	case "SheetHidden":
		_ = wb.SetSheetVisibilityAt(i, model.Hidden)
	case "SheetVeryHidden":
		_ = wb.SetSheetVisibilityAt(i, model.VeryHidden)
	}
}

// definedNames converts named ranges. scope is nil for workbook names.
func definedNames(names []namedRangeXML, scope *int) []model.DefinedName {
	var out []model.DefinedName
	for _, n := range names {
		ref := strings.TrimPrefix(n.RefersTo, "=")
		out = append(out, model.DefinedName{
			Name:   n.Name,
			Ref:    rcref.ToA1(ref, address.Cell{}),
			Sheet:  scope,
			Hidden: flag(n.Hidden),
		})
	}
	return out
}

// styleFormats resolves the number format code of every style, following
// ss:Parent chains.
func styleFormats(styles []styleXML) map[string]string {
	byID := make(map[string]styleXML, len(styles))
	for _, s := range styles {
		byID[s.ID] = s
	}
	out := make(map[string]string, len(styles))
	for _, s := range styles {
		cur, seen := s, 0
		for cur.NumberFormat == nil && cur.Parent != "" && seen < len(styles) {
			cur = byID[cur.Parent]
			seen++
		}
		if cur.NumberFormat == nil {
			continue
		}
		code := cur.NumberFormat.Format
		if named, ok := namedFormats[code]; ok {
			code = named
		}
		out[s.ID] = code
	}
	return out
}

type reader struct {
	opts     codec.ParseOptions
	limit    int
	styles   map[string]string
	date1904 bool
}

func (r *reader) sheet(s worksheetXML) (*model.Worksheet, error) {
	ws := r.opts.NewSheet()
	if flag(s.Protected) || flag(s.Options.ProtectContents) {
		ws.Protect = &model.ProtectInfo{Objects: !flag(s.Options.ProtectObjects)}
	}
	if m := s.Options.Margins; m != nil {
		margins := model.DefaultMargins()
		margins.Left, margins.Right, margins.Top, margins.Bottom = m.Left, m.Right, m.Top, m.Bottom
		if s.Options.Header != nil {
			margins.Header = s.Options.Header.Margin
		}
		if s.Options.Footer != nil {
			margins.Footer = s.Options.Footer.Margin
		}
		ws.Margins = &margins
	}
	if s.Table == nil {
		return ws, nil
	}

	col := 0
	for _, c := range s.Table.Columns {
		if c.Index > 0 {
			col = c.Index - 1
		}
		span := max(c.Span, 0) + 1
		var info model.ColInfo
		set := false
		if c.Width > 0 {
			info.WPX = c.Width * 96 / 72
			info.MDW = 7
			info.Width = info.WPX / info.MDW
			set = true
		}
		if flag(c.Hidden) {
			info.Hidden, set = true, true
		}
		for i := 0; i < span && col < address.MaxCols; i++ {
			if set {
				ws.SetColInfo(col, info)
			}
			col++
		}
	}

	row := 0
	for _, rx := range s.Table.Rows {
		if rx.Index > 0 {
			row = rx.Index - 1
		}
		if row >= address.MaxRows {
			return nil, sheeterr.New(sheeterr.InvalidAddress, opDecode, "row %d out of range", row+1)
		}
		if r.limit > 0 && row >= r.limit {
			break
		}
		if rx.Height > 0 || flag(rx.Hidden) {
			ws.SetRowInfo(row, model.RowInfo{HPT: rx.Height, HPX: rx.Height * 96 / 72, Hidden: flag(rx.Hidden)})
		}
		if err := r.row(ws, row, rx.Cells); err != nil {
			return nil, err
		}
		row++
	}

	if s.AutoFilter != nil && s.AutoFilter.Range != "" {
		ref := rcref.ToA1(s.AutoFilter.Range, address.Cell{})
		if rng, err := address.DecodeRange(strings.ReplaceAll(ref, "$", "")); err == nil {
			ws.AutoFilter = &model.AutoFilter{Ref: rng}
		}
	}
	return ws, nil
}

func (r *reader) row(ws *model.Worksheet, row int, cells []cellXML) error {
	col := 0
	for _, cx := range cells {
		if cx.Index > 0 {
			col = cx.Index - 1
		}
		if col >= address.MaxCols {
			return sheeterr.New(sheeterr.InvalidAddress, opDecode, "column %d out of range", col+1)
		}
		addr := address.Cell{Row: row, Col: col}
		if cx.MergeAcross > 0 || cx.MergeDown > 0 {
			end := addr.Offset(cx.MergeDown, cx.MergeAcross)
			ws.Merges = append(ws.Merges, address.NewRange(addr, end))
		}
		c, err := r.cell(cx, addr)
		if err != nil {
			return fmt.Errorf("cell %s: %w", addr, err)
		}
		if c != nil {
			ws.SetCell(addr, c)
			if cx.ArrayRange != "" && c.Formula != "" {
				ref := rcref.ToA1(cx.ArrayRange, addr)
				if rng, err := address.DecodeRange(strings.ReplaceAll(ref, "$", "")); err == nil {
					ws.SetArrayFormula(rng, c.Formula)
				}
			}
		}
		col += cx.MergeAcross + 1
	}
	return nil
}

func (r *reader) cell(cx cellXML, addr address.Cell) (*model.Cell, error) {
	code := r.styles[cx.StyleID]
	if cx.Data != nil && cx.Data.Type == "DateTime" && code == "" {
		code, _ = numfmt.Builtin(14)
	}
	var c *model.Cell
	if d := cx.Data; d != nil {
		v, err := r.value(d, code)
		if err != nil {
			return nil, err
		}
		if v != nil {
			c = model.NewCell(v)
			if d.Rich && r.opts.CellHTML {
				c.HTML = d.HTML
			}
		}
	}
	if cx.Formula != "" && r.opts.CellFormula {
		if c == nil {
			c = &model.Cell{}
		}
		c.Formula = rcref.ToA1(strings.TrimPrefix(cx.Formula, "="), addr)
	}
	if cx.Comment != nil {
		if c == nil {
			c = model.NewCell(model.Stub{})
		}
		c.AddComment(strings.TrimSpace(cx.Comment.Data.Text), cx.Comment.Author)
		c.CommentsHidden = !flag(cx.Comment.ShowAlways)
	}
	if cx.HRef != "" {
		if c == nil {
			c = model.NewCell(model.Stub{})
		}
		c.Link = &model.Hyperlink{Target: cx.HRef, Tooltip: cx.ScreenTip}
	}
	if c == nil {
		if !r.opts.SheetStubs {
			return nil, nil
		}
		c = model.NewCell(model.Stub{})
	}

	date := code != "" && numfmt.IsDateFormat(code)
	if n, ok := c.Value.(model.Number); ok && date && r.opts.CellDates {
		c.Value = model.Date(numfmt.SerialToTime(float64(n), r.date1904))
	}
	if code != "" && code != "General" && (r.opts.CellNF || date) {
		c.NumFmt = numberFormat(code)
	}
	if r.opts.CellText && c.Value != nil {
		if code != "" && code != "General" {
			c.Text = numfmt.FormatValue(c.Value, code, r.date1904)
		} else {
			c.Text = numfmt.FormatCell(c, numfmt.Options{DateNF: r.opts.DateNF, Date1904: r.date1904})
		}
	}
	return c, nil
}

func (r *reader) value(d *dataXML, code string) (model.Value, error) {
	switch d.Type {
	case "Number":
		f, err := strconv.ParseFloat(strings.TrimSpace(d.Text), 64)
		if err != nil {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "bad number %q", d.Text)
		}
		return model.Number(f), nil
	case "Boolean":
		return model.Bool(flag(d.Text)), nil
	case "String":
		return model.String(d.Text), nil
	case "Error":
		if e, ok := model.ParseErrorCode(strings.TrimSpace(d.Text)); ok {
			return e, nil
		}
		if r.opts.WTF {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "unknown error %q", d.Text)
		}
		return model.ErrorValue, nil
	case "DateTime":
		t, err := time.Parse(dateFmt, strings.TrimSpace(d.Text))
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05", strings.TrimSpace(d.Text))
		}
		if err != nil {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "bad date %q", d.Text)
		}
		if r.opts.CellDates {
			return model.Date(t), nil
		}
		return model.Number(numfmt.TimeToSerial(t, r.date1904)), nil
	}
	if r.opts.WTF {
		return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "unknown data type %q", d.Type)
	}
	r.opts.Log().Warn("unknown data type read as text", "op", opDecode, "type", d.Type)
	return model.String(d.Text), nil
}

func numberFormat(code string) model.NumberFormat {
	if id, ok := numfmt.BuiltinID(code); ok {
		return model.NumberFormat{ID: id}
	}
	return model.NumberFormat{Code: code}
}
