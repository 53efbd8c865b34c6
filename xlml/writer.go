package xlml

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/internal/rcref"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opEncode = "xlml_encode"

// Encoder writes SpreadsheetML 2003 documents.
type Encoder struct{}

// Encode implements codec.Encoder.
func (Encoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return Encode(wb, opts)
}

type writer struct {
	wb     *model.Workbook
	opts   codec.WriteOptions
	log    *slog.Logger
	styles []string // number format code per style, styled "s<index+21>"
}

// Encode writes every sheet of wb into one SpreadsheetML document.
func Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	if wb == nil || len(wb.SheetNames) == 0 {
		return nil, sheeterr.New(sheeterr.EmptyWorkbook, opEncode, "workbook has no sheets")
	}
	w := &writer{wb: wb, opts: opts, log: opts.Log()}

	// Sheets are rendered first so the style table is complete.
	var sheets strings.Builder
	for i, name := range wb.SheetNames {
		ws := wb.Sheets[name]
		if ws == nil {
			return nil, sheeterr.New(sheeterr.SheetNotFound, opEncode, "sheet %q listed but missing", name)
		}
		if err := w.sheet(&sheets, i, name, ws); err != nil {
			return nil, err
		}
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<?mso-application progid="Excel.Sheet"?>` + "\n")
	sb.WriteString(`<Workbook xmlns="` + nsSS + `" xmlns:o="` + nsO + `" xmlns:x="` + nsX +
		`" xmlns:ss="` + nsSS + `" xmlns:dt="` + nsDT + `" xmlns:html="` + nsHTML + `">`)
	w.properties(&sb)
	w.customProperties(&sb)
	if wb.Date1904() {
		sb.WriteString(`<ExcelWorkbook xmlns="` + nsX + `"><Date1904/></ExcelWorkbook>`)
	}
	w.styleTable(&sb)
	w.names(&sb)
	sb.WriteString(sheets.String())
	sb.WriteString("</Workbook>")
	return []byte(sb.String()), nil
}

func (w *writer) properties(sb *strings.Builder) {
	p := w.opts.Props
	if p == nil {
		p = w.wb.Props
	}
	if p == nil {
		return
	}
	sb.WriteString(`<DocumentProperties xmlns="` + nsO + `">`)
	element(sb, "Title", p.Title)
	element(sb, "Subject", p.Subject)
	element(sb, "Author", p.Author)
	element(sb, "Keywords", p.Keywords)
	element(sb, "Description", p.Comments)
	element(sb, "LastAuthor", p.LastAuthor)
	if !p.CreatedDate.IsZero() {
		element(sb, "Created", p.CreatedDate.UTC().Format(time.RFC3339))
	}
	if !p.ModifiedDate.IsZero() {
		element(sb, "LastSaved", p.ModifiedDate.UTC().Format(time.RFC3339))
	}
	element(sb, "Category", p.Category)
	element(sb, "Manager", p.Manager)
	element(sb, "Company", p.Company)
	element(sb, "Version", p.AppVersion)
	sb.WriteString("</DocumentProperties>")
}

func (w *writer) customProperties(sb *strings.Builder) {
	if len(w.wb.Custprops) == 0 {
		return
	}
	keys := make([]string, 0, len(w.wb.Custprops))
	for k := range w.wb.Custprops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sb.WriteString(`<CustomDocumentProperties xmlns="` + nsO + `">`)
	for _, k := range keys {
		name := escapeName(k)
		var typ, val string
		switch v := w.wb.Custprops[k].(type) {
		case bool:
			typ, val = "boolean", "0"
			if v {
				val = "1"
			}
		case int:
			typ, val = "float", strconv.Itoa(v)
		case int64:
			typ, val = "float", strconv.FormatInt(v, 10)
		case float64:
			typ, val = "float", strconv.FormatFloat(v, 'f', -1, 64)
		case time.Time:
			typ, val = "dateTime.tz", v.UTC().Format(time.RFC3339)
		default:
			typ, val = "string", fmt.Sprint(v)
		}
		sb.WriteString("<" + name + ` dt:dt="` + typ + `">` + esc(val) + "</" + name + ">")
	}
	sb.WriteString("</CustomDocumentProperties>")
}

func (w *writer) styleTable(sb *strings.Builder) {
	sb.WriteString(`<Styles><Style ss:ID="Default" ss:Name="Normal"><Alignment ss:Vertical="Bottom"/></Style>`)
	for i, code := range w.styles {
		sb.WriteString(`<Style ss:ID="` + styleID(i) + `"><NumberFormat ss:Format="` + esc(code) + `"/></Style>`)
	}
	sb.WriteString("</Styles>")
}

func styleID(i int) string {
	return "s" + strconv.Itoa(i+21)
}

// style returns the style id for a number format code, adding it to the
// table on first use.
func (w *writer) style(code string) string {
	for i, c := range w.styles {
		if c == code {
			return styleID(i)
		}
	}
	w.styles = append(w.styles, code)
	return styleID(len(w.styles) - 1)
}

func (w *writer) names(sb *strings.Builder) {
	if w.wb.Settings == nil {
		return
	}
	var global []model.DefinedName
	for _, n := range w.wb.Settings.Names {
		if n.Sheet == nil {
			global = append(global, n)
		}
	}
	writeNames(sb, global)
}

func writeNames(sb *strings.Builder, names []model.DefinedName) {
	if len(names) == 0 {
		return
	}
	sb.WriteString("<Names>")
	for _, n := range names {
		sb.WriteString(`<NamedRange ss:Name="` + esc(n.Name) + `" ss:RefersTo="=` + esc(rcref.ToRC(n.Ref, address.Cell{})) + `"`)
		if n.Hidden {
			sb.WriteString(` ss:Hidden="1"`)
		}
		sb.WriteString("/>")
	}
	sb.WriteString("</Names>")
}

func (w *writer) sheet(sb *strings.Builder, idx int, name string, ws *model.Worksheet) error {
	sb.WriteString(`<Worksheet ss:Name="` + esc(name) + `"`)
	if ws.Protect != nil {
		sb.WriteString(` ss:Protected="1"`)
	}
	sb.WriteString(">")

	if w.wb.Settings != nil {
		var scoped []model.DefinedName
		for _, n := range w.wb.Settings.Names {
			if n.Sheet != nil && *n.Sheet == idx {
				scoped = append(scoped, n)
			}
		}
		writeNames(sb, scoped)
	}

	ref, ok := ws.Ref()
	if ok {
		sb.WriteString(fmt.Sprintf(`<Table ss:ExpandedColumnCount="%d" ss:ExpandedRowCount="%d" x:FullColumns="1" x:FullRows="1">`,
			ref.End.Col+1, ref.End.Row+1))
		w.columns(sb, ws)
		if err := w.rows(sb, ws, ref); err != nil {
			return err
		}
		sb.WriteString("</Table>")
	} else {
		sb.WriteString("<Table/>")
	}

	w.options(sb, idx, ws)
	if ws.AutoFilter != nil {
		rc := rcref.ToRC(absolute(ws.AutoFilter.Ref), address.Cell{})
		sb.WriteString(`<AutoFilter x:Range="` + esc(rc) + `" xmlns="` + nsX + `"/>`)
	}
	sb.WriteString("</Worksheet>")
	return nil
}

func (w *writer) columns(sb *strings.Builder, ws *model.Worksheet) {
	for i, c := range ws.Cols {
		px := colPixels(c)
		if px == 0 && !c.Hidden {
			continue
		}
		sb.WriteString(`<Column ss:Index="` + strconv.Itoa(i+1) + `"`)
		if px > 0 {
			sb.WriteString(` ss:Width="` + strconv.FormatFloat(px*72/96, 'f', -1, 64) + `"`)
		}
		if c.Hidden {
			sb.WriteString(` ss:Hidden="1"`)
		}
		sb.WriteString("/>")
	}
}

func colPixels(c model.ColInfo) float64 {
	switch {
	case c.WPX > 0:
		return c.WPX
	case c.Width > 0:
		mdw := c.MDW
		if mdw == 0 {
			mdw = 7
		}
		return c.Width * mdw
	case c.WCH > 0:
		return c.WCH * 7
	}
	return 0
}

func (w *writer) rows(sb *strings.Builder, ws *model.Worksheet, ref address.Range) error {
	for r := 0; r <= ref.End.Row; r++ {
		var info model.RowInfo
		if r < len(ws.Rows) {
			info = ws.Rows[r]
		}
		hpt := info.HPT
		if hpt == 0 && info.HPX > 0 {
			hpt = info.HPX * 72 / 96
		}

		var cells strings.Builder
		next := 0
		for c := 0; c <= ref.End.Col; c++ {
			addr := address.Cell{Row: r, Col: c}
			m, merged := ws.MergeAt(addr)
			if merged && m.Start != addr {
				continue
			}
			cell := ws.Cell(addr)
			if cell == nil && !merged {
				continue
			}
			attrs, body, err := w.cell(addr, cell)
			if err != nil {
				return err
			}
			if attrs == "" && body == "" && !merged {
				continue
			}
			cells.WriteString("<Cell")
			if c != next {
				cells.WriteString(` ss:Index="` + strconv.Itoa(c+1) + `"`)
			}
			if merged {
				if m.Cols() > 1 {
					cells.WriteString(` ss:MergeAcross="` + strconv.Itoa(m.Cols()-1) + `"`)
				}
				if m.Rows() > 1 {
					cells.WriteString(` ss:MergeDown="` + strconv.Itoa(m.Rows()-1) + `"`)
				}
			}
			cells.WriteString(attrs)
			if body == "" {
				cells.WriteString("/>")
			} else {
				cells.WriteString(">" + body + "</Cell>")
			}
			next = c + 1
			if merged {
				next = m.End.Col + 1
			}
		}

		if cells.Len() == 0 && hpt == 0 && !info.Hidden {
			continue
		}
		sb.WriteString(`<Row ss:Index="` + strconv.Itoa(r+1) + `"`)
		if hpt > 0 {
			sb.WriteString(` ss:Height="` + strconv.FormatFloat(hpt, 'f', -1, 64) + `" ss:AutoFitHeight="0"`)
		}
		if info.Hidden {
			sb.WriteString(` ss:Hidden="1"`)
		}
		if cells.Len() == 0 {
			sb.WriteString("/>")
			continue
		}
		sb.WriteString(">" + cells.String() + "</Row>")
	}
	return nil
}

// cell renders the attributes and content of one cell.
func (w *writer) cell(addr address.Cell, c *model.Cell) (attrs, body string, err error) {
	if c == nil {
		return "", "", nil
	}
	var a, b strings.Builder

	code := ""
	if c.NumFmt.ID != 0 || c.NumFmt.Code != "" {
		code = numfmt.Code(c.NumFmt)
	}
	if _, isDate := c.Value.(model.Date); isDate && (code == "" || code == "General") {
		code, _ = numfmt.Builtin(14)
	}
	if code != "" && code != "General" {
		a.WriteString(` ss:StyleID="` + w.style(code) + `"`)
	}
	if c.ArrayRange != nil && c.ArrayRange.Start == addr && c.Formula != "" {
		a.WriteString(` ss:ArrayRange="` + esc(rcref.ToRC(c.ArrayRange.String(), addr)) + `"`)
	}
	if c.Formula != "" {
		a.WriteString(` ss:Formula="=` + esc(rcref.ToRC(c.Formula, addr)) + `"`)
	}
	if c.Link != nil && c.Link.Target != "" {
		a.WriteString(` ss:HRef="` + esc(c.Link.Target) + `"`)
		if c.Link.Tooltip != "" {
			a.WriteString(` x:HRefScreenTip="` + esc(c.Link.Tooltip) + `"`)
		}
	}

	switch v := c.Value.(type) {
	case model.Number:
		b.WriteString(`<Data ss:Type="Number">` + numText(float64(v)) + `</Data>`)
	case model.Bool:
		val := "0"
		if v {
			val = "1"
		}
		b.WriteString(`<Data ss:Type="Boolean">` + val + `</Data>`)
	case model.String:
		if c.HTML != "" && w.opts.CellStyles {
			b.WriteString(`<ss:Data ss:Type="String" xmlns="` + nsHTML + `">` + c.HTML + `</ss:Data>`)
		} else {
			b.WriteString(`<Data ss:Type="String">` + esc(string(v)) + `</Data>`)
		}
	case model.ErrorCode:
		b.WriteString(`<Data ss:Type="Error">` + esc(v.String()) + `</Data>`)
	case model.Date:
		b.WriteString(`<Data ss:Type="DateTime">` + v.Time().Format(dateFmt) + `</Data>`)
	case nil, model.Stub:
	default:
		if w.opts.WTF {
			return "", "", sheeterr.New(sheeterr.UnsupportedValue, opEncode, "cell %s: unsupported value %T", addr, v)
		}
		w.log.Warn("skipping unsupported value", "op", opEncode, "cell", addr.String())
	}

	for i, cm := range c.Comments {
		if i > 0 {
			w.log.Warn("only the first comment of a cell is written", "op", opEncode, "cell", addr.String())
			break
		}
		b.WriteString(`<Comment`)
		if cm.Author != "" {
			b.WriteString(` ss:Author="` + esc(cm.Author) + `"`)
		}
		if !c.CommentsHidden {
			b.WriteString(` ss:ShowAlways="1"`)
		}
		b.WriteString(`><ss:Data xmlns="` + nsHTML + `">` + esc(cm.Text) + `</ss:Data></Comment>`)
	}
	return a.String(), b.String(), nil
}

func (w *writer) options(sb *strings.Builder, idx int, ws *model.Worksheet) {
	var o strings.Builder
	if m := ws.Margins; m != nil {
		fmt.Fprintf(&o, `<PageSetup><Header x:Margin="%s"/><Footer x:Margin="%s"/><PageMargins x:Bottom="%s" x:Left="%s" x:Right="%s" x:Top="%s"/></PageSetup>`,
			numText(m.Header), numText(m.Footer), numText(m.Bottom), numText(m.Left), numText(m.Right), numText(m.Top))
	}
	switch w.wb.SheetVisibility(idx) {
	case model.Hidden:
		o.WriteString("<Visible>SheetHidden</Visible>")
	case model.VeryHidden:
		o.WriteString("<Visible>SheetVeryHidden</Visible>")
	}
	if idx == 0 && w.wb.Settings != nil && len(w.wb.Settings.Views) > 0 && w.wb.Settings.Views[0].RTL {
		o.WriteString("<DisplayRightToLeft/>")
	}
	if ws.Protect != nil {
		o.WriteString("<ProtectContents>True</ProtectContents>")
		if !ws.Protect.Objects {
			o.WriteString("<ProtectObjects>True</ProtectObjects>")
		} else {
			o.WriteString("<ProtectObjects>False</ProtectObjects>")
		}
	}
	if o.Len() == 0 {
		return
	}
	sb.WriteString(`<WorksheetOptions xmlns="` + nsX + `">` + o.String() + "</WorksheetOptions>")
}

func absolute(r address.Range) string {
	return "$" + address.EncodeCol(r.Start.Col) + "$" + strconv.Itoa(r.Start.Row+1) +
		":$" + address.EncodeCol(r.End.Col) + "$" + strconv.Itoa(r.End.Row+1)
}

func element(sb *strings.Builder, name, text string) {
	if text == "" {
		return
	}
	sb.WriteString("<" + name + ">" + esc(text) + "</" + name + ">")
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func numText(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
