package ods

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opEncode = "ods_encode"

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// namespaces declared on every root element.
var namespaces = [][2]string{
	{"office", nsOffice},
	{"style", nsStyle},
	{"text", nsText},
	{"table", nsTable},
	{"number", nsNumber},
	{"fo", nsFO},
	{"dc", nsDC},
	{"meta", nsMeta},
	{"xlink", nsXLink},
	{"of", nsOF},
	{"calcext", nsCalcExt},
}

// Encoder writes .ods packages.
type Encoder struct{}

// Encode implements codec.Encoder.
func (Encoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return Encode(wb, opts)
}

// FlatEncoder writes flat .fods documents.
type FlatEncoder struct{}

// Encode implements codec.Encoder.
func (FlatEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return EncodeFlat(wb, opts)
}

// Encode writes wb as a zipped OpenDocument spreadsheet. The mimetype
// entry comes first and is stored uncompressed.
func Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	w, err := newWriter(wb, opts)
	if err != nil {
		return nil, err
	}
	body, err := w.body()
	if err != nil {
		return nil, err
	}

	method := zip.Store
	if opts.Compression {
		method = zip.Deflate
	}
	parts := []struct {
		name   string
		data   string
		method uint16
	}{
		{"mimetype", mimeType, zip.Store},
		{"META-INF/manifest.xml", manifest(), method},
		{"meta.xml", xmlHeader + root("office:document-meta", "") + "<office:meta>" + w.meta() + "</office:meta></office:document-meta>", method},
		{"styles.xml", xmlHeader + root("office:document-styles", "") + commonStyles + "</office:document-styles>", method},
		{"content.xml", xmlHeader + root("office:document-content", "") + w.automaticStyles() + body + "</office:document-content>", method},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: p.method})
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.UnsupportedValue, opEncode, err)
		}
		if _, err := f.Write([]byte(p.data)); err != nil {
			return nil, sheeterr.Wrap(sheeterr.UnsupportedValue, opEncode, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, sheeterr.Wrap(sheeterr.UnsupportedValue, opEncode, err)
	}
	return buf.Bytes(), nil
}

// EncodeFlat writes wb as a single flat XML document.
func EncodeFlat(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	w, err := newWriter(wb, opts)
	if err != nil {
		return nil, err
	}
	body, err := w.body()
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(root("office:document", ` office:mimetype="`+mimeType+`"`))
	sb.WriteString("<office:meta>" + w.meta() + "</office:meta>")
	sb.WriteString(commonStyles)
	sb.WriteString(w.automaticStyles())
	sb.WriteString(body)
	sb.WriteString("</office:document>")
	return []byte(sb.String()), nil
}

func root(name, extra string) string {
	var sb strings.Builder
	sb.WriteString("<" + name)
	for _, ns := range namespaces {
		sb.WriteString(` xmlns:` + ns[0] + `="` + ns[1] + `"`)
	}
	sb.WriteString(` office:version="1.2"` + extra + ">")
	return sb.String()
}

func manifest() string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<manifest:manifest xmlns:manifest="` + nsManifest + `" manifest:version="1.2">`)
	sb.WriteString(`<manifest:file-entry manifest:full-path="/" manifest:version="1.2" manifest:media-type="` + mimeType + `"/>`)
	for _, name := range []string{"content.xml", "styles.xml", "meta.xml"} {
		sb.WriteString(`<manifest:file-entry manifest:full-path="` + name + `" manifest:media-type="text/xml"/>`)
	}
	sb.WriteString(`</manifest:manifest>`)
	return sb.String()
}

const commonStyles = `<office:styles><style:style style:name="Default" style:family="table-cell"/></office:styles>`

// Fixed automatic style names.
const (
	styleTable    = "ta1"
	styleHidden   = "ta2"
	styleRow      = "ro1"
	styleDateCell = "ce1"
)

type writer struct {
	wb     *model.Workbook
	opts   codec.WriteOptions
	log    *slog.Logger
	widths []float64 // distinct column widths in pixels, style co<i+1>
	// heights are distinct row heights in points, style ro<i+2>
	heights []float64
}

func newWriter(wb *model.Workbook, opts codec.WriteOptions) (*writer, error) {
	if wb == nil || len(wb.SheetNames) == 0 {
		return nil, sheeterr.New(sheeterr.EmptyWorkbook, opEncode, "workbook has no sheets")
	}
	w := &writer{wb: wb, opts: opts, log: opts.Log().With("codec", "ods")}
	for _, name := range wb.SheetNames {
		ws := wb.Sheets[name]
		if ws == nil {
			continue
		}
		for _, c := range ws.Cols {
			if px := colPixels(c); px > 0 && indexOf(w.widths, px) < 0 {
				w.widths = append(w.widths, px)
			}
		}
		for _, r := range ws.Rows {
			if pt := rowPoints(r); pt > 0 && indexOf(w.heights, pt) < 0 {
				w.heights = append(w.heights, pt)
			}
		}
	}
	return w, nil
}

func indexOf(list []float64, v float64) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
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

func rowPoints(r model.RowInfo) float64 {
	switch {
	case r.HPT > 0:
		return r.HPT
	case r.HPX > 0:
		return r.HPX * 72 / 96
	}
	return 0
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (w *writer) automaticStyles() string {
	var sb strings.Builder
	sb.WriteString("<office:automatic-styles>")
	sb.WriteString(`<number:date-style style:name="N37"><number:year number:style="long"/><number:text>-</number:text>` +
		`<number:month number:style="long"/><number:text>-</number:text><number:day number:style="long"/></number:date-style>`)
	sb.WriteString(`<style:style style:name="` + styleTable + `" style:family="table"><style:table-properties table:display="true"/></style:style>`)
	sb.WriteString(`<style:style style:name="` + styleHidden + `" style:family="table"><style:table-properties table:display="false"/></style:style>`)
	sb.WriteString(`<style:style style:name="` + styleRow + `" style:family="table-row"><style:table-row-properties style:use-optimal-row-height="true"/></style:style>`)
	for i, pt := range w.heights {
		sb.WriteString(`<style:style style:name="ro` + strconv.Itoa(i+2) + `" style:family="table-row"><style:table-row-properties style:row-height="` +
			fmtFloat(pt) + `pt" style:use-optimal-row-height="false"/></style:style>`)
	}
	for i, px := range w.widths {
		sb.WriteString(`<style:style style:name="co` + strconv.Itoa(i+1) + `" style:family="table-column"><style:table-column-properties style:column-width="` +
			fmtFloat(px*72/96) + `pt"/></style:style>`)
	}
	sb.WriteString(`<style:style style:name="` + styleDateCell + `" style:family="table-cell" style:parent-style-name="Default" style:data-style-name="N37"/>`)
	sb.WriteString("</office:automatic-styles>")
	return sb.String()
}

func (w *writer) meta() string {
	var sb strings.Builder
	sb.WriteString("<meta:generator>cellar</meta:generator>")
	p := w.wb.Props
	if w.opts.Props != nil {
		p = w.opts.Props
	}
	if p != nil {
		elem(&sb, "dc:title", p.Title)
		elem(&sb, "dc:subject", p.Subject)
		elem(&sb, "dc:description", p.Comments)
		elem(&sb, "meta:initial-creator", p.Author)
		elem(&sb, "dc:creator", p.LastAuthor)
		elem(&sb, "dc:language", p.Language)
		elem(&sb, "meta:editing-cycles", p.Revision)
		if p.Keywords != "" {
			for _, k := range strings.Split(p.Keywords, ",") {
				elem(&sb, "meta:keyword", strings.TrimSpace(k))
			}
		}
		if !p.CreatedDate.IsZero() {
			elem(&sb, "meta:creation-date", p.CreatedDate.UTC().Format(time.RFC3339))
		}
		if !p.ModifiedDate.IsZero() {
			elem(&sb, "dc:date", p.ModifiedDate.UTC().Format(time.RFC3339))
		}
	}

	keys := make([]string, 0, len(w.wb.Custprops))
	for k := range w.wb.Custprops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		typ, val := "string", ""
		switch v := w.wb.Custprops[k].(type) {
		case bool:
			typ, val = "boolean", strconv.FormatBool(v)
		case int:
			typ, val = "float", strconv.Itoa(v)
		case float64:
			typ, val = "float", fmtFloat(v)
		case time.Time:
			typ, val = "date", v.UTC().Format("2006-01-02T15:04:05")
		default:
			val = fmt.Sprint(v)
		}
		sb.WriteString(`<meta:user-defined meta:name="` + esc(k) + `" meta:value-type="` + typ + `">` + esc(val) + `</meta:user-defined>`)
	}
	return sb.String()
}

func elem(sb *strings.Builder, name, text string) {
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

func (w *writer) body() (string, error) {
	var sb strings.Builder
	sb.WriteString("<office:body><office:spreadsheet>")
	if w.wb.Date1904() {
		sb.WriteString(`<table:calculation-settings><table:null-date table:date-value="1904-01-01"/></table:calculation-settings>`)
	}
	for i, name := range w.wb.SheetNames {
		ws := w.wb.Sheets[name]
		if ws == nil {
			ws = model.NewWorksheet()
		}
		if err := w.table(&sb, i, name, ws); err != nil {
			return "", err
		}
	}
	w.names(&sb)
	sb.WriteString("</office:spreadsheet></office:body>")
	return sb.String(), nil
}

func (w *writer) table(sb *strings.Builder, index int, name string, ws *model.Worksheet) error {
	style := styleTable
	if w.wb.SheetVisibility(index) != model.Visible {
		style = styleHidden
	}
	sb.WriteString(`<table:table table:name="` + esc(name) + `" table:style-name="` + style + `"`)
	if ws.Protect != nil {
		sb.WriteString(` table:protected="true"`)
	}
	sb.WriteString(">")

	rng, ok := ws.Ref()
	if !ok {
		sb.WriteString(`<table:table-column/><table:table-row table:style-name="` + styleRow + `"><table:table-cell/></table:table-row></table:table>`)
		return nil
	}
	width := rng.End.Col + 1
	height := rng.End.Row + 1

	w.columns(sb, ws, width)

	covered := make(map[address.Cell]bool)
	origins := make(map[address.Cell]address.Range)
	for _, m := range ws.Merges {
		origins[m.Start] = m
		for c := range m.Cells() {
			if c != m.Start {
				covered[c] = true
			}
		}
	}

	date1904 := w.wb.Date1904()
	for r := 0; r < height; r++ {
		if w.emptyRow(ws, r, width, covered, origins) {
			n := 1
			for r+n < height && w.emptyRow(ws, r+n, width, covered, origins) && w.rowStyle(ws, r+n) == w.rowStyle(ws, r) {
				n++
			}
			w.openRow(sb, ws, r, n)
			sb.WriteString(`<table:table-cell table:number-columns-repeated="` + strconv.Itoa(width) + `"/></table:table-row>`)
			r += n - 1
			continue
		}
		w.openRow(sb, ws, r, 1)
		blank := 0
		flush := func() {
			switch {
			case blank == 1:
				sb.WriteString("<table:table-cell/>")
			case blank > 1:
				sb.WriteString(`<table:table-cell table:number-columns-repeated="` + strconv.Itoa(blank) + `"/>`)
			}
			blank = 0
		}
		for c := 0; c < width; c++ {
			addr := address.Cell{Row: r, Col: c}
			if covered[addr] {
				flush()
				sb.WriteString("<table:covered-table-cell/>")
				continue
			}
			cell := ws.Cell(addr)
			m, isOrigin := origins[addr]
			if (cell == nil || cell.IsEmpty()) && !isOrigin {
				blank++
				continue
			}
			flush()
			if err := w.cell(sb, addr, cell, m, isOrigin, date1904); err != nil {
				return err
			}
		}
		flush()
		sb.WriteString("</table:table-row>")
	}
	sb.WriteString("</table:table>")
	return nil
}

func (w *writer) columns(sb *strings.Builder, ws *model.Worksheet, width int) {
	colAttrs := func(c int) string {
		if c >= len(ws.Cols) {
			return ""
		}
		var a string
		if px := colPixels(ws.Cols[c]); px > 0 {
			a += ` table:style-name="co` + strconv.Itoa(indexOf(w.widths, px)+1) + `"`
		}
		if ws.Cols[c].Hidden {
			a += ` table:visibility="collapse"`
		}
		return a
	}
	for c := 0; c < width; {
		attrs := colAttrs(c)
		n := 1
		for c+n < width && colAttrs(c+n) == attrs {
			n++
		}
		sb.WriteString("<table:table-column" + attrs)
		if n > 1 {
			sb.WriteString(` table:number-columns-repeated="` + strconv.Itoa(n) + `"`)
		}
		sb.WriteString("/>")
		c += n
	}
}

func (w *writer) rowStyle(ws *model.Worksheet, r int) string {
	style := styleRow
	if r < len(ws.Rows) {
		if pt := rowPoints(ws.Rows[r]); pt > 0 {
			style = "ro" + strconv.Itoa(indexOf(w.heights, pt)+2)
		}
		if ws.Rows[r].Hidden {
			style += "|hidden"
		}
	}
	return style
}

func (w *writer) openRow(sb *strings.Builder, ws *model.Worksheet, r, repeat int) {
	style, hidden := strings.CutSuffix(w.rowStyle(ws, r), "|hidden")
	sb.WriteString(`<table:table-row table:style-name="` + style + `"`)
	if hidden {
		sb.WriteString(` table:visibility="collapse"`)
	}
	if repeat > 1 {
		sb.WriteString(` table:number-rows-repeated="` + strconv.Itoa(repeat) + `"`)
	}
	sb.WriteString(">")
}

func (w *writer) emptyRow(ws *model.Worksheet, r, width int, covered map[address.Cell]bool, origins map[address.Cell]address.Range) bool {
	for c := 0; c < width; c++ {
		addr := address.Cell{Row: r, Col: c}
		if covered[addr] {
			return false
		}
		if _, ok := origins[addr]; ok {
			return false
		}
		if cell := ws.Cell(addr); cell != nil && !cell.IsEmpty() {
			return false
		}
	}
	return true
}

func (w *writer) cell(sb *strings.Builder, addr address.Cell, c *model.Cell, merge address.Range, isOrigin, date1904 bool) error {
	sb.WriteString("<table:table-cell")
	if isOrigin {
		if merge.Cols() > 1 {
			sb.WriteString(` table:number-columns-spanned="` + strconv.Itoa(merge.Cols()) + `"`)
		}
		if merge.Rows() > 1 {
			sb.WriteString(` table:number-rows-spanned="` + strconv.Itoa(merge.Rows()) + `"`)
		}
	}
	if c == nil {
		sb.WriteString("/>")
		return nil
	}
	if c.Formula != "" {
		sb.WriteString(` table:formula="` + esc(toODF(c.Formula)) + `"`)
		if c.ArrayRange != nil && c.ArrayRange.Start == addr {
			sb.WriteString(` table:number-matrix-columns-spanned="` + strconv.Itoa(c.ArrayRange.Cols()) +
				`" table:number-matrix-rows-spanned="` + strconv.Itoa(c.ArrayRange.Rows()) + `"`)
		}
	}

	text := numfmt.FormatCell(c, numfmt.Options{Date1904: date1904})
	switch v := c.Value.(type) {
	case model.Number:
		if numfmt.IsDateFormat(numfmt.Code(c.NumFmt)) {
			writeDate(sb, numfmt.SerialToTime(float64(v), date1904))
		} else {
			sb.WriteString(` office:value-type="float" office:value="` + fmtFloat(float64(v)) + `"`)
		}
	case model.Date:
		writeDate(sb, v.Time())
	case model.Bool:
		sb.WriteString(` office:value-type="boolean" office:boolean-value="` + strconv.FormatBool(bool(v)) + `"`)
	case model.String:
		sb.WriteString(` office:value-type="string"`)
		text = string(v)
	case model.ErrorCode:
		sb.WriteString(` office:value-type="string" calcext:value-type="error"`)
		text = v.String()
	case nil, model.Stub:
		text = ""
	default:
		if w.opts.WTF {
			return sheeterr.New(sheeterr.UnsupportedValue, opEncode, "cell %s has unsupported value %T", addr, v)
		}
		w.log.Warn("writing unsupported value as empty", "op", opEncode, "cell", addr.String())
		text = ""
	}
	sb.WriteString(">")

	for _, cm := range c.Comments {
		sb.WriteString("<office:annotation")
		if !c.CommentsHidden {
			sb.WriteString(` office:display="true"`)
		}
		sb.WriteString(">")
		elem(sb, "dc:creator", cm.Author)
		paragraphs(sb, cm.Text, "")
		sb.WriteString("</office:annotation>")
	}
	link := ""
	if c.Link != nil {
		link = c.Link.Target
	}
	if text != "" || link != "" {
		paragraphs(sb, text, link)
	}
	sb.WriteString("</table:table-cell>")
	return nil
}

func writeDate(sb *strings.Builder, t time.Time) {
	layout := "2006-01-02"
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		layout = "2006-01-02T15:04:05.999"
	}
	sb.WriteString(` table:style-name="` + styleDateCell + `" office:value-type="date" office:date-value="` + t.Format(layout) + `"`)
}

// paragraphs writes one text:p per line. A link wraps the first line.
func paragraphs(sb *strings.Builder, text, link string) {
	for i, line := range strings.Split(text, "\n") {
		body := esc(line)
		if i == 0 && link != "" {
			body = `<text:a xlink:type="simple" xlink:href="` + esc(link) + `">` + body + `</text:a>`
		}
		sb.WriteString("<text:p>" + body + "</text:p>")
	}
}

// names writes workbook scoped names as named ranges when they point at a
// plain range and as named expressions otherwise.
func (w *writer) names(sb *strings.Builder) {
	if w.wb.Settings == nil || len(w.wb.Settings.Names) == 0 {
		return
	}
	sb.WriteString("<table:named-expressions>")
	for _, n := range w.wb.Settings.Names {
		if n.Sheet != nil {
			w.log.Warn("writing sheet scoped name at workbook scope", "op", opEncode, "name", n.Name)
		}
		if sheet, cells, ok := plainRange(n.Ref); ok {
			addr := rangeAddress(sheet, cells)
			base, _, _ := strings.Cut(addr, ":")
			sb.WriteString(`<table:named-range table:name="` + esc(n.Name) + `" table:base-cell-address="` + esc(base) +
				`" table:cell-range-address="` + esc(addr) + `"/>`)
			continue
		}
		sb.WriteString(`<table:named-expression table:name="` + esc(n.Name) + `" table:expression="` + esc(toODF(n.Ref)) + `"/>`)
	}
	sb.WriteString("</table:named-expressions>")
}

// plainRange splits "Sheet1!$A$1:$B$2" into sheet and cells.
func plainRange(ref string) (sheet, cells string, ok bool) {
	i := strings.LastIndexByte(ref, '!')
	if i <= 0 {
		return "", "", false
	}
	sheet, cells = ref[:i], ref[i+1:]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if _, err := address.DecodeRange(strings.ReplaceAll(cells, "$", "")); err != nil {
		return "", "", false
	}
	return sheet, cells, true
}
