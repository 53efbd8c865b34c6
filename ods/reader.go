package ods

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opDecode = "ods_decode"

// Decoder reads both .ods packages and flat .fods documents.
type Decoder struct{}

// Decode implements codec.Decoder.
func (Decoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return Decode(data, req)
}

// Decode parses an OpenDocument spreadsheet. Input starting with a ZIP
// signature is read as a package, anything else as a flat XML document.
func Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	r := &reader{
		opts:  req.Options,
		stage: req.Stage,
		log:   req.Options.Log().With("codec", "ods"),
	}
	var err error
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		err = r.openPackage(data)
	} else {
		r.content = data
		r.flat = true
	}
	if err != nil {
		return nil, err
	}
	wb, err := r.read()
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
	}
	return wb, nil
}

type reader struct {
	opts    codec.ParseOptions
	stage   codec.Stage
	log     *slog.Logger
	content []byte
	meta    []byte
	flat    bool

	styles   map[string]styleXML
	date1904 bool
}

// openPackage loads content.xml and meta.xml from the archive.
func (r *reader) openPackage(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, fmt.Errorf("opening ZIP archive: %w", err))
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if f, ok := files["META-INF/manifest.xml"]; ok {
		b, err := readFile(f)
		if err != nil {
			return sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
		}
		var m manifestXML
		if err := xml.Unmarshal(b, &m); err == nil {
			for _, e := range m.Entries {
				if e.Encryption == nil {
					continue
				}
				if r.opts.Password == "" {
					return sheeterr.New(sheeterr.PasswordRequired, opDecode, "%s is encrypted", e.Path)
				}
				return sheeterr.New(sheeterr.UnsupportedFormat, opDecode, "encrypted packages are not supported")
			}
		}
	}

	f, ok := files["content.xml"]
	if !ok {
		return sheeterr.New(sheeterr.TruncatedInput, opDecode, "missing required file: content.xml")
	}
	if r.content, err = readFile(f); err != nil {
		return sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
	}
	if f, ok := files["meta.xml"]; ok {
		if r.meta, err = readFile(f); err != nil {
			r.log.Warn("skipping unreadable meta.xml", "op", opDecode, "err", err)
			r.meta = nil
		}
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return b, nil
}

func (r *reader) read() (*model.Workbook, error) {
	if !r.stage.ParsesCells() {
		return r.readOutline()
	}

	var doc documentXML
	if err := xml.Unmarshal(r.content, &doc); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	r.indexStyles(doc.AutomaticStyles)
	r.date1904 = isNullDate1904(doc.Spreadsheet.Calc.NullDate.DateValue)

	wb := r.newBook(doc.Spreadsheet.Calc)
	for _, t := range doc.Spreadsheet.Tables {
		wb.SheetNames = append(wb.SheetNames, t.Name)
		wb.Settings.Sheets = append(wb.Settings.Sheets, model.SheetProps{Name: t.Name, Hidden: r.tableVisibility(t.StyleName)})
		if len(wb.Settings.Views) == 0 && r.styles[t.StyleName].Table.WritingMode == "rl-tb" {
			wb.Settings.Views = []model.View{{RTL: true}}
		}
	}
	wb.Props, wb.Custprops = r.properties(doc.Meta)

	wb.Settings.Names = append(wb.Settings.Names, definedNames(doc.Spreadsheet.Names, nil)...)
	for i, t := range doc.Spreadsheet.Tables {
		if !r.opts.Wants(t.Name, i) {
			continue
		}
		ws, err := r.parseTable(t)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", t.Name, err)
		}
		wb.Sheets[t.Name] = ws
		if len(t.Names.Ranges)+len(t.Names.Expressions) > 0 {
			scope := i
			wb.Settings.Names = append(wb.Settings.Names, definedNames(t.Names, &scope)...)
		}
	}
	r.applyFilters(wb, doc.Spreadsheet.DatabaseRanges)
	return wb, nil
}

// readOutline serves the sheet names and properties stages without
// decoding any rows.
func (r *reader) readOutline() (*model.Workbook, error) {
	var doc sheetListXML
	if err := xml.Unmarshal(r.content, &doc); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	r.indexStyles(doc.AutomaticStyles)
	wb := r.newBook(doc.Spreadsheet.Calc)
	for _, t := range doc.Spreadsheet.Tables {
		wb.SheetNames = append(wb.SheetNames, t.Name)
		wb.Settings.Sheets = append(wb.Settings.Sheets, model.SheetProps{Name: t.Name, Hidden: r.tableVisibility(t.StyleName)})
	}
	if r.stage == codec.StageSheetNames {
		return wb, nil
	}
	wb.Props, wb.Custprops = r.properties(doc.Meta)
	return wb, nil
}

func (r *reader) newBook(calc calcSettingsXML) *model.Workbook {
	wb := model.NewWorkbook()
	wb.BookType = "ods"
	if r.flat {
		wb.BookType = "fods"
	}
	wb.Settings = &model.Settings{Date1904: isNullDate1904(calc.NullDate.DateValue)}
	return wb
}

func isNullDate1904(v string) bool {
	return strings.HasPrefix(v, "1904-01-01")
}

func (r *reader) indexStyles(s automaticStylesXML) {
	r.styles = make(map[string]styleXML, len(s.Styles))
	for _, st := range s.Styles {
		r.styles[st.Name] = st
	}
}

func (r *reader) tableVisibility(style string) model.Visibility {
	if r.styles[style].Table.Display == "false" {
		return model.Hidden
	}
	return model.Visible
}

// sheetBuilder tracks the grid position while a table is read.
type sheetBuilder struct {
	r    *reader
	ws   *model.Worksheet
	row  int
	cols []colSpec
	rows []rowSpec
}

type colSpec struct {
	start, end int
	info       model.ColInfo
}

type rowSpec struct {
	start, end int
	info       model.RowInfo
}

func (r *reader) parseTable(t tableXML) (*model.Worksheet, error) {
	b := &sheetBuilder{r: r, ws: r.opts.NewSheet()}
	if t.Protected {
		b.ws.Protect = &model.ProtectInfo{}
	}

	col := 0
	for _, c := range t.Columns {
		n := atoi(c.Repeated, 1)
		info, set := r.columnInfo(c)
		if set {
			b.cols = append(b.cols, colSpec{start: col, end: col + n - 1, info: info})
		}
		col += n
	}

	limit := address.MaxRows
	if r.stage == codec.StageRows && r.opts.SheetRows > 0 {
		limit = r.opts.SheetRows
	}
	for _, row := range t.Rows {
		if b.row >= limit {
			break
		}
		n := min(atoi(row.Repeated, 1), limit-b.row)
		if info, set := r.rowInfo(row); set {
			b.rows = append(b.rows, rowSpec{start: b.row, end: b.row + n - 1, info: info})
		}
		if rowEmpty(row) {
			b.row += n
			continue
		}
		for range n {
			if err := b.addRow(row); err != nil {
				return nil, err
			}
			b.row++
		}
	}
	b.applyLayout()
	return b.ws, nil
}

// rowEmpty reports whether a row carries no content, so that repeats can
// be skipped instead of expanded.
func rowEmpty(row rowXML) bool {
	for i := range row.Cells {
		c := &row.Cells[i]
		if c.covered() {
			continue
		}
		if c.ValueType != "" || c.Formula != "" || len(c.Paragraphs) > 0 || len(c.Annotations) > 0 ||
			atoi(c.ColSpan, 1) > 1 || atoi(c.RowSpan, 1) > 1 {
			return false
		}
	}
	return true
}

func (b *sheetBuilder) addRow(row rowXML) error {
	col := 0
	for i := range row.Cells {
		if col >= address.MaxCols {
			b.r.log.Warn("dropping cells past the last column", "op", opDecode, "row", b.row+1)
			break
		}
		x := &row.Cells[i]
		n := atoi(x.Repeated, 1)
		if x.covered() {
			col += n
			continue
		}
		c, err := b.r.cell(x)
		if err != nil {
			return fmt.Errorf("cell %s: %w", address.Cell{Row: b.row, Col: col}, err)
		}
		cs, rs := atoi(x.ColSpan, 1), atoi(x.RowSpan, 1)
		if cs > 1 || rs > 1 {
			start := address.Cell{Row: b.row, Col: col}
			b.ws.Merges = append(b.ws.Merges, address.NewRange(start, start.Offset(rs-1, cs-1)))
		}
		if c == nil {
			col += n
			continue
		}
		n = min(n, address.MaxCols-col)
		for k := range n {
			addr := address.Cell{Row: b.row, Col: col + k}
			cell := c
			if k > 0 {
				cell = c.Clone()
			}
			b.ws.SetCell(addr, cell)
		}
		if b.r.opts.CellFormula && x.Formula != "" {
			mc, mr := atoi(x.MatrixCols, 0), atoi(x.MatrixRows, 0)
			if mc > 0 && mr > 0 {
				start := address.Cell{Row: b.row, Col: col}
				b.ws.SetArrayFormula(address.NewRange(start, start.Offset(mr-1, mc-1)), c.Formula)
			}
		}
		col += n
	}
	return nil
}

// cell converts one table-cell. A nil cell means nothing is stored.
func (r *reader) cell(x *cellXML) (*model.Cell, error) {
	text := x.text()
	if x.StringValue != nil && x.ValueType == "string" {
		text = *x.StringValue
	}

	var v model.Value
	nf := model.NumberFormat{}
	switch x.ValueType {
	case "float", "percentage", "currency":
		f, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			return nil, sheeterr.New(sheeterr.TruncatedInput, opDecode, "invalid number %q", x.Value)
		}
		v = model.Number(f)
		if x.ValueType == "percentage" {
			nf.ID = 10
		}
	case "date":
		t, withTime, err := parseDateValue(x.DateValue)
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
		}
		if r.opts.CellDates {
			v = model.Date(t)
		} else {
			v = model.Number(numfmt.TimeToSerial(t, r.date1904))
		}
		nf.ID = 14
		if withTime {
			nf.ID = 22
		}
		if r.opts.DateNF != "" {
			nf = model.NumberFormat{Code: r.opts.DateNF}
		}
	case "time":
		d, err := parseDuration(x.TimeValue)
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
		}
		v = model.Number(d.Seconds() / 86400)
		nf.ID = 21
	case "boolean":
		v = model.Bool(x.BooleanValue == "true" || x.BooleanValue == "1")
	case "string":
		v = model.String(text)
		if x.CalcValueType == "error" {
			if e, ok := model.ParseErrorCode(text); ok {
				v = e
			}
		}
	case "", "void":
		if e, ok := model.ParseErrorCode(text); ok && (x.Formula != "" || x.CalcValueType == "error") {
			v = e
		} else if text != "" {
			v = model.String(text)
		}
	default:
		if r.opts.WTF {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, opDecode, "unknown value type %q", x.ValueType)
		}
		r.log.Warn("reading unknown value type as text", "op", opDecode, "type", x.ValueType)
		v = model.String(text)
	}

	c := &model.Cell{Value: v}
	if r.opts.CellFormula && x.Formula != "" {
		c.Formula = fromODF(x.Formula)
	}
	if r.opts.CellText && text != "" && v != nil {
		c.Text = text
	}
	if !nf.IsGeneral() && (r.opts.CellNF || x.ValueType == "date" || x.ValueType == "time") {
		c.NumFmt = nf
	}
	if link := x.link(); link != "" {
		c.Link = &model.Hyperlink{Target: link}
	}
	for _, a := range x.Annotations {
		c.Comments = append(c.Comments, model.Comment{Author: a.Creator, Text: joinParagraphs(a.Paragraphs)})
		c.CommentsHidden = a.Display != "true"
	}

	if c.Value == nil {
		switch {
		case c.Formula != "":
		case len(c.Comments) > 0 || c.Link != nil || r.opts.SheetStubs:
			c.Value = model.Stub{}
		default:
			return nil, nil
		}
	}
	return c, nil
}

// dateLayouts are the forms of office:date-value.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDateValue(s string) (time.Time, bool, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, strings.Contains(layout, "T") && (t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0), nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid date value %q", s)
}

// parseDuration reads an ISO 8601 duration of the form PnDTnHnMnS.
func parseDuration(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	rest, ok := strings.CutPrefix(strings.TrimPrefix(s, "-"), "P")
	if !ok {
		return 0, fmt.Errorf("invalid time value %q", s)
	}
	var d time.Duration
	inTime := false
	num := ""
	for _, ch := range rest {
		switch {
		case ch == 'T':
			inTime = true
		case ch >= '0' && ch <= '9' || ch == '.':
			num += string(ch)
		default:
			f, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid time value %q", s)
			}
			num = ""
			switch {
			case ch == 'D':
				d += time.Duration(f * float64(24*time.Hour))
			case ch == 'H' && inTime:
				d += time.Duration(f * float64(time.Hour))
			case ch == 'M' && inTime:
				d += time.Duration(f * float64(time.Minute))
			case ch == 'S' && inTime:
				d += time.Duration(f * float64(time.Second))
			default:
				return 0, fmt.Errorf("invalid time value %q", s)
			}
		}
	}
	if neg {
		d = -d
	}
	return d, nil
}

func (r *reader) columnInfo(c columnXML) (model.ColInfo, bool) {
	var info model.ColInfo
	set := false
	if c.Visibility == "collapse" {
		info.Hidden, set = true, true
	}
	if w := parseLength(r.styles[c.StyleName].Column.Width); w > 0 {
		info.WPX = w * 96 / 72
		info.MDW = 7
		info.Width = info.WPX / info.MDW
		set = true
	}
	return info, set
}

func (r *reader) rowInfo(row rowXML) (model.RowInfo, bool) {
	var info model.RowInfo
	set := false
	if row.Visibility == "collapse" || row.Visibility == "filter" {
		info.Hidden, set = true, true
	}
	if h := parseLength(r.styles[row.StyleName].Row.Height); h > 0 {
		info.HPT = h
		info.HPX = h * 96 / 72
		set = true
	}
	return info, set
}

// applyLayout stores column and row settings within the used range. ODF
// producers repeat default columns and rows out to the grid limits.
func (b *sheetBuilder) applyLayout() {
	ref, ok := b.ws.Ref()
	if !ok {
		return
	}
	for _, s := range b.cols {
		for c := s.start; c <= min(s.end, ref.End.Col); c++ {
			b.ws.SetColInfo(c, s.info)
		}
	}
	for _, s := range b.rows {
		for r := s.start; r <= min(s.end, ref.End.Row); r++ {
			b.ws.SetRowInfo(r, s.info)
		}
	}
}

func definedNames(n namedExpressionsXML, scope *int) []model.DefinedName {
	var out []model.DefinedName
	for _, nr := range n.Ranges {
		sheet, cells := splitODFRange(nr.Address)
		ref := cells
		if sheet != "" {
			ref = quoteSheet(sheet) + "!" + cells
		}
		out = append(out, model.DefinedName{Name: nr.Name, Ref: ref, Sheet: scope})
	}
	for _, ne := range n.Expressions {
		out = append(out, model.DefinedName{Name: ne.Name, Ref: fromODF(ne.Expression), Sheet: scope})
	}
	return out
}

// applyFilters turns database ranges with filter buttons into autofilters.
func (r *reader) applyFilters(wb *model.Workbook, ranges []databaseRangeXML) {
	for _, d := range ranges {
		if d.FilterButtons != "true" {
			continue
		}
		sheet, cells := splitODFRange(d.Target)
		ws := wb.Sheets[sheet]
		if ws == nil {
			continue
		}
		rng, err := address.DecodeRange(strings.ReplaceAll(cells, "$", ""))
		if err != nil {
			r.log.Warn("skipping invalid filter range", "op", opDecode, "sheet", sheet, "range", d.Target)
			continue
		}
		ws.AutoFilter = &model.AutoFilter{Ref: rng}
	}
}

// properties maps document metadata. meta.xml wins over an embedded
// office:meta element.
func (r *reader) properties(embedded metaXML) (*model.Properties, map[string]any) {
	m := embedded
	if len(r.meta) > 0 {
		var doc metaDocumentXML
		if err := xml.Unmarshal(r.meta, &doc); err != nil {
			r.log.Warn("skipping unreadable metadata", "op", opDecode, "err", err)
		} else {
			m = doc.Meta
		}
	}

	p := &model.Properties{
		Title:       m.Title,
		Subject:     m.Subject,
		Comments:    m.Description,
		LastAuthor:  m.Creator,
		Author:      m.InitialCreator,
		Language:    m.Language,
		Application: m.Generator,
		Revision:    m.EditingCycles,
		Keywords:    strings.Join(m.Keywords, ", "),
	}
	if t, _, err := parseDateValue(trimZone(m.CreationDate)); err == nil {
		p.CreatedDate = t
	}
	if t, _, err := parseDateValue(trimZone(m.Date)); err == nil {
		p.ModifiedDate = t
	}
	if *p == (model.Properties{}) {
		p = nil
	}

	var custom map[string]any
	for _, u := range m.UserDefined {
		if custom == nil {
			custom = make(map[string]any)
		}
		custom[u.Name] = userValue(u)
	}
	return p, custom
}

// trimZone drops a trailing Z or numeric offset from an ISO timestamp.
func trimZone(s string) string {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Format("2006-01-02T15:04:05.999999999")
	}
	return strings.TrimSuffix(s, "Z")
}

func userValue(u userDefinedXML) any {
	switch u.ValueType {
	case "float", "percentage", "currency":
		if f, err := strconv.ParseFloat(u.Value, 64); err == nil {
			return f
		}
	case "boolean":
		return u.Value == "true"
	case "date":
		if t, _, err := parseDateValue(trimZone(u.Value)); err == nil {
			return t
		}
	}
	return u.Value
}
