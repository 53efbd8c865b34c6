package xlsx

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/format"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

const opEncode = "xlsx_encode"

// Encoder writes xlsx and xlsm packages.
type Encoder struct{}

// Encode implements codec.Encoder.
func (Encoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return Encode(wb, opts)
}

// Encode serializes wb. With BookType xlsm the VBA project of wb is kept.
// A non-empty Password encrypts the package.
func Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	if wb == nil || len(wb.SheetNames) == 0 {
		return nil, sheeterr.New(sheeterr.EmptyWorkbook, opEncode, "workbook has no sheets")
	}
	bt, err := opts.Format()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	w := &writer{
		f:        f,
		wb:       wb,
		opts:     opts,
		log:      opts.Log().With("codec", "xlsx"),
		styles:   make(map[model.NumberFormat]int),
		date1904: wb.Date1904(),
	}
	if err := w.write(bt == format.XLSM); err != nil {
		return nil, sheeterr.Wrap(sheeterr.Unknown, opEncode, err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf, excelize.Options{Password: opts.Password}); err != nil {
		return nil, sheeterr.Wrap(sheeterr.Unknown, opEncode, fmt.Errorf("writing package: %w", err))
	}
	return buf.Bytes(), nil
}

type writer struct {
	f        *excelize.File
	wb       *model.Workbook
	opts     codec.WriteOptions
	log      *slog.Logger
	styles   map[model.NumberFormat]int
	date1904 bool
}

func (w *writer) write(macro bool) error {
	if err := w.workbookProps(); err != nil {
		return err
	}
	for i, name := range w.wb.SheetNames {
		if i == 0 {
			if err := w.f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := w.f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
		ws := w.wb.Sheets[name]
		if ws == nil {
			continue
		}
		if err := w.sheet(name, ws); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	if err := w.settings(); err != nil {
		return err
	}
	if err := w.properties(); err != nil {
		return err
	}

	if macro {
		// The package extension decides the xlsm content type.
		w.f.Path = "book.xlsm"
		if len(w.wb.VBA) > 0 {
			if err := w.f.AddVBAProject(w.wb.VBA); err != nil {
				return fmt.Errorf("adding VBA project: %w", err)
			}
		}
	}
	return nil
}

func (w *writer) workbookProps() error {
	s := w.wb.Settings
	opts := &excelize.WorkbookPropsOptions{Date1904: &w.date1904}
	if s != nil {
		opts.FilterPrivacy = &s.FilterPrivacy
		if s.CodeName != "" {
			opts.CodeName = &s.CodeName
		}
	}
	return w.f.SetWorkbookProps(opts)
}

func (w *writer) sheet(name string, ws *model.Worksheet) error {
	for addr, c := range ws.All() {
		if err := w.cell(name, addr, c); err != nil {
			return err
		}
	}

	for _, m := range ws.Merges {
		if err := w.f.MergeCell(name, address.EncodeCell(m.Start), address.EncodeCell(m.End)); err != nil {
			return err
		}
	}
	for i, col := range ws.Cols {
		if err := w.column(name, i, col); err != nil {
			return err
		}
	}
	for i, row := range ws.Rows {
		if err := w.row(name, i, row); err != nil {
			return err
		}
	}

	if af := ws.AutoFilter; af != nil {
		if err := w.f.AutoFilter(name, address.EncodeRange(af.Ref), nil); err != nil {
			return err
		}
	}
	if p := ws.Protect; p != nil {
		if err := w.f.ProtectSheet(name, &excelize.SheetProtectionOptions{
			Password:            p.Password,
			SelectLockedCells:   p.SelectLockedCells,
			SelectUnlockedCells: p.SelectUnlockedCells,
			FormatCells:         p.FormatCells,
			FormatColumns:       p.FormatColumns,
			FormatRows:          p.FormatRows,
			InsertColumns:       p.InsertColumns,
			InsertRows:          p.InsertRows,
			InsertHyperlinks:    p.InsertHyperlinks,
			DeleteColumns:       p.DeleteColumns,
			DeleteRows:          p.DeleteRows,
			Sort:                p.Sort,
			AutoFilter:          p.AutoFilter,
			PivotTables:         p.PivotTables,
			EditObjects:         p.Objects,
			EditScenarios:       p.Scenarios,
		}); err != nil {
			return err
		}
	}
	if m := ws.Margins; m != nil {
		if err := w.f.SetPageMargins(name, &excelize.PageLayoutMarginsOptions{
			Left: &m.Left, Right: &m.Right, Top: &m.Top, Bottom: &m.Bottom,
			Header: &m.Header, Footer: &m.Footer,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) cell(sheet string, addr address.Cell, c *model.Cell) error {
	ref := addr.String()
	if c.Formula != "" && (c.ArrayRange == nil || c.ArrayRange.Start == addr) {
		// A formula cell is stored with t="str", so only a string result
		// survives as the cached value.
		if s, ok := c.Value.(model.String); ok {
			if err := w.f.SetCellStr(sheet, ref, string(s)); err != nil {
				return err
			}
		}
		if err := w.formula(sheet, ref, c); err != nil {
			return err
		}
	} else if err := w.value(sheet, ref, c); err != nil {
		return err
	}

	if !c.NumFmt.IsGeneral() {
		if err := w.numberFormat(sheet, ref, c.NumFmt); err != nil {
			return err
		}
	}
	if l := c.Link; l != nil {
		kind, target := "External", l.Target
		if l.Internal() {
			kind, target = "Location", strings.TrimPrefix(target, "#")
		}
		if err := w.f.SetCellHyperLink(sheet, ref, target, kind, excelize.HyperlinkOpts{Tooltip: &l.Tooltip}); err != nil {
			return err
		}
	}
	for _, cm := range c.Comments {
		if err := w.f.AddComment(sheet, excelize.Comment{Cell: ref, Author: cm.Author, Text: cm.Text}); err != nil {
			return err
		}
	}
	return nil
}

// date writes a date as a serial with a date format, or as an ISO cell
// when CellDates is set.
func (w *writer) date(sheet, ref string, c *model.Cell, t time.Time) error {
	if w.opts.CellDates {
		return w.f.SetCellValue(sheet, ref, t)
	}
	if err := w.f.SetCellFloat(sheet, ref, numfmt.TimeToSerial(t, w.date1904), -1, 64); err != nil {
		return err
	}
	if c.NumFmt.IsGeneral() {
		return w.numberFormat(sheet, ref, model.NumberFormat{ID: 14})
	}
	return nil
}

func (w *writer) value(sheet, ref string, c *model.Cell) error {
	switch v := c.Value.(type) {
	case model.Number:
		return w.f.SetCellFloat(sheet, ref, float64(v), -1, 64)
	case model.Bool:
		return w.f.SetCellBool(sheet, ref, bool(v))
	case model.String:
		return w.f.SetCellStr(sheet, ref, string(v))
	case model.Date:
		return w.date(sheet, ref, c, v.Time())
	case model.ErrorCode:
		if w.opts.WTF {
			return sheeterr.New(sheeterr.UnsupportedValue, opEncode, "cell %s: error values are not written", ref)
		}
		w.log.Warn("writing error value as text", "sheet", sheet, "cell", ref, "value", v.String())
		return w.f.SetCellStr(sheet, ref, v.String())
	}
	return nil
}

func (w *writer) formula(sheet, ref string, c *model.Cell) error {
	if c.ArrayRange == nil {
		return w.f.SetCellFormula(sheet, ref, c.Formula)
	}
	typ, rng := "array", address.EncodeRange(*c.ArrayRange)
	return w.f.SetCellFormula(sheet, ref, c.Formula, excelize.FormulaOpts{Type: &typ, Ref: &rng})
}

// numberFormat applies a cached style holding nf.
func (w *writer) numberFormat(sheet, ref string, nf model.NumberFormat) error {
	id, ok := w.styles[nf]
	if !ok {
		style := &excelize.Style{NumFmt: nf.ID}
		if nf.Code != "" {
			if builtin, ok := numfmt.BuiltinID(nf.Code); ok {
				style.NumFmt = builtin
			} else {
				code := nf.Code
				style.CustomNumFmt = &code
			}
		}
		var err error
		if id, err = w.f.NewStyle(style); err != nil {
			return err
		}
		w.styles[nf] = id
	}
	return w.f.SetCellStyle(sheet, ref, ref, id)
}

func (w *writer) column(sheet string, i int, col model.ColInfo) error {
	name := address.EncodeCol(i)
	width := col.Width
	if width == 0 {
		width = col.WCH
	}
	if width == 0 && col.WPX > 0 {
		mdw := col.MDW
		if mdw == 0 {
			mdw = 7
		}
		width = col.WPX / mdw
	}
	if width > 0 {
		if err := w.f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	if col.Hidden {
		if err := w.f.SetColVisible(sheet, name, false); err != nil {
			return err
		}
	}
	if col.Level > 0 {
		return w.f.SetColOutlineLevel(sheet, name, uint8(col.Level))
	}
	return nil
}

func (w *writer) row(sheet string, i int, row model.RowInfo) error {
	n := i + 1
	height := row.HPT
	if height == 0 && row.HPX > 0 {
		height = row.HPX * 72 / 96
	}
	if height > 0 {
		if err := w.f.SetRowHeight(sheet, n, height); err != nil {
			return err
		}
	}
	if row.Hidden {
		if err := w.f.SetRowVisible(sheet, n, false); err != nil {
			return err
		}
	}
	if row.Level > 0 {
		return w.f.SetRowOutlineLevel(sheet, n, uint8(row.Level))
	}
	return nil
}

// settings writes defined names, sheet visibility and views.
func (w *writer) settings() error {
	s := w.wb.Settings
	if s == nil {
		return nil
	}
	for _, dn := range s.Names {
		if dn.Name == "_xlnm._FilterDatabase" {
			continue // written with the sheet's autofilter
		}
		scope := ""
		if dn.Sheet != nil && *dn.Sheet >= 0 && *dn.Sheet < len(w.wb.SheetNames) {
			scope = w.wb.SheetNames[*dn.Sheet]
		}
		if err := w.f.SetDefinedName(&excelize.DefinedName{
			Name:     dn.Name,
			RefersTo: dn.Ref,
			Comment:  dn.Comment,
			Scope:    scope,
		}); err != nil {
			if !strings.HasPrefix(dn.Name, "_xlnm.") || w.opts.WTF {
				return fmt.Errorf("defined name %q: %w", dn.Name, err)
			}
			w.log.Warn("skipping builtin name", "name", dn.Name, "err", err)
		}
	}

	active := -1
	for i := range w.wb.SheetNames {
		if w.wb.SheetVisibility(i) == model.Visible {
			active = i
			break
		}
	}
	if active < 0 {
		return sheeterr.New(sheeterr.InvalidOption, opEncode, "workbook has no visible sheet")
	}
	w.f.SetActiveSheet(active)
	for i, name := range w.wb.SheetNames {
		switch w.wb.SheetVisibility(i) {
		case model.Hidden:
			if err := w.f.SetSheetVisible(name, false); err != nil {
				return err
			}
		case model.VeryHidden:
			if err := w.f.SetSheetVisible(name, false, true); err != nil {
				return err
			}
		}
	}

	if len(s.Views) > 0 && s.Views[0].RTL {
		rtl := true
		for _, name := range w.wb.SheetNames {
			if err := w.f.SetSheetView(name, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
				return err
			}
		}
	}
	return nil
}

// properties writes document, application and custom properties.
// WriteOptions.Props replaces the workbook's own properties.
func (w *writer) properties() error {
	p := w.wb.Props
	if w.opts.Props != nil {
		p = w.opts.Props
	}
	if p != nil {
		doc := &excelize.DocProperties{
			Category:       p.Category,
			ContentStatus:  p.ContentStatus,
			Creator:        p.Author,
			Description:    p.Comments,
			Identifier:     p.Identifier,
			Keywords:       p.Keywords,
			LastModifiedBy: p.LastAuthor,
			Revision:       p.Revision,
			Subject:        p.Subject,
			Title:          p.Title,
			Language:       p.Language,
			Version:        p.Version,
		}
		if !p.CreatedDate.IsZero() {
			doc.Created = p.CreatedDate.UTC().Format(time.RFC3339)
		}
		if !p.ModifiedDate.IsZero() {
			doc.Modified = p.ModifiedDate.UTC().Format(time.RFC3339)
		}
		if err := w.f.SetDocProps(doc); err != nil {
			return fmt.Errorf("document properties: %w", err)
		}
		if p.Application != "" || p.Company != "" || p.AppVersion != "" {
			if err := w.f.SetAppProps(&excelize.AppProperties{
				Application: p.Application,
				Company:     p.Company,
				AppVersion:  p.AppVersion,
			}); err != nil {
				return fmt.Errorf("app properties: %w", err)
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(w.wb.Custprops)) {
		v := customValue(w.wb.Custprops[name])
		if err := w.f.SetCustomProps(excelize.CustomProperty{Name: name, Value: v}); err != nil {
			return fmt.Errorf("custom property %q: %w", name, err)
		}
	}
	return nil
}

// customValue narrows a custom property to the types a package can hold.
func customValue(v any) any {
	switch v := v.(type) {
	case string, bool, float64, time.Time:
		return v
	case int:
		return float64(v)
	case int32:
		return v
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return fmt.Sprint(v)
	}
}
