package cellar

import (
	"golang.org/x/net/html"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/htmldoc"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/textfmt"
)

// Aliases for the types most callers touch.
type (
	Workbook     = model.Workbook
	Worksheet    = model.Worksheet
	Cell         = model.Cell
	ParseOptions = codec.ParseOptions
	WriteOptions = codec.WriteOptions
)

// BookNew returns an empty workbook.
func BookNew() *model.Workbook {
	return model.NewWorkbook()
}

// BookAppendSheet adds ws to wb under name and returns the name used. An
// empty name picks the first free "SheetN"; a name already in use is an
// error.
func BookAppendSheet(wb *model.Workbook, ws *model.Worksheet, name string) (string, error) {
	return wb.AppendSheet(ws, name)
}

// AOAToSheet builds a worksheet from rows of values.
func AOAToSheet(rows [][]any, opts builder.Options) (*model.Worksheet, error) {
	return builder.AOAToSheet(rows, opts)
}

// SheetAddAOA writes rows of values into ws at opts.Origin.
func SheetAddAOA(ws *model.Worksheet, rows [][]any, opts builder.Options) error {
	return builder.AddAOA(ws, rows, opts)
}

// JSONToSheet builds a worksheet from records, writing a header row of keys.
func JSONToSheet(records []any, opts builder.JSONOptions) (*model.Worksheet, error) {
	return builder.JSONToSheet(records, opts)
}

// SheetAddJSON writes records into ws at opts.Origin.
func SheetAddJSON(ws *model.Worksheet, records []any, opts builder.JSONOptions) error {
	return builder.AddJSON(ws, records, opts)
}

// TableToSheet builds a worksheet from an HTML table element.
func TableToSheet(table *html.Node, opts htmldoc.Options) (*model.Worksheet, error) {
	return htmldoc.TableToSheet(table, opts)
}

// TableToBook builds a one sheet workbook from an HTML table element.
func TableToBook(table *html.Node, opts htmldoc.Options) (*model.Workbook, error) {
	return htmldoc.TableToBook(table, opts)
}

// SheetAddDOM writes an HTML table into ws at opts.Origin.
func SheetAddDOM(ws *model.Worksheet, table *html.Node, opts htmldoc.Options) error {
	return htmldoc.AddDOM(ws, table, opts)
}

// SheetToCSV renders ws as comma separated text.
func SheetToCSV(ws *model.Worksheet, opts export.CSVOptions) (string, error) {
	return export.SheetToCSV(ws, opts)
}

// SheetToTxt renders ws as tab separated text.
func SheetToTxt(ws *model.Worksheet, opts export.CSVOptions) (string, error) {
	return export.SheetToText(ws, opts)
}

// SheetToJSON returns one record per data row, keyed by the header row or
// by the header mode in opts.
func SheetToJSON(ws *model.Worksheet, opts export.JSONOptions) ([]*model.Record, error) {
	return export.SheetToRecords(ws, opts)
}

// SheetToAOA returns the rows of ws as arrays of values.
func SheetToAOA(ws *model.Worksheet, opts export.JSONOptions) ([][]any, error) {
	return export.SheetToRows(ws, opts)
}

// SheetToHTML renders ws as an HTML document holding one table.
func SheetToHTML(ws *model.Worksheet, opts export.HTMLOptions) (string, error) {
	return export.SheetToHTML(ws, opts)
}

// SheetToFormulae lists every cell as "A1=content", giving the formula of
// formula cells.
func SheetToFormulae(ws *model.Worksheet) ([]string, error) {
	return export.SheetToFormulae(ws)
}

// SheetToDIF renders ws in the Data Interchange Format.
func SheetToDIF(ws *model.Worksheet, opts textfmt.Options) (string, error) {
	return textfmt.SheetToDIF(ws, opts)
}

// SheetToSLK renders ws in the Symbolic Link format.
func SheetToSLK(ws *model.Worksheet, opts textfmt.Options) (string, error) {
	return textfmt.SheetToSLK(ws, opts)
}

// SheetToETH renders ws in the EtherCalc save format.
func SheetToETH(ws *model.Worksheet, opts textfmt.Options) (string, error) {
	return textfmt.SheetToETH(ws, opts)
}

// SheetToRTF renders ws as an RTF table.
func SheetToRTF(ws *model.Worksheet, opts textfmt.Options) (string, error) {
	return textfmt.SheetToRTF(ws, opts)
}

// FormatCell returns the display text of c.
func FormatCell(c *model.Cell, opts numfmt.Options) string {
	return numfmt.FormatCell(c, opts)
}

// Address helpers.
var (
	EncodeCol   = address.EncodeCol
	DecodeCol   = address.DecodeCol
	EncodeRow   = address.EncodeRow
	DecodeRow   = address.DecodeRow
	EncodeCell  = address.EncodeCell
	DecodeCell  = address.DecodeCell
	EncodeRange = address.EncodeRange
	DecodeRange = address.DecodeRange
)
