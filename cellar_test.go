package cellar

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
	"github.com/tsawler/cellar/textfmt"
)

func sampleBook(t *testing.T) *model.Workbook {
	t.Helper()
	wb := BookNew()
	data, err := AOAToSheet([][]any{{"name", "qty"}, {"apple", 3}, {"pear", 1.5}}, builder.Options{})
	require.NoError(t, err)
	_, err = BookAppendSheet(wb, data, "Data")
	require.NoError(t, err)
	notes, err := AOAToSheet([][]any{{"note"}}, builder.Options{})
	require.NoError(t, err)
	_, err = BookAppendSheet(wb, notes, "Notes")
	require.NoError(t, err)
	wb.Props = &model.Properties{Title: "Fruit"}
	return wb
}

func value(t *testing.T, ws *model.Worksheet, ref string) model.Value {
	t.Helper()
	c := ws.Cell(address.MustCell(ref))
	require.NotNil(t, c, "no cell at %s", ref)
	return c.Value
}

func TestWriteReadRoundTrip(t *testing.T) {
	types := []string{"xlsx", "ods", "fods", "xlml", "html", "csv", "txt", "sylk", "dif"}
	for _, bt := range types {
		t.Run(bt, func(t *testing.T) {
			out, err := Write(sampleBook(t), codec.WriteOptions{BookType: bt})
			require.NoError(t, err)
			require.NotEmpty(t, out)

			opts := codec.DefaultParseOptions()
			opts.BookType = bt
			wb, err := Read(out, opts)
			require.NoError(t, err)
			require.NotEmpty(t, wb.SheetNames)
			ws := wb.Sheets[wb.SheetNames[0]]
			require.NotNil(t, ws)

			assert.Equal(t, model.String("name"), value(t, ws, "A1"))
			assert.Equal(t, model.String("apple"), value(t, ws, "A2"))
			assert.Equal(t, model.Number(3), value(t, ws, "B2"))
			assert.Equal(t, model.Number(1.5), value(t, ws, "B3"))
		})
	}
}

func TestReadDetectsType(t *testing.T) {
	for _, bt := range []string{"xlsx", "ods", "xlml", "csv", "txt", "sylk", "dif"} {
		t.Run(bt, func(t *testing.T) {
			out, err := Write(sampleBook(t), codec.WriteOptions{BookType: bt})
			require.NoError(t, err)
			wb, err := Read(out)
			require.NoError(t, err)
			assert.Equal(t, bt, wb.BookType)
		})
	}
}

func TestReadWriteErrors(t *testing.T) {
	_, err := Read(nil)
	assert.Equal(t, sheeterr.TruncatedInput, sheeterr.KindOf(err))

	_, err = Read([]byte("a,b"), codec.ParseOptions{BookType: "xlsb"})
	assert.Equal(t, sheeterr.UnsupportedFormat, sheeterr.KindOf(err))

	_, err = Read([]byte("a,b"), codec.ParseOptions{BookType: "lotus"})
	assert.Equal(t, sheeterr.UnsupportedFormat, sheeterr.KindOf(err))

	_, err = Write(sampleBook(t), codec.WriteOptions{BookType: "xls"})
	assert.Equal(t, sheeterr.UnsupportedFormat, sheeterr.KindOf(err))

	_, err = Write(BookNew(), codec.WriteOptions{BookType: "csv"})
	assert.Equal(t, sheeterr.EmptyWorkbook, sheeterr.KindOf(err))

	err = WriteFile(sampleBook(t), filepath.Join(t.TempDir(), "book.unknown"), codec.WriteOptions{})
	assert.Equal(t, sheeterr.UnsupportedFormat, sheeterr.KindOf(err))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fruit.xlsx")
	require.NoError(t, WriteFile(sampleBook(t), path, codec.WriteOptions{}))

	wb, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", wb.BookType)
	assert.Equal(t, []string{"Data", "Notes"}, wb.SheetNames)

	names, err := Open(path).SheetNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Data", "Notes"}, names)

	props, err := Open(path).Props()
	require.NoError(t, err)
	require.NotNil(t, props)
	assert.Equal(t, "Fruit", props.Title)

	csv, err := Open(path).CSV("Data")
	require.NoError(t, err)
	assert.Equal(t, "name,qty\napple,3\npear,1.5", csv)

	first, err := Open(path).CSV("")
	require.NoError(t, err)
	assert.Equal(t, csv, first)

	recs, err := Open(path).Records("Data")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	v, ok := recs[1].Get("qty")
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	rows, err := Open(path).Rows("Notes")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"note"}}, rows)

	_, err = Open(path).CSV("Missing")
	assert.Equal(t, sheeterr.SheetNotFound, sheeterr.KindOf(err))
}

func TestReaderOptions(t *testing.T) {
	out, err := Write(sampleBook(t), codec.WriteOptions{})
	require.NoError(t, err)
	base := FromBytes(out)

	wb, _, err := base.SheetRows(1).Workbook()
	require.NoError(t, err)
	assert.Equal(t, 2, wb.Sheets["Data"].Len())

	wb, _, err = base.Sheets("Notes").Dense().Workbook()
	require.NoError(t, err)
	assert.Equal(t, []string{"Data", "Notes"}, wb.SheetNames)
	assert.NotContains(t, wb.Sheets, "Data")
	require.Contains(t, wb.Sheets, "Notes")
	assert.True(t, wb.Sheets["Notes"].Dense())

	wb, _, err = base.BookSheets().Workbook()
	require.NoError(t, err)
	assert.Empty(t, wb.Sheets)

	_, _, err = base.SheetRows(-1).Workbook()
	assert.Equal(t, sheeterr.InvalidOption, sheeterr.KindOf(err))

	_, _, err = base.BookType("bogus").Workbook()
	assert.Equal(t, sheeterr.UnsupportedFormat, sheeterr.KindOf(err))
}

func TestReaderImmutable(t *testing.T) {
	base := FromBytes([]byte("a,b\n1,2"))
	a := base.Sheets("One")
	b := a.Sheets("Two").CellDates()

	assert.Nil(t, base.options.sheets)
	assert.Equal(t, []string{"One"}, a.options.sheets)
	assert.Equal(t, []string{"One", "Two"}, b.options.sheets)
	assert.False(t, a.options.cellDates)
	assert.True(t, b.options.cellDates)
}

const oddXLML = `<?xml version="1.0"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet" xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">
 <Worksheet ss:Name="S"><Table><Row><Cell><Data ss:Type="Blob">abc</Data></Cell></Row></Table></Worksheet>
</Workbook>`

func TestReaderWarnings(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))

	wb, warnings, err := FromBytes([]byte(oddXLML)).Logger(quiet).Workbook()
	require.NoError(t, err)
	assert.Equal(t, model.String("abc"), value(t, wb.Sheets["S"], "A1"))
	require.Len(t, warnings, 1)
	assert.Equal(t, "unknown data type read as text", warnings[0].Message)
	assert.Equal(t, "xlml_decode", warnings[0].Attrs["op"])
	assert.Equal(t, "Blob", warnings[0].Attrs["type"])
	assert.Contains(t, FormatWarnings(warnings), "op=xlml_decode type=Blob")

	_, _, err = FromBytes([]byte(oddXLML)).Logger(quiet).Strict().Workbook()
	assert.Equal(t, sheeterr.UnsupportedValue, sheeterr.KindOf(err))
}

func TestWarningHandler(t *testing.T) {
	h := newWarningHandler(slog.NewTextHandler(io.Discard, nil))
	log := slog.New(h).With("op", "read").WithGroup("cell")
	log.Info("ignored")
	log.Warn("coerced", "ref", "B2")
	log.Error("failed")

	ws := h.warnings()
	require.Len(t, ws, 2)
	assert.Equal(t, Warning{Message: "coerced", Attrs: map[string]string{"op": "read", "cell.ref": "B2"}}, ws[0])
	assert.Equal(t, "failed op=read", ws[1].String())
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
}

func TestHelpers(t *testing.T) {
	wb := sampleBook(t)
	ws := wb.Sheets["Data"]

	_, err := BookAppendSheet(wb, nil, "data")
	assert.Equal(t, sheeterr.DuplicateSheetName, sheeterr.KindOf(err))
	name, err := BookAppendSheet(wb, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", name)

	require.NoError(t, SheetAddAOA(ws, [][]any{{"plum", 7}}, builder.Options{Origin: builder.OriginAppend()}))
	csv, err := SheetToCSV(ws, export.CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "name,qty\napple,3\npear,1.5\nplum,7", csv)

	txt, err := SheetToTxt(ws, export.CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "name\tqty\napple\t3\npear\t1.5\nplum\t7", txt)

	formulae, err := SheetToFormulae(ws)
	require.NoError(t, err)
	assert.Equal(t, "A1='name", formulae[0])

	recs, err := SheetToJSON(ws, export.DefaultJSONOptions())
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	js, err := JSONToSheet([]any{map[string]any{"k": 1}}, builder.JSONOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.String("k"), value(t, js, "A1"))

	for _, fn := range []func(*model.Worksheet) (string, error){
		func(ws *model.Worksheet) (string, error) { return SheetToHTML(ws, export.HTMLOptions{}) },
		func(ws *model.Worksheet) (string, error) { return SheetToDIF(ws, textfmt.Options{}) },
		func(ws *model.Worksheet) (string, error) { return SheetToSLK(ws, textfmt.Options{}) },
		func(ws *model.Worksheet) (string, error) { return SheetToETH(ws, textfmt.Options{}) },
		func(ws *model.Worksheet) (string, error) { return SheetToRTF(ws, textfmt.Options{}) },
	} {
		s, err := fn(ws)
		require.NoError(t, err)
		assert.Contains(t, s, "plum")
	}

	assert.Equal(t, "AB", EncodeCol(27))
	c, err := DecodeCell("C4")
	require.NoError(t, err)
	assert.Equal(t, address.Cell{Row: 3, Col: 2}, c)
	assert.Equal(t, "3", FormatCell(ws.Cell(c.Offset(-2, -1)), numfmt.Options{}))
}

func TestJSONToCSV(t *testing.T) {
	ws, err := JSONToSheet([]any{map[string]any{"a": 1, "b": 2}}, builder.JSONOptions{})
	require.NoError(t, err)
	csv, err := SheetToCSV(ws, export.CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2", csv)

	rows, err := SheetToAOA(ws, export.JSONOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", "b"}, {1.0, 2.0}}, rows)
}
