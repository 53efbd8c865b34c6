package htmldoc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const page = `<!DOCTYPE html>
<html>
<head>
	<title>Quarterly Report</title>
	<meta name="author" content="Test Author">
	<meta name="description" content="Sales by region">
	<meta name="keywords" content="sales, q1">
</head>
<body>
	<h1>Report</h1>
	<table>
		<thead><tr><th>Region</th><th colspan="2">Totals</th></tr></thead>
		<tbody>
			<tr><td rowspan="2">North</td><td>12</td><td>TRUE</td></tr>
			<tr><td><a href="https://example.com/q">link</a></td><td>#N/A</td></tr>
			<tr style="display: none"><td>secret</td></tr>
			<tr><td>line one<br>line   two</td><td data-t="s" data-v="007">7</td><td data-t="n" data-v="1.5" data-z="0.00">1.50</td></tr>
		</tbody>
	</table>
	<table><tr><td>second</td></tr><tr><td><table><tr><td>nested</td></tr></table></td></tr></table>
</body>
</html>`

func cellAt(t *testing.T, ws *model.Worksheet, ref string) *model.Cell {
	t.Helper()
	c := ws.Cell(address.MustCell(ref))
	require.NotNil(t, c, "no cell at %s", ref)
	return c
}

func TestDecode(t *testing.T) {
	wb, err := Decode([]byte(page), codec.DecodeRequest{})
	require.NoError(t, err)

	assert.Equal(t, "html", wb.BookType)
	assert.Equal(t, []string{"Sheet1", "Sheet2"}, wb.SheetNames)
	require.NotNil(t, wb.Props)
	assert.Equal(t, "Quarterly Report", wb.Props.Title)
	assert.Equal(t, "Test Author", wb.Props.Author)
	assert.Equal(t, "Sales by region", wb.Props.Subject)
	assert.Equal(t, "sales, q1", wb.Props.Keywords)

	ws := wb.Sheets["Sheet1"]
	require.NotNil(t, ws)
	assert.Equal(t, model.String("Region"), cellAt(t, ws, "A1").Value)
	assert.Equal(t, model.String("Totals"), cellAt(t, ws, "B1").Value)
	assert.Equal(t, model.String("North"), cellAt(t, ws, "A2").Value)
	assert.Equal(t, model.Number(12), cellAt(t, ws, "B2").Value)
	assert.Equal(t, model.Bool(true), cellAt(t, ws, "C2").Value)

	// A3 is covered by the rowspan above it.
	assert.Nil(t, ws.Cell(address.MustCell("A3")))
	b3 := cellAt(t, ws, "B3")
	assert.Equal(t, model.String("link"), b3.Value)
	require.NotNil(t, b3.Link)
	assert.Equal(t, "https://example.com/q", b3.Link.Target)
	assert.Equal(t, model.ErrorNA, cellAt(t, ws, "C3").Value)

	assert.True(t, ws.RowHidden(3))
	assert.Equal(t, model.String("secret"), cellAt(t, ws, "A4").Value)

	assert.Equal(t, model.String("line one\nline two"), cellAt(t, ws, "A5").Value)
	assert.Equal(t, model.String("007"), cellAt(t, ws, "B5").Value)
	c5 := cellAt(t, ws, "C5")
	assert.Equal(t, model.Number(1.5), c5.Value)
	assert.Equal(t, "0.00", c5.NumFmt.Code)

	assert.ElementsMatch(t, []address.Range{
		address.MustRange("B1:C1"),
		address.MustRange("A2:A3"),
	}, ws.Merges)

	second := wb.Sheets["Sheet2"]
	require.NotNil(t, second)
	assert.Equal(t, model.String("second"), cellAt(t, second, "A1").Value)
	assert.Equal(t, model.String("nested"), cellAt(t, second, "A2").Value)
}

func TestDecodeOptions(t *testing.T) {
	t.Run("raw", func(t *testing.T) {
		wb, err := Decode([]byte(page), codec.DecodeRequest{Options: codec.ParseOptions{Raw: true}})
		require.NoError(t, err)
		assert.Equal(t, model.String("12"), cellAt(t, wb.Sheets["Sheet1"], "B2").Value)
	})

	t.Run("sheet rows", func(t *testing.T) {
		req := codec.DecodeRequest{Options: codec.ParseOptions{SheetRows: 2}, Stage: codec.StageRows}
		wb, err := Decode([]byte(page), req)
		require.NoError(t, err)
		ws := wb.Sheets["Sheet1"]
		assert.NotNil(t, ws.Cell(address.MustCell("B2")))
		assert.Nil(t, ws.Cell(address.MustCell("B3")))
	})

	t.Run("sheet selection", func(t *testing.T) {
		req := codec.DecodeRequest{Options: codec.ParseOptions{Sheets: []codec.SheetRef{codec.SheetIndex(1)}}}
		wb, err := Decode([]byte(page), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"Sheet2"}, wb.SheetNames)
	})

	t.Run("sheet names stage", func(t *testing.T) {
		wb, err := Decode([]byte(page), codec.DecodeRequest{Stage: codec.StageSheetNames})
		require.NoError(t, err)
		assert.Equal(t, []string{"Sheet1", "Sheet2"}, wb.SheetNames)
		assert.Empty(t, wb.Sheets)
	})
}

func TestDecodeCharset(t *testing.T) {
	doc := []byte("<html><head><meta charset=\"windows-1252\"></head><body><table><tr><td>caf\xe9</td></tr></table></body></html>")
	wb, err := Decode(doc, codec.DecodeRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.String("café"), cellAt(t, wb.Sheets["Sheet1"], "A1").Value)

	wb, err = Decode(doc, codec.DecodeRequest{Options: codec.ParseOptions{Codepage: 1252}})
	require.NoError(t, err)
	assert.Equal(t, model.String("café"), cellAt(t, wb.Sheets["Sheet1"], "A1").Value)
}

func TestDecodeNoTable(t *testing.T) {
	_, err := Decode([]byte(`<html><body><p>nothing here</p></body></html>`), codec.DecodeRequest{})
	require.Error(t, err)
	assert.Equal(t, sheeterr.TruncatedInput, sheeterr.KindOf(err))
}

func TestTableToSheetDisplay(t *testing.T) {
	table, err := ParseTable(`<table>
		<tr><td>a</td><td hidden>b</td><td>c</td></tr>
		<tr style="DISPLAY:none"><td>gone</td></tr>
		<tr><td>d</td></tr>
	</table>`)
	require.NoError(t, err)

	ws, err := TableToSheet(table, Options{Display: true})
	require.NoError(t, err)
	assert.Equal(t, model.String("c"), cellAt(t, ws, "B1").Value)
	assert.Equal(t, model.String("d"), cellAt(t, ws, "A2").Value)
	ref, ok := ws.Ref()
	require.True(t, ok)
	assert.Equal(t, "A1:B2", ref.String())
}

func TestTableToSheetTypes(t *testing.T) {
	table, err := ParseTable(`<table><tr>
		<td data-t="b" data-v="false">no</td>
		<td data-t="e" data-v="7">#DIV/0!</td>
		<td data-t="d" data-v="2024-03-01T00:00:00.000Z">3/1/24</td>
		<td data-t="z"></td>
		<td></td>
		<td data-t="n" data-v="x">?</td>
	</tr></table>`)
	require.NoError(t, err)

	_, err = TableToSheet(table, Options{})
	require.Error(t, err)
	assert.Equal(t, sheeterr.UnsupportedValue, sheeterr.KindOf(err))

	table, err = ParseTable(`<table><tr>
		<td data-t="b" data-v="false">no</td>
		<td data-t="e" data-v="7">#DIV/0!</td>
		<td data-t="d" data-v="2024-03-01T00:00:00.000Z">3/1/24</td>
		<td data-t="z"></td>
		<td></td>
	</tr></table>`)
	require.NoError(t, err)

	ws, err := TableToSheet(table, Options{})
	require.NoError(t, err)
	assert.Equal(t, model.Bool(false), cellAt(t, ws, "A1").Value)
	assert.Equal(t, model.ErrorDiv0, cellAt(t, ws, "B1").Value)
	c1 := cellAt(t, ws, "C1")
	assert.Equal(t, model.Number(45352), c1.Value)
	assert.Equal(t, 14, c1.NumFmt.ID)
	assert.Equal(t, model.Stub{}, cellAt(t, ws, "D1").Value)
	assert.Nil(t, ws.Cell(address.MustCell("E1")))

	ws, err = TableToSheet(table, Options{CellDates: true, SheetStubs: true})
	require.NoError(t, err)
	assert.Equal(t, model.Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), cellAt(t, ws, "C1").Value)
	assert.Equal(t, model.Stub{}, cellAt(t, ws, "E1").Value)
}

func TestAddDOM(t *testing.T) {
	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.String("title"))

	table, err := ParseTable(`<table><tr><td colspan="2">x</td><td>y</td></tr><tr><td>1</td><td>2</td></tr></table>`)
	require.NoError(t, err)

	require.NoError(t, AddDOM(ws, table, Options{Origin: builder.OriginAppend()}))
	assert.Equal(t, model.String("x"), cellAt(t, ws, "A2").Value)
	assert.Equal(t, model.String("y"), cellAt(t, ws, "C2").Value)
	assert.Equal(t, model.Number(2), cellAt(t, ws, "B3").Value)
	assert.Equal(t, []address.Range{address.MustRange("A2:B2")}, ws.Merges)

	require.NoError(t, AddDOM(ws, table, Options{Origin: builder.OriginRef("E5")}))
	assert.Equal(t, model.String("x"), cellAt(t, ws, "E5").Value)
	assert.Len(t, ws.Merges, 2)

	err = AddDOM(ws, table, Options{Origin: builder.OriginRef("not a ref")})
	require.Error(t, err)

	err = AddDOM(nil, table, Options{})
	assert.Equal(t, sheeterr.InvalidOption, sheeterr.KindOf(err))
}

func TestTableToBook(t *testing.T) {
	table, err := ParseTable(`<div><table><tr><td>only</td></tr></table></div>`)
	require.NoError(t, err)
	wb, err := TableToBook(table, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1"}, wb.SheetNames)

	_, err = ParseTable(`<p>no table</p>`)
	require.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.String("name"))
	ws.Set(address.MustCell("B1"), model.Number(3.25)).SetNumberFormat("0.00")
	ws.Set(address.MustCell("A2"), model.Bool(true))
	ws.Set(address.MustCell("B2"), model.ErrorRef)
	ws.Set(address.MustCell("C1"), model.String("two\nlines"))
	ws.Merges = append(ws.Merges, address.MustRange("A3:C3"))
	ws.Set(address.MustCell("A3"), model.String("wide")).SetHyperlink("https://example.com", "")

	wb := model.NewWorkbook()
	_, err := wb.AppendSheet(ws, "Data")
	require.NoError(t, err)

	out, err := Encode(wb, codec.WriteOptions{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "<table"))

	back, err := Decode(out, codec.DecodeRequest{})
	require.NoError(t, err)
	got := back.Sheets["Sheet1"]
	require.NotNil(t, got)
	assert.Equal(t, model.String("name"), cellAt(t, got, "A1").Value)
	b1 := cellAt(t, got, "B1")
	assert.Equal(t, model.Number(3.25), b1.Value)
	assert.Equal(t, "0.00", b1.NumFmt.Code)
	assert.Equal(t, model.Bool(true), cellAt(t, got, "A2").Value)
	assert.Equal(t, model.ErrorRef, cellAt(t, got, "B2").Value)
	assert.Equal(t, model.String("two\nlines"), cellAt(t, got, "C1").Value)
	a3 := cellAt(t, got, "A3")
	require.NotNil(t, a3.Link)
	assert.Equal(t, "https://example.com", a3.Link.Target)
	assert.Equal(t, []address.Range{address.MustRange("A3:C3")}, got.Merges)

	_, err = Encode(model.NewWorkbook(), codec.WriteOptions{})
	assert.Equal(t, sheeterr.EmptyWorkbook, sheeterr.KindOf(err))
}
