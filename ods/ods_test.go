package ods

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const flatDoc = `<?xml version="1.0" encoding="UTF-8"?>
<office:document xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0"
  xmlns:xlink="http://www.w3.org/1999/xlink"
  xmlns:calcext="urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0"
  office:version="1.2" office:mimetype="application/vnd.oasis.opendocument.spreadsheet">
 <office:meta>
  <dc:title>Budget</dc:title>
  <meta:initial-creator>ann</meta:initial-creator>
  <meta:creation-date>2024-03-01T10:00:00</meta:creation-date>
  <meta:keyword>money</meta:keyword>
  <meta:user-defined meta:name="Reviewed" meta:value-type="boolean">true</meta:user-defined>
  <meta:user-defined meta:name="Cost" meta:value-type="float">9.5</meta:user-defined>
 </office:meta>
 <office:automatic-styles>
  <style:style style:name="co1" style:family="table-column"><style:table-column-properties style:column-width="1in"/></style:style>
  <style:style style:name="ro2" style:family="table-row"><style:table-row-properties style:row-height="30pt"/></style:style>
  <style:style style:name="ta2" style:family="table"><style:table-properties table:display="false"/></style:style>
 </office:automatic-styles>
 <office:body>
  <office:spreadsheet>
   <table:table table:name="Main" table:protected="true">
    <table:table-column table:style-name="co1"/>
    <table:table-column table:visibility="collapse"/>
    <table:table-column table:number-columns-repeated="1020"/>
    <table:table-header-rows>
     <table:table-row>
      <table:table-cell office:value-type="string"><text:p>Item<text:s text:c="2"/>name</text:p></table:table-cell>
      <table:table-cell office:value-type="float" office:value="2.5"><text:p>2.5</text:p></table:table-cell>
      <table:table-cell office:value-type="float" office:value="7" table:number-columns-repeated="2"><text:p>7</text:p></table:table-cell>
     </table:table-row>
    </table:table-header-rows>
    <table:table-row table:style-name="ro2" table:visibility="collapse">
     <table:table-cell office:value-type="date" office:date-value="2024-03-01"><text:p>03/01/24</text:p></table:table-cell>
     <table:table-cell office:value-type="boolean" office:boolean-value="true"><text:p>TRUE</text:p></table:table-cell>
     <table:table-cell table:formula="of:=SUM([.B1:.C1];[Other.A1])" office:value-type="float" office:value="9.5"><text:p>9.5</text:p></table:table-cell>
     <table:table-cell office:value-type="percentage" office:value="0.25"><text:p>25%</text:p></table:table-cell>
    </table:table-row>
    <table:table-row table:number-rows-repeated="3"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>
    <table:table-row>
     <table:table-cell table:number-columns-spanned="2" table:number-rows-spanned="2" office:value-type="string">
      <office:annotation office:display="true"><dc:creator>bob</dc:creator><text:p>check</text:p></office:annotation>
      <text:p><text:a xlink:href="https://example.com">site</text:a></text:p>
     </table:table-cell>
     <table:covered-table-cell/>
     <table:table-cell table:formula="of:=1/0" office:value-type="string" calcext:value-type="error"><text:p>#DIV/0!</text:p></table:table-cell>
     <table:table-cell office:value-type="time" office:time-value="PT12H30M00S"><text:p>12:30:00</text:p></table:table-cell>
    </table:table-row>
    <table:table-row>
     <table:covered-table-cell table:number-columns-repeated="2"/>
     <table:table-cell office:value-type="string"><text:p>one</text:p><text:p>two</text:p></table:table-cell>
    </table:table-row>
    <table:table-row table:number-rows-repeated="1048570"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>
   </table:table>
   <table:table table:name="Other" table:style-name="ta2">
    <table:table-row><table:table-cell office:value-type="float" office:value="1"><text:p>1</text:p></table:table-cell></table:table-row>
   </table:table>
   <table:named-expressions>
    <table:named-range table:name="Prices" table:cell-range-address="$Main.$B$1:.$C$1"/>
   </table:named-expressions>
   <table:database-ranges>
    <table:database-range table:name="__Anonymous_Sheet_DB__0" table:target-range-address="Main.A1:Main.D2" table:display-filter-buttons="true"/>
   </table:database-ranges>
  </office:spreadsheet>
 </office:body>
</office:document>`

func decode(t *testing.T, data []byte, opts codec.ParseOptions) *model.Workbook {
	t.Helper()
	wb, err := Decode(data, codec.DecodeRequest{Options: opts, Stage: codec.PolicyFor(opts)})
	require.NoError(t, err)
	return wb
}

func cellAt(t *testing.T, ws *model.Worksheet, ref string) *model.Cell {
	t.Helper()
	c := ws.Cell(address.MustCell(ref))
	require.NotNil(t, c, "no cell at %s", ref)
	return c
}

func TestDecodeFlat(t *testing.T) {
	wb := decode(t, []byte(flatDoc), codec.DefaultParseOptions())
	assert.Equal(t, "fods", wb.BookType)
	assert.Equal(t, []string{"Main", "Other"}, wb.SheetNames)
	assert.Equal(t, model.Hidden, wb.SheetVisibility(1))

	ws := wb.Sheet("Main")
	require.NotNil(t, ws)
	tests := []struct {
		ref  string
		want model.Value
	}{
		{"A1", model.String("Item  name")},
		{"B1", model.Number(2.5)},
		{"C1", model.Number(7)},
		{"D1", model.Number(7)},
		{"A2", model.Number(45352)},
		{"B2", model.Bool(true)},
		{"C2", model.Number(9.5)},
		{"D2", model.Number(0.25)},
		{"A6", model.String("site")},
		{"C6", model.ErrorDiv0},
		{"D6", model.Number(0.5208333333333334)},
		{"C7", model.String("one\ntwo")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellAt(t, ws, tt.ref).Value, tt.ref)
	}

	assert.Equal(t, "SUM(B1:C1,Other!A1)", cellAt(t, ws, "C2").Formula)
	assert.Equal(t, 14, cellAt(t, ws, "A2").NumFmt.ID)
	assert.Equal(t, "03/01/24", cellAt(t, ws, "A2").Text)

	a6 := cellAt(t, ws, "A6")
	require.NotNil(t, a6.Link)
	assert.Equal(t, "https://example.com", a6.Link.Target)
	require.Len(t, a6.Comments, 1)
	assert.Equal(t, model.Comment{Author: "bob", Text: "check"}, a6.Comments[0])
	assert.False(t, a6.CommentsHidden)

	assert.Equal(t, []address.Range{address.MustRange("A6:B7")}, ws.Merges)
	assert.NotNil(t, ws.Protect)
	require.NotNil(t, ws.AutoFilter)
	assert.Equal(t, "A1:D2", ws.AutoFilter.Ref.String())

	ref, ok := ws.Ref()
	require.True(t, ok)
	assert.Equal(t, "A1:D7", ref.String())

	assert.InDelta(t, 96.0, ws.Cols[0].WPX, 0.01)
	assert.True(t, ws.ColHidden(1))
	assert.Len(t, ws.Cols, 2)
	assert.True(t, ws.RowHidden(1))
	assert.InDelta(t, 30.0, ws.Rows[1].HPT, 0.01)

	require.Len(t, wb.Settings.Names, 1)
	assert.Equal(t, model.DefinedName{Name: "Prices", Ref: "Main!$B$1:$C$1"}, wb.Settings.Names[0])

	require.NotNil(t, wb.Props)
	assert.Equal(t, "Budget", wb.Props.Title)
	assert.Equal(t, "ann", wb.Props.Author)
	assert.Equal(t, "money", wb.Props.Keywords)
	assert.Equal(t, time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC), wb.Props.CreatedDate)
	assert.Equal(t, map[string]any{"Reviewed": true, "Cost": 9.5}, wb.Custprops)
}

func TestDecodeOptions(t *testing.T) {
	t.Run("dates", func(t *testing.T) {
		wb := decode(t, []byte(flatDoc), codec.ParseOptions{CellDates: true})
		d, ok := cellAt(t, wb.Sheet("Main"), "A2").Value.(model.Date)
		require.True(t, ok)
		assert.True(t, d.Time().Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("no formulas", func(t *testing.T) {
		wb := decode(t, []byte(flatDoc), codec.ParseOptions{})
		c := cellAt(t, wb.Sheet("Main"), "C2")
		assert.Empty(t, c.Formula)
		assert.Empty(t, c.Text)
	})

	t.Run("rows", func(t *testing.T) {
		wb := decode(t, []byte(flatDoc), codec.ParseOptions{SheetRows: 2})
		ref, ok := wb.Sheet("Main").Ref()
		require.True(t, ok)
		assert.Equal(t, "A1:D2", ref.String())
	})

	t.Run("sheets", func(t *testing.T) {
		wb := decode(t, []byte(flatDoc), codec.ParseOptions{Sheets: []codec.SheetRef{codec.SheetName("Other")}})
		assert.Nil(t, wb.Sheet("Main"))
		assert.NotNil(t, wb.Sheet("Other"))
	})

	t.Run("dense", func(t *testing.T) {
		wb := decode(t, []byte(flatDoc), codec.ParseOptions{Dense: true})
		ws := wb.Sheet("Main")
		assert.True(t, ws.Dense())
		assert.Equal(t, model.Number(2.5), cellAt(t, ws, "B1").Value)
	})
}

func TestDecodeStages(t *testing.T) {
	wb, err := Decode([]byte(flatDoc), codec.DecodeRequest{Stage: codec.StageSheetNames})
	require.NoError(t, err)
	assert.Equal(t, []string{"Main", "Other"}, wb.SheetNames)
	assert.Empty(t, wb.Sheets)
	assert.Nil(t, wb.Props)

	wb, err = Decode([]byte(flatDoc), codec.DecodeRequest{Stage: codec.StageProps})
	require.NoError(t, err)
	assert.Empty(t, wb.Sheets)
	require.NotNil(t, wb.Props)
	assert.Equal(t, "Budget", wb.Props.Title)
}

func sampleBook(t *testing.T) *model.Workbook {
	t.Helper()
	wb := model.NewWorkbook()
	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.String("name"))
	ws.Set(address.MustCell("B1"), model.Number(12.5))
	ws.Set(address.MustCell("C1"), model.Bool(false))
	ws.Set(address.MustCell("A2"), model.Date(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	ws.Set(address.MustCell("B2"), model.ErrorNA)
	ws.SetCell(address.MustCell("C2"), &model.Cell{Value: model.Number(25), Formula: "B1*2"})
	link := ws.Set(address.MustCell("A4"), model.String("home"))
	link.SetHyperlink("https://example.com", "")
	link.AddComment("note", "ann")
	ws.Merges = append(ws.Merges, address.MustRange("A4:B5"))
	ws.SetColInfo(0, model.ColInfo{WPX: 120})
	ws.SetRowInfo(2, model.RowInfo{Hidden: true})
	_, err := wb.AppendSheet(ws, "Data")
	require.NoError(t, err)

	other := model.NewWorksheet()
	other.Set(address.MustCell("A1"), model.String("x & <y>"))
	_, err = wb.AppendSheet(other, "Second Sheet")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetVisibility("Second Sheet", model.Hidden))

	wb.Props = &model.Properties{Title: "Round trip", Author: "ann"}
	wb.Custprops = map[string]any{"Approved": true}
	wb.Settings.Names = []model.DefinedName{{Name: "Head", Ref: "Data!$A$1:$C$1"}}
	return wb
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name   string
		encode func(*model.Workbook, codec.WriteOptions) ([]byte, error)
		book   string
	}{
		{"ods", Encode, "ods"},
		{"fods", EncodeFlat, "fods"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.encode(sampleBook(t), codec.WriteOptions{Compression: true})
			require.NoError(t, err)

			wb := decode(t, out, codec.DefaultParseOptions())
			assert.Equal(t, tt.book, wb.BookType)
			assert.Equal(t, []string{"Data", "Second Sheet"}, wb.SheetNames)
			assert.Equal(t, model.Hidden, wb.SheetVisibility(1))

			ws := wb.Sheet("Data")
			assert.Equal(t, model.String("name"), cellAt(t, ws, "A1").Value)
			assert.Equal(t, model.Number(12.5), cellAt(t, ws, "B1").Value)
			assert.Equal(t, model.Bool(false), cellAt(t, ws, "C1").Value)
			assert.Equal(t, model.Number(45352), cellAt(t, ws, "A2").Value)
			assert.Equal(t, model.ErrorNA, cellAt(t, ws, "B2").Value)
			assert.Equal(t, "B1*2", cellAt(t, ws, "C2").Formula)

			a4 := cellAt(t, ws, "A4")
			require.NotNil(t, a4.Link)
			assert.Equal(t, "https://example.com", a4.Link.Target)
			require.Len(t, a4.Comments, 1)
			assert.Equal(t, "note", a4.Comments[0].Text)
			assert.Equal(t, []address.Range{address.MustRange("A4:B5")}, ws.Merges)
			assert.InDelta(t, 120.0, ws.Cols[0].WPX, 0.01)
			assert.True(t, ws.RowHidden(2))

			assert.Equal(t, model.String("x & <y>"), cellAt(t, wb.Sheet("Second Sheet"), "A1").Value)
			require.NotNil(t, wb.Props)
			assert.Equal(t, "Round trip", wb.Props.Title)
			assert.Equal(t, true, wb.Custprops["Approved"])
			require.Len(t, wb.Settings.Names, 1)
			assert.Equal(t, "Data!$A$1:$C$1", wb.Settings.Names[0].Ref)
		})
	}
}

func TestEncodePackageLayout(t *testing.T) {
	out, err := Encode(sampleBook(t), codec.WriteOptions{Compression: true})
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)

	first := zr.File[0]
	assert.Equal(t, "mimetype", first.Name)
	assert.Equal(t, zip.Store, first.Method)
	rc, err := first.Open()
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, mimeType, string(b))

	_, err = Encode(model.NewWorkbook(), codec.WriteOptions{})
	assert.ErrorIs(t, err, sheeterr.ErrEmptyWorkbook)
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecodeErrors(t *testing.T) {
	encrypted := zipOf(t, map[string]string{
		"mimetype": mimeType,
		"META-INF/manifest.xml": `<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0">` +
			`<manifest:file-entry manifest:full-path="content.xml"><manifest:encryption-data/></manifest:file-entry></manifest:manifest>`,
		"content.xml": "garbage",
	})

	tests := []struct {
		name string
		data []byte
		opts codec.ParseOptions
		want error
	}{
		{"missing content", zipOf(t, map[string]string{"mimetype": mimeType}), codec.ParseOptions{}, sheeterr.ErrTruncatedInput},
		{"broken xml", []byte("<office:document><office:body>"), codec.ParseOptions{}, sheeterr.ErrTruncatedInput},
		{"encrypted", encrypted, codec.ParseOptions{}, sheeterr.ErrPasswordRequired},
		{"encrypted with password", encrypted, codec.ParseOptions{Password: "pw"}, sheeterr.ErrUnsupportedFormat},
		{"bad number", []byte(strings.Replace(flatDoc, `office:value="2.5"`, `office:value="x"`, 1)), codec.ParseOptions{}, sheeterr.ErrTruncatedInput},
		{"unknown type strict", []byte(strings.Replace(flatDoc, `office:value-type="boolean"`, `office:value-type="blob"`, 1)), codec.ParseOptions{WTF: true}, sheeterr.ErrUnsupportedValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, codec.DecodeRequest{Options: tt.opts, Stage: codec.PolicyFor(tt.opts)})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormulaConversion(t *testing.T) {
	tests := []struct {
		odf, a1 string
	}{
		{"of:=SUM([.A1:.B2])", "SUM(A1:B2)"},
		{"of:=[$Sheet2.$A$1]+1", "Sheet2!$A$1+1"},
		{"of:=IF([.A1]>0;\"a;b\";LOG10([.B1]))", "IF(A1>0,\"a;b\",LOG10(B1))"},
		{"of:=['My Sheet'.A1]", "'My Sheet'!A1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.a1, fromODF(tt.odf), tt.odf)
		assert.Equal(t, tt.a1, fromODF(toODF(tt.a1)), tt.a1)
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("PT1H30M15.5S")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+30*time.Minute+15500*time.Millisecond, d)

	d, err = parseDuration("-P1DT2H")
	require.NoError(t, err)
	assert.Equal(t, -26*time.Hour, d)

	_, err = parseDuration("12:30")
	assert.Error(t, err)
}
