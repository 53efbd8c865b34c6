package xlml

import (
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

const book = `<?xml version="1.0" encoding="UTF-8"?>
<?mso-application progid="Excel.Sheet"?>
<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet"
 xmlns:o="urn:schemas-microsoft-com:office:office"
 xmlns:x="urn:schemas-microsoft-com:office:excel"
 xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet"
 xmlns:dt="uuid:C2F41010-65B3-11d1-A29F-00AA00C14882"
 xmlns:html="http://www.w3.org/TR/REC-html40">
 <DocumentProperties xmlns="urn:schemas-microsoft-com:office:office">
  <Title>Budget</Title>
  <Author>Pat</Author>
  <Created>2024-03-01T10:00:00Z</Created>
 </DocumentProperties>
 <CustomDocumentProperties xmlns="urn:schemas-microsoft-com:office:office">
  <Reviewed dt:dt="boolean">1</Reviewed>
  <Cost_x0020_Center dt:dt="float">42</Cost_x0020_Center>
 </CustomDocumentProperties>
 <Styles>
  <Style ss:ID="Default" ss:Name="Normal"/>
  <Style ss:ID="pct"><NumberFormat ss:Format="Percent"/></Style>
  <Style ss:ID="day"><NumberFormat ss:Format="yyyy-mm-dd"/></Style>
  <Style ss:ID="child" ss:Parent="day"/>
 </Styles>
 <Names>
  <NamedRange ss:Name="Total" ss:RefersTo="=Data!R2C2:R3C2"/>
 </Names>
 <Worksheet ss:Name="Data">
  <Table>
   <Column ss:Width="75"/>
   <Column ss:Index="3" ss:Hidden="1" ss:Span="1"/>
   <Row ss:Height="30">
    <Cell ss:MergeAcross="1"><Data ss:Type="String">Header</Data></Cell>
    <Cell ss:HRef="https://example.com" x:HRefScreenTip="site"><Data ss:Type="String">link</Data></Cell>
   </Row>
   <Row>
    <Cell><Data ss:Type="Boolean">1</Data></Cell>
    <Cell ss:StyleID="pct"><Data ss:Type="Number">0.25</Data></Cell>
    <Cell ss:Formula="=RC[-1]*2"><Data ss:Type="Number">0.5</Data></Cell>
   </Row>
   <Row ss:Index="4" ss:Hidden="1">
    <Cell ss:StyleID="child"><Data ss:Type="Number">45352</Data></Cell>
    <Cell><Data ss:Type="DateTime">2024-03-01T12:00:00.000</Data></Cell>
    <Cell><Data ss:Type="Error">#DIV/0!</Data>
     <Comment ss:Author="Pat" ss:ShowAlways="1"><ss:Data xmlns="http://www.w3.org/TR/REC-html40"><B>check</B> this</ss:Data></Comment>
    </Cell>
    <Cell ss:Index="5"><ss:Data ss:Type="String" xmlns="http://www.w3.org/TR/REC-html40"><B>bold</B><Br/>line</ss:Data></Cell>
   </Row>
  </Table>
  <WorksheetOptions xmlns="urn:schemas-microsoft-com:office:excel">
   <PageSetup><Header x:Margin="0.2"/><PageMargins x:Bottom="1" x:Left="0.5" x:Right="0.5" x:Top="1"/></PageSetup>
   <ProtectContents>True</ProtectContents>
  </WorksheetOptions>
  <AutoFilter x:Range="R2C1:R4C3" xmlns="urn:schemas-microsoft-com:office:excel"/>
 </Worksheet>
 <Worksheet ss:Name="Notes">
  <Names><NamedRange ss:Name="Local" ss:RefersTo="=Notes!R1C1" ss:Hidden="1"/></Names>
  <Table><Row><Cell><Data ss:Type="String">x</Data></Cell></Row></Table>
  <WorksheetOptions xmlns="urn:schemas-microsoft-com:office:excel"><Visible>SheetHidden</Visible></WorksheetOptions>
 </Worksheet>
</Workbook>`

func cellAt(t *testing.T, ws *model.Worksheet, ref string) *model.Cell {
	t.Helper()
	c := ws.Cell(address.MustCell(ref))
	require.NotNil(t, c, "no cell at %s", ref)
	return c
}

func TestDecode(t *testing.T) {
	opts := codec.DefaultParseOptions()
	wb, err := Decode([]byte(book), codec.DecodeRequest{Options: opts})
	require.NoError(t, err)

	assert.Equal(t, "xlml", wb.BookType)
	assert.Equal(t, []string{"Data", "Notes"}, wb.SheetNames)
	require.NotNil(t, wb.Props)
	assert.Equal(t, "Budget", wb.Props.Title)
	assert.Equal(t, "Pat", wb.Props.Author)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), wb.Props.CreatedDate.UTC())
	assert.Equal(t, true, wb.Custprops["Reviewed"])
	assert.Equal(t, float64(42), wb.Custprops["Cost Center"])
	assert.Equal(t, model.Hidden, wb.SheetVisibility(1))

	require.Len(t, wb.Settings.Names, 2)
	assert.Equal(t, "Total", wb.Settings.Names[0].Name)
	assert.Equal(t, "Data!$B$2:$B$3", wb.Settings.Names[0].Ref)
	assert.Nil(t, wb.Settings.Names[0].Sheet)
	require.NotNil(t, wb.Settings.Names[1].Sheet)
	assert.Equal(t, 1, *wb.Settings.Names[1].Sheet)
	assert.True(t, wb.Settings.Names[1].Hidden)

	ws := wb.Sheets["Data"]
	assert.Equal(t, model.String("Header"), cellAt(t, ws, "A1").Value)
	assert.Equal(t, []address.Range{address.MustRange("A1:B1")}, ws.Merges)

	link := cellAt(t, ws, "C1")
	require.NotNil(t, link.Link)
	assert.Equal(t, "https://example.com", link.Link.Target)
	assert.Equal(t, "site", link.Link.Tooltip)

	assert.Equal(t, model.Bool(true), cellAt(t, ws, "A2").Value)
	b2 := cellAt(t, ws, "B2")
	assert.Equal(t, model.Number(0.25), b2.Value)
	assert.Equal(t, "25.00%", b2.Text)
	assert.Equal(t, "B2*2", cellAt(t, ws, "C2").Formula)

	a4 := cellAt(t, ws, "A4")
	assert.Equal(t, model.Number(45352), a4.Value)
	assert.Equal(t, "2024-03-01", a4.Text)
	assert.Equal(t, model.Number(45352.5), cellAt(t, ws, "B4").Value)

	c4 := cellAt(t, ws, "C4")
	assert.Equal(t, model.ErrorDiv0, c4.Value)
	require.Len(t, c4.Comments, 1)
	assert.Equal(t, "check this", c4.Comments[0].Text)
	assert.Equal(t, "Pat", c4.Comments[0].Author)
	assert.False(t, c4.CommentsHidden)

	e4 := cellAt(t, ws, "E4")
	assert.Equal(t, model.String("bold\nline"), e4.Value)
	assert.Equal(t, "<b>bold</b><br/>line", e4.HTML)

	require.GreaterOrEqual(t, len(ws.Cols), 4)
	assert.InDelta(t, 100, ws.Cols[0].WPX, 1e-9)
	assert.True(t, ws.Cols[2].Hidden)
	assert.True(t, ws.Cols[3].Hidden)
	assert.Equal(t, float64(30), ws.Rows[0].HPT)
	assert.True(t, ws.Rows[3].Hidden)

	require.NotNil(t, ws.Protect)
	require.NotNil(t, ws.Margins)
	assert.Equal(t, 0.5, ws.Margins.Left)
	assert.Equal(t, 0.2, ws.Margins.Header)
	require.NotNil(t, ws.AutoFilter)
	assert.Equal(t, address.MustRange("A2:C4"), ws.AutoFilter.Ref)
}

func TestDecodeOptions(t *testing.T) {
	t.Run("dates", func(t *testing.T) {
		wb, err := Decode([]byte(book), codec.DecodeRequest{Options: codec.ParseOptions{CellDates: true}})
		require.NoError(t, err)
		ws := wb.Sheets["Data"]
		assert.Equal(t, model.Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), cellAt(t, ws, "A4").Value)
		assert.Equal(t, model.Date(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)), cellAt(t, ws, "B4").Value)
	})

	t.Run("plain", func(t *testing.T) {
		wb, err := Decode([]byte(book), codec.DecodeRequest{})
		require.NoError(t, err)
		ws := wb.Sheets["Data"]
		assert.Empty(t, cellAt(t, ws, "C2").Formula)
		assert.Empty(t, cellAt(t, ws, "E4").HTML)
		assert.True(t, cellAt(t, ws, "B2").NumFmt.IsGeneral())
		assert.Equal(t, 14, cellAt(t, ws, "B4").NumFmt.ID)
	})

	t.Run("sheet rows", func(t *testing.T) {
		req := codec.DecodeRequest{Options: codec.ParseOptions{SheetRows: 2}, Stage: codec.StageRows}
		wb, err := Decode([]byte(book), req)
		require.NoError(t, err)
		ws := wb.Sheets["Data"]
		assert.Nil(t, ws.Cell(address.MustCell("A4")))
		assert.NotNil(t, ws.Cell(address.MustCell("A2")))
	})

	t.Run("sheet selection", func(t *testing.T) {
		opts := codec.ParseOptions{Sheets: []codec.SheetRef{codec.SheetName("Notes")}}
		wb, err := Decode([]byte(book), codec.DecodeRequest{Options: opts})
		require.NoError(t, err)
		assert.Equal(t, []string{"Notes"}, wb.SheetNames)
		assert.Equal(t, model.Hidden, wb.SheetVisibility(0))
	})

	t.Run("sheet names", func(t *testing.T) {
		wb, err := Decode([]byte(book), codec.DecodeRequest{Stage: codec.StageSheetNames})
		require.NoError(t, err)
		assert.Equal(t, []string{"Data", "Notes"}, wb.SheetNames)
		assert.Empty(t, wb.Sheets)
		assert.Equal(t, "Budget", wb.Props.Title)
	})
}

func TestDecodeEncoding(t *testing.T) {
	src := strings.Replace(book, `encoding="UTF-8"`, `encoding="windows-1252"`, 1)
	src = strings.Replace(src, "<Title>Budget</Title>", "<Title>Caf\xe9</Title>", 1)
	wb, err := Decode([]byte(src), codec.DecodeRequest{Stage: codec.StageProps})
	require.NoError(t, err)
	assert.Equal(t, "Café", wb.Props.Title)

	bom := append([]byte{0xEF, 0xBB, 0xBF}, book...)
	wb, err = Decode(bom, codec.DecodeRequest{})
	require.NoError(t, err)
	assert.Len(t, wb.SheetNames, 2)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("<Workbook><Worksheet"), codec.DecodeRequest{})
	assert.Equal(t, sheeterr.TruncatedInput, sheeterr.KindOf(err))

	bad := `<Workbook><Worksheet ss:Name="S"><Table><Row><Cell><Data ss:Type="Number">abc</Data></Cell></Row></Table></Worksheet></Workbook>`
	_, err = Decode([]byte(bad), codec.DecodeRequest{})
	assert.Equal(t, sheeterr.UnsupportedValue, sheeterr.KindOf(err))

	odd := `<Workbook><Worksheet ss:Name="S"><Table><Row><Cell><Data ss:Type="Blob">abc</Data></Cell></Row></Table></Worksheet></Workbook>`
	wb, err := Decode([]byte(odd), codec.DecodeRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.String("abc"), cellAt(t, wb.Sheets["S"], "A1").Value)
	_, err = Decode([]byte(odd), codec.DecodeRequest{Options: codec.ParseOptions{WTF: true}})
	assert.Equal(t, sheeterr.UnsupportedValue, sheeterr.KindOf(err))
}

func TestEncodeRoundTrip(t *testing.T) {
	opts := codec.DefaultParseOptions()
	opts.CellNF = true
	wb, err := Decode([]byte(book), codec.DecodeRequest{Options: opts})
	require.NoError(t, err)
	wb.Sheets["Data"].Set(address.MustCell("D2"), model.Date(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)))

	out, err := Encoder{}.Encode(wb, codec.WriteOptions{})
	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, text, `<?mso-application progid="Excel.Sheet"?>`)
	assert.Contains(t, text, `ss:Formula="=RC[-1]*2"`)
	assert.Contains(t, text, `<NamedRange ss:Name="Total" ss:RefersTo="=Data!R2C2:R3C2"/>`)
	assert.Contains(t, text, `<Cost_x0020_Center dt:dt="float">42</Cost_x0020_Center>`)
	assert.Contains(t, text, `<Visible>SheetHidden</Visible>`)

	back, err := Decode(out, codec.DecodeRequest{Options: opts})
	require.NoError(t, err)
	assert.Equal(t, wb.SheetNames, back.SheetNames)
	assert.Equal(t, wb.Props.Title, back.Props.Title)
	assert.Equal(t, wb.Custprops, back.Custprops)
	assert.Equal(t, wb.Settings.Names, back.Settings.Names)
	assert.Equal(t, model.Hidden, back.SheetVisibility(1))

	ws, orig := back.Sheets["Data"], wb.Sheets["Data"]
	for _, ref := range []string{"A1", "A2", "B2", "A4", "C4"} {
		assert.Equal(t, cellAt(t, orig, ref).Value, cellAt(t, ws, ref).Value, ref)
	}
	assert.Equal(t, "B2*2", cellAt(t, ws, "C2").Formula)
	assert.Equal(t, cellAt(t, orig, "B2").NumFmt, cellAt(t, ws, "B2").NumFmt)
	assert.Equal(t, "site", cellAt(t, ws, "C1").Link.Tooltip)
	assert.Equal(t, "check this", cellAt(t, ws, "C4").Comments[0].Text)
	assert.Equal(t, orig.Merges, ws.Merges)
	assert.Equal(t, orig.AutoFilter, ws.AutoFilter)
	assert.NotNil(t, ws.Protect)
	assert.Equal(t, orig.Margins, ws.Margins)
	assert.InDelta(t, 100, ws.Cols[0].WPX, 1e-9)
	assert.True(t, ws.Rows[3].Hidden)

	d2 := cellAt(t, ws, "D2")
	assert.Equal(t, model.Number(43832), d2.Value)
	assert.Equal(t, 14, d2.NumFmt.ID)
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(model.NewWorkbook(), codec.WriteOptions{})
	assert.Equal(t, sheeterr.EmptyWorkbook, sheeterr.KindOf(err))
	_, err = Encode(nil, codec.WriteOptions{})
	assert.Equal(t, sheeterr.EmptyWorkbook, sheeterr.KindOf(err))
}
