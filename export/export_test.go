package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

func sheet(t *testing.T, rows [][]any) *model.Worksheet {
	t.Helper()
	ws, err := builder.AOAToSheet(rows, builder.Options{})
	require.NoError(t, err)
	return ws
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func rng(s string) *address.Range {
	r := address.MustRange(s)
	return &r
}

// ============================================================================
// Records and rows
// ============================================================================

func TestSheetToRecords(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b"}, {1, 2}, {3, 4}})

	recs, err := SheetToRecords(ws, DefaultJSONOptions())
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1,"b":2},{"a":3,"b":4}]`, marshal(t, recs))
}

func TestSheetToRecordsHeaderNames(t *testing.T) {
	ws := sheet(t, [][]any{{"x", "x", nil, "y", nil}, {1, 2, 3, 4, 5}})

	recs, err := SheetToRecords(ws, DefaultJSONOptions())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"x", "x_1", "__EMPTY", "y", "__EMPTY_1"}, recs[0].Keys())
}

func TestSheetToRecordsHeaderModes(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b"}, {1, 2}})

	t.Run("letters", func(t *testing.T) {
		opts := DefaultJSONOptions()
		opts.HeaderLetters = true
		recs, err := SheetToRecords(ws, opts)
		require.NoError(t, err)
		assert.Equal(t, `[{"A":"a","B":"b"},{"A":1,"B":2}]`, marshal(t, recs))
	})

	t.Run("explicit", func(t *testing.T) {
		opts := DefaultJSONOptions()
		opts.Header = []string{"first"}
		recs, err := SheetToRecords(ws, opts)
		require.NoError(t, err)
		assert.Equal(t, `[{"first":"a"},{"first":1}]`, marshal(t, recs))
	})

	t.Run("index", func(t *testing.T) {
		opts := DefaultJSONOptions()
		opts.HeaderIndex = true
		recs, err := SheetToRecords(ws, opts)
		require.NoError(t, err)
		assert.Equal(t, `[{"0":"a","1":"b"},{"0":1,"1":2}]`, marshal(t, recs))
	})

	t.Run("exclusive", func(t *testing.T) {
		opts := DefaultJSONOptions()
		opts.Header = []string{"a"}
		opts.HeaderLetters = true
		_, err := SheetToRecords(ws, opts)
		assert.ErrorIs(t, err, sheeterr.ErrInvalidOption)

		_, err = NewJSONEncoder(ws, JSONOptions{HeaderIndex: true}, true)
		assert.ErrorIs(t, err, sheeterr.ErrInvalidOption)
	})
}

func TestSheetToJSONBlankRows(t *testing.T) {
	ws := sheet(t, [][]any{{"a"}, {}, {1}})
	ws.ExtendRef(address.MustRange("A1:A3"))

	recs, err := SheetToRecords(ws, DefaultJSONOptions())
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, marshal(t, recs))

	opts := DefaultJSONOptions()
	opts.BlankRows = BlankInclude
	recs, err = SheetToRecords(ws, opts)
	require.NoError(t, err)
	assert.Equal(t, `[{},{"a":1}]`, marshal(t, recs))

	rows, err := SheetToRows(ws, DefaultJSONOptions())
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a"}, {nil}, {1.0}}, rows)

	opts = DefaultJSONOptions()
	opts.BlankRows = BlankSkip
	rows, err = SheetToRows(ws, opts)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSheetToJSONDefVal(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b"}, {1, nil}})
	ws.ExtendRef(address.MustRange("A1:B2"))

	recs, err := SheetToRecords(ws, DefaultJSONOptions())
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, marshal(t, recs))

	opts := DefaultJSONOptions()
	opts.DefVal, opts.UseDefVal = "", true
	recs, err = SheetToRecords(ws, opts)
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1,"b":""}]`, marshal(t, recs))
}

func TestSheetToJSONFormatted(t *testing.T) {
	ws := sheet(t, [][]any{{"n", "flag"}, {0.5, true}})
	ws.Cell(address.MustCell("A2")).SetNumberFormat("0%")

	recs, err := SheetToRecords(ws, JSONOptions{Formatted: true})
	require.NoError(t, err)
	assert.Equal(t, `[{"n":"50%","flag":"TRUE"}]`, marshal(t, recs))

	recs, err = SheetToRecords(ws, JSONOptions{Formatted: true, RawNumbers: true})
	require.NoError(t, err)
	assert.Equal(t, `[{"n":0.5,"flag":"TRUE"}]`, marshal(t, recs))

	recs, err = SheetToRecords(ws, JSONOptions{})
	require.NoError(t, err)
	assert.Equal(t, `[{"n":0.5,"flag":true}]`, marshal(t, recs))
}

func TestSheetToJSONErrors(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b"}, {model.ErrorNull, model.ErrorDiv0}})

	recs, err := SheetToRecords(ws, DefaultJSONOptions())
	require.NoError(t, err)
	assert.Empty(t, recs, "error-only rows are blank")

	opts := DefaultJSONOptions()
	opts.BlankRows = BlankInclude
	recs, err = SheetToRecords(ws, opts)
	require.NoError(t, err)
	assert.Equal(t, `[{"a":null}]`, marshal(t, recs))
}

func TestSheetToJSONRange(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b", "c"}, {1, 2, 3}, {4, 5, 6}})

	opts := DefaultJSONOptions()
	opts.Range = rng("B2:C3")
	recs, err := SheetToRecords(ws, opts)
	require.NoError(t, err)
	assert.Equal(t, `[{"2":5,"3":6}]`, marshal(t, recs))

	opts = DefaultJSONOptions()
	opts.FirstRow = 1
	rows, err := SheetToRows(ws, opts)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{1.0, 2.0, 3.0}, {4.0, 5.0, 6.0}}, rows)
}

func TestSheetToJSONSkipHidden(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b"}, {1, 2}, {3, 4}})
	ws.SetColInfo(0, model.ColInfo{Hidden: true})
	ws.SetRowInfo(1, model.RowInfo{Hidden: true})

	opts := DefaultJSONOptions()
	opts.SkipHidden = true
	recs, err := SheetToRecords(ws, opts)
	require.NoError(t, err)
	assert.Equal(t, `[{"b":4}]`, marshal(t, recs))
}

func TestSheetToJSONEmptySheet(t *testing.T) {
	recs, err := SheetToRecords(model.NewWorksheet(), DefaultJSONOptions())
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = SheetToRows(nil, DefaultJSONOptions())
	assert.Error(t, err)
}

// ============================================================================
// CSV and text
// ============================================================================

func TestSheetToCSV(t *testing.T) {
	tests := []struct {
		name string
		rows [][]any
		opts CSVOptions
		want string
	}{
		{"basic", [][]any{{"a", "b"}, {1, 2}}, CSVOptions{}, "a,b\n1,2"},
		{"quoting", [][]any{{"a", "b,c"}, {1, `q"t`}}, CSVOptions{}, "a,\"b,c\"\n1,\"q\"\"t\""},
		{"newline", [][]any{{"x\ny"}}, CSVOptions{}, "\"x\ny\""},
		{"custom separators", [][]any{{"a", "b"}, {1, 2}}, CSVOptions{FS: ";", RS: "|"}, "a;b|1;2"},
		{"force quotes", [][]any{{"a", 1}}, CSVOptions{ForceQuotes: true}, `"a","1"`},
		{"id", [][]any{{"ID", "x"}}, CSVOptions{}, `"ID",x`},
		{"strip", [][]any{{1, nil, nil}, {}, {2}}, CSVOptions{Strip: true}, "1\n\n2"},
		{"skip blank", [][]any{{1, nil, nil}, {}, {2}}, CSVOptions{Strip: true, BlankRows: BlankSkip}, "1\n2"},
		{"no strip", [][]any{{1, nil, nil}, {}, {2}}, CSVOptions{}, "1,,\n,,\n2,,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := sheet(t, tt.rows)
			ws.ExtendRef(address.NewRange(address.Cell{}, address.Cell{Row: len(tt.rows) - 1}))
			got, err := SheetToCSV(ws, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSheetToCSVNumbers(t *testing.T) {
	ws := sheet(t, [][]any{{0.5, 43831}})
	ws.Cell(address.MustCell("A1")).SetNumberFormat("0%")
	ws.Cell(address.MustCell("B1")).SetNumberFormatID(14)

	got, err := SheetToCSV(ws, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "50%,1/1/20", got)

	got, err = SheetToCSV(ws, CSVOptions{RawNumbers: true})
	require.NoError(t, err)
	assert.Equal(t, "0.5,43831", got)

	got, err = SheetToCSV(ws, CSVOptions{DateNF: "yyyy-mm-dd"})
	require.NoError(t, err)
	assert.Equal(t, "50%,2020-01-01", got)
}

func TestSheetToCSVFormulaOnly(t *testing.T) {
	ws := model.NewWorksheet()
	ws.SetCell(address.MustCell("A1"), &model.Cell{Formula: "SUM(1,2)"})

	got, err := SheetToCSV(ws, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, `"=SUM(1,2)"`, got)
}

func TestSheetToCSVSkipHidden(t *testing.T) {
	ws := sheet(t, [][]any{{1, 2, 3}, {4, 5, 6}})
	ws.SetColInfo(1, model.ColInfo{Hidden: true})
	ws.SetRowInfo(0, model.RowInfo{Hidden: true})

	got, err := SheetToCSV(ws, CSVOptions{SkipHidden: true})
	require.NoError(t, err)
	assert.Equal(t, "4,6", got)
}

func TestSheetToText(t *testing.T) {
	ws := sheet(t, [][]any{{"a", "b"}, {1, 2}})
	got, err := SheetToText(ws, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n1\t2", got)
}

// ============================================================================
// HTML
// ============================================================================

func TestSheetToHTML(t *testing.T) {
	ws := sheet(t, [][]any{{"a", 1}})

	got, err := SheetToHTML(ws, HTMLOptions{})
	require.NoError(t, err)
	want := htmlBegin + `<table><tr>` +
		`<td data-t="s" data-v="a" id="sjs-A1">a</td>` +
		`<td data-t="n" data-v="1" id="sjs-B1">1</td>` +
		`</tr></table>` + htmlEnd
	assert.Equal(t, want, got)
}

func TestSheetToHTMLMerges(t *testing.T) {
	ws := sheet(t, [][]any{{"wide", nil, "c"}, {"x", "y", "z"}})
	ws.ExtendRef(address.MustRange("A1:C2"))
	ws.Merges = append(ws.Merges, address.MustRange("A1:B2"))

	empty := ""
	got, err := SheetToHTML(ws, HTMLOptions{ID: "t", Header: &empty, Footer: &empty})
	require.NoError(t, err)
	want := `<table id="t">` +
		`<tr><td rowspan="2" colspan="2" data-t="s" data-v="wide" id="t-A1">wide</td>` +
		`<td data-t="s" data-v="c" id="t-C1">c</td></tr>` +
		`<tr><td data-t="s" data-v="z" id="t-C2">z</td></tr>` +
		`</table>`
	assert.Equal(t, want, got)
}

func TestSheetToHTMLCellContent(t *testing.T) {
	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.String("<b>\nx"))
	raw := ws.Set(address.MustCell("B1"), model.String("bold"))
	raw.HTML = "<b>bold</b>"
	link := ws.Set(address.MustCell("C1"), model.String("site"))
	link.SetHyperlink("https://example.com/?a=1&b=2", "")
	ws.Set(address.MustCell("D1"), model.Number(0.25)).SetNumberFormat("0%")

	empty := ""
	got, err := SheetToHTML(ws, HTMLOptions{Header: &empty, Footer: &empty})
	require.NoError(t, err)

	assert.Contains(t, got, `id="sjs-A1">&lt;b&gt;<br/>x</td>`)
	assert.Contains(t, got, `id="sjs-B1"><b>bold</b></td>`)
	assert.Contains(t, got, `<a href="https://example.com/?a=1&amp;b=2">site</a>`)
	assert.Contains(t, got, `data-t="n" data-v="0.25" data-z="0%" id="sjs-D1">25%</td>`)
}

func TestSheetToHTMLEditable(t *testing.T) {
	ws := sheet(t, [][]any{{"a"}})
	empty := ""
	got, err := SheetToHTML(ws, HTMLOptions{Editable: true, Header: &empty, Footer: &empty})
	require.NoError(t, err)
	assert.Equal(t, `<table><tr><td id="sjs-A1"><span contenteditable="true">a</span></td></tr></table>`, got)
}

// ============================================================================
// Formulae and Walk
// ============================================================================

func TestSheetToFormulae(t *testing.T) {
	ws := sheet(t, [][]any{{1, "x", true}})
	ws.SetCell(address.MustCell("A2"), &model.Cell{Value: model.Number(2), Formula: "A1*2"})
	ws.SetArrayFormula(address.MustRange("A3:B3"), "A1:B1*2")

	got, err := SheetToFormulae(ws)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1=1", "B1='x", "C1=TRUE", "A2=A1*2", "A3:B3=A1:B1*2"}, got)
}

func TestWalk(t *testing.T) {
	ws := sheet(t, [][]any{{1, nil}, {nil, 4}})
	ws.ExtendRef(address.MustRange("A1:B2"))

	var seen []string
	err := Walk(ws, WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		mark := "-"
		if c != nil {
			mark = "+"
		}
		seen = append(seen, addr.String()+mark)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "A1+ B1- A2- B2+", strings.Join(seen, " "))

	stop := errors.New("stop")
	calls := 0
	err = Walk(ws, WalkOptions{}, func(address.Cell, *model.Cell) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestDenseAndSparseAgree(t *testing.T) {
	rows := [][]any{{"a", "b"}, {1, nil}, {nil, "z"}}
	sparse := sheet(t, rows)
	dense, err := builder.AOAToSheet(rows, builder.Options{Dense: true})
	require.NoError(t, err)

	a, err := SheetToCSV(sparse, CSVOptions{})
	require.NoError(t, err)
	b, err := SheetToCSV(dense, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
