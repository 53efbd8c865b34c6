package stream

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

func fixture(t *testing.T) *model.Worksheet {
	t.Helper()
	ws, err := builder.AOAToSheet([][]any{
		{"name", "qty"},
		{"pen, blue", 3},
		{},
		{"ink", 1.5},
	}, builder.Options{})
	require.NoError(t, err)
	return ws
}

func TestCSVMatchesBatch(t *testing.T) {
	ws := fixture(t)
	for _, opts := range []export.CSVOptions{
		{},
		{FS: ";", RS: "\r\n"},
		{BlankRows: export.BlankSkip, Strip: true},
	} {
		want, err := export.SheetToCSV(ws, opts)
		require.NoError(t, err)

		var sb strings.Builder
		_, err = CSV(ws, opts).WriteTo(&sb)
		require.NoError(t, err)
		assert.Equal(t, want, sb.String())
	}
}

func TestTextAndHTMLMatchBatch(t *testing.T) {
	ws := fixture(t)

	want, err := export.SheetToText(ws, export.CSVOptions{})
	require.NoError(t, err)
	var sb strings.Builder
	_, err = Text(ws, export.CSVOptions{}).WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, want, sb.String())

	want, err = export.SheetToHTML(ws, export.HTMLOptions{ID: "grid"})
	require.NoError(t, err)
	sb.Reset()
	n, err := HTML(ws, export.HTMLOptions{ID: "grid"}).WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, want, sb.String())
	assert.Equal(t, int64(len(want)), n)
}

func TestLinesPull(t *testing.T) {
	lines := CSV(fixture(t), export.CSVOptions{})

	var got []string
	for lines.Next() {
		got = append(got, lines.Text())
	}
	require.NoError(t, lines.Err())
	assert.Equal(t, []string{"name,qty", `"pen, blue",3`, ",", "ink,1.5"}, got)
	assert.False(t, lines.Next(), "exhausted stream stays exhausted")
}

func TestLinesEarlyStop(t *testing.T) {
	lines := CSV(fixture(t), export.CSVOptions{})
	for s := range lines.All() {
		assert.Equal(t, "name,qty", s)
		break
	}

	var sb strings.Builder
	_, err := lines.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, "\n\"pen, blue\",3\n,\nink,1.5", sb.String())
}

func TestJSONMatchesBatch(t *testing.T) {
	ws := fixture(t)
	opts := export.DefaultJSONOptions()

	want, err := export.SheetToRecords(ws, opts)
	require.NoError(t, err)

	rows := JSON(ws, opts)
	var got []*model.Record
	for rows.Next() {
		got = append(got, rows.Record())
		assert.Nil(t, rows.Row())
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, want, got)
}

func TestArrays(t *testing.T) {
	ws := fixture(t)
	want, err := export.SheetToRows(ws, export.DefaultJSONOptions())
	require.NoError(t, err)

	got := slices.Collect(Arrays(ws, export.DefaultJSONOptions()).All())
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestRowsWriteTo(t *testing.T) {
	var sb strings.Builder
	_, err := JSON(fixture(t), export.DefaultJSONOptions()).WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"pen, blue\",\"qty\":3}\n{\"name\":\"ink\",\"qty\":1.5}\n", sb.String())
}

func TestStreamErrors(t *testing.T) {
	lines := CSV(nil, export.CSVOptions{})
	assert.False(t, lines.Next())
	assert.Error(t, lines.Err())

	rows := JSON(fixture(t), export.JSONOptions{HeaderIndex: true, HeaderLetters: true})
	assert.False(t, rows.Next())
	assert.ErrorIs(t, rows.Err(), sheeterr.ErrInvalidOption)
}
