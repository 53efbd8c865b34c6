package xlsx

import (
	"errors"
	"testing"
	"time"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// sampleWorkbook returns a two sheet workbook touching most features the
// encoder writes.
func sampleWorkbook(t *testing.T) *model.Workbook {
	t.Helper()
	wb := model.NewWorkbook()

	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.String("Name"))
	ws.Set(address.MustCell("B1"), model.Number(1.5))
	ws.Set(address.MustCell("C1"), model.Bool(true))
	ws.Set(address.MustCell("D1"), model.Date(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)))
	ws.Set(address.MustCell("E1"), model.Number(0.25)).SetNumberFormat("0.0%")
	ws.SetCell(address.MustCell("A2"), &model.Cell{Formula: "B1*2", Value: model.Number(3)})
	ws.Set(address.MustCell("B2"), model.String("site")).SetHyperlink("https://example.com/", "visit")
	ws.Set(address.MustCell("C2"), model.String("jump")).SetInternalLink("#Hidden!A1", "")
	ws.Set(address.MustCell("D2"), model.Number(9)).AddComment("checked", "ann")
	ws.Merges = append(ws.Merges, address.MustRange("A4:C5"))
	ws.SetColInfo(1, model.ColInfo{Width: 18})
	ws.SetRowInfo(2, model.RowInfo{Hidden: true})
	if _, err := wb.AppendSheet(ws, "Main"); err != nil {
		t.Fatalf("AppendSheet() error: %v", err)
	}

	hidden := model.NewWorksheet()
	hidden.Set(address.MustCell("A1"), model.String("secret"))
	if _, err := wb.AppendSheet(hidden, "Hidden"); err != nil {
		t.Fatalf("AppendSheet() error: %v", err)
	}
	if err := wb.SetSheetVisibility("Hidden", model.Hidden); err != nil {
		t.Fatalf("SetSheetVisibility() error: %v", err)
	}

	scope := 0
	wb.Settings.Names = append(wb.Settings.Names,
		model.DefinedName{Name: "Total", Ref: "Main!$B$1"},
		model.DefinedName{Name: "Local", Ref: "Main!$A$1", Sheet: &scope},
	)
	wb.Props = &model.Properties{Title: "Report", Author: "ann", Company: "Acme"}
	wb.Custprops = map[string]any{"Dept": "Sales", "Year": 2024}
	return wb
}

func TestEncodeRoundTrip(t *testing.T) {
	data, err := Encode(sampleWorkbook(t), codec.DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	opts := codec.DefaultParseOptions()
	opts.CellDates = true
	opts.CellNF = true
	wb := decode(t, data, opts)

	if len(wb.SheetNames) != 2 || wb.SheetNames[0] != "Main" || wb.SheetNames[1] != "Hidden" {
		t.Fatalf("SheetNames = %v", wb.SheetNames)
	}
	if wb.SheetVisibility(1) != model.Hidden {
		t.Errorf("Hidden visibility = %v", wb.SheetVisibility(1))
	}
	ws := wb.Sheet("Main")

	values := []struct {
		ref  string
		want model.Value
	}{
		{"A1", model.String("Name")},
		{"B1", model.Number(1.5)},
		{"C1", model.Bool(true)},
		{"E1", model.Number(0.25)},
		{"D2", model.Number(9)},
	}
	for _, tt := range values {
		if c := cellAt(t, ws, tt.ref); c.Value != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.ref, c.Value, tt.want)
		}
	}

	want := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	if d, ok := cellAt(t, ws, "D1").Value.(model.Date); !ok || !d.Time().Equal(want) {
		t.Errorf("D1 = %#v, want date %v", cellAt(t, ws, "D1").Value, want)
	}
	if c := cellAt(t, ws, "E1"); c.NumFmt.Code != "0.0%" && c.NumFmt.ID == 0 {
		t.Errorf("E1 NumFmt = %+v", c.NumFmt)
	}
	if c := cellAt(t, ws, "A2"); c.Formula != "B1*2" {
		t.Errorf("A2 formula = %q", c.Formula)
	}
	if l := cellAt(t, ws, "B2").Link; l == nil || l.Target != "https://example.com/" || l.Tooltip != "visit" {
		t.Errorf("B2 link = %+v", l)
	}
	if l := cellAt(t, ws, "C2").Link; l == nil || l.Target != "#Hidden!A1" {
		t.Errorf("C2 link = %+v", l)
	}
	if cm := cellAt(t, ws, "D2").Comments; len(cm) != 1 || cm[0].Author != "ann" || cm[0].Text != "checked" {
		t.Errorf("D2 comments = %+v", cm)
	}

	if len(ws.Merges) != 1 || ws.Merges[0].String() != "A4:C5" {
		t.Errorf("Merges = %v", ws.Merges)
	}
	if len(ws.Cols) < 2 || ws.Cols[1].Width != 18 {
		t.Errorf("Cols = %+v", ws.Cols)
	}
	if !ws.RowHidden(2) {
		t.Error("row 3 should be hidden")
	}

	names := map[string]model.DefinedName{}
	for _, dn := range wb.Settings.Names {
		names[dn.Name] = dn
	}
	if dn, ok := names["Total"]; !ok || dn.Ref != "Main!$B$1" || dn.Sheet != nil {
		t.Errorf("Total = %+v", dn)
	}
	if dn, ok := names["Local"]; !ok || dn.Sheet == nil || *dn.Sheet != 0 {
		t.Errorf("Local = %+v", dn)
	}

	if wb.Props == nil || wb.Props.Title != "Report" || wb.Props.Author != "ann" || wb.Props.Company != "Acme" {
		t.Errorf("Props = %+v", wb.Props)
	}
	if wb.Custprops["Dept"] != "Sales" || wb.Custprops["Year"] != float64(2024) {
		t.Errorf("Custprops = %v", wb.Custprops)
	}
}

func TestEncodeSheetMetadata(t *testing.T) {
	wb := model.NewWorkbook()
	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.Number(1))
	ws.Set(address.MustCell("B2"), model.Number(2))
	ws.AutoFilter = &model.AutoFilter{Ref: address.MustRange("A1:B2")}
	ws.Protect = &model.ProtectInfo{FormatCells: true, SelectLockedCells: true, SelectUnlockedCells: true}
	m := model.DefaultMargins()
	ws.Margins = &m
	if _, err := wb.AppendSheet(ws, "Data"); err != nil {
		t.Fatalf("AppendSheet() error: %v", err)
	}

	data, err := Encode(wb, codec.DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got := decode(t, data, codec.DefaultParseOptions())
	out := got.Sheet("Data")

	if out.AutoFilter == nil || out.AutoFilter.Ref.String() != "A1:B2" {
		t.Errorf("AutoFilter = %+v", out.AutoFilter)
	}
	if p := out.Protect; p == nil || !p.FormatCells || p.Sort || !p.SelectLockedCells {
		t.Errorf("Protect = %+v", p)
	}
	if out.Margins == nil || *out.Margins != m {
		t.Errorf("Margins = %+v", out.Margins)
	}

	// The autofilter name must not collide when the workbook is written again.
	if _, err := Encode(got, codec.DefaultWriteOptions()); err != nil {
		t.Errorf("re-encoding decoded workbook: %v", err)
	}
}

func TestEncodeErrors(t *testing.T) {
	allHidden := model.NewWorkbook()
	ws := model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.Number(1))
	allHidden.AppendSheet(ws, "Only")
	allHidden.SetSheetVisibility("Only", model.Hidden)

	withError := model.NewWorkbook()
	ws = model.NewWorksheet()
	ws.Set(address.MustCell("A1"), model.ErrorNA)
	withError.AppendSheet(ws, "E")

	tests := []struct {
		name string
		wb   *model.Workbook
		opts codec.WriteOptions
		want *sheeterr.Error
	}{
		{"empty", model.NewWorkbook(), codec.DefaultWriteOptions(), sheeterr.ErrEmptyWorkbook},
		{"no visible sheet", allHidden, codec.DefaultWriteOptions(), sheeterr.ErrInvalidOption},
		{"unknown book type", withError, codec.WriteOptions{BookType: "nope"}, sheeterr.ErrUnsupportedFormat},
		{"error value strict", withError, codec.WriteOptions{WTF: true}, sheeterr.ErrUnsupportedValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.wb, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("Encode() error = %v, want kind %v", err, tt.want.Kind)
			}
		})
	}

	data, err := Encode(withError, codec.DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if c := cellAt(t, decode(t, data, codec.DefaultParseOptions()).Sheet("E"), "A1"); c.Value != model.String("#N/A") {
		t.Errorf("error cell written as %#v, want text", c.Value)
	}
}

func TestEncodeXLSM(t *testing.T) {
	wb := sampleWorkbook(t)
	data, err := Encode(wb, codec.WriteOptions{BookType: "xlsm"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got := decode(t, data, codec.DefaultParseOptions())
	if len(got.SheetNames) != 2 {
		t.Errorf("SheetNames = %v", got.SheetNames)
	}
}

func TestEncodePassword(t *testing.T) {
	data, err := Encode(sampleWorkbook(t), codec.WriteOptions{Password: "s3cret"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	read := func(password string) (*model.Workbook, error) {
		opts := codec.DefaultParseOptions()
		opts.Password = password
		return Decode(data, codec.DecodeRequest{Options: opts, Stage: codec.StageFull})
	}

	if _, err := read(""); !errors.Is(err, sheeterr.ErrPasswordRequired) {
		t.Errorf("no password: error = %v, want PasswordRequired", err)
	}
	if _, err := read("wrong"); !errors.Is(err, sheeterr.ErrDecryptionFailed) {
		t.Errorf("wrong password: error = %v, want DecryptionFailed", err)
	}
	wb, err := read("s3cret")
	if err != nil {
		t.Fatalf("correct password: %v", err)
	}
	if c := cellAt(t, wb.Sheet("Main"), "A1"); c.Value != model.String("Name") {
		t.Errorf("A1 = %#v", c.Value)
	}
}
