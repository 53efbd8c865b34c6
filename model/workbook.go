package model

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tsawler/cellar/sheeterr"
)

// MaxSheetNameLength is the longest sheet name Excel accepts.
const MaxSheetNameLength = 31

// Visibility is the visibility state of a sheet.
type Visibility int

const (
	Visible    Visibility = 0
	Hidden     Visibility = 1
	VeryHidden Visibility = 2 // only reachable through VBA
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case VeryHidden:
		return "veryHidden"
	default:
		return "unknown"
	}
}

// Properties contains document-level information.
type Properties struct {
	Title         string
	Subject       string
	Author        string
	Manager       string
	Company       string
	Category      string
	Keywords      string
	Comments      string
	LastAuthor    string
	Application   string
	AppVersion    string
	ContentStatus string
	Identifier    string
	Language      string
	Version       string
	Revision      string
	CreatedDate   time.Time
	ModifiedDate  time.Time
}

// DefinedName is a workbook or sheet scoped name.
type DefinedName struct {
	Name    string
	Ref     string // formula text, e.g. "Sheet1!$A$1:$B$2"
	Sheet   *int   // scope sheet index, nil for workbook scope
	Comment string
	Hidden  bool
}

// View holds workbook window settings.
type View struct {
	RTL bool
}

// SheetProps holds per-sheet workbook settings, parallel to SheetNames.
type SheetProps struct {
	Name     string
	Hidden   Visibility
	CodeName string
}

// Settings holds workbook-level settings.
type Settings struct {
	Date1904      bool
	FilterPrivacy bool
	CodeName      string
	Names         []DefinedName
	Views         []View
	Sheets        []SheetProps
}

// Workbook is an ordered collection of named worksheets.
type Workbook struct {
	SheetNames []string
	Sheets     map[string]*Worksheet
	Props      *Properties
	Custprops  map[string]any
	Settings   *Settings
	VBA        []byte // opaque vbaProject.bin
	BookType   string // set by the codec that produced the workbook
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{
		SheetNames: make([]string, 0),
		Sheets:     make(map[string]*Worksheet),
	}
}

// ValidateSheetName reports whether Excel would accept name.
func ValidateSheetName(name string) error {
	if name == "" {
		return sheeterr.New(sheeterr.InvalidSheetName, "append_sheet", "sheet name is empty")
	}
	if utf8.RuneCountInString(name) > MaxSheetNameLength {
		return sheeterr.New(sheeterr.InvalidSheetName, "append_sheet", "sheet name %q exceeds %d characters", name, MaxSheetNameLength)
	}
	if i := strings.IndexAny(name, `:\/?*[]`); i >= 0 {
		return sheeterr.New(sheeterr.InvalidSheetName, "append_sheet", "sheet name %q contains %q", name, name[i])
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return sheeterr.New(sheeterr.InvalidSheetName, "append_sheet", "sheet name %q cannot start or end with an apostrophe", name)
	}
	return nil
}

// AppendSheet adds ws under name and returns the name used. An empty name
// picks the first free "SheetN". Names are compared case-insensitively, as
// Excel does.
func (wb *Workbook) AppendSheet(ws *Worksheet, name string) (string, error) {
	if ws == nil {
		ws = NewWorksheet()
	}
	if name == "" {
		for i := 1; ; i++ {
			name = "Sheet" + strconv.Itoa(i)
			if wb.SheetIndex(name) < 0 {
				break
			}
		}
	}
	if err := ValidateSheetName(name); err != nil {
		return "", err
	}
	if wb.SheetIndex(name) >= 0 {
		return "", sheeterr.New(sheeterr.DuplicateSheetName, "append_sheet", "%q", name)
	}

	if wb.Sheets == nil {
		wb.Sheets = make(map[string]*Worksheet)
	}
	wb.SheetNames = append(wb.SheetNames, name)
	wb.Sheets[name] = ws
	if wb.Settings != nil && wb.Settings.Sheets != nil {
		wb.Settings.Sheets = append(wb.Settings.Sheets, SheetProps{Name: name})
	}
	return name, nil
}

// SheetIndex returns the position of the named sheet, or -1.
func (wb *Workbook) SheetIndex(name string) int {
	for i, n := range wb.SheetNames {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Sheet returns the named worksheet, or nil if it is absent or was not
// loaded.
func (wb *Workbook) Sheet(name string) *Worksheet {
	if ws, ok := wb.Sheets[name]; ok {
		return ws
	}
	if i := wb.SheetIndex(name); i >= 0 {
		return wb.Sheets[wb.SheetNames[i]]
	}
	return nil
}

// SheetAt returns the worksheet at position i, or nil.
func (wb *Workbook) SheetAt(i int) *Worksheet {
	if i < 0 || i >= len(wb.SheetNames) {
		return nil
	}
	return wb.Sheets[wb.SheetNames[i]]
}

// Date1904 reports whether date serials use the 1904 epoch.
func (wb *Workbook) Date1904() bool {
	return wb.Settings != nil && wb.Settings.Date1904
}

// sheetProps returns the settings entry for sheet i, creating the settings
// table as needed.
func (wb *Workbook) sheetProps(i int) *SheetProps {
	if wb.Settings == nil {
		wb.Settings = &Settings{}
	}
	for len(wb.Settings.Sheets) < len(wb.SheetNames) {
		n := len(wb.Settings.Sheets)
		wb.Settings.Sheets = append(wb.Settings.Sheets, SheetProps{Name: wb.SheetNames[n]})
	}
	return &wb.Settings.Sheets[i]
}

// SetSheetVisibility sets the visibility of the named sheet.
func (wb *Workbook) SetSheetVisibility(name string, v Visibility) error {
	i := wb.SheetIndex(name)
	if i < 0 {
		return sheeterr.New(sheeterr.SheetNotFound, "set_sheet_visibility", "%q", name)
	}
	return wb.SetSheetVisibilityAt(i, v)
}

// SetSheetVisibilityAt sets the visibility of the sheet at position i.
func (wb *Workbook) SetSheetVisibilityAt(i int, v Visibility) error {
	if i < 0 || i >= len(wb.SheetNames) {
		return sheeterr.New(sheeterr.SheetNotFound, "set_sheet_visibility", "index %d", i)
	}
	if v < Visible || v > VeryHidden {
		return sheeterr.New(sheeterr.InvalidOption, "set_sheet_visibility", "bad visibility %d", int(v))
	}
	wb.sheetProps(i).Hidden = v
	return nil
}

// SheetVisibility returns the visibility of the sheet at position i.
func (wb *Workbook) SheetVisibility(i int) Visibility {
	if wb.Settings == nil || i < 0 || i >= len(wb.Settings.Sheets) {
		return Visible
	}
	return wb.Settings.Sheets[i].Hidden
}
