// Package xlsx reads and writes Office Open XML workbooks (xlsx, xlsm).
//
// Decoding walks the zip package with encoding/xml. Worksheet parts are
// parsed concurrently and assembled in workbook order. Encrypted packages
// are opened with excelize.Decrypt. Encoding goes through excelize.
package xlsx

import "encoding/xml"

// Relationship types resolved from .rels parts.
const (
	relOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relWorksheet      = "/worksheet"
	relChartsheet     = "/chartsheet"
	relMacrosheet     = "/xlMacrosheet"
	relDialogsheet    = "/dialogsheet"
	relComments       = "/comments"
	relHyperlink      = "/hyperlink"
	relSharedStrings  = "/sharedStrings"
	relStyles         = "/styles"
	relVBAProject     = "/vbaProject"
)

// workbookXML represents the xl/workbook.xml file structure.
type workbookXML struct {
	XMLName      xml.Name          `xml:"workbook"`
	WorkbookPr   *workbookPrXML    `xml:"workbookPr"`
	Sheets       []sheetRefXML     `xml:"sheets>sheet"`
	DefinedNames []definedNameXML  `xml:"definedNames>definedName"`
	BookViews    []workbookViewXML `xml:"bookViews>workbookView"`
}

type workbookPrXML struct {
	Date1904      bool   `xml:"date1904,attr"`
	FilterPrivacy bool   `xml:"filterPrivacy,attr"`
	CodeName      string `xml:"codeName,attr"`
}

type workbookViewXML struct {
	ActiveTab int `xml:"activeTab,attr"`
}

type sheetRefXML struct {
	Name    string `xml:"name,attr"`
	SheetID string `xml:"sheetId,attr"`
	State   string `xml:"state,attr"` // hidden, veryHidden
	RID     string `xml:"id,attr"`    // r:id attribute for relationship
}

type definedNameXML struct {
	Name         string `xml:"name,attr"`
	LocalSheetID *int   `xml:"localSheetId,attr"`
	Hidden       bool   `xml:"hidden,attr"`
	Comment      string `xml:"comment,attr"`
	Value        string `xml:",chardata"`
}

// worksheetXML represents a xl/worksheets/sheet*.xml file structure.
type worksheetXML struct {
	XMLName         xml.Name            // worksheet, macrosheet or dialogsheet
	SheetPr         *sheetPrXML         `xml:"sheetPr"`
	Dimension       *dimensionXML       `xml:"dimension"`
	SheetViews      []sheetViewXML      `xml:"sheetViews>sheetView"`
	Cols            []colXML            `xml:"cols>col"`
	SheetData       sheetDataXML        `xml:"sheetData"`
	SheetProtection *sheetProtectionXML `xml:"sheetProtection"`
	AutoFilter      *autoFilterXML      `xml:"autoFilter"`
	MergeCells      []mergeCellXML      `xml:"mergeCells>mergeCell"`
	Hyperlinks      []hyperlinkXML      `xml:"hyperlinks>hyperlink"`
	PageMargins     *pageMarginsXML     `xml:"pageMargins"`
}

type sheetPrXML struct {
	CodeName string `xml:"codeName,attr"`
}

type dimensionXML struct {
	Ref string `xml:"ref,attr"` // e.g., "A1:D10"
}

type sheetViewXML struct {
	RightToLeft bool `xml:"rightToLeft,attr"`
}

type colXML struct {
	Min          int     `xml:"min,attr"` // 1-indexed
	Max          int     `xml:"max,attr"`
	Width        float64 `xml:"width,attr"`
	CustomWidth  bool    `xml:"customWidth,attr"`
	Hidden       bool    `xml:"hidden,attr"`
	OutlineLevel int     `xml:"outlineLevel,attr"`
}

type sheetDataXML struct {
	Rows []rowXML `xml:"row"`
}

type rowXML struct {
	R            int       `xml:"r,attr"` // Row number (1-indexed)
	Hidden       bool      `xml:"hidden,attr"`
	Ht           float64   `xml:"ht,attr"`
	CustomHeight bool      `xml:"customHeight,attr"`
	OutlineLevel int       `xml:"outlineLevel,attr"`
	Cells        []cellXML `xml:"c"`
}

type cellXML struct {
	R  string        `xml:"r,attr"` // Cell reference (e.g., "A1")
	T  string        `xml:"t,attr"` // s, n, b, e, str, inlineStr, d
	S  int           `xml:"s,attr"` // Style index
	V  *string       `xml:"v"`      // Value
	F  *formulaXML   `xml:"f"`      // Formula (optional)
	Is *inlineStrXML `xml:"is"`     // Inline string (optional)
}

type formulaXML struct {
	Text string `xml:",chardata"`
	T    string `xml:"t,attr"`   // normal, array, shared, dataTable
	Ref  string `xml:"ref,attr"` // range of an array or shared formula
	Si   *int   `xml:"si,attr"`  // shared formula group
}

type inlineStrXML struct {
	T string `xml:"t"`
	R []rXML `xml:"r"`
}

type mergeCellXML struct {
	Ref string `xml:"ref,attr"` // e.g., "A1:B2"
}

type hyperlinkXML struct {
	Ref      string `xml:"ref,attr"`
	RID      string `xml:"id,attr"`
	Location string `xml:"location,attr"`
	Tooltip  string `xml:"tooltip,attr"`
	Display  string `xml:"display,attr"`
}

// sheetProtectionXML keeps raw attribute text because the defaults differ
// per attribute.
type sheetProtectionXML struct {
	Sheet               string `xml:"sheet,attr"`
	Password            string `xml:"password,attr"`
	SelectLockedCells   string `xml:"selectLockedCells,attr"`
	SelectUnlockedCells string `xml:"selectUnlockedCells,attr"`
	FormatCells         string `xml:"formatCells,attr"`
	FormatColumns       string `xml:"formatColumns,attr"`
	FormatRows          string `xml:"formatRows,attr"`
	InsertColumns       string `xml:"insertColumns,attr"`
	InsertRows          string `xml:"insertRows,attr"`
	InsertHyperlinks    string `xml:"insertHyperlinks,attr"`
	DeleteColumns       string `xml:"deleteColumns,attr"`
	DeleteRows          string `xml:"deleteRows,attr"`
	Sort                string `xml:"sort,attr"`
	AutoFilter          string `xml:"autoFilter,attr"`
	PivotTables         string `xml:"pivotTables,attr"`
	Objects             string `xml:"objects,attr"`
	Scenarios           string `xml:"scenarios,attr"`
}

type autoFilterXML struct {
	Ref string `xml:"ref,attr"`
}

type pageMarginsXML struct {
	Left   float64 `xml:"left,attr"`
	Right  float64 `xml:"right,attr"`
	Top    float64 `xml:"top,attr"`
	Bottom float64 `xml:"bottom,attr"`
	Header float64 `xml:"header,attr"`
	Footer float64 `xml:"footer,attr"`
}

// sharedStringsXML represents the xl/sharedStrings.xml file structure.
type sharedStringsXML struct {
	XMLName xml.Name `xml:"sst"`
	Count   int      `xml:"count,attr"`
	Unique  int      `xml:"uniqueCount,attr"`
	SI      []siXML  `xml:"si"`
}

type siXML struct {
	T string `xml:"t"` // Simple text
	R []rXML `xml:"r"` // Rich text runs
}

type rXML struct {
	RPr *rPrXML `xml:"rPr"`
	T   string  `xml:"t"` // Text in run
}

type rPrXML struct {
	B      *flagXML `xml:"b"`
	I      *flagXML `xml:"i"`
	U      *flagXML `xml:"u"`
	Strike *flagXML `xml:"strike"`
}

// flagXML is a run property such as <b/> or <b val="0"/>.
type flagXML struct {
	Val string `xml:"val,attr"`
}

func (f *flagXML) on() bool {
	return f != nil && f.Val != "0" && f.Val != "false" && f.Val != "none"
}

// stylesXML represents the xl/styles.xml file structure.
type stylesXML struct {
	XMLName xml.Name    `xml:"styleSheet"`
	NumFmts []numFmtXML `xml:"numFmts>numFmt"`
	CellXfs []xfXML     `xml:"cellXfs>xf"`
}

type numFmtXML struct {
	NumFmtID   int    `xml:"numFmtId,attr"`
	FormatCode string `xml:"formatCode,attr"`
}

type xfXML struct {
	NumFmtID int `xml:"numFmtId,attr"`
	FontID   int `xml:"fontId,attr"`
	FillID   int `xml:"fillId,attr"`
	BorderID int `xml:"borderId,attr"`
}

// commentsXML represents xl/comments*.xml.
type commentsXML struct {
	XMLName  xml.Name     `xml:"comments"`
	Authors  []string     `xml:"authors>author"`
	Comments []commentXML `xml:"commentList>comment"`
}

type commentXML struct {
	Ref      string       `xml:"ref,attr"`
	AuthorID int          `xml:"authorId,attr"`
	Text     inlineStrXML `xml:"text"`
}

// relationshipsXML represents .rels files.
type relationshipsXML struct {
	XMLName      xml.Name          `xml:"Relationships"`
	Relationship []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// corePropertiesXML represents docProps/core.xml.
type corePropertiesXML struct {
	XMLName       xml.Name `xml:"coreProperties"`
	Title         string   `xml:"title"`
	Subject       string   `xml:"subject"`
	Creator       string   `xml:"creator"`
	Keywords      string   `xml:"keywords"`
	Description   string   `xml:"description"`
	LastModBy     string   `xml:"lastModifiedBy"`
	Category      string   `xml:"category"`
	ContentStatus string   `xml:"contentStatus"`
	Identifier    string   `xml:"identifier"`
	Language      string   `xml:"language"`
	Version       string   `xml:"version"`
	Revision      string   `xml:"revision"`
	Created       string   `xml:"created"`
	Modified      string   `xml:"modified"`
}

// appPropertiesXML represents docProps/app.xml.
type appPropertiesXML struct {
	XMLName     xml.Name `xml:"Properties"`
	Application string   `xml:"Application"`
	Company     string   `xml:"Company"`
	Manager     string   `xml:"Manager"`
	AppVersion  string   `xml:"AppVersion"`
}

// customPropertiesXML represents docProps/custom.xml.
type customPropertiesXML struct {
	XMLName    xml.Name            `xml:"Properties"`
	Properties []customPropertyXML `xml:"property"`
}

type customPropertyXML struct {
	Name   string       `xml:"name,attr"`
	Values []variantXML `xml:",any"`
}

// variantXML is one vt:* value element.
type variantXML struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}
