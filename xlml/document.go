// Package xlml reads and writes SpreadsheetML 2003, the single file XML
// workbook format of Excel 2002 and 2003.
//
// A SpreadsheetML document holds every sheet of the workbook. Cell formulas
// and named ranges use R1C1 references and are converted to A1 form on read
// and back on write. Number formats are carried by styles; the named
// formats ("Short Date", "Percent" and so on) map to their format codes.
package xlml

import (
	"encoding/xml"
	"strings"
)

const (
	nsSS    = "urn:schemas-microsoft-com:office:spreadsheet"
	nsO     = "urn:schemas-microsoft-com:office:office"
	nsX     = "urn:schemas-microsoft-com:office:excel"
	nsDT    = "uuid:C2F41010-65B3-11d1-A29F-00AA00C14882"
	nsHTML  = "http://www.w3.org/TR/REC-html40"
	dateFmt = "2006-01-02T15:04:05.000"
)

// workbookXML is the document root. Attributes are matched by local name,
// so "ss:Name" and "Name" both decode.
type workbookXML struct {
	XMLName xml.Name         `xml:"Workbook"`
	Props   docPropsXML      `xml:"DocumentProperties"`
	Custom  customPropsXML   `xml:"CustomDocumentProperties"`
	Excel   excelWorkbookXML `xml:"ExcelWorkbook"`
	Styles  []styleXML       `xml:"Styles>Style"`
	Names   []namedRangeXML  `xml:"Names>NamedRange"`
	Sheets  []worksheetXML   `xml:"Worksheet"`
}

// outlineXML decodes the workbook without any table content.
type outlineXML struct {
	XMLName xml.Name          `xml:"Workbook"`
	Props   docPropsXML       `xml:"DocumentProperties"`
	Custom  customPropsXML    `xml:"CustomDocumentProperties"`
	Excel   excelWorkbookXML  `xml:"ExcelWorkbook"`
	Names   []namedRangeXML   `xml:"Names>NamedRange"`
	Sheets  []outlineSheetXML `xml:"Worksheet"`
}

type outlineSheetXML struct {
	Name    string     `xml:"Name,attr"`
	Options optionsXML `xml:"WorksheetOptions"`
}

type docPropsXML struct {
	Title       string `xml:"Title"`
	Subject     string `xml:"Subject"`
	Author      string `xml:"Author"`
	Keywords    string `xml:"Keywords"`
	Description string `xml:"Description"`
	LastAuthor  string `xml:"LastAuthor"`
	Created     string `xml:"Created"`
	LastSaved   string `xml:"LastSaved"`
	Category    string `xml:"Category"`
	Manager     string `xml:"Manager"`
	Company     string `xml:"Company"`
	Version     string `xml:"Version"`
}

type customPropsXML struct {
	Props []customPropXML `xml:",any"`
}

type customPropXML struct {
	XMLName xml.Name
	Type    string `xml:"dt,attr"`
	Value   string `xml:",chardata"`
}

type excelWorkbookXML struct {
	Date1904 *struct{} `xml:"Date1904"`
}

type styleXML struct {
	ID           string `xml:"ID,attr"`
	Parent       string `xml:"Parent,attr"`
	NumberFormat *struct {
		Format string `xml:"Format,attr"`
	} `xml:"NumberFormat"`
}

type namedRangeXML struct {
	Name     string `xml:"Name,attr"`
	RefersTo string `xml:"RefersTo,attr"`
	Hidden   string `xml:"Hidden,attr"`
}

type worksheetXML struct {
	Name       string          `xml:"Name,attr"`
	Protected  string          `xml:"Protected,attr"`
	Names      []namedRangeXML `xml:"Names>NamedRange"`
	Table      *tableXML       `xml:"Table"`
	Options    optionsXML      `xml:"WorksheetOptions"`
	AutoFilter *struct {
		Range string `xml:"Range,attr"`
	} `xml:"AutoFilter"`
}

type tableXML struct {
	Columns []columnXML `xml:"Column"`
	Rows    []rowXML    `xml:"Row"`
}

type columnXML struct {
	Index  int     `xml:"Index,attr"`
	Span   int     `xml:"Span,attr"`
	Width  float64 `xml:"Width,attr"`
	Hidden string  `xml:"Hidden,attr"`
}

type rowXML struct {
	Index  int       `xml:"Index,attr"`
	Height float64   `xml:"Height,attr"`
	Hidden string    `xml:"Hidden,attr"`
	Cells  []cellXML `xml:"Cell"`
}

type cellXML struct {
	Index       int         `xml:"Index,attr"`
	MergeAcross int         `xml:"MergeAcross,attr"`
	MergeDown   int         `xml:"MergeDown,attr"`
	StyleID     string      `xml:"StyleID,attr"`
	Formula     string      `xml:"Formula,attr"`
	ArrayRange  string      `xml:"ArrayRange,attr"`
	HRef        string      `xml:"HRef,attr"`
	ScreenTip   string      `xml:"HRefScreenTip,attr"`
	Data        *dataXML    `xml:"Data"`
	Comment     *commentXML `xml:"Comment"`
}

type commentXML struct {
	Author     string  `xml:"Author,attr"`
	ShowAlways string  `xml:"ShowAlways,attr"`
	Data       dataXML `xml:"Data"`
}

type optionsXML struct {
	Visible         string    `xml:"Visible"`
	RightToLeft     *struct{} `xml:"DisplayRightToLeft"`
	ProtectContents string    `xml:"ProtectContents"`
	ProtectObjects  string    `xml:"ProtectObjects"`
	Margins         *struct {
		Bottom float64 `xml:"Bottom,attr"`
		Left   float64 `xml:"Left,attr"`
		Right  float64 `xml:"Right,attr"`
		Top    float64 `xml:"Top,attr"`
	} `xml:"PageSetup>PageMargins"`
	Header *struct {
		Margin float64 `xml:"Margin,attr"`
	} `xml:"PageSetup>Header"`
	Footer *struct {
		Margin float64 `xml:"Margin,attr"`
	} `xml:"PageSetup>Footer"`
}

// dataXML is a Data element. Rich text arrives as HTML 4 markup inside it;
// Text collects the plain text and HTML the markup.
type dataXML struct {
	Type string
	Text string
	HTML string
	Rich bool
}

// UnmarshalXML collects the text of a Data element, including text nested
// in formatting elements such as <B> or <Font>.
func (d *dataXML) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local == "Type" {
			d.Type = a.Value
		}
	}
	var text, markup strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			d.Rich = true
			name := strings.ToLower(t.Name.Local)
			if name == "br" {
				text.WriteByte('\n')
				markup.WriteString("<br/>")
				continue
			}
			markup.WriteString("<" + name + ">")
		case xml.EndElement:
			if depth == 0 {
				d.Text = text.String()
				d.HTML = markup.String()
				return nil
			}
			depth--
			if name := strings.ToLower(t.Name.Local); name != "br" {
				markup.WriteString("</" + name + ">")
			}
		case xml.CharData:
			text.Write(t)
			_ = xml.EscapeText(&markup, t)
		}
	}
}

// flag reports whether an XML boolean attribute or element is set.
func flag(s string) bool {
	s = strings.TrimSpace(s)
	return s == "1" || strings.EqualFold(s, "true")
}

// unescapeName reverses the _xHHHH_ escapes of property element names.
func unescapeName(s string) string {
	if !strings.Contains(s, "_x") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i+6 < len(s) && s[i+1] == 'x' && s[i+6] == '_' {
			var r rune
			ok := true
			for _, h := range s[i+2 : i+6] {
				r <<= 4
				switch {
				case h >= '0' && h <= '9':
					r |= h - '0'
				case h >= 'a' && h <= 'f':
					r |= h - 'a' + 10
				case h >= 'A' && h <= 'F':
					r |= h - 'A' + 10
				default:
					ok = false
				}
			}
			if ok {
				sb.WriteRune(r)
				i += 6
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// escapeName makes s usable as an XML element name.
func escapeName(s string) string {
	var sb strings.Builder
	for i, r := range s {
		valid := r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r > 0x7f
		if i > 0 {
			valid = valid || r == '-' || r == '.' || (r >= '0' && r <= '9')
		}
		if valid {
			sb.WriteRune(r)
			continue
		}
		sb.WriteString("_x" + strings.ToUpper(hex4(r)) + "_")
	}
	return sb.String()
}

func hex4(r rune) string {
	const digits = "0123456789abcdef"
	b := []byte{digits[(r>>12)&0xf], digits[(r>>8)&0xf], digits[(r>>4)&0xf], digits[r&0xf]}
	return string(b)
}
