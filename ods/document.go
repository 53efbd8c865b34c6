// Package ods reads and writes OpenDocument spreadsheets, both the zipped
// package (.ods) and the flat XML document (.fods).
package ods

import (
	"encoding/xml"
	"strings"
)

// XML namespaces used in ODF documents.
const (
	nsOffice   = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsStyle    = "urn:oasis:names:tc:opendocument:xmlns:style:1.0"
	nsText     = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	nsTable    = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsNumber   = "urn:oasis:names:tc:opendocument:xmlns:datastyle:1.0"
	nsFO       = "urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0"
	nsDC       = "http://purl.org/dc/elements/1.1/"
	nsMeta     = "urn:oasis:names:tc:opendocument:xmlns:meta:1.0"
	nsXLink    = "http://www.w3.org/1999/xlink"
	nsManifest = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"
	nsOF       = "urn:oasis:names:tc:opendocument:xmlns:of:1.2"
	nsCalcExt  = "urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0"
)

// mimeType is the content of the mimetype entry of a spreadsheet package.
const mimeType = "application/vnd.oasis.opendocument.spreadsheet"

// documentXML is content.xml, or the whole of a flat document. Meta is only
// present in the flat form.
type documentXML struct {
	Meta            metaXML            `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 meta"`
	AutomaticStyles automaticStylesXML `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 automatic-styles"`
	Spreadsheet     spreadsheetXML     `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 body>spreadsheet"`
}

// sheetListXML decodes only what the early parse stages need.
type sheetListXML struct {
	Meta            metaXML            `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 meta"`
	AutomaticStyles automaticStylesXML `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 automatic-styles"`
	Spreadsheet     struct {
		Calc   calcSettingsXML `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 calculation-settings"`
		Tables []struct {
			Name      string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 name,attr"`
			StyleName string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 style-name,attr"`
		} `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 table"`
	} `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 body>spreadsheet"`
}

type spreadsheetXML struct {
	Calc           calcSettingsXML     `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 calculation-settings"`
	Tables         []tableXML          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 table"`
	Names          namedExpressionsXML `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 named-expressions"`
	DatabaseRanges []databaseRangeXML  `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 database-ranges>database-range"`
}

type calcSettingsXML struct {
	NullDate struct {
		DateValue string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 date-value,attr"`
	} `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 null-date"`
}

type namedExpressionsXML struct {
	Ranges      []namedRangeXML `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 named-range"`
	Expressions []namedRangeXML `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 named-expression"`
}

// namedRangeXML covers both named ranges (Address) and named expressions
// (Expression).
type namedRangeXML struct {
	Name       string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 name,attr"`
	Address    string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 cell-range-address,attr"`
	Expression string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 expression,attr"`
}

type databaseRangeXML struct {
	Name          string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 name,attr"`
	Target        string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 target-range-address,attr"`
	FilterButtons string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 display-filter-buttons,attr"`
}

// tableXML is one sheet. Columns and rows are collected in document order,
// flattening header and group wrappers.
type tableXML struct {
	Name      string
	StyleName string
	Protected bool
	Columns   []columnXML
	Rows      []rowXML
	Names     namedExpressionsXML
}

// UnmarshalXML walks the table children in order.
func (t *tableXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Space != nsTable {
			continue
		}
		switch a.Name.Local {
		case "name":
			t.Name = a.Value
		case "style-name":
			t.StyleName = a.Value
		case "protected":
			t.Protected = a.Value == "true"
		}
	}
	return t.children(d)
}

func (t *tableXML) children(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if tok.Name.Space != nsTable {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			switch tok.Name.Local {
			case "table-column":
				var c columnXML
				if err := d.DecodeElement(&c, &tok); err != nil {
					return err
				}
				t.Columns = append(t.Columns, c)
			case "table-row":
				var r rowXML
				if err := d.DecodeElement(&r, &tok); err != nil {
					return err
				}
				t.Rows = append(t.Rows, r)
			case "table-header-rows", "table-rows", "table-row-group",
				"table-header-columns", "table-columns", "table-column-group":
				if err := t.children(d); err != nil {
					return err
				}
			case "named-expressions":
				if err := d.DecodeElement(&t.Names, &tok); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

type columnXML struct {
	Repeated   string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-columns-repeated,attr"`
	StyleName  string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 style-name,attr"`
	Visibility string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 visibility,attr"`
}

type rowXML struct {
	Repeated   string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-rows-repeated,attr"`
	StyleName  string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 style-name,attr"`
	Visibility string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 visibility,attr"`
	// Cells holds table-cell and covered-table-cell elements in order.
	Cells []cellXML `xml:",any"`
}

type cellXML struct {
	XMLName       xml.Name
	ValueType     string          `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 value-type,attr"`
	CalcValueType string          `xml:"urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0 value-type,attr"`
	Value         string          `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 value,attr"`
	DateValue     string          `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 date-value,attr"`
	TimeValue     string          `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 time-value,attr"`
	BooleanValue  string          `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 boolean-value,attr"`
	StringValue   *string         `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 string-value,attr"`
	Formula       string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 formula,attr"`
	Repeated      string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-columns-repeated,attr"`
	ColSpan       string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-columns-spanned,attr"`
	RowSpan       string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-rows-spanned,attr"`
	MatrixCols    string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-matrix-columns-spanned,attr"`
	MatrixRows    string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 number-matrix-rows-spanned,attr"`
	StyleName     string          `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 style-name,attr"`
	Paragraphs    []paragraphXML  `xml:"urn:oasis:names:tc:opendocument:xmlns:text:1.0 p"`
	Annotations   []annotationXML `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 annotation"`
}

// covered reports whether the cell is hidden under a span.
func (c *cellXML) covered() bool {
	return c.XMLName.Local == "covered-table-cell"
}

// text joins the cell paragraphs with line breaks.
func (c *cellXML) text() string {
	return joinParagraphs(c.Paragraphs)
}

// link returns the first hyperlink target in the cell text.
func (c *cellXML) link() string {
	for _, p := range c.Paragraphs {
		if p.Link != "" {
			return p.Link
		}
	}
	return ""
}

type annotationXML struct {
	Display    string         `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 display,attr"`
	Creator    string         `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Paragraphs []paragraphXML `xml:"urn:oasis:names:tc:opendocument:xmlns:text:1.0 p"`
}

// paragraphXML is a text:p flattened to plain text. Spans are unwrapped,
// text:s expands to spaces, text:tab and text:line-break to control
// characters; the first text:a target is kept as Link.
type paragraphXML struct {
	Text string
	Link string
}

// UnmarshalXML flattens the paragraph content.
func (p *paragraphXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tok := tok.(type) {
		case xml.CharData:
			sb.Write(tok)
		case xml.StartElement:
			depth++
			if tok.Name.Space != nsText {
				// annotations nested in a paragraph are not cell text
				if err := d.Skip(); err != nil {
					return err
				}
				depth--
				continue
			}
			switch tok.Name.Local {
			case "s":
				n := 1
				for _, a := range tok.Attr {
					if a.Name.Local == "c" {
						n = atoi(a.Value, 1)
					}
				}
				sb.WriteString(strings.Repeat(" ", n))
			case "tab":
				sb.WriteByte('\t')
			case "line-break":
				sb.WriteByte('\n')
			case "a":
				for _, a := range tok.Attr {
					if a.Name.Space == nsXLink && a.Name.Local == "href" && p.Link == "" {
						p.Link = a.Value
					}
				}
			}
		case xml.EndElement:
			if depth == 0 {
				p.Text = sb.String()
				return nil
			}
			depth--
		}
	}
}

func joinParagraphs(ps []paragraphXML) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

type automaticStylesXML struct {
	Styles []styleXML `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 style"`
}

type styleXML struct {
	Name   string `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 name,attr"`
	Family string `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 family,attr"`
	Table  struct {
		Display     string `xml:"urn:oasis:names:tc:opendocument:xmlns:table:1.0 display,attr"`
		WritingMode string `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 writing-mode,attr"`
	} `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 table-properties"`
	Column struct {
		Width string `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 column-width,attr"`
	} `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 table-column-properties"`
	Row struct {
		Height string `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 row-height,attr"`
	} `xml:"urn:oasis:names:tc:opendocument:xmlns:style:1.0 table-row-properties"`
}

// metaDocumentXML is meta.xml.
type metaDocumentXML struct {
	Meta metaXML `xml:"urn:oasis:names:tc:opendocument:xmlns:office:1.0 meta"`
}

type metaXML struct {
	Title          string           `xml:"http://purl.org/dc/elements/1.1/ title"`
	Subject        string           `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Description    string           `xml:"http://purl.org/dc/elements/1.1/ description"`
	Creator        string           `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Date           string           `xml:"http://purl.org/dc/elements/1.1/ date"`
	Language       string           `xml:"http://purl.org/dc/elements/1.1/ language"`
	InitialCreator string           `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 initial-creator"`
	CreationDate   string           `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 creation-date"`
	Generator      string           `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 generator"`
	EditingCycles  string           `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 editing-cycles"`
	Keywords       []string         `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 keyword"`
	UserDefined    []userDefinedXML `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 user-defined"`
}

type userDefinedXML struct {
	Name      string `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 name,attr"`
	ValueType string `xml:"urn:oasis:names:tc:opendocument:xmlns:meta:1.0 value-type,attr"`
	Value     string `xml:",chardata"`
}

// manifestXML is META-INF/manifest.xml. Only encryption markers matter.
type manifestXML struct {
	Entries []struct {
		Path       string    `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 full-path,attr"`
		Encryption *struct{} `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 encryption-data"`
	} `xml:"urn:oasis:names:tc:opendocument:xmlns:manifest:1.0 file-entry"`
}
