// Package format identifies spreadsheet book types from file names and
// content.
package format

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/richardlehane/mscfb"
)

// Format is a spreadsheet book type.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// XLSX is Office Open XML (.xlsx), including encrypted packages.
	XLSX
	// XLSM is Office Open XML with macros (.xlsm).
	XLSM
	// XLSB is the binary Office Open XML variant (.xlsb).
	XLSB
	// XLS is BIFF8 inside an OLE2 container (.xls).
	XLS
	// BIFF5 is the Excel 5/95 workbook stream.
	BIFF5
	// BIFF2 is the Excel 2.x worksheet stream.
	BIFF2
	// XLA is an Excel add-in (.xla), BIFF8 underneath.
	XLA
	// ODS is OpenDocument Spreadsheet (.ods).
	ODS
	// FODS is flat OpenDocument Spreadsheet XML (.fods).
	FODS
	// XLML is SpreadsheetML 2003 XML.
	XLML
	// HTML is an HTML document holding tables.
	HTML
	// CSV is comma separated text.
	CSV
	// TXT is tab separated text, UTF-16 when written.
	TXT
	// PRN is space padded fixed width text.
	PRN
	// SYLK is the Symbolic Link format (.slk).
	SYLK
	// DIF is the Data Interchange Format (.dif).
	DIF
	// ETH is the EtherCalc/SocialCalc save format.
	ETH
	// RTF is a Rich Text Format table (write only).
	RTF
)

var names = map[Format]string{
	XLSX:  "xlsx",
	XLSM:  "xlsm",
	XLSB:  "xlsb",
	XLS:   "xls",
	BIFF5: "biff5",
	BIFF2: "biff2",
	XLA:   "xla",
	ODS:   "ods",
	FODS:  "fods",
	XLML:  "xlml",
	HTML:  "html",
	CSV:   "csv",
	TXT:   "txt",
	PRN:   "prn",
	SYLK:  "sylk",
	DIF:   "dif",
	ETH:   "eth",
	RTF:   "rtf",
}

var extensions = map[Format]string{
	XLSX:  ".xlsx",
	XLSM:  ".xlsm",
	XLSB:  ".xlsb",
	XLS:   ".xls",
	BIFF5: ".xls",
	BIFF2: ".xls",
	XLA:   ".xla",
	ODS:   ".ods",
	FODS:  ".fods",
	XLML:  ".xml",
	HTML:  ".html",
	CSV:   ".csv",
	TXT:   ".txt",
	PRN:   ".prn",
	SYLK:  ".slk",
	DIF:   ".dif",
	ETH:   ".eth",
	RTF:   ".rtf",
}

// String returns the book type name used in options, such as "xlsx".
func (f Format) String() string {
	if s, ok := names[f]; ok {
		return s
	}
	return "unknown"
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	return extensions[f]
}

// Parse maps a book type name to a Format. "biff8" is accepted for XLS and
// "slk" for SYLK.
func Parse(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "biff8":
		return XLS, true
	case "slk":
		return SYLK, true
	case "htm":
		return HTML, true
	}
	for f, s := range names {
		if s == name {
			return f, true
		}
	}
	return Unknown, false
}

// Detect determines the format from a file name extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return XLSX
	case ".xlsm":
		return XLSM
	case ".xlsb":
		return XLSB
	case ".xls":
		return XLS
	case ".xla":
		return XLA
	case ".ods":
		return ODS
	case ".fods":
		return FODS
	case ".xml":
		return XLML
	case ".html", ".htm":
		return HTML
	case ".csv":
		return CSV
	case ".txt", ".tsv", ".tab":
		return TXT
	case ".prn":
		return PRN
	case ".slk", ".sylk":
		return SYLK
	case ".dif":
		return DIF
	case ".eth":
		return ETH
	case ".rtf":
		return RTF
	default:
		return Unknown
	}
}

var (
	zipMagic  = []byte{0x50, 0x4B, 0x03, 0x04}
	cfbMagic  = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	utf16LE   = []byte{0xFF, 0xFE}
	utf16BE   = []byte{0xFE, 0xFF}
	biff2BOFs = [][]byte{{0x09, 0x00}, {0x09, 0x02}, {0x09, 0x04}}
)

// DetectFromMagic classifies data from its leading bytes alone. Containers
// (ZIP and OLE2) report Unknown here; use Sniff to look inside them.
func DetectFromMagic(data []byte) Format {
	if len(data) < 2 {
		return Unknown
	}
	if bytes.HasPrefix(data, zipMagic) || bytes.HasPrefix(data, cfbMagic) {
		return Unknown
	}
	if bytes.HasPrefix(data, utf16LE) || bytes.HasPrefix(data, utf16BE) {
		return TXT
	}
	for _, bof := range biff2BOFs {
		if bytes.HasPrefix(data, bof) && len(data) >= 4 && data[3] == 0x00 && data[2] >= 4 && data[2] <= 8 {
			return BIFF2
		}
	}

	text := bytes.TrimPrefix(data, utf8BOM)
	text = bytes.TrimLeft(text, " \t\r\n")
	switch {
	case bytes.HasPrefix(text, []byte("ID;")):
		return SYLK
	case bytes.HasPrefix(text, []byte("TABLE\r\n0,1")), bytes.HasPrefix(text, []byte("TABLE\n0,1")):
		return DIF
	case bytes.HasPrefix(text, []byte(`{\rtf`)):
		return RTF
	case bytes.HasPrefix(text, []byte("socialcalc:version:")):
		return ETH
	}
	return detectMarkup(text)
}

// detectMarkup recognizes the XML and HTML flavors from the document head.
func detectMarkup(data []byte) Format {
	if len(data) == 0 || data[0] != '<' {
		return Unknown
	}
	head := strings.ToLower(string(data[:min(len(data), 2048)]))
	switch {
	case strings.Contains(head, "urn:schemas-microsoft-com:office:spreadsheet"),
		strings.Contains(head, `progid="excel.sheet"`):
		return XLML
	case strings.Contains(head, "office:document") && strings.Contains(head, "opendocument.spreadsheet"):
		return FODS
	case strings.HasPrefix(head, "<!doctype html"), strings.HasPrefix(head, "<html"),
		strings.HasPrefix(head, "<table"), strings.HasPrefix(head, "<body"),
		strings.HasPrefix(head, "<?xml") && strings.Contains(head, "<html"),
		strings.HasPrefix(head, "<head"), strings.HasPrefix(head, "<meta"):
		return HTML
	}
	return Unknown
}

// DetectFromReader inspects content to determine the format. ZIP and OLE2
// containers are opened to tell their flavors apart, and plain text falls
// back to CSV, TXT or PRN by its separators.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	magic := make([]byte, 4096)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	magic = magic[:n]

	switch {
	case bytes.HasPrefix(magic, zipMagic):
		return detectZIPFormat(r, size)
	case bytes.HasPrefix(magic, cfbMagic):
		return detectCFBFormat(r)
	}
	if f := DetectFromMagic(magic); f != Unknown {
		return f, nil
	}
	return detectText(magic), nil
}

// Sniff is DetectFromReader over an in-memory buffer.
func Sniff(data []byte) (Format, error) {
	return DetectFromReader(bytes.NewReader(data), int64(len(data)))
}

// detectZIPFormat inspects a ZIP archive to tell the OOXML variants and ODS
// apart.
func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown, err
	}

	// OpenDocument stores its mimetype as the first, uncompressed entry.
	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		data := make([]byte, 256)
		n, _ := io.ReadFull(rc, data)
		rc.Close()
		if strings.Contains(string(data[:n]), "opendocument.spreadsheet") {
			return ODS, nil
		}
	}

	var xl, macro, binary bool
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		switch {
		case name == "xl/workbook.bin":
			binary = true
		case name == "xl/vbaproject.bin":
			macro = true
		case strings.HasPrefix(name, "xl/"):
			xl = true
		case name == "content.xml":
			return ODS, nil
		}
	}
	switch {
	case binary:
		return XLSB, nil
	case macro:
		return XLSM, nil
	case xl:
		return XLSX, nil
	}
	return Unknown, nil
}

// detectCFBFormat lists the streams of an OLE2 compound file. Encrypted
// OOXML packages also live in this container.
func detectCFBFormat(r io.ReaderAt) (Format, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return Unknown, err
	}
	found := Unknown
	for {
		entry, err := doc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Unknown, err
		}
		switch entry.Name {
		case "EncryptedPackage", "EncryptionInfo":
			return XLSX, nil
		case "Workbook", "WORKBOOK":
			found = XLS
		case "Book":
			if found == Unknown {
				found = BIFF5
			}
		}
	}
	return found, nil
}

// detectText classifies unrecognized content that reads as text.
func detectText(data []byte) Format {
	if len(data) == 0 {
		return Unknown
	}
	if !isText(data) {
		return Unknown
	}

	text := string(bytes.TrimPrefix(data, utf8BOM))
	line, _, _ := strings.Cut(text, "\n")
	switch {
	case strings.Contains(line, "\t"):
		return TXT
	case strings.ContainsAny(line, ",;"):
		return CSV
	case strings.Contains(text, "\t"):
		return TXT
	case strings.ContainsAny(text, ",;"):
		return CSV
	}
	return PRN
}

// isText reports whether mimetype sees data as some kind of text.
func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
