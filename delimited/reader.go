package delimited

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/internal/codepage"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const opDecode = "text_decode"

// SheetName is the name of the only sheet of a text book.
const SheetName = "Sheet1"

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// separators are the candidates considered when guessing, in order of
// preference on a tie.
var separators = []rune{',', '\t', ';', '|'}

// Decoder reads CSV and TXT. PRN input is read by PRNDecoder.
type Decoder struct{}

// Decode implements codec.Decoder.
func (Decoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return Decode(data, req)
}

// Decode parses delimited text into a one sheet workbook.
func Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	text, err := decodeText(data, req.Options.Codepage)
	if err != nil {
		return nil, err
	}
	wb := newBook()
	if !req.Stage.ParsesCells() {
		return wb, nil
	}

	sep, text := separator(text)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	ws := req.Options.NewSheet()
	limit := rowLimit(req)
	for row := 0; limit == 0 || row < limit; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, fmt.Errorf("record %d: %w", row+1, err))
		}
		putRecord(ws, row, rec, req.Options)
	}
	wb.Sheets[SheetName] = ws
	return wb, nil
}

func newBook() *model.Workbook {
	wb := model.NewWorkbook()
	wb.SheetNames = append(wb.SheetNames, SheetName)
	return wb
}

func rowLimit(req codec.DecodeRequest) int {
	if req.Stage == codec.StageRows {
		return req.Options.SheetRows
	}
	return 0
}

func putRecord(ws *model.Worksheet, row int, fields []string, opts codec.ParseOptions) {
	for col, f := range fields {
		if col >= address.MaxCols {
			opts.Log().Warn("dropping fields past the last column", "op", opDecode, "row", row+1)
			return
		}
		if c, ok := TypedCell(f, opts); ok {
			ws.SetCell(address.Cell{Row: row, Col: col}, c)
		}
	}
}

// decodeText converts input bytes to a string. A byte order mark wins,
// then an explicit code page, then UTF-8 with a Windows-1252 fallback.
func decodeText(data []byte, cp int) (string, error) {
	var (
		out []byte
		err error
	)
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), nil
	case bytes.HasPrefix(data, bomUTF16LE):
		out, err = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
	case bytes.HasPrefix(data, bomUTF16BE):
		out, err = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
	case cp != 0:
		if !codepage.Supported(cp) {
			return "", sheeterr.New(sheeterr.InvalidOption, opDecode, "unsupported code page %d", cp)
		}
		s, err := codepage.Decode(cp, data)
		if err != nil {
			return "", sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
		}
		return s, nil
	case utf8.Valid(data):
		return string(data), nil
	default:
		s, err := codepage.Decode(codepage.Default, data)
		if err != nil {
			return "", sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
		}
		return s, nil
	}
	if err != nil {
		return "", sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
	}
	return string(out), nil
}

// separator picks the field separator and strips a leading "sep=" line.
func separator(text string) (rune, string) {
	if strings.HasPrefix(strings.ToLower(text), "sep=") {
		line, rest, _ := strings.Cut(text, "\n")
		line = strings.TrimRight(line[4:], "\r")
		if r, size := utf8.DecodeRuneInString(line); size > 0 && size == len(line) {
			return r, rest
		}
	}
	return guessSeparator(text), text
}

// guessSeparator counts the candidate separators outside quotes in the
// first record and returns the most frequent, defaulting to a comma.
func guessSeparator(text string) rune {
	counts := make(map[rune]int, len(separators))
	quoted := false
	for _, r := range text {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if quoted {
			continue
		}
		if r == '\n' || r == '\r' {
			break
		}
		counts[r]++
	}
	best := ','
	for _, s := range separators {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}
