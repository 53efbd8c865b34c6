package delimited

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/internal/codepage"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const opEncode = "text_encode"

// CSVEncoder writes CSV.
type CSVEncoder struct{}

// Encode implements codec.Encoder.
func (CSVEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return EncodeCSV(wb, opts)
}

// TXTEncoder writes tab separated UTF-16LE text.
type TXTEncoder struct{}

// Encode implements codec.Encoder.
func (TXTEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return EncodeTXT(wb, opts)
}

// PRNEncoder writes fixed width text.
type PRNEncoder struct{}

// Encode implements codec.Encoder.
func (PRNEncoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return EncodePRN(wb, opts)
}

// EncodeCSV writes the selected sheet as CSV. Without a code page the
// output is UTF-8 behind a byte order mark.
func EncodeCSV(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := export.SheetToCSV(ws, export.CSVOptions{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	if opts.Codepage != 0 {
		return encodePage(opts.Codepage, s)
	}
	return append(append([]byte{}, bomUTF8...), s...), nil
}

// EncodeTXT writes the selected sheet as tab separated UTF-16LE text with
// a byte order mark, or in the requested code page.
func EncodeTXT(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := export.SheetToText(ws, export.CSVOptions{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	if opts.Codepage != 0 {
		return encodePage(opts.Codepage, s)
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.UnsupportedValue, opEncode, err)
	}
	return out, nil
}

// EncodePRN writes the selected sheet as fixed width columns.
func EncodePRN(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := SheetToPRN(ws, wb.Date1904())
	if err != nil {
		return nil, err
	}
	if opts.Codepage != 0 {
		return encodePage(opts.Codepage, s)
	}
	return []byte(s), nil
}

func encodePage(cp int, s string) ([]byte, error) {
	if !codepage.Supported(cp) {
		return nil, sheeterr.New(sheeterr.InvalidOption, opEncode, "unsupported code page %d", cp)
	}
	b, err := codepage.Encode(cp, s)
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.UnsupportedValue, opEncode, err)
	}
	return b, nil
}
