package htmldoc

import (
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
)

// Encoder writes one sheet as an HTML document.
type Encoder struct{}

// Encode implements codec.Encoder.
func (Encoder) Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return Encode(wb, opts)
}

// Encode renders the sheet selected by opts.Sheet (the first sheet when
// empty) as an HTML table.
func Encode(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	_, ws, err := codec.ResolveSheet(wb, opts.Sheet)
	if err != nil {
		return nil, err
	}
	s, err := export.SheetToHTML(ws, export.HTMLOptions{Date1904: wb.Date1904()})
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
