package delimited

import (
	"strings"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
)

// prnWidth is the column width of PRN output.
const prnWidth = 10

// PRNDecoder reads space aligned text. Input whose first line holds a
// comma, tab or semicolon is read as delimited text instead.
type PRNDecoder struct{}

// Decode implements codec.Decoder.
func (PRNDecoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return DecodePRN(data, req)
}

// DecodePRN splits each line on runs of spaces.
func DecodePRN(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	text, err := decodeText(data, req.Options.Codepage)
	if err != nil {
		return nil, err
	}
	first, _, _ := strings.Cut(text, "\n")
	if strings.ContainsAny(first, ",\t;") {
		return Decode([]byte(text), req)
	}

	wb := newBook()
	if !req.Stage.ParsesCells() {
		return wb, nil
	}
	ws := req.Options.NewSheet()
	limit := rowLimit(req)
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for row, line := range strings.Split(text, "\n") {
		if limit > 0 && row >= limit {
			break
		}
		putRecord(ws, row, strings.Fields(line), req.Options)
	}
	wb.Sheets[SheetName] = ws
	return wb, nil
}

// SheetToPRN renders ws as fixed width columns. Numbers are right aligned
// and everything else is left aligned; longer values are not cut.
func SheetToPRN(ws *model.Worksheet, date1904 bool) (string, error) {
	rng, ok := ws.Ref()
	if !ok {
		return "", nil
	}
	var (
		sb   strings.Builder
		line strings.Builder
	)
	flush := func() {
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteString("\n")
		line.Reset()
	}
	err := export.Walk(ws, export.WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		if addr.Col == rng.Start.Col && addr.Row != rng.Start.Row {
			flush()
		}
		text := ""
		if c != nil {
			text = numfmt.FormatCell(c, numfmt.Options{Date1904: date1904})
		}
		pad := strings.Repeat(" ", max(0, prnWidth-len([]rune(text))))
		if _, num := valueOf(c).(model.Number); num {
			line.WriteString(pad + text)
		} else {
			line.WriteString(text + pad)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	flush()
	return sb.String(), nil
}

func valueOf(c *model.Cell) model.Value {
	if c == nil {
		return nil
	}
	return c.Value
}
