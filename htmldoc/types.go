// Package htmldoc imports HTML tables as worksheets and writes worksheets
// as HTML documents.
//
// Every <table> of a document becomes one sheet named Sheet1, Sheet2 and
// so on. A single table element can be converted with TableToSheet or
// TableToBook, or appended to an existing sheet with AddDOM.
package htmldoc

import (
	"log/slog"

	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/codec"
)

// Options controls table import.
type Options struct {
	// Raw keeps every cell as text.
	Raw bool
	// Dense selects the row slice layout for new sheets.
	Dense bool
	// CellDates stores recognized dates as Date values instead of serials.
	CellDates bool
	// DateNF is the format given to recognized dates.
	DateNF string
	// SheetRows caps the rows read. Zero means no cap.
	SheetRows int
	// SheetStubs keeps empty cells as stubs.
	SheetStubs bool
	// Display skips rows and cells hidden with CSS or the hidden attribute.
	Display bool
	// Origin is where AddDOM starts writing. The zero Origin is A1.
	Origin builder.Origin
	// Logger receives warnings. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// parseOptions is the value typing part of o.
func (o Options) parseOptions() codec.ParseOptions {
	return codec.ParseOptions{
		Raw:        o.Raw,
		Dense:      o.Dense,
		CellDates:  o.CellDates,
		DateNF:     o.DateNF,
		SheetStubs: o.SheetStubs,
		Logger:     o.Logger,
	}
}

// optionsFrom maps reader options onto table import options.
func optionsFrom(req codec.DecodeRequest) Options {
	o := Options{
		Raw:        req.Options.Raw,
		Dense:      req.Options.Dense,
		CellDates:  req.Options.CellDates,
		DateNF:     req.Options.DateNF,
		SheetStubs: req.Options.SheetStubs,
		Logger:     req.Options.Logger,
	}
	if req.Stage == codec.StageRows {
		o.SheetRows = req.Options.SheetRows
	}
	return o
}
