package cellar

import (
	"log/slog"

	"github.com/tsawler/cellar/codec"
)

// ReadOptions holds the configuration collected by a Reader.
type ReadOptions struct {
	// Sheet selection, by name
	sheets []string

	// Partial parsing
	sheetRows  int
	bookSheets bool
	bookProps  bool

	// Decoding
	bookType  string
	password  string
	codepage  int
	dense     bool
	cellDates bool
	strict    bool

	logger *slog.Logger
}

// defaultOptions returns the default read options.
func defaultOptions() ReadOptions {
	return ReadOptions{
		sheets:     nil, // nil means all sheets
		sheetRows:  0,
		bookSheets: false,
		bookProps:  false,
		dense:      false,
		cellDates:  false,
		strict:     false,
	}
}

// clone creates a deep copy of ReadOptions.
func (o ReadOptions) clone() ReadOptions {
	n := o
	if o.sheets != nil {
		n.sheets = make([]string, len(o.sheets))
		copy(n.sheets, o.sheets)
	}
	return n
}

// parseOptions converts the collected settings into codec options. The
// formula, HTML and text toggles keep their read defaults.
func (o ReadOptions) parseOptions(logger *slog.Logger) codec.ParseOptions {
	p := codec.DefaultParseOptions()
	p.BookType = o.bookType
	p.Password = o.password
	p.Codepage = o.codepage
	p.SheetRows = o.sheetRows
	p.BookSheets = o.bookSheets
	p.BookProps = o.bookProps
	p.Dense = o.dense
	p.CellDates = o.cellDates
	p.WTF = o.strict
	p.CellNF = true
	p.Logger = logger
	for _, s := range o.sheets {
		p.Sheets = append(p.Sheets, codec.SheetName(s))
	}
	return p
}
