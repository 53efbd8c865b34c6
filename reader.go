package cellar

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/export"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// Reader provides a fluent interface for reading workbooks. Each
// configuration method returns a new Reader, so a partly configured Reader
// can be shared and extended safely.
type Reader struct {
	// Source
	filename   string
	data       []byte
	dataLoaded bool

	// Configuration
	options ReadOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a copy of the Reader with a deep copy of options.
func (r *Reader) clone() *Reader {
	return &Reader{
		filename:   r.filename,
		data:       r.data,
		dataLoaded: r.dataLoaded,
		options:    r.options.clone(),
		err:        r.err,
	}
}

// ensureData loads the file if it has not been loaded yet.
func (r *Reader) ensureData() error {
	if r.dataLoaded {
		return nil
	}
	if r.filename == "" {
		return sheeterr.New(sheeterr.InvalidOption, "open", "no filename specified")
	}
	data, err := os.ReadFile(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	r.data = data
	r.dataLoaded = true
	return nil
}

// ============================================================================
// Configuration Methods (return new Reader instance)
// ============================================================================

// SheetRows caps the number of rows read from each sheet.
//
// Example:
//
//	wb, _, err := cellar.Open("big.xlsx").SheetRows(10).Workbook()
func (r *Reader) SheetRows(n int) *Reader {
	nr := r.clone()
	if n < 0 && nr.err == nil {
		nr.err = sheeterr.New(sheeterr.InvalidOption, "sheet_rows", "negative row count %d", n)
	}
	nr.options.sheetRows = n
	return nr
}

// BookSheets stops after the sheet names. Sheet contents are not parsed.
func (r *Reader) BookSheets() *Reader {
	nr := r.clone()
	nr.options.bookSheets = true
	return nr
}

// BookProps stops after the document properties.
func (r *Reader) BookProps() *Reader {
	nr := r.clone()
	nr.options.bookProps = true
	return nr
}

// Sheets restricts parsing to the named sheets. Multiple calls are
// cumulative. Sheet names of unselected sheets are still reported.
func (r *Reader) Sheets(names ...string) *Reader {
	nr := r.clone()
	nr.options.sheets = append(nr.options.sheets, names...)
	return nr
}

// Password sets the password of an encrypted workbook.
func (r *Reader) Password(p string) *Reader {
	nr := r.clone()
	nr.options.password = p
	return nr
}

// BookType skips content detection and reads the input as the named type
// ("csv", "xlsx", ...).
func (r *Reader) BookType(t string) *Reader {
	nr := r.clone()
	nr.options.bookType = t
	return nr
}

// Codepage sets the code page of legacy text and BIFF input.
func (r *Reader) Codepage(cp int) *Reader {
	nr := r.clone()
	nr.options.codepage = cp
	return nr
}

// Dense stores sheets in the row slice layout.
func (r *Reader) Dense() *Reader {
	nr := r.clone()
	nr.options.dense = true
	return nr
}

// CellDates stores date cells as Date values instead of serial numbers.
func (r *Reader) CellDates() *Reader {
	nr := r.clone()
	nr.options.cellDates = true
	return nr
}

// Strict fails on unsupported cell types and features instead of skipping
// them with a warning.
func (r *Reader) Strict() *Reader {
	nr := r.clone()
	nr.options.strict = true
	return nr
}

// Logger sends read diagnostics to l as well as collecting them as
// warnings.
func (r *Reader) Logger(l *slog.Logger) *Reader {
	nr := r.clone()
	nr.options.logger = l
	return nr
}

// ============================================================================
// Terminal Operations
// ============================================================================

// Workbook reads the workbook with the configured options.
//
// Example:
//
//	wb, warnings, err := cellar.Open("book.xlsx").Sheets("Data").Workbook()
func (r *Reader) Workbook() (*model.Workbook, []Warning, error) {
	return r.read(r.options)
}

// SheetNames returns the sheet names in workbook order without parsing any
// cells.
func (r *Reader) SheetNames() ([]string, error) {
	opts := r.options.clone()
	opts.bookSheets = true
	wb, _, err := r.read(opts)
	if err != nil {
		return nil, err
	}
	return wb.SheetNames, nil
}

// Props returns the document properties, or nil when the workbook has none.
func (r *Reader) Props() (*model.Properties, error) {
	opts := r.options.clone()
	opts.bookProps = true
	wb, _, err := r.read(opts)
	if err != nil {
		return nil, err
	}
	return wb.Props, nil
}

// CSV reads one sheet and renders it as comma separated text. An empty
// name selects the first sheet.
//
// Example:
//
//	csv, err := cellar.Open("book.xlsx").CSV("Summary")
func (r *Reader) CSV(sheet string) (string, error) {
	wb, ws, err := r.sheet(sheet)
	if err != nil {
		return "", err
	}
	return export.SheetToCSV(ws, export.CSVOptions{Date1904: wb.Date1904()})
}

// Records reads one sheet and returns a record per data row, keyed by the
// header row.
func (r *Reader) Records(sheet string) ([]*model.Record, error) {
	wb, ws, err := r.sheet(sheet)
	if err != nil {
		return nil, err
	}
	opts := export.DefaultJSONOptions()
	opts.Date1904 = wb.Date1904()
	return export.SheetToRecords(ws, opts)
}

// Rows reads one sheet and returns its rows as arrays of raw values.
func (r *Reader) Rows(sheet string) ([][]any, error) {
	wb, ws, err := r.sheet(sheet)
	if err != nil {
		return nil, err
	}
	opts := export.DefaultJSONOptions()
	opts.Date1904 = wb.Date1904()
	return export.SheetToRows(ws, opts)
}

// ============================================================================
// Internal Methods
// ============================================================================

func (r *Reader) read(opts ReadOptions) (*model.Workbook, []Warning, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	if err := r.ensureData(); err != nil {
		return nil, nil, err
	}

	next := slog.Default().Handler()
	if opts.logger != nil {
		next = opts.logger.Handler()
	}
	collector := newWarningHandler(next)
	wb, err := defaultRegistry().Read(r.data, opts.parseOptions(slog.New(collector)))
	if err != nil {
		return nil, collector.warnings(), err
	}
	return wb, collector.warnings(), nil
}

// sheet reads the workbook restricted to one sheet and returns it.
func (r *Reader) sheet(name string) (*model.Workbook, *model.Worksheet, error) {
	opts := r.options.clone()
	if name != "" && len(opts.sheets) == 0 {
		opts.sheets = []string{name}
	}
	opts.bookSheets, opts.bookProps = false, false
	wb, _, err := r.read(opts)
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		for _, n := range wb.SheetNames {
			if ws := wb.Sheets[n]; ws != nil {
				return wb, ws, nil
			}
		}
	}
	_, ws, err := codec.ResolveSheet(wb, name)
	if err != nil {
		return nil, nil, err
	}
	return wb, ws, nil
}
