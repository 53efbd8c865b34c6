// Package codec dispatches workbook reads and writes to format plugins.
//
// A Registry maps each book type to a Decoder and an Encoder. Read detects
// the book type (or takes the BookType hint), decides the partial-parse
// Stage once, hands both to the decoder and then enforces the stage and
// sheet selection on the result whatever the decoder did:
//
//	reg := codec.NewRegistry()
//	reg.Register(format.CSV, csvDecoder, csvEncoder)
//	wb, err := reg.Read(data, codec.DefaultParseOptions())
package codec

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tsawler/cellar/format"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// SheetRef selects a sheet by name or by zero-based index.
type SheetRef struct {
	Name    string
	Index   int
	ByIndex bool
}

// SheetName selects a sheet by name.
func SheetName(name string) SheetRef {
	return SheetRef{Name: name}
}

// SheetIndex selects a sheet by position.
func SheetIndex(i int) SheetRef {
	return SheetRef{Index: i, ByIndex: true}
}

func (s SheetRef) String() string {
	if s.ByIndex {
		return "#" + strconv.Itoa(s.Index)
	}
	return s.Name
}

// ParseOptions controls reading.
type ParseOptions struct {
	// BookType forces a format by name ("csv", "xlsx"). Empty means detect.
	BookType string `validate:"omitempty,booktype"`
	// Codepage is the Windows code page for legacy text and BIFF files.
	// Zero means the format's default.
	Codepage int `validate:"gte=0"`

	CellFormula bool // keep formulas
	CellHTML    bool // keep rich text as HTML
	CellNF      bool // keep number format codes
	CellText    bool // compute formatted text
	CellDates   bool // store dates as Date values
	CellStyles  bool // keep style information
	DateNF      string

	// SheetRows caps the rows read per sheet. Zero means no cap.
	SheetRows int `validate:"gte=0"`

	BookProps  bool // read properties only
	BookSheets bool // read sheet names only
	BookVBA    bool // keep the VBA project
	BookDeps   bool // keep the calculation chain
	BookFiles  bool // keep raw container entries

	// Sheets selects which sheets to parse. Empty means all.
	Sheets []SheetRef

	Raw        bool // skip value typing in text formats
	Dense      bool // use the dense worksheet layout
	Password   string
	WTF        bool // fail on unsupported features
	SheetStubs bool // keep empty cells as stubs

	// Logger receives warnings about skipped content. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// DefaultParseOptions returns options that keep formulas, HTML and text.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		CellFormula: true,
		CellHTML:    true,
		CellText:    true,
	}
}

// Log returns the configured logger.
func (o ParseOptions) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Wants reports whether the sheet at index with the given name is selected.
func (o ParseOptions) Wants(name string, index int) bool {
	if len(o.Sheets) == 0 {
		return true
	}
	for _, s := range o.Sheets {
		if s.ByIndex && s.Index == index {
			return true
		}
		if !s.ByIndex && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// NewSheet returns an empty worksheet in the configured layout.
func (o ParseOptions) NewSheet() *model.Worksheet {
	if o.Dense {
		return model.NewDenseWorksheet()
	}
	return model.NewWorksheet()
}

// WriteOptions controls writing.
type WriteOptions struct {
	// BookType selects the output format. Empty means xlsx.
	BookType string `validate:"omitempty,booktype"`
	// Sheet names the sheet written by single-sheet formats. Empty means
	// the first sheet.
	Sheet string

	BookSST     bool // use a shared string table
	Compression bool
	IgnoreEC    bool // suppress "number stored as text" warnings
	// Props overrides the workbook properties.
	Props    *model.Properties
	Password string
	BookVBA  bool
	// CellDates writes Date values as dates rather than serials.
	CellDates  bool
	CellStyles bool
	WTF        bool
	Codepage   int `validate:"gte=0"`

	Logger *slog.Logger
}

// DefaultWriteOptions returns options writing xlsx.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{BookType: "xlsx", Compression: true}
}

// Log returns the configured logger.
func (o WriteOptions) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Format resolves BookType.
func (o WriteOptions) Format() (format.Format, error) {
	if o.BookType == "" {
		return format.XLSX, nil
	}
	f, ok := format.Parse(o.BookType)
	if !ok {
		return format.Unknown, sheeterr.New(sheeterr.UnsupportedFormat, "write", "unknown book type %q", o.BookType)
	}
	return f, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func optionValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("booktype", func(fl validator.FieldLevel) bool {
			_, ok := format.Parse(fl.Field().String())
			return ok
		})
	})
	return validate
}

// checkOptions validates an options struct, reporting failures as
// InvalidOption except for unknown book types, which are UnsupportedFormat.
func checkOptions(op string, opts any) error {
	err := optionValidator().Struct(opts)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return sheeterr.Wrap(sheeterr.InvalidOption, op, err)
	}
	fe := verrs[0]
	if fe.Tag() == "booktype" {
		return sheeterr.New(sheeterr.UnsupportedFormat, op, "unknown book type %q", fe.Value())
	}
	return sheeterr.New(sheeterr.InvalidOption, op, "%s fails %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
}
