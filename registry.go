package cellar

import (
	"fmt"
	"os"
	"sync"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/delimited"
	"github.com/tsawler/cellar/format"
	"github.com/tsawler/cellar/htmldoc"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/ods"
	"github.com/tsawler/cellar/sheeterr"
	"github.com/tsawler/cellar/textfmt"
	"github.com/tsawler/cellar/xlml"
	"github.com/tsawler/cellar/xls"
	"github.com/tsawler/cellar/xlsx"
)

var (
	registryOnce sync.Once
	registry     *codec.Registry
)

// defaultRegistry returns the registry holding every bundled codec. XLSB
// and BIFF2 have no codec and report UnsupportedFormat.
func defaultRegistry() *codec.Registry {
	registryOnce.Do(func() {
		registry = NewRegistry()
	})
	return registry
}

// NewRegistry returns a registry with every bundled codec installed. Use it
// as a starting point when adding or replacing codecs.
func NewRegistry() *codec.Registry {
	r := codec.NewRegistry()
	r.Register(format.XLSX, xlsx.Decoder{}, xlsx.Encoder{})
	r.Register(format.XLSM, xlsx.Decoder{}, xlsx.Encoder{})
	r.Register(format.XLS, xls.Decoder{}, nil)
	r.Register(format.BIFF5, xls.Decoder{}, nil)
	r.Register(format.XLA, xls.Decoder{}, nil)
	r.Register(format.ODS, ods.Decoder{}, ods.Encoder{})
	r.Register(format.FODS, ods.Decoder{}, ods.FlatEncoder{})
	r.Register(format.XLML, xlml.Decoder{}, xlml.Encoder{})
	r.Register(format.HTML, htmldoc.Decoder{}, htmldoc.Encoder{})
	r.Register(format.CSV, delimited.Decoder{}, delimited.CSVEncoder{})
	r.Register(format.TXT, delimited.Decoder{}, delimited.TXTEncoder{})
	r.Register(format.PRN, delimited.PRNDecoder{}, delimited.PRNEncoder{})
	r.Register(format.SYLK, textfmt.SYLKDecoder{}, textfmt.SYLKEncoder{})
	r.Register(format.DIF, textfmt.DIFDecoder{}, textfmt.DIFEncoder{})
	r.Register(format.ETH, nil, textfmt.ETHEncoder{})
	r.Register(format.RTF, nil, textfmt.RTFEncoder{})
	return r
}

// Read decodes a workbook from memory. The book type is detected from the
// content unless opts.BookType is set. Without options, formulas, rich text
// and formatted text are kept.
func Read(data []byte, opts ...codec.ParseOptions) (*model.Workbook, error) {
	o := codec.DefaultParseOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	return defaultRegistry().Read(data, o)
}

// ReadFile reads and decodes the named file.
func ReadFile(path string, opts ...codec.ParseOptions) (*model.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return Read(data, opts...)
}

// Write encodes wb. An empty opts.BookType writes xlsx.
func Write(wb *model.Workbook, opts codec.WriteOptions) ([]byte, error) {
	return defaultRegistry().Write(wb, opts)
}

// WriteFile encodes wb and writes it to path. When opts.BookType is empty
// the book type follows the file extension.
func WriteFile(wb *model.Workbook, path string, opts codec.WriteOptions) error {
	if opts.BookType == "" {
		f := format.Detect(path)
		if f == format.Unknown {
			return sheeterr.New(sheeterr.UnsupportedFormat, "write_file", "cannot tell book type of %q", path)
		}
		opts.BookType = f.String()
	}
	data, err := Write(wb, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
