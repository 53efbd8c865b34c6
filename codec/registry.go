package codec

import (
	"log/slog"

	"github.com/tsawler/cellar/format"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// DecodeRequest is what a decoder receives besides the bytes.
type DecodeRequest struct {
	Options ParseOptions
	Stage   Stage
}

// Decoder turns serialized bytes into a workbook.
type Decoder interface {
	Decode(data []byte, req DecodeRequest) (*model.Workbook, error)
}

// Encoder turns a workbook into serialized bytes.
type Encoder interface {
	Encode(wb *model.Workbook, opts WriteOptions) ([]byte, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(data []byte, req DecodeRequest) (*model.Workbook, error)

// Decode calls f.
func (f DecoderFunc) Decode(data []byte, req DecodeRequest) (*model.Workbook, error) {
	return f(data, req)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(wb *model.Workbook, opts WriteOptions) ([]byte, error)

// Encode calls f.
func (f EncoderFunc) Encode(wb *model.Workbook, opts WriteOptions) ([]byte, error) {
	return f(wb, opts)
}

// Registry maps book types to codecs. It is not safe for concurrent
// registration; register everything before reading.
type Registry struct {
	decoders map[format.Format]Decoder
	encoders map[format.Format]Encoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[format.Format]Decoder),
		encoders: make(map[format.Format]Encoder),
	}
}

// Register installs a decoder and encoder for f. Either may be nil.
func (r *Registry) Register(f format.Format, dec Decoder, enc Encoder) {
	if dec != nil {
		r.decoders[f] = dec
	}
	if enc != nil {
		r.encoders[f] = enc
	}
}

// Decoder returns the decoder for f, or nil.
func (r *Registry) Decoder(f format.Format) Decoder {
	return r.decoders[f]
}

// Encoder returns the encoder for f, or nil.
func (r *Registry) Encoder(f format.Format) Encoder {
	return r.encoders[f]
}

// Detect returns the book type of data, honoring the BookType hint.
func Detect(data []byte, opts ParseOptions) (format.Format, error) {
	if opts.BookType != "" {
		f, ok := format.Parse(opts.BookType)
		if !ok {
			return format.Unknown, sheeterr.New(sheeterr.UnsupportedFormat, "read", "unknown book type %q", opts.BookType)
		}
		return f, nil
	}
	f, err := format.Sniff(data)
	if err != nil {
		return format.Unknown, sheeterr.Wrap(sheeterr.TruncatedInput, "read", err)
	}
	if f == format.Unknown {
		return f, sheeterr.New(sheeterr.UnsupportedFormat, "read", "unrecognized content")
	}
	return f, nil
}

// Read decodes data into a workbook.
func (r *Registry) Read(data []byte, opts ParseOptions) (*model.Workbook, error) {
	if err := checkOptions("read", opts); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, sheeterr.New(sheeterr.TruncatedInput, "read", "empty input")
	}

	f, err := Detect(data, opts)
	if err != nil {
		return nil, err
	}
	dec := r.decoders[f]
	if dec == nil {
		return nil, sheeterr.New(sheeterr.UnsupportedFormat, "read", "no decoder for %s", f)
	}

	stage := PolicyFor(opts)
	wb, err := dec.Decode(data, DecodeRequest{Options: opts, Stage: stage})
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, "read", err)
	}
	if wb == nil {
		return nil, sheeterr.New(sheeterr.TruncatedInput, "read", "%s decoder returned no workbook", f)
	}
	if wb.BookType == "" {
		wb.BookType = f.String()
	}
	Enforce(wb, opts, stage)

	opts.Log().Debug("read workbook",
		slog.String("type", wb.BookType),
		slog.String("stage", stage.String()),
		slog.Int("sheets", len(wb.SheetNames)))
	return wb, nil
}

// Enforce applies the stage and sheet selection to a decoded workbook.
// Sheet names always survive; sheet contents are dropped for the name and
// property stages and for unselected sheets, and rows past SheetRows are
// cut.
func Enforce(wb *model.Workbook, opts ParseOptions, stage Stage) {
	if wb.Sheets == nil {
		wb.Sheets = make(map[string]*model.Worksheet)
	}
	if !stage.ParsesCells() {
		clear(wb.Sheets)
		return
	}
	for i, name := range wb.SheetNames {
		ws, ok := wb.Sheets[name]
		if !ok {
			continue
		}
		if !opts.Wants(name, i) {
			delete(wb.Sheets, name)
			continue
		}
		if stage == StageRows && ws != nil {
			ws.TruncateRows(opts.SheetRows)
		}
	}
	// Entries not listed in SheetNames do not belong to the workbook.
	for name := range wb.Sheets {
		if wb.SheetIndex(name) < 0 {
			delete(wb.Sheets, name)
		}
	}
}

// Write encodes wb in the requested book type.
func (r *Registry) Write(wb *model.Workbook, opts WriteOptions) ([]byte, error) {
	if err := checkOptions("write", opts); err != nil {
		return nil, err
	}
	if wb == nil || len(wb.SheetNames) == 0 {
		return nil, sheeterr.New(sheeterr.EmptyWorkbook, "write", "workbook has no sheets")
	}
	f, err := opts.Format()
	if err != nil {
		return nil, err
	}
	enc := r.encoders[f]
	if enc == nil {
		return nil, sheeterr.New(sheeterr.UnsupportedFormat, "write", "no encoder for %s", f)
	}
	out, err := enc.Encode(wb, opts)
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.Unknown, "write", err)
	}
	return out, nil
}

// ResolveSheet picks the sheet written by single-sheet formats: the named
// one, or the first when name is empty.
func ResolveSheet(wb *model.Workbook, name string) (string, *model.Worksheet, error) {
	if wb == nil || len(wb.SheetNames) == 0 {
		return "", nil, sheeterr.New(sheeterr.EmptyWorkbook, "resolve_sheet", "workbook has no sheets")
	}
	if name == "" {
		name = wb.SheetNames[0]
	}
	i := wb.SheetIndex(name)
	if i < 0 {
		return "", nil, sheeterr.New(sheeterr.SheetNotFound, "resolve_sheet", "no sheet named %q", name)
	}
	name = wb.SheetNames[i]
	ws := wb.Sheets[name]
	if ws == nil {
		ws = model.NewWorksheet()
	}
	return name, ws, nil
}
