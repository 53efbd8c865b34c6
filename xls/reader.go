package xls

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const opDecode = "xls_decode"

var cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Decoder reads BIFF5 and BIFF8 workbooks.
type Decoder struct{}

// Decode implements codec.Decoder.
func (Decoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return Decode(data, req)
}

// Decode parses the Workbook (BIFF8) or Book (BIFF5) stream of an OLE2
// compound file. Formulas are not decompiled; formula cells carry their
// cached results.
func Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	if !bytes.HasPrefix(data, cfbMagic) {
		return nil, sheeterr.New(sheeterr.TruncatedInput, opDecode, "not an OLE2 compound file")
	}
	streams, err := readStreams(data)
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
	}
	stream, ok := streams["Workbook"]
	if !ok {
		stream, ok = streams["Book"]
	}
	if !ok {
		return nil, sheeterr.New(sheeterr.TruncatedInput, opDecode, "no Workbook or Book stream")
	}

	g, err := parseGlobals(stream)
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, fmt.Errorf("parsing globals: %w", err))
	}
	if g.encrypted {
		if req.Options.Password == "" {
			return nil, sheeterr.New(sheeterr.PasswordRequired, opDecode, "workbook is encrypted")
		}
		return nil, sheeterr.New(sheeterr.UnsupportedFormat, opDecode, "encrypted BIFF workbooks are not supported")
	}

	r := &reader{
		data:    data,
		stream:  stream,
		streams: streams,
		g:       g,
		opts:    req.Options,
		stage:   req.Stage,
		log:     req.Options.Log().With("codec", "xls"),
	}
	return r.read()
}

// readStreams collects the streams the decoder needs from the compound file.
func readStreams(data []byte) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening compound file: %w", err)
	}
	streams := make(map[string][]byte)
	for {
		entry, err := doc.Next()
		if errors.Is(err, io.EOF) {
			return streams, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing compound file: %w", err)
		}
		name := entry.Name
		if name == "WORKBOOK" {
			name = "Workbook"
		}
		switch name {
		case "Workbook", "Book", summaryStream, docSummaryStream:
			if _, seen := streams[name]; seen {
				continue
			}
			b, err := io.ReadAll(entry)
			if err != nil {
				return nil, fmt.Errorf("reading %s stream: %w", entry.Name, err)
			}
			streams[name] = b
		}
	}
}

type reader struct {
	data    []byte
	stream  []byte
	streams map[string][]byte
	g       *globals
	opts    codec.ParseOptions
	stage   codec.Stage
	log     *slog.Logger

	book    *xls.WorkBook
	bookErr error
	opened  bool
}

func (r *reader) read() (*model.Workbook, error) {
	wb := model.NewWorkbook()
	wb.BookType = "xls"
	if r.g.version == biff5 {
		wb.BookType = "biff5"
	}
	wb.Settings = &model.Settings{Date1904: r.g.date1904}

	var sheets []boundSheet
	for _, bs := range r.g.sheets {
		if bs.module {
			continue
		}
		sheets = append(sheets, bs)
		wb.SheetNames = append(wb.SheetNames, bs.name)
		wb.Settings.Sheets = append(wb.Settings.Sheets, model.SheetProps{Name: bs.name, Hidden: bs.state})
	}
	if r.stage == codec.StageSheetNames {
		return wb, nil
	}

	props, custom, err := readProperties(r.streams)
	if err != nil {
		r.log.Warn("skipping unreadable document properties", "error", err)
	}
	wb.Props, wb.Custprops = props, custom
	if r.g.user != "" {
		if wb.Props == nil {
			wb.Props = &model.Properties{}
		}
		if wb.Props.LastAuthor == "" {
			wb.Props.LastAuthor = r.g.user
		}
	}
	if !r.stage.ParsesCells() {
		return wb, nil
	}

	limit := 0
	if r.stage == codec.StageRows {
		limit = r.opts.SheetRows
	}
	rtl := false
	for i, bs := range sheets {
		if !r.opts.Wants(bs.name, i) {
			continue
		}
		ws := r.opts.NewSheet()
		ws.Kind = bs.kind
		if bs.kind != model.KindChart {
			p := &sheetParser{
				g:      r.g,
				opts:   r.opts,
				limit:  limit,
				ws:     ws,
				log:    r.log.With("sheet", bs.name),
				shared: bookStrings{r: r, index: bs.record},
			}
			if err := p.parse(r.stream, bs.offset); err != nil {
				var se *sheeterr.Error
				if errors.As(err, &se) {
					return nil, err
				}
				return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, fmt.Errorf("sheet %q: %w", bs.name, err))
			}
			rtl = rtl || p.rtl
		}
		wb.Sheets[bs.name] = ws
	}
	wb.Settings.Views = []model.View{{RTL: rtl}}
	return wb, nil
}

// sharedBook opens the workbook with extrame/xls, which owns the shared
// string table. It is opened on the first LABELSST cell, so workbooks
// with inline strings never pay for it. Malformed containers can panic
// inside it.
func (r *reader) sharedBook() (*xls.WorkBook, error) {
	if r.opened {
		return r.book, r.bookErr
	}
	r.opened = true
	r.book, r.bookErr = openBook(r.data)
	if r.bookErr != nil {
		r.log.Warn("shared strings unavailable", "error", r.bookErr)
	}
	return r.book, r.bookErr
}

func openBook(data []byte) (book *xls.WorkBook, err error) {
	defer func() {
		if p := recover(); p != nil {
			book, err = nil, fmt.Errorf("reading shared strings: %v", p)
		}
	}()
	book, err = xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("reading shared strings: %w", err)
	}
	if book == nil {
		return nil, fmt.Errorf("no Workbook or Book stream")
	}
	return book, nil
}

// bookStrings resolves LABELSST cells through the extrame/xls sheet at
// the same BOUNDSHEET position.
type bookStrings struct {
	r     *reader
	index int
}

func (b bookStrings) text(row, col int) (s string, ok bool) {
	book, err := b.r.sharedBook()
	if err != nil {
		return "", false
	}
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	ws := book.GetSheet(b.index)
	if ws == nil {
		return "", false
	}
	return ws.Row(row).Col(col), true
}
