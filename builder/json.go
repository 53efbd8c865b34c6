package builder

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

// JSONOptions controls record import. Header, HeaderLetters and HeaderIndex
// select the header mode; setting more than one is an error.
type JSONOptions struct {
	Options

	// Header lists keys in column order. Keys found in the records but not
	// listed are appended in first-seen order.
	Header []string
	// HeaderLetters treats record keys as column letters ("A", "B", ...).
	// No header row is written.
	HeaderLetters bool
	// HeaderIndex treats each record as a positional slice. No header row is
	// written.
	HeaderIndex bool
	// SkipHeader suppresses the header row.
	SkipHeader bool
}

func (o JSONOptions) validate() error {
	modes := 0
	if o.Header != nil {
		modes++
	}
	if o.HeaderLetters {
		modes++
	}
	if o.HeaderIndex {
		modes++
	}
	if modes > 1 {
		return sheeterr.New(sheeterr.InvalidOption, "json_to_sheet", "header, header letters and header index are mutually exclusive")
	}
	return nil
}

// JSONToSheet builds a new worksheet from records.
func JSONToSheet(records []any, opts JSONOptions) (*model.Worksheet, error) {
	ws := newSheet(opts.Options)
	if err := AddJSON(ws, records, opts); err != nil {
		return nil, err
	}
	return ws, nil
}

// fields is one record flattened to ordered keys and values.
type fields struct {
	keys []string
	vals map[string]any
}

// AddJSON writes records into ws starting at opts.Origin: a header row of
// keys (unless skipped) followed by one row per record.
func AddJSON(ws *model.Worksheet, records []any, opts JSONOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	ref, hasRef := ws.Ref()
	origin, err := opts.Origin.resolve(ref, hasRef)
	if err != nil {
		return err
	}

	rows := make([]fields, len(records))
	for i, rec := range records {
		f, err := flatten(rec, opts)
		if err != nil {
			return err
		}
		rows[i] = f
	}

	// Column lookup for every key.
	var header []string
	colOf := map[string]int{}
	switch {
	case opts.HeaderLetters:
		for _, f := range rows {
			for _, k := range f.keys {
				if _, ok := colOf[k]; ok {
					continue
				}
				col, err := address.DecodeCol(k)
				if err != nil {
					return err
				}
				colOf[k] = col
			}
		}
	case opts.HeaderIndex:
		for _, f := range rows {
			for _, k := range f.keys {
				if _, ok := colOf[k]; ok {
					continue
				}
				col, err := strconv.Atoi(k)
				if err == nil && col >= 0 {
					colOf[k] = col
					continue
				}
				if opts.Strict {
					return sheeterr.New(sheeterr.UnsupportedValue, "sheet_add_json", "key %q is not a column index", k)
				}
				opts.logger().Warn("skipping key that is not a column index",
					slog.String("op", "sheet_add_json"),
					slog.String("key", k))
			}
		}
	default:
		header = slices.Clone(opts.Header)
		for i, k := range header {
			colOf[k] = i
		}
		for _, f := range rows {
			for _, k := range f.keys {
				if _, ok := colOf[k]; !ok {
					colOf[k] = len(header)
					header = append(header, k)
				}
			}
		}
	}

	writeHeader := header != nil && !opts.SkipHeader
	aoa := make([][]any, 0, len(rows)+1)
	if writeHeader {
		hdr := make([]any, len(header))
		for i, k := range header {
			hdr[i] = k
		}
		aoa = append(aoa, hdr)
	}

	width := len(header)
	for _, c := range colOf {
		width = max(width, c+1)
	}
	// Missing fields follow the nil rules when stubs or null errors are on.
	var missing any = absent{}
	if opts.SheetStubs || opts.NullError {
		missing = nil
	}
	for _, f := range rows {
		row := make([]any, width)
		for i := range row {
			row[i] = missing
		}
		for _, k := range f.keys {
			if col, ok := colOf[k]; ok {
				row[col] = f.vals[k]
			}
		}
		aoa = append(aoa, row)
	}

	return addRows(ws, "sheet_add_json", aoa, origin, width, opts.Options)
}

// absent marks a key the record does not have. The existing cell is kept.
type absent struct{}

// addRows writes aoa at origin and grows the range to cover len(aoa) x width
// cells. Every value is converted before the sheet is touched so a strict
// mode failure leaves it unchanged.
func addRows(ws *model.Worksheet, op string, aoa [][]any, origin address.Cell, width int, opts Options) error {
	type pending struct {
		addr address.Cell
		cell *model.Cell
	}
	var out []pending
	for r, row := range aoa {
		for c, v := range row {
			if _, ok := v.(absent); ok {
				continue
			}
			addr := origin.Offset(r, c)
			cell, skip, err := toCell(op, addr, v, opts)
			if err != nil {
				return err
			}
			if !skip {
				out = append(out, pending{addr, cell})
			}
		}
	}
	for _, p := range out {
		ws.SetCell(p.addr, p.cell)
	}
	if len(aoa) > 0 && width > 0 {
		ws.ExtendRef(address.NewRange(origin, origin.Offset(len(aoa)-1, width-1)))
	}
	return nil
}

// flatten turns one record into ordered fields.
func flatten(rec any, opts JSONOptions) (fields, error) {
	f := fields{vals: map[string]any{}}
	add := func(k string, v any) {
		if _, ok := f.vals[k]; !ok {
			f.keys = append(f.keys, k)
		}
		f.vals[k] = v
	}

	switch r := rec.(type) {
	case *model.Record:
		if r != nil {
			for k, v := range r.All() {
				add(k, v)
			}
		}
		return f, nil
	case model.Record:
		for k, v := range r.All() {
			add(k, v)
		}
		return f, nil
	case map[string]any:
		for _, k := range slices.Sorted(mapKeys(r)) {
			add(k, r[k])
		}
		return f, nil
	}

	rv := reflect.ValueOf(rec)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return f, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return f, nil
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if opts.HeaderIndex {
			for i := 0; i < rv.Len(); i++ {
				add(strconv.Itoa(i), rv.Index(i).Interface())
			}
			return f, nil
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			keys := rv.MapKeys()
			slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })
			for _, k := range keys {
				add(k.String(), rv.MapIndex(k).Interface())
			}
			return f, nil
		}
	case reflect.Struct:
		structFields(rv, add)
		return f, nil
	}

	if opts.Strict {
		return f, sheeterr.New(sheeterr.UnsupportedValue, "json_to_sheet", "record of type %T", rec)
	}
	opts.logger().Warn("skipping record with no keys",
		slog.String("op", "json_to_sheet"),
		slog.String("type", fmt.Sprintf("%T", rec)))
	return f, nil
}

// structFields walks exported fields in declaration order, honoring json
// tag names and "-".
func structFields(rv reflect.Value, add func(string, any)) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		add(name, rv.Field(i).Interface())
	}
}

func mapKeys(m map[string]any) func(func(string) bool) {
	return func(yield func(string) bool) {
		for k := range m {
			if !yield(k) {
				return
			}
		}
	}
}
