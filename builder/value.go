package builder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"time"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

var timeType = reflect.TypeOf(time.Time{})

// toCell converts one input value to a cell. skip is true when nothing
// should be written at the address.
func toCell(op string, addr address.Cell, v any, opts Options) (c *model.Cell, skip bool, err error) {
	switch v := v.(type) {
	case nil:
		return nullCell(opts)
	case *model.Cell:
		if v == nil {
			return nullCell(opts)
		}
		return v.Clone(), false, nil
	case model.Cell:
		return v.Clone(), false, nil
	case model.Date:
		return dateCell(v.Time(), opts), false, nil
	case model.Value:
		return model.NewCell(v), false, nil
	case time.Time:
		return dateCell(v, opts), false, nil
	case *time.Time:
		if v == nil {
			return nullCell(opts)
		}
		return dateCell(*v, opts), false, nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return numberCell(f), false, nil
		}
		return model.NewCell(model.String(v.String())), false, nil
	case []byte:
		return model.NewCell(model.String(v)), false, nil
	case error:
		return coerce(op, addr, v, v.Error(), opts)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nullCell(opts)
		}
		rv = rv.Elem()
	}
	if rv.Type() == timeType {
		return dateCell(rv.Interface().(time.Time), opts), false, nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return model.NewCell(model.Bool(rv.Bool())), false, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numberCell(float64(rv.Int())), false, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return numberCell(float64(rv.Uint())), false, nil
	case reflect.Float32, reflect.Float64:
		return numberCell(rv.Float()), false, nil
	case reflect.String:
		return model.NewCell(model.String(rv.String())), false, nil
	}

	if s, ok := v.(fmt.Stringer); ok {
		return coerce(op, addr, v, s.String(), opts)
	}
	return coerce(op, addr, v, fmt.Sprint(v), opts)
}

// coerce writes text for a value with no cell representation, or fails in
// strict mode.
func coerce(op string, addr address.Cell, v any, text string, opts Options) (*model.Cell, bool, error) {
	if opts.Strict {
		return nil, false, sheeterr.New(sheeterr.UnsupportedValue, op, "%T at %s", v, addr)
	}
	opts.logger().Warn("coercing unsupported value to text",
		slog.String("op", op),
		slog.String("cell", addr.String()),
		slog.String("type", fmt.Sprintf("%T", v)))
	return model.NewCell(model.String(text)), false, nil
}

func nullCell(opts Options) (*model.Cell, bool, error) {
	switch {
	case opts.NullError:
		return model.NewCell(model.ErrorNull), false, nil
	case opts.SheetStubs:
		return model.NewCell(model.Stub{}), false, nil
	default:
		return nil, true, nil
	}
}

func numberCell(f float64) *model.Cell {
	switch {
	case math.IsNaN(f):
		return model.NewCell(model.ErrorNum)
	case math.IsInf(f, 0):
		return model.NewCell(model.ErrorDiv0)
	}
	return model.NewCell(model.Number(f))
}

func dateCell(t time.Time, opts Options) *model.Cell {
	var c *model.Cell
	if opts.CellDates {
		c = model.NewCell(model.Date(t))
	} else {
		c = model.NewCell(model.Number(numfmt.TimeToSerial(t, opts.Date1904)))
	}
	if opts.DateNF != "" {
		c.NumFmt = model.NumberFormat{Code: opts.DateNF}
	} else {
		c.NumFmt = model.NumberFormat{ID: 14}
	}
	return c
}
