package delimited

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
)

// thousands matches numbers grouped with commas, such as 1,234,567.89.
var thousands = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// dateLayouts are tried in order when a field looks like a date.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06",
	"2006/01/02",
	"2-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// TypedCell turns one text field into a cell, recognizing booleans, error
// codes, numbers and dates. ok is false for an empty field that should not
// produce a cell.
func TypedCell(field string, opts codec.ParseOptions) (*model.Cell, bool) {
	if field == "" {
		if opts.SheetStubs {
			return model.NewCell(model.Stub{}), true
		}
		return nil, false
	}
	if opts.Raw {
		return model.NewCell(model.String(field)), true
	}

	var c *model.Cell
	switch {
	case opts.CellFormula && len(field) > 1 && field[0] == '=':
		c = &model.Cell{Formula: field[1:]}
	case strings.EqualFold(field, "true"):
		c = model.NewCell(model.Bool(true))
	case strings.EqualFold(field, "false"):
		c = model.NewCell(model.Bool(false))
	default:
		if e, ok := model.ParseErrorCode(field); ok {
			c = model.NewCell(e)
		} else if f, ok := fuzzyNumber(field); ok {
			c = model.NewCell(model.Number(f))
		} else if t, ok := fuzzyDate(field); ok {
			c = dateCell(t, opts)
		} else {
			c = model.NewCell(model.String(field))
		}
	}
	if opts.CellText && c.Formula == "" {
		c.Text = field
	}
	return c, true
}

// fuzzyNumber parses numbers the way a spreadsheet accepts typed input:
// surrounding spaces, a leading currency sign, thousands separators,
// accounting parentheses and a trailing percent sign.
func fuzzyNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		scale = 0.01
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	if thousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" || strings.ContainsAny(s, "_xXpP") || strings.EqualFold(s, "inf") ||
		strings.EqualFold(s, "infinity") || strings.EqualFold(s, "nan") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f * scale, true
}

func fuzzyDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func dateCell(t time.Time, opts codec.ParseOptions) *model.Cell {
	var c *model.Cell
	if opts.CellDates {
		c = model.NewCell(model.Date(t))
	} else {
		c = model.NewCell(model.Number(numfmt.TimeToSerial(t, false)))
	}
	if opts.DateNF != "" {
		c.NumFmt = model.NumberFormat{Code: opts.DateNF}
	} else {
		c.NumFmt = model.NumberFormat{ID: 14}
	}
	return c
}
