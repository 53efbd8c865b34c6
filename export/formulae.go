package export

import (
	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
)

// SheetToFormulae lists every cell as "A1=content" in row-major order.
// Formula cells give their formula, and array formula anchors are keyed by
// the whole range ("A1:B2=..."); cells inside an array range are omitted.
// Strings are prefixed with a single quote, numbers are raw and booleans are
// TRUE or FALSE.
func SheetToFormulae(ws *model.Worksheet) ([]string, error) {
	if ws == nil {
		return nil, nilSheet("sheet_to_formulae")
	}
	out := []string{}
	err := Walk(ws, WalkOptions{}, func(addr address.Cell, c *model.Cell) error {
		if c == nil {
			return nil
		}
		key := addr.String()
		if c.ArrayRange != nil {
			if c.Formula == "" {
				return nil
			}
			key = address.EncodeRange(*c.ArrayRange)
		}
		if c.Formula != "" {
			out = append(out, key+"="+c.Formula)
			return nil
		}

		var val string
		switch v := c.Value.(type) {
		case nil, model.Stub:
			return nil
		case model.Number:
			val = rawNumber(float64(v))
		case model.Bool:
			val = "FALSE"
			if v {
				val = "TRUE"
			}
		case model.String:
			val = "'" + string(v)
			if c.Text != "" {
				val = "'" + c.Text
			}
		default:
			val = numfmt.FormatCell(c, numfmt.Options{})
			if c.Text != "" {
				val = "'" + c.Text
			}
		}
		out = append(out, key+"="+val)
		return nil
	})
	return out, err
}
