package builder

import (
	"github.com/tsawler/cellar/model"
)

// AOAToSheet builds a new worksheet from rows of values.
func AOAToSheet(rows [][]any, opts Options) (*model.Worksheet, error) {
	ws := newSheet(opts)
	if err := AddAOA(ws, rows, opts); err != nil {
		return nil, err
	}
	return ws, nil
}

// AddAOA writes rows into ws starting at opts.Origin. Cells inside the
// written block are replaced, cells outside it are left alone, and the
// sheet's range grows to cover the block. Nil values leave any existing cell
// in place unless SheetStubs or NullError is set.
func AddAOA(ws *model.Worksheet, rows [][]any, opts Options) error {
	ref, hasRef := ws.Ref()
	origin, err := opts.Origin.resolve(ref, hasRef)
	if err != nil {
		return err
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	return addRows(ws, "sheet_add_aoa", rows, origin, width, opts)
}

func newSheet(opts Options) *model.Worksheet {
	if opts.Dense {
		return model.NewDenseWorksheet()
	}
	return model.NewWorksheet()
}
