// Package model provides the in-memory representation of spreadsheet
// workbooks.
//
// Every codec produces these types when reading and consumes them when
// writing, and the builder and export packages convert between them and plain
// Go data.
//
// # Workbook Structure
//
// A [Workbook] holds an ordered list of sheet names, the [Worksheet] for each
// name, document properties and workbook-level [Settings]:
//
//	wb := model.NewWorkbook()
//	name, err := wb.AppendSheet(model.NewWorksheet(), "Data")
//
// # Cells
//
// A [Cell] wraps a [Value], the closed set of Excel data types:
//
//   - [Bool] - TRUE/FALSE ('b')
//   - [Number] - IEEE754 double ('n')
//   - [ErrorCode] - #DIV/0!, #N/A and friends ('e')
//   - [String] - text ('s')
//   - [Date] - a date/time stored as a date ('d')
//   - [Stub] - an explicitly empty cell ('z')
//
// Consumers switch on the concrete type:
//
//	switch v := cell.Value.(type) {
//	case model.Number:
//	    total += float64(v)
//	case model.String:
//	    label = string(v)
//	}
//
// # Worksheets
//
// A [Worksheet] keeps its cells in either a sparse map or a dense row slice and
// carries its structural metadata (bounding range, column and row info,
// merges, protection, auto filter, margins) in typed fields. The bounding
// range always covers every stored cell.
//
// # Records
//
// [Record] is an insertion-ordered key/value row used when converting
// between worksheets and lists of objects.
package model
