// Package delimited reads and writes the plain text book types: CSV, TXT
// (tab separated, UTF-16 when written) and PRN (space aligned columns).
//
// Every text book holds a single sheet named "Sheet1".
//
// # Reading
//
// Input is decoded from its byte order mark (UTF-8, UTF-16LE, UTF-16BE),
// else from ParseOptions.Codepage, else as UTF-8 with a Windows-1252
// fallback when the bytes are not valid UTF-8. The field separator comes
// from a leading "sep=" line when present and is otherwise guessed from
// the first record.
//
// Fields are typed unless ParseOptions.Raw is set:
//
//	TRUE / FALSE       -> Bool
//	1,234.5  $12  50%  -> Number
//	2024-03-01         -> Date (or a serial with a date format)
//	#N/A  #DIV/0!      -> ErrorCode
//	=SUM(A1:A3)        -> formula, when CellFormula is set
//
// # Writing
//
// CSV is written as UTF-8 with a byte order mark, or in
// WriteOptions.Codepage when one is given. TXT is UTF-16LE with a byte
// order mark. PRN pads every column to a fixed width.
package delimited
