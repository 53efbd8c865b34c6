// Package codepage maps Windows code page numbers to text encodings.
//
// Legacy spreadsheet formats store text in the code page of the machine
// that wrote them. BIFF5 workbooks record it in a CODEPAGE record, while
// text formats rely on the caller to name it.
//
// # Usage
//
//	s, err := codepage.Decode(1252, raw)
//	b, err := codepage.Encode(1251, "Привет")
//
// # Supported Pages
//
// Single byte Windows pages 874 and 1250-1258, the DOS pages 437, 850, 852,
// 855, 858, 860, 862, 863, 865 and 866, Macintosh Roman (10000) and
// Cyrillic (10007), most ISO-8859 parts, KOI8-R/U, the East Asian pages 932,
// 936, 949 and 950, and the Unicode pages 1200 (UTF-16LE), 1201 (UTF-16BE)
// and 65001 (UTF-8).
//
// Page 1252 is the default when a page number is zero.
package codepage
