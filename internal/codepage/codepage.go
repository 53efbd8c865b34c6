package codepage

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// Default is the page assumed when none is given.
const Default = 1252

// Unicode page numbers.
const (
	UTF16LE = 1200
	UTF16BE = 1201
	UTF8    = 65001
)

var pages = map[int]encoding.Encoding{
	437:     charmap.CodePage437,
	850:     charmap.CodePage850,
	852:     charmap.CodePage852,
	855:     charmap.CodePage855,
	858:     charmap.CodePage858,
	860:     charmap.CodePage860,
	862:     charmap.CodePage862,
	863:     charmap.CodePage863,
	865:     charmap.CodePage865,
	866:     charmap.CodePage866,
	874:     charmap.Windows874,
	932:     japanese.ShiftJIS,
	936:     simplifiedchinese.GBK,
	949:     korean.EUCKR,
	950:     traditionalchinese.Big5,
	1250:    charmap.Windows1250,
	1251:    charmap.Windows1251,
	1252:    charmap.Windows1252,
	1253:    charmap.Windows1253,
	1254:    charmap.Windows1254,
	1255:    charmap.Windows1255,
	1256:    charmap.Windows1256,
	1257:    charmap.Windows1257,
	1258:    charmap.Windows1258,
	10000:   charmap.Macintosh,
	10007:   charmap.MacintoshCyrillic,
	20866:   charmap.KOI8R,
	21866:   charmap.KOI8U,
	28591:   charmap.ISO8859_1,
	28592:   charmap.ISO8859_2,
	28593:   charmap.ISO8859_3,
	28594:   charmap.ISO8859_4,
	28595:   charmap.ISO8859_5,
	28596:   charmap.ISO8859_6,
	28597:   charmap.ISO8859_7,
	28598:   charmap.ISO8859_8,
	28599:   charmap.ISO8859_9,
	28603:   charmap.ISO8859_13,
	28605:   charmap.ISO8859_15,
	UTF16LE: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	UTF16BE: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	UTF8:    unicode.UTF8,
	// Excel writes 32768 for Macintosh Roman and 32769 for Windows 1252 in
	// some BIFF5 files.
	32768: charmap.Macintosh,
	32769: charmap.Windows1252,
}

// Lookup returns the encoding of page cp. Zero selects Default.
func Lookup(cp int) (encoding.Encoding, bool) {
	if cp == 0 {
		cp = Default
	}
	enc, ok := pages[cp]
	return enc, ok
}

// Supported reports whether cp names a known page.
func Supported(cp int) bool {
	_, ok := Lookup(cp)
	return ok
}

// Decode converts b from page cp to UTF-8.
func Decode(cp int, b []byte) (string, error) {
	enc, ok := Lookup(cp)
	if !ok {
		return "", fmt.Errorf("unsupported code page %d", cp)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding code page %d: %w", cp, err)
	}
	return string(out), nil
}

// Encode converts s to page cp. Characters the page cannot represent are
// replaced with the page's substitute character.
func Encode(cp int, s string) ([]byte, error) {
	enc, ok := Lookup(cp)
	if !ok {
		return nil, fmt.Errorf("unsupported code page %d", cp)
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding code page %d: %w", cp, err)
	}
	return out, nil
}
