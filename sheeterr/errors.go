// Package sheeterr defines the error kinds reported by cellar.
//
// Every failure that crosses a package boundary is an *Error carrying a Kind.
// Callers test for a kind with errors.Is against the exported sentinels:
//
//	if errors.Is(err, sheeterr.ErrInvalidAddress) {
//	    // bad A1 reference
//	}
package sheeterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	// Unknown is the zero Kind, used for errors that were never classified.
	Unknown Kind = iota
	// InvalidAddress reports a malformed A1 cell or range reference.
	InvalidAddress
	// UnsupportedValue reports an input value with no cell representation.
	UnsupportedValue
	// UnsupportedFormat reports a book type with no registered codec.
	UnsupportedFormat
	// DuplicateSheetName reports a sheet name already present in the workbook.
	DuplicateSheetName
	// PasswordRequired reports an encrypted container opened without a password.
	PasswordRequired
	// DecryptionFailed reports a wrong password or a damaged encrypted container.
	DecryptionFailed
	// TruncatedInput reports input bytes that end early or are malformed.
	TruncatedInput
	// InvalidSheetName reports a sheet name Excel would reject.
	InvalidSheetName
	// InvalidOption reports a bad or contradictory option set.
	InvalidOption
	// SheetNotFound reports a lookup of a sheet the workbook does not hold.
	SheetNotFound
	// EmptyWorkbook reports a write of a workbook without sheets.
	EmptyWorkbook
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	InvalidAddress:     "invalid address",
	UnsupportedValue:   "unsupported value",
	UnsupportedFormat:  "unsupported format",
	DuplicateSheetName: "duplicate sheet name",
	PasswordRequired:   "password required",
	DecryptionFailed:   "decryption failed",
	TruncatedInput:     "truncated input",
	InvalidSheetName:   "invalid sheet name",
	InvalidOption:      "invalid option",
	SheetNotFound:      "sheet not found",
	EmptyWorkbook:      "empty workbook",
}

// String returns the human readable name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error type returned across package boundaries.
type Error struct {
	Kind Kind   // classification
	Op   string // operation that failed, e.g. "decode_cell"
	Msg  string // detail
	Err  error  // underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target without
// Op and Msg (such as the package sentinels) matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Msg == "" || t.Msg == e.Msg)
}

// Sentinels for errors.Is.
var (
	ErrInvalidAddress     = &Error{Kind: InvalidAddress}
	ErrUnsupportedValue   = &Error{Kind: UnsupportedValue}
	ErrUnsupportedFormat  = &Error{Kind: UnsupportedFormat}
	ErrDuplicateSheetName = &Error{Kind: DuplicateSheetName}
	ErrPasswordRequired   = &Error{Kind: PasswordRequired}
	ErrDecryptionFailed   = &Error{Kind: DecryptionFailed}
	ErrTruncatedInput     = &Error{Kind: TruncatedInput}
	ErrInvalidSheetName   = &Error{Kind: InvalidSheetName}
	ErrInvalidOption      = &Error{Kind: InvalidOption}
	ErrSheetNotFound      = &Error{Kind: SheetNotFound}
	ErrEmptyWorkbook      = &Error{Kind: EmptyWorkbook}
)

// New returns an *Error of the given kind with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping err. If err already
// carries a kind it is returned unchanged so the innermost classification wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
