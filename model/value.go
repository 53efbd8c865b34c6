package model

import (
	"strconv"
	"time"
)

// CellType is the one-letter Excel data type code of a cell.
type CellType byte

const (
	TypeBool   CellType = 'b'
	TypeNumber CellType = 'n'
	TypeError  CellType = 'e'
	TypeString CellType = 's'
	TypeDate   CellType = 'd'
	TypeStub   CellType = 'z'
)

func (t CellType) String() string {
	return string(rune(t))
}

// Value is the typed content of a cell. The set of implementations is
// closed: Bool, Number, ErrorCode, String, Date and Stub.
type Value interface {
	Type() CellType
	isValue()
}

// Bool is a boolean cell value.
type Bool bool

// Number is a numeric cell value.
type Number float64

// String is a text cell value.
type String string

// Date is a date/time cell value.
type Date time.Time

// Stub marks a cell that exists but holds no value.
type Stub struct{}

func (Bool) Type() CellType      { return TypeBool }
func (Number) Type() CellType    { return TypeNumber }
func (String) Type() CellType    { return TypeString }
func (Date) Type() CellType      { return TypeDate }
func (Stub) Type() CellType      { return TypeStub }
func (ErrorCode) Type() CellType { return TypeError }

func (Bool) isValue()      {}
func (Number) isValue()    {}
func (String) isValue()    {}
func (Date) isValue()      {}
func (Stub) isValue()      {}
func (ErrorCode) isValue() {}

// Time returns the value as a time.Time.
func (d Date) Time() time.Time {
	return time.Time(d)
}

// ErrorCode is an Excel error value, numbered as in the BIFF record set.
type ErrorCode uint8

const (
	ErrorNull        ErrorCode = 0x00
	ErrorDiv0        ErrorCode = 0x07
	ErrorValue       ErrorCode = 0x0F
	ErrorRef         ErrorCode = 0x17
	ErrorName        ErrorCode = 0x1D
	ErrorNum         ErrorCode = 0x24
	ErrorNA          ErrorCode = 0x2A
	ErrorGettingData ErrorCode = 0x2B
)

var errorText = map[ErrorCode]string{
	ErrorNull:        "#NULL!",
	ErrorDiv0:        "#DIV/0!",
	ErrorValue:       "#VALUE!",
	ErrorRef:         "#REF!",
	ErrorName:        "#NAME?",
	ErrorNum:         "#NUM!",
	ErrorNA:          "#N/A",
	ErrorGettingData: "#GETTING_DATA",
}

var errorCodes = func() map[string]ErrorCode {
	m := make(map[string]ErrorCode, len(errorText))
	for code, s := range errorText {
		m[s] = code
	}
	return m
}()

// String returns the display text of the error, e.g. "#DIV/0!".
func (e ErrorCode) String() string {
	if s, ok := errorText[e]; ok {
		return s
	}
	return "#ERR" + strconv.Itoa(int(e))
}

// ParseErrorCode maps display text such as "#N/A" back to its code.
func ParseErrorCode(s string) (ErrorCode, bool) {
	code, ok := errorCodes[s]
	return code, ok
}
