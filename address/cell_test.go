package address

import (
	"errors"
	"math"
	"testing"

	"github.com/tsawler/cellar/sheeterr"
)

func TestDecodeCell(t *testing.T) {
	tests := []struct {
		ref     string
		wantCol int
		wantRow int
		wantErr bool
	}{
		{"A1", 0, 0, false},
		{"B1", 1, 0, false},
		{"Z1", 25, 0, false},
		{"AA1", 26, 0, false},
		{"AB1", 27, 0, false},
		{"AZ1", 51, 0, false},
		{"BA1", 52, 0, false},
		{"A10", 0, 9, false},
		{"C100", 2, 99, false},
		{"aa100", 26, 99, false},
		{"XFD1048576", 16383, 1048575, false}, // Max Excel cell
		{"", 0, 0, true},
		{"1", 0, 0, true},
		{"A", 0, 0, true},
		{"A0", 0, 0, true},
		{"A-1", 0, 0, true},
		{"A1B", 0, 0, true},
		{"A1 ", 0, 0, true},
		{"$A$1", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			c, err := DecodeCell(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("DecodeCell(%q) expected error, got %+v", tt.ref, c)
				} else if !errors.Is(err, sheeterr.ErrInvalidAddress) {
					t.Errorf("DecodeCell(%q) error kind = %v, want InvalidAddress", tt.ref, sheeterr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Errorf("DecodeCell(%q) unexpected error: %v", tt.ref, err)
				return
			}
			if c.Col != tt.wantCol {
				t.Errorf("DecodeCell(%q) col = %d, want %d", tt.ref, c.Col, tt.wantCol)
			}
			if c.Row != tt.wantRow {
				t.Errorf("DecodeCell(%q) row = %d, want %d", tt.ref, c.Row, tt.wantRow)
			}
		})
	}
}

func TestDecodeCol(t *testing.T) {
	tests := []struct {
		col  string
		want int
	}{
		{"A", 0},
		{"B", 1},
		{"Z", 25},
		{"AA", 26},
		{"AB", 27},
		{"AZ", 51},
		{"BA", 52},
		{"ZZ", 701},
		{"AAA", 702},
		{"XFD", 16383}, // Excel max column
		{"a", 0},       // Lowercase
		{"aa", 26},
	}

	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			got, err := DecodeCol(tt.col)
			if err != nil {
				t.Fatalf("DecodeCol(%q) unexpected error: %v", tt.col, err)
			}
			if got != tt.want {
				t.Errorf("DecodeCol(%q) = %d, want %d", tt.col, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "A1", "-", "Ä"} {
		if _, err := DecodeCol(bad); !errors.Is(err, sheeterr.ErrInvalidAddress) {
			t.Errorf("DecodeCol(%q) error = %v, want InvalidAddress", bad, err)
		}
	}
}

func TestEncodeCol(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
		{16383, "XFD"},
		{-1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := EncodeCol(tt.index); got != tt.want {
				t.Errorf("EncodeCol(%d) = %q, want %q", tt.index, got, tt.want)
			}
		})
	}
}

func TestColWideRange(t *testing.T) {
	const pow8 = 208827064576 // 26^8
	for _, col := range []int{1 << 40, pow8 - 1, pow8, math.MaxInt} {
		s := EncodeCol(col)
		back, err := DecodeCol(s)
		if err != nil {
			t.Fatalf("DecodeCol(%q) unexpected error: %v", s, err)
		}
		if back != col {
			t.Errorf("DecodeCol(EncodeCol(%d)) = %d", col, back)
		}
	}

	if got := EncodeCol(math.MaxInt); len(got) != 14 {
		t.Errorf("EncodeCol(MaxInt) = %q, want 14 letters", got)
	}
	if _, err := DecodeCol("ZZZZZZZZZZZZZZ"); !errors.Is(err, sheeterr.ErrInvalidAddress) {
		t.Errorf("DecodeCol of an overflowing column error = %v, want InvalidAddress", err)
	}
}

func TestColRoundTrip(t *testing.T) {
	for i := 0; i < 20000; i++ {
		col := EncodeCol(i)
		back, err := DecodeCol(col)
		if err != nil {
			t.Fatalf("DecodeCol(%q) unexpected error: %v", col, err)
		}
		if back != i {
			t.Fatalf("DecodeCol(EncodeCol(%d)) = %d", i, back)
		}
	}
}

func TestRowCodec(t *testing.T) {
	if got := EncodeRow(0); got != "1" {
		t.Errorf("EncodeRow(0) = %q, want %q", got, "1")
	}
	if got, err := DecodeRow("42"); err != nil || got != 41 {
		t.Errorf("DecodeRow(%q) = %d, %v; want 41, nil", "42", got, err)
	}
	for _, bad := range []string{"", "0", "-3", "1.5", "x"} {
		if _, err := DecodeRow(bad); !errors.Is(err, sheeterr.ErrInvalidAddress) {
			t.Errorf("DecodeRow(%q) error = %v, want InvalidAddress", bad, err)
		}
	}
}

func TestEncodeCell(t *testing.T) {
	tests := []struct {
		cell Cell
		want string
	}{
		{Cell{0, 0}, "A1"},
		{Cell{0, 1}, "B1"},
		{Cell{9, 0}, "A10"},
		{Cell{99, 26}, "AA100"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := EncodeCell(tt.cell); got != tt.want {
				t.Errorf("EncodeCell(%+v) = %q, want %q", tt.cell, got, tt.want)
			}
			if got := tt.cell.String(); got != tt.want {
				t.Errorf("Cell.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCellRoundTrip(t *testing.T) {
	for row := 0; row < 50; row += 7 {
		for col := 0; col < 800; col += 13 {
			c := Cell{Row: row, Col: col}
			got, err := DecodeCell(EncodeCell(c))
			if err != nil || got != c {
				t.Fatalf("DecodeCell(EncodeCell(%+v)) = %+v, %v", c, got, err)
			}
		}
	}
}

func TestDecodeRange(t *testing.T) {
	tests := []struct {
		ref     string
		want    Range
		wantErr bool
	}{
		{"A1:D10", Range{Cell{0, 0}, Cell{9, 3}}, false},
		{"B2:B2", Range{Cell{1, 1}, Cell{1, 1}}, false},
		{"C3", Range{Cell{2, 2}, Cell{2, 2}}, false},
		{"D10:A1", Range{Cell{0, 0}, Cell{9, 3}}, false}, // Normalized
		{"A1:", Range{}, true},
		{":B2", Range{}, true},
		{"A1:B2:C3", Range{}, true},
		{"", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := DecodeRange(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, sheeterr.ErrInvalidAddress) {
					t.Errorf("DecodeRange(%q) error = %v, want InvalidAddress", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRange(%q) unexpected error: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("DecodeRange(%q) = %+v, want %+v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestEncodeRange(t *testing.T) {
	r := NewRange(Cell{3, 2}, Cell{0, 0})
	if got := EncodeRange(r); got != "A1:C4" {
		t.Errorf("EncodeRange() = %q, want %q", got, "A1:C4")
	}
	if got := Single(Cell{0, 0}).String(); got != "A1" {
		t.Errorf("Range.String() for a single cell = %q, want %q", got, "A1")
	}
	if got := EncodeRange(Single(Cell{0, 0})); got != "A1:A1" {
		t.Errorf("EncodeRange(single) = %q, want %q", got, "A1:A1")
	}
	if got := EncodeRangeCompact(Single(Cell{1, 1})); got != "B2" {
		t.Errorf("EncodeRangeCompact(single) = %q, want %q", got, "B2")
	}

	back, err := DecodeRange(EncodeRange(r))
	if err != nil || back != r {
		t.Errorf("DecodeRange(EncodeRange(r)) = %+v, %v; want %+v", back, err, r)
	}
}
