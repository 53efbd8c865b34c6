package rcref

import (
	"testing"

	"github.com/tsawler/cellar/address"
)

func TestConversion(t *testing.T) {
	base := address.MustCell("C3")
	tests := []struct {
		a1 string
		rc string
	}{
		{"C3", "RC"},
		{"A1", "R[-2]C[-2]"},
		{"$A$1", "R1C1"},
		{"SUM(D4:$E5)", "SUM(R[1]C[1]:R[2]C5)"},
		{`"A1"&B3`, `"A1"&RC[-1]`},
		{`"say ""B3"""&B3`, `"say ""B3"""&RC[-1]`},
		{"Sheet2!C3+LOG10(2)", "Sheet2!RC+LOG10(2)"},
		{"my_name+1", "my_name+1"},
	}

	for _, tt := range tests {
		t.Run(tt.a1, func(t *testing.T) {
			if got := ToRC(tt.a1, base); got != tt.rc {
				t.Errorf("ToRC(%q) = %q, want %q", tt.a1, got, tt.rc)
			}
			if got := ToA1(tt.rc, base); got != tt.a1 {
				t.Errorf("ToA1(%q) = %q, want %q", tt.rc, got, tt.a1)
			}
		})
	}
}

func TestOutOfRange(t *testing.T) {
	base := address.MustCell("A1")
	if got := ToA1("R[-1]C", base); got != "R[-1]C" {
		t.Errorf("ToA1 above row 1 = %q, want it unchanged", got)
	}
	if got := ToRC("XFE1", base); got != "XFE1" {
		t.Errorf("ToRC past the last column = %q, want it unchanged", got)
	}
}
