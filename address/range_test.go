package address

import (
	"slices"
	"testing"
)

func TestRangeNormalize(t *testing.T) {
	r := Range{Start: Cell{5, 1}, End: Cell{2, 4}}.Normalize()
	want := Range{Start: Cell{2, 1}, End: Cell{5, 4}}
	if r != want {
		t.Errorf("Normalize() = %+v, want %+v", r, want)
	}
	if r.Rows() != 4 || r.Cols() != 4 {
		t.Errorf("Rows(), Cols() = %d, %d; want 4, 4", r.Rows(), r.Cols())
	}
}

func TestRangeContains(t *testing.T) {
	r := MustRange("B2:D4")
	tests := []struct {
		ref  string
		want bool
	}{
		{"B2", true},
		{"D4", true},
		{"C3", true},
		{"A1", false},
		{"E4", false},
		{"B5", false},
	}

	for _, tt := range tests {
		if got := r.Contains(MustCell(tt.ref)); got != tt.want {
			t.Errorf("B2:D4 Contains(%s) = %v, want %v", tt.ref, got, tt.want)
		}
	}

	if !r.ContainsRange(MustRange("C3:D4")) {
		t.Error("B2:D4 should contain C3:D4")
	}
	if r.ContainsRange(MustRange("C3:E4")) {
		t.Error("B2:D4 should not contain C3:E4")
	}
}

func TestRangeExtendUnion(t *testing.T) {
	r := Single(MustCell("C3"))
	r = r.Extend(MustCell("A5"))
	if got := r.String(); got != "A3:C5" {
		t.Errorf("Extend() = %s, want A3:C5", got)
	}

	u := MustRange("A1:B2").Union(MustRange("D4:E5"))
	if got := u.String(); got != "A1:E5" {
		t.Errorf("Union() = %s, want A1:E5", got)
	}
}

func TestRangeIntersect(t *testing.T) {
	got, ok := MustRange("A1:C3").Intersect(MustRange("B2:D4"))
	if !ok || got.String() != "B2:C3" {
		t.Errorf("Intersect() = %s, %v; want B2:C3, true", got, ok)
	}
	if _, ok := MustRange("A1:B2").Intersect(MustRange("C3:D4")); ok {
		t.Error("disjoint ranges should not intersect")
	}
}

func TestRangeCells(t *testing.T) {
	var refs []string
	for c := range MustRange("A1:B2").Cells() {
		refs = append(refs, c.String())
	}
	want := []string{"A1", "B1", "A2", "B2"}
	if !slices.Equal(refs, want) {
		t.Errorf("Cells() = %v, want %v", refs, want)
	}

	// Early stop
	n := 0
	for range MustRange("A1:Z100").Cells() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("iteration did not stop, n = %d", n)
	}
}

func TestBounds(t *testing.T) {
	cells := []Cell{{4, 1}, {0, 3}, {2, 0}}
	r, ok := Bounds(slices.Values(cells))
	if !ok || r.String() != "A1:D5" {
		t.Errorf("Bounds() = %s, %v; want A1:D5, true", r, ok)
	}
	if _, ok := Bounds(slices.Values([]Cell(nil))); ok {
		t.Error("Bounds of nothing should report ok=false")
	}
}
