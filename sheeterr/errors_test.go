package sheeterr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := New(InvalidAddress, "decode_cell", "no row number in %q", "AB")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("errors.Is(%v, ErrInvalidAddress) = false, want true", err)
	}
	if errors.Is(err, ErrTruncatedInput) {
		t.Errorf("errors.Is(%v, ErrTruncatedInput) = true, want false", err)
	}

	wrapped := fmt.Errorf("reading sheet: %w", err)
	if !errors.Is(wrapped, ErrInvalidAddress) {
		t.Errorf("wrapped error lost its kind")
	}
	if got := KindOf(wrapped); got != InvalidAddress {
		t.Errorf("KindOf() = %v, want %v", got, InvalidAddress)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(TruncatedInput, "read", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	err := Wrap(TruncatedInput, "read", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Wrap should keep the cause reachable")
	}
	if KindOf(err) != TruncatedInput {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), TruncatedInput)
	}

	inner := New(PasswordRequired, "xlsx", "encrypted package")
	if got := Wrap(TruncatedInput, "read", inner); KindOf(got) != PasswordRequired {
		t.Errorf("Wrap should keep the inner kind, got %v", KindOf(got))
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: InvalidAddress}, "invalid address"},
		{&Error{Kind: InvalidAddress, Op: "decode_col"}, "decode_col: invalid address"},
		{&Error{Kind: InvalidAddress, Op: "decode_col", Msg: `"1A"`}, `decode_col: invalid address: "1A"`},
		{&Error{Kind: TruncatedInput, Err: io.EOF}, "truncated input: EOF"},
		{&Error{Kind: Kind(99)}, "kind(99)"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
