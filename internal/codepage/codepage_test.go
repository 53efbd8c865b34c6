package codepage

import (
	"bytes"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		cp   int
		in   []byte
		want string
	}{
		{"default is 1252", 0, []byte{0x80, 'a'}, "€a"},
		{"windows 1251", 1251, []byte{0xCF, 0xF0, 0xE8}, "При"},
		{"dos 437", 437, []byte{0x82}, "é"},
		{"mac roman", 10000, []byte{0x8E}, "é"},
		{"utf-16le", UTF16LE, []byte{'h', 0, 'i', 0}, "hi"},
		{"utf-16be", UTF16BE, []byte{0, 'h', 0, 'i'}, "hi"},
		{"shift jis", 932, []byte{0x82, 0xA0}, "あ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.cp, tt.in)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	got, err := Encode(1252, "€a")
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x80, 'a'}) {
		t.Errorf("Encode() = %x", got)
	}

	// Characters outside the page are replaced rather than failing.
	got, err = Encode(1252, "a一b")
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if len(got) != 3 || got[0] != 'a' || got[2] != 'b' {
		t.Errorf("Encode() = %x, want substitute in the middle", got)
	}
}

func TestUnsupported(t *testing.T) {
	if Supported(4242) {
		t.Error("Supported(4242) = true")
	}
	if _, err := Decode(4242, []byte("x")); err == nil {
		t.Error("Decode() with unknown page should fail")
	}
	if _, err := Encode(4242, "x"); err == nil {
		t.Error("Encode() with unknown page should fail")
	}
}
