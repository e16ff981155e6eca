package version

import "testing"

func TestFromUint32(t *testing.T) {
	tests := []struct {
		name    string
		encoded uint32
		want    Number
	}{
		{"1.2.3", 0x30010203, Number{1, 2, 3}},
		{"jdk 21", 0x30150000, Number{21, 0, 0}},
		{"no interface bits", 0x00010203, Number{1, 2, 3}},
		{"all ones", 0xFFFFFFFF, Number{0xFFF, 0xFF, 0xFF}},
		{"zero", 0, Number{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromUint32(tt.encoded); got != tt.want {
				t.Errorf("FromUint32(%#x) = %+v, want %+v", tt.encoded, got, tt.want)
			}
		})
	}
}

func TestNumber_String(t *testing.T) {
	if got := FromUint32(0x30010203).String(); got != "1.2.3" {
		t.Errorf("String() = %q, want %q", got, "1.2.3")
	}
}

func TestNumber_AtLeast(t *testing.T) {
	n := Number{Major: 11, Minor: 2}
	if !n.AtLeast(11, 0) || !n.AtLeast(9, 5) {
		t.Error("expected 11.2 >= 11.0 and >= 9.5")
	}
	if n.AtLeast(11, 3) || n.AtLeast(21, 0) {
		t.Error("expected 11.2 < 11.3 and < 21.0")
	}
}
