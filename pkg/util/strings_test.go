package util

import "testing"

func TestParseIntDefault(t *testing.T) {
	tests := []struct {
		in   string
		def  int
		want int
	}{
		{"8081", 8080, 8081},
		{"", 8080, 8080},
		{"not a number", 8080, 8080},
		{"-1", 0, -1},
	}
	for _, tc := range tests {
		if got := ParseIntDefault(tc.in, tc.def); got != tc.want {
			t.Errorf("ParseIntDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestParseBoolDefault(t *testing.T) {
	tests := []struct {
		in   string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"0", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tc := range tests {
		if got := ParseBoolDefault(tc.in, tc.def); got != tc.want {
			t.Errorf("ParseBoolDefault(%q, %v) = %v, want %v", tc.in, tc.def, got, tc.want)
		}
	}
}
