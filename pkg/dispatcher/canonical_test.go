package dispatcher

import "testing"

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"svc::device:attr", "device:attr"},
		{"device//attr", "device:attr"},
		{"svc::device//attr", "device:attr"},
		{"a//b//c", "a//b:c"},
		{"one::two::three", "two::three"},
		{"device:attr", "device:attr"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CanonicalName(tt.in); got != tt.want {
				t.Errorf("dispatcher:canonical_test - CanonicalName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
