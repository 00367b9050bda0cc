package gitx

import "testing"

func TestCanonicalVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2.39.0", "v2.39.0"},
		{"2.39.0 (Apple Git-145)", "v2.39.0"},
		{"2.39.0.1", "v2.39.0"},
		{"2.0.0", "v2.0.0"},
	}
	for _, tt := range tests {
		if got := canonicalVersion(tt.in); got != tt.want {
			t.Errorf("canonicalVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
