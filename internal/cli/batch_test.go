package cli

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"req-1", "req-1"},
		{"a/b\\c", "a_b_c"},
		{"what is: this?", "what-is_-this_"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"", "request"},
		{"...", "request"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'x'
	}
	if got := sanitizeFilename(string(long)); len(got) != 100 {
		t.Errorf("len = %d, want 100", len(got))
	}
}
