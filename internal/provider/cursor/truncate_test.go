package cursor

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short passes through", "hello", 80, "hello"},
		{"long ascii clipped", strings.Repeat("a", 90), 10, "aaaaaaa..."},
		{"multibyte within rune budget", strings.Repeat("é", 6), 10, strings.Repeat("é", 6)},
		{"multibyte clipped on rune boundary", strings.Repeat("é", 50), 10, strings.Repeat("é", 7) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}
