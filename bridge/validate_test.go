package bridge

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"user", "user", false},
		{"assistant", "assistant", false},
		{"  Assistant ", "assistant", false},
		{"USER", "user", false},
		{"system", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("normalizeRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate_ExactBoundary(t *testing.T) {
	s := strings.Repeat("x", 100)
	if got := truncate(s, 100); got != s {
		t.Errorf("content at the limit must pass unchanged")
	}
	if got := truncate(s, 40); len(got) != 40 {
		t.Errorf("expected 40 bytes, got %d", len(got))
	}
}

func TestTruncate_NeverSplitsRune(t *testing.T) {
	s := strings.Repeat("é", 60) // 2 bytes per rune
	got := truncate(s, 99)       // 99 lands mid-rune
	if len(got) != 98 {
		t.Errorf("expected back-off to 98 bytes, got %d", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated content must stay valid UTF-8: %q", got)
	}
}

func TestPreview_NeverSplitsRune(t *testing.T) {
	s := strings.Repeat("日", 40) // 3 bytes per rune, 120 bytes
	got := preview(s)
	if !utf8.ValidString(got) {
		t.Errorf("preview must stay valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…[truncated]") {
		t.Errorf("expected truncation marker, got %q", got)
	}
}
