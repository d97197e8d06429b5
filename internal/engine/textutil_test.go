package engine

import "testing"

func TestCleanCaption(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello   world", "hello world"},
		{"entities", "rock &amp; roll &#39;n&#39; more", "rock & roll 'n' more"},
		{"inline tags", `<font color="#E5E5E5">so</font> <i>this</i> is`, "so this is"},
		{"newlines", "line one\nline two", "line one line two"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCaption(tt.in); got != tt.want {
				t.Errorf("CleanCaption(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	if got := NormalizeSpace(" a \t b\n\nc "); got != "a b c" {
		t.Errorf("NormalizeSpace = %q", got)
	}
}
