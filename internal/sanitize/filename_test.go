package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestToSafeFilename(t *testing.T) {
	tests := []struct {
		name  string
		title string
		ext   string
		want  string
	}{
		{"unsafe characters", "Hello:/\\*?\"<>| World", "mp4", "Hello_ World.mp4"},
		{"defaults", "", "", "video.mp4"},
		{"control characters", "line\none\ttab\x00", "webm", "line one tab.webm"},
		{"trailing dots", "Final cut...", ".M4A", "Final cut.m4a"},
		{"only dots", "...", "mp4", "video.mp4"},
		{"reserved device name", "con", "mp4", "_con.mp4"},
		{"unicode kept", "Привет мир", "mp4", "Привет мир.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToSafeFilename(tt.title, tt.ext); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToSafeFilenameLong(t *testing.T) {
	got := ToSafeFilename(strings.Repeat("a", 200), "mp4")
	if len(got) > MaxFilenameLength+4 {
		t.Fatalf("too long: %d", len(got))
	}
}

func TestToSafeFilenameTruncatesOnRuneBoundary(t *testing.T) {
	got := ToSafeFilename(strings.Repeat("я", 100), "mp4")
	if !utf8.ValidString(got) {
		t.Fatalf("invalid utf-8: %q", got)
	}
	if base := strings.TrimSuffix(got, ".mp4"); len(base) > MaxFilenameLength {
		t.Fatalf("base too long: %d", len(base))
	}
}
