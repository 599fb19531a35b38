// Package sanitize turns video titles into portable file names.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxFilenameLength is the maximum length in bytes of the name before
	// the extension.
	MaxFilenameLength = 120
	// DefaultExt is the default extension used when none is provided.
	DefaultExt = "mp4"
	// DefaultName is the replacement name when the title is empty.
	DefaultName = "video"
)

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	spaces      = regexp.MustCompile(`\s+`)
	// Device names Windows refuses as file names.
	reserved = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	}
)

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ToSafeFilename builds a cross-platform safe filename from title and
// extension (with or without a leading dot).
func ToSafeFilename(title, ext string) string {
	name := spaces.ReplaceAllString(title, " ")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = truncate(strings.TrimSpace(name), MaxFilenameLength)
	name = strings.TrimRight(name, ". ")
	if name == "" {
		name = DefaultName
	}
	if reserved[strings.ToUpper(name)] {
		name = "_" + name
	}

	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = DefaultExt
	}
	return name + "." + ext
}
