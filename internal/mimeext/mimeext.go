// Package mimeext maps stream MIME types to file extensions.
package mimeext

import (
	"strings"
)

// DefaultExt is the extension used when MIME is unknown or empty.
const DefaultExt = "mp4"

var known = map[string]string{
	"video/mp4":   "mp4",
	"audio/mp4":   "m4a",
	"video/webm":  "webm",
	"audio/webm":  "webm",
	"video/3gpp":  "3gp",
	"video/x-flv": "flv",
	"audio/mpeg":  "mp3",
}

// baseType strips parameters and lowercases the MIME type.
func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// ExtFromMime returns the file extension (without dot) for a MIME type
// such as `audio/webm; codecs="opus"`. Unknown types fall back to their
// subtype, and empty or malformed ones to DefaultExt.
func ExtFromMime(mime string) string {
	base := baseType(mime)
	if ext, ok := known[base]; ok {
		return ext
	}
	if _, sub, ok := strings.Cut(base, "/"); ok && sub != "" && !strings.ContainsAny(sub, "/+") {
		return sub
	}
	return DefaultExt
}
