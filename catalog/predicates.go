package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ytget/ytlinks/types"
)

var heightRe = regexp.MustCompile(`([0-9]{3,4})p`)

func getSubtype(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// height returns the stream height, falling back to the quality label
// ("720p60") for entries that omit it.
func height(f types.StreamFormat) int {
	if f.Height > 0 {
		return f.Height
	}
	m := heightRe.FindStringSubmatch(f.QualityLabel)
	if len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return 0
}

// mimeSubtypeEquals checks that MIME subtype (e.g., mp4, webm) equals desiredExt.
// The desiredExt is case-insensitive and may start with a dot.
// If desiredExt is empty, the function returns true (no filtering).
func mimeSubtypeEquals(f types.StreamFormat, desiredExt string) bool {
	desired := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(desiredExt)), ".")
	if desired == "" {
		return true
	}
	return getSubtype(f.MimeType) == desired
}

// itagEquals checks that format's itag matches the specified itag value.
// Returns false if itag is 0 or negative.
func itagEquals(f types.StreamFormat, itag int) bool {
	return itag > 0 && f.Itag == itag
}

// withinHeight checks whether the stream height is within [minHeight, maxHeight].
// A zero bound is ignored.
func withinHeight(f types.StreamFormat, minHeight, maxHeight int) bool {
	if minHeight <= 0 && maxHeight <= 0 {
		return true
	}
	h := height(f)
	if minHeight > 0 && h < minHeight {
		return false
	}
	if maxHeight > 0 && h > maxHeight {
		return false
	}
	return true
}

// betterByHeightThenBitrate reports whether candidate outranks current,
// by height first and bitrate second.
func betterByHeightThenBitrate(candidate, current types.StreamFormat) bool {
	ch, cur := height(candidate), height(current)
	if ch != cur {
		return ch > cur
	}
	return candidate.Bitrate > current.Bitrate
}
