package catalog

import (
	"strconv"
	"strings"

	"github.com/ytget/ytlinks/types"
)

// ByItag returns the stream with the given itag.
func (c *Catalog) ByItag(itag int) (types.StreamFormat, bool) {
	for _, f := range c.formats {
		if itagEquals(f, itag) {
			return f, true
		}
	}
	return types.StreamFormat{}, false
}

// Select chooses one stream by selector and optional extension.
// Supported selectors:
//   - itag=NN: specific stream by itag (e.g., "itag=22")
//   - best: highest quality (height, then bitrate)
//   - worst: lowest quality
//   - height<=NNN: height no more than NNN (e.g., "height<=720")
//   - height>=NNN: height no less than NNN (e.g., "height>=480")
//
// The extension ("mp4", "webm") narrows the candidates when any match.
// Without a selector, or when it matches nothing, itag 22 (720p MP4) is
// preferred, then itag 18 (360p MP4), then an avc1 MP4, else the first
// stream. ok is false only for an empty catalog.
func (c *Catalog) Select(selector, ext string) (f types.StreamFormat, ok bool) {
	if len(c.formats) == 0 {
		return types.StreamFormat{}, false
	}

	filtered := c.filter(func(f types.StreamFormat) bool { return mimeSubtypeEquals(f, ext) })
	if len(filtered) == 0 {
		filtered = c.Formats()
	}

	q := strings.TrimSpace(strings.ToLower(selector))
	if strings.HasPrefix(q, "itag=") {
		if it, err := strconv.Atoi(strings.TrimPrefix(q, "itag=")); err == nil {
			for _, f := range filtered {
				if itagEquals(f, it) {
					return f, true
				}
			}
		}
	}

	var minH, maxH int
	if v, found := strings.CutPrefix(q, "height<="); found {
		maxH, _ = strconv.Atoi(v)
	}
	if v, found := strings.CutPrefix(q, "height>="); found {
		minH, _ = strconv.Atoi(v)
	}
	if minH > 0 || maxH > 0 {
		var within []types.StreamFormat
		for _, f := range filtered {
			if withinHeight(f, minH, maxH) {
				within = append(within, f)
			}
		}
		if len(within) > 0 {
			filtered = within
		}
	}

	if q == "best" || q == "worst" || minH > 0 || maxH > 0 {
		chosen := filtered[0]
		for _, f := range filtered[1:] {
			if q == "worst" {
				if betterByHeightThenBitrate(chosen, f) {
					chosen = f
				}
			} else if betterByHeightThenBitrate(f, chosen) {
				chosen = f
			}
		}
		return chosen, true
	}

	for _, want := range []int{22, 18} {
		for _, f := range filtered {
			if f.Itag == want {
				return f, true
			}
		}
	}
	for _, f := range filtered {
		if strings.Contains(f.MimeType, "video/mp4") && strings.Contains(f.MimeType, "avc1") {
			return f, true
		}
	}
	return filtered[0], true
}
