package watch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ytget/ytlinks/errs"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// IsVideoID reports whether s has the shape of a video id.
func IsVideoID(s string) bool { return videoIDRe.MatchString(s) }

// ExtractVideoID accepts a bare id or a watch, short link, shorts, embed
// or live URL and returns the video id.
func ExtractVideoID(input string) (string, error) {
	const op = "watch.ExtractVideoID"
	s := strings.TrimSpace(input)
	if IsVideoID(s) {
		return s, nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", errs.New(errs.KindInvalidInput, op, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch segments[0] {
		case "watch":
			id = u.Query().Get("v")
		case "shorts", "embed", "live", "v":
			if len(segments) > 1 {
				id = segments[1]
			}
		}
	}
	if !IsVideoID(id) {
		return "", errs.Newf(errs.KindInvalidInput, op, "no video id in %q", input)
	}
	return id, nil
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

func endpoint(origin, path string, q url.Values) string {
	if origin == "" {
		origin = DefaultOrigin
	}
	return strings.TrimSuffix(origin, "/") + path + "?" + q.Encode()
}

// WatchURL returns the watch page URL for id. The extra parameters pin
// the locale and skip the content warning interstitial.
func WatchURL(origin, id string) string {
	q := url.Values{}
	q.Set("v", id)
	q.Set("gl", "US")
	q.Set("hl", "en")
	q.Set("has_verified", "1")
	q.Set("bpctr", "9999999999")
	return endpoint(origin, "/watch", q)
}

// VideoInfoURL returns the fallback info endpoint URL for id.
func VideoInfoURL(origin, id string) string {
	q := url.Values{}
	q.Set("video_id", id)
	q.Set("eurl", "https://youtube.googleapis.com/v/"+id)
	q.Set("el", "embedded")
	return endpoint(origin, "/get_video_info", q)
}
