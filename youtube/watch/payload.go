package watch

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	simplejson "github.com/bitly/go-simplejson"

	"github.com/ytget/ytlinks/types"
)

var (
	payloadStartRe = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*(?P<object>\{)`)
	playerSrcRe    = regexp.MustCompile(`player[^"]*\.js`)
	jsURLRe        = regexp.MustCompile(`"jsUrl"\s*:\s*"(?P<url>[^"]+)"`)
	apiKeyRe       = regexp.MustCompile(`"INNERTUBE_API_KEY"\s*:\s*"(?P<key>[^"]+)"`)
	clientVerRe    = regexp.MustCompile(`"INNERTUBE_CLIENT_VERSION"\s*:\s*"(?P<version>[^"]+)"`)
)

// submatch returns the named group of the first match of re in body.
func submatch(re *regexp.Regexp, body []byte, name string) string {
	m := re.FindSubmatch(body)
	i := re.SubexpIndex(name)
	if m == nil || i < 0 {
		return ""
	}
	return string(m[i])
}

// ExtractPayload locates the ytInitialPlayerResponse assignment and
// decodes the JSON object that follows it. It returns nil when the
// assignment is absent or the object does not decode.
func ExtractPayload(body []byte) *simplejson.Json {
	loc := payloadStartRe.FindSubmatchIndex(body)
	if loc == nil {
		return nil
	}
	start := loc[2*payloadStartRe.SubexpIndex("object")]
	// The decoder stops at the object's own closing brace, so the
	// script text that follows is never read.
	js, err := simplejson.NewFromReader(bytes.NewReader(body[start:]))
	if err != nil {
		return nil
	}
	if _, err := js.Map(); err != nil {
		return nil
	}
	return js
}

// PlayerScriptURL returns the absolute URL of the player script. A
// script tag is preferred over the jsUrl config field.
func PlayerScriptURL(body []byte, origin string) string {
	raw := ""
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			if playerSrcRe.MatchString(src) {
				raw = src
				return false
			}
			return true
		})
	}
	if raw == "" {
		raw = submatch(jsURLRe, body, "url")
	}
	if raw == "" {
		return ""
	}
	return ResolveURL(strings.ReplaceAll(raw, `\/`, "/"), origin)
}

// ResolveURL turns a protocol-relative or root-relative reference into an
// absolute URL on origin.
func ResolveURL(ref, origin string) string {
	if origin == "" {
		origin = DefaultOrigin
	}
	base, err := url.Parse(origin)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// APIConfig scrapes the innertube API key and client version.
func APIConfig(body []byte) (apiKey, clientVersion string) {
	return submatch(apiKeyRe, body, "key"), submatch(clientVerRe, body, "version")
}

// PlayabilityStatus returns playabilityStatus.status, or "" when absent.
func PlayabilityStatus(payload *simplejson.Json) string {
	if payload == nil {
		return ""
	}
	return payload.GetPath("playabilityStatus", "status").MustString()
}

// PlayabilityReason returns the human readable reason a video cannot be
// played, or "" when absent.
func PlayabilityReason(payload *simplejson.Json) string {
	if payload == nil {
		return ""
	}
	ps := payload.Get("playabilityStatus")
	if r := ps.Get("reason").MustString(); r != "" {
		return r
	}
	return ps.GetPath("errorScreen", "playerErrorMessageRenderer", "reason", "simpleText").MustString()
}

// Details decodes videoDetails from the payload, or returns nil when the
// section is missing.
func Details(payload *simplejson.Json) *types.VideoDetails {
	if payload == nil {
		return nil
	}
	m, err := payload.Get("videoDetails").Map()
	if err != nil {
		return nil
	}
	var d types.VideoDetails
	if err := types.DecodeMap(m, &d); err != nil {
		return nil
	}
	return &d
}
