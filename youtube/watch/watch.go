// Package watch analyses watch pages: it detects blocked responses,
// extracts the embedded player payload and locates the player script.
package watch

import (
	"bytes"
	"fmt"
	"net/http"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/ytget/ytlinks/errs"
	"github.com/ytget/ytlinks/internal/logger"
)

// DefaultOrigin is the canonical site origin.
const DefaultOrigin = "https://www.youtube.com"

// State is the outcome of analysing a watch page.
type State int

const (
	// StatePlayable means the page carries a usable payload.
	StatePlayable State = iota
	// StateRequiresFallbackQuery means the payload must come from the info endpoint.
	StateRequiresFallbackQuery
	// StateBlocked means the site refused to serve the page.
	StateBlocked
	// StateNotFound means the video does not exist.
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StatePlayable:
		return "playable"
	case StateRequiresFallbackQuery:
		return "requires-fallback-query"
	case StateBlocked:
		return "blocked"
	case StateNotFound:
		return "not-found"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// BlockReason tells why a page is blocked.
type BlockReason int

const (
	BlockNone BlockReason = iota
	BlockRateLimited
	BlockCaptchaChallenge
)

func (b BlockReason) String() string {
	switch b {
	case BlockNone:
		return "none"
	case BlockRateLimited:
		return "rate-limited"
	case BlockCaptchaChallenge:
		return "captcha"
	}
	return fmt.Sprintf("block(%d)", int(b))
}

var (
	rateLimitMarkers = [][]byte{
		[]byte("We have been receiving a large volume of requests"),
		[]byte("systems have detected unusual traffic"),
	}
	captchaMarker = []byte("/recaptcha/")
)

// Page is an analysed watch page.
type Page struct {
	Status          int
	State           State
	Block           BlockReason
	PlayerScriptURL string
	// Payload is nil when the page carries no decodable player payload.
	Payload       *simplejson.Json
	APIKey        string
	ClientVersion string
}

// DetectBlock reports whether the response is a throttling or captcha page.
func DetectBlock(status int, body []byte) BlockReason {
	if status == http.StatusTooManyRequests {
		return BlockRateLimited
	}
	for _, m := range rateLimitMarkers {
		if bytes.Contains(body, m) {
			return BlockRateLimited
		}
	}
	if bytes.Contains(body, captchaMarker) {
		return BlockCaptchaChallenge
	}
	return BlockNone
}

// Analyze classifies a fetched watch page. Relative player script URLs
// are resolved against origin, or DefaultOrigin when origin is empty.
//
// A blocked page, a missing video and an unexpected status are returned
// as errors alongside the partially filled Page.
func Analyze(status int, body []byte, origin string) (*Page, error) {
	const op = "watch.Analyze"
	log := logger.WithComponent(logger.ComponentWatch)

	page := &Page{Status: status}

	switch page.Block = DetectBlock(status, body); page.Block {
	case BlockRateLimited:
		page.State = StateBlocked
		log.Warn("watch page is rate limited", map[string]interface{}{"status": status})
		return page, errs.Newf(errs.KindRateLimited, op, "status %d", status)
	case BlockCaptchaChallenge:
		page.State = StateBlocked
		log.Warn("watch page requires a captcha", map[string]interface{}{"status": status})
		return page, errs.Newf(errs.KindCaptchaChallenge, op, "status %d", status)
	}

	switch status {
	case http.StatusOK, http.StatusForbidden:
	case http.StatusNotFound:
		page.State = StateNotFound
		return page, errs.Newf(errs.KindNotFound, op, "status %d", status)
	default:
		return page, errs.Newf(errs.KindFetchFailed, op, "unexpected status %d", status)
	}

	page.Payload = ExtractPayload(body)
	page.PlayerScriptURL = PlayerScriptURL(body, origin)
	page.APIKey, page.ClientVersion = APIConfig(body)

	page.State = StateRequiresFallbackQuery
	if status == http.StatusOK && PlayabilityStatus(page.Payload) == "OK" {
		page.State = StatePlayable
	}

	log.Debug("analysed watch page", map[string]interface{}{
		"status":  status,
		"state":   page.State.String(),
		"payload": page.Payload != nil,
		"player":  page.PlayerScriptURL,
	})
	return page, nil
}
