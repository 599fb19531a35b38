// Package innertube queries the internal player endpoint, an alternative
// to the legacy info endpoint when a watch page is not directly playable.
package innertube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/ytget/ytlinks/client"
	"github.com/ytget/ytlinks/errs"
	"github.com/ytget/ytlinks/internal/logger"
)

const (
	defaultOrigin         = "https://www.youtube.com"
	playerPath            = "/youtubei/v1/player"
	headerContentTypeJSON = "application/json"
	clientNameWEB         = "WEB"
	defaultClientVersion  = "2.20250312.04.00"
)

// clientCodeFromName returns X-YouTube-Client-Name numeric code for known clients
func clientCodeFromName(name string) string {
	switch strings.ToUpper(name) {
	case "WEB":
		return "1"
	case "MWEB":
		return "2"
	case "ANDROID":
		return "3"
	case "IOS":
		return "5"
	case "TVHTML5":
		return "7"
	case "WEB_EMBEDDED_PLAYER":
		return "56"
	case "WEB_CREATOR":
		return "62"
	case "WEB_REMIX":
		return "67"
	case "TVHTML5_SIMPLY":
		return "75"
	case "TVHTML5_SIMPLY_EMBEDDED_PLAYER":
		return "85"
	default:
		return ""
	}
}

// Poster sends a POST request. *client.Client satisfies it.
type Poster interface {
	Post(ctx context.Context, rawURL, contentType string, body []byte, header http.Header) (*client.Response, error)
}

// Client for the player endpoint.
type Client struct {
	poster     Poster
	origin     string
	clientName string
	clientVer  string
	log        *logger.ComponentLogger
}

// New creates a client posting through p to origin. An empty origin
// means the public site.
func New(p Poster, origin string) *Client {
	if origin == "" {
		origin = defaultOrigin
	}
	return &Client{
		poster:     p,
		origin:     strings.TrimSuffix(origin, "/"),
		clientName: clientNameWEB,
		log:        logger.WithComponent(logger.ComponentInnerTube),
	}
}

// WithClient overrides the client name and version sent in the request
// context. Blank values keep the current setting.
func (c *Client) WithClient(name, version string) *Client {
	if strings.TrimSpace(name) != "" {
		c.clientName = strings.TrimSpace(name)
	}
	if strings.TrimSpace(version) != "" {
		c.clientVer = strings.TrimSpace(version)
	}
	return c
}

// requestBody builds the JSON body and the user agent to send with it.
func (c *Client) requestBody(videoID, version string) ([]byte, string, error) {
	clientMap := map[string]any{
		"clientName":    c.clientName,
		"clientVersion": version,
		"hl":            "en",
		"gl":            "US",
	}
	ua := ""
	if strings.EqualFold(c.clientName, "ANDROID") {
		clientMap["androidSdkVersion"] = 30
		clientMap["osName"] = "Android"
		clientMap["osVersion"] = "11"
		ua = "com.google.android.youtube/" + version + " (Linux; U; Android 11) gzip"
		clientMap["userAgent"] = ua
	}
	body, err := json.Marshal(map[string]any{
		"context": map[string]any{"client": clientMap},
		"videoId": videoID,
	})
	return body, ua, err
}

// Player fetches the player payload for videoID. apiKey and
// pageVersion are the values scraped from the watch page; either may be
// empty. A configured client version takes precedence over pageVersion.
func (c *Client) Player(ctx context.Context, videoID, apiKey, pageVersion string) (*simplejson.Json, error) {
	const op = "innertube.Player"

	version := c.clientVer
	if version == "" {
		version = pageVersion
	}
	if version == "" {
		version = defaultClientVersion
	}

	body, ua, err := c.requestBody(videoID, version)
	if err != nil {
		return nil, errs.New(errs.KindFetchFailed, op, err)
	}

	endpoint := c.origin + playerPath
	if apiKey != "" {
		endpoint += "?" + url.Values{"key": {apiKey}}.Encode()
	}

	h := http.Header{}
	h.Set("Origin", c.origin)
	h.Set("Referer", c.origin+"/")
	h.Set("X-YouTube-Client-Version", version)
	if code := clientCodeFromName(c.clientName); code != "" {
		h.Set("X-YouTube-Client-Name", code)
	}
	if ua != "" {
		h.Set("User-Agent", ua)
	}

	c.log.Debug("requesting player", map[string]interface{}{"video": videoID, "client": c.clientName, "version": version})
	resp, err := c.poster.Post(ctx, endpoint, headerContentTypeJSON, body, h)
	if err != nil {
		return nil, errs.Wrap(errs.KindFetchFailed, op, err)
	}

	switch resp.Status {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, errs.Newf(errs.KindRateLimited, op, "status %d", resp.Status)
	default:
		return nil, errs.Newf(errs.KindFetchFailed, op, "unexpected status %d", resp.Status)
	}

	payload, err := simplejson.NewJson(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindPlayerPayloadNotFound, op, err)
	}
	if _, err := payload.Map(); err != nil {
		return nil, errs.New(errs.KindPlayerPayloadNotFound, op, err)
	}
	return payload, nil
}
