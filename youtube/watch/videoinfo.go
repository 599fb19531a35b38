package watch

import (
	"net/url"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/ytget/ytlinks/errs"
)

// ParseVideoInfo decodes the query-string response of the info endpoint
// and returns its player_response payload. A response carrying an
// errorcode, or lacking a decodable player_response, yields a nil
// payload and a PlayerPayloadNotFound error.
func ParseVideoInfo(body []byte) (*simplejson.Json, error) {
	const op = "watch.ParseVideoInfo"
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errs.New(errs.KindPlayerPayloadNotFound, op, err)
	}
	if code := values.Get("errorcode"); code != "" {
		return nil, errs.Newf(errs.KindPlayerPayloadNotFound, op, "errorcode %s: %s", code, values.Get("reason"))
	}
	raw := values.Get("player_response")
	if raw == "" {
		return nil, errs.Newf(errs.KindPlayerPayloadNotFound, op, "no player_response")
	}
	js, err := simplejson.NewJson([]byte(raw))
	if err != nil {
		return nil, errs.New(errs.KindPlayerPayloadNotFound, op, err)
	}
	if _, err := js.Map(); err != nil {
		return nil, errs.New(errs.KindPlayerPayloadNotFound, op, err)
	}
	return js, nil
}
