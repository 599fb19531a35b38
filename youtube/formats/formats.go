package formats

import (
	"fmt"
	"net/url"

	simplejson "github.com/bitly/go-simplejson"

	"github.com/ytget/ytlinks/errs"
	"github.com/ytget/ytlinks/internal/logger"
	"github.com/ytget/ytlinks/types"
	"github.com/ytget/ytlinks/youtube/cipher"
)

// defaultSignatureParam is the query parameter that carries the decoded
// signature when the cipher blob does not name one.
const defaultSignatureParam = "signature"

// ProgramSource yields the cipher program. Resolve calls it at most once,
// and only when some entry needs a signature decoded.
type ProgramSource func() (cipher.Program, error)

// Dropped records an entry that could not be turned into a URL.
type Dropped struct {
	Index int
	Itag  int
	Err   error
}

// Result is the outcome of resolving a batch of entries.
type Result struct {
	Formats []types.StreamFormat
	Dropped []Dropped
}

// Entries returns streamingData.formats followed by
// streamingData.adaptiveFormats. Entries that do not decode are skipped
// and reported as FormatEntryUnresolvable errors.
func Entries(payload *simplejson.Json) ([]types.RawFormatEntry, []error) {
	const op = "formats.Entries"
	if payload == nil {
		return nil, nil
	}
	log := logger.WithComponent(logger.ComponentFormat)

	var (
		entries []types.RawFormatEntry
		skipped []error
	)
	for _, section := range []string{"formats", "adaptiveFormats"} {
		list, err := payload.GetPath("streamingData", section).Array()
		if err != nil {
			continue
		}
		for i, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				skipped = append(skipped, errs.Newf(errs.KindFormatEntryUnresolvable, op, "%s[%d]: not an object", section, i))
				continue
			}
			var e types.RawFormatEntry
			if err := types.DecodeMap(m, &e); err != nil {
				log.Warn("skipping undecodable entry", map[string]interface{}{"section": section, "index": i, "error": err.Error()})
				skipped = append(skipped, errs.New(errs.KindFormatEntryUnresolvable, op, fmt.Errorf("%s[%d]: %w", section, i, err)))
				continue
			}
			entries = append(entries, e)
		}
	}
	return entries, skipped
}

// NeedsProgram reports whether any entry must have its signature decoded.
func NeedsProgram(entries []types.RawFormatEntry) bool {
	for _, e := range entries {
		if !hasDirectURL(e) && e.CipherBlob() != "" {
			return true
		}
	}
	return false
}

type cipherParams struct {
	url       string
	signature string
	param     string
}

func parseCipher(blob string) (cipherParams, error) {
	if blob == "" {
		return cipherParams{}, fmt.Errorf("no url and no cipher")
	}
	q, err := url.ParseQuery(blob)
	if err != nil {
		return cipherParams{}, fmt.Errorf("parse cipher: %w", err)
	}
	p := cipherParams{url: q.Get("url"), signature: q.Get("s"), param: q.Get("sp")}
	if p.url == "" || p.signature == "" {
		return cipherParams{}, fmt.Errorf("cipher lacks url or signature")
	}
	if p.param == "" {
		p.param = defaultSignatureParam
	}
	return p, nil
}

// Resolve turns entries into fetchable formats, preserving their order.
// Entries with a direct URL pass through unchanged. Ciphered entries get
// their signature decoded and appended under the cipher's parameter
// name. Entries with neither are dropped. A program that cannot be
// obtained or a signature that fails to decode aborts the whole batch.
func Resolve(entries []types.RawFormatEntry, src ProgramSource) (*Result, error) {
	const op = "formats.Resolve"
	log := logger.WithComponent(logger.ComponentFormat)

	res := &Result{Formats: make([]types.StreamFormat, 0, len(entries))}
	var (
		program cipher.Program
		loaded  bool
	)

	drop := func(i int, e types.RawFormatEntry, err error) {
		log.Warn("dropping unresolvable entry", map[string]interface{}{"itag": e.Itag, "index": i, "error": err.Error()})
		res.Dropped = append(res.Dropped, Dropped{Index: i, Itag: e.Itag, Err: errs.New(errs.KindFormatEntryUnresolvable, op, err)})
	}

	for i, e := range entries {
		if hasDirectURL(e) {
			res.Formats = append(res.Formats, e.StreamFormat)
			continue
		}

		params, err := parseCipher(e.CipherBlob())
		if err != nil {
			drop(i, e, err)
			continue
		}
		target, err := url.Parse(params.url)
		if err != nil {
			drop(i, e, fmt.Errorf("parse stream url: %w", err))
			continue
		}

		if !loaded {
			if src == nil {
				return nil, errs.Newf(errs.KindCipherProgramNotFound, op, "no program source")
			}
			program, err = src()
			if err != nil {
				return nil, errs.Wrap(errs.KindCipherProgramNotFound, op, err)
			}
			loaded = true
		}

		sig, err := cipher.Decode(params.signature, program)
		if err != nil {
			return nil, errs.Wrap(errs.KindSignatureDecodeFailed, op, fmt.Errorf("itag %d: %w", e.Itag, err))
		}

		q := target.Query()
		q.Set(params.param, sig)
		target.RawQuery = q.Encode()

		f := e.StreamFormat
		f.URL = target.String()
		res.Formats = append(res.Formats, f)
	}

	log.Debug("resolved entries", map[string]interface{}{
		"total":    len(entries),
		"resolved": len(res.Formats),
		"dropped":  len(res.Dropped),
		"program":  loaded,
	})
	return res, nil
}
