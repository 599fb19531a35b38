package ytlinks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/google/uuid"

	"github.com/ytget/ytlinks/catalog"
	"github.com/ytget/ytlinks/client"
	"github.com/ytget/ytlinks/downloader"
	"github.com/ytget/ytlinks/errs"
	"github.com/ytget/ytlinks/internal/cache"
	"github.com/ytget/ytlinks/internal/logger"
	"github.com/ytget/ytlinks/types"
	"github.com/ytget/ytlinks/youtube/cipher"
	"github.com/ytget/ytlinks/youtube/formats"
	"github.com/ytget/ytlinks/youtube/innertube"
	"github.com/ytget/ytlinks/youtube/watch"
)

// Fallback selects the endpoint queried when a watch page is not
// directly playable.
type Fallback int

const (
	// FallbackVideoInfo queries the legacy get_video_info endpoint.
	FallbackVideoInfo Fallback = iota
	// FallbackInnerTube posts to the internal player endpoint.
	FallbackInnerTube
)

func (f Fallback) String() string {
	if f == FallbackInnerTube {
		return "innertube"
	}
	return "videoinfo"
}

// ParseFallback accepts "videoinfo" and "innertube".
func ParseFallback(s string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "videoinfo", "get_video_info":
		return FallbackVideoInfo, nil
	case "innertube", "player":
		return FallbackInnerTube, nil
	}
	return FallbackVideoInfo, fmt.Errorf("unknown fallback endpoint %q", s)
}

// DownloadOptions configures Download. Use the chainable setters on
// Resolver to populate it.
type DownloadOptions struct {
	FormatSelector string
	DesiredExt     string
	OutputPath     string
	ProgressFunc   func(Progress)
	RateLimitBps   int64
}

// Progress describes current progress of an ongoing download.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Resolver turns video ids and URLs into catalogs of fetchable streams.
// It is safe for concurrent use once configured.
type Resolver struct {
	client   *client.Client
	origin   string
	fallback Fallback
	itName   string
	itVer    string
	scripts  *cache.Cache
	programs *cipher.ProgramCache
	engine   cipher.Engine
	options  DownloadOptions
	log      *logger.ComponentLogger
}

// New creates a Resolver with default settings: the public site, the
// legacy info endpoint as fallback, an in-memory script cache and no
// program verification.
func New() *Resolver {
	return &Resolver{
		client:   client.New(),
		origin:   watch.DefaultOrigin,
		scripts:  cache.New(cache.Options{}),
		programs: cipher.NewProgramCache(cache.DefaultVersion, 0),
		log:      logger.WithComponent(logger.ComponentResolver),
	}
}

// WithOrigin points the resolver at another site origin, such as a test server.
func (r *Resolver) WithOrigin(origin string) *Resolver {
	if origin = strings.TrimSuffix(strings.TrimSpace(origin), "/"); origin != "" {
		r.origin = origin
	}
	return r
}

// WithClient replaces the page fetcher.
func (r *Resolver) WithClient(c *client.Client) *Resolver {
	if c != nil {
		r.client = c
	}
	return r
}

// WithHTTPClient sets a custom HTTP client to be used for all network calls.
func (r *Resolver) WithHTTPClient(hc *http.Client) *Resolver {
	if hc != nil {
		r.client.HTTPClient = hc
	}
	return r
}

// WithTimeout bounds every outbound request.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	if d > 0 {
		r.client.HTTPClient.Timeout = d
	}
	return r
}

// WithFallback selects the endpoint used for pages that are not playable.
func (r *Resolver) WithFallback(f Fallback) *Resolver {
	r.fallback = f
	return r
}

// WithInnertubeClient sets the client name and version used by the
// innertube fallback.
func (r *Resolver) WithInnertubeClient(name, version string) *Resolver {
	r.itName = strings.TrimSpace(name)
	r.itVer = strings.TrimSpace(version)
	return r
}

// WithCache replaces the player script cache.
func (r *Resolver) WithCache(c *cache.Cache) *Resolver {
	if c != nil {
		r.scripts = c
		r.programs = cipher.NewProgramCache(c.Version(), 0)
	}
	return r
}

// WithProgramCache replaces the compiled program memo.
func (r *Resolver) WithProgramCache(p *cipher.ProgramCache) *Resolver {
	if p != nil {
		r.programs = p
	}
	return r
}

// WithVerify cross-checks every newly compiled program in e. A nil
// engine disables verification.
func (r *Resolver) WithVerify(e cipher.Engine) *Resolver {
	r.engine = e
	return r
}

// WithFormat sets a format selector and optional desired extension for
// Download. Examples: "itag=22", "best", "height<=480".
func (r *Resolver) WithFormat(selector, ext string) *Resolver {
	r.options.FormatSelector = selector
	r.options.DesiredExt = strings.TrimPrefix(strings.ToLower(ext), ".")
	return r
}

// WithOutputPath sets the download destination. A directory gets a file
// name derived from the title and MIME type.
func (r *Resolver) WithOutputPath(path string) *Resolver {
	r.options.OutputPath = path
	return r
}

// WithProgress registers a callback that receives download progress.
func (r *Resolver) WithProgress(f func(Progress)) *Resolver {
	r.options.ProgressFunc = f
	return r
}

// WithRateLimit sets a download rate limit in bytes per second. Zero disables limiting.
func (r *Resolver) WithRateLimit(bytesPerSecond int64) *Resolver {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	r.options.RateLimitBps = bytesPerSecond
	return r
}

// timedOut reports whether err came from a cancelled or expired request.
func timedOut(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// fetchErr classifies a transport failure.
func fetchErr(op string, err error) error {
	return errs.Wrap(errs.KindFetchFailed, op, err)
}

// Resolve fetches the watch page for input and returns its streams with
// final URLs. input is a video id or any supported URL form.
func (r *Resolver) Resolve(ctx context.Context, input string) (*catalog.Catalog, error) {
	const op = "ytlinks.Resolve"

	id, err := watch.ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	log := r.log.With(map[string]interface{}{"rid": uuid.NewString(), "video": id})
	start := time.Now()
	log.Info("resolving")

	resp, err := r.client.Get(ctx, watch.WatchURL(r.origin, id))
	if err != nil {
		return nil, fetchErr(op, err)
	}
	page, err := watch.Analyze(resp.Status, resp.Body, r.origin)
	if err != nil {
		log.Warn("watch page rejected", map[string]interface{}{"status": resp.Status, "error": err.Error()})
		return nil, err
	}

	payload := page.Payload
	if page.State == watch.StateRequiresFallbackQuery {
		fb, err := r.fallbackPayload(ctx, id, page)
		switch {
		case errs.KindOf(err) == errs.KindRateLimited || errs.KindOf(err) == errs.KindCaptchaChallenge:
			return nil, err
		case client.IsTransport(err) || timedOut(err):
			return nil, fetchErr(op, err)
		case err != nil:
			log.Warn("fallback query failed", map[string]interface{}{"error": err.Error()})
		case fb != nil:
			payload = fb
		}
	}
	if payload == nil {
		return nil, errs.Newf(errs.KindPlayerPayloadNotFound, op, "video %s", id)
	}

	entries, skipped := formats.Entries(payload)
	for _, s := range skipped {
		log.Warn("skipped payload entry", map[string]interface{}{"error": s.Error()})
	}

	res, err := formats.Resolve(entries, func() (cipher.Program, error) {
		return r.program(ctx, page.PlayerScriptURL, log)
	})
	if err != nil {
		log.Error("format resolution failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	if len(res.Formats) == 0 {
		if status := watch.PlayabilityStatus(payload); status != "OK" {
			return nil, errs.Newf(errs.KindUnplayable, op, "%s: %s", status, watch.PlayabilityReason(payload))
		}
	}

	log.Info("resolved", map[string]interface{}{
		"formats": len(res.Formats),
		"dropped": len(res.Dropped) + len(skipped),
		"elapsed": time.Since(start).String(),
	})
	return catalog.New(res.Formats, watch.Details(payload)), nil
}

// fallbackPayload issues the single fallback query for a page that is
// not directly playable.
func (r *Resolver) fallbackPayload(ctx context.Context, id string, page *watch.Page) (*simplejson.Json, error) {
	const op = "ytlinks.fallback"

	if r.fallback == FallbackInnerTube {
		it := innertube.New(r.client, r.origin).WithClient(r.itName, r.itVer)
		return it.Player(ctx, id, page.APIKey, page.ClientVersion)
	}

	resp, err := r.client.Get(ctx, watch.VideoInfoURL(r.origin, id))
	if err != nil {
		return nil, fetchErr(op, err)
	}
	switch watch.DetectBlock(resp.Status, resp.Body) {
	case watch.BlockRateLimited:
		return nil, errs.Newf(errs.KindRateLimited, op, "status %d", resp.Status)
	case watch.BlockCaptchaChallenge:
		return nil, errs.Newf(errs.KindCaptchaChallenge, op, "status %d", resp.Status)
	}
	if !resp.OK() {
		return nil, errs.Newf(errs.KindFetchFailed, op, "unexpected status %d", resp.Status)
	}
	return watch.ParseVideoInfo(resp.Body)
}

// program returns the cipher program of the player script at scriptURL,
// compiling it at most once per script URL and cache version.
func (r *Resolver) program(ctx context.Context, scriptURL string, log *logger.ComponentLogger) (cipher.Program, error) {
	const op = "ytlinks.program"
	if scriptURL == "" {
		return nil, errs.Newf(errs.KindCipherProgramNotFound, op, "no player script url")
	}
	if c, ok := r.programs.Get(scriptURL); ok {
		return c.Program, nil
	}

	entry, hit, err := r.scripts.GetOrFetch(ctx, scriptURL, func(ctx context.Context, u string) (int, []byte, error) {
		resp, err := r.client.Get(ctx, u)
		if err != nil {
			return 0, nil, err
		}
		return resp.Status, resp.Body, nil
	})
	if err != nil {
		return nil, fetchErr(op, err)
	}
	if entry.Status != http.StatusOK {
		return nil, errs.Newf(errs.KindFetchFailed, op, "player script status %d", entry.Status)
	}

	compiled, err := cipher.Compile(string(entry.Body))
	if err != nil {
		return nil, err
	}
	if r.engine != nil {
		if err := cipher.Verify(compiled, r.engine, "", 0); err != nil {
			return nil, err
		}
	}
	r.programs.Put(scriptURL, compiled)
	log.Debug("compiled cipher program", map[string]interface{}{
		"script": scriptURL, "cached": hit, "program": compiled.Program.String(),
	})
	return compiled.Program, nil
}

// Result is the outcome of resolving one input in a batch.
type Result struct {
	Input   string
	Catalog *catalog.Catalog
	Err     error
}

// ResolveAll resolves inputs one after another. A failing input is
// logged and recorded in its Result; the batch carries on. Only a
// cancelled context stops it early.
func (r *Resolver) ResolveAll(ctx context.Context, inputs []string) ([]Result, error) {
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		c, err := r.Resolve(ctx, in)
		if err != nil {
			r.log.Warn("skipping input", map[string]interface{}{"input": in, "error": err.Error()})
		}
		results = append(results, Result{Input: in, Catalog: c, Err: err})
	}
	return results, nil
}

// Download resolves input, picks a stream with the configured selector
// and saves it. It returns the chosen stream and the written path.
func (r *Resolver) Download(ctx context.Context, input string) (types.StreamFormat, string, error) {
	c, err := r.Resolve(ctx, input)
	if err != nil {
		return types.StreamFormat{}, "", err
	}
	f, ok := c.Select(r.options.FormatSelector, r.options.DesiredExt)
	if !ok {
		return types.StreamFormat{}, "", errs.Newf(errs.KindUnplayable, "ytlinks.Download", "no streams for %s", input)
	}

	title := ""
	if d := c.Details(); d != nil {
		title = d.Title
	}
	out := downloader.OutputPath(r.options.OutputPath, title, f)

	var progress func(downloader.Progress)
	if pf := r.options.ProgressFunc; pf != nil {
		progress = func(p downloader.Progress) {
			pf(Progress{TotalSize: p.TotalSize, DownloadedSize: p.DownloadedSize, Percent: p.Percent})
		}
	}
	dl := downloader.New(r.client.HTTPClient, progress, r.options.RateLimitBps)
	if err := dl.Download(ctx, f.URL, out); err != nil {
		return f, "", fmt.Errorf("download itag %d: %w", f.Itag, err)
	}
	return f, out, nil
}
