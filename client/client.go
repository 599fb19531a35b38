package client

import (
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ytget/ytlinks/internal/logger"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultMaxBodyBytes   = 32 << 20

	userAgentValue      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptValue         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageValue = "en-US,en;q=0.5"
	acceptEncodingValue = "gzip, deflate, br"
)

func newTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: connectTimeout,
		ForceAttemptHTTP2:     true,
		// Bodies are decoded by decodeBody, which also handles br.
		DisableCompression: true,
		ReadBufferSize:     16 * 1024,
		WriteBufferSize:    16 * 1024,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// ErrBodyTooLarge is returned when a response body, encoded or decoded,
// exceeds the client's MaxBodyBytes.
var ErrBodyTooLarge = errors.New("client: response body too large")

// TransportError reports a request that failed before a complete
// response body was read: dial, TLS, timeout, reset or oversized body.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration
	// ConnectTimeout bounds dialing, TLS and waiting for response headers.
	ConnectTimeout time.Duration
	UserAgent      string
	ProxyURL       string
	// Headers are added to every request.
	Headers map[string]string
	// Jar overrides the in-memory cookie jar.
	Jar http.CookieJar
	// MaxBodyBytes caps how much of a body is read.
	MaxBodyBytes int64
}

// Client fetches pages the way a desktop browser does: browser-like
// headers, a session cookie jar and transparent body decoding.
type Client struct {
	HTTPClient   *http.Client
	UserAgent    string
	Headers      http.Header
	MaxBodyBytes int64
}

// Response is a fully read and decoded HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
}

// OK reports whether the status is 200.
func (r *Response) OK() bool { return r.Status == http.StatusOK }

// New creates a Client with default timeouts and headers.
func New() *Client {
	return NewWith(Config{})
}

// NewWith creates a new client with provided config. Zero values use defaults.
func NewWith(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgentValue
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	tr := newTransport(connectTimeout)
	if cfg.ProxyURL != "" {
		if proxyFunc, err := proxyFromURLString(cfg.ProxyURL); err == nil {
			tr.Proxy = proxyFunc
		} else {
			logger.WithComponent(logger.ComponentClient).Warn("ignoring invalid proxy url", map[string]interface{}{
				"proxy": cfg.ProxyURL,
				"error": err.Error(),
			})
		}
	}

	jar := cfg.Jar
	if jar == nil {
		// cookiejar.New only fails on a bad PublicSuffixList.
		jar, _ = cookiejar.New(nil)
	}

	headers := http.Header{}
	headers.Set("Accept", acceptValue)
	headers.Set("Accept-Language", acceptLanguageValue)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: tr,
			Jar:       jar,
		},
		UserAgent:    ua,
		Headers:      headers,
		MaxBodyBytes: maxBody,
	}
}

// Get fetches rawURL. Non-2xx statuses are not errors; callers inspect
// Response.Status.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post sends body to rawURL with the given content type and extra headers.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body []byte, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

// Do sends req with the client's default headers and reads the decoded body.
func (c *Client) Do(req *http.Request) (*Response, error) {
	for k, vs := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = vs
		}
	}
	if req.Header.Get("User-Agent") == "" {
		ua := c.UserAgent
		if ua == "" {
			ua = userAgentValue
		}
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Accept-Encoding", acceptEncodingValue)

	log := logger.WithComponent(logger.ComponentClient)
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body, limit)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: fmt.Errorf("read body: %w", err)}
	}

	log.Debug("request done", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.Redacted(),
		"status":  resp.StatusCode,
		"bytes":   len(body),
		"elapsed": time.Since(start).String(),
	})

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
		URL:    resp.Request.URL.String(),
	}, nil
}

// decodeBody reads r according to the Content-Encoding value. Both the
// encoded and the decoded stream are capped at limit bytes.
func decodeBody(encoding string, raw io.Reader, limit int64) ([]byte, error) {
	r := &cappedReader{r: raw, left: limit}
	var reader io.Reader = r
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(r)
	case "deflate":
		// Servers send either zlib-wrapped or raw deflate data.
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			reader = zr
		} else {
			reader = flate.NewReader(bytes.NewReader(raw))
		}
	case "bzip2":
		reader = bzip2.NewReader(r)
	}
	return io.ReadAll(&cappedReader{r: reader, left: limit})
}

// cappedReader fails with ErrBodyTooLarge once more than left bytes
// have been read.
type cappedReader struct {
	r    io.Reader
	left int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, ErrBodyTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, ErrBodyTooLarge
	}
	return n, err
}

// proxyFromURLString parses a proxy URL and returns a Proxy function.
func proxyFromURLString(raw string) (func(*http.Request) (*url.URL, error), error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy url %q needs scheme and host", raw)
	}
	return http.ProxyURL(u), nil
}
