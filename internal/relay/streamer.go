// Package relay passes stream bytes from the media host to an HTTP client
// and exposes resolved catalogs over a small HTTP API.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ytget/ytlinks/internal/logger"
)

const (
	defaultBufferSize = 64 * 1024
	userAgentValue    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// forwardedHeaders are the only upstream headers copied to the client.
var forwardedHeaders = []string{"Content-Type", "Content-Length", "Accept-Ranges", "Content-Range"}

// ErrUpstreamStatus is returned when the media host answered with a
// status the relay does not pass through.
var ErrUpstreamStatus = errors.New("relay: unexpected upstream status")

// Streamer copies a remote stream to a client response.
type Streamer struct {
	Client     *http.Client
	BufferSize int

	log *logger.ComponentLogger
}

// NewStreamer returns a Streamer using hc, or a client without an
// overall timeout when hc is nil. Long streams must not be cut off by
// a request deadline; cancellation comes from the request context.
func NewStreamer(hc *http.Client) *Streamer {
	if hc == nil {
		hc = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 30 * time.Second,
		}}
	}
	return &Streamer{
		Client:     hc,
		BufferSize: defaultBufferSize,
		log:        logger.WithComponent(logger.ComponentRelay),
	}
}

func passThrough(status int) bool {
	switch status {
	case http.StatusOK, http.StatusPartialContent, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// Stream fetches target and writes it to w. The client's Range header
// is sent upstream. Statuses 200, 206, 403 and 404 are relayed as is;
// anything else becomes 502 Bad Gateway.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, target string) error {
	return s.StreamContext(r.Context(), w, r.Header.Get("Range"), target)
}

// StreamContext is Stream with an explicit context and range value.
func (s *Streamer) StreamContext(ctx context.Context, w http.ResponseWriter, rangeHeader, target string) error {
	log := s.log
	if log == nil {
		log = logger.WithComponent(logger.ComponentRelay)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return fmt.Errorf("relay request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentValue)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return fmt.Errorf("relay fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !passThrough(resp.StatusCode) {
		log.Warn("upstream status not relayed", map[string]interface{}{"status": resp.StatusCode})
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	for _, h := range forwardedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	size := s.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	n, err := io.CopyBuffer(flushWriter{w}, resp.Body, make([]byte, size))
	log.Debug("relayed", map[string]interface{}{"status": resp.StatusCode, "bytes": n, "range": rangeHeader})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("relay copy: %w", err)
	}
	return nil
}

// flushWriter flushes after every write so clients see bytes as they arrive.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}
