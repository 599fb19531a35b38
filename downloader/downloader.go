// Package downloader saves a resolved stream URL to disk with ranged
// requests, resume, retries and an optional rate limit.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/ytlinks/internal/logger"
	"github.com/ytget/ytlinks/internal/mimeext"
	"github.com/ytget/ytlinks/internal/sanitize"
	"github.com/ytget/ytlinks/types"
)

const (
	defaultChunkSizeBytes  = 1 << 20 // 1MB
	defaultMaxRetries      = 3       // chunk retries
	temporaryFileSuffix    = ".part"
	initialBackoffDuration = 200 * time.Millisecond
	maxBackoffDuration     = 3 * time.Second
	copyBufferSizeBytes    = 32 * 1024

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// ErrEmptyDownload is returned when the server sent no bytes.
var ErrEmptyDownload = errors.New("downloader: empty download")

// Progress holds information about download progress.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// Downloader fetches media in fixed-size ranges.
type Downloader struct {
	Client       *http.Client
	ProgressFunc func(Progress)

	chunkSize    int64
	maxRetries   int
	rateLimitBps int64
	log          *logger.ComponentLogger
}

// New creates a new downloader instance with sane defaults.
// If client is nil, a default http.Client is used. rateLimitBps=0 disables limiting.
func New(client *http.Client, progressFunc func(Progress), rateLimitBps int64) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	if rateLimitBps < 0 {
		rateLimitBps = 0
	}
	return &Downloader{
		Client:       client,
		ProgressFunc: progressFunc,
		chunkSize:    defaultChunkSizeBytes,
		maxRetries:   defaultMaxRetries,
		rateLimitBps: rateLimitBps,
		log:          logger.WithComponent(logger.ComponentDownloader),
	}
}

func (d *Downloader) logger() *logger.ComponentLogger {
	if d.log == nil {
		d.log = logger.WithComponent(logger.ComponentDownloader)
	}
	return d.log
}

// OutputPath derives where a stream should be written. An empty dest
// yields a safe file name from the title and the stream's MIME type in
// the working directory; a directory dest gets that name inside it; any
// other dest is used as is.
func OutputPath(dest, title string, f types.StreamFormat) string {
	name := sanitize.ToSafeFilename(title, mimeext.ExtFromMime(f.MimeType))
	if dest == "" {
		return name
	}
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		return filepath.Join(dest, name)
	}
	return dest
}

func isGoogleVideoHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Host)
	return strings.HasSuffix(h, ".googlevideo.com") || h == "googlevideo.com"
}

func newRangeRequest(ctx context.Context, method, urlStr string, start, end int64) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgentValue)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Cache-Control", "no-cache")
	if !isGoogleVideoHost(urlStr) {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	return req, nil
}

// sizeFromHeaders reads the total size from Content-Range, falling back
// to Content-Length.
func sizeFromHeaders(h http.Header) (int64, bool) {
	if cr := h.Get("Content-Range"); cr != "" {
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			if v, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return v, true
			}
		}
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// detectTotalSize tries HEAD first, then GET range 0-1. Stream hosts
// reject HEAD, so they go straight to the ranged GET.
func (d *Downloader) detectTotalSize(ctx context.Context, urlStr string) (int64, error) {
	methods := []string{http.MethodHead, http.MethodGet}
	if isGoogleVideoHost(urlStr) {
		methods = methods[1:]
	}
	for _, m := range methods {
		req, err := newRangeRequest(ctx, m, urlStr, 0, 1)
		if err != nil {
			return 0, err
		}
		resp, err := d.Client.Do(req)
		if err != nil {
			if m == http.MethodGet {
				return 0, err
			}
			continue
		}
		_ = resp.Body.Close()
		if size, ok := sizeFromHeaders(resp.Header); ok {
			return size, nil
		}
	}
	return 0, errors.New("cannot determine total size")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleepForRate enforces simple rate limit based on bytes written in this step.
func (d *Downloader) sleepForRate(ctx context.Context, written int64) error {
	if d.rateLimitBps <= 0 || written <= 0 {
		return nil
	}
	return sleepCtx(ctx, time.Duration(int64(time.Second)*written/d.rateLimitBps))
}

// fetchRange requests one range, retrying with exponential backoff.
func (d *Downloader) fetchRange(ctx context.Context, urlStr string, start, end int64) (*http.Response, error) {
	var lastErr error
	backoff := initialBackoffDuration
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		req, err := newRangeRequest(ctx, http.MethodGet, urlStr, start, end)
		if err != nil {
			return nil, err
		}
		resp, err := d.Client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return resp, nil
		}
		if err == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			err = fmt.Errorf("HTTP status %d", resp.StatusCode)
		}
		lastErr = err
		d.logger().Warn("range request failed", map[string]interface{}{
			"attempt": attempt + 1,
			"range":   fmt.Sprintf("%d-%d", start, end),
			"error":   err.Error(),
		})
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxBackoffDuration {
			backoff = maxBackoffDuration
		}
	}
	return nil, lastErr
}

// Download downloads a file by URL and saves it to outputPath. It supports
// resuming from an existing partial file and reports progress.
func (d *Downloader) Download(ctx context.Context, urlStr string, outputPath string) error {
	log := d.logger().With(map[string]interface{}{"output": outputPath})
	if d.chunkSize <= 0 {
		d.chunkSize = defaultChunkSizeBytes
	}
	if d.maxRetries <= 0 {
		d.maxRetries = defaultMaxRetries
	}

	tmpPath := outputPath + temporaryFileSuffix
	outFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open partial file: %w", err)
	}
	defer func() { _ = outFile.Close() }()

	info, err := outFile.Stat()
	if err != nil {
		return fmt.Errorf("stat partial file: %w", err)
	}
	downloaded := info.Size()
	if downloaded > 0 {
		log.Info("resuming download", map[string]interface{}{"have": downloaded})
	}

	totalSize, err := d.detectTotalSize(ctx, urlStr)
	if err != nil {
		log.Warn("total size unknown", map[string]interface{}{"error": err.Error()})
		totalSize = 0
	}

	buf := make([]byte, copyBufferSizeBytes)
	for totalSize == 0 || downloaded < totalSize {
		start := downloaded
		end := start + d.chunkSize - 1
		if totalSize > 0 && end >= totalSize {
			end = totalSize - 1
		}

		resp, err := d.fetchRange(ctx, urlStr, start, end)
		if err != nil {
			return fmt.Errorf("download chunk %d-%d: %w", start, end, err)
		}

		read := int64(0)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := outFile.Write(buf[:n]); werr != nil {
					_ = resp.Body.Close()
					return fmt.Errorf("write chunk: %w", werr)
				}
				downloaded += int64(n)
				read += int64(n)
				if d.ProgressFunc != nil {
					p := Progress{TotalSize: totalSize, DownloadedSize: downloaded}
					if totalSize > 0 {
						p.Percent = float64(downloaded) / float64(totalSize) * 100
					}
					d.ProgressFunc(p)
				}
				if err := d.sleepForRate(ctx, int64(n)); err != nil {
					_ = resp.Body.Close()
					return err
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				_ = resp.Body.Close()
				return fmt.Errorf("read chunk: %w", rerr)
			}
		}
		_ = resp.Body.Close()

		// Unknown size: a short or full-body reply ends the stream.
		if totalSize == 0 && (read < d.chunkSize || resp.StatusCode == http.StatusOK) {
			break
		}
	}

	if downloaded == 0 {
		_ = outFile.Close()
		_ = os.Remove(tmpPath)
		return ErrEmptyDownload
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	log.Info("download complete", map[string]interface{}{"bytes": downloaded})
	return os.Rename(tmpPath, outputPath)
}
