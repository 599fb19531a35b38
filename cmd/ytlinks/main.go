package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ytget/ytlinks"
	"github.com/ytget/ytlinks/catalog"
	"github.com/ytget/ytlinks/client"
	"github.com/ytget/ytlinks/internal/cache"
	"github.com/ytget/ytlinks/internal/logger"
	"github.com/ytget/ytlinks/internal/relay"
	"github.com/ytget/ytlinks/youtube/cipher"
)

type options struct {
	format      string
	ext         string
	output      string
	noProgress  bool
	timeout     time.Duration
	ua          string
	proxy       string
	rateLimit   string
	fallback    string
	itClient    string
	itVersion   string
	verify      string
	cacheDir    string
	cacheTTL    time.Duration
	cacheVer    string
	split       string
	save        string
	load        string
	download    bool
	serve       string
	logConfig   string
	logLevel    string
	logMirror   string
	janitorSpec string
}

func main() {
	var o options
	flag.StringVar(&o.format, "format", "", "Format selector (e.g., 'itag=22', 'best', 'height<=480')")
	flag.StringVar(&o.ext, "ext", "", "Desired extension (e.g., 'mp4', 'webm')")
	flag.StringVar(&o.output, "output", "", "Download path (file or directory). Empty derives from title + MIME")
	flag.BoolVar(&o.noProgress, "no-progress", false, "Disable progress output")
	flag.DurationVar(&o.timeout, "http-timeout", 30*time.Second, "HTTP timeout (e.g., 30s, 1m)")
	flag.StringVar(&o.ua, "ua", "", "Override User-Agent header")
	flag.StringVar(&o.proxy, "proxy", "", "Proxy URL (http/https/socks)")
	flag.StringVar(&o.rateLimit, "rate-limit", "", "Download rate limit (e.g., 2MiB/s, 500KiB/s)")
	flag.StringVar(&o.fallback, "fallback", "videoinfo", "Fallback endpoint for unplayable pages: videoinfo or innertube")
	flag.StringVar(&o.itClient, "innertube-client", "", "Innertube client name (e.g., WEB, ANDROID)")
	flag.StringVar(&o.itVersion, "innertube-version", "", "Innertube client version")
	flag.StringVar(&o.verify, "verify", "", "Cross-check compiled programs with a JS engine: otto or goja")
	flag.StringVar(&o.cacheDir, "cache-dir", "", "Persist player scripts under this directory")
	flag.DurationVar(&o.cacheTTL, "cache-ttl", 24*time.Hour, "Player script cache lifetime (0 keeps entries forever)")
	flag.StringVar(&o.cacheVer, "cache-version", cache.DefaultVersion, "Cache version tag")
	flag.StringVar(&o.split, "split", "", "Print one video and one audio stream: best, medium or worst")
	flag.StringVar(&o.save, "save", "", "Save the resolved streams to this JSON file")
	flag.StringVar(&o.load, "load", "", "Print streams from a JSON file written by -save and exit")
	flag.BoolVar(&o.download, "download", false, "Download the selected stream instead of printing links")
	flag.StringVar(&o.serve, "serve", "", "Serve the HTTP API on this address (e.g., :8080)")
	flag.StringVar(&o.logConfig, "log-config", "", "Logger JSON config file (defaults to YTLINKS_LOG_* env)")
	flag.StringVar(&o.logLevel, "log-level", "", "Override log level (TRACE..ERROR)")
	flag.StringVar(&o.logMirror, "log-mirror", "", "Also write JSON log records to this file")
	flag.StringVar(&o.janitorSpec, "cache-janitor", cache.DefaultJanitorSpec, "Cron spec for pruning the cache in -serve mode")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <video_id_or_url>...\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := setupLogging(o); err != nil {
		fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, o options, args []string) error {
	if o.load != "" {
		c, err := catalog.LoadFile(o.load)
		if err != nil {
			return err
		}
		return printCatalog(c, o)
	}

	r, scripts, err := newResolver(o)
	if err != nil {
		return err
	}

	if o.serve != "" {
		return serve(ctx, o, r, scripts)
	}

	if len(args) == 0 {
		return errUsage
	}

	if o.download {
		return download(ctx, o, r, args)
	}

	results, err := r.ResolveAll(ctx, args)
	if err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Input, res.Err)
			failed++
			continue
		}
		if err := printCatalog(res.Catalog, o); err != nil {
			return err
		}
		if o.save != "" {
			if err := catalog.SaveFile(o.save, res.Catalog); err != nil {
				return err
			}
		}
	}
	if failed == len(results) {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func setupLogging(o options) error {
	cfg := logger.EnvironmentConfig()
	if o.logConfig != "" {
		loaded, err := logger.LoadConfigFromFile(o.logConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Level = o.logLevel
	}
	l, err := logger.CreateLoggerFromConfig(cfg)
	if err != nil {
		return err
	}
	if o.logMirror != "" {
		f, err := os.OpenFile(o.logMirror, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log mirror: %w", err)
		}
		l.AddMirror(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	logger.SetGlobalLogger(l)
	return nil
}

func newResolver(o options) (*ytlinks.Resolver, *cache.Cache, error) {
	fb, err := ytlinks.ParseFallback(o.fallback)
	if err != nil {
		return nil, nil, err
	}

	copts := cache.Options{TTL: o.cacheTTL, Version: o.cacheVer}
	if o.cacheDir != "" {
		fs, err := cache.NewFileStore(o.cacheDir)
		if err != nil {
			return nil, nil, err
		}
		copts.Store = fs
	}
	scripts := cache.New(copts)

	c := client.NewWith(client.Config{Timeout: o.timeout, UserAgent: o.ua, ProxyURL: o.proxy})
	r := ytlinks.New().
		WithClient(c).
		WithFallback(fb).
		WithInnertubeClient(o.itClient, o.itVersion).
		WithCache(scripts).
		WithFormat(o.format, o.ext)

	if o.verify != "" {
		engine, err := cipher.EngineByName(o.verify)
		if err != nil {
			return nil, nil, err
		}
		r = r.WithVerify(engine)
	}
	return r, scripts, nil
}

func printCatalog(c *catalog.Catalog, o options) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if o.split != "" {
		q, err := catalog.ParseQuality(o.split)
		if err != nil {
			return err
		}
		s, err := c.Split(q)
		if err != nil {
			return err
		}
		return enc.Encode(s)
	}
	if o.format != "" || o.ext != "" {
		f, ok := c.Select(o.format, o.ext)
		if !ok {
			return errors.New("no streams")
		}
		return enc.Encode(f)
	}
	return enc.Encode(c)
}

func download(ctx context.Context, o options, r *ytlinks.Resolver, args []string) error {
	if o.output != "" {
		r = r.WithOutputPath(o.output)
	}
	if bps := parseRate(o.rateLimit); bps > 0 {
		r = r.WithRateLimit(bps)
	}
	if !o.noProgress {
		r = r.WithProgress(func(p ytlinks.Progress) {
			if p.TotalSize > 0 {
				_, _ = fmt.Fprintf(os.Stdout, "Downloaded %.1f%%\r", p.Percent)
			}
		})
	}
	var failed []string
	for i, in := range args {
		_, _ = fmt.Fprintf(os.Stdout, "Downloading [%d/%d] %s...\n", i+1, len(args), in)
		f, path, err := r.Download(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stderr, "Error downloading %s: %v\n", in, err)
			failed = append(failed, in)
			continue
		}
		_, _ = fmt.Fprintf(os.Stdout, "\nSaved itag %d: %s\n", f.Itag, path)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func serve(ctx context.Context, o options, r *ytlinks.Resolver, scripts *cache.Cache) error {
	log := logger.WithComponent(logger.ComponentApp)

	stopJanitor, err := scripts.StartJanitor(o.janitorSpec)
	if err != nil {
		return err
	}
	defer stopJanitor()

	srv := &http.Server{
		Addr:              o.serve,
		Handler:           relay.NewRouter(r, relay.NewStreamer(nil)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("serving", map[string]interface{}{"addr": o.serve})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
