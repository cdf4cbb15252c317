// Command docreader serves a read-only markdown document root over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/razvandimescu/docreader/internal/api"
	"github.com/razvandimescu/docreader/internal/cache"
	"github.com/razvandimescu/docreader/internal/config"
	"github.com/razvandimescu/docreader/internal/highlight"
	"github.com/razvandimescu/docreader/internal/logging"
	"github.com/razvandimescu/docreader/internal/metrics"
	"github.com/razvandimescu/docreader/internal/search"
	"github.com/razvandimescu/docreader/internal/watch"
)

var (
	// Build info (set via ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var showVersion = flag.Bool("version", false, "Show version information")

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: docreader [options] [document-root]")
		fmt.Fprintln(os.Stderr, "\nThe root may also be set with DOCUMENT_ROOT.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("docreader %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.DocumentRoot = flag.Arg(0)
	}

	if err := logging.Init(cfg.Logging()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync() }()

	if err := run(cfg); err != nil {
		logging.L().Error("server failed", zap.Error(err))
		_ = logging.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := logging.L()

	searchCache := cache.New[*search.Result](cache.Options{
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
		Name:       "search",
	})
	highlightCache := cache.New[string](cache.Options{
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
		Name:       "highlight",
	})
	highlighter := highlight.NewHighlighter(highlight.Shared, highlightCache)

	// A missing or unusable root is not fatal: engine routes answer 503
	// until the process is restarted with a usable one.
	eng, rootErr := api.OpenEngine(cfg.DocumentRoot, api.EngineOptions{
		PreferencesFile: cfg.PreferencesFile,
		Search: search.Options{
			DefaultLimit: cfg.SearchDefaultLimit,
			MaxLimit:     cfg.SearchMaxLimit,
			Cache:        searchCache,
		},
	})
	if rootErr != nil {
		logger.Warn("document root not usable", zap.String("root", cfg.DocumentRoot), zap.Error(rootErr))
	} else {
		logger.Info("serving document root", zap.String("root", eng.Sandbox.Root()))
	}

	var watcher *watch.Watcher
	if eng != nil && cfg.WatchRoot {
		watcher = watch.New(watch.DefaultDebounce)
		watcher.OnChange(eng.Search.Invalidate)
		if err := watcher.Watch(eng.Sandbox); err != nil {
			logger.Warn("cannot watch document root for changes", zap.Error(err))
		}
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the highlighter off the request path.
	go func() {
		if _, err := highlight.Shared.Get(); err != nil {
			logger.Warn("highlight engine warm-up failed", zap.Error(err))
		}
	}()
	go pruneLoop(ctx, cfg.CacheTTL, searchCache, highlightCache)

	srv := api.New(api.Options{
		Engine:      eng,
		RootErr:     rootErr,
		Highlighter: highlighter,
		AuthHeader:  cfg.AuthHeader,
	})
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
	return runErr
}

type pruner interface {
	Prune() int
}

// pruneLoop drops expired cache entries that no request has touched.
func pruneLoop(ctx context.Context, every time.Duration, caches ...pruner) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range caches {
				c.Prune()
			}
		}
	}
}
