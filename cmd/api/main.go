// The api binary is the read path: it serves cached feed payloads and the
// fetch-through weather endpoints. It shares nothing with the worker except
// the cache.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/api"
	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/config"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/httpclient"
	"github.com/kaosmaps/kaos-worker/internal/logger"
	"github.com/kaosmaps/kaos-worker/internal/metrics"
	"github.com/kaosmaps/kaos-worker/internal/observability"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "kaos-worker",
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	provider := metrics.Init(metrics.BuildInfo{Version: Version})
	observability.Init(provider.Registerer())

	appLog.Info("starting api", "version", Version, "addr", cfg.APIAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.Open(ctx, cache.Options{
		Mode:      cfg.CacheMode,
		RedisAddr: cfg.RedisAddr,
		RESTURL:   cfg.CacheRESTURL,
		RESTToken: cfg.CacheRESTToken,
		OpTimeout: cfg.CacheOpTimeout,
	})
	if err != nil {
		// degrade open: worker-owned feeds answer 503, fetch-through
		// weather keeps serving uncached
		appLog.Warn("cache backend unavailable; starting without cache", "err", err)
		store = nil
	} else {
		defer func() { _ = store.Close() }()
	}

	clk := clockwork.NewRealClock()
	fc := fetch.New(httpclient.NewOutbound(), clk, appLog)
	srv := api.NewServer(store, fc, clk, appLog, cfg.OpenWeatherMapKey)

	if err := api.Run(ctx, cfg.APIAddr, srv); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("api exiting on error", "err", err)
		return 1
	}
	appLog.Info("api stopped")
	return 0
}
