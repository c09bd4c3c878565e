// The worker is the collection engine: it runs every enabled collector on
// its period, holds the stream collectors' sockets, and serves the health
// surface.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/config"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/health"
	"github.com/kaosmaps/kaos-worker/internal/httpclient"
	"github.com/kaosmaps/kaos-worker/internal/invalidation/kafkaconsumer"
	"github.com/kaosmaps/kaos-worker/internal/logger"
	"github.com/kaosmaps/kaos-worker/internal/metrics"
	"github.com/kaosmaps/kaos-worker/internal/observability"
	"github.com/kaosmaps/kaos-worker/internal/scheduler"
	"github.com/kaosmaps/kaos-worker/internal/source"

	_ "github.com/kaosmaps/kaos-worker/internal/collectors/aircraft"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/airquality"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/aprs"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/aurora"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/fires"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/gdacs"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/gfs"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/kiwisdr"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/lightning"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/marine"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/prociv"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/seismic"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/spaceweather"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/tec"
	_ "github.com/kaosmaps/kaos-worker/internal/collectors/warnings"
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
		Component: "worker",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	provider := metrics.Init(metrics.BuildInfo{Version: Version})
	observability.Init(provider.Registerer())

	appLog.Info("starting worker", "version", Version, "cache_mode", cfg.CacheMode)

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
		appLog.Error("cache backend unavailable", "err", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	clock := clockwork.NewRealClock()
	fc := fetch.New(httpclient.NewOutbound(), clock, appLog)

	deps := collector.Deps{Cfg: cfg, Logger: appLog, Store: store, Fetch: fc, Clock: clock}
	cs, ss, err := collector.Build(deps)
	if err != nil {
		appLog.Error("collector setup failed", "err", err)
		return 1
	}

	generics, err := source.BuildAll(cfg.SourcesDir, store, fc, appLog, clock)
	if err != nil {
		appLog.Error("source declarations failed", "err", err)
		return 1
	}
	cs = append(cs, generics...)
	appLog.Info("collectors ready", "interval", len(cs), "stream", len(ss))

	sched := scheduler.New(appLog, clock, cs, ss)
	sched.Start(ctx)
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h := health.NewHandler(store, sched, appLog)
		return health.Run(gctx, cfg.HealthAddr, h, provider.Handler(), appLog)
	})

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.Config{
			Brokers: cfg.Invalidation.Brokers,
			Topic:   cfg.Invalidation.Topic,
			GroupID: cfg.Invalidation.GroupID,
		}, appLog, store)
		g.Go(func() error { return consumer.Start(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("worker exiting on error", "err", err)
		return 1
	}
	appLog.Info("worker stopped")
	return 0
}
