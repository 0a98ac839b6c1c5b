// cmd/assistant-server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"community-assistant/internal/api"
	"community-assistant/internal/assistant/pipeline"
	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/config"
	"community-assistant/internal/common/database"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/observability"
	"community-assistant/internal/recordstore"
	"community-assistant/pkg/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting community assistant...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName)
	defer obs.Shutdown()

	shutdownTracing, err := observability.InitTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	ctx := context.Background()
	reg, err := registry.Default()
	if err != nil {
		zapLog.Fatal("record registry failed", zap.Error(err))
	}
	probes := map[string]api.Probe{}
	adapters := pipeline.Adapters{}

	// --- Cache: Redis, or an in-memory Badger store when Redis is unreachable ---
	var rdb *database.RedisClient
	err = database.RetryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 5, time.Second, log, "Redis connection")

	if err != nil {
		zapLog.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		mem, err := cache.OpenBadger("")
		if err != nil {
			zapLog.Fatal("in-memory cache failed", zap.Error(err))
		}
		defer mem.Close()
		adapters.Cache = mem
	} else {
		defer rdb.Close()
		adapters.Cache = cache.NewRedisStore(rdb.Client)
		probes["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Records: PostgreSQL when enabled, otherwise the seeded memory store ---
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = database.RetryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 10, 2*time.Second, log, "PostgreSQL connection")

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		adapters.Records = recordstore.NewPostgresStore(pg.DB, reg, config.GetDuration(cfg.Database.Postgres.QueryTimeout), log)
		adapters.Directory = recordstore.NewPostgresDirectory(pg.DB)
		adapters.QueryLog = recordstore.NewPostgresQueryLog(pg.DB)
		probes["postgres"] = pg.Ping
	} else {
		mem, err := recordstore.NewMemoryStore(reg)
		if err != nil {
			zapLog.Fatal("seed record store failed", zap.Error(err))
		}
		adapters.Records = mem
		adapters.Directory = recordstore.NewMemoryDirectory(mem)
		zapLog.Info("Using in-memory record store")
	}

	// --- Query log: Elasticsearch takes precedence over the Postgres table ---
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = database.RetryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping()
		}, 10, 2*time.Second, log, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		adapters.QueryLog = recordstore.NewElasticQueryLog(es.Client, cfg.Database.Elasticsearch.QueryLogIndex)
		probes["elasticsearch"] = func(context.Context) error { return es.Ping() }
	}
	if adapters.QueryLog == nil {
		adapters.QueryLog = recordstore.NewMemoryQueryLog()
	}

	p, err := pipeline.Assemble(reg, adapters, cfg.Assistant, clock.System(), obs, log)
	if err != nil {
		zapLog.Fatal("pipeline assembly failed", zap.Error(err))
	}

	// --- Scheduled FAQ stats refresh ---
	var scheduler *cron.Cron
	if cfg.Scheduler.Enabled {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Scheduler.StatsRefreshCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := p.FAQ.RefreshStats(ctx); err != nil {
				zapLog.Warn("FAQ stats refresh failed", zap.Error(err))
				return
			}
			zapLog.Info("FAQ stats refreshed")
		})
		if err != nil {
			zapLog.Fatal("invalid stats refresh schedule", zap.String("spec", cfg.Scheduler.StatsRefreshCron), zap.Error(err))
		}
		scheduler.Start()
		zapLog.Info("Scheduler started", zap.String("statsRefresh", cfg.Scheduler.StatsRefreshCron))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(p, probes, log).Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	zapLog.Info("Community assistant stopped")
}
