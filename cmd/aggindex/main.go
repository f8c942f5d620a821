package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/aggindex/internal/api"
	"github.com/aevon-lab/aggindex/internal/cache"
	"github.com/aevon-lab/aggindex/internal/config"
	"github.com/aevon-lab/aggindex/internal/database"
	"github.com/aevon-lab/aggindex/internal/flusher"
	"github.com/aevon-lab/aggindex/internal/indexer"
	"github.com/aevon-lab/aggindex/internal/lock"
	"github.com/aevon-lab/aggindex/internal/migrations"
	"github.com/aevon-lab/aggindex/internal/server"
	"github.com/aevon-lab/aggindex/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "aggindex.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)
	slog.Info("Loaded config",
		"instance", cfg.Indexer.InstanceName,
		"types", len(cfg.Types.Types()),
		"store", cfg.Store.Backend,
		"lock", cfg.Lock.Backend,
		"cache", cfg.Cache.Backend,
	)

	// 3. Initialize Document Store
	var st store.Store
	checks := map[string]server.HealthChecker{}
	switch cfg.Store.Backend {
	case config.BackendHTTP:
		client := store.NewHTTPClient(cfg.Store.URL, cfg.Store.TimeoutDuration())
		st = client
		checks["store"] = client
	default:
		slog.Warn("Using in-memory document store; documents are lost on restart")
		st = store.NewMemory()
	}

	// 4. Initialize PostgreSQL (lock and cache tiers)
	var db *sql.DB
	if cfg.NeedsDatabase() {
		db, err = database.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		if cfg.Cache.Backend == config.BackendPostgres {
			if err := database.RequireTables(context.Background(), db, cache.PostgresTable); err != nil {
				slog.Error("Database schema check failed", "error", err)
				os.Exit(1)
			}
		}
		checks["database"] = server.PingFunc(db.PingContext)
	}

	var locks lock.Manager
	if cfg.Lock.Backend == config.BackendPostgres {
		locks = lock.NewPostgres(db, cfg.Lock.AcquireTimeoutDuration())
	} else {
		locks = lock.NewMemory(cfg.Lock.AcquireTimeoutDuration())
	}

	var aggCache cache.Cache
	if cfg.Cache.Backend == config.BackendPostgres {
		aggCache = cache.NewPostgres(db)
	} else {
		aggCache = cache.NewMemory()
	}

	// 5. Initialize Indexer
	idx := indexer.New(cfg.Types, st, locks, aggCache, indexer.Options{
		AggregateConcurrency: cfg.Indexer.AggregateConcurrency,
	})

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode, checks)
	api.NewService(idx, cfg.Server.MaxBodySizeMB).RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flushDone := make(chan struct{})
	if cfg.Flush.Enabled {
		scheduler := flusher.NewScheduler(idx, flusher.Options{
			Interval:  cfg.Flush.IntervalDuration(),
			BatchSize: cfg.Flush.BatchSize,
			Workers:   cfg.Flush.Workers,
		})
		go func() {
			defer close(flushDone)
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Flush scheduler stopped with error", "error", err)
			}
		}()
	} else {
		close(flushDone)
		slog.Warn("Flush scheduler disabled by config; aggregates stay cached until flushed")
	}

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
		cancel()
	}

	// The final flush needs the database still open.
	<-flushDone
	slog.Info("Shutdown complete")
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
