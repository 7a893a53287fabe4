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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playhead-lab/playhead/internal/config"
	"github.com/playhead-lab/playhead/internal/ingestion"
	"github.com/playhead-lab/playhead/internal/migrations"
	"github.com/playhead-lab/playhead/internal/progress"
	"github.com/playhead-lab/playhead/internal/projection"
	"github.com/playhead-lab/playhead/internal/server"
	"github.com/playhead-lab/playhead/internal/storage"
	"github.com/playhead-lab/playhead/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "playhead.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	cronInterval, err := time.ParseDuration(cfg.Merge.CronInterval)
	if err != nil {
		slog.Error("Invalid merge interval", "value", cfg.Merge.CronInterval, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize durable snapshot backend
	var (
		snapshotter storage.Snapshotter
		db          *sql.DB
	)
	switch cfg.Storage.Backend {
	case config.BackendFileSystem:
		fs, err := storage.NewFileSystemSnapshotter(cfg.Storage.DataDir)
		if err != nil {
			slog.Error("Failed to initialize filesystem storage", "error", err)
			os.Exit(1)
		}
		snapshotter = fs

	case config.BackendPostgres:
		db, err = postgres.Connect(cfg.Storage.DSN, cfg.Storage.MaxOpenConns, cfg.Storage.MaxIdleConns)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := migrations.RunMigrations(db, cfg.Storage.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		snapshotter = postgres.NewSnapshotAdapter(db)

	case config.BackendMemory:
		slog.Warn("Using in-memory storage backend: state will not survive a restart")
		snapshotter = storage.NewMemorySnapshotter()

	default:
		slog.Error("Unsupported storage backend", "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	// 3. Open the progress store (restores prior state, or starts empty)
	store := progress.Open(ctx, snapshotter)

	// 4. Initialize Services
	scheduler := progress.NewScheduler(cronInterval, store)
	ingestionSvc := ingestion.NewService(store, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(store)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 6. Start Services
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Merge.Enabled {
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	} else {
		slog.Info("Merge scheduler disabled by config")
	}

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
