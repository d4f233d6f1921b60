package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/lineage/internal/api"
	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/config"
	"github.com/your-org/lineage/internal/detector"
	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/internal/observability"
	"github.com/your-org/lineage/internal/queue"
	"github.com/your-org/lineage/internal/storage"
	"github.com/your-org/lineage/internal/vectorindex"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting lineage face service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	media, err := storage.NewMediaStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := media.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// External collaborators
	index := vectorindex.NewHTTPClient(cfg.VectorIndex)
	detect := detector.NewClient(cfg.Detector)

	// Core subsystem
	authz := auth.NewAuthorizer(db)
	indexer := faces.NewIndexer(db, index, producer)
	svc := faces.NewService(faces.ServiceDeps{
		Store:    db,
		Indexer:  indexer,
		Index:    index,
		Media:    media,
		Authz:    authz,
		Events:   producer,
		Detector: detect,
	})
	searcher := faces.NewSearcher(db, index, authz, cfg.Search)
	reconciler := faces.NewReconciler(db, index, indexer, authz, producer)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:     cfg.Server.APIKey,
		DB:         db,
		Media:      media,
		Producer:   producer,
		Service:    svc,
		Searcher:   searcher,
		Reconciler: reconciler,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
