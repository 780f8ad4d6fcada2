package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/roomgate/internal/api"
	"github.com/your-org/roomgate/internal/api/handlers"
	"github.com/your-org/roomgate/internal/api/ws"
	"github.com/your-org/roomgate/internal/auth"
	"github.com/your-org/roomgate/internal/config"
	"github.com/your-org/roomgate/internal/observability"
	"github.com/your-org/roomgate/internal/queue"
	"github.com/your-org/roomgate/internal/schedule"
	"github.com/your-org/roomgate/internal/storage"
	"github.com/your-org/roomgate/internal/vision"
	"github.com/your-org/roomgate/pkg/dto"
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

	slog.Info("starting roomgate admin API", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(ctx); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Relay terminal outcomes and attendance updates to WebSocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create access consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeAccess(ctx, "api-access", func(ctx context.Context, msg jetstream.Msg) error {
		kind := queue.EventKind(msg.Subject())
		if kind == "" {
			return nil
		}
		var head struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(msg.Data(), &head); err != nil {
			slog.Warn("drop malformed access event", "subject", msg.Subject(), "error", err)
			return nil
		}
		hub.BroadcastEvent(&dto.WSEvent{Type: kind, Room: head.Room, Data: msg.Data()})
		return nil
	})
	if err != nil {
		slog.Warn("start access consumer", "error", err)
	}

	// Face enrollment needs the analyzer; the rest of the API works without it
	var embedder handlers.FaceEmbedder
	if destroy, err := vision.InitRuntime(); err != nil {
		slog.Warn("onnx runtime init failed, face enrollment unavailable", "error", err)
	} else {
		defer destroy()
		analyzer, err := vision.NewAnalyzer(cfg.Vision)
		if err != nil {
			slog.Warn("face analyzer init failed, face enrollment unavailable", "error", err)
		} else {
			defer analyzer.Close()
			embedder = analyzer
			slog.Info("face analyzer ready for enrollment")
		}
	}

	if cfg.Server.AdminSecret == "" {
		slog.Warn("no admin secret configured, admin edits are locked")
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		Admin:    auth.SharedSecret(cfg.Server.AdminSecret),
		DB:       db,
		Objects:  minioStore,
		Schedule: schedule.NewService(db),
		Embedder: embedder,
		Hub:      hub,
		Checks: []handlers.Check{
			{Name: "postgres", Ping: db.Ping},
			{Name: "minio", Ping: minioStore.Ping},
			{Name: "nats", Ping: func(context.Context) error { return producer.Ping() }},
		},
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
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
