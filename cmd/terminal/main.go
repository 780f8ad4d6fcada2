package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/roomgate/internal/access"
	"github.com/your-org/roomgate/internal/api"
	"github.com/your-org/roomgate/internal/capture"
	"github.com/your-org/roomgate/internal/config"
	"github.com/your-org/roomgate/internal/gallery"
	"github.com/your-org/roomgate/internal/match"
	"github.com/your-org/roomgate/internal/observability"
	"github.com/your-org/roomgate/internal/queue"
	"github.com/your-org/roomgate/internal/recognition"
	"github.com/your-org/roomgate/internal/schedule"
	"github.com/your-org/roomgate/internal/storage"
	"github.com/your-org/roomgate/internal/vision"
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

	if err := run(cfg); err != nil {
		slog.Error("terminal stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("terminal stopped")
}

func run(cfg *config.Config) error {
	if cfg.Terminal.Room == "" {
		return errors.New("terminal.room is required")
	}
	if cfg.Terminal.Camera == "" {
		return errors.New("terminal.camera is required")
	}
	loc, err := cfg.Access.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting roomgate terminal",
		"room", cfg.Terminal.Room,
		"mode", cfg.Recognition.Mode,
		"camera", cfg.Terminal.Camera,
	)

	// Initialize ONNX Runtime
	destroy, err := vision.InitRuntime()
	if err != nil {
		return err
	}
	defer destroy()

	analyzer, err := vision.NewAnalyzer(cfg.Vision)
	if err != nil {
		return fmt.Errorf("init face analyzer: %w", err)
	}
	defer analyzer.Close()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	src, err := gallerySource(cfg, db)
	if err != nil {
		return err
	}
	g, err := gallery.Load(ctx, src, analyzer.Dim())
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}
	matcher := match.NewMatcher(g, cfg.Recognition.Threshold)

	evaluator := access.NewEvaluator(db, schedule.NewService(db),
		access.WithAdminLevel(cfg.Access.AdminLevel),
		access.WithLocation(loc),
	)

	// Connect to NATS (optional)
	var producer *queue.Producer
	if cfg.NATS.URL != "" {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureStream(ctx); err != nil {
			slog.Warn("ensure nats stream", "error", err)
		}
	}

	camera := capture.NewCamera(cfg.Terminal.Camera, cfg.Terminal.FPS, cfg.Terminal.Width)

	deps := recognition.EngineDeps{
		Frames:     camera,
		Analyzer:   analyzer,
		Matcher:    matcher,
		Attendance: db,
	}
	routerCfg := api.TerminalRouterConfig{
		APIKey: cfg.Server.APIKey,
		Room:   cfg.Terminal.Room,
		Camera: camera,
		Wait:   cfg.Recognition.AttemptTimeout + 2*time.Second,
	}

	switch cfg.Recognition.Mode {
	case config.ModeContinuous:
		presence := recognition.NewPresence(cfg.Recognition.Cooldown)
		deps.Presence = presence
		routerCfg.Presence = presence
		if producer != nil {
			deps.Sink = producer
		}
	default:
		opts := []recognition.AttemptOption{recognition.WithTimeout(cfg.Recognition.AttemptTimeout)}
		if producer != nil {
			opts = append(opts, recognition.WithOutcomeSink(producer))
		}
		attempt := recognition.NewAttempt(evaluator, db, opts...)
		deps.Attempt = attempt
		routerCfg.Attempt = attempt
	}

	engine := recognition.NewEngine(recognition.EngineConfig{
		Mode:          cfg.Recognition.Mode,
		Room:          cfg.Terminal.Room,
		FrameInterval: cfg.Recognition.FrameInterval,
	}, deps)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Terminal.Port),
		Handler:      api.NewTerminalRouter(routerCfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return camera.Run(gctx) })
	grp.Go(func() error { return engine.Run(gctx) })
	grp.Go(func() error {
		slog.Info("terminal API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("terminal api: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down terminal...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return grp.Wait()
}

func gallerySource(cfg *config.Config, db *storage.PostgresStore) (gallery.Source, error) {
	switch cfg.Gallery.Source {
	case config.GalleryFromMinIO:
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return gallery.ObjectSource{Store: minioStore}, nil
	case config.GalleryFromPostgres:
		return gallery.DBSource{Store: db}, nil
	default:
		return gallery.DirSource{Dir: cfg.Gallery.Dir}, nil
	}
}
