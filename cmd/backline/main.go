// Backline ingests logistics events, scores them, and routes every action
// through auto-approval, monitoring, or human review.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/backline-io/backline/internal/adapter/completion"
	"github.com/backline-io/backline/internal/adapter/filesource"
	blhttp "github.com/backline-io/backline/internal/adapter/http"
	blnats "github.com/backline-io/backline/internal/adapter/nats"
	blotel "github.com/backline-io/backline/internal/adapter/otel"
	"github.com/backline-io/backline/internal/adapter/postgres"
	"github.com/backline-io/backline/internal/adapter/ristretto"
	"github.com/backline-io/backline/internal/adapter/ws"
	"github.com/backline-io/backline/internal/config"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/logger"
	"github.com/backline-io/backline/internal/resilience"
	"github.com/backline-io/backline/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"high_threshold", cfg.Decision.HighThreshold,
		"medium_threshold", cfg.Decision.MediumThreshold,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	shutdownTelemetry, err := blotel.Init(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := blnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	histCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer histCache.Close()

	metrics, err := blotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	auditStore := postgres.NewAuditStore(pool)

	var completionClient *completion.Client
	if cfg.Completion.Enabled {
		completionClient = completion.NewClient(cfg.Completion)
		completionClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	}

	executor := service.NewExecutorService(store, cfg.Decision.ReplenishmentFactor)
	chatSvc := service.NewChatService(store, completionClient, log)
	reviews := service.NewReviewService(store, auditStore, executor, queue, hub, metrics, log)
	scorer := decision.NewRuleScorer(cfg.Decision.QuantityCeiling, cfg.Decision.AnomalyMultiplier, cfg.Decision.EscalationKeywords)
	policy := decision.NewPolicy(cfg.Decision.HighThreshold, cfg.Decision.MediumThreshold)
	pipeline := service.NewPipelineService(store, auditStore, histCache, cfg.Cache.TTL, scorer, policy,
		executor, chatSvc, reviews, queue, hub, metrics, log)

	// --- HTTP ---

	r := chi.NewRouter()
	r.Use(blhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(blhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(blotel.HTTPMiddleware(cfg.Logging.Service))
	}

	r.Get("/ws", hub.HandleWS)
	blhttp.MountRoutes(r, &blhttp.Handlers{Pipeline: pipeline, Reviews: reviews})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	if cfg.Source.WatchDir != "" {
		watcher := filesource.NewWatcher(cfg.Source.WatchDir, func(ctx context.Context, ev *event.ReturnEvent) error {
			_, err := pipeline.ProcessReturn(ctx, ev)
			return err
		}, log)
		g.Go(func() error {
			slog.Info("watching for return batches", "dir", cfg.Source.WatchDir)
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
