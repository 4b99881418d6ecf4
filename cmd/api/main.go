package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	affiliateshttp "github.com/bookworks/backoffice/internal/affiliates/adapters/http"
	affiliatespostgres "github.com/bookworks/backoffice/internal/affiliates/adapters/postgres"
	agentshttp "github.com/bookworks/backoffice/internal/agents/adapters/http"
	agentspostgres "github.com/bookworks/backoffice/internal/agents/adapters/postgres"
	agentsapp "github.com/bookworks/backoffice/internal/agents/app"
	"github.com/bookworks/backoffice/internal/config"
	"github.com/bookworks/backoffice/internal/database"
	"github.com/bookworks/backoffice/internal/events"
	"github.com/bookworks/backoffice/internal/notify"
	"github.com/bookworks/backoffice/internal/orders/adapters"
	ordershttp "github.com/bookworks/backoffice/internal/orders/adapters/http"
	orderspostgres "github.com/bookworks/backoffice/internal/orders/adapters/postgres"
	ordersapp "github.com/bookworks/backoffice/internal/orders/app"
	"github.com/bookworks/backoffice/internal/orders/ingest"
	ordersmetrics "github.com/bookworks/backoffice/internal/orders/metrics"
	"github.com/bookworks/backoffice/internal/orders/ports"
	"github.com/bookworks/backoffice/internal/orders/sources"
	statshttp "github.com/bookworks/backoffice/internal/stats/http"
	statspostgres "github.com/bookworks/backoffice/internal/stats/postgres"
	"github.com/bookworks/backoffice/internal/telemetry"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
)

func main() {
	// A missing .env file is fine, the environment may be set externally.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(parseLogLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
		if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations completed successfully")
	}

	meter := otel.Meter("github.com/bookworks/backoffice")

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create database metrics", "error", err)
		os.Exit(1)
	}
	httpMetrics, err := ordershttp.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create http metrics", "error", err)
		os.Exit(1)
	}
	ingestMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create ingest metrics", "error", err)
		os.Exit(1)
	}
	eventMetrics, err := events.NewMetrics(meter)
	if err != nil {
		logger.Error("failed to create event metrics", "error", err)
		os.Exit(1)
	}

	ordersRepo := adapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics)
	configStore := orderspostgres.NewConfigStore(pool)
	agentsRepo := agentspostgres.NewRepository(pool)
	affiliatesRepo := affiliatespostgres.NewRepository(pool)
	statsProvider := statspostgres.NewProvider(pool)

	var bus ports.EventBus
	var kafkaBus *events.Bus
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaBus = events.NewBus(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		bus = kafkaBus
		logger.Info("kafka event bus enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		bus = events.NewNoopBus()
		logger.Info("kafka brokers not configured, events are logged only")
	}
	bus = events.NewObservableBus(bus, eventMetrics)

	scheduler := ingest.NewScheduler(ordersRepo, configStore, bus, logger,
		ingest.WithInterval(time.Duration(cfg.Ingest.IntervalSeconds)*time.Second),
		ingest.WithPageSize(cfg.Ingest.PageSize),
		ingest.WithMetrics(ingestMetrics),
	)
	if err := scheduler.Init(ctx); err != nil {
		logger.Error("failed to load watermarks", "error", err)
		os.Exit(1)
	}

	for _, source := range cfg.Ingest.Sources {
		var adapter ports.Source
		switch source.Kind {
		case "cursor":
			adapter = sources.NewCursorSource(source.URL, nil)
		default:
			adapter = sources.NewOffsetSource(source.URL, nil)
		}
		scheduler.RegisterSource(source.Name, adapter, nil)
		logger.Info("registered order source", "name", source.Name, "kind", source.Kind)
	}

	ordersService := ordersapp.NewService(ordersRepo, agentsRepo, configStore, bus, scheduler, logger)
	if err := ordersService.Init(ctx); err != nil {
		logger.Error("failed to load book cost", "error", err)
		os.Exit(1)
	}
	agentsService := agentsapp.NewService(agentsRepo)

	hub := notify.NewHub(logger)
	alerts, cancelAlerts := scheduler.Alerts()
	defer cancelAlerts()
	go func() {
		for count := range alerts {
			hub.Broadcast(count)
		}
	}()

	scheduler.Start(ctx)
	defer scheduler.StopBackgroundPull()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc(cfg.HTTP.MetricsPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics are exported over OTLP\n"))
	})
	mux.HandleFunc("/v1/ws", hub.Handle)

	ordershttp.NewHandler(scheduler, ordersService).Register(mux)
	agentshttp.NewHandler(agentsService).Register(mux)
	affiliateshttp.NewHandler(affiliatesRepo).Register(mux)
	statshttp.NewHandler(statsProvider).Register(mux)

	handler := ordershttp.WithRecovery(
		ordershttp.WithLogging(
			ordershttp.WithMetrics(mux, httpMetrics),
			logger,
		),
		logger,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	scheduler.StopBackgroundPull()
	hub.Close()
	if kafkaBus != nil {
		if err := kafkaBus.Close(); err != nil {
			logger.Error("kafka writer close failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
