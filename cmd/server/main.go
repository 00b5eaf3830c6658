package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"traffic-dashboard/internal/config"
	"traffic-dashboard/internal/handlers"
	"traffic-dashboard/internal/repository"
	"traffic-dashboard/internal/services"
	"traffic-dashboard/pkg/database"
	"traffic-dashboard/pkg/logging"
	"traffic-dashboard/pkg/metrics"
	"traffic-dashboard/pkg/tracing"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("traffic-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting traffic dashboard API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"dataset_source": cfg.Dataset.Source,
	})

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(ctx, tracing.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
		})
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize tracing", logging.Fields{}, err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Error(flushCtx, "[SHUTDOWN_ERROR] Tracer flush failed", logging.Fields{}, err)
			}
		}()
	}

	metricsCollector := metrics.NewCollector("traffic_dashboard")
	dashboard := services.NewDashboardService(logger, metricsCollector)

	switch cfg.Dataset.Source {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		repo := repository.NewObservationRepository(db, logger, metricsCollector)
		if _, err := dashboard.LoadFromRepository(ctx, repo); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load dataset", logging.Fields{}, err)
		}
	default:
		if _, err := dashboard.LoadFromFile(ctx, cfg.Dataset.File, cfg.Dataset.SkipMalformed); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load dataset", logging.Fields{
				"file": cfg.Dataset.File,
			}, err)
		}
	}

	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.AccessLog(logger, metricsCollector))
	handlers.NewDashboardHandler(dashboard, logger, metricsCollector).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	// CORS wraps the router so preflight requests are answered before
	// mux rejects OPTIONS on GET-only routes
	var handler http.Handler = cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", handlers.RequestIDHeader},
		ExposedHeaders: []string{handlers.RequestIDHeader},
		MaxAge:         300,
	})(router)
	handler = otelhttp.NewHandler(handler, "traffic-api")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
