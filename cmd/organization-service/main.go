package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftea/organization-system/organization-service/config"
	"github.com/draftea/organization-system/shared/logging"
	"github.com/draftea/organization-system/shared/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.ReadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := logging.New(cfg.Log).WithFields(logrus.Fields{
		"service": cfg.ServiceName,
		"env":     cfg.Env,
		"version": version,
	})
	logger.WithField("port", cfg.Port).Info("starting service")

	// Initialize dependencies
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := config.BuildDependencies(ctx, cfg, version, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Error("error closing dependencies")
		}
	}()

	// Start the stall supervisor and the inbound message pipeline
	if err := deps.Supervisor.Start(cfg.Saga.SupervisorSchedule); err != nil {
		logger.WithError(err).Fatal("failed to start saga supervisor")
	}
	if err := deps.EventSubscriber.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("failed to start message subscriber")
	}

	// Setup and start HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(deps, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	if err := deps.EventSubscriber.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("message subscriber did not stop cleanly")
	}

	logger.Info("stopped")
}

func setupRouter(deps *config.Dependencies, logger logrus.FieldLogger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger(logger))
	r.Use(telemetry.Middleware(deps.Telemetry))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	deps.OrganizationHandlers.RegisterRoutes(r)

	return r
}

// requestLogger puts a request scoped entry in the context and logs each
// request once it is served
func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), entry)))

			entry.WithFields(logrus.Fields{
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request served")
		})
	}
}
