// main.go - single-process honeypot server with in-memory sessions only
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"honeypot-lab/internal/api/handlers"
	apimiddleware "honeypot-lab/internal/api/middleware"
	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/domain/services/dialogue"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/pkg/logger"
)

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// newLiteRouter exposes the conversation endpoints without any external backend
func newLiteRouter(cfg *config.Config, h *handlers.Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/", h.Health.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health.Check).Methods(http.MethodGet)

	// Protected endpoints
	auth := apimiddleware.APIKeyAuth(cfg.Auth.Header, cfg.Auth.APIKey)
	r.Handle("/", auth(http.HandlerFunc(h.Honeypot.Message))).Methods(http.MethodPost)
	r.Handle("/api/v1/honeypot/message", auth(http.HandlerFunc(h.Honeypot.Message))).Methods(http.MethodPost)
	r.Handle("/api/v1/detect", auth(http.HandlerFunc(h.Honeypot.Detect))).Methods(http.MethodPost)

	return apimiddleware.Logger(log)(corsMiddleware(r))
}

func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	})

	engine, err := dialogue.EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dialogue engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := sessionstore.NewMemoryStore(cfg.Session.Retention, cfg.Session.SweepInterval, log)
	go store.Run(ctx)

	var sinks []services.ReportSink
	if cfg.Callback.Enabled {
		callback, err := services.NewCallbackSink(cfg.Callback.URL, cfg.Callback.Headers, cfg.Callback.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create callback sink")
		}
		sinks = append(sinks, callback)
	}
	reporter := services.NewReporter(services.ReporterConfig{
		Workers:   cfg.Callback.Workers,
		QueueSize: cfg.Callback.QueueSize,
	}, log, sinks...)

	honeypot := services.NewHoneypotService(store, engine, services.NewScamDetector(log), reporter, nil, log)
	h := handlers.NewHandlers(handlers.Dependencies{
		Honeypot:     honeypot,
		Reporter:     reporter,
		Version:      cfg.App.Version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newLiteRouter(cfg, h, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("honeypot lite server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	reporter.Stop()
}
