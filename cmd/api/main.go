package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"honeypot-lab/internal/api"
	"honeypot-lab/internal/api/handlers"
	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/domain/services/dialogue"
	grpchealth "honeypot-lab/internal/grpc/health"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/internal/infrastructure/database"
	"honeypot-lab/internal/infrastructure/database/repository"
	"honeypot-lab/internal/infrastructure/graph"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting honeypot")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure; every backend is optional
	db, redisCache := initInfrastructure(ctx, cfg, log)
	defer func() {
		if db != nil {
			db.Close()
		}
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	var checks []handlers.ReadinessCheck
	var probes []grpchealth.Probe
	addCheck := func(name string, fn func(context.Context) error) {
		checks = append(checks, handlers.ReadinessCheck{Name: name, Check: fn})
		probes = append(probes, grpchealth.Probe{Name: name, Check: fn})
	}
	if redisCache != nil {
		addCheck("redis", redisCache.Ping)
	}
	if db != nil {
		addCheck("postgres", db.Ping)
	}

	// Session store
	store := initSessionStore(ctx, cfg, redisCache, log)

	// Dialogue engine
	engine, err := dialogue.EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dialogue engine")
	}

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without event streaming")
			natsPublisher = nil
		} else {
			defer natsPublisher.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	eventBus := streaming.NewEventBus(natsPublisher, log)
	defer eventBus.Close()
	log.Info().Bool("nats_enabled", natsPublisher != nil).Msg("event bus initialized")

	if err := eventBus.RelayRemote(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to relay remote events, dashboards will only see this instance")
	}

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	// Dashboards follow the bus, so they also see sessions handled by other instances
	dashboardFeed, unsubscribeDashboards := eventBus.Subscribe(nil)
	defer unsubscribeDashboards()
	go wsHub.Forward(ctx, dashboardFeed)

	eventPublisher := streaming.NewEventBusPublisher(eventBus)

	// Report sinks
	sinks := []services.ReportSink{services.NewEventSink(eventPublisher)}

	if cfg.Callback.Enabled {
		callback, err := services.NewCallbackSink(cfg.Callback.URL, cfg.Callback.Headers, cfg.Callback.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create callback sink")
		}
		sinks = append(sinks, callback)
		log.Info().Str("url", cfg.Callback.URL).Msg("report callback enabled")
	}

	var reports handlers.ReportReader
	if db != nil {
		if err := db.EnsureSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure report schema, archive disabled")
		} else {
			repo := repository.NewReportRepository(db.Pool())
			sinks = append(sinks, services.NewArchiveSink(repo))
			reports = repo
			log.Info().Msg("report archive enabled")
		}
	}

	var links handlers.LinkFinder
	if cfg.Neo4j.Enabled {
		neo4jClient, err := graph.NewNeo4jClient(ctx, cfg.Neo4j, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Neo4j, evidence graph disabled")
		} else {
			defer neo4jClient.Close(context.Background())
			evidenceGraph := graph.NewEvidenceGraph(neo4jClient, log)
			sinks = append(sinks, services.NewGraphSink(evidenceGraph))
			links = evidenceGraph
			addCheck("neo4j", neo4jClient.Health)
			log.Info().Str("uri", cfg.Neo4j.URI).Msg("Neo4j evidence graph initialized")
		}
	}

	reporterCfg := services.ReporterConfig{
		Workers:   cfg.Callback.Workers,
		QueueSize: cfg.Callback.QueueSize,
		Timeout:   cfg.Callback.Timeout * 3,
	}
	if redisCache != nil {
		reporterCfg.Marker = redisCache
		reporterCfg.MarkTTL = cfg.Session.Retention * 2
	}
	reporter := services.NewReporter(reporterCfg, log, sinks...)

	// Honeypot service
	honeypot := services.NewHoneypotService(store, engine, services.NewScamDetector(log), reporter, eventPublisher, log)

	// Initialize handlers
	h := handlers.NewHandlers(handlers.Dependencies{
		Honeypot:     honeypot,
		Reporter:     reporter,
		Reports:      reports,
		Links:        links,
		WSHub:        wsHub,
		EventBus:     eventBus,
		Checks:       checks,
		Version:      cfg.App.Version,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log,
	})

	// Create router
	router := api.NewRouter(*cfg, h, redisCache, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC health server
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gRPC listener")
	}

	grpcServer := grpc.NewServer()
	grpchealth.Register(ctx, grpcServer, 0, log, probes...)

	go func() {
		log.Info().
			Str("addr", grpcListener.Addr().String()).
			Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Cancel context to stop background services
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Flush pending reports before the backends close
	reporter.Stop()

	log.Info().Msg("shutdown complete")
}

// initInfrastructure connects the optional database and cache. A failed
// connection is logged and the service continues without it.
func initInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*database.PostgresDB, *cache.RedisCache) {
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		var err error
		db, err = database.NewPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to PostgreSQL, continuing without report archive")
			db = nil
		}
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		var err error
		redisCache, err = cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without shared state")
			redisCache = nil
		}
	}

	return db, redisCache
}

// initSessionStore picks the configured backend, falling back to memory when
// Redis is unavailable
func initSessionStore(ctx context.Context, cfg *config.Config, redisCache *cache.RedisCache, log *logger.Logger) sessionstore.Store {
	if cfg.Session.Backend == "redis" {
		if redisCache != nil {
			log.Info().Msg("using Redis session store")
			return sessionstore.NewRedisStore(redisCache, cfg.Session.Retention, cfg.Session.LockTTL, cfg.Session.LockWait, log)
		}
		log.Warn().Msg("Redis session store requested but Redis is unavailable, using memory store")
	}

	store := sessionstore.NewMemoryStore(cfg.Session.Retention, cfg.Session.SweepInterval, log)
	go store.Run(ctx)
	log.Info().Dur("retention", cfg.Session.Retention).Msg("using in-memory session store")
	return store
}
