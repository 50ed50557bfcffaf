package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/cli"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/resource"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/cache"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/config"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/database"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/msgraph"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/telemetry"
	"github.com/Auriora/admin-assistant-sub001/internal/metrics"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
	"github.com/Auriora/admin-assistant-sub001/internal/service/auditing"
	"github.com/Auriora/admin-assistant-sub001/internal/service/calendars"
	"github.com/Auriora/admin-assistant-sub001/internal/service/recovery"
	"github.com/Auriora/admin-assistant-sub001/internal/service/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	tracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "admin-assistant",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.Error("failed to set up tracing", zap.Error(err))
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return 1
	}
	defer pool.Close()

	apptRepo := database.NewAppointmentRepository(pool, logger)
	configRepo := database.NewConfigurationRepository(pool)
	assocRepo := database.NewAssociationRepository(pool)
	auditRepo := database.NewAuditRepository(pool)
	opRepo := database.NewReversibleRepository(pool)
	taskRepo := database.NewTaskRepository(pool)
	userRepo := database.NewUserRepository(pool)

	tokens := msgraph.NewTokenCache(graphTokenSource(), cfg.Graph.TokenSkew)
	graphRepo := msgraph.NewAppointmentRepository(msgraph.NewClient(&cfg.Graph, tokens, logger), logger)

	// Redis is optional: without it the directory cache and the cross-process
	// run lock are skipped, nothing else changes.
	var graphDirectory calendars.Directory = graphRepo
	var runLock scheduler.RunLock
	if redisClient, rerr := cache.NewClient(&cfg.Redis, logger); rerr != nil {
		logger.Warn("redis unavailable, continuing without directory cache and run lock", zap.Error(rerr))
	} else {
		defer func() { _ = redisClient.Close() }()
		graphDirectory = cache.NewCachedDirectory(
			graphRepo, redisClient, string(resource.SchemeMSGraph), cfg.Redis.CacheTTL, logger)
		runLock = cache.NewRunLock(redisClient)
	}

	resolver, err := calendars.NewService(map[resource.Scheme]calendars.Directory{
		resource.SchemeMSGraph: graphDirectory,
		resource.SchemeLocal:   apptRepo,
	}, logger)
	if err != nil {
		logger.Error("failed to build calendar resolver", zap.Error(err))
		return 1
	}

	auditSvc, err := auditing.NewService(auditRepo, logger)
	if err != nil {
		logger.Error("failed to build audit service", zap.Error(err))
		return 1
	}

	reverser := recovery.NewAppointmentReverser(string(resource.SchemeMSGraph), map[string]recovery.ArchiveStore{
		string(resource.SchemeMSGraph): graphRepo,
		string(resource.SchemeLocal):   apptRepo,
	})
	recoverySvc, err := recovery.NewService(opRepo, auditSvc,
		map[string]recovery.ItemReverser{"appointment": reverser}, logger)
	if err != nil {
		logger.Error("failed to build recovery service", zap.Error(err))
		return 1
	}

	registry := metrics.NewRegistry("admin_assistant")

	archiveSvc, err := archiver.NewService(archiver.ServiceConfig{
		Resolver: resolver,
		Readers: map[resource.Scheme]archiver.CalendarReader{
			resource.SchemeMSGraph: graphRepo,
			resource.SchemeLocal:   apptRepo,
		},
		Writers: map[resource.Scheme]archiver.CalendarWriter{
			resource.SchemeMSGraph: graphRepo,
			resource.SchemeLocal:   apptRepo,
		},
		Audit:        auditSvc,
		Recovery:     recoverySvc,
		Tasks:        taskRepo,
		Associations: assocRepo,
		Metrics:      registry,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build archiver", zap.Error(err))
		return 1
	}

	schedPool, err := scheduler.NewPool(scheduler.Config{
		Workers: cfg.Archive.Workers,
		LockTTL: cfg.Archive.RunLockTTL,
	}, archiveSvc, runLock, logger)
	if err != nil {
		logger.Error("failed to build scheduler pool", zap.Error(err))
		return 1
	}

	if cfg.Archive.MetricsAddr != "" {
		startMetricsListener(cfg.Archive.MetricsAddr, registry, logger)
	}

	app := &cli.App{
		Users:     userRepo,
		Configs:   configRepo,
		Archiver:  archiveSvc,
		Recovery:  recoverySvc,
		Scheduler: schedPool,
		Reversals: registry,
		Logger:    logger,
	}
	return cli.Execute(ctx, app, os.Args[1:])
}

// graphTokenSource picks the Graph access-token source: AA_GRAPH_TOKEN holds
// a token directly, AA_GRAPH_TOKEN_FILE points at a file an external
// refresher rotates. Commands that never touch Graph run fine without either.
func graphTokenSource() msgraph.TokenSource {
	if token := os.Getenv("AA_GRAPH_TOKEN"); token != "" {
		return msgraph.StaticTokenSource(token)
	}
	if path := os.Getenv("AA_GRAPH_TOKEN_FILE"); path != "" {
		return msgraph.FileTokenSource(path)
	}
	return msgraph.StaticTokenSource("")
}

func startMetricsListener(addr string, registry *metrics.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Another invocation may hold the port; metrics are best effort.
			logger.Debug("metrics listener stopped", zap.Error(err))
		}
	}()
}
