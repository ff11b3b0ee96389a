package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/chordme/chordme/pkg/api"
	"github.com/chordme/chordme/pkg/audit"
	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/config"
	"github.com/chordme/chordme/pkg/middleware"
	"github.com/chordme/chordme/pkg/observability"
	"github.com/chordme/chordme/pkg/storage/postgres"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file (overrides CHORDME_CONFIG_FILE)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	watchPath := *configPath
	if watchPath == "" {
		watchPath = os.Getenv("CHORDME_CONFIG_FILE")
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	if err := run(cfg, logger, watchPath); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(cfg *config.Config, logger *observability.Logger, configPath string) error {
	ctx := context.Background()

	// Most settings need a restart; the watch makes config drift
	// visible in the logs instead of silently ignored.
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(*config.Config) {
				logger.WithField("path", configPath).Info("Configuration file changed, restart to apply")
			}, func(err error) {
				logger.WithError(err).Warn("Config watch error")
			})
			if err != nil {
				logger.WithError(err).Warn("Config watch unavailable")
			}
		}()
	}

	// PostgreSQL
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	logger.Info("Database connected")

	// Redis is optional; without it rate limiting is disabled and the
	// readiness probe only covers the database.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without rate limiting")
			redisClient = nil
		}
	}

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	// Audit trail: database sink always, file sink when configured.
	dbSink, err := audit.NewDBSink(db)
	if err != nil {
		return err
	}
	sinks := []audit.Sink{dbSink}
	if cfg.Audit.Dir != "" {
		fileSink, err := audit.NewFileSink(audit.FileSinkConfig{
			BasePath: cfg.Audit.Dir,
			Rotate:   true,
			MaxSize:  cfg.Audit.MaxFileBytes,
			MaxFiles: cfg.Audit.MaxFiles,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, fileSink)
	}
	auditSink := audit.NewMultiSink(sinks...)
	auditLogger := audit.NewLogger(auditSink)

	// Retention sweep, with S3 archival when a bucket is configured.
	var archiver audit.Archiver
	if cfg.Audit.ArchiveBucket != "" {
		archiver, err = audit.NewS3Archiver(ctx, audit.S3ArchiverConfig{
			Bucket:    cfg.Audit.ArchiveBucket,
			Region:    cfg.Audit.ArchiveRegion,
			Endpoint:  cfg.Audit.ArchiveEndpoint,
			AccessKey: cfg.Audit.ArchiveAccessKey,
			SecretKey: cfg.Audit.ArchiveSecretKey,
		})
		if err != nil {
			return err
		}
	}
	auditStore := audit.NewDBStore(dbSink, archiver)
	sweeper, err := audit.NewRetentionSweeper(auditStore, audit.RetentionPolicy{
		RetentionDays:  cfg.Audit.RetentionDays,
		ArchiveEnabled: archiver != nil,
		ArchiveBucket:  cfg.Audit.ArchiveBucket,
		ArchivePrefix:  cfg.Audit.ArchivePrefix,
	}, cfg.Audit.SweepSchedule, func(deleted int64, err error) {
		if err != nil {
			logger.WithError(err).Error("Audit retention sweep failed")
			return
		}
		logger.WithField("deleted", deleted).Info("Audit retention sweep completed")
	})
	if err != nil {
		return err
	}
	if err := sweeper.Start(); err != nil {
		return err
	}

	// Core services
	songStore := postgres.NewSongStore(db)
	userStore := postgres.NewUserStore(db)
	tokenManager, err := auth.NewTokenManager(postgres.NewTokenStore(db), userStore)
	if err != nil {
		return err
	}
	enforcer, err := authz.NewEnforcer(songStore, auditLogger)
	if err != nil {
		return err
	}

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var rateLimit *middleware.RateLimitMiddleware
	if redisClient != nil && cfg.RateLimit.Enabled {
		rateLimit = middleware.NewRateLimitMiddleware(redisClient, cfg.RateLimit, metrics)
	}

	apiServer, err := api.NewServer(api.Deps{
		Songs:      songStore,
		Users:      userStore,
		Enforcer:   enforcer,
		Tokens:     tokenManager,
		AuditStore: auditStore,
		Metrics:    metrics,
		Logger:     logger,
		RateLimit:  rateLimit,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Ops server: probes and metrics on a separate port.
	health := observability.NewHealthChecker(db, redisClient, version)
	opsRouter := mux.NewRouter()
	opsRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	opsRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		opsRouter.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")
	}
	opsServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: opsRouter,
	}

	// Feed connection pool gauges while the server runs.
	poolCtx, cancelPool := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.ObserveDBStats(db.Stats())
			case <-poolCtx.Done():
				return
			}
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register(func(ctx context.Context) error {
		cancelPool()
		sweeper.Stop()
		return opsServer.Shutdown(ctx)
	})
	shutdown.Register(func(ctx context.Context) error {
		return auditSink.Close()
	})
	if redisClient != nil {
		shutdown.Register(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if providers != nil {
		shutdown.Register(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", server.Addr).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("Ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(shutdown.Wait)

	return group.Wait()
}
