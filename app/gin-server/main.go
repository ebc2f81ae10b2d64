package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yoockh/prepdeck/config"
	"github.com/yoockh/prepdeck/internal/api/handlers"
	"github.com/yoockh/prepdeck/internal/api/middleware"
	"github.com/yoockh/prepdeck/internal/api/routes"
	"github.com/yoockh/prepdeck/internal/cache"
	"github.com/yoockh/prepdeck/internal/logger"
	"github.com/yoockh/prepdeck/internal/observability"
	mongorepo "github.com/yoockh/prepdeck/internal/repositories/mongo"
	pgrepo "github.com/yoockh/prepdeck/internal/repositories/postgres"
	"github.com/yoockh/prepdeck/internal/services"
	"github.com/yoockh/prepdeck/internal/storage"
	"github.com/yoockh/prepdeck/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.LoadServiceConfig()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	if err := services.ValidatePolicy(cfg.DefaultRetention); err != nil {
		log.WithError(err).Fatal("default retention policy is invalid")
	}

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index setup failed")
	}
	log.Info("MongoDB connected")

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.MigratePostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration failed")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := services.Deps{
		Sessions: mongorepo.NewSessionRepo(config.MongoDatabase()),
		Events:   pgrepo.NewSessionEventRepo(config.PostgresDB),
		Cache:    cache.NewRedisCache(config.RedisClient, "prepdeck:"),
		Metrics:  observability.NewMetrics(reg),
		Logger:   log,
	}

	var uploader storage.Uploader
	if cfg.ExportBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.ExportBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer gcs.Close()
		uploader = gcs
	}

	sessionSvc := services.NewSessionService(deps, cfg.QueryMaxPageSize)
	retentionSvc := services.NewRetentionService(deps, pgrepo.NewRetentionPolicyRepo(config.PostgresDB), cfg.DefaultRetention, cfg.RetentionSweepMax)
	analyticsSvc := services.NewAnalyticsService(deps, cfg.AnalyticsCacheTTL, cfg.ExportMaxSessions)
	exportSvc := services.NewExportService(deps, uploader, cfg.ExportMaxSessions)

	pool := &workers.RetentionWorkerPool{
		Redis:      config.RedisClient,
		Sweeper:    retentionSvc,
		NumWorkers: cfg.RetentionWorkers,
		Logger:     log,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("retention workers failed to start")
	}
	enqueue := func(ctx context.Context, userID string) (string, error) {
		return workers.EnqueueSweep(ctx, config.RedisClient, workers.DefaultSweepStream, workers.SweepJob{UserID: userID})
	}

	var origins []string
	if v := os.Getenv("WS_ALLOWED_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session:   handlers.NewSessionHandler(sessionSvc),
		Analytics: handlers.NewAnalyticsHandler(analyticsSvc),
		Retention: handlers.NewRetentionHandler(retentionSvc, enqueue),
		Export:    handlers.NewExportHandler(exportSvc),
		WS:        handlers.NewWSHandler(sessionSvc, config.RedisClient, log, origins),
		Auth:      middleware.JWTAuth(middleware.JWTConfigFromEnv()),
		Gatherer:  reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()
	log.WithField("port", cfg.Port).Info("prepdeck listening")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	_ = config.MongoClient.Disconnect(shutdownCtx)
	_ = config.RedisClient.Close()
	log.Info("prepdeck stopped")
}
