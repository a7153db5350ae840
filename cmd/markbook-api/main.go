package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openmarks/markbook-api/api/swagger"
	"github.com/openmarks/markbook-api/internal/handler"
	"github.com/openmarks/markbook-api/internal/middleware"
	"github.com/openmarks/markbook-api/internal/repository"
	"github.com/openmarks/markbook-api/internal/service"
	"github.com/openmarks/markbook-api/pkg/cache"
	"github.com/openmarks/markbook-api/pkg/config"
	"github.com/openmarks/markbook-api/pkg/database"
	"github.com/openmarks/markbook-api/pkg/jobs"
	"github.com/openmarks/markbook-api/pkg/logger"
	corsmiddleware "github.com/openmarks/markbook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/openmarks/markbook-api/pkg/middleware/requestid"
	"github.com/openmarks/markbook-api/pkg/storage"
)

// @title Markbook API
// @version 1.0.0
// @description Mark computation and aggregation service over migrated legacy markbooks
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Analytics.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, analytics cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)

	markSetRepo := repository.NewMarkSetRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	calcConfigSvc := service.NewCalcConfigService(settingsRepo, logr)
	calcConfigSvc.ImportLegacySettings(ctx, cfg.Legacy.SettingsPath)

	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	markSetSvc := service.NewMarkSetService(markSetRepo, categoryRepo, assessmentRepo, membershipRepo, nil, logr)
	scoreSvc := service.NewScoreService(assessmentRepo, studentRepo, scoreRepo, cfg.Edits.Ceiling, nil, logr)
	markSvc := service.NewMarkService(markSetRepo, categoryRepo, assessmentRepo, studentRepo, scoreRepo, membershipRepo, calcConfigSvc, logr)
	analyticsSvc := service.NewAnalyticsService(markSvc, cacheSvc, metricsSvc, logr)
	authSvc := service.NewAuthService(service.AuthConfig{
		AdminUser:         cfg.Auth.AdminUser,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
		Secret:            cfg.JWT.Secret,
		Expiry:            cfg.JWT.Expiration,
	}, nil, logr)

	importSvc := service.NewImportService(markSetRepo, assessmentRepo, categoryRepo, studentRepo, scoreRepo, nil, logr)
	importQueue := jobs.NewQueue("legacy-import", importSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Legacy.WorkerConcurrency,
		MaxRetries: cfg.Legacy.WorkerRetries,
		Logger:     logr,
	})
	importSvc.SetQueue(importQueue)
	importQueue.Start(ctx)
	defer importQueue.Stop()

	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportSvc := service.NewReportService(analyticsSvc, reportStore, reportSigner, logr)
	go reportCleanupLoop(ctx, reportSvc, cfg.Reports.SignedURLTTL)

	invalidate := analyticsSvc.InvalidateClass

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	markSetHandler := handler.NewMarkSetHandler(markSetSvc)
	scoreHandler := handler.NewScoreHandler(scoreSvc, invalidate)
	importHandler := handler.NewImportHandler(importSvc, invalidate)
	calcConfigHandler := handler.NewCalcConfigHandler(calcConfigSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc, metricsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/reports/download/:token", reportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/students", studentHandler.List)
		protected.POST("/students", studentHandler.Create)
		protected.GET("/students/:id", studentHandler.Get)
		protected.PUT("/students/:id", studentHandler.Update)
		protected.DELETE("/students/:id", studentHandler.Deactivate)

		protected.GET("/mark-sets", markSetHandler.List)
		protected.POST("/mark-sets", markSetHandler.Create)
		protected.GET("/mark-sets/:id", markSetHandler.Get)
		protected.PUT("/mark-sets/:id", markSetHandler.Update)
		protected.PUT("/mark-sets/:id/categories", markSetHandler.UpsertCategory)
		protected.GET("/mark-sets/:id/assessments", markSetHandler.ListAssessments)
		protected.POST("/mark-sets/:id/assessments", markSetHandler.CreateAssessment)
		protected.PUT("/assessments/:assessmentId", markSetHandler.UpdateAssessment)
		protected.DELETE("/assessments/:assessmentId", markSetHandler.DeleteAssessment)
		protected.GET("/membership/students/:studentId", markSetHandler.GetMembership)
		protected.PUT("/membership/students/:studentId", markSetHandler.SetMembership)

		protected.POST("/scores/edit", scoreHandler.ApplyEdit)
		protected.POST("/scores/bulk", scoreHandler.BulkEdit)

		protected.POST("/import/file", importHandler.ImportFile)
		protected.POST("/import/directory", importHandler.ImportDirectory)

		protected.GET("/calc-config", calcConfigHandler.Get)
		protected.PUT("/calc-config/override", calcConfigHandler.SetOverride)
		protected.DELETE("/calc-config/override", calcConfigHandler.ClearOverride)

		protected.GET("/analytics/mark-sets/:id", analyticsHandler.Marks)
		protected.GET("/analytics/combined", analyticsHandler.Combined)
		protected.GET("/analytics/status", analyticsHandler.Status)

		protected.GET("/reports/mark-sets/:id", reportHandler.ExportMarks)
		protected.GET("/reports/combined", reportHandler.ExportCombined)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// reportCleanupLoop prunes expired rendered reports on the signed URL TTL
// cadence so the export directory does not grow without bound.
func reportCleanupLoop(ctx context.Context, reports *service.ReportService, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports.CleanupExpired(ttl)
		}
	}
}
