package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edukita/gradcert-api/api/swagger"
	"github.com/edukita/gradcert-api/internal/handler"
	"github.com/edukita/gradcert-api/internal/middleware"
	"github.com/edukita/gradcert-api/internal/repository"
	"github.com/edukita/gradcert-api/internal/service"
	"github.com/edukita/gradcert-api/pkg/cache"
	"github.com/edukita/gradcert-api/pkg/config"
	"github.com/edukita/gradcert-api/pkg/database"
	"github.com/edukita/gradcert-api/pkg/export"
	"github.com/edukita/gradcert-api/pkg/jobs"
	"github.com/edukita/gradcert-api/pkg/logger"
	corsmiddleware "github.com/edukita/gradcert-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edukita/gradcert-api/pkg/middleware/requestid"
	"github.com/edukita/gradcert-api/pkg/render"
	"github.com/edukita/gradcert-api/pkg/storage"
)

// @title Graduation Certificate API
// @version 1.0.0
// @description Graduation batch processing and certificate issuance service
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare certificate storage", "error", err)
	}

	// Repositories.
	txRunner := repository.NewTxRunner(db)
	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewGraduationStudentRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	examRepo := repository.NewExamRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	policyRepo := repository.NewGradePolicyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Certificates.TemplateCacheTTL, logr, true)
	auditSvc := service.NewAuditService(auditRepo, logr)
	eligibilitySvc := service.NewEligibilityService(examRepo, policyRepo, attendanceRepo, logr)
	numberSvc := service.NewNumberService(counterRepo, cfg.Certificates.NumberPrefix)
	batchSvc := service.NewBatchService(batchRepo, studentRepo, eligibilitySvc, auditSvc, txRunner, metricsSvc, nil, logr)
	renderSvc := service.NewRenderService(certificateRepo, batchRepo, templateRepo, studentRepo, store, render.NewPDFRenderer(), metricsSvc, logr)

	renderQueue := jobs.NewRenderQueue(func(ctx context.Context, job jobs.RenderJob) error {
		return renderSvc.RenderCertificate(ctx, job.CertificateID)
	}, jobs.QueueConfig{
		Workers:    cfg.Certificates.RenderConcurrency,
		MaxRetries: cfg.Certificates.RenderRetries,
		RetryDelay: cfg.Certificates.RenderRetryDelay,
		Logger:     logr,
	})

	issueSvc := service.NewIssueService(service.IssueServiceDeps{
		Batches:       batchRepo,
		Snapshots:     studentRepo,
		Templates:     templateRepo,
		Certificates:  certificateRepo,
		Numbers:       numberSvc,
		Audit:         auditSvc,
		Tx:            txRunner,
		Cache:         cacheSvc,
		Metrics:       metricsSvc,
		Renderer:      renderSvc,
		Queue:         renderQueue,
		RenderAsync:   cfg.Certificates.RenderAsync,
		VerifyBaseURL: cfg.Certificates.VerifyBaseURL,
		TemplateTTL:   cfg.Certificates.TemplateCacheTTL,
		Logger:        logr,
	})

	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	certificateSvc := service.NewCertificateService(certificateRepo, signer, store, cacheSvc, cfg.Certificates.VerifyCacheTTL, logr)

	// Handlers.
	batchHandler := handler.NewBatchHandler(batchSvc, issueSvc, auditSvc, export.NewCSVExporter())
	certificateHandler := handler.NewCertificateHandler(certificateSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public verification, no auth.
	r.GET("/verify/certificates/:hash", certificateHandler.Verify)

	api := r.Group(cfg.APIPrefix)
	api.GET("/certificates/download", certificateHandler.Fetch)

	protected := api.Group("")
	protected.Use(middleware.Actor(cfg.JWT.Secret))
	{
		batches := protected.Group("/graduation-batches")
		batches.POST("", batchHandler.Create)
		batches.GET("", batchHandler.List)
		batches.GET("/:id", batchHandler.Get)
		batches.PATCH("/:id", batchHandler.Update)
		batches.POST("/:id/generate-students", batchHandler.GenerateStudents)
		batches.GET("/:id/students", batchHandler.Students)
		batches.POST("/:id/approve", batchHandler.Approve)
		batches.POST("/:id/issue-certificates", batchHandler.IssueCertificates)
		batches.GET("/:id/audit", batchHandler.Audit)

		certificates := protected.Group("/certificates")
		certificates.GET("", certificateHandler.List)
		certificates.GET("/:id/download", certificateHandler.Download)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderQueue.Start(ctx)
	defer renderQueue.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
