package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ledgerdesk/internal/caching"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/handlers"
	"ledgerdesk/internal/jobs/background"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/repositories"
	"ledgerdesk/internal/router"
	"ledgerdesk/internal/services"
	"ledgerdesk/pkg/database"
)

func main() {
	configPath := os.Getenv("LEDGERDESK_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Database connection
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	pool, err := database.NewPool(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Redis configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			redisDB = db
		}
	}

	// MinIO configuration
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	if minioEndpoint == "" {
		minioEndpoint = "localhost:9000"
	}
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	if minioAccessKey == "" {
		minioAccessKey = "minioadmin"
	}
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	if minioSecretKey == "" {
		minioSecretKey = "minioadmin"
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	minioClient, err := minio.New(minioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioAccessKey, minioSecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object storage client: %v", err)
	}

	// Ledger gateway
	backend := ledger.NewGatewayClient(&cfg.Gateway)

	// Repositories
	workweekRepo := repositories.NewWorkWeekRepo(pool)
	fingerprintRepo := repositories.NewFingerprintRepo(pool)
	policyRepo := repositories.NewPolicyRepo(pool)
	stagingRepo := repositories.NewStagingRepo(pool)
	auditRepo := repositories.NewAuditLogsRepo(pool)

	// Cache service
	cacheSvc := caching.NewRedisCacheService(redisAddr, redisPassword, redisDB)

	// Services
	auditSvc := services.NewAuditService(auditRepo)
	resolverSvc := services.NewResolverService(backend, cacheSvc)
	policySvc := services.NewPolicyService(policyRepo)
	if err := policySvc.Reload(context.Background()); err != nil {
		log.Printf("WARN: initial vendor policy load failed: %v", err)
	}
	workweekSvc := services.NewWorkWeekService(workweekRepo, policySvc)
	guardSvc := services.NewDupGuardService(backend, fingerprintRepo)
	postingSvc := services.NewPostingService(backend, guardSvc, fingerprintRepo, auditSvc)
	jobcostSvc := services.NewJobCostService(backend, cacheSvc, cfg.Policy)
	docSvc := services.NewDocumentServiceWithClient(minioClient, cfg.Staging.InboxBucket, cfg.Staging.ArchiveBucket)
	if err := docSvc.EnsureBuckets(context.Background()); err != nil {
		log.Printf("WARN: could not verify storage buckets: %v", err)
	}
	stagingSvc := services.NewStagingService(stagingRepo, fingerprintRepo, guardSvc, backend, docSvc, auditSvc, cfg.Staging)

	// Command router
	cmdRouter := router.New(backend, resolverSvc, workweekSvc, guardSvc, postingSvc, policySvc, jobcostSvc, auditSvc, cfg.Staging)

	// Handlers
	commandHandlers := handlers.NewCommandHandlers(cmdRouter, auditSvc)
	stagingHandlers := handlers.NewStagingHandlers(stagingSvc, docSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, minioClient, backend)

	// Background jobs
	scheduler, err := background.NewJobScheduler(stagingSvc, stagingRepo, docSvc, policySvc, *cfg)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("Failed to stop job scheduler: %v", err)
		}
	}()

	// Echo instance
	e := echo.New()
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)

	v1 := e.Group("/v1")

	// Command surface
	v1.POST("/commands", commandHandlers.Execute)
	v1.GET("/commands", commandHandlers.ListCommands)
	v1.GET("/audit", commandHandlers.AuditTrail)

	// Staging pipeline
	v1.GET("/staging/documents", stagingHandlers.ListPendingDocuments)
	v1.POST("/staging/batches", stagingHandlers.IngestBatch)
	v1.GET("/staging/batches", stagingHandlers.ListOpenBatches)
	v1.GET("/staging/batches/:id", stagingHandlers.GetBatch)
	v1.POST("/staging/batches/:id/abandon", stagingHandlers.AbandonBatch)
	v1.POST("/staging/candidates/:id/fields", stagingHandlers.ProvideFields)
	v1.POST("/staging/candidates/:id/override", stagingHandlers.OverrideDuplicate)
	v1.POST("/staging/candidates/:id/approve", stagingHandlers.Approve)
	v1.POST("/staging/candidates/:id/reject", stagingHandlers.Reject)
	v1.POST("/staging/candidates/:id/post", stagingHandlers.Post)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Fatal(e.Start(":" + port))
}
