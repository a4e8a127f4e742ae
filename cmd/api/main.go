package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"salespulse/internal/config"
	"salespulse/internal/database"
	"salespulse/internal/middleware"
	"salespulse/internal/modules/dataset"
	"salespulse/internal/modules/importer"
	"salespulse/internal/modules/staging"
	"salespulse/internal/modules/validation"
	"salespulse/internal/pkg/blob"
	jwtsvc "salespulse/internal/pkg/jwt"
	"salespulse/internal/repository"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is empty")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal(err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal(err)
	}

	blobs, err := blob.NewLocalStore(os.Getenv("UPLOAD_DIR"))
	if err != nil {
		log.Fatal(err)
	}

	stagedRepo := repository.NewStagedUploadRepository(db)
	processedRepo := repository.NewProcessedUploadRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	taskRepo := repository.NewImportTaskRepository(db)
	tableRepo := repository.NewDatasetTableRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)

	j := jwtsvc.New(secret, 24*time.Hour)

	stagingService := staging.NewService(stagedRepo, blobs, cfg.MaxUploadSize, cfg.PreviewRows, cfg.StagingTTL)
	stagingHandler := staging.NewHandler(stagingService)

	datasetService := dataset.NewService(
		stagedRepo,
		processedRepo,
		datasetRepo,
		taskRepo,
		tableRepo,
		analysisRepo,
		blobs,
		cfg.PreviewRows,
	)
	datasetHandler := dataset.NewHandler(datasetService)

	importerService := importer.NewService(
		taskRepo,
		datasetRepo,
		processedRepo,
		tableRepo,
		analysisRepo,
		blobs,
		importer.Config{
			ChunkSize:         cfg.ImportChunkSize,
			MaxAttempts:       cfg.MaxImportAttempts,
			TaskTimeout:       cfg.TaskTimeout,
			RetryBackoff:      cfg.RetryBackoff,
			RowErrorTolerance: cfg.RowErrorTolerance,
		},
	)
	importerHandler := importer.NewHandler(importerService)

	matcher := validation.NewMatcher(validation.MatcherConfig{
		FoundThreshold:      cfg.FoundThreshold,
		NameConclusiveScore: cfg.NameConclusiveScore,
		ContentScoreCeiling: cfg.ContentScoreCeiling,
	})
	validationService := validation.NewService(datasetRepo, tableRepo, analysisRepo, matcher, cfg.ValidationSampleRows)
	validationHandler := validation.NewHandler(validationService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := importer.NewPool(importerService, cfg.ImportWorkers, 0)
	pool.Start(ctx)

	stopSweep := stagingService.ScheduleSweep(ctx, cfg.SweepInterval)
	defer close(stopSweep)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		protected := v1.Group("/")
		protected.Use(middleware.Auth(j))
		{
			staging.RegisterRoutes(protected, stagingHandler)
			dataset.RegisterRoutes(protected, datasetHandler)
			importer.RegisterRoutes(protected, importerHandler)
			validation.RegisterRoutes(protected, validationHandler)
		}
	}

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	if err := r.Run(addr); err != nil {
		log.Fatal(err)
	}
}
