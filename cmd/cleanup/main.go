package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"salespulse/internal/config"
	"salespulse/internal/database"
	"salespulse/internal/modules/staging"
	"salespulse/internal/pkg/blob"
	"salespulse/internal/repository"
)

// One-shot maintenance binary for cron: expires overdue staged uploads
// (deleting their blobs) and prunes finished import tasks past retention.
func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	blobs, err := blob.NewLocalStore(os.Getenv("UPLOAD_DIR"))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	stagedRepo := repository.NewStagedUploadRepository(db)
	stagingService := staging.NewService(stagedRepo, blobs, cfg.MaxUploadSize, cfg.PreviewRows, cfg.StagingTTL)

	expired, err := stagingService.ExpireSweep(ctx)
	if err != nil {
		log.Fatalf("staging sweep failed: %v", err)
	}

	taskRepo := repository.NewImportTaskRepository(db)
	cutoff := time.Now().UTC().AddDate(0, 0, -cfg.TaskRetentionDays)
	pruned, err := taskRepo.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		log.Fatalf("task prune failed: %v", err)
	}

	log.Printf("cleanup completed: staged_uploads_expired=%d import_tasks_pruned=%d", expired, pruned)
}
