package importer

import (
	"context"
	"time"

	"salespulse/internal/domain"
)

type TaskRepository interface {
	ClaimNext(ctx context.Context) (*domain.ImportTask, error)
	GetByJobID(ctx context.Context, jobID string) (*domain.ImportTask, error)
	UpdateProgress(ctx context.Context, id string, current, total int64, message string) error
	Complete(ctx context.Context, id string, message string) error
	Fail(ctx context.Context, id string, errorMessage string) error
	Requeue(ctx context.Context, id string, reason string) error
	CancelPending(ctx context.Context, id string) (bool, error)
	RequestCancel(ctx context.Context, id string) error
	IsCancelRequested(ctx context.Context, id string) (bool, error)
	MarkCancelled(ctx context.Context, id string) error
}

type DatasetRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Dataset, error)
	UpdateStatus(ctx context.Context, id string, next domain.ImportStatus, errorMessage string) error
	UpdateProgress(ctx context.Context, id string, processedRows, totalRows int64) error
}

type ProcessedUploadRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ProcessedUpload, error)
	UpdateStatus(ctx context.Context, id string, next domain.ProcessingStatus) error
	Finish(ctx context.Context, id string, status domain.ProcessingStatus, rowCount int64, columnCount int, procErrors []string) error
}

type DatasetTableRepository interface {
	CreateTable(ctx context.Context, tableName string, columns []string, columnTypes map[string]string) error
	InsertBatch(ctx context.Context, tableName string, columns []string, rows [][]any) error
	DropTable(ctx context.Context, tableName string) error
}

type AnalysisRepository interface {
	Upsert(ctx context.Context, a *domain.DatasetAnalysis) (*domain.DatasetAnalysis, error)
}

// Clock-free sleep helper shared by the worker pool and retry logic.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
