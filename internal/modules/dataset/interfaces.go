package dataset

import (
	"context"
	"time"

	"salespulse/internal/domain"
)

type StagedUploadRepository interface {
	GetByID(ctx context.Context, id string) (*domain.StagedUpload, error)
	MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error)
}

type ProcessedUploadRepository interface {
	Create(ctx context.Context, p *domain.ProcessedUpload) error
	GetByID(ctx context.Context, id string) (*domain.ProcessedUpload, error)
	Delete(ctx context.Context, id string) error
}

type DatasetRepository interface {
	Create(ctx context.Context, d *domain.Dataset) error
	GetByID(ctx context.Context, id string) (*domain.Dataset, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Dataset, error)
	Delete(ctx context.Context, id string) error
}

type ImportTaskRepository interface {
	Create(ctx context.Context, t *domain.ImportTask) error
	DeleteByDataset(ctx context.Context, datasetID string) error
}

type DatasetTableRepository interface {
	DropTable(ctx context.Context, tableName string) error
	SelectSample(ctx context.Context, tableName string, columns []string, limit int) ([]map[string]string, error)
	CountRows(ctx context.Context, tableName string) (int64, error)
}

type AnalysisRepository interface {
	GetByDatasetID(ctx context.Context, datasetID string) (*domain.DatasetAnalysis, error)
	DeleteByDataset(ctx context.Context, datasetID string) error
}
