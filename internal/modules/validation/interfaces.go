package validation

import (
	"context"
	"time"

	"salespulse/internal/domain"
)

type DatasetRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Dataset, error)
}

type DatasetTableRepository interface {
	SelectSample(ctx context.Context, tableName string, columns []string, limit int) ([]map[string]string, error)
}

type AnalysisRepository interface {
	GetByDatasetID(ctx context.Context, datasetID string) (*domain.DatasetAnalysis, error)
	Upsert(ctx context.Context, a *domain.DatasetAnalysis) (*domain.DatasetAnalysis, error)
	ReplaceResults(ctx context.Context, analysisID string, results []domain.HeaderValidationResult) error
	ListResults(ctx context.Context, analysisID string) ([]domain.HeaderValidationResult, error)
	SetValidated(ctx context.Context, analysisID string, validated bool, at time.Time) error
}
