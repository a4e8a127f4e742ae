package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"salespulse/internal/domain"

	"gorm.io/gorm"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

type datasetAnalysisModel struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	DatasetID             string     `gorm:"column:dataset_id;uniqueIndex"`
	UserID                int64      `gorm:"column:user_id;index"`
	DisplayName           string     `gorm:"column:display_name"`
	StorageKey            string     `gorm:"column:storage_key"`
	FileSize              int64      `gorm:"column:file_size"`
	RowCount              int64      `gorm:"column:row_count"`
	HeadersJSON           string     `gorm:"column:headers;type:text"`
	IsValidated           bool       `gorm:"column:is_validated"`
	ValidationCompletedAt *time.Time `gorm:"column:validation_completed_at"`
	CreatedAt             time.Time  `gorm:"column:created_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (datasetAnalysisModel) TableName() string { return "dataset_analyses" }

type headerValidationModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	AnalysisID    string    `gorm:"column:analysis_id;index:idx_header_validation,unique"`
	HeaderType    string    `gorm:"column:header_type;index:idx_header_validation,unique"`
	MatchedColumn string    `gorm:"column:matched_column"`
	Confidence    int       `gorm:"column:confidence"`
	Found         bool      `gorm:"column:found"`
	Method        string    `gorm:"column:method"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (headerValidationModel) TableName() string { return "header_validations" }

func toDomainAnalysis(m datasetAnalysisModel) (*domain.DatasetAnalysis, error) {
	a := &domain.DatasetAnalysis{
		ID:                    m.ID,
		DatasetID:             m.DatasetID,
		UserID:                m.UserID,
		DisplayName:           m.DisplayName,
		StorageKey:            m.StorageKey,
		FileSize:              m.FileSize,
		RowCount:              m.RowCount,
		IsValidated:           m.IsValidated,
		ValidationCompletedAt: m.ValidationCompletedAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.HeadersJSON != "" {
		if err := json.Unmarshal([]byte(m.HeadersJSON), &a.Headers); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func toDomainHeaderResult(m headerValidationModel) domain.HeaderValidationResult {
	return domain.HeaderValidationResult{
		ID:            m.ID,
		AnalysisID:    m.AnalysisID,
		HeaderType:    domain.HeaderType(m.HeaderType),
		MatchedColumn: m.MatchedColumn,
		Confidence:    m.Confidence,
		Found:         m.Found,
		Method:        m.Method,
		CreatedAt:     m.CreatedAt,
	}
}

// Upsert creates the analysis record for a dataset or refreshes the
// existing one with the latest counts. There is at most one analysis
// per dataset; a re-import overwrites, never duplicates.
func (r *AnalysisRepository) Upsert(ctx context.Context, a *domain.DatasetAnalysis) (*domain.DatasetAnalysis, error) {
	headers, err := json.Marshal(a.Headers)
	if err != nil {
		return nil, err
	}

	var existing datasetAnalysisModel
	err = r.db.WithContext(ctx).Where("dataset_id = ?", a.DatasetID).First(&existing).Error
	if err == nil {
		updates := map[string]any{
			"display_name": a.DisplayName,
			"storage_key":  a.StorageKey,
			"file_size":    a.FileSize,
			"row_count":    a.RowCount,
			"headers":      string(headers),
			"updated_at":   time.Now().UTC(),
		}
		if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return r.GetByDatasetID(ctx, a.DatasetID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m := datasetAnalysisModel{
		ID:          a.ID,
		DatasetID:   a.DatasetID,
		UserID:      a.UserID,
		DisplayName: a.DisplayName,
		StorageKey:  a.StorageKey,
		FileSize:    a.FileSize,
		RowCount:    a.RowCount,
		HeadersJSON: string(headers),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return toDomainAnalysis(m)
}

func (r *AnalysisRepository) GetByDatasetID(ctx context.Context, datasetID string) (*domain.DatasetAnalysis, error) {
	var m datasetAnalysisModel
	err := r.db.WithContext(ctx).Where("dataset_id = ?", datasetID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainAnalysis(m)
}

// ReplaceResults swaps the per-type validation rows in one transaction
// so re-running validation never leaves stale matches behind.
func (r *AnalysisRepository) ReplaceResults(ctx context.Context, analysisID string, results []domain.HeaderValidationResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("analysis_id = ?", analysisID).Delete(&headerValidationModel{}).Error; err != nil {
			return err
		}
		for _, res := range results {
			m := headerValidationModel{
				ID:            res.ID,
				AnalysisID:    analysisID,
				HeaderType:    string(res.HeaderType),
				MatchedColumn: res.MatchedColumn,
				Confidence:    res.Confidence,
				Found:         res.Found,
				Method:        res.Method,
				CreatedAt:     res.CreatedAt,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AnalysisRepository) ListResults(ctx context.Context, analysisID string) ([]domain.HeaderValidationResult, error) {
	var models []headerValidationModel
	err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("header_type ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.HeaderValidationResult, 0, len(models))
	for _, m := range models {
		out = append(out, toDomainHeaderResult(m))
	}
	return out, nil
}

func (r *AnalysisRepository) SetValidated(ctx context.Context, analysisID string, validated bool, at time.Time) error {
	updates := map[string]any{
		"is_validated": validated,
		"updated_at":   at,
	}
	if validated {
		updates["validation_completed_at"] = at
	} else {
		updates["validation_completed_at"] = nil
	}
	return r.db.WithContext(ctx).Model(&datasetAnalysisModel{}).
		Where("id = ?", analysisID).Updates(updates).Error
}

func (r *AnalysisRepository) DeleteByDataset(ctx context.Context, datasetID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m datasetAnalysisModel
		err := tx.Where("dataset_id = ?", datasetID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("analysis_id = ?", m.ID).Delete(&headerValidationModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&m).Error
	})
}
