package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"salespulse/internal/domain"

	"gorm.io/gorm"
)

type ProcessedUploadRepository struct {
	db *gorm.DB
}

func NewProcessedUploadRepository(db *gorm.DB) *ProcessedUploadRepository {
	return &ProcessedUploadRepository{db: db}
}

type processedUploadModel struct {
	ID               string     `gorm:"column:id;primaryKey"`
	UserID           int64      `gorm:"column:user_id;index"`
	StagedUploadID   string     `gorm:"column:staged_upload_id;uniqueIndex"`
	OriginalFilename string     `gorm:"column:original_filename"`
	StorageKey       string     `gorm:"column:storage_key"`
	FileSize         int64      `gorm:"column:file_size"`
	FileType         string     `gorm:"column:file_type"`
	Status           string     `gorm:"column:processing_status"`
	RowCount         int64      `gorm:"column:row_count"`
	ColumnCount      int        `gorm:"column:column_count"`
	ErrorsJSON       *string    `gorm:"column:processing_errors;type:text"`
	JobID            string     `gorm:"column:job_id"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	ProcessedAt      *time.Time `gorm:"column:processed_at"`
}

func (processedUploadModel) TableName() string { return "processed_uploads" }

func toProcessedUploadModel(p *domain.ProcessedUpload) (processedUploadModel, error) {
	m := processedUploadModel{
		ID:               p.ID,
		UserID:           p.UserID,
		StagedUploadID:   p.StagedUploadID,
		OriginalFilename: p.OriginalFilename,
		StorageKey:       p.StorageKey,
		FileSize:         p.FileSize,
		FileType:         p.FileType,
		Status:           string(p.Status),
		RowCount:         p.RowCount,
		ColumnCount:      p.ColumnCount,
		JobID:            p.JobID,
		CreatedAt:        p.CreatedAt,
		ProcessedAt:      p.ProcessedAt,
	}
	if len(p.ProcessingErrors) > 0 {
		b, err := json.Marshal(p.ProcessingErrors)
		if err != nil {
			return m, err
		}
		s := string(b)
		m.ErrorsJSON = &s
	}
	return m, nil
}

func toDomainProcessedUpload(m processedUploadModel) (*domain.ProcessedUpload, error) {
	p := &domain.ProcessedUpload{
		ID:               m.ID,
		UserID:           m.UserID,
		StagedUploadID:   m.StagedUploadID,
		OriginalFilename: m.OriginalFilename,
		StorageKey:       m.StorageKey,
		FileSize:         m.FileSize,
		FileType:         m.FileType,
		Status:           domain.ProcessingStatus(m.Status),
		RowCount:         m.RowCount,
		ColumnCount:      m.ColumnCount,
		JobID:            m.JobID,
		CreatedAt:        m.CreatedAt,
		ProcessedAt:      m.ProcessedAt,
	}
	if m.ErrorsJSON != nil {
		if err := json.Unmarshal([]byte(*m.ErrorsJSON), &p.ProcessingErrors); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (r *ProcessedUploadRepository) Create(ctx context.Context, p *domain.ProcessedUpload) error {
	m, err := toProcessedUploadModel(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *ProcessedUploadRepository) GetByID(ctx context.Context, id string) (*domain.ProcessedUpload, error) {
	var m processedUploadModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainProcessedUpload(m)
}

// UpdateStatus enforces the processing state machine before writing.
func (r *ProcessedUploadRepository) UpdateStatus(ctx context.Context, id string, next domain.ProcessingStatus) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.Status.CanTransitionTo(next) {
		return errors.New("illegal processing status transition: " + string(p.Status) + " -> " + string(next))
	}
	updates := map[string]any{"processing_status": string(next)}
	if next.Terminal() {
		updates["processed_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Model(&processedUploadModel{}).
		Where("id = ?", id).Updates(updates).Error
}

// Finish records terminal counts and errors alongside the final status.
func (r *ProcessedUploadRepository) Finish(ctx context.Context, id string, status domain.ProcessingStatus, rowCount int64, columnCount int, procErrors []string) error {
	updates := map[string]any{
		"processing_status": string(status),
		"row_count":         rowCount,
		"column_count":      columnCount,
		"processed_at":      time.Now().UTC(),
	}
	if len(procErrors) > 0 {
		b, err := json.Marshal(procErrors)
		if err != nil {
			return err
		}
		updates["processing_errors"] = string(b)
	}
	return r.db.WithContext(ctx).Model(&processedUploadModel{}).
		Where("id = ?", id).Updates(updates).Error
}

func (r *ProcessedUploadRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&processedUploadModel{}).Error
}
