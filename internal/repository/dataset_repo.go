package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"salespulse/internal/domain"

	"gorm.io/gorm"
)

type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

type datasetModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	UserID            int64      `gorm:"column:user_id;index"`
	ProcessedUploadID string     `gorm:"column:processed_upload_id;uniqueIndex"`
	DataTableName     string     `gorm:"column:table_name;uniqueIndex"`
	DisplayName       string     `gorm:"column:display_name"`
	SelectedColumns   string     `gorm:"column:selected_columns;type:text"`
	ColumnMapping     string     `gorm:"column:column_mapping;type:text"`
	ColumnTypes       string     `gorm:"column:column_types;type:text"`
	ImportStatus      string     `gorm:"column:import_status;index"`
	TotalRows         int64      `gorm:"column:total_rows"`
	ProcessedRows     int64      `gorm:"column:processed_rows"`
	JobID             string     `gorm:"column:job_id"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	ErrorMessage      string     `gorm:"column:error_message;type:text"`
}

func (datasetModel) TableName() string { return "datasets" }

func toDatasetModel(d *domain.Dataset) (datasetModel, error) {
	cols, err := json.Marshal(d.SelectedColumns)
	if err != nil {
		return datasetModel{}, err
	}
	mapping, err := json.Marshal(d.ColumnMapping)
	if err != nil {
		return datasetModel{}, err
	}
	types, err := json.Marshal(d.ColumnTypes)
	if err != nil {
		return datasetModel{}, err
	}
	return datasetModel{
		ID:                d.ID,
		UserID:            d.UserID,
		ProcessedUploadID: d.ProcessedUploadID,
		DataTableName:     d.TableName,
		DisplayName:       d.DisplayName,
		SelectedColumns:   string(cols),
		ColumnMapping:     string(mapping),
		ColumnTypes:       string(types),
		ImportStatus:      string(d.ImportStatus),
		TotalRows:         d.TotalRows,
		ProcessedRows:     d.ProcessedRows,
		JobID:             d.JobID,
		CreatedAt:         d.CreatedAt,
		CompletedAt:       d.CompletedAt,
		ErrorMessage:      d.ErrorMessage,
	}, nil
}

func toDomainDataset(m datasetModel) (*domain.Dataset, error) {
	d := &domain.Dataset{
		ID:                m.ID,
		UserID:            m.UserID,
		ProcessedUploadID: m.ProcessedUploadID,
		TableName:         m.DataTableName,
		DisplayName:       m.DisplayName,
		ImportStatus:      domain.ImportStatus(m.ImportStatus),
		TotalRows:         m.TotalRows,
		ProcessedRows:     m.ProcessedRows,
		JobID:             m.JobID,
		CreatedAt:         m.CreatedAt,
		CompletedAt:       m.CompletedAt,
		ErrorMessage:      m.ErrorMessage,
	}
	if err := json.Unmarshal([]byte(m.SelectedColumns), &d.SelectedColumns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m.ColumnMapping), &d.ColumnMapping); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m.ColumnTypes), &d.ColumnTypes); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DatasetRepository) Create(ctx context.Context, d *domain.Dataset) error {
	m, err := toDatasetModel(d)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	var m datasetModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainDataset(m)
}

func (r *DatasetRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Dataset, error) {
	var models []datasetModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Dataset, 0, len(models))
	for _, m := range models {
		d, err := toDomainDataset(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// UpdateStatus enforces the import state machine before writing.
func (r *DatasetRepository) UpdateStatus(ctx context.Context, id string, next domain.ImportStatus, errorMessage string) error {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !d.ImportStatus.CanTransitionTo(next) {
		return errors.New("illegal import status transition: " + string(d.ImportStatus) + " -> " + string(next))
	}
	updates := map[string]any{"import_status": string(next)}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	if next.Terminal() {
		updates["completed_at"] = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Model(&datasetModel{}).
		Where("id = ?", id).Updates(updates).Error
}

func (r *DatasetRepository) UpdateProgress(ctx context.Context, id string, processedRows, totalRows int64) error {
	return r.db.WithContext(ctx).Model(&datasetModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"processed_rows": processedRows, "total_rows": totalRows}).Error
}

func (r *DatasetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&datasetModel{}).Error
}
