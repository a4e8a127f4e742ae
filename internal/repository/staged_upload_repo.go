package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"salespulse/internal/domain"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type StagedUploadRepository struct {
	db *gorm.DB
}

func NewStagedUploadRepository(db *gorm.DB) *StagedUploadRepository {
	return &StagedUploadRepository{db: db}
}

type stagedUploadModel struct {
	ID               string     `gorm:"column:id;primaryKey"`
	UserID           int64      `gorm:"column:user_id;index"`
	OriginalFilename string     `gorm:"column:original_filename"`
	StorageKey       string     `gorm:"column:storage_key"`
	FileSize         int64      `gorm:"column:file_size"`
	FileType         string     `gorm:"column:file_type"`
	Status           string     `gorm:"column:status;index"`
	PreviewJSON      *string    `gorm:"column:preview_data;type:text"`
	ErrorsJSON       *string    `gorm:"column:validation_errors;type:text"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;index"`
	ConfirmedAt      *time.Time `gorm:"column:confirmed_at"`
}

func (stagedUploadModel) TableName() string { return "staged_uploads" }

func toStagedUploadModel(u *domain.StagedUpload) (stagedUploadModel, error) {
	m := stagedUploadModel{
		ID:               u.ID,
		UserID:           u.UserID,
		OriginalFilename: u.OriginalFilename,
		StorageKey:       u.StorageKey,
		FileSize:         u.FileSize,
		FileType:         u.FileType,
		Status:           string(u.Status),
		CreatedAt:        u.CreatedAt,
		ExpiresAt:        u.ExpiresAt,
		ConfirmedAt:      u.ConfirmedAt,
	}
	if u.Preview != nil {
		b, err := json.Marshal(u.Preview)
		if err != nil {
			return m, err
		}
		s := string(b)
		m.PreviewJSON = &s
	}
	if len(u.ValidationErrors) > 0 {
		b, err := json.Marshal(u.ValidationErrors)
		if err != nil {
			return m, err
		}
		s := string(b)
		m.ErrorsJSON = &s
	}
	return m, nil
}

func toDomainStagedUpload(m stagedUploadModel) (*domain.StagedUpload, error) {
	u := &domain.StagedUpload{
		ID:               m.ID,
		UserID:           m.UserID,
		OriginalFilename: m.OriginalFilename,
		StorageKey:       m.StorageKey,
		FileSize:         m.FileSize,
		FileType:         m.FileType,
		Status:           domain.UploadStatus(m.Status),
		CreatedAt:        m.CreatedAt,
		ExpiresAt:        m.ExpiresAt,
		ConfirmedAt:      m.ConfirmedAt,
	}
	if m.PreviewJSON != nil {
		var p domain.FilePreview
		if err := json.Unmarshal([]byte(*m.PreviewJSON), &p); err != nil {
			return nil, err
		}
		u.Preview = &p
	}
	if m.ErrorsJSON != nil {
		if err := json.Unmarshal([]byte(*m.ErrorsJSON), &u.ValidationErrors); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (r *StagedUploadRepository) Create(ctx context.Context, u *domain.StagedUpload) error {
	m, err := toStagedUploadModel(u)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *StagedUploadRepository) GetByID(ctx context.Context, id string) (*domain.StagedUpload, error) {
	var m stagedUploadModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainStagedUpload(m)
}

// MarkConfirmed flips a validated record to confirmed. The WHERE clause
// on the current status makes the transition optimistic: a concurrent
// sweep or a second confirm sees zero affected rows.
func (r *StagedUploadRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&stagedUploadModel{}).
		Where("id = ? AND status = ?", id, string(domain.UploadValidated)).
		Updates(map[string]any{"status": string(domain.UploadConfirmed), "confirmed_at": at})
	return tx.RowsAffected == 1, tx.Error
}

// MarkExpired transitions a still-pending record to expired. Returns
// false when the record moved to another state first (e.g. a confirm
// racing the sweep), in which case the sweep must leave it alone.
func (r *StagedUploadRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&stagedUploadModel{}).
		Where("id = ? AND status IN ?", id, []string{string(domain.UploadUploaded), string(domain.UploadValidated)}).
		Update("status", string(domain.UploadExpired))
	return tx.RowsAffected == 1, tx.Error
}

// ListExpired returns non-terminal records whose TTL elapsed before now.
func (r *StagedUploadRepository) ListExpired(ctx context.Context, now time.Time) ([]*domain.StagedUpload, error) {
	var models []stagedUploadModel
	err := r.db.WithContext(ctx).
		Where("expires_at <= ? AND status IN ?", now, []string{string(domain.UploadUploaded), string(domain.UploadValidated)}).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.StagedUpload, 0, len(models))
	for _, m := range models {
		u, err := toDomainStagedUpload(m)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *StagedUploadRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&stagedUploadModel{}).Error
}
