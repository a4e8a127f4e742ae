package repository

import (
	"context"
	"errors"
	"time"

	"salespulse/internal/domain"

	"gorm.io/gorm"
)

type ImportTaskRepository struct {
	db *gorm.DB
}

func NewImportTaskRepository(db *gorm.DB) *ImportTaskRepository {
	return &ImportTaskRepository{db: db}
}

type importTaskModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	UserID          int64      `gorm:"column:user_id;index"`
	DatasetID       string     `gorm:"column:dataset_id;index"`
	JobID           string     `gorm:"column:job_id;uniqueIndex"`
	TaskName        string     `gorm:"column:task_name"`
	Status          string     `gorm:"column:status;index"`
	CurrentStep     int64      `gorm:"column:current_step"`
	TotalSteps      int64      `gorm:"column:total_steps"`
	ProgressMessage string     `gorm:"column:progress_message"`
	RetryCount      int        `gorm:"column:retry_count"`
	CancelRequested bool       `gorm:"column:cancel_requested"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	StartedAt       *time.Time `gorm:"column:started_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	ErrorMessage    string     `gorm:"column:error_message;type:text"`
}

func (importTaskModel) TableName() string { return "import_tasks" }

func toImportTaskModel(t *domain.ImportTask) importTaskModel {
	return importTaskModel{
		ID:              t.ID,
		UserID:          t.UserID,
		DatasetID:       t.DatasetID,
		JobID:           t.JobID,
		TaskName:        t.TaskName,
		Status:          string(t.Status),
		CurrentStep:     t.CurrentStep,
		TotalSteps:      t.TotalSteps,
		ProgressMessage: t.ProgressMessage,
		RetryCount:      t.RetryCount,
		CancelRequested: t.CancelRequested,
		CreatedAt:       t.CreatedAt,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		ErrorMessage:    t.ErrorMessage,
	}
}

func toDomainImportTask(m importTaskModel) *domain.ImportTask {
	return &domain.ImportTask{
		ID:              m.ID,
		UserID:          m.UserID,
		DatasetID:       m.DatasetID,
		JobID:           m.JobID,
		TaskName:        m.TaskName,
		Status:          domain.TaskStatus(m.Status),
		CurrentStep:     m.CurrentStep,
		TotalSteps:      m.TotalSteps,
		ProgressMessage: m.ProgressMessage,
		RetryCount:      m.RetryCount,
		CancelRequested: m.CancelRequested,
		CreatedAt:       m.CreatedAt,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		ErrorMessage:    m.ErrorMessage,
	}
}

func (r *ImportTaskRepository) Create(ctx context.Context, t *domain.ImportTask) error {
	m := toImportTaskModel(t)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *ImportTaskRepository) GetByJobID(ctx context.Context, jobID string) (*domain.ImportTask, error) {
	var m importTaskModel
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainImportTask(m), nil
}

// ClaimNext atomically moves the oldest pending task to running and
// returns it. Returns (nil, nil) when the queue is empty. The optimistic
// status predicate makes concurrent workers safe: only one claim wins.
func (r *ImportTaskRepository) ClaimNext(ctx context.Context) (*domain.ImportTask, error) {
	for {
		var m importTaskModel
		err := r.db.WithContext(ctx).
			Where("status = ?", string(domain.TaskPending)).
			Order("created_at ASC").
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		tx := r.db.WithContext(ctx).Model(&importTaskModel{}).
			Where("id = ? AND status = ?", m.ID, string(domain.TaskPending)).
			Updates(map[string]any{"status": string(domain.TaskRunning), "started_at": now})
		if tx.Error != nil {
			return nil, tx.Error
		}
		if tx.RowsAffected == 0 {
			continue // lost the race, try the next pending task
		}

		m.Status = string(domain.TaskRunning)
		m.StartedAt = &now
		return toDomainImportTask(m), nil
	}
}

func (r *ImportTaskRepository) UpdateProgress(ctx context.Context, id string, current, total int64, message string) error {
	return r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_step":     current,
			"total_steps":      total,
			"progress_message": message,
		}).Error
}

func (r *ImportTaskRepository) Complete(ctx context.Context, id string, message string) error {
	return r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ? AND status = ?", id, string(domain.TaskRunning)).
		Updates(map[string]any{
			"status":           string(domain.TaskCompleted),
			"progress_message": message,
			"completed_at":     time.Now().UTC(),
		}).Error
}

func (r *ImportTaskRepository) Fail(ctx context.Context, id string, errorMessage string) error {
	return r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ? AND status = ?", id, string(domain.TaskRunning)).
		Updates(map[string]any{
			"status":        string(domain.TaskFailed),
			"error_message": errorMessage,
			"completed_at":  time.Now().UTC(),
		}).Error
}

// Requeue puts a running task back on the queue after a transient
// failure, bumping the retry counter.
func (r *ImportTaskRepository) Requeue(ctx context.Context, id string, reason string) error {
	return r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ? AND status = ?", id, string(domain.TaskRunning)).
		Updates(map[string]any{
			"status":        string(domain.TaskPending),
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": reason,
		}).Error
}

// CancelPending removes a queued task synchronously. Returns false if
// the task already left the pending state.
func (r *ImportTaskRepository) CancelPending(ctx context.Context, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ? AND status = ?", id, string(domain.TaskPending)).
		Updates(map[string]any{
			"status":       string(domain.TaskCancelled),
			"completed_at": time.Now().UTC(),
		})
	return tx.RowsAffected == 1, tx.Error
}

// RequestCancel sets the cooperative cancellation flag the orchestrator
// checks between chunks.
func (r *ImportTaskRepository) RequestCancel(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ?", id).
		Update("cancel_requested", true).Error
}

func (r *ImportTaskRepository) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	var m importTaskModel
	err := r.db.WithContext(ctx).Select("cancel_requested").Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrNotFound
	}
	return m.CancelRequested, err
}

func (r *ImportTaskRepository) MarkCancelled(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&importTaskModel{}).
		Where("id = ? AND status IN ?", id, []string{string(domain.TaskPending), string(domain.TaskRunning)}).
		Updates(map[string]any{
			"status":       string(domain.TaskCancelled),
			"completed_at": time.Now().UTC(),
		}).Error
}

// DeleteTerminalOlderThan prunes finished task rows past the retention
// window. Returns the number of rows removed.
func (r *ImportTaskRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("completed_at < ? AND status IN ?", cutoff,
			[]string{string(domain.TaskCompleted), string(domain.TaskFailed), string(domain.TaskCancelled)}).
		Delete(&importTaskModel{})
	return tx.RowsAffected, tx.Error
}

func (r *ImportTaskRepository) DeleteByDataset(ctx context.Context, datasetID string) error {
	return r.db.WithContext(ctx).Where("dataset_id = ?", datasetID).Delete(&importTaskModel{}).Error
}
