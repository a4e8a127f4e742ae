package domain

import (
	"math"
	"time"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case TaskPending:
		return next == TaskRunning || next == TaskCancelled
	case TaskRunning:
		return next == TaskCompleted || next == TaskFailed || next == TaskCancelled ||
			next == TaskPending // requeue after a transient failure
	}
	return false
}

// ImportTask is one tracked unit of importable work. It doubles as the
// durable job queue: workers claim pending rows, and polling clients
// observe progress by job id. Only the orchestrator mutates it.
type ImportTask struct {
	ID              string
	UserID          int64
	DatasetID       string
	JobID           string // external reference handed to polling clients
	TaskName        string
	Status          TaskStatus
	CurrentStep     int64
	TotalSteps      int64
	ProgressMessage string
	RetryCount      int
	CancelRequested bool
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ErrorMessage    string
}

func (t *ImportTask) ProgressPercentage() int {
	if t.TotalSteps <= 0 {
		return 0
	}
	p := int(math.Round(float64(t.CurrentStep) / float64(t.TotalSteps) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
