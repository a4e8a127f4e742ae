package domain

import "time"

type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingRunning   ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingCompleted || s == ProcessingFailed
}

func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case ProcessingPending:
		return next == ProcessingRunning || next == ProcessingFailed
	case ProcessingRunning:
		return next == ProcessingCompleted || next == ProcessingFailed
	}
	return false
}

// ProcessedUpload is the permanent counterpart of a StagedUpload, created
// at confirmation time. Only the import orchestrator mutates it; once
// completed or failed it is immutable.
type ProcessedUpload struct {
	ID               string
	UserID           int64
	StagedUploadID   string
	OriginalFilename string
	StorageKey       string
	FileSize         int64
	FileType         string
	Status           ProcessingStatus
	RowCount         int64
	ColumnCount      int
	ProcessingErrors []string
	JobID            string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}
