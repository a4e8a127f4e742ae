package domain

import "time"

type UploadStatus string

const (
	UploadUploaded   UploadStatus = "uploaded"
	UploadValidated  UploadStatus = "validated"
	UploadConfirmed  UploadStatus = "confirmed"
	UploadProcessing UploadStatus = "processing"
	UploadFailed     UploadStatus = "failed"
	UploadExpired    UploadStatus = "expired"
)

// Terminal reports whether the status admits no further transitions
// other than cleanup.
func (s UploadStatus) Terminal() bool {
	return s == UploadConfirmed || s == UploadFailed || s == UploadExpired
}

// CanTransitionTo encodes the staging state machine:
// uploaded -> validated -> confirmed, with failed/expired reachable from
// any non-terminal state. Terminal states never move again.
func (s UploadStatus) CanTransitionTo(next UploadStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case UploadUploaded:
		return next == UploadValidated || next == UploadFailed || next == UploadExpired
	case UploadValidated:
		return next == UploadConfirmed || next == UploadFailed || next == UploadExpired
	case UploadProcessing:
		return next == UploadFailed
	}
	return false
}

// FilePreview is the sampled view of a staged file shown to the user
// before column selection. It is written once at staging time and
// read-only afterwards.
type FilePreview struct {
	Columns      []string            `json:"columns"`
	Rows         []map[string]string `json:"rows"`
	SampledRows  int                 `json:"total_rows_sample"`
	TotalColumns int                 `json:"total_columns"`
}

// StagedUpload is the time-limited holding record for an uploaded file
// pending user confirmation.
type StagedUpload struct {
	ID               string
	UserID           int64
	OriginalFilename string
	StorageKey       string
	FileSize         int64
	FileType         string // csv, xlsx, xls
	Status           UploadStatus
	Preview          *FilePreview
	ValidationErrors []string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	ConfirmedAt      *time.Time
}

// Expired reports whether the record is past its TTL at the given instant.
func (u *StagedUpload) Expired(now time.Time) bool {
	return !now.Before(u.ExpiresAt)
}
