package domain

import (
	"math"
	"time"
)

type ImportStatus string

const (
	ImportPending   ImportStatus = "pending"
	ImportRunning   ImportStatus = "processing"
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
	ImportCancelled ImportStatus = "cancelled"
)

func (s ImportStatus) Terminal() bool {
	return s == ImportCompleted || s == ImportFailed || s == ImportCancelled
}

func (s ImportStatus) CanTransitionTo(next ImportStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case ImportPending:
		return next == ImportRunning || next == ImportFailed || next == ImportCancelled
	case ImportRunning:
		return next == ImportCompleted || next == ImportFailed || next == ImportCancelled
	}
	return false
}

// Dataset describes a materialized, queryable dataset built from the
// columns the user selected at confirmation. The backing table is owned
// exclusively by the import orchestrator while the import runs and is
// read-only once completed.
type Dataset struct {
	ID                string
	UserID            int64
	ProcessedUploadID string
	TableName         string
	DisplayName       string
	SelectedColumns   []string
	ColumnMapping     map[string]string // original name -> sanitized name
	ColumnTypes       map[string]string // sanitized name -> SQL type
	ImportStatus      ImportStatus
	TotalRows         int64
	ProcessedRows     int64
	JobID             string
	CreatedAt         time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
}

// ProgressPercentage reports import completion in [0,100]; zero totals
// report zero rather than dividing.
func (d *Dataset) ProgressPercentage() int {
	if d.TotalRows <= 0 {
		return 0
	}
	p := int(math.Round(float64(d.ProcessedRows) / float64(d.TotalRows) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
