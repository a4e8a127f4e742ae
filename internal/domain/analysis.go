package domain

import "time"

// HeaderType is one of the canonical business-data roles the downstream
// insights stage requires.
type HeaderType string

const (
	HeaderTimestamp HeaderType = "timestamp"
	HeaderProductID HeaderType = "product_id"
	HeaderQuantity  HeaderType = "quantity"
	HeaderRevenue   HeaderType = "revenue"
)

// AllHeaderTypes returns the canonical types in stable order.
func AllHeaderTypes() []HeaderType {
	return []HeaderType{HeaderTimestamp, HeaderProductID, HeaderQuantity, HeaderRevenue}
}

// DatasetAnalysis is the read-oriented projection the validation and
// insights stages operate on. Created when an import completes, updated
// by the header validation service.
type DatasetAnalysis struct {
	ID                    string
	UserID                int64
	DatasetID             string
	DisplayName           string
	StorageKey            string
	FileSize              int64
	RowCount              int64
	Headers               []string
	IsValidated           bool
	ValidationCompletedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HeaderValidationResult records the matcher verdict for one canonical
// header type on one dataset. At most one row exists per
// (analysis, header type) pair; re-validation replaces it.
type HeaderValidationResult struct {
	ID            string
	AnalysisID    string
	HeaderType    HeaderType
	MatchedColumn string // empty when not found
	Confidence    int    // 0-100
	Found         bool
	Method        string // "name" or "content"
	CreatedAt     time.Time
}
