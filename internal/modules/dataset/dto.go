package dataset

import (
	"time"

	"salespulse/internal/domain"
)

type ConfirmRequest struct {
	SelectedColumns []string `json:"selected_columns" binding:"required"`
	DisplayName     string   `json:"display_name"`
}

type DatasetResponse struct {
	ID              string            `json:"id"`
	DisplayName     string            `json:"display_name"`
	TableName       string            `json:"table_name"`
	SelectedColumns []string          `json:"selected_columns"`
	ColumnMapping   map[string]string `json:"column_mapping"`
	ColumnTypes     map[string]string `json:"column_types"`
	ImportStatus    string            `json:"import_status"`
	TotalRows       int64             `json:"total_rows"`
	ProcessedRows   int64             `json:"processed_rows"`
	Progress        int               `json:"progress_percentage"`
	JobID           string            `json:"job_id"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
}

func toResponse(d *domain.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:              d.ID,
		DisplayName:     d.DisplayName,
		TableName:       d.TableName,
		SelectedColumns: d.SelectedColumns,
		ColumnMapping:   d.ColumnMapping,
		ColumnTypes:     d.ColumnTypes,
		ImportStatus:    string(d.ImportStatus),
		TotalRows:       d.TotalRows,
		ProcessedRows:   d.ProcessedRows,
		Progress:        d.ProgressPercentage(),
		JobID:           d.JobID,
		CreatedAt:       d.CreatedAt,
		CompletedAt:     d.CompletedAt,
		ErrorMessage:    d.ErrorMessage,
	}
}

// DatasetDetailResponse extends the list item with the validation state
// from the analysis projection, once one exists.
type DatasetDetailResponse struct {
	DatasetResponse
	HeadersValidated      bool       `json:"headers_validated"`
	ValidationCompletedAt *time.Time `json:"validation_completed_at,omitempty"`
}

func toDetailResponse(d *domain.Dataset, a *domain.DatasetAnalysis) DatasetDetailResponse {
	out := DatasetDetailResponse{DatasetResponse: toResponse(d)}
	if a != nil {
		out.HeadersValidated = a.IsValidated
		out.ValidationCompletedAt = a.ValidationCompletedAt
	}
	return out
}

type PreviewResponse struct {
	Columns   []string            `json:"columns"`
	Rows      []map[string]string `json:"rows"`
	TotalRows int64               `json:"total_rows"`
}
