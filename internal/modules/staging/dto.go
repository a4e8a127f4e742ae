package staging

import (
	"time"

	"salespulse/internal/domain"
)

type StagedUploadResponse struct {
	ID               string              `json:"id"`
	OriginalFilename string              `json:"original_filename"`
	FileSize         int64               `json:"file_size"`
	FileType         string              `json:"file_type"`
	Status           string              `json:"status"`
	Preview          *domain.FilePreview `json:"preview,omitempty"`
	ValidationErrors []string            `json:"validation_errors,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
}

func toResponse(u *domain.StagedUpload) StagedUploadResponse {
	return StagedUploadResponse{
		ID:               u.ID,
		OriginalFilename: u.OriginalFilename,
		FileSize:         u.FileSize,
		FileType:         u.FileType,
		Status:           string(u.Status),
		Preview:          u.Preview,
		ValidationErrors: u.ValidationErrors,
		CreatedAt:        u.CreatedAt,
		ExpiresAt:        u.ExpiresAt,
	}
}
