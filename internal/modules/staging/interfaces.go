package staging

import (
	"context"
	"time"

	"salespulse/internal/domain"
)

// UploadRepository defines the persistence operations the staging
// service needs.
type UploadRepository interface {
	Create(ctx context.Context, u *domain.StagedUpload) error
	GetByID(ctx context.Context, id string) (*domain.StagedUpload, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]*domain.StagedUpload, error)
	Delete(ctx context.Context, id string) error
}
