package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"salespulse/internal/domain"
	"salespulse/internal/pkg/blob"
	"salespulse/internal/pkg/tabular"
)

// Service stages uploaded spreadsheet files: store raw bytes, parse a
// preview, validate structure, and hold the record until the user
// confirms or the TTL sweeps it away.
type Service struct {
	repo        UploadRepository
	blobs       blob.Store
	maxSize     int64
	previewRows int
	ttl         time.Duration
}

func NewService(repo UploadRepository, blobs blob.Store, maxSize int64, previewRows int, ttl time.Duration) *Service {
	return &Service{
		repo:        repo,
		blobs:       blobs,
		maxSize:     maxSize,
		previewRows: previewRows,
		ttl:         ttl,
	}
}

// Stage validates and stores an uploaded file. A structurally broken
// file is still recorded (status stays "uploaded" with the problems
// listed) so the client can show the user what went wrong; only
// rejections like size and file type return an error.
func (s *Service) Stage(ctx context.Context, userID int64, filename string, size int64, r io.Reader) (*domain.StagedUpload, error) {
	if size == 0 {
		return nil, ErrEmptyFile
	}
	if size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	fileType := tabular.DetectFileType(filename)
	if !tabular.AllowedFileTypes[fileType] {
		return nil, ErrInvalidFileType
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	now := time.Now().UTC()
	id := uuid.New().String()
	key := fmt.Sprintf("staging/%s/%s.%s", now.Format("2006/01/02"), id, fileType)

	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	u := &domain.StagedUpload{
		ID:               id,
		UserID:           userID,
		OriginalFilename: filename,
		StorageKey:       key,
		FileSize:         int64(len(data)),
		FileType:         fileType,
		Status:           domain.UploadUploaded,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}

	if problem := tabular.CheckContentType(data, fileType); problem != "" {
		u.ValidationErrors = []string{problem}
	} else if table, parseErr := tabular.Read(data, fileType, 0); parseErr != nil {
		u.ValidationErrors = []string{parseErr.Error()}
	} else if problems := tabular.CheckStructure(table); len(problems) > 0 {
		u.ValidationErrors = problems
	} else {
		u.Status = domain.UploadValidated
		u.Preview = &domain.FilePreview{
			Columns:      table.Columns,
			Rows:         table.RowMaps(s.previewRows),
			SampledRows:  min(s.previewRows, table.RowCount()),
			TotalColumns: len(table.Columns),
		}
	}

	if err := s.repo.Create(ctx, u); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}
	return u, nil
}

// GetPreview returns the staged record with its sampled rows. Expiry is
// checked against the clock, not just the status, so a record the sweep
// has not reached yet still reads as expired.
func (s *Service) GetPreview(ctx context.Context, userID int64, id string) (*domain.StagedUpload, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.UserID != userID {
		return nil, ErrNotOwner
	}
	if u.Status == domain.UploadExpired || (!u.Status.Terminal() && u.Expired(time.Now().UTC())) {
		return nil, ErrExpired
	}
	return u, nil
}

// Discard removes a staged upload and its stored bytes. Terminal
// records (confirmed, expired, failed) are out of reach.
func (s *Service) Discard(ctx context.Context, userID int64, id string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.UserID != userID {
		return ErrNotOwner
	}
	if u.Status.Terminal() {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, u.StorageKey); err != nil {
		log.Printf("staging: delete blob %s: %v", u.StorageKey, err)
	}
	return nil
}

// ExpireSweep marks overdue records expired and frees their blobs.
// The optimistic MarkExpired keeps the sweep from clobbering a confirm
// that lands between the list and the update.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	overdue, err := s.repo.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, u := range overdue {
		won, err := s.repo.MarkExpired(ctx, u.ID)
		if err != nil {
			return expired, err
		}
		if !won {
			continue // confirmed or discarded while we were sweeping
		}
		expired++
		if err := s.blobs.Delete(ctx, u.StorageKey); err != nil {
			log.Printf("staging: delete expired blob %s: %v", u.StorageKey, err)
		}
	}
	return expired, nil
}
