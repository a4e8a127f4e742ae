package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"salespulse/internal/domain"
	"salespulse/internal/pkg/blob"
	"salespulse/internal/pkg/tabular"
	"salespulse/internal/repository"
)

type Service struct {
	staged      StagedUploadRepository
	processed   ProcessedUploadRepository
	datasets    DatasetRepository
	tasks       ImportTaskRepository
	tables      DatasetTableRepository
	analyses    AnalysisRepository
	blobs       blob.Store
	previewRows int
}

func NewService(
	staged StagedUploadRepository,
	processed ProcessedUploadRepository,
	datasets DatasetRepository,
	tasks ImportTaskRepository,
	tables DatasetTableRepository,
	analyses AnalysisRepository,
	blobs blob.Store,
	previewRows int,
) *Service {
	return &Service{
		staged:      staged,
		processed:   processed,
		datasets:    datasets,
		tasks:       tasks,
		tables:      tables,
		analyses:    analyses,
		blobs:       blobs,
		previewRows: previewRows,
	}
}

// Confirm turns a validated staged upload into a dataset and queues the
// import. The staged record is flipped to confirmed first, with an
// optimistic status predicate, so a double confirm or a racing expiry
// sweep can never produce two datasets for one upload.
func (s *Service) Confirm(ctx context.Context, userID int64, stagedID string, selectedColumns []string, displayName string) (*domain.Dataset, error) {
	u, err := s.staged.GetByID(ctx, stagedID)
	if err != nil {
		return nil, err
	}
	if u.UserID != userID {
		return nil, ErrNotOwner
	}

	now := time.Now().UTC()
	switch {
	case u.Status == domain.UploadConfirmed:
		return nil, ErrAlreadyConfirmed
	case u.Status == domain.UploadExpired || u.Expired(now):
		return nil, ErrExpired
	case u.Status != domain.UploadValidated || u.Preview == nil:
		return nil, ErrNotConfirmable
	}

	ordered, err := resolveSelection(u.Preview.Columns, selectedColumns)
	if err != nil {
		return nil, err
	}

	won, err := s.staged.MarkConfirmed(ctx, stagedID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrAlreadyConfirmed
	}

	jobID := uuid.New().String()
	processed := &domain.ProcessedUpload{
		ID:               uuid.New().String(),
		UserID:           userID,
		StagedUploadID:   u.ID,
		OriginalFilename: u.OriginalFilename,
		StorageKey:       u.StorageKey,
		FileSize:         u.FileSize,
		FileType:         u.FileType,
		Status:           domain.ProcessingPending,
		JobID:            jobID,
		CreatedAt:        now,
	}
	if err := s.processed.Create(ctx, processed); err != nil {
		return nil, err
	}

	if displayName == "" {
		displayName = u.OriginalFilename
	}

	mapping := tabular.ColumnMapping(ordered)
	types := detectColumnTypes(u.Preview, ordered, mapping)

	d := &domain.Dataset{
		ID:                uuid.New().String(),
		UserID:            userID,
		ProcessedUploadID: processed.ID,
		TableName:         tabular.TableName(userID, u.OriginalFilename, now),
		DisplayName:       displayName,
		SelectedColumns:   ordered,
		ColumnMapping:     mapping,
		ColumnTypes:       types,
		ImportStatus:      domain.ImportPending,
		JobID:             jobID,
		CreatedAt:         now,
	}
	if err := s.datasets.Create(ctx, d); err != nil {
		return nil, err
	}

	task := &domain.ImportTask{
		ID:        uuid.New().String(),
		UserID:    userID,
		DatasetID: d.ID,
		JobID:     jobID,
		TaskName:  fmt.Sprintf("import %s", u.OriginalFilename),
		Status:    domain.TaskPending,
		CreatedAt: now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	return d, nil
}

// resolveSelection checks the requested columns against the file header
// and returns them in file order, so the physical layout is stable no
// matter how the client ordered the request.
func resolveSelection(fileColumns, selected []string) ([]string, error) {
	if len(selected) == 0 {
		return nil, ErrInvalidColumns
	}
	known := make(map[string]bool, len(fileColumns))
	for _, col := range fileColumns {
		known[col] = true
	}
	want := make(map[string]bool, len(selected))
	for _, col := range selected {
		if !known[col] {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidColumns, col)
		}
		want[col] = true
	}
	ordered := make([]string, 0, len(want))
	for _, col := range fileColumns {
		if want[col] {
			ordered = append(ordered, col)
		}
	}
	return ordered, nil
}

// detectColumnTypes infers an SQL type per sanitized column from the
// preview sample. The full-file pass during import coerces values to
// these types; anything uncertain lands as TEXT.
func detectColumnTypes(preview *domain.FilePreview, ordered []string, mapping map[string]string) map[string]string {
	types := make(map[string]string, len(ordered))
	for _, original := range ordered {
		values := make([]string, 0, len(preview.Rows))
		for _, row := range preview.Rows {
			values = append(values, row[original])
		}
		types[mapping[original]] = tabular.DetectColumnType(values)
	}
	return types
}

func (s *Service) List(ctx context.Context, userID int64) ([]*domain.Dataset, error) {
	return s.datasets.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID int64, id string) (*domain.Dataset, error) {
	d, err := s.datasets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrNotOwner
	}
	return d, nil
}

// GetDetail returns the dataset together with its analysis projection,
// when one exists (the projection appears once the import completes).
func (s *Service) GetDetail(ctx context.Context, userID int64, id string) (*domain.Dataset, *domain.DatasetAnalysis, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	a, err := s.analyses.GetByDatasetID(ctx, d.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return d, nil, nil
		}
		return nil, nil, err
	}
	return d, a, nil
}

// Preview reads a sample of imported rows from the backing table.
func (s *Service) Preview(ctx context.Context, userID int64, id string) ([]map[string]string, []string, int64, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, 0, err
	}
	if d.ImportStatus != domain.ImportCompleted {
		return nil, nil, 0, ErrImportNotFinished
	}

	columns := sanitizedInOrder(d)
	rows, err := s.tables.SelectSample(ctx, d.TableName, columns, s.previewRows)
	if err != nil {
		return nil, nil, 0, err
	}
	total, err := s.tables.CountRows(ctx, d.TableName)
	if err != nil {
		return nil, nil, 0, err
	}
	return rows, columns, total, nil
}

// Delete removes the dataset and everything hanging off it: the backing
// table, validation results, task rows, the processed upload record and
// the stored file.
func (s *Service) Delete(ctx context.Context, userID int64, id string) error {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.tables.DropTable(ctx, d.TableName); err != nil {
		return err
	}
	if err := s.analyses.DeleteByDataset(ctx, d.ID); err != nil {
		return err
	}
	if err := s.tasks.DeleteByDataset(ctx, d.ID); err != nil {
		return err
	}

	if p, err := s.processed.GetByID(ctx, d.ProcessedUploadID); err == nil {
		if err := s.blobs.Delete(ctx, p.StorageKey); err != nil {
			log.Printf("dataset: delete blob %s: %v", p.StorageKey, err)
		}
		if err := s.processed.Delete(ctx, p.ID); err != nil {
			return err
		}
	}

	return s.datasets.Delete(ctx, d.ID)
}

// sanitizedInOrder returns the sanitized column names in file order.
func sanitizedInOrder(d *domain.Dataset) []string {
	out := make([]string, 0, len(d.SelectedColumns))
	for _, original := range d.SelectedColumns {
		out = append(out, d.ColumnMapping[original])
	}
	return out
}
