package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"salespulse/internal/domain"
	"salespulse/internal/pkg/blob"
	"salespulse/internal/pkg/tabular"
	"salespulse/internal/repository"
)

const maxStoredRowErrors = 100

type Config struct {
	ChunkSize         int
	MaxAttempts       int
	TaskTimeout       time.Duration
	RetryBackoff      time.Duration
	RowErrorTolerance float64
}

// Service executes queued import tasks: read the confirmed file, build
// the backing table, and stream coerced rows into it chunk by chunk,
// publishing granular progress along the way.
type Service struct {
	tasks     TaskRepository
	datasets  DatasetRepository
	processed ProcessedUploadRepository
	tables    DatasetTableRepository
	analyses  AnalysisRepository
	blobs     blob.Store
	cfg       Config
}

func NewService(
	tasks TaskRepository,
	datasets DatasetRepository,
	processed ProcessedUploadRepository,
	tables DatasetTableRepository,
	analyses AnalysisRepository,
	blobs blob.Store,
	cfg Config,
) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Minute
	}
	return &Service{
		tasks:     tasks,
		datasets:  datasets,
		processed: processed,
		tables:    tables,
		analyses:  analyses,
		blobs:     blobs,
		cfg:       cfg,
	}
}

// ProcessTask runs one claimed task to a terminal state (or requeues it
// after a transient failure). A retried task restarts from scratch: the
// backing table is rebuilt, so partial chunks from the failed attempt
// never survive.
func (s *Service) ProcessTask(ctx context.Context, task *domain.ImportTask) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	err := s.runImport(ctx, task)
	switch {
	case err == nil:
		return nil
	case err == errCancelRequested:
		return s.finishCancelled(task)
	default:
		return s.onProcessingError(task, err)
	}
}

func (s *Service) runImport(ctx context.Context, task *domain.ImportTask) error {
	d, err := s.datasets.GetByID(ctx, task.DatasetID)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	p, err := s.processed.GetByID(ctx, d.ProcessedUploadID)
	if err != nil {
		return fmt.Errorf("load processed upload: %w", err)
	}

	if d.ImportStatus == domain.ImportPending {
		if err := s.datasets.UpdateStatus(ctx, d.ID, domain.ImportRunning, ""); err != nil {
			return fmt.Errorf("mark dataset processing: %w", err)
		}
	}
	if p.Status == domain.ProcessingPending {
		if err := s.processed.UpdateStatus(ctx, p.ID, domain.ProcessingRunning); err != nil {
			return fmt.Errorf("mark upload processing: %w", err)
		}
	}

	// A retried attempt keeps the previous attempt's counters on the
	// board until its own chunks catch up, so the polled percentage
	// never moves backwards even though the table is rebuilt.
	floor := int64(0)
	if task.RetryCount > 0 {
		floor = task.CurrentStep
	}
	if err := s.tasks.UpdateProgress(ctx, task.ID, floor, task.TotalSteps, "Reading file"); err != nil {
		return err
	}

	reader, err := s.blobs.Open(ctx, p.StorageKey)
	if err != nil {
		return fmt.Errorf("open stored file: %w", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("read stored file: %w", err)
	}

	table, err := tabular.Read(data, p.FileType, 0)
	if err != nil {
		return fmt.Errorf("parse stored file: %w", err)
	}

	indexes := make([]int, 0, len(d.SelectedColumns))
	for _, col := range d.SelectedColumns {
		idx := -1
		for i, fileCol := range table.Columns {
			if fileCol == col {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("column %q missing from stored file", col)
		}
		indexes = append(indexes, idx)
	}

	sanitized := make([]string, len(d.SelectedColumns))
	types := make([]string, len(d.SelectedColumns))
	for i, col := range d.SelectedColumns {
		sanitized[i] = d.ColumnMapping[col]
		types[i] = d.ColumnTypes[sanitized[i]]
	}

	// Project and drop rows that are empty across the selected columns.
	var rows [][]string
	for _, row := range table.Rows {
		projected := make([]string, len(indexes))
		for i, idx := range indexes {
			if idx < len(row) {
				projected[i] = row[idx]
			}
		}
		if tabular.IsEmptyRow(projected) {
			continue
		}
		rows = append(rows, projected)
	}
	total := int64(len(rows))

	if err := s.datasets.UpdateProgress(ctx, d.ID, min(floor, total), total); err != nil {
		return err
	}

	if err := s.tables.DropTable(ctx, d.TableName); err != nil {
		return fmt.Errorf("drop stale table: %w", err)
	}
	if err := s.tables.CreateTable(ctx, d.TableName, sanitized, d.ColumnTypes); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	var (
		imported  int64
		processed int64
		rowErrors int64
		errorMsgs []string
	)

	for start := 0; start < len(rows); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(rows))

		batch := make([][]any, 0, end-start)
		for rowIdx, row := range rows[start:end] {
			processed++
			values, err := coerceRow(row, types)
			if err != nil {
				rowErrors++
				if len(errorMsgs) < maxStoredRowErrors {
					errorMsgs = append(errorMsgs, fmt.Sprintf("row %d: %v", start+rowIdx+2, err))
				}
				continue
			}
			batch = append(batch, values)
		}

		if float64(rowErrors) > s.cfg.RowErrorTolerance*float64(processed) {
			return fmt.Errorf("%w: %d of %d rows", errTooManyRowErrors, rowErrors, processed)
		}

		if err := s.tables.InsertBatch(ctx, d.TableName, sanitized, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		imported += int64(len(batch))

		shown := max(imported, floor)
		message := fmt.Sprintf("Imported %d of %d rows", shown, total)
		if err := s.tasks.UpdateProgress(ctx, task.ID, shown, total, message); err != nil {
			return err
		}
		if err := s.datasets.UpdateProgress(ctx, d.ID, shown, total); err != nil {
			return err
		}

		cancelled, err := s.tasks.IsCancelRequested(ctx, task.ID)
		if err != nil {
			return err
		}
		if cancelled {
			return errCancelRequested
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := s.datasets.UpdateProgress(ctx, d.ID, max(imported, floor), total); err != nil {
		return err
	}
	if err := s.datasets.UpdateStatus(ctx, d.ID, domain.ImportCompleted, ""); err != nil {
		return err
	}
	if err := s.processed.Finish(ctx, p.ID, domain.ProcessingCompleted, imported, len(sanitized), errorMsgs); err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := s.analyses.Upsert(ctx, &domain.DatasetAnalysis{
		ID:          uuid.New().String(),
		UserID:      d.UserID,
		DatasetID:   d.ID,
		DisplayName: d.DisplayName,
		StorageKey:  p.StorageKey,
		FileSize:    p.FileSize,
		RowCount:    imported,
		Headers:     sanitized,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	return s.tasks.Complete(ctx, task.ID, fmt.Sprintf("Imported %d of %d rows", imported, total))
}

// finishCancelled settles a cooperatively cancelled task. The partial
// table is dropped so a cancelled dataset never exposes half the data.
func (s *Service) finishCancelled(task *domain.ImportTask) error {
	ctx := context.Background()

	if err := s.tasks.MarkCancelled(ctx, task.ID); err != nil {
		return err
	}
	d, err := s.datasets.GetByID(ctx, task.DatasetID)
	if err != nil {
		return err
	}
	if err := s.tables.DropTable(ctx, d.TableName); err != nil {
		log.Printf("importer: drop table after cancel: %v", err)
	}
	if err := s.datasets.UpdateStatus(ctx, d.ID, domain.ImportCancelled, "import cancelled by user"); err != nil {
		return err
	}
	return s.processed.Finish(ctx, d.ProcessedUploadID, domain.ProcessingFailed, 0, 0, []string{"import cancelled by user"})
}

// onProcessingError requeues transient failures while attempts remain
// and settles everything else as failed. Status updates run on a fresh
// context because the task context may already be dead.
func (s *Service) onProcessingError(task *domain.ImportTask, cause error) error {
	ctx := context.Background()
	reason := truncateReason(cause.Error())

	if repository.IsTransient(cause) && task.RetryCount < s.cfg.MaxAttempts-1 {
		if s.cfg.RetryBackoff > 0 {
			backoff := s.cfg.RetryBackoff << task.RetryCount
			sleepWithContext(ctx, backoff)
		}
		if err := s.tasks.Requeue(ctx, task.ID, reason); err != nil {
			return fmt.Errorf("%v; requeue failed: %w", cause, err)
		}
		log.Printf("importer: requeued task %s after transient failure: %v", task.ID, cause)
		return cause
	}

	if err := s.tasks.Fail(ctx, task.ID, reason); err != nil {
		return fmt.Errorf("%v; fail update failed: %w", cause, err)
	}
	// The partially written table stays behind for diagnostics; only a
	// dataset delete or a retry tears it down.
	if d, err := s.datasets.GetByID(ctx, task.DatasetID); err == nil {
		if !d.ImportStatus.Terminal() {
			if err := s.datasets.UpdateStatus(ctx, d.ID, domain.ImportFailed, reason); err != nil {
				log.Printf("importer: mark dataset failed: %v", err)
			}
		}
		if err := s.processed.Finish(ctx, d.ProcessedUploadID, domain.ProcessingFailed, 0, 0, []string{reason}); err != nil {
			log.Printf("importer: mark upload failed: %v", err)
		}
	}
	return cause
}

// coerceRow converts one projected row to typed values for insertion.
// Empty cells become NULLs.
func coerceRow(row []string, types []string) ([]any, error) {
	out := make([]any, len(row))
	for i, raw := range row {
		v, err := coerceValue(raw, types[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func coerceValue(raw, sqlType string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	switch sqlType {
	case tabular.TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return n, nil
	case tabular.TypeDecimal:
		cleaned := strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case tabular.TypeBoolean:
		switch strings.ToLower(s) {
		case "true", "1", "yes", "t", "y", "on":
			return true, nil
		case "false", "0", "no", "f", "n", "off":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", raw)
	case tabular.TypeTimestamp, tabular.TypeDate:
		t, ok := tabular.ParseDate(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a date", raw)
		}
		return t, nil
	default:
		return s, nil
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
