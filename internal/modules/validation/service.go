package validation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"salespulse/internal/domain"
	"salespulse/internal/repository"
)

type Service struct {
	datasets   DatasetRepository
	tables     DatasetTableRepository
	analyses   AnalysisRepository
	matcher    *Matcher
	sampleRows int
}

func NewService(datasets DatasetRepository, tables DatasetTableRepository, analyses AnalysisRepository, matcher *Matcher, sampleRows int) *Service {
	if sampleRows <= 0 {
		sampleRows = 100
	}
	return &Service{
		datasets:   datasets,
		tables:     tables,
		analyses:   analyses,
		matcher:    matcher,
		sampleRows: sampleRows,
	}
}

// Report is the outcome of validating one dataset's headers.
type Report struct {
	Results        []domain.HeaderValidationResult
	AllFound       bool
	FoundCount     int
	TotalCount     int
	MissingHeaders []domain.HeaderType
}

// ValidateHeaders matches the dataset's columns against the canonical
// header types. Once a dataset validated successfully the stored verdict
// is returned as-is unless force is set; failed validations re-run so
// threshold tuning can be retried without re-importing.
func (s *Service) ValidateHeaders(ctx context.Context, userID int64, datasetID string, force bool) (*Report, error) {
	d, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrNotOwner
	}
	if d.ImportStatus != domain.ImportCompleted {
		return nil, ErrImportNotFinished
	}

	columns := make([]string, 0, len(d.SelectedColumns))
	for _, original := range d.SelectedColumns {
		columns = append(columns, d.ColumnMapping[original])
	}

	now := time.Now().UTC()
	analysis, err := s.analyses.GetByDatasetID(ctx, d.ID)
	if errors.Is(err, repository.ErrNotFound) {
		// The importer writes the projection on completion; recreate it
		// here if it went missing so validation still has a home.
		analysis, err = s.analyses.Upsert(ctx, &domain.DatasetAnalysis{
			ID:          uuid.New().String(),
			UserID:      d.UserID,
			DatasetID:   d.ID,
			DisplayName: d.DisplayName,
			RowCount:    d.ProcessedRows,
			Headers:     columns,
			CreatedAt:   now,
		})
	}
	if err != nil {
		return nil, err
	}

	if analysis.IsValidated && !force {
		stored, err := s.analyses.ListResults(ctx, analysis.ID)
		if err != nil {
			return nil, err
		}
		return buildReport(stored), nil
	}

	rows, err := s.tables.SelectSample(ctx, d.TableName, columns, s.sampleRows)
	if err != nil {
		return nil, err
	}
	sample := make(map[string][]string, len(columns))
	for _, col := range columns {
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			values = append(values, row[col])
		}
		sample[col] = values
	}

	matches := s.matcher.MatchHeaders(columns, sample)

	results := make([]domain.HeaderValidationResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, domain.HeaderValidationResult{
			ID:            uuid.New().String(),
			AnalysisID:    analysis.ID,
			HeaderType:    m.HeaderType,
			MatchedColumn: m.Column,
			Confidence:    m.Confidence,
			Found:         m.Found,
			Method:        m.Method,
			CreatedAt:     now,
		})
	}

	if err := s.analyses.ReplaceResults(ctx, analysis.ID, results); err != nil {
		return nil, err
	}

	report := buildReport(results)
	if err := s.analyses.SetValidated(ctx, analysis.ID, report.AllFound, now); err != nil {
		return nil, err
	}
	return report, nil
}

func buildReport(results []domain.HeaderValidationResult) *Report {
	r := &Report{
		Results:    results,
		TotalCount: len(results),
	}
	for _, res := range results {
		if res.Found {
			r.FoundCount++
		} else {
			r.MissingHeaders = append(r.MissingHeaders, res.HeaderType)
		}
	}
	r.AllFound = r.FoundCount == r.TotalCount && r.TotalCount > 0
	return r
}
