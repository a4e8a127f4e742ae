package dataset

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"salespulse/internal/domain"
	"salespulse/internal/repository"
)

type MockStagedRepo struct{ mock.Mock }

func (m *MockStagedRepo) GetByID(ctx context.Context, id string) (*domain.StagedUpload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StagedUpload), args.Error(1)
}

func (m *MockStagedRepo) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

type MockProcessedRepo struct{ mock.Mock }

func (m *MockProcessedRepo) Create(ctx context.Context, p *domain.ProcessedUpload) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProcessedRepo) GetByID(ctx context.Context, id string) (*domain.ProcessedUpload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessedUpload), args.Error(1)
}

func (m *MockProcessedRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockDatasetRepo struct{ mock.Mock }

func (m *MockDatasetRepo) Create(ctx context.Context, d *domain.Dataset) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDatasetRepo) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dataset), args.Error(1)
}

func (m *MockDatasetRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.Dataset, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Dataset), args.Error(1)
}

func (m *MockDatasetRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTaskRepo struct{ mock.Mock }

func (m *MockTaskRepo) Create(ctx context.Context, t *domain.ImportTask) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepo) DeleteByDataset(ctx context.Context, datasetID string) error {
	args := m.Called(ctx, datasetID)
	return args.Error(0)
}

type MockTableRepo struct{ mock.Mock }

func (m *MockTableRepo) DropTable(ctx context.Context, tableName string) error {
	args := m.Called(ctx, tableName)
	return args.Error(0)
}

func (m *MockTableRepo) SelectSample(ctx context.Context, tableName string, columns []string, limit int) ([]map[string]string, error) {
	args := m.Called(ctx, tableName, columns, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]string), args.Error(1)
}

func (m *MockTableRepo) CountRows(ctx context.Context, tableName string) (int64, error) {
	args := m.Called(ctx, tableName)
	return args.Get(0).(int64), args.Error(1)
}

type MockAnalysisRepo struct{ mock.Mock }

func (m *MockAnalysisRepo) GetByDatasetID(ctx context.Context, datasetID string) (*domain.DatasetAnalysis, error) {
	args := m.Called(ctx, datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DatasetAnalysis), args.Error(1)
}

func (m *MockAnalysisRepo) DeleteByDataset(ctx context.Context, datasetID string) error {
	args := m.Called(ctx, datasetID)
	return args.Error(0)
}

type MockBlobStore struct{ mock.Mock }

func (m *MockBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	args := m.Called(ctx, key, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type fixture struct {
	staged    *MockStagedRepo
	processed *MockProcessedRepo
	datasets  *MockDatasetRepo
	tasks     *MockTaskRepo
	tables    *MockTableRepo
	analyses  *MockAnalysisRepo
	blobs     *MockBlobStore
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		staged:    new(MockStagedRepo),
		processed: new(MockProcessedRepo),
		datasets:  new(MockDatasetRepo),
		tasks:     new(MockTaskRepo),
		tables:    new(MockTableRepo),
		analyses:  new(MockAnalysisRepo),
		blobs:     new(MockBlobStore),
	}
	f.svc = NewService(f.staged, f.processed, f.datasets, f.tasks, f.tables, f.analyses, f.blobs, 5)
	return f
}

func validatedUpload() *domain.StagedUpload {
	return &domain.StagedUpload{
		ID:               "up1",
		UserID:           7,
		OriginalFilename: "sales.csv",
		StorageKey:       "staging/up1.csv",
		FileType:         "csv",
		Status:           domain.UploadValidated,
		ExpiresAt:        time.Now().Add(30 * time.Minute),
		Preview: &domain.FilePreview{
			Columns: []string{"Order Date", "SKU", "Qty", "Total $"},
			Rows: []map[string]string{
				{"Order Date": "2024-01-02", "SKU": "A-100", "Qty": "3", "Total $": "$29.99"},
				{"Order Date": "2024-01-03", "SKU": "B-200", "Qty": "1", "Total $": "$9.50"},
			},
			SampledRows:  2,
			TotalColumns: 4,
		},
	}
}

func TestService_Confirm_CreatesDatasetAndTask(t *testing.T) {
	f := newFixture()

	f.staged.On("GetByID", mock.Anything, "up1").Return(validatedUpload(), nil)
	f.staged.On("MarkConfirmed", mock.Anything, "up1", mock.Anything).Return(true, nil)
	f.processed.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.datasets.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("Create", mock.Anything, mock.Anything).Return(nil)

	// request order differs from file order on purpose
	d, err := f.svc.Confirm(context.Background(), 7, "up1", []string{"Qty", "Order Date", "Total $"}, "")
	assert.NoError(t, err)

	assert.Equal(t, []string{"Order Date", "Qty", "Total $"}, d.SelectedColumns)
	assert.Equal(t, "sales.csv", d.DisplayName)
	assert.Equal(t, domain.ImportPending, d.ImportStatus)
	assert.NotEmpty(t, d.JobID)
	assert.Equal(t, "order_date", d.ColumnMapping["Order Date"])
	assert.Equal(t, "total", d.ColumnMapping["Total $"])
	assert.Equal(t, "DATE", d.ColumnTypes["order_date"])
	assert.Equal(t, "INTEGER", d.ColumnTypes["qty"])
	assert.Equal(t, "DECIMAL(15,6)", d.ColumnTypes["total"])

	task := f.tasks.Calls[0].Arguments.Get(1).(*domain.ImportTask)
	assert.Equal(t, d.JobID, task.JobID)
	assert.Equal(t, d.ID, task.DatasetID)
	assert.Equal(t, domain.TaskPending, task.Status)
}

func TestService_Confirm_LosesRaceReturnsConflict(t *testing.T) {
	f := newFixture()

	f.staged.On("GetByID", mock.Anything, "up1").Return(validatedUpload(), nil)
	f.staged.On("MarkConfirmed", mock.Anything, "up1", mock.Anything).Return(false, nil)

	_, err := f.svc.Confirm(context.Background(), 7, "up1", []string{"Qty"}, "")
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	f.processed.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Confirm_ExpiredByClock(t *testing.T) {
	f := newFixture()

	u := validatedUpload()
	u.ExpiresAt = time.Now().Add(-time.Minute)
	f.staged.On("GetByID", mock.Anything, "up1").Return(u, nil)

	_, err := f.svc.Confirm(context.Background(), 7, "up1", []string{"Qty"}, "")
	assert.ErrorIs(t, err, ErrExpired)
	f.staged.AssertNotCalled(t, "MarkConfirmed", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Confirm_UnknownColumnRejected(t *testing.T) {
	f := newFixture()

	f.staged.On("GetByID", mock.Anything, "up1").Return(validatedUpload(), nil)

	_, err := f.svc.Confirm(context.Background(), 7, "up1", []string{"Qty", "Nope"}, "")
	assert.ErrorIs(t, err, ErrInvalidColumns)
	f.staged.AssertNotCalled(t, "MarkConfirmed", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Confirm_NotOwner(t *testing.T) {
	f := newFixture()

	f.staged.On("GetByID", mock.Anything, "up1").Return(validatedUpload(), nil)

	_, err := f.svc.Confirm(context.Background(), 99, "up1", []string{"Qty"}, "")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestService_Preview_RequiresCompletedImport(t *testing.T) {
	f := newFixture()

	f.datasets.On("GetByID", mock.Anything, "d1").Return(&domain.Dataset{
		ID:           "d1",
		UserID:       7,
		ImportStatus: domain.ImportRunning,
	}, nil)

	_, _, _, err := f.svc.Preview(context.Background(), 7, "d1")
	assert.ErrorIs(t, err, ErrImportNotFinished)
}

func TestService_GetDetail_IncludesValidationState(t *testing.T) {
	f := newFixture()

	validatedAt := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	f.datasets.On("GetByID", mock.Anything, "d1").Return(&domain.Dataset{
		ID:           "d1",
		UserID:       7,
		ImportStatus: domain.ImportCompleted,
	}, nil)
	f.analyses.On("GetByDatasetID", mock.Anything, "d1").Return(&domain.DatasetAnalysis{
		ID:                    "a1",
		DatasetID:             "d1",
		IsValidated:           true,
		ValidationCompletedAt: &validatedAt,
	}, nil)

	d, a, err := f.svc.GetDetail(context.Background(), 7, "d1")
	assert.NoError(t, err)
	assert.Equal(t, "d1", d.ID)
	assert.NotNil(t, a)
	assert.True(t, a.IsValidated)
}

func TestService_GetDetail_NoAnalysisYet(t *testing.T) {
	f := newFixture()

	f.datasets.On("GetByID", mock.Anything, "d1").Return(&domain.Dataset{
		ID:           "d1",
		UserID:       7,
		ImportStatus: domain.ImportRunning,
	}, nil)
	f.analyses.On("GetByDatasetID", mock.Anything, "d1").Return(nil, repository.ErrNotFound)

	d, a, err := f.svc.GetDetail(context.Background(), 7, "d1")
	assert.NoError(t, err)
	assert.Equal(t, "d1", d.ID)
	assert.Nil(t, a)
}

func TestService_Delete_Cascades(t *testing.T) {
	f := newFixture()

	d := &domain.Dataset{
		ID:                "d1",
		UserID:            7,
		ProcessedUploadID: "p1",
		TableName:         "user_7_sales_20240102_100000",
	}
	f.datasets.On("GetByID", mock.Anything, "d1").Return(d, nil)
	f.tables.On("DropTable", mock.Anything, d.TableName).Return(nil)
	f.analyses.On("DeleteByDataset", mock.Anything, "d1").Return(nil)
	f.tasks.On("DeleteByDataset", mock.Anything, "d1").Return(nil)
	f.processed.On("GetByID", mock.Anything, "p1").Return(&domain.ProcessedUpload{
		ID:         "p1",
		StorageKey: "staging/up1.csv",
	}, nil)
	f.blobs.On("Delete", mock.Anything, "staging/up1.csv").Return(nil)
	f.processed.On("Delete", mock.Anything, "p1").Return(nil)
	f.datasets.On("Delete", mock.Anything, "d1").Return(nil)

	err := f.svc.Delete(context.Background(), 7, "d1")
	assert.NoError(t, err)
	f.tables.AssertExpectations(t)
	f.datasets.AssertExpectations(t)
}
