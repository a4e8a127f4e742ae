package importer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"salespulse/internal/domain"
)

type MockTaskRepo struct{ mock.Mock }

func (m *MockTaskRepo) ClaimNext(ctx context.Context) (*domain.ImportTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImportTask), args.Error(1)
}

func (m *MockTaskRepo) GetByJobID(ctx context.Context, jobID string) (*domain.ImportTask, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImportTask), args.Error(1)
}

func (m *MockTaskRepo) UpdateProgress(ctx context.Context, id string, current, total int64, message string) error {
	args := m.Called(ctx, id, current, total, message)
	return args.Error(0)
}

func (m *MockTaskRepo) Complete(ctx context.Context, id string, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockTaskRepo) Fail(ctx context.Context, id string, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *MockTaskRepo) Requeue(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockTaskRepo) CancelPending(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskRepo) RequestCancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepo) IsCancelRequested(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskRepo) MarkCancelled(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockDatasetRepo struct{ mock.Mock }

func (m *MockDatasetRepo) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dataset), args.Error(1)
}

func (m *MockDatasetRepo) UpdateStatus(ctx context.Context, id string, next domain.ImportStatus, errorMessage string) error {
	args := m.Called(ctx, id, next, errorMessage)
	return args.Error(0)
}

func (m *MockDatasetRepo) UpdateProgress(ctx context.Context, id string, processedRows, totalRows int64) error {
	args := m.Called(ctx, id, processedRows, totalRows)
	return args.Error(0)
}

type MockProcessedRepo struct{ mock.Mock }

func (m *MockProcessedRepo) GetByID(ctx context.Context, id string) (*domain.ProcessedUpload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessedUpload), args.Error(1)
}

func (m *MockProcessedRepo) UpdateStatus(ctx context.Context, id string, next domain.ProcessingStatus) error {
	args := m.Called(ctx, id, next)
	return args.Error(0)
}

func (m *MockProcessedRepo) Finish(ctx context.Context, id string, status domain.ProcessingStatus, rowCount int64, columnCount int, procErrors []string) error {
	args := m.Called(ctx, id, status, rowCount, columnCount, procErrors)
	return args.Error(0)
}

type MockTableRepo struct{ mock.Mock }

func (m *MockTableRepo) CreateTable(ctx context.Context, tableName string, columns []string, columnTypes map[string]string) error {
	args := m.Called(ctx, tableName, columns, columnTypes)
	return args.Error(0)
}

func (m *MockTableRepo) InsertBatch(ctx context.Context, tableName string, columns []string, rows [][]any) error {
	args := m.Called(ctx, tableName, columns, rows)
	return args.Error(0)
}

func (m *MockTableRepo) DropTable(ctx context.Context, tableName string) error {
	args := m.Called(ctx, tableName)
	return args.Error(0)
}

type MockAnalysisRepo struct{ mock.Mock }

func (m *MockAnalysisRepo) Upsert(ctx context.Context, a *domain.DatasetAnalysis) (*domain.DatasetAnalysis, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DatasetAnalysis), args.Error(1)
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
	tasks     *MockTaskRepo
	datasets  *MockDatasetRepo
	processed *MockProcessedRepo
	tables    *MockTableRepo
	analyses  *MockAnalysisRepo
	blobs     *MockBlobStore
	svc       *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		tasks:     new(MockTaskRepo),
		datasets:  new(MockDatasetRepo),
		processed: new(MockProcessedRepo),
		tables:    new(MockTableRepo),
		analyses:  new(MockAnalysisRepo),
		blobs:     new(MockBlobStore),
	}
	f.svc = NewService(f.tasks, f.datasets, f.processed, f.tables, f.analyses, f.blobs, cfg)
	return f
}

const importCSV = "Order Date,SKU,Qty\n" +
	"2024-01-02,A,1\n" +
	"2024-01-03,B,2\n" +
	"2024-01-04,C,3\n" +
	"2024-01-05,D,4\n" +
	"2024-01-06,E,5\n"

func testDataset() *domain.Dataset {
	return &domain.Dataset{
		ID:                "d1",
		UserID:            7,
		ProcessedUploadID: "p1",
		TableName:         "user_7_sales_20240102_100000",
		DisplayName:       "sales.csv",
		SelectedColumns:   []string{"Order Date", "Qty"},
		ColumnMapping:     map[string]string{"Order Date": "order_date", "Qty": "qty"},
		ColumnTypes:       map[string]string{"order_date": "DATE", "qty": "INTEGER"},
		ImportStatus:      domain.ImportPending,
		JobID:             "job1",
	}
}

func testProcessed() *domain.ProcessedUpload {
	return &domain.ProcessedUpload{
		ID:         "p1",
		UserID:     7,
		StorageKey: "staging/up1.csv",
		FileType:   "csv",
		FileSize:   int64(len(importCSV)),
		Status:     domain.ProcessingPending,
		JobID:      "job1",
	}
}

func testTask() *domain.ImportTask {
	return &domain.ImportTask{
		ID:        "t1",
		UserID:    7,
		DatasetID: "d1",
		JobID:     "job1",
		Status:    domain.TaskRunning,
	}
}

func setupHappyPath(f *fixture, csv string) {
	f.datasets.On("GetByID", mock.Anything, "d1").Return(testDataset(), nil)
	f.processed.On("GetByID", mock.Anything, "p1").Return(testProcessed(), nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportRunning, "").Return(nil)
	f.processed.On("UpdateStatus", mock.Anything, "p1", domain.ProcessingRunning).Return(nil)
	f.blobs.On("Open", mock.Anything, "staging/up1.csv").
		Return(io.NopCloser(strings.NewReader(csv)), nil)
	f.tasks.On("UpdateProgress", mock.Anything, "t1", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.datasets.On("UpdateProgress", mock.Anything, "d1", mock.Anything, mock.Anything).Return(nil)
	f.tables.On("DropTable", mock.Anything, mock.Anything).Return(nil)
	f.tables.On("CreateTable", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func TestService_ProcessTask_ImportsAllRows(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})
	setupHappyPath(f, importCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, []string{"order_date", "qty"}, mock.Anything).Return(nil)
	f.tasks.On("IsCancelRequested", mock.Anything, "t1").Return(false, nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportCompleted, "").Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingCompleted, int64(5), 2, mock.Anything).Return(nil)
	f.analyses.On("Upsert", mock.Anything, mock.Anything).Return(&domain.DatasetAnalysis{}, nil)
	f.tasks.On("Complete", mock.Anything, "t1", "Imported 5 of 5 rows").Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.NoError(t, err)

	// 5 rows at chunk size 2 means three batches
	f.tables.AssertNumberOfCalls(t, "InsertBatch", 3)
	f.tasks.AssertCalled(t, "Complete", mock.Anything, "t1", "Imported 5 of 5 rows")

	analysis := f.analyses.Calls[0].Arguments.Get(1).(*domain.DatasetAnalysis)
	assert.Equal(t, "d1", analysis.DatasetID)
	assert.Equal(t, int64(5), analysis.RowCount)
	assert.Equal(t, []string{"order_date", "qty"}, analysis.Headers)
}

func TestService_ProcessTask_ReportsChunkProgress(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})
	setupHappyPath(f, importCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("IsCancelRequested", mock.Anything, "t1").Return(false, nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportCompleted, "").Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.analyses.On("Upsert", mock.Anything, mock.Anything).Return(&domain.DatasetAnalysis{}, nil)
	f.tasks.On("Complete", mock.Anything, "t1", mock.Anything).Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.NoError(t, err)

	f.tasks.AssertCalled(t, "UpdateProgress", mock.Anything, "t1", int64(2), int64(5), "Imported 2 of 5 rows")
	f.tasks.AssertCalled(t, "UpdateProgress", mock.Anything, "t1", int64(4), int64(5), "Imported 4 of 5 rows")
	f.tasks.AssertCalled(t, "UpdateProgress", mock.Anything, "t1", int64(5), int64(5), "Imported 5 of 5 rows")
}

func TestService_ProcessTask_CancelBetweenChunks(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})
	setupHappyPath(f, importCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("IsCancelRequested", mock.Anything, "t1").Return(true, nil).Once()
	f.tasks.On("MarkCancelled", mock.Anything, "t1").Return(nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportCancelled, mock.Anything).Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingFailed, int64(0), 0, mock.Anything).Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.NoError(t, err)

	f.tables.AssertNumberOfCalls(t, "InsertBatch", 1)
	f.tasks.AssertCalled(t, "MarkCancelled", mock.Anything, "t1")
	f.datasets.AssertCalled(t, "UpdateStatus", mock.Anything, "d1", domain.ImportCancelled, mock.Anything)
	// partial table must not survive a cancel
	f.tables.AssertNumberOfCalls(t, "DropTable", 2)
}

func TestService_ProcessTask_TransientFailureRequeues(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})
	setupHappyPath(f, importCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("database is locked"))
	f.tasks.On("Requeue", mock.Anything, "t1", mock.Anything).Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.Error(t, err)

	f.tasks.AssertCalled(t, "Requeue", mock.Anything, "t1", mock.Anything)
	f.tasks.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ProcessTask_TransientFailureExhaustsAttempts(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})
	setupHappyPath(f, importCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("database is locked"))
	f.tasks.On("Fail", mock.Anything, "t1", mock.Anything).Return(nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportFailed, mock.Anything).Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingFailed, int64(0), 0, mock.Anything).Return(nil)

	task := testTask()
	task.RetryCount = 2 // third attempt
	err := f.svc.ProcessTask(context.Background(), task)
	assert.Error(t, err)

	f.tasks.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything)
	f.tasks.AssertCalled(t, "Fail", mock.Anything, "t1", mock.Anything)
}

func TestService_ProcessTask_MissingColumnFailsPermanently(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})

	d := testDataset()
	d.SelectedColumns = []string{"Order Date", "Missing"}
	f.datasets.On("GetByID", mock.Anything, "d1").Return(d, nil)
	f.processed.On("GetByID", mock.Anything, "p1").Return(testProcessed(), nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportRunning, "").Return(nil)
	f.processed.On("UpdateStatus", mock.Anything, "p1", domain.ProcessingRunning).Return(nil)
	f.blobs.On("Open", mock.Anything, "staging/up1.csv").
		Return(io.NopCloser(strings.NewReader(importCSV)), nil)
	f.tasks.On("UpdateProgress", mock.Anything, "t1", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.tasks.On("Fail", mock.Anything, "t1", mock.Anything).Return(nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportFailed, mock.Anything).Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingFailed, int64(0), 0, mock.Anything).Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.Error(t, err)
	f.tasks.AssertCalled(t, "Fail", mock.Anything, "t1", mock.Anything)
	f.tasks.AssertNotCalled(t, "Requeue", mock.Anything, mock.Anything, mock.Anything)
	f.tables.AssertNotCalled(t, "DropTable", mock.Anything, mock.Anything)
}

func TestService_ProcessTask_RowErrorToleranceExceeded(t *testing.T) {
	f := newFixture(Config{ChunkSize: 100, MaxAttempts: 3, RowErrorTolerance: 0.2})

	badCSV := "Order Date,SKU,Qty\n" +
		"2024-01-02,A,one\n" +
		"2024-01-03,B,two\n" +
		"2024-01-04,C,3\n" +
		"2024-01-05,D,4\n"
	setupHappyPath(f, badCSV)

	f.tasks.On("Fail", mock.Anything, "t1", mock.Anything).Return(nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportFailed, mock.Anything).Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingFailed, int64(0), 0, mock.Anything).Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.ErrorIs(t, err, errTooManyRowErrors)
	f.tables.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ProcessTask_SkipsEmptyRows(t *testing.T) {
	f := newFixture(Config{ChunkSize: 10, MaxAttempts: 3, RowErrorTolerance: 0.2})

	gappyCSV := "Order Date,SKU,Qty\n" +
		"2024-01-02,A,1\n" +
		",,\n" +
		"2024-01-04,C,3\n"
	setupHappyPath(f, gappyCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("IsCancelRequested", mock.Anything, "t1").Return(false, nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportCompleted, "").Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingCompleted, int64(2), 2, mock.Anything).Return(nil)
	f.analyses.On("Upsert", mock.Anything, mock.Anything).Return(&domain.DatasetAnalysis{}, nil)
	f.tasks.On("Complete", mock.Anything, "t1", "Imported 2 of 2 rows").Return(nil)

	err := f.svc.ProcessTask(context.Background(), testTask())
	assert.NoError(t, err)
	f.tasks.AssertCalled(t, "Complete", mock.Anything, "t1", "Imported 2 of 2 rows")
}

func TestService_ProcessTask_RetryNeverMovesProgressBackwards(t *testing.T) {
	f := newFixture(Config{ChunkSize: 2, MaxAttempts: 3, RowErrorTolerance: 0.2})
	setupHappyPath(f, importCSV)

	f.tables.On("InsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.tasks.On("IsCancelRequested", mock.Anything, "t1").Return(false, nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportCompleted, "").Return(nil)
	f.processed.On("Finish", mock.Anything, "p1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.analyses.On("Upsert", mock.Anything, mock.Anything).Return(&domain.DatasetAnalysis{}, nil)
	f.tasks.On("Complete", mock.Anything, "t1", mock.Anything).Return(nil)

	// second attempt: the first one died at 4 of 5 rows
	task := testTask()
	task.RetryCount = 1
	task.CurrentStep = 4
	task.TotalSteps = 5

	err := f.svc.ProcessTask(context.Background(), task)
	assert.NoError(t, err)

	// the old counters stay up while the file is re-read, and fresh
	// chunks only publish once they pass the previous high-water mark
	f.tasks.AssertCalled(t, "UpdateProgress", mock.Anything, "t1", int64(4), int64(5), "Reading file")
	f.tasks.AssertNotCalled(t, "UpdateProgress", mock.Anything, "t1", int64(0), int64(0), "Reading file")
	f.tasks.AssertNotCalled(t, "UpdateProgress", mock.Anything, "t1", int64(2), int64(5), "Imported 2 of 5 rows")
	f.tasks.AssertCalled(t, "UpdateProgress", mock.Anything, "t1", int64(4), int64(5), "Imported 4 of 5 rows")
	f.tasks.AssertCalled(t, "UpdateProgress", mock.Anything, "t1", int64(5), int64(5), "Imported 5 of 5 rows")
}

func TestService_Cancel_PendingTaskIsSynchronous(t *testing.T) {
	f := newFixture(Config{})

	task := testTask()
	task.Status = domain.TaskPending
	f.tasks.On("GetByJobID", mock.Anything, "job1").Return(task, nil)
	f.tasks.On("CancelPending", mock.Anything, "t1").Return(true, nil)
	f.datasets.On("UpdateStatus", mock.Anything, "d1", domain.ImportCancelled, mock.Anything).Return(nil)
	f.datasets.On("GetByID", mock.Anything, "d1").Return(testDataset(), nil)
	f.processed.On("Finish", mock.Anything, "p1", domain.ProcessingFailed, int64(0), 0, mock.Anything).Return(nil)

	p, err := f.svc.Cancel(context.Background(), 7, "job1")
	assert.NoError(t, err)
	assert.NotNil(t, p)
	f.tasks.AssertNotCalled(t, "RequestCancel", mock.Anything, mock.Anything)
	// the never-started import still settles its processed record
	f.processed.AssertCalled(t, "Finish", mock.Anything, "p1", domain.ProcessingFailed, int64(0), 0, mock.Anything)
}

func TestService_Cancel_RunningTaskSetsFlag(t *testing.T) {
	f := newFixture(Config{})

	f.tasks.On("GetByJobID", mock.Anything, "job1").Return(testTask(), nil)
	f.tasks.On("RequestCancel", mock.Anything, "t1").Return(nil)

	_, err := f.svc.Cancel(context.Background(), 7, "job1")
	assert.NoError(t, err)
	f.tasks.AssertCalled(t, "RequestCancel", mock.Anything, "t1")
}

func TestService_Cancel_FinishedTaskRejected(t *testing.T) {
	f := newFixture(Config{})

	task := testTask()
	task.Status = domain.TaskCompleted
	f.tasks.On("GetByJobID", mock.Anything, "job1").Return(task, nil)

	_, err := f.svc.Cancel(context.Background(), 7, "job1")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestService_GetProgress_OwnershipEnforced(t *testing.T) {
	f := newFixture(Config{})

	f.tasks.On("GetByJobID", mock.Anything, "job1").Return(testTask(), nil)

	_, err := f.svc.GetProgress(context.Background(), 99, "job1")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestCoerceValue(t *testing.T) {
	v, err := coerceValue("42", "INTEGER")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = coerceValue("$1,234.50", "DECIMAL(15,6)")
	assert.NoError(t, err)
	assert.Equal(t, 1234.5, v)

	v, err = coerceValue("yes", "BOOLEAN")
	assert.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = coerceValue("2024-01-02", "DATE")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), v)

	v, err = coerceValue("", "INTEGER")
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = coerceValue("abc", "INTEGER")
	assert.Error(t, err)
}
