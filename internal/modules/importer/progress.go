package importer

import (
	"context"

	"salespulse/internal/domain"
)

type Progress struct {
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	CurrentStep     int64  `json:"current_step"`
	TotalSteps      int64  `json:"total_steps"`
	Percentage      int    `json:"percentage"`
	ProgressMessage string `json:"progress_message"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// GetProgress returns the polling view of one import task.
func (s *Service) GetProgress(ctx context.Context, userID int64, jobID string) (*Progress, error) {
	task, err := s.tasks.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, ErrNotOwner
	}

	return &Progress{
		JobID:           task.JobID,
		Status:          string(task.Status),
		CurrentStep:     task.CurrentStep,
		TotalSteps:      task.TotalSteps,
		Percentage:      task.ProgressPercentage(),
		ProgressMessage: task.ProgressMessage,
		ErrorMessage:    task.ErrorMessage,
	}, nil
}

// Cancel stops an import. A task still in the queue is cancelled
// synchronously; a running one gets a cooperative flag the orchestrator
// honors at the next chunk boundary.
func (s *Service) Cancel(ctx context.Context, userID int64, jobID string) (*Progress, error) {
	task, err := s.tasks.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, ErrNotOwner
	}
	if task.Status.Terminal() {
		return nil, ErrNotCancellable
	}

	if task.Status == domain.TaskPending {
		won, err := s.tasks.CancelPending(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		if won {
			if err := s.datasets.UpdateStatus(ctx, task.DatasetID, domain.ImportCancelled, "import cancelled by user"); err != nil {
				return nil, err
			}
			// the staged upload was already consumed, so its processed
			// record has to settle here rather than stay pending forever
			d, err := s.datasets.GetByID(ctx, task.DatasetID)
			if err != nil {
				return nil, err
			}
			if err := s.processed.Finish(ctx, d.ProcessedUploadID, domain.ProcessingFailed, 0, 0, []string{"import cancelled by user"}); err != nil {
				return nil, err
			}
			return s.GetProgress(ctx, userID, jobID)
		}
		// a worker claimed it while we were looking; fall through to the
		// cooperative path
	}

	if err := s.tasks.RequestCancel(ctx, task.ID); err != nil {
		return nil, err
	}
	return s.GetProgress(ctx, userID, jobID)
}
