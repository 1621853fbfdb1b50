package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"gorm.io/gorm"
)

// Progress holds the job aggregates and per-row status records.
// It is the single source of truth for pipeline state.
type Progress interface {
	// CreateJob writes the job and all its rows atomically.
	CreateJob(ctx context.Context, job *model.Job, rows []model.Row) error
	// WriteRowStatus updates the status and the set fields of a non-terminal row.
	WriteRowStatus(ctx context.Context, jobID string, rowIndex int, status model.RowStatus, fields model.RowFields) error
	// MarkRowTerminal moves a non-terminal row to Complete or Failed.
	// It returns false when the row was already terminal.
	MarkRowTerminal(ctx context.Context, jobID string, rowIndex int, status model.RowStatus, fields model.RowFields) (bool, error)
	// IncrementJobCounter atomically adds one to the counter and returns the job as of that increment.
	IncrementJobCounter(ctx context.Context, jobID string, counter model.JobCounter) (*model.Job, error)
	// ClaimFinalize flips the finalize latch of a job whose rows are all terminal.
	// Exactly one caller gets true.
	ClaimFinalize(ctx context.Context, jobID string) (bool, error)
	// ReleaseFinalize resets the latch of a job that is not terminal yet.
	ReleaseFinalize(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string, outputRef string) error
	FailJob(ctx context.Context, jobID string, reason string) error
	CancelJob(ctx context.Context, jobID string) (*model.Job, error)
	ReadJob(ctx context.Context, jobID string) (*model.Job, error)
	ReadRow(ctx context.Context, jobID string, rowIndex int) (*model.Row, error)
	ListRows(ctx context.Context, jobID string) ([]model.Row, error)
}

type ProgressStore struct {
	db *gorm.DB
}

// Make sure we conform to Progress interface
var _ Progress = (*ProgressStore)(nil)

func NewProgressStore(db *gorm.DB) Progress {
	return &ProgressStore{db: db}
}

func (p *ProgressStore) CreateJob(ctx context.Context, job *model.Job, rows []model.Row) error {
	err := p.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (p *ProgressStore) WriteRowStatus(ctx context.Context, jobID string, rowIndex int, status model.RowStatus, fields model.RowFields) error {
	if status.IsTerminal() {
		return fmt.Errorf("%w: %s must be written with MarkRowTerminal", ErrInvalidStatus, status)
	}
	updated, err := p.updateLiveRow(ctx, jobID, rowIndex, status, fields)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("row %s/%d is terminal: %w", jobID, rowIndex, ErrInvalidStatus)
	}
	return nil
}

func (p *ProgressStore) MarkRowTerminal(ctx context.Context, jobID string, rowIndex int, status model.RowStatus, fields model.RowFields) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("%w: %s is not terminal", ErrInvalidStatus, status)
	}
	return p.updateLiveRow(ctx, jobID, rowIndex, status, fields)
}

// updateLiveRow writes only while the row is non-terminal.
func (p *ProgressStore) updateLiveRow(ctx context.Context, jobID string, rowIndex int, status model.RowStatus, fields model.RowFields) (bool, error) {
	cols := fields.Columns()
	cols["status"] = status

	result := p.getDB(ctx).Model(&model.Row{}).
		Where("job_id = ? AND row_index = ? AND status NOT IN ?", jobID, rowIndex, model.TerminalRowStatuses).
		Updates(cols)
	if result.Error != nil {
		return false, fmt.Errorf("updating row: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	if _, err := p.ReadRow(ctx, jobID, rowIndex); err != nil {
		return false, err
	}
	return false, nil
}

func (p *ProgressStore) IncrementJobCounter(ctx context.Context, jobID string, counter model.JobCounter) (*model.Job, error) {
	if counter != model.JobCounterCompleted && counter != model.JobCounterFailed {
		return nil, fmt.Errorf("unknown job counter %q", counter)
	}

	var job model.Job
	err := p.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Job{}).
			Where("id = ? AND completed_count + failed_count < total_rows", jobID).
			Update(string(counter), gorm.Expr(string(counter)+" + 1"))
		if result.Error != nil {
			return result.Error
		}

		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		if result.RowsAffected == 0 {
			return ErrCounterSaturated
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrCounterSaturated) {
			return nil, err
		}
		return nil, fmt.Errorf("incrementing %s: %w", counter, err)
	}

	return &job, nil
}

func (p *ProgressStore) ClaimFinalize(ctx context.Context, jobID string) (bool, error) {
	result := p.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND finalize_claimed = ? AND completed_count + failed_count = total_rows", jobID, false).
		Update("finalize_claimed", true)
	if result.Error != nil {
		return false, fmt.Errorf("claiming finalize: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (p *ProgressStore) ReleaseFinalize(ctx context.Context, jobID string) error {
	result := p.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status NOT IN ?", jobID, []model.JobStatus{model.JobStatusComplete, model.JobStatusFailed}).
		Update("finalize_claimed", false)
	if result.Error != nil {
		return fmt.Errorf("releasing finalize: %w", result.Error)
	}
	return nil
}

func (p *ProgressStore) CompleteJob(ctx context.Context, jobID string, outputRef string) error {
	return p.finishJob(ctx, jobID, map[string]any{
		"status":              model.JobStatusComplete,
		"output_artifact_ref": outputRef,
	})
}

func (p *ProgressStore) FailJob(ctx context.Context, jobID string, reason string) error {
	return p.finishJob(ctx, jobID, map[string]any{
		"status": model.JobStatusFailed,
		"error":  reason,
	})
}

func (p *ProgressStore) finishJob(ctx context.Context, jobID string, cols map[string]any) error {
	result := p.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status NOT IN ?", jobID, []model.JobStatus{model.JobStatusComplete, model.JobStatusFailed}).
		Updates(cols)
	if result.Error != nil {
		return fmt.Errorf("finishing job: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}
	if _, err := p.ReadJob(ctx, jobID); err != nil {
		return err
	}
	return ErrJobFinished
}

func (p *ProgressStore) CancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	result := p.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status NOT IN ?", jobID, []model.JobStatus{model.JobStatusComplete, model.JobStatusFailed}).
		Update("cancelled", true)
	if result.Error != nil {
		return nil, fmt.Errorf("cancelling job: %w", result.Error)
	}

	job, err := p.ReadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return job, ErrJobFinished
	}
	return job, nil
}

func (p *ProgressStore) ReadJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := p.getDB(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return &job, nil
}

func (p *ProgressStore) ReadRow(ctx context.Context, jobID string, rowIndex int) (*model.Row, error) {
	var row model.Row
	if err := p.getDB(ctx).First(&row, "job_id = ? AND row_index = ?", jobID, rowIndex).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying row: %w", err)
	}
	return &row, nil
}

func (p *ProgressStore) ListRows(ctx context.Context, jobID string) ([]model.Row, error) {
	var rows []model.Row
	if err := p.getDB(ctx).Where("job_id = ?", jobID).Order("row_index").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	return rows, nil
}

func (p *ProgressStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db.WithContext(ctx)
}
