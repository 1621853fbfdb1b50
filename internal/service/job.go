package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/artifact"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/excel"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service/mappers"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store/model"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/google/uuid"
	"github.com/thoas/go-funk"
)

var allowedUploadExtensions = []string{".xlsx"}

// Submitter is the part of the coordinator the API needs.
type Submitter interface {
	SubmitJob(ctx context.Context, items []domain.Prospect, opts pipeline.SubmitOptions) (string, error)
	SubmitSingleItem(ctx context.Context, item domain.Prospect) (string, error)
	CancelJob(ctx context.Context, jobID string) (*model.Job, error)
}

type JobService struct {
	store     store.Store
	submitter Submitter
	artifacts artifact.Store
	uploadDir string
	maxRows   int
	logger    *log.StructuredLogger
}

func NewJobService(s store.Store, submitter Submitter, artifacts artifact.Store, uploadDir string, maxRows int) *JobService {
	return &JobService{
		store:     s,
		submitter: submitter,
		artifacts: artifacts,
		uploadDir: uploadDir,
		maxRows:   maxRows,
		logger:    log.NewDebugLogger("job_service"),
	}
}

// IsAllowedUpload reports whether filename has a spreadsheet extension we can parse.
func IsAllowedUpload(filename string) bool {
	return funk.ContainsString(allowedUploadExtensions, strings.ToLower(filepath.Ext(filename)))
}

// CreateJobFromUpload parses the spreadsheet, keeps a copy of it for the
// results workbook and submits one row per prospect.
func (s *JobService) CreateJobFromUpload(ctx context.Context, filename string, data []byte) (*api.JobCreated, error) {
	tracer := s.logger.WithContext(ctx).Operation("create_job_from_upload").WithString("filename", filename).Build()

	if !IsAllowedUpload(filename) {
		return nil, NewErrInvalidSubmission("please upload an Excel file (.xlsx)")
	}
	if len(data) == 0 {
		return nil, NewErrInvalidSubmission("file is required")
	}

	prospects, err := excel.ParseProspects(bytes.NewReader(data))
	if err != nil {
		tracer.Error(err).WithString("step", "parse").Log()
		return nil, NewErrInvalidSubmission("%s", err)
	}
	if s.maxRows > 0 && len(prospects) > s.maxRows {
		return nil, NewErrInvalidSubmission("too many rows (%d), maximum is %d", len(prospects), s.maxRows)
	}
	tracer.Step("parsed").WithInt("prospects", len(prospects)).Log()

	key := path.Join(s.uploadDir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], path.Base(filepath.ToSlash(filename))))
	ref, err := s.artifacts.Save(ctx, key, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		tracer.Error(err).WithString("step", "save_upload").Log()
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	jobID, err := s.submitter.SubmitJob(ctx, prospects, pipeline.SubmitOptions{OriginalFileRef: ref})
	if err != nil {
		tracer.Error(err).WithString("step", "submit").Log()
		return nil, submissionError(err)
	}

	tracer.Success().WithString("job_id", jobID).Log()
	return &api.JobCreated{
		JobID:     jobID,
		TotalRows: len(prospects),
		Status:    api.JobStatusProcessing,
		Message:   fmt.Sprintf("Processing %d prospects. Track progress at /api/v1/jobs/%s", len(prospects), jobID),
	}, nil
}

func (s *JobService) CreateSingle(ctx context.Context, form api.SingleProspectCreate) (*api.SingleProspectCreated, error) {
	tracer := s.logger.WithContext(ctx).Operation("create_single").WithString("company", form.Company).Build()

	prospect := mappers.ProspectFromSingle(form)
	if prospect.CompanyName == "" || prospect.ContactName == "" || prospect.ContactTitle == "" {
		return nil, NewErrInvalidSubmission("client name, company and role are required")
	}

	jobID, err := s.submitter.SubmitSingleItem(ctx, prospect)
	if err != nil {
		tracer.Error(err).Log()
		return nil, submissionError(err)
	}

	tracer.Success().WithString("job_id", jobID).Log()
	return &api.SingleProspectCreated{
		JobID:       jobID,
		CompanyName: prospect.CompanyName,
		Status:      api.JobStatusProcessing,
		Message:     fmt.Sprintf("Processing pitch deck. Track progress at /api/v1/single/%s", jobID),
	}, nil
}

func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*api.JobStatusReply, error) {
	job, err := s.readJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Progress().ListRows(ctx, jobID)
	if err != nil {
		return nil, err
	}
	reply := mappers.JobStatusToApi(*job, rows)
	return &reply, nil
}

func (s *JobService) GetRowStatus(ctx context.Context, jobID string, rowIndex int) (*api.RowStatus, error) {
	if _, err := s.readJob(ctx, jobID); err != nil {
		return nil, err
	}
	row, err := s.store.Progress().ReadRow(ctx, jobID, rowIndex)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrRowNotFound(jobID, rowIndex)
		}
		return nil, err
	}
	reply := mappers.RowToApi(*row)
	return &reply, nil
}

// GetSingleStatus reports the first row of the job together with the job counters.
func (s *JobService) GetSingleStatus(ctx context.Context, jobID string) (*api.SingleStatusReply, error) {
	job, err := s.readJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Progress().ListRows(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, NewErrRowNotFound(jobID, 0)
	}
	reply := mappers.SingleStatusToApi(*job, rows[0])
	return &reply, nil
}

func (s *JobService) CancelJob(ctx context.Context, jobID string) (*api.JobStatusReply, error) {
	tracer := s.logger.WithContext(ctx).Operation("cancel_job").WithString("job_id", jobID).Build()

	if _, err := s.submitter.CancelJob(ctx, jobID); err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return nil, NewErrJobNotFound(jobID)
		case errors.Is(err, store.ErrJobFinished):
			return nil, NewErrJobAlreadyFinished(jobID)
		default:
			tracer.Error(err).Log()
			return nil, err
		}
	}

	tracer.Success().Log()
	return s.GetJobStatus(ctx, jobID)
}

// OpenOutput opens the results workbook of a finished job. The caller closes the reader.
func (s *JobService) OpenOutput(ctx context.Context, jobID string) (io.ReadCloser, string, error) {
	job, err := s.readJob(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	if job.OutputArtifactRef == "" {
		return nil, "", NewErrOutputNotReady(jobID)
	}

	rc, err := s.artifacts.Open(ctx, job.OutputArtifactRef)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, "", NewErrOutputNotReady(jobID)
		}
		return nil, "", err
	}
	return rc, path.Base(job.OutputArtifactRef), nil
}

func (s *JobService) readJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.store.Progress().ReadJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}
	return job, nil
}

func submissionError(err error) error {
	if errors.Is(err, pipeline.ErrNoItems) || errors.Is(err, pipeline.ErrTooManyItems) || errors.Is(err, pipeline.ErrInvalidItems) {
		return NewErrInvalidSubmission("%s", err)
	}
	return err
}
