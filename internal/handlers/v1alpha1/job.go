package v1alpha1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// (POST /api/v1/jobs)
func (h *ServiceHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.NewDebugLogger("job_handler").WithContext(ctx).Operation("create_job").Build()

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.Error(err).Log()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			replyError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("file is larger than %d bytes", tooLarge.Limit))
			return
		}
		replyError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to read multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		replyError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	if !service.IsAllowedUpload(header.Filename) {
		replyError(w, r, http.StatusBadRequest, "please upload an Excel file (.xlsx)")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error(err).Log()
		replyError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	created, err := h.jobSrv.CreateJobFromUpload(ctx, header.Filename, data)
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrInvalidSubmission:
			replyError(w, r, http.StatusBadRequest, err.Error())
		default:
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to create job: %v", err))
		}
		return
	}

	logger.Success().WithString("job_id", created.JobID).WithInt("total_rows", created.TotalRows).Log()
	reply(w, r, http.StatusAccepted, created)
}

// (GET /api/v1/jobs/{id})
func (h *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("job_handler").WithContext(ctx).Operation("get_job").WithString("job_id", id).Build()

	status, err := h.jobSrv.GetJobStatus(ctx, id)
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrResourceNotFound:
			replyError(w, r, http.StatusNotFound, err.Error())
		default:
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
		}
		return
	}

	reply(w, r, http.StatusOK, status)
}

// (GET /api/v1/jobs/{id}/rows/{row})
func (h *ServiceHandler) GetRow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("job_handler").WithContext(ctx).Operation("get_row").WithString("job_id", id).Build()

	rowIndex, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		replyError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid row index %q", chi.URLParam(r, "row")))
		return
	}

	row, err := h.jobSrv.GetRowStatus(ctx, id, rowIndex)
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrResourceNotFound:
			replyError(w, r, http.StatusNotFound, err.Error())
		default:
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to get row: %v", err))
		}
		return
	}

	reply(w, r, http.StatusOK, row)
}

// (DELETE /api/v1/jobs/{id})
func (h *ServiceHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("job_handler").WithContext(ctx).Operation("cancel_job").WithString("job_id", id).Build()

	status, err := h.jobSrv.CancelJob(ctx, id)
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrResourceNotFound:
			replyError(w, r, http.StatusNotFound, err.Error())
		case *service.ErrJobAlreadyFinished:
			replyError(w, r, http.StatusConflict, err.Error())
		default:
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to cancel job: %v", err))
		}
		return
	}

	logger.Success().Log()
	reply(w, r, http.StatusOK, status)
}

// (GET /api/v1/jobs/{id}/download)
func (h *ServiceHandler) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	logger := log.NewDebugLogger("job_handler").WithContext(ctx).Operation("download_output").WithString("job_id", id).Build()

	rc, filename, err := h.jobSrv.OpenOutput(ctx, id)
	if err != nil {
		logger.Error(err).Log()
		switch err.(type) {
		case *service.ErrResourceNotFound:
			replyError(w, r, http.StatusNotFound, err.Error())
		case *service.ErrOutputNotReady:
			replyError(w, r, http.StatusBadRequest, err.Error())
		default:
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to open output: %v", err))
		}
		return
	}
	defer func() {
		_ = rc.Close()
	}()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logger.Error(err).WithString("step", "copy").Log()
		return
	}
	logger.Success().WithString("filename", filename).Log()
}
