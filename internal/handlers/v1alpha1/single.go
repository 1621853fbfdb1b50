package v1alpha1

import (
	"fmt"
	"net/http"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// (POST /api/v1/single)
func (h *ServiceHandler) CreateSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.NewDebugLogger("single_handler").WithContext(ctx).Operation("create_single").Build()

	form := api.SingleProspectCreate{}
	if err := render.DecodeJSON(r.Body, &form); err != nil {
		replyError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := h.validator.Struct(form); err != nil {
		replyError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.jobSrv.CreateSingle(ctx, form)
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

	logger.Success().WithString("job_id", created.JobID).Log()
	reply(w, r, http.StatusAccepted, created)
}

// (GET /api/v1/single/{id})
func (h *ServiceHandler) GetSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	status, err := h.jobSrv.GetSingleStatus(ctx, id)
	if err != nil {
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
