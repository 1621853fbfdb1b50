package v1alpha1

import (
	"net/http"

	api "github.com/Champ-Deep/LakeB2B-SlideSmith/api/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/handlers/validator"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/requestid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// 32MB of the multipart body is kept in memory, the rest spills to disk.
const multipartMemory = 32 << 20

type ServiceHandler struct {
	jobSrv         *service.JobService
	historySrv     *service.HistoryService
	themeSrv       *service.ThemeService
	validator      *validator.Validator
	maxUploadBytes int64
}

func NewServiceHandler(jobSrv *service.JobService, historySrv *service.HistoryService, themeSrv *service.ThemeService, maxUploadBytes int64) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewSingleProspectValidationRules()...)

	return &ServiceHandler{
		jobSrv:         jobSrv,
		historySrv:     historySrv,
		themeSrv:       themeSrv,
		validator:      v,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the API routes on router.
func (h *ServiceHandler) Register(router chi.Router) {
	router.Get("/health", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs/{id}", h.GetJob)
		r.Delete("/jobs/{id}", h.CancelJob)
		r.Get("/jobs/{id}/rows/{row}", h.GetRow)
		r.Get("/jobs/{id}/download", h.DownloadOutput)

		r.Post("/single", h.CreateSingle)
		r.Get("/single/{id}", h.GetSingle)

		r.Get("/history", h.ListHistory)
		r.Get("/history/{id}", h.GetHistoryDeck)

		r.Get("/themes", h.ListThemes)
	})
}

func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, service.Health())
}

func reply(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func replyError(w http.ResponseWriter, r *http.Request, status int, message string) {
	reply(w, r, status, api.Error{Message: message, RequestId: requestid.FromContextPtr(r.Context())})
}
