package v1alpha1

import (
	"fmt"
	"net/http"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
)

// (GET /api/v1/themes)
func (h *ServiceHandler) ListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.themeSrv.ListThemes(r.Context())
	if err != nil {
		switch err.(type) {
		case *service.ErrProviderUnavailable:
			replyError(w, r, http.StatusBadGateway, err.Error())
		default:
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to list themes: %v", err))
		}
		return
	}

	reply(w, r, http.StatusOK, themes)
}
