package v1alpha1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/log"
	"github.com/go-chi/chi/v5"
)

// (GET /api/v1/history)
func (h *ServiceHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.NewDebugLogger("history_handler").WithContext(ctx).Operation("list_history").Build()

	filter := service.HistoryFilter{Company: r.URL.Query().Get("company")}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			replyError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, raw))
			return
		}
		*dst = v
	}

	list, err := h.historySrv.ListDecks(ctx, filter)
	if err != nil {
		logger.Error(err).WithParam("filter", filter).Log()
		replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to list decks: %v", err))
		return
	}

	reply(w, r, http.StatusOK, list)
}

// (GET /api/v1/history/{id})
func (h *ServiceHandler) GetHistoryDeck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	deck, err := h.historySrv.GetDeck(ctx, id)
	if err != nil {
		switch err.(type) {
		case *service.ErrResourceNotFound:
			replyError(w, r, http.StatusNotFound, err.Error())
		default:
			log.NewDebugLogger("history_handler").WithContext(ctx).Operation("get_deck").WithParam("deck_id", id).Build().Error(err).Log()
			replyError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to get deck: %v", err))
		}
		return
	}

	reply(w, r, http.StatusOK, deck)
}
