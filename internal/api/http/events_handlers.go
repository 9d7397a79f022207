package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk/internal/syncx"
)

// GetAttemptEventsHandler lists an attempt's append-only event history
// (module completions, submission), for teacher dashboards and audits.
func GetAttemptEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := events.ListByKey(r.Context(), chi.URLParam(r, "attemptID"), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type eventView struct {
			Offset    int64           `json:"offset"`
			Type      string          `json:"type"`
			Data      json.RawMessage `json:"data"`
			CreatedAt int64           `json:"created_at"`
		}
		out := make([]eventView, 0, len(evs))
		for _, e := range evs {
			out = append(out, eventView{
				Offset:    e.Offset,
				Type:      e.Type,
				Data:      json.RawMessage(e.DataJSON),
				CreatedAt: e.CreatedAt,
			})
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
