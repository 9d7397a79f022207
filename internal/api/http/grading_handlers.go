package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk/internal/attempt"
)

// POST /attempts/{attemptID}/modules/{moduleID}/grade
// Manual grading channel for essay modules: records the scaled score in
// place, leaving the synthetic score/total untouched.
func ApplyEssayGradeHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ScaledScore int `json:"scaled_score"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		attemptID := chi.URLParam(r, "attemptID")
		moduleID := chi.URLParam(r, "moduleID")
		if err := store.ApplyEssayGrade(r.Context(), attemptID, moduleID, req.ScaledScore); err != nil {
			if errors.Is(err, attempt.ErrNotFound) {
				http.Error(w, "module result not found", http.StatusNotFound)
				return
			}
			http.Error(w, "apply grade: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /attempts/{attemptID}/modules/{moduleID}/grade
// Returns {"score": n} once a manual grade exists, null before.
func GetEssayGradeHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := store.ListModuleResults(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		moduleID := chi.URLParam(r, "moduleID")
		for _, res := range results {
			if res.ModuleID == moduleID && res.ScaledScore != nil {
				_ = json.NewEncoder(w).Encode(map[string]int{"score": *res.ScaledScore})
				return
			}
		}
		_, _ = w.Write([]byte("null\n"))
	}
}
