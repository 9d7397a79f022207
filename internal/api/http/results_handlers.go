package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk/internal/attempt"
	authmw "github.com/prepdesk/prepdesk/internal/auth/middleware"
)

type resultsResponse struct {
	Attempt attempt.Attempt        `json:"attempt"`
	Modules []attempt.ModuleResult `json:"modules"`
}

// GetMyResultsHandler returns the caller's attempt and module results for a
// test.
func GetMyResultsHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		a, err := store.Find(r.Context(), userID, chi.URLParam(r, "testID"))
		if err != nil {
			if errors.Is(err, attempt.ErrNotFound) {
				http.Error(w, "no attempt", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeResults(w, r, store, a)
	}
}

// GetAttemptResultsHandler returns any attempt by id, for teacher dashboards.
func GetAttemptResultsHandler(store attempt.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			if errors.Is(err, attempt.ErrNotFound) {
				http.Error(w, "attempt not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeResults(w, r, store, a)
	}
}

func writeResults(w http.ResponseWriter, r *http.Request, store attempt.Store, a attempt.Attempt) {
	mods, err := store.ListModuleResults(r.Context(), a.ID)
	if err != nil {
		http.Error(w, "module results: "+err.Error(), http.StatusInternalServerError)
		return
	}
	// The session snapshot is runtime plumbing, not results data.
	a.SessionJSON = nil
	_ = json.NewEncoder(w).Encode(resultsResponse{Attempt: a, Modules: mods})
}
