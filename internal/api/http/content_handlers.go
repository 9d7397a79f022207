package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk/internal/content"
)

// GetTestHandler serves the immutable test definition with answer keys
// stripped.
func GetTestHandler(loader content.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, err := loader.LoadTestDefinition(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			if errors.Is(err, content.ErrNotFound) {
				http.Error(w, "test not found", http.StatusNotFound)
				return
			}
			http.Error(w, "load test: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(def.StudentView())
	}
}
