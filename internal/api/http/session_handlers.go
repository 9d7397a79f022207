package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/prepdesk/prepdesk/internal/auth/middleware"
	"github.com/prepdesk/prepdesk/internal/content"
	"github.com/prepdesk/prepdesk/internal/session"
)

// OpenSessionHandler opens (or resumes) the caller's session for a test and
// returns the hydrated view. Load failures block: there is no fallback state.
func OpenSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		testID := chi.URLParam(r, "testID")
		rt, err := mgr.Open(r.Context(), userID, testID)
		if err != nil {
			if errors.Is(err, content.ErrNotFound) {
				http.Error(w, "test not found", http.StatusNotFound)
				return
			}
			http.Error(w, "open session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(rt.View())
	}
}

func GetSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		_ = json.NewEncoder(w).Encode(rt.View())
	}
}

// CloseSessionHandler flushes and tears the session down, the server-side
// counterpart of closing the tab.
func CloseSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mgr.Close(r.Context(), userID, chi.URLParam(r, "testID"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func SelectModuleHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		var req struct {
			ModuleType string `json:"module_type"`
			Part       int    `json:"part"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Part == 0 {
			req.Part = 1
		}
		respond(w, rt, rt.SelectModule(r.Context(), req.ModuleType, req.Part))
	}
}

func AnswerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
			Value      string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		respond(w, rt, rt.Answer(req.QuestionID, req.Value))
	}
}

func FlagHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
			On         bool   `json:"on"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		respond(w, rt, rt.Flag(req.QuestionID, req.On))
	}
}

func CrossOutHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
			OptionID   string `json:"option_id"`
			On         bool   `json:"on"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		respond(w, rt, rt.CrossOut(req.QuestionID, req.OptionID, req.On))
	}
}

func NextHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		respond(w, rt, rt.Next(r.Context()))
	}
}

func PrevHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		respond(w, rt, rt.Prev())
	}
}

func ConfirmPartHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		respond(w, rt, rt.ConfirmPart(r.Context()))
	}
}

func PauseTimerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		respond(w, rt, rt.PauseTimer())
	}
}

func ResumeTimerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		respond(w, rt, rt.ResumeTimer())
	}
}

// ProceedHandler leaves the module-scored screen: next module, or submission
// when every module is done.
func ProceedHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, ok := openRuntime(w, r, mgr)
		if !ok {
			return
		}
		respond(w, rt, rt.Proceed(r.Context()))
	}
}

func openRuntime(w http.ResponseWriter, r *http.Request, mgr *session.Manager) (*session.Runtime, bool) {
	userID := authmw.SubjectFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	rt, ok := mgr.Get(userID, chi.URLParam(r, "testID"))
	if !ok {
		http.Error(w, "no open session", http.StatusNotFound)
		return nil, false
	}
	return rt, true
}

func respond(w http.ResponseWriter, rt *session.Runtime, err error) {
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	_ = json.NewEncoder(w).Encode(rt.View())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSubmitted),
		errors.Is(err, session.ErrWrongPhase),
		errors.Is(err, session.ErrModuleDone):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownModule),
		errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
