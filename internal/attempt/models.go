package attempt

import "encoding/json"

// Attempt is the single live record for one (user, test) pair, created lazily
// on first module start.
type Attempt struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	TestID string `json:"test_id"`

	// Answers maps questionID -> raw answer string. Writes merge into this
	// map; a partial local view must never replace it wholesale.
	Answers map[string]string `json:"answers"`

	// SessionJSON is the last durable snapshot of the session state machine,
	// opaque to this package.
	SessionJSON json.RawMessage `json:"session_json,omitempty"`

	IsCompleted      bool  `json:"is_completed"` // monotonic false -> true
	TotalScore       int   `json:"total_score"`
	TotalQuestions   int   `json:"total_questions"`
	ScaledScore      int   `json:"scaled_score"`
	TimeTakenSeconds int   `json:"time_taken_seconds"`
	StartedAt        int64 `json:"started_at"`
	CompletedAt      int64 `json:"completed_at,omitempty"`
}

// ModuleResult is the scored outcome of one module within one attempt,
// upserted by (attempt, module) natural key.
type ModuleResult struct {
	AttemptID  string `json:"attempt_id"`
	ModuleID   string `json:"module_id"`
	ModuleName string `json:"module_name"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	// Nil until a scaled-score table lookup succeeds, or, for essay modules,
	// until a manual grade arrives.
	ScaledScore *int `json:"scaled_score,omitempty"`
}

// Summary carries the test-level totals written when the attempt completes.
type Summary struct {
	TotalScore       int `json:"total_score"`
	TotalQuestions   int `json:"total_questions"`
	ScaledScore      int `json:"scaled_score"`
	TimeTakenSeconds int `json:"time_taken_seconds"`
}

// MergeAnswers is the merge applied at every write boundary: the union of
// durable and local, local winning on key conflict. Neither input is mutated.
func MergeAnswers(durable, local map[string]string) map[string]string {
	out := make(map[string]string, len(durable)+len(local))
	for k, v := range durable {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}
