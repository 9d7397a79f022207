package attempt

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("attempt not found")

// Store is the durable record store for attempts and module results. It is
// the single source of truth across reconnects; the autosave coordinator is
// its only writer during a live session.
type Store interface {
	// GetOrCreate returns the live attempt for (user, test), creating it on
	// first module start.
	GetOrCreate(ctx context.Context, userID, testID string) (Attempt, error)
	// Find returns the attempt for (user, test) or ErrNotFound.
	Find(ctx context.Context, userID, testID string) (Attempt, error)
	Get(ctx context.Context, attemptID string) (Attempt, error)

	// PatchAnswers merges local answers into the stored map
	// (fetch-merge-write; never a raw replace) and returns the merged result.
	PatchAnswers(ctx context.Context, attemptID string, local map[string]string) (Attempt, error)

	// SaveSession stores the durable session snapshot.
	SaveSession(ctx context.Context, attemptID string, snapshot json.RawMessage) error

	// UpsertModuleResult inserts or updates by (attempt, module). A nil
	// ScaledScore never clears one already persisted by manual grading.
	UpsertModuleResult(ctx context.Context, r ModuleResult) error
	ListModuleResults(ctx context.Context, attemptID string) ([]ModuleResult, error)

	// MarkCompleted flips is_completed once; repeat calls are no-ops.
	MarkCompleted(ctx context.Context, attemptID string, s Summary) error

	// ApplyEssayGrade records a manual grade by updating the module result's
	// scaled score in place, leaving score/total untouched.
	ApplyEssayGrade(ctx context.Context, attemptID, moduleID string, scaled int) error
}
