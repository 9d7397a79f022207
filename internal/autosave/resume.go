package autosave

import (
	"context"
	"errors"
	"fmt"

	"github.com/prepdesk/prepdesk/internal/attempt"
)

type OutcomeKind string

const (
	// OutcomeHydrated carries a full saved session to restore.
	OutcomeHydrated OutcomeKind = "hydrated"
	// OutcomeFresh means no restorable session exists; CompletedModuleIDs may
	// still seed the module-selection screen from a prior attempt's results.
	OutcomeFresh OutcomeKind = "fresh"
)

type Outcome struct {
	Kind      OutcomeKind
	AttemptID string // may be empty for a truly new student
	Completed bool   // attempt already submitted: show results only

	StateJSON          []byte
	Answers            map[string]string
	CompletedModuleIDs []string
}

// Resume reconciles the durable store with the ephemeral backup, favoring the
// durable store unless it looks uninitialized. Priority order:
//
//  1. durable attempt with a non-empty answer map: hydrate fully;
//  2. ephemeral backup for exactly this user+test: hydrate and clear it;
//  3. prior incomplete attempt: seed completed modules, start at selection;
//  4. truly new: fresh start, clearing any stale backups so an earlier
//     anonymous session cannot bleed into a new account.
func Resume(ctx context.Context, store attempt.Store, backups *BackupCache, userID, testID string) (Outcome, error) {
	a, err := store.Find(ctx, userID, testID)
	switch {
	case err == nil:
		if a.IsCompleted {
			return Outcome{
				Kind:      OutcomeHydrated,
				AttemptID: a.ID,
				Completed: true,
				StateJSON: a.SessionJSON,
				Answers:   a.Answers,
			}, nil
		}
		if len(a.Answers) > 0 && len(a.SessionJSON) > 0 {
			return Outcome{
				Kind:      OutcomeHydrated,
				AttemptID: a.ID,
				StateJSON: a.SessionJSON,
				Answers:   a.Answers,
			}, nil
		}
		if b, ok := backups.Take(Key(userID, testID)); ok && !b.Empty() {
			return Outcome{
				Kind:      OutcomeHydrated,
				AttemptID: a.ID,
				StateJSON: b.StateJSON,
				Answers:   attempt.MergeAnswers(a.Answers, b.Answers),
			}, nil
		}
		results, lerr := store.ListModuleResults(ctx, a.ID)
		if lerr != nil {
			return Outcome{}, fmt.Errorf("list module results: %w", lerr)
		}
		ids := make([]string, 0, len(results))
		for _, r := range results {
			ids = append(ids, r.ModuleID)
		}
		return Outcome{
			Kind:               OutcomeFresh,
			AttemptID:          a.ID,
			Answers:            a.Answers,
			CompletedModuleIDs: ids,
		}, nil

	case errors.Is(err, attempt.ErrNotFound):
		if b, ok := backups.Take(Key(userID, testID)); ok && !b.Empty() {
			created, cerr := store.GetOrCreate(ctx, userID, testID)
			if cerr != nil {
				return Outcome{}, fmt.Errorf("recreate attempt from backup: %w", cerr)
			}
			return Outcome{
				Kind:      OutcomeHydrated,
				AttemptID: created.ID,
				StateJSON: b.StateJSON,
				Answers:   attempt.MergeAnswers(created.Answers, b.Answers),
			}, nil
		}
		// Truly new: drop any stale backup for this test, including one left
		// by an anonymous session.
		backups.Clear(Key(userID, testID))
		backups.Clear(Key("", testID))
		return Outcome{Kind: OutcomeFresh}, nil

	default:
		return Outcome{}, fmt.Errorf("load attempt: %w", err)
	}
}
