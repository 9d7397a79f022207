package autosave

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prepdesk/prepdesk/internal/attempt"
)

func seedAttempt(t *testing.T, store attempt.Store, userID, testID string) attempt.Attempt {
	t.Helper()
	a, err := store.GetOrCreate(context.Background(), userID, testID)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestResumePrefersDurableSession(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()

	a := seedAttempt(t, store, "u1", "t1")
	if _, err := store.PatchAnswers(ctx, a.ID, map[string]string{"q1": "a"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSession(ctx, a.ID, json.RawMessage(`{"phase":"in_progress"}`)); err != nil {
		t.Fatal(err)
	}
	// A lingering backup must lose to an initialized durable record.
	backups.Put(Key("u1", "t1"), Backup{Answers: map[string]string{"q1": "stale"}})

	out, err := Resume(ctx, store, backups, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeHydrated || out.AttemptID != a.ID {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Answers["q1"] != "a" {
		t.Fatalf("answers = %v, want the durable value", out.Answers)
	}
	if len(out.StateJSON) == 0 {
		t.Fatal("durable snapshot not carried")
	}
	if _, ok := backups.Take(Key("u1", "t1")); !ok {
		t.Fatal("backup should be left alone when the durable record wins")
	}
}

func TestResumeFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()

	a := seedAttempt(t, store, "u1", "t1")
	backups.Put(Key("u1", "t1"), Backup{
		StateJSON: []byte(`{"phase":"in_progress"}`),
		Answers:   map[string]string{"q2": "b"},
	})

	out, err := Resume(ctx, store, backups, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeHydrated || out.AttemptID != a.ID {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Answers["q2"] != "b" {
		t.Fatalf("answers = %v, want the backup's", out.Answers)
	}
	// Backups hydrate at most once.
	if _, ok := backups.Take(Key("u1", "t1")); ok {
		t.Fatal("backup not consumed")
	}
}

func TestResumeRecreatesAttemptFromBackup(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()

	backups.Put(Key("u1", "t1"), Backup{
		StateJSON: []byte(`{"phase":"in_progress"}`),
		Answers:   map[string]string{"q1": "a"},
	})

	out, err := Resume(ctx, store, backups, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeHydrated || out.AttemptID == "" {
		t.Fatalf("outcome = %+v, want hydrated with a fresh attempt", out)
	}
	if _, err := store.Find(ctx, "u1", "t1"); err != nil {
		t.Fatalf("attempt not recreated: %v", err)
	}
}

func TestResumeSeedsPriorAttemptResults(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()

	a := seedAttempt(t, store, "u1", "t1")
	if err := store.UpsertModuleResult(ctx, attempt.ModuleResult{
		AttemptID: a.ID, ModuleID: "m-math", ModuleName: "Math", Score: 10, Total: 20,
	}); err != nil {
		t.Fatal(err)
	}

	out, err := Resume(ctx, store, backups, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeFresh || out.AttemptID != a.ID {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.CompletedModuleIDs) != 1 || out.CompletedModuleIDs[0] != "m-math" {
		t.Fatalf("completed modules = %v, want [m-math]", out.CompletedModuleIDs)
	}
}

func TestResumeCompletedAttempt(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()

	a := seedAttempt(t, store, "u1", "t1")
	if err := store.MarkCompleted(ctx, a.ID, attempt.Summary{TotalScore: 5, TotalQuestions: 10}); err != nil {
		t.Fatal(err)
	}

	out, err := Resume(ctx, store, backups, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeHydrated || !out.Completed {
		t.Fatalf("outcome = %+v, want hydrated+completed", out)
	}
}

func TestResumeTrulyFreshClearsStaleBackups(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()

	// An anonymous session left a backup behind; a new account must not
	// inherit it.
	backups.Put(Key("", "t1"), Backup{Answers: map[string]string{"q1": "x"}})

	out, err := Resume(ctx, store, backups, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeFresh || out.AttemptID != "" {
		t.Fatalf("outcome = %+v, want a blank fresh start", out)
	}
	if _, ok := backups.Take(Key("", "t1")); ok {
		t.Fatal("stale anonymous backup not cleared")
	}
}
