package autosave

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prepdesk/prepdesk/internal/attempt"
)

type fakeSource struct {
	mu      sync.Mutex
	id      string
	state   []byte
	answers map[string]string
}

func (f *fakeSource) Snapshot() ([]byte, map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ans := make(map[string]string, len(f.answers))
	for k, v := range f.answers {
		ans[k] = v
	}
	return append([]byte(nil), f.state...), ans
}

func (f *fakeSource) AttemptID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

type countingStore struct {
	attempt.Store
	mu      sync.Mutex
	patches int
	saves   int
}

func (c *countingStore) PatchAnswers(ctx context.Context, attemptID string, local map[string]string) (attempt.Attempt, error) {
	c.mu.Lock()
	c.patches++
	c.mu.Unlock()
	return c.Store.PatchAnswers(ctx, attemptID, local)
}

func (c *countingStore) SaveSession(ctx context.Context, attemptID string, snapshot json.RawMessage) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.Store.SaveSession(ctx, attemptID, snapshot)
}

func (c *countingStore) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patches, c.saves
}

func TestNotifyDebouncesIntoOneWrite(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: attempt.NewInMemoryStore()}
	a, err := store.GetOrCreate(ctx, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{
		id:      a.ID,
		state:   []byte(`{"phase":"in_progress"}`),
		answers: map[string]string{"q1": "a"},
	}
	c := NewCoordinator(store, NewBackupCache(), "u1", "t1", src, time.Hour, 50*time.Millisecond)

	// A burst of edits collapses into a single flush.
	c.Notify()
	c.Notify()
	c.Notify()
	time.Sleep(300 * time.Millisecond)

	patches, saves := store.counts()
	if patches != 1 || saves != 1 {
		t.Fatalf("writes = %d patches / %d saves, want 1/1", patches, saves)
	}
	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Answers["q1"] != "a" || len(got.SessionJSON) == 0 {
		t.Fatalf("flushed attempt = %+v", got)
	}
}

func TestFlushMergesIntoDurableAnswers(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	a, err := store.GetOrCreate(ctx, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	// The essay answer was saved by an earlier flow and never touched since.
	if _, err := store.PatchAnswers(ctx, a.ID, map[string]string{"essay1": "draft"}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{
		id:      a.ID,
		state:   []byte(`{"phase":"in_progress"}`),
		answers: map[string]string{"q1": "a"},
	}
	c := NewCoordinator(store, NewBackupCache(), "u1", "t1", src, time.Hour, 20*time.Millisecond)
	c.Notify()
	time.Sleep(200 * time.Millisecond)

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Answers["essay1"] != "draft" {
		t.Fatal("flush replaced the durable answer map instead of merging into it")
	}
	if got.Answers["q1"] != "a" {
		t.Fatalf("answers = %v", got.Answers)
	}
}

func TestStopWritesBackupAndFlushes(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewInMemoryStore()
	backups := NewBackupCache()
	a, err := store.GetOrCreate(ctx, "u1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{
		id:      a.ID,
		state:   []byte(`{"phase":"in_progress"}`),
		answers: map[string]string{"q1": "a"},
	}
	c := NewCoordinator(store, backups, "u1", "t1", src, time.Hour, time.Hour)
	c.Start()
	c.Stop(ctx)
	c.Stop(ctx) // idempotent

	b, ok := backups.Take(Key("u1", "t1"))
	if !ok || b.Empty() {
		t.Fatal("close-time ephemeral backup missing")
	}
	if b.Answers["q1"] != "a" {
		t.Fatalf("backup answers = %v", b.Answers)
	}

	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Answers["q1"] != "a" || len(got.SessionJSON) == 0 {
		t.Fatalf("close-time durable flush missing: %+v", got)
	}

	// Notifications after Stop are dropped.
	c.Notify()
	time.Sleep(50 * time.Millisecond)
}

func TestFlushWaitsForAttemptCreation(t *testing.T) {
	store := &countingStore{Store: attempt.NewInMemoryStore()}
	src := &fakeSource{answers: map[string]string{"q1": "a"}}
	c := NewCoordinator(store, NewBackupCache(), "u1", "t1", src, time.Hour, 20*time.Millisecond)

	// No attempt exists yet: the debounced flush is a no-op, not an error.
	c.Notify()
	time.Sleep(150 * time.Millisecond)
	if patches, saves := store.counts(); patches != 0 || saves != 0 {
		t.Fatalf("writes before attempt creation: %d/%d", patches, saves)
	}
}
