package attempt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore keeps attempts in process memory. Used by tests and as a
// throwaway backend for demos.
type memoryStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt                // by id
	byKey    map[string]string                 // user|test -> id
	results  map[string]map[string]ModuleResult // attemptID -> moduleID -> result
}

func NewInMemoryStore() Store {
	return &memoryStore{
		attempts: map[string]Attempt{},
		byKey:    map[string]string{},
		results:  map[string]map[string]ModuleResult{},
	}
}

func memKey(userID, testID string) string { return userID + "|" + testID }

func (m *memoryStore) GetOrCreate(_ context.Context, userID, testID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[memKey(userID, testID)]; ok {
		return m.attempts[id], nil
	}
	a := Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		TestID:    testID,
		Answers:   map[string]string{},
		StartedAt: time.Now().Unix(),
	}
	m.attempts[a.ID] = a
	m.byKey[memKey(userID, testID)] = a.ID
	return a, nil
}

func (m *memoryStore) Find(_ context.Context, userID, testID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[memKey(userID, testID)]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return m.attempts[id], nil
}

func (m *memoryStore) Get(_ context.Context, attemptID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) PatchAnswers(_ context.Context, attemptID string, local map[string]string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a.Answers = MergeAnswers(a.Answers, local)
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) SaveSession(_ context.Context, attemptID string, snapshot json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	a.SessionJSON = append(json.RawMessage(nil), snapshot...)
	m.attempts[attemptID] = a
	return nil
}

func (m *memoryStore) UpsertModuleResult(_ context.Context, r ModuleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[r.AttemptID]; !ok {
		return ErrNotFound
	}
	byModule := m.results[r.AttemptID]
	if byModule == nil {
		byModule = map[string]ModuleResult{}
		m.results[r.AttemptID] = byModule
	}
	if prev, ok := byModule[r.ModuleID]; ok && r.ScaledScore == nil {
		r.ScaledScore = prev.ScaledScore
	}
	byModule[r.ModuleID] = r
	return nil
}

func (m *memoryStore) ListModuleResults(_ context.Context, attemptID string) ([]ModuleResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ModuleResult
	for _, r := range m.results[attemptID] {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) MarkCompleted(_ context.Context, attemptID string, s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.IsCompleted {
		return nil
	}
	a.IsCompleted = true
	a.TotalScore = s.TotalScore
	a.TotalQuestions = s.TotalQuestions
	a.ScaledScore = s.ScaledScore
	a.TimeTakenSeconds = s.TimeTakenSeconds
	a.CompletedAt = time.Now().Unix()
	m.attempts[attemptID] = a
	return nil
}

func (m *memoryStore) ApplyEssayGrade(_ context.Context, attemptID, moduleID string, scaled int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byModule := m.results[attemptID]
	r, ok := byModule[moduleID]
	if !ok {
		return ErrNotFound
	}
	r.ScaledScore = &scaled
	byModule[moduleID] = r
	return nil
}
