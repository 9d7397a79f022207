package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("test not found")

// Loader supplies immutable test definitions. The exam runtime only ever
// reads through this interface; authoring lives elsewhere.
type Loader interface {
	LoadTestDefinition(ctx context.Context, testID string) (*TestDefinition, error)
}

type SQLLoader struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]*TestDefinition
}

func NewSQLLoader(db *sql.DB) *SQLLoader {
	return &SQLLoader{db: db, cache: map[string]*TestDefinition{}}
}

// LoadTestDefinition loads a test with its modules, questions, passages and
// scaled-score tables. Definitions are immutable, so loads are cached for the
// process lifetime.
func (l *SQLLoader) LoadTestDefinition(ctx context.Context, testID string) (*TestDefinition, error) {
	l.mu.RLock()
	if d, ok := l.cache[testID]; ok {
		l.mu.RUnlock()
		return d, nil
	}
	l.mu.RUnlock()

	row := l.db.QueryRowContext(ctx,
		`SELECT id, title, category, modules_json, questions_json, passages_json, scaled_scores_json
		 FROM tests WHERE id=$1`, testID)

	var d TestDefinition
	var modules, questions, passages, scaled string
	if err := row.Scan(&d.ID, &d.Title, &d.Category, &modules, &questions, &passages, &scaled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load test %s: %w", testID, err)
	}
	if err := json.Unmarshal([]byte(modules), &d.Modules); err != nil {
		return nil, fmt.Errorf("test %s modules: %w", testID, err)
	}
	if err := json.Unmarshal([]byte(questions), &d.Questions); err != nil {
		return nil, fmt.Errorf("test %s questions: %w", testID, err)
	}
	if passages != "" {
		if err := json.Unmarshal([]byte(passages), &d.Passages); err != nil {
			return nil, fmt.Errorf("test %s passages: %w", testID, err)
		}
	}
	if scaled != "" {
		if err := json.Unmarshal([]byte(scaled), &d.ScaledScores); err != nil {
			return nil, fmt.Errorf("test %s scaled scores: %w", testID, err)
		}
	}

	l.mu.Lock()
	l.cache[testID] = &d
	l.mu.Unlock()
	return &d, nil
}

// StaticLoader serves fixed definitions. Used in tests and seeding.
type StaticLoader map[string]*TestDefinition

func (s StaticLoader) LoadTestDefinition(_ context.Context, testID string) (*TestDefinition, error) {
	d, ok := s[testID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}
