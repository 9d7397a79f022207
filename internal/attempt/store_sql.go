package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) GetOrCreate(ctx context.Context, userID, testID string) (Attempt, error) {
	a, err := s.Find(ctx, userID, testID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Attempt{}, err
	}

	a = Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		TestID:    testID,
		Answers:   map[string]string{},
		StartedAt: time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, test_id, answers_json, started_at)
		 VALUES ($1,$2,$3,'{}',$4)`,
		a.ID, userID, testID, a.StartedAt)
	if err != nil {
		// Another writer may have created the row between Find and INSERT;
		// the UNIQUE(user_id, test_id) constraint makes re-reading safe.
		if existing, ferr := s.Find(ctx, userID, testID); ferr == nil {
			return existing, nil
		}
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return a, nil
}

func (s *SQLStore) Find(ctx context.Context, userID, testID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, selectAttempt+` WHERE user_id=$1 AND test_id=$2`, userID, testID)
	return scanAttempt(row)
}

func (s *SQLStore) Get(ctx context.Context, attemptID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, selectAttempt+` WHERE id=$1`, attemptID)
	return scanAttempt(row)
}

const selectAttempt = `SELECT id, user_id, test_id, answers_json, session_json, is_completed,
	total_score, total_questions, scaled_score, time_taken_seconds, started_at, completed_at
	FROM attempts`

func scanAttempt(row *sql.Row) (Attempt, error) {
	var a Attempt
	var answers, session string
	var completedAt sql.NullInt64
	err := row.Scan(&a.ID, &a.UserID, &a.TestID, &answers, &session, &a.IsCompleted,
		&a.TotalScore, &a.TotalQuestions, &a.ScaledScore, &a.TimeTakenSeconds, &a.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil || a.Answers == nil {
		a.Answers = map[string]string{}
	}
	if session != "" {
		a.SessionJSON = json.RawMessage(session)
	}
	if completedAt.Valid {
		a.CompletedAt = completedAt.Int64
	}
	return a, nil
}

// PatchAnswers re-reads the persisted map and merges inside one transaction,
// so a thin local view can never erase answers another save already landed.
func (s *SQLStore) PatchAnswers(ctx context.Context, attemptID string, local map[string]string) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	var stored string
	if err := tx.QueryRowContext(ctx,
		`SELECT answers_json FROM attempts WHERE id=$1`, attemptID).Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	durable := map[string]string{}
	if err := json.Unmarshal([]byte(stored), &durable); err != nil {
		durable = map[string]string{}
	}
	merged := MergeAnswers(durable, local)
	buf, err := json.Marshal(merged)
	if err != nil {
		return Attempt{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1 WHERE id=$2`, string(buf), attemptID); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return s.Get(ctx, attemptID)
}

func (s *SQLStore) SaveSession(ctx context.Context, attemptID string, snapshot json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET session_json=$1 WHERE id=$2`, string(snapshot), attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) UpsertModuleResult(ctx context.Context, r ModuleResult) error {
	var scaled sql.NullInt64
	if r.ScaledScore != nil {
		scaled = sql.NullInt64{Int64: int64(*r.ScaledScore), Valid: true}
	}
	// COALESCE keeps a manual essay grade alive across re-completions that
	// carry no scaled score of their own.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO module_results (attempt_id, module_id, module_name, score, total, scaled_score, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (attempt_id, module_id) DO UPDATE SET
		   module_name=excluded.module_name,
		   score=excluded.score,
		   total=excluded.total,
		   scaled_score=COALESCE(excluded.scaled_score, module_results.scaled_score),
		   updated_at=excluded.updated_at`,
		r.AttemptID, r.ModuleID, r.ModuleName, r.Score, r.Total, scaled, time.Now().Unix())
	return err
}

func (s *SQLStore) ListModuleResults(ctx context.Context, attemptID string) ([]ModuleResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, module_id, module_name, score, total, scaled_score
		 FROM module_results WHERE attempt_id=$1 ORDER BY module_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleResult
	for rows.Next() {
		var r ModuleResult
		var scaled sql.NullInt64
		if err := rows.Scan(&r.AttemptID, &r.ModuleID, &r.ModuleName, &r.Score, &r.Total, &scaled); err != nil {
			return nil, err
		}
		if scaled.Valid {
			v := int(scaled.Int64)
			r.ScaledScore = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkCompleted(ctx context.Context, attemptID string, sum Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET is_completed=$1, total_score=$2, total_questions=$3,
		   scaled_score=$4, time_taken_seconds=$5, completed_at=$6
		 WHERE id=$7 AND is_completed=$8`,
		true, sum.TotalScore, sum.TotalQuestions, sum.ScaledScore, sum.TimeTakenSeconds,
		time.Now().Unix(), attemptID, false)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either missing or already completed; completion is monotonic, so a
		// repeat call against a completed attempt is a no-op.
		a, gerr := s.Get(ctx, attemptID)
		if gerr != nil {
			return gerr
		}
		if a.IsCompleted {
			return nil
		}
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ApplyEssayGrade(ctx context.Context, attemptID, moduleID string, scaled int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE module_results SET scaled_score=$1, updated_at=$2
		 WHERE attempt_id=$3 AND module_id=$4`,
		scaled, time.Now().Unix(), attemptID, moduleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("module result %s/%s: %w", attemptID, moduleID, ErrNotFound)
	}
	return nil
}
