package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a session does not exist for the given owner.
var ErrNotFound = errors.New("session not found")

const sessionColumns = `id, user_id, name, type, start_time, end_time, duration_min,
	 exercises, overall_form_score, calories_burned, notes, is_completed`

// CreateSession inserts a new session row and fills in its generated ID.
func (db *DB) CreateSession(ctx context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Type == "" {
		s.Type = models.TypeMixed
	}
	exercises, err := json.Marshal(emptyIfNil(s.Exercises))
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, name, type, start_time, end_time, duration_min,
		 exercises, overall_form_score, calories_burned, notes, is_completed)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.UserID, s.Name, s.Type, s.StartTime, s.EndTime, s.DurationMin,
		exercises, s.OverallFormScore, s.CaloriesBurned, s.Notes, s.IsCompleted)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves one session owned by userID.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID, userID int) (*models.Session, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`,
		id, userID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// SessionFilter narrows and pages a session listing.
type SessionFilter struct {
	Type      models.SessionType
	Completed *bool
	Page      int // 1-based
	Limit     int
}

// ListSessions retrieves a user's sessions newest-first, with optional type
// and completion filters. Returns the page plus the total matching count for
// pagination.
func (db *DB) ListSessions(ctx context.Context, userID int, f SessionFilter) ([]models.Session, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}

	where := []string{"user_id = $1"}
	args := []any{userID}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Completed != nil {
		args = append(args, *f.Completed)
		where = append(where, fmt.Sprintf("is_completed = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting sessions: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := db.Pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM sessions WHERE %s
		 ORDER BY start_time DESC LIMIT $%d OFFSET $%d`,
			sessionColumns, cond, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, *s)
	}
	return result, total, rows.Err()
}

// SessionPatch is a partial session update. Nil fields are left untouched.
// IsCompleted is carried only so the boundary can reject it; completion goes
// through CompleteSession, the one path that runs the stats rollup.
type SessionPatch struct {
	Name        *string                  `json:"name,omitempty"`
	Type        *models.SessionType      `json:"type,omitempty"`
	Exercises   []models.ExerciseRecord  `json:"exercises,omitempty"`
	EndTime     *time.Time               `json:"end_time,omitempty"`
	IsCompleted *bool                    `json:"is_completed,omitempty"`
	Notes       *string                  `json:"notes,omitempty"`
	Calories    *float64                 `json:"calories_burned,omitempty"`
}

// UpdateSession applies a partial patch and returns the updated record. When
// the patch carries exercises, the overall form score is recomputed bottom-up
// before writing. A completed session accepts only notes changes.
func (db *DB) UpdateSession(ctx context.Context, id uuid.UUID, userID int, patch SessionPatch) (*models.Session, error) {
	s, err := db.GetSession(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if s.IsCompleted {
		// Completed sessions are immutable except for notes.
		if patch.Notes == nil {
			return nil, fmt.Errorf("session %s is completed", id)
		}
		s.Notes = *patch.Notes
		return s, db.writeSession(ctx, s)
	}

	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Type != nil {
		s.Type = *patch.Type
	}
	if patch.Exercises != nil {
		s.Exercises = patch.Exercises
		s.RecomputeScores()
	}
	if patch.EndTime != nil {
		s.EndTime = patch.EndTime
		s.DurationMin = models.DurationMinutes(s.StartTime, *patch.EndTime)
	}
	if patch.Notes != nil {
		s.Notes = *patch.Notes
	}
	if patch.Calories != nil {
		s.CaloriesBurned = *patch.Calories
	}

	return s, db.writeSession(ctx, s)
}

// DeleteSession removes a session owned by userID.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID, userID int) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteSession finalizes a session and rolls its numbers into the owning
// account's stats in the same transaction. The account_stats row lock is the
// per-account serialization point for concurrent completions.
func (db *DB) CompleteSession(ctx context.Context, id uuid.UUID, userID int, end time.Time) (*models.Session, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning completion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		id, userID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking session: %w", err)
	}

	if !s.IsCompleted {
		// An end time already on the row wins over the caller's clock. A
		// journaled session flushed hours after the fact carries the time it
		// actually ended; only the live path falls back to now.
		if s.EndTime != nil {
			end = *s.EndTime
		}
		s.Finish(end)
		s.IsCompleted = true

		exercises, err := json.Marshal(emptyIfNil(s.Exercises))
		if err != nil {
			return nil, fmt.Errorf("encoding exercises: %w", err)
		}
		_, err = tx.Exec(ctx,
			`UPDATE sessions SET end_time = $1, duration_min = $2, exercises = $3,
			 overall_form_score = $4, is_completed = TRUE
			 WHERE id = $5`,
			s.EndTime, s.DurationMin, exercises, s.OverallFormScore, s.ID)
		if err != nil {
			return nil, fmt.Errorf("finalizing session: %w", err)
		}

		if err := rollupStats(ctx, tx, userID, s.DurationMin); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing completion: %w", err)
	}
	return s, nil
}

func (db *DB) writeSession(ctx context.Context, s *models.Session) error {
	exercises, err := json.Marshal(emptyIfNil(s.Exercises))
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`UPDATE sessions SET name = $1, type = $2, end_time = $3, duration_min = $4,
		 exercises = $5, overall_form_score = $6, calories_burned = $7, notes = $8,
		 is_completed = $9
		 WHERE id = $10 AND user_id = $11`,
		s.Name, s.Type, s.EndTime, s.DurationMin, exercises, s.OverallFormScore,
		s.CaloriesBurned, s.Notes, s.IsCompleted, s.ID, s.UserID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var exercises []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Type, &s.StartTime, &s.EndTime,
		&s.DurationMin, &exercises, &s.OverallFormScore, &s.CaloriesBurned,
		&s.Notes, &s.IsCompleted); err != nil {
		return nil, err
	}
	if len(exercises) > 0 {
		if err := json.Unmarshal(exercises, &s.Exercises); err != nil {
			return nil, fmt.Errorf("decoding exercises: %w", err)
		}
	}
	return &s, nil
}

func emptyIfNil(ex []models.ExerciseRecord) []models.ExerciseRecord {
	if ex == nil {
		return []models.ExerciseRecord{}
	}
	return ex
}
