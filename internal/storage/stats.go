package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/jackc/pgx/v5"
)

// rollupStats applies one completed session to the owning account's stats
// inside the completion transaction. The row lock taken by the upsert-then-
// select serializes concurrent completions for the same account; the average
// form score is always recomputed from every completed session rather than
// blended incrementally, so rounding error can never accumulate.
func rollupStats(ctx context.Context, tx pgx.Tx, userID, durationMin int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO account_stats (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensuring stats row: %w", err)
	}

	var stats models.AccountStats
	err = tx.QueryRow(ctx,
		`SELECT user_id, total_sessions, total_minutes, average_form_score, streak_days
		 FROM account_stats WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&stats.UserID, &stats.TotalSessions, &stats.TotalMinutes,
			&stats.AverageFormScore, &stats.StreakDays)
	if err != nil {
		return fmt.Errorf("locking stats row: %w", err)
	}

	var avg float64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(AVG(overall_form_score), 0) FROM sessions
		 WHERE user_id = $1 AND is_completed`, userID).Scan(&avg)
	if err != nil {
		return fmt.Errorf("recomputing average form score: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE account_stats
		 SET total_sessions = total_sessions + 1,
		     total_minutes = total_minutes + $2,
		     average_form_score = $3
		 WHERE user_id = $1`,
		userID, durationMin, avg)
	if err != nil {
		return fmt.Errorf("updating account stats: %w", err)
	}
	return nil
}

// GetAccountStats returns the account rollup, zero-valued when the account
// has not completed a session yet.
func (db *DB) GetAccountStats(ctx context.Context, userID int) (*models.AccountStats, error) {
	stats := &models.AccountStats{UserID: userID}
	err := db.Pool.QueryRow(ctx,
		`SELECT total_sessions, total_minutes, average_form_score, streak_days
		 FROM account_stats WHERE user_id = $1`, userID).
		Scan(&stats.TotalSessions, &stats.TotalMinutes, &stats.AverageFormScore, &stats.StreakDays)
	if err == pgx.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account stats: %w", err)
	}
	return stats, nil
}

// SummaryResult is the windowed aggregate over recently completed sessions.
type SummaryResult struct {
	TotalSessions    int64            `json:"total_sessions"`
	TotalDurationMin int64            `json:"total_duration_min"`
	AverageFormScore int              `json:"average_form_score"`
	SessionsByType   map[string]int64 `json:"sessions_by_type"`
	Period           string           `json:"period"`
}

// StatsSummary reduces the completed sessions of a trailing day window. It is
// recomputed from the rows on every call; nothing incremental to drift.
func (db *DB) StatsSummary(ctx context.Context, userID, days int) (*SummaryResult, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	result := &SummaryResult{
		SessionsByType: map[string]int64{},
		Period:         fmt.Sprintf("%d days", days),
	}

	var avg float64
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration_min), 0), COALESCE(AVG(overall_form_score), 0)
		 FROM sessions
		 WHERE user_id = $1 AND is_completed AND start_time >= $2`,
		userID, since).
		Scan(&result.TotalSessions, &result.TotalDurationMin, &avg)
	if err != nil {
		return nil, fmt.Errorf("summarizing sessions: %w", err)
	}
	result.AverageFormScore = int(math.Round(avg))

	rows, err := db.Pool.Query(ctx,
		`SELECT type, COUNT(*) FROM sessions
		 WHERE user_id = $1 AND is_completed AND start_time >= $2
		 GROUP BY type`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("summarizing session types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scanning type count: %w", err)
		}
		result.SessionsByType[typ] = count
	}
	return result, rows.Err()
}
