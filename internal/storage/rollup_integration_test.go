//go:build integration_test || all_tests

package storage

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/claude/formtrack/internal/models"
)

// These tests need a live Postgres. Point FORMTRACK_TEST_DATABASE_URL at a
// throwaway database and run with -tags integration_test.

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("FORMTRACK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FORMTRACK_TEST_DATABASE_URL not set")
	}
	if err := RunMigrations(dsn, "../../migrations"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	return db
}

// testUserID returns an id unused by other runs so stats do not bleed
// between tests.
func testUserID() int {
	return int(time.Now().UnixNano() % 1_000_000_000)
}

func scoredSession(userID int, start time.Time, formScore int) *models.Session {
	s := &models.Session{
		UserID:    userID,
		Name:      "integration session",
		Type:      models.TypeStrength,
		StartTime: start,
		Exercises: []models.ExerciseRecord{{
			Name: "push-up",
			Sets: []models.Set{{Reps: 10, DurationSec: 60, FormScore: formScore}},
		}},
	}
	s.RecomputeScores()
	return s
}

// TestRollupRecomputesAverage completes two sessions scored 70 and 90 and
// checks the account average lands on 80 with session and minute totals to
// match, recomputed rather than blended.
func TestRollupRecomputesAverage(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()
	now := time.Now()

	first := scoredSession(userID, now.Add(-30*time.Minute), 70)
	second := scoredSession(userID, now.Add(-10*time.Minute), 90)
	for _, s := range []*models.Session{first, second} {
		if err := db.CreateSession(ctx, s); err != nil {
			t.Fatal(err)
		}
		if _, err := db.CompleteSession(ctx, s.ID, userID, now); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := db.GetAccountStats(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 2 {
		t.Errorf("total sessions = %d, want 2", stats.TotalSessions)
	}
	if stats.TotalMinutes != 40 {
		t.Errorf("total minutes = %d, want 40", stats.TotalMinutes)
	}
	if math.Abs(stats.AverageFormScore-80) > 0.001 {
		t.Errorf("average form score = %v, want 80", stats.AverageFormScore)
	}
}

// TestCompleteKeepsStampedEndTime completes a session whose end time was
// uploaded earlier and checks the duration reflects that time, not the clock
// at completion.
func TestCompleteKeepsStampedEndTime(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()
	start := time.Now().Add(-3 * time.Hour)

	s := scoredSession(userID, start, 75)
	if err := db.CreateSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	// Postgres keeps microseconds; truncate so the round trip compares equal.
	ended := start.Add(25 * time.Minute).Truncate(time.Microsecond)
	if _, err := db.UpdateSession(ctx, s.ID, userID, SessionPatch{EndTime: &ended}); err != nil {
		t.Fatal(err)
	}

	done, err := db.CompleteSession(ctx, s.ID, userID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if done.DurationMin != 25 {
		t.Errorf("duration = %d min, want 25", done.DurationMin)
	}
	if done.EndTime == nil || !done.EndTime.Equal(ended) {
		t.Errorf("end time = %v, want %v", done.EndTime, ended)
	}

	stats, err := db.GetAccountStats(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalMinutes != 25 {
		t.Errorf("total minutes = %d, want 25", stats.TotalMinutes)
	}
}

// TestCompleteSessionIdempotent completes the same session twice; the second
// call must not touch the stats again.
func TestCompleteSessionIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	userID := testUserID()

	s := scoredSession(userID, time.Now().Add(-20*time.Minute), 90)
	if err := db.CreateSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CompleteSession(ctx, s.ID, userID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CompleteSession(ctx, s.ID, userID, time.Now()); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetAccountStats(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 1 {
		t.Errorf("total sessions = %d, want 1", stats.TotalSessions)
	}
}
