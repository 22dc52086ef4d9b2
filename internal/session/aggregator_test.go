package session

import (
	"testing"
	"time"

	"github.com/claude/formtrack/internal/models"
)

// TestFinalizeSession verifies the stop-time fold: end stamp, rounded
// duration, calories, and the synthesized set with its pace-derived score.
func TestFinalizeSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute) // 30 reps over 2 min = 15 rpm

	sess := &models.Session{StartTime: start}
	live := LiveState{RepCount: 30, Calories: 12.5}
	finalizeSession(sess, "push-up", live, end)

	if sess.EndTime == nil || !sess.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", sess.EndTime, end)
	}
	if sess.DurationMin != 2 {
		t.Errorf("DurationMin = %d, want 2", sess.DurationMin)
	}
	if sess.CaloriesBurned != 12.5 {
		t.Errorf("CaloriesBurned = %v, want 12.5", sess.CaloriesBurned)
	}

	if len(sess.Exercises) != 1 {
		t.Fatalf("exercises = %d, want 1", len(sess.Exercises))
	}
	rec := sess.Exercises[0]
	if rec.Name != "push-up" {
		t.Errorf("exercise name = %q, want push-up", rec.Name)
	}
	if len(rec.Sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(rec.Sets))
	}
	set := rec.Sets[0]
	if set.Reps != 30 {
		t.Errorf("set reps = %d, want 30", set.Reps)
	}
	if set.DurationSec != 120 {
		t.Errorf("set duration = %d, want 120", set.DurationSec)
	}
	// 15 rpm sits in the best pace band.
	if set.FormScore != 90 {
		t.Errorf("set form score = %d, want 90", set.FormScore)
	}
	if len(set.Feedback) != 1 || set.Feedback[0] != models.FeedbackGoodForm {
		t.Errorf("set feedback = %v, want [good_form]", set.Feedback)
	}
	if sess.OverallFormScore != 90 {
		t.Errorf("overall score = %d, want 90", sess.OverallFormScore)
	}
}

// TestFinalizeSessionZeroDuration verifies that an instant stop produces a
// zero-pace set instead of dividing by zero.
func TestFinalizeSessionZeroDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sess := &models.Session{StartTime: start}
	finalizeSession(sess, "plank", LiveState{}, start)

	if sess.DurationMin != 0 {
		t.Errorf("DurationMin = %d, want 0", sess.DurationMin)
	}
	set := sess.Exercises[0].Sets[0]
	// Zero pace lands in the lowest band.
	if set.FormScore != 40 {
		t.Errorf("set form score = %d, want 40", set.FormScore)
	}
	if len(set.Feedback) != 1 || set.Feedback[0] != models.FeedbackOther {
		t.Errorf("set feedback = %v, want [other]", set.Feedback)
	}
}

// TestFinalizeSessionMergesExercise verifies that the synthesized set joins an
// existing record for the same exercise instead of duplicating it.
func TestFinalizeSessionMergesExercise(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)

	sess := &models.Session{
		StartTime: start,
		Exercises: []models.ExerciseRecord{
			{Name: "push-up", Sets: []models.Set{{Reps: 10, FormScore: 80}}},
		},
	}
	finalizeSession(sess, "push-up", LiveState{RepCount: 15}, end)

	if len(sess.Exercises) != 1 {
		t.Fatalf("exercises = %d, want 1 merged record", len(sess.Exercises))
	}
	if got := sess.Exercises[0].TotalSets; got != 2 {
		t.Errorf("total sets = %d, want 2", got)
	}
	if got := sess.Exercises[0].TotalReps; got != 25 {
		t.Errorf("total reps = %d, want 25", got)
	}
}
