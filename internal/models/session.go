package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SessionType categorizes a workout session.
type SessionType string

const (
	TypeStrength    SessionType = "strength"
	TypeCardio      SessionType = "cardio"
	TypeFlexibility SessionType = "flexibility"
	TypeMixed       SessionType = "mixed"
	TypeCustom      SessionType = "custom"
)

// ValidSessionType reports whether t is one of the known session types.
func ValidSessionType(t SessionType) bool {
	switch t {
	case TypeStrength, TypeCardio, TypeFlexibility, TypeMixed, TypeCustom:
		return true
	}
	return false
}

// SetFeedback is a closed set of per-set feedback tags.
type SetFeedback string

const (
	FeedbackGoodForm     SetFeedback = "good_form"
	FeedbackAdjustAngle  SetFeedback = "adjust_angle"
	FeedbackSlowDown     SetFeedback = "slow_down"
	FeedbackKeepStraight SetFeedback = "keep_straight"
	FeedbackBreathe      SetFeedback = "breathe"
	FeedbackOther        SetFeedback = "other"
)

// Set is one measured repetition block within an exercise.
// Sets are append-only: once recorded they are never mutated.
type Set struct {
	Reps        int           `json:"reps"`
	WeightKg    float64       `json:"weight_kg,omitempty"`
	DurationSec int           `json:"duration_sec,omitempty"`
	FormScore   int           `json:"form_score"`
	Feedback    []SetFeedback `json:"feedback,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ExerciseRecord is one exercise performed within a session, holding its sets
// and derived totals.
type ExerciseRecord struct {
	ExerciseID       string `json:"exercise_id,omitempty"`
	Name             string `json:"name"`
	Sets             []Set  `json:"sets"`
	TotalSets        int    `json:"total_sets"`
	TotalReps        int    `json:"total_reps"`
	AverageFormScore int    `json:"average_form_score"`
}

// AppendSet appends a set and recomputes the record's derived totals.
func (e *ExerciseRecord) AppendSet(s Set) {
	e.Sets = append(e.Sets, s)
	e.Recompute()
}

// Recompute refreshes TotalSets, TotalReps and AverageFormScore from Sets.
func (e *ExerciseRecord) Recompute() {
	e.TotalSets = len(e.Sets)
	e.TotalReps = 0
	if len(e.Sets) == 0 {
		e.AverageFormScore = 0
		return
	}
	sum := 0
	for _, s := range e.Sets {
		e.TotalReps += s.Reps
		sum += s.FormScore
	}
	e.AverageFormScore = int(math.Round(float64(sum) / float64(len(e.Sets))))
}

// Session is one persisted workout attempt.
type Session struct {
	ID               uuid.UUID        `json:"id"`
	UserID           int              `json:"user_id"`
	Name             string           `json:"name"`
	Type             SessionType      `json:"type"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          *time.Time       `json:"end_time,omitempty"`
	DurationMin      int              `json:"duration_min"`
	Exercises        []ExerciseRecord `json:"exercises"`
	OverallFormScore int              `json:"overall_form_score"`
	CaloriesBurned   float64          `json:"calories_burned"`
	Notes            string           `json:"notes,omitempty"`
	IsCompleted      bool             `json:"is_completed"`
}

// OverallScore returns the rounded mean of the exercises' average form
// scores, or 0 when the session has no exercises.
func (s *Session) OverallScore() int {
	if len(s.Exercises) == 0 {
		return 0
	}
	sum := 0
	for _, e := range s.Exercises {
		sum += e.AverageFormScore
	}
	return int(math.Round(float64(sum) / float64(len(s.Exercises))))
}

// RecomputeScores refreshes every exercise's derived totals and the session's
// overall form score, bottom-up.
func (s *Session) RecomputeScores() {
	for i := range s.Exercises {
		s.Exercises[i].Recompute()
	}
	s.OverallFormScore = s.OverallScore()
}

// Finish stamps the end time and recomputes duration and scores. The duration
// is the whole-minute rounding of end - start and is never negative.
func (s *Session) Finish(end time.Time) {
	s.EndTime = &end
	s.DurationMin = DurationMinutes(s.StartTime, end)
	s.RecomputeScores()
}

// DurationMinutes converts a start/end pair into whole minutes, rounded.
// A negative span clamps to 0.
func DurationMinutes(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(math.Round(end.Sub(start).Minutes()))
}

// FormScoreForPace maps a repetitions-per-minute pace onto a form score.
// The bands are a documented scoring policy carried over unchanged for
// compatibility with previously recorded sessions:
//
//	[10,20] → 90, [8,25] → 75, [5,30] → 60, otherwise 40.
func FormScoreForPace(repsPerMinute float64) int {
	switch {
	case repsPerMinute >= 10 && repsPerMinute <= 20:
		return 90
	case repsPerMinute >= 8 && repsPerMinute <= 25:
		return 75
	case repsPerMinute >= 5 && repsPerMinute <= 30:
		return 60
	default:
		return 40
	}
}

// FeedbackForPace derives the set feedback tag for a synthesized set from its
// pace: too fast → slow_down, too slow → other, in-band → good_form.
func FeedbackForPace(repsPerMinute float64) SetFeedback {
	switch {
	case repsPerMinute > 20:
		return FeedbackSlowDown
	case repsPerMinute < 10:
		return FeedbackOther
	default:
		return FeedbackGoodForm
	}
}

// AccountStats is the account-level rollup of completed sessions. It is
// mutated only by the stats rollup at session completion; StreakDays is an
// externally derived signal carried through unchanged.
type AccountStats struct {
	UserID           int     `json:"user_id"`
	TotalSessions    int     `json:"total_sessions"`
	TotalMinutes     int     `json:"total_minutes"`
	AverageFormScore float64 `json:"average_form_score"`
	StreakDays       int     `json:"streak_days"`
}
