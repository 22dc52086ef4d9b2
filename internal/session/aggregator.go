package session

import (
	"time"

	"github.com/claude/formtrack/internal/models"
)

// finalizeSession folds the accumulated live counters into the session record
// at stop time: stamp the end, synthesize one set from the counters (covers
// modalities with no discrete sets, e.g. cardio), and recompute the scores
// bottom-up.
func finalizeSession(sess *models.Session, exercise string, live LiveState, end time.Time) {
	sess.EndTime = &end
	sess.DurationMin = models.DurationMinutes(sess.StartTime, end)
	sess.CaloriesBurned = live.Calories

	seconds := end.Sub(sess.StartTime).Seconds()
	pace := 0.0
	if seconds > 0 {
		pace = float64(live.RepCount) / seconds * 60
	}

	set := models.Set{
		Reps:        live.RepCount,
		DurationSec: int(seconds),
		FormScore:   models.FormScoreForPace(pace),
		Feedback:    []models.SetFeedback{models.FeedbackForPace(pace)},
		Timestamp:   end,
	}

	rec := findOrAddExercise(sess, exercise)
	rec.AppendSet(set)
	sess.RecomputeScores()
}
