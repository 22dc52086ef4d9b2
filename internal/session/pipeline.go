package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/claude/formtrack/internal/capture"
	"github.com/claude/formtrack/internal/models"
	"github.com/google/uuid"
)

// Token is the cooperative cancellation flag shared between the stop path and
// the pipeline loop. The loop checks it before capturing a frame and before
// applying a result, so no result is ever applied after cancellation.
type Token struct {
	once sync.Once
	done chan struct{}
}

func newToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel trips the token. Idempotent.
func (t *Token) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether the token has tripped.
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation.
func (t *Token) Done() <-chan struct{} { return t.done }

// runPipeline is the Active-state loop: grab one frame, downscale it, submit
// it for analysis, apply the result, repeat. Submission is strictly
// sequential: the next frame is not captured until the previous result (or
// error) has come back, which bounds in-flight work to one request and gives
// natural backpressure against a slow analysis service.
//
// An individual failed submission is "no new information this tick"; only
// MaxFailures consecutive failures abort the session. Stop never blocks on an
// in-flight call: the result is discarded when the token tripped while the
// call was outstanding.
func (c *Controller) runPipeline(ctx context.Context) {
	failures := 0

	for {
		if c.tok.Cancelled() {
			c.finish(ctx)
			return
		}

		frame, err := c.device.Grab(ctx)
		if err != nil {
			if c.tok.Cancelled() {
				c.finish(ctx)
				return
			}
			c.abort(ctx, fmt.Errorf("capture device lost: %w", err))
			return
		}

		small, err := capture.Downscale(frame, capture.AnalysisWidth, capture.AnalysisHeight)
		if err != nil {
			// Undecodable frame: treat like a failed tick, not a dead device.
			failures++
			c.log.Warn("frame downscale failed", "error", err, "consecutive", failures)
			if failures >= c.cfg.MaxFailures {
				c.abort(ctx, fmt.Errorf("frame pipeline: %d consecutive failures", failures))
				return
			}
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.AnalyzeTimeout)
		res, err := c.analyzer.AnalyzeFrame(callCtx, small, c.cfg.Exercise, c.sessionID())
		cancel()

		// A result that arrived after Stop is discarded, never applied.
		if c.tok.Cancelled() {
			c.finish(ctx)
			return
		}

		if err != nil || res == nil || !res.Success {
			failures++
			if err != nil {
				c.log.Warn("frame analysis failed", "error", err, "consecutive", failures)
			} else {
				c.log.Warn("frame analysis rejected", "consecutive", failures)
			}
			if failures >= c.cfg.MaxFailures {
				c.abort(ctx, fmt.Errorf("frame pipeline: %d consecutive analysis failures", failures))
				return
			}
			continue
		}
		failures = 0

		c.apply(res)

		// Voluntary yield so the capture device and UI layer are not starved
		// by a fast analysis service.
		if !c.sleep(c.cfg.Yield) {
			c.finish(ctx)
			return
		}
	}
}

// apply folds one accepted result into the live state and emits cues. Rep and
// calorie counters never move backwards within a session.
func (c *Controller) apply(res *models.AnalysisResult) {
	c.mu.Lock()
	repAnnounce := false
	if res.Count > c.live.RepCount {
		c.live.RepCount = res.Count
		repAnnounce = true
	}
	if res.Calories > c.live.Calories {
		c.live.Calories = res.Calories
	}
	c.live.NoPerson = res.Status == models.StatusNoPerson
	c.live.Feedback = res.Feedback
	count := c.live.RepCount
	c.mu.Unlock()

	if repAnnounce {
		c.cues.Emit(CueRepCount, fmt.Sprintf("%d", count))
	}
	if res.Feedback != "" {
		c.cues.Emit(CueForm, res.Feedback)
	}
}

func (c *Controller) sessionID() (id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		id = c.sess.ID
	}
	return id
}
