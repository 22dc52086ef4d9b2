package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/formtrack/internal/models"
)

// Controller drives one workout session through
// Idle → CountingDown → Active → Completed | Aborted.
//
// The run goroutine is the single writer of the live state and the session
// record. Stop is non-blocking: it trips the cancellation token and returns;
// device release and persistence happen inside the run goroutine.
type Controller struct {
	cfg      Config
	device   Device
	analyzer Analyzer
	store    Store
	cues     *CueChannel
	log      *slog.Logger
	now      func() time.Time

	tok  *Token
	done chan struct{}

	mu     sync.Mutex
	status Status
	live   LiveState
	sess   *models.Session
	err    error
}

// New creates an idle controller. cues may be nil when no feedback surface is
// attached (e.g. headless tests).
func New(device Device, analyzer Analyzer, store Store, cues *CueChannel, log *slog.Logger, cfg Config) *Controller {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	if cues == nil {
		cues = NewCueChannel(nil)
	}
	return &Controller{
		cfg:      cfg,
		device:   device,
		analyzer: analyzer,
		store:    store,
		cues:     cues,
		log:      log,
		now:      time.Now,
		tok:      newToken(),
		done:     make(chan struct{}),
		status:   Idle,
		live:     LiveState{Status: Idle},
	}
}

// Start acquires the capture device and begins the countdown. A device
// acquisition failure leaves the controller Idle and is returned wrapped in
// ErrDeviceUnavailable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != Idle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.mu.Unlock()

	if err := c.device.Acquire(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	c.setStatus(CountingDown)
	go c.run(ctx)
	return nil
}

// Stop requests completion of the active session. It returns immediately;
// teardown and persistence run asynchronously. Wait on Done for the outcome.
func (c *Controller) Stop() {
	c.tok.Cancel()
}

// Done is closed once the controller has reached a terminal state and all
// teardown has finished.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Live returns a snapshot of the ephemeral session state.
func (c *Controller) Live() LiveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Session returns the session record, nil before the countdown finishes.
func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Err returns the terminal error: the abort cause, or the persistence error
// from the completion path (the session stays Completed in that case).
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RecordSet appends an explicit set entry to the named exercise while the
// session is active. Used for modalities measured outside frame analysis.
func (c *Controller) RecordSet(exercise string, set models.Set) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Active || c.sess == nil {
		return fmt.Errorf("session not active")
	}
	rec := findOrAddExercise(c.sess, exercise)
	rec.AppendSet(set)
	c.sess.RecomputeScores()
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	if !c.countdown() {
		// Stopped before the session opened: release the device and end
		// without a record. Aborted is terminal here too.
		c.releaseDevice()
		c.setStatus(Aborted)
		return
	}

	start := c.now()
	sess := &models.Session{
		UserID:    c.cfg.UserID,
		Name:      c.cfg.SessionName,
		Type:      c.cfg.Type,
		StartTime: start,
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		c.releaseDevice()
		c.fail(fmt.Errorf("creating session: %w", err))
		return
	}

	c.mu.Lock()
	c.sess = sess
	c.status = Active
	c.live.Status = Active
	c.mu.Unlock()
	c.cues.SetActive(true)
	c.log.Info("session active", "session_id", sess.ID, "exercise", c.cfg.Exercise)

	c.runPipeline(ctx)
}

// countdown runs the fixed lead time. Returns false if cancelled before the
// session opened.
func (c *Controller) countdown() bool {
	for i := c.cfg.CountdownTicks; i > 0; i-- {
		c.mu.Lock()
		c.live.CountdownLeft = i
		c.mu.Unlock()
		if !c.sleep(c.cfg.TickInterval) {
			return false
		}
	}
	c.mu.Lock()
	c.live.CountdownLeft = 0
	c.mu.Unlock()
	return true
}

// sleep pauses for d, waking early on cancellation. Returns false when the
// token tripped during the pause.
func (c *Controller) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return !c.tok.Cancelled()
	case <-c.tok.Done():
		return false
	}
}

// finish is the Active → Completed transition: release the device, stamp the
// end time, fold the live counters into a final set, and persist. A
// persistence failure is recorded but does not re-open the session.
func (c *Controller) finish(ctx context.Context) {
	c.cues.SetActive(false)
	c.releaseDevice()

	end := c.now()
	c.mu.Lock()
	finalizeSession(c.sess, c.cfg.Exercise, c.live, end)
	c.sess.IsCompleted = true
	c.status = Completed
	c.live.Status = Completed
	sess := c.sess
	c.mu.Unlock()

	if err := c.store.CompleteSession(ctx, sess); err != nil {
		c.log.Error("completing session", "session_id", sess.ID, "error", err)
		c.mu.Lock()
		c.err = fmt.Errorf("session %s: completing: %w", sess.ID, err)
		c.mu.Unlock()
		return
	}
	c.log.Info("session completed", "session_id", sess.ID,
		"duration_min", sess.DurationMin, "score", sess.OverallFormScore)
}

// abort is the Active → Aborted transition: the session is persisted with
// whatever partial data exists and is_completed=false.
func (c *Controller) abort(ctx context.Context, cause error) {
	c.cues.SetActive(false)
	c.releaseDevice()

	end := c.now()
	c.mu.Lock()
	sess := c.sess
	if sess != nil {
		sess.EndTime = &end
		sess.DurationMin = models.DurationMinutes(sess.StartTime, end)
		sess.CaloriesBurned = c.live.Calories
		sess.RecomputeScores()
		sess.IsCompleted = false
	}
	c.status = Aborted
	c.live.Status = Aborted
	c.err = cause
	c.mu.Unlock()

	if sess != nil {
		if err := c.store.SaveSession(ctx, sess); err != nil {
			c.log.Error("persisting aborted session", "session_id", sess.ID, "error", err)
		}
	}
	c.log.Warn("session aborted", "error", cause)
}

// fail marks a terminal failure before any session record exists.
func (c *Controller) fail(cause error) {
	c.cues.SetActive(false)
	c.mu.Lock()
	c.status = Aborted
	c.live.Status = Aborted
	c.err = cause
	c.mu.Unlock()
	c.log.Warn("session failed to open", "error", cause)
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.live.Status = s
	c.mu.Unlock()
}

func (c *Controller) releaseDevice() {
	if err := c.device.Release(); err != nil {
		c.log.Warn("releasing capture device", "error", err)
	}
}

func findOrAddExercise(sess *models.Session, name string) *models.ExerciseRecord {
	for i := range sess.Exercises {
		if sess.Exercises[i].Name == name {
			return &sess.Exercises[i]
		}
	}
	sess.Exercises = append(sess.Exercises, models.ExerciseRecord{Name: name})
	return &sess.Exercises[len(sess.Exercises)-1]
}
