// Package session implements the real-time workout session controller: the
// lifecycle state machine for a live session, the sequential frame analysis
// pipeline that feeds it, the feedback cue channel, and the aggregation that
// folds per-frame results into the persisted session record.
//
// One Controller instance owns exactly one session attempt. There is no reset
// transition: a new attempt means a new Controller.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/google/uuid"
)

// Status is the controller's lifecycle state.
type Status string

const (
	Idle         Status = "idle"
	CountingDown Status = "counting_down"
	Active       Status = "active"
	Completed    Status = "completed"
	Aborted      Status = "aborted"
)

// ErrDeviceUnavailable wraps capture device acquisition failures. The
// controller stays Idle when Start fails with it.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// ErrNotIdle is returned by Start on a controller that has already run.
var ErrNotIdle = errors.New("controller already started")

// Device is the capture device collaborator. It is exclusively owned by one
// controller between Acquire and Release.
type Device interface {
	Acquire(ctx context.Context) error
	// Grab returns one encoded frame from the device.
	Grab(ctx context.Context) ([]byte, error)
	Release() error
}

// Analyzer is the external frame analysis capability. The controller never
// inspects frame contents; it only routes frames in and results out.
type Analyzer interface {
	AnalyzeFrame(ctx context.Context, frame []byte, exerciseType string, sessionID uuid.UUID) (*models.AnalysisResult, error)
}

// Store persists session records. Implementations are the server REST client
// (agent side) or the storage layer directly.
type Store interface {
	// CreateSession persists a new session and fills in its ID.
	CreateSession(ctx context.Context, s *models.Session) error
	// SaveSession persists the session's current state without completing it.
	SaveSession(ctx context.Context, s *models.Session) error
	// CompleteSession finalizes the session server-side, triggering the
	// account stats rollup.
	CompleteSession(ctx context.Context, s *models.Session) error
}

// LiveState is the controller's ephemeral working state. It is owned by the
// controller and never persisted or shared across sessions.
type LiveState struct {
	Status         Status
	NoPerson       bool
	RepCount       int
	Calories       float64
	Feedback       string
	CountdownLeft  int
	LastConfidence float64
}

// Config holds per-session controller settings.
type Config struct {
	UserID      int
	SessionName string
	Type        models.SessionType
	// Exercise is the analysis exercise tag, e.g. "push-up" or "squat".
	Exercise string

	// CountdownTicks and TickInterval control the lead time before the
	// session opens. Zero values default to 5 ticks of 1 second.
	CountdownTicks int
	TickInterval   time.Duration

	// AnalyzeTimeout is the generous upper bound on a single analysis call.
	AnalyzeTimeout time.Duration
	// MaxFailures is the consecutive analysis failure count that aborts the
	// session. Zero defaults to 3.
	MaxFailures int
	// Yield is the voluntary pause between applying a result and grabbing
	// the next frame, so the device and UI layer are never starved.
	Yield time.Duration
}

func (c *Config) applyDefaults() {
	if c.CountdownTicks == 0 {
		c.CountdownTicks = 5
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.AnalyzeTimeout == 0 {
		c.AnalyzeTimeout = 30 * time.Second
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Yield == 0 {
		c.Yield = 50 * time.Millisecond
	}
}
