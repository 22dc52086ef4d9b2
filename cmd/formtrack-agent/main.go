package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/formtrack/internal/agent"
	"github.com/claude/formtrack/internal/analysis"
	"github.com/claude/formtrack/internal/capture"
	"github.com/claude/formtrack/internal/config"
	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// cueLogger renders feedback cues to the structured log. A real deployment
// would hand these to a TTS engine; interrupting simply means the previous
// line scrolls away.
type cueLogger struct {
	log *slog.Logger
}

func (c *cueLogger) Speak(cue session.Cue) {
	kind := "form"
	if cue.Kind == session.CueRepCount {
		kind = "reps"
	}
	c.log.Info("cue", "kind", kind, "text", cue.Text)
}

func (c *cueLogger) Interrupt(session.CueKind) {}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exercise := flag.String("exercise", "push-up", "exercise tag sent to the analysis service")
	name := flag.String("name", "", "session name (defaults to the exercise)")
	typ := flag.String("type", string(models.TypeStrength), "session type")
	frameDir := flag.String("frames", "", "frame source directory (overrides config)")
	apiKey := flag.String("api-key", "", "server API key (overrides FORMTRACK_AUTH_API_KEY)")
	flushOnly := flag.Bool("flush", false, "flush journaled sessions and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("formtrack-agent", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	key := cfg.Auth.APIKey
	if *apiKey != "" {
		key = *apiKey
	}
	dir := cfg.Agent.FrameDir
	if *frameDir != "" {
		dir = *frameDir
	}
	stateDir := cfg.Agent.StateDir
	if stateDir == "" {
		stateDir = "."
	}

	client := agent.NewClient(cfg.Agent.ServerURL, key)
	journal, err := agent.OpenJournal(stateDir)
	if err != nil {
		log.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	ctx := context.Background()

	// Retry anything a previous run failed to upload.
	if n, err := journal.Flush(ctx, client); err != nil {
		log.Warn("journal flush incomplete", "flushed", n, "error", err)
	} else if n > 0 {
		log.Info("journal flushed", "sessions", n)
	}
	if *flushOnly {
		return
	}

	if dir == "" {
		fmt.Fprintf(os.Stderr, "Error: no frame directory (use -frames or agent.frame_dir)\n")
		os.Exit(1)
	}

	timeout := 30 * time.Second
	if cfg.Analysis.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second
	}

	sessionName := *name
	if sessionName == "" {
		sessionName = *exercise
	}

	device := capture.NewFileDevice(dir)
	analyzer := analysis.NewClient(cfg.Analysis.URL, timeout)
	store := &agent.FallbackStore{Client: client, Journal: journal}
	cues := session.NewCueChannel(&cueLogger{log: log})

	ctrl := session.New(device, analyzer, store, cues, log, session.Config{
		UserID:         cfg.Agent.UserID,
		SessionName:    sessionName,
		Type:           models.SessionType(*typ),
		Exercise:       *exercise,
		AnalyzeTimeout: timeout,
	})

	if err := ctrl.Start(ctx); err != nil {
		log.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	log.Info("session starting", "exercise", *exercise, "name", sessionName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("stopping session", "signal", sig)
		ctrl.Stop()
		<-ctrl.Done()
	case <-ctrl.Done():
	}

	if err := ctrl.Err(); err != nil {
		log.Error("session ended with error", "status", ctrl.Status(), "error", err)
		os.Exit(1)
	}

	if sess := ctrl.Session(); sess != nil {
		log.Info("session finished",
			"status", ctrl.Status(),
			"duration_min", sess.DurationMin,
			"form_score", sess.OverallFormScore,
			"calories", sess.CaloriesBurned,
		)
	} else {
		log.Info("session finished", "status", ctrl.Status())
	}
}
