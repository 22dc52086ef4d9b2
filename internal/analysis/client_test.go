package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/formtrack/internal/models"
	"github.com/google/uuid"
)

// TestAnalyzeFrame verifies the multipart request shape and response parsing.
func TestAnalyzeFrame(t *testing.T) {
	sessionID := uuid.New()
	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9} // minimal JPEG markers; opaque to the client

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/real-time-analysis" {
			t.Errorf("path = %q, want /api/real-time-analysis", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		if got := r.FormValue("exerciseType"); got != "push-up" {
			t.Errorf("exerciseType = %q, want push-up", got)
		}
		if got := r.FormValue("sessionId"); got != sessionID.String() {
			t.Errorf("sessionId = %q, want %s", got, sessionID)
		}
		f, _, err := r.FormFile("frame")
		if err != nil {
			t.Fatalf("frame file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if len(data) != len(frame) {
			t.Errorf("frame length = %d, want %d", len(data), len(frame))
		}

		json.NewEncoder(w).Encode(models.AnalysisResult{
			Success:  true,
			Count:    7,
			Calories: 3.5,
			Status:   models.StatusActive,
			Feedback: "Good form",
			Landmarks: map[string]models.Landmark{
				"left_elbow": {X: 0.4, Y: 0.5, Visibility: 0.9},
			},
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 0)
	res, err := client.AnalyzeFrame(context.Background(), frame, "push-up", sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Error("success = false, want true")
	}
	if res.Count != 7 {
		t.Errorf("count = %d, want 7", res.Count)
	}
	if res.Calories != 3.5 {
		t.Errorf("calories = %v, want 3.5", res.Calories)
	}
	if res.Status != models.StatusActive {
		t.Errorf("status = %q, want active", res.Status)
	}
	if lm, ok := res.Landmarks["left_elbow"]; !ok || lm.Visibility != 0.9 {
		t.Errorf("landmarks = %v, want left_elbow with visibility 0.9", res.Landmarks)
	}
}

// TestAnalyzeFrameServerError verifies non-2xx responses surface as errors
// carrying the response body.
func TestAnalyzeFrameServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 0)
	_, err := client.AnalyzeFrame(context.Background(), []byte("x"), "squat", uuid.New())
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

// TestAnalyzeFrameMalformedBody verifies an undecodable response body is an
// error, not a zero-valued result.
func TestAnalyzeFrameMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 0)
	_, err := client.AnalyzeFrame(context.Background(), []byte("x"), "squat", uuid.New())
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
}

// TestAnalyzeFrameContextCancelled verifies a cancelled context aborts the
// call promptly.
func TestAnalyzeFrameContextCancelled(t *testing.T) {
	blocked := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer ts.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(ts.URL, 0)
	_, err := client.AnalyzeFrame(ctx, []byte("x"), "squat", uuid.New())
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
