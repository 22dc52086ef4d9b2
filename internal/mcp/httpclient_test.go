package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/storage"
	"github.com/google/uuid"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestListSessions verifies the HTTP client sends filter params and the user
// header, and parses the paginated envelope.
func TestListSessions(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-User-ID"); got != "7" {
				t.Errorf("X-User-ID = %q, want 7", got)
			}
			if got := r.URL.Query().Get("type"); got != "strength" {
				t.Errorf("type = %q, want strength", got)
			}
			if got := r.URL.Query().Get("completed"); got != "true" {
				t.Errorf("completed = %q, want true", got)
			}
			if got := r.URL.Query().Get("page"); got != "2" {
				t.Errorf("page = %q, want 2", got)
			}
			writeTestJSON(t, w, map[string]any{
				"sessions": []models.Session{{Name: "morning push-ups", Type: models.TypeStrength}},
				"total":    21,
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	completed := true
	sessions, total, err := client.ListSessions(context.Background(), 7, storage.SessionFilter{
		Type:      models.TypeStrength,
		Completed: &completed,
		Page:      2,
		Limit:     10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 21 {
		t.Errorf("total = %d, want 21", total)
	}
	if len(sessions) != 1 || sessions[0].Name != "morning push-ups" {
		t.Errorf("sessions = %+v, want one named morning push-ups", sessions)
	}
}

// TestGetSessionClient verifies the single-session envelope is unwrapped.
func TestGetSessionClient(t *testing.T) {
	id := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sessions/" + id.String(): func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, map[string]any{
				"session": models.Session{ID: id, Name: "leg day"},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	sess, err := client.GetSession(context.Background(), id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sess == nil || sess.ID != id {
		t.Fatalf("session = %+v, want id %s", sess, id)
	}
}

// TestGetAccountStatsClient verifies the flat stats struct is parsed.
func TestGetAccountStatsClient(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, models.AccountStats{
				UserID: 1, TotalSessions: 12, TotalMinutes: 340, AverageFormScore: 82.5,
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	stats, err := client.GetAccountStats(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 12 || stats.AverageFormScore != 82.5 {
		t.Errorf("stats = %+v, want 12 sessions avg 82.5", stats)
	}
}

// TestStatsSummaryClient verifies the days param is forwarded.
func TestStatsSummaryClient(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats/summary": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("days"); got != "7" {
				t.Errorf("days = %q, want 7", got)
			}
			writeTestJSON(t, w, storage.SummaryResult{
				TotalSessions: 3,
				Period:        "7 days",
				SessionsByType: map[string]int64{
					"strength": 2,
					"cardio":   1,
				},
			})
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	summary, err := client.StatsSummary(context.Background(), 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalSessions != 3 || summary.Period != "7 days" {
		t.Errorf("summary = %+v, want 3 sessions over 7 days", summary)
	}
	if summary.SessionsByType["strength"] != 2 {
		t.Errorf("sessions_by_type = %v, want strength 2", summary.SessionsByType)
	}
}

// TestClientErrorStatus verifies non-200 responses surface as errors.
func TestClientErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/stats": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	if _, err := client.GetAccountStats(context.Background(), 1); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
