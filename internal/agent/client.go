package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/session"
)

// Client persists live sessions to the FormTrack server over HTTP. It backs
// the controller's Store interface so the agent never touches the database
// directly.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

var _ session.Store = (*Client)(nil)

// NewClient creates an HTTP client for the FormTrack server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

type sessionEnvelope struct {
	Session *models.Session `json:"session"`
}

// CreateSession registers a new session with the server and copies the
// assigned ID back into s.
func (c *Client) CreateSession(ctx context.Context, s *models.Session) error {
	body := map[string]any{
		"name":       s.Name,
		"type":       s.Type,
		"exercises":  s.Exercises,
		"start_time": s.StartTime,
		"notes":      s.Notes,
	}

	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", s.UserID, body, http.StatusCreated, &env); err != nil {
		return err
	}
	if env.Session != nil {
		s.ID = env.Session.ID
	}
	return nil
}

// SaveSession pushes the session's current exercises and calories without
// completing it. A stamped end time goes along too, so a journaled session
// flushed later keeps the time it actually ended.
func (c *Client) SaveSession(ctx context.Context, s *models.Session) error {
	body := map[string]any{
		"exercises":       s.Exercises,
		"calories_burned": s.CaloriesBurned,
	}
	if s.EndTime != nil {
		body["end_time"] = s.EndTime
	}
	path := "/api/v1/sessions/" + s.ID.String()
	return c.do(ctx, http.MethodPut, path, s.UserID, body, http.StatusOK, nil)
}

// CompleteSession syncs the final exercises and then finalizes the session
// server-side, which triggers the account stats rollup.
func (c *Client) CompleteSession(ctx context.Context, s *models.Session) error {
	if err := c.SaveSession(ctx, s); err != nil {
		return err
	}
	path := "/api/v1/sessions/" + s.ID.String() + "/complete"
	return c.do(ctx, http.MethodPost, path, s.UserID, nil, http.StatusOK, nil)
}

// do sends one request, retrying up to 3 times with exponential backoff on
// transport errors and 5xx responses.
func (c *Client) do(ctx context.Context, method, path string, userID int, body any, wantStatus int, out any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("X-User-ID", strconv.Itoa(userID))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == wantStatus {
			if out != nil {
				if err := json.Unmarshal(respBody, out); err != nil {
					return fmt.Errorf("decoding response: %w", err)
				}
			}
			return nil
		}

		lastErr = fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, respBody)
		if resp.StatusCode < http.StatusInternalServerError {
			// Client errors will not improve on retry.
			return lastErr
		}
	}

	return fmt.Errorf("after 3 attempts: %w", lastErr)
}
