// Package analysis is the HTTP client for the external frame analysis
// capability. The controller never inspects frame contents; this client only
// carries encoded frames out and structured results back.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/google/uuid"
)

// Client submits frames to the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given service base URL. The transport
// timeout is the generous per-call upper bound; callers may tighten it
// further with a context deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AnalyzeFrame POSTs one encoded frame with its exercise tag and session id.
// Any transport failure, non-2xx status, or malformed body is returned as an
// error; the pipeline treats all of them as "no new information this tick".
func (c *Client) AnalyzeFrame(ctx context.Context, frame []byte, exerciseType string, sessionID uuid.UUID) (*models.AnalysisResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("analysis: building form: %w", err)
	}
	if _, err := fw.Write(frame); err != nil {
		return nil, fmt.Errorf("analysis: writing frame: %w", err)
	}
	if err := mw.WriteField("exerciseType", exerciseType); err != nil {
		return nil, fmt.Errorf("analysis: writing field: %w", err)
	}
	if err := mw.WriteField("sessionId", sessionID.String()); err != nil {
		return nil, fmt.Errorf("analysis: writing field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("analysis: closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/real-time-analysis", &body)
	if err != nil {
		return nil, fmt.Errorf("analysis: creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analysis: status %d: %s", resp.StatusCode, msg)
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("analysis: decoding result: %w", err)
	}
	return &result, nil
}
