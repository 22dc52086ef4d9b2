package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the FormTrack REST API. Used
// for remote MCP mode where the binary runs locally (stdio) but data lives on
// the server.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, userID int, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("X-User-ID", strconv.Itoa(userID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("httpclient: %s: status %d: %s", path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListSessions implements DataSource over GET /api/v1/sessions.
func (c *HTTPClient) ListSessions(ctx context.Context, userID int, f storage.SessionFilter) ([]models.Session, int64, error) {
	params := url.Values{}
	if f.Type != "" {
		params.Set("type", string(f.Type))
	}
	if f.Completed != nil {
		params.Set("completed", strconv.FormatBool(*f.Completed))
	}
	if f.Page > 0 {
		params.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}

	var body struct {
		Sessions []models.Session `json:"sessions"`
		Total    int64            `json:"total"`
	}
	if err := c.get(ctx, "/api/v1/sessions", params, userID, &body); err != nil {
		return nil, 0, err
	}
	return body.Sessions, body.Total, nil
}

// GetSession implements DataSource over GET /api/v1/sessions/{id}.
func (c *HTTPClient) GetSession(ctx context.Context, id uuid.UUID, userID int) (*models.Session, error) {
	var body struct {
		Session *models.Session `json:"session"`
	}
	if err := c.get(ctx, "/api/v1/sessions/"+id.String(), nil, userID, &body); err != nil {
		return nil, err
	}
	return body.Session, nil
}

// GetAccountStats implements DataSource over GET /api/v1/stats.
func (c *HTTPClient) GetAccountStats(ctx context.Context, userID int) (*models.AccountStats, error) {
	var stats models.AccountStats
	if err := c.get(ctx, "/api/v1/stats", nil, userID, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// StatsSummary implements DataSource over GET /api/v1/stats/summary.
func (c *HTTPClient) StatsSummary(ctx context.Context, userID, days int) (*storage.SummaryResult, error) {
	params := url.Values{"days": {strconv.Itoa(days)}}
	var summary storage.SummaryResult
	if err := c.get(ctx, "/api/v1/stats/summary", params, userID, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
