package mcp

import (
	"context"
	"strconv"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/storage"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// listFilter builds a SessionFilter for tools and resources.
func listFilter(completed *bool, page, limit int) storage.SessionFilter {
	return storage.SessionFilter{Completed: completed, Page: page, Limit: limit}
}

// --- Tool definitions ---

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("Query workout sessions newest-first. Returns session summaries including exercises, sets, form scores, duration, and calories."),
	mcp.WithString("type", mcp.Description("Filter by session type"), mcp.Enum("strength", "cardio", "flexibility", "mixed", "custom")),
	mcp.WithString("completed", mcp.Description("Filter by completion: 'true' or 'false'. Defaults to all."), mcp.Enum("true", "false")),
	mcp.WithString("page", mcp.Description("Page number (1-based). Defaults to 1.")),
	mcp.WithString("limit", mcp.Description("Page size. Defaults to 10.")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Retrieve one workout session by ID with its full exercise and set breakdown."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolGetAccountStats = mcp.NewTool("get_account_stats",
	mcp.WithDescription("Account-level rollup over all completed sessions: total sessions, cumulative minutes, running average form score, streak days."),
)

var toolGetStatsSummary = mcp.NewTool("get_stats_summary",
	mcp.WithDescription("Windowed summary over a trailing day count: completed session count, total duration, mean form score, per-type counts."),
	mcp.WithString("days", mcp.Description("Trailing window in days. Defaults to 30.")),
)

// --- Tool handlers ---

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := storage.SessionFilter{
		Page:  atoiDefault(req.GetString("page", ""), 1),
		Limit: atoiDefault(req.GetString("limit", ""), 10),
	}
	if t := req.GetString("type", ""); t != "" {
		st := models.SessionType(t)
		if !models.ValidSessionType(st) {
			return mcp.NewToolResultError("invalid session type: " + t), nil
		}
		filter.Type = st
	}
	if c := req.GetString("completed", ""); c != "" {
		completed := c == "true"
		filter.Completed = &completed
	}

	uid := UserIDFromContext(ctx)
	sessions, total, err := h.ds.ListSessions(ctx, uid, filter)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"sessions": sessions,
		"total":    total,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid session ID: " + idStr), nil
	}

	uid := UserIDFromContext(ctx)
	sess, err := h.ds.GetSession(ctx, id, uid)
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sess)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getAccountStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	stats, err := h.ds.GetAccountStats(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_account_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStatsSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := atoiDefault(req.GetString("days", ""), 30)

	uid := UserIDFromContext(ctx)
	summary, err := h.ds.StatsSummary(ctx, uid, days)
	if err != nil {
		h.log.Error("mcp get_stats_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
