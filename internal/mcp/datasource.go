package mcp

import (
	"context"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via the REST API) satisfy this interface.
type DataSource interface {
	ListSessions(ctx context.Context, userID int, f storage.SessionFilter) ([]models.Session, int64, error)
	GetSession(ctx context.Context, id uuid.UUID, userID int) (*models.Session, error)
	GetAccountStats(ctx context.Context, userID int) (*models.AccountStats, error)
	StatsSummary(ctx context.Context, userID, days int) (*storage.SummaryResult, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
