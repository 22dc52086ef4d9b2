package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/formtrack/internal/models"
	"github.com/claude/formtrack/internal/session"
)

// Journal keeps sessions that could not be uploaded in a local SQLite file so
// a later run can retry them. The agent journals a session when the server is
// unreachable at completion time.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at dir/journal.db.
func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_sessions (
		id         TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		created    INTEGER NOT NULL,
		completed  INTEGER NOT NULL,
		queued_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Enqueue stores a session for later upload. created records whether the
// server already knows this session, so Flush can avoid re-creating it.
// Re-enqueueing the same session replaces the previous payload.
func (j *Journal) Enqueue(s *models.Session, created, completed bool) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	_, err = j.db.Exec(
		`INSERT OR REPLACE INTO pending_sessions (id, payload, created, completed) VALUES (?, ?, ?, ?)`,
		s.ID.String(), string(data), created, completed,
	)
	return err
}

// Pending returns the number of journaled sessions.
func (j *Journal) Pending() (int, error) {
	var n int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM pending_sessions`).Scan(&n)
	return n, err
}

// Flush retries every journaled session against the server, removing entries
// that upload successfully. Returns the number flushed.
func (j *Journal) Flush(ctx context.Context, client *Client) (int, error) {
	rows, err := j.db.Query(`SELECT id, payload, created, completed FROM pending_sessions ORDER BY queued_at`)
	if err != nil {
		return 0, fmt.Errorf("reading journal: %w", err)
	}

	type entry struct {
		id        string
		payload   string
		created   bool
		completed bool
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.payload, &e.created, &e.completed); err != nil {
			rows.Close()
			return 0, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	flushed := 0
	for _, e := range entries {
		var sess models.Session
		if err := json.Unmarshal([]byte(e.payload), &sess); err != nil {
			// A corrupt entry would block the queue forever.
			j.remove(e.id)
			continue
		}

		if err := j.upload(ctx, client, &sess, e.created, e.completed); err != nil {
			return flushed, fmt.Errorf("flushing session %s: %w", e.id, err)
		}
		if err := j.remove(e.id); err != nil {
			return flushed, err
		}
		flushed++
	}
	return flushed, nil
}

func (j *Journal) upload(ctx context.Context, client *Client, sess *models.Session, created, completed bool) error {
	if !created {
		if err := client.CreateSession(ctx, sess); err != nil {
			return err
		}
	}
	if !completed {
		return client.SaveSession(ctx, sess)
	}
	return client.CompleteSession(ctx, sess)
}

func (j *Journal) remove(id string) error {
	_, err := j.db.Exec(`DELETE FROM pending_sessions WHERE id = ?`, id)
	return err
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// FallbackStore wraps a Client with a Journal: writes that fail over the
// network are queued locally instead of being lost.
type FallbackStore struct {
	Client  *Client
	Journal *Journal
}

var _ session.Store = (*FallbackStore)(nil)

// CreateSession tries the server first. On failure the session gets a local
// identity so the controller can keep running offline.
func (f *FallbackStore) CreateSession(ctx context.Context, s *models.Session) error {
	if err := f.Client.CreateSession(ctx, s); err != nil {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		return f.Journal.Enqueue(s, false, false)
	}
	return nil
}

// SaveSession tries the server, journaling the snapshot on failure.
func (f *FallbackStore) SaveSession(ctx context.Context, s *models.Session) error {
	if err := f.Client.SaveSession(ctx, s); err != nil {
		return f.Journal.Enqueue(s, f.created(s), false)
	}
	return nil
}

// CompleteSession tries the server, journaling the final state on failure so
// the stats rollup still happens on the next successful flush.
func (f *FallbackStore) CompleteSession(ctx context.Context, s *models.Session) error {
	if err := f.Client.CompleteSession(ctx, s); err != nil {
		return f.Journal.Enqueue(s, f.created(s), true)
	}
	return nil
}

// created reports whether the server already has a record for this session.
// A session journaled at create time keeps its local ID, so a journal entry
// for it means the server never saw it.
func (f *FallbackStore) created(s *models.Session) bool {
	var n int
	err := f.Journal.db.QueryRow(
		`SELECT COUNT(*) FROM pending_sessions WHERE id = ? AND created = 0`,
		s.ID.String(),
	).Scan(&n)
	return err == nil && n == 0
}
