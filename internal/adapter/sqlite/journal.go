package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vaultrag/internal/domain"
	"vaultrag/internal/port"
)

// Journal records conversation turns in SQLite so sessions survive
// eviction from memory and process restarts.
type Journal struct {
	db *sql.DB
}

var _ port.SessionJournal = (*Journal)(nil)

// Open creates or opens a journal database at the given path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging journal: %w", err)
	}
	return newJournal(db)
}

// OpenMemory creates an in-memory journal (useful for testing).
func OpenMemory() (*Journal, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory journal: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	return newJournal(db)
}

func newJournal(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Journal{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS session_turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('user','assistant','system')),
    text TEXT NOT NULL,
    at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, id);
`

func (j *Journal) Record(ctx context.Context, sessionID string, turn domain.Turn) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO session_turns (session_id, role, text, at) VALUES (?, ?, ?, ?)`,
		sessionID, string(turn.Role), turn.Text, turn.At.UnixNano())
	if err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

// Recent returns the newest limit turns of a session, oldest first.
func (j *Journal) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT role, text, at FROM session_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			role string
			text string
			at   int64
		)
		if err := rows.Scan(&role, &text, &at); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, domain.Turn{Role: domain.Role(role), Text: text, At: time.Unix(0, at)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, k := 0, len(turns)-1; i < k; i, k = i+1, k-1 {
		turns[i], turns[k] = turns[k], turns[i]
	}
	return turns, nil
}

func (j *Journal) Purge(ctx context.Context, sessionID string) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("purging session: %w", err)
	}
	return nil
}

// SessionSummary describes one journaled session.
type SessionSummary struct {
	ID         string    `json:"id"`
	Turns      int       `json:"turns"`
	LastActive time.Time `json:"last_active"`
}

// Sessions lists journaled sessions, most recently active first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MAX(at) FROM session_turns GROUP BY session_id ORDER BY MAX(at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s  SessionSummary
			at int64
		)
		if err := rows.Scan(&s.ID, &s.Turns, &at); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.LastActive = time.Unix(0, at)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
