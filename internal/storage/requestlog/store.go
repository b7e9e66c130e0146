// Package requestlog persists one row per generation call so operators can see which
// model and sampling settings produced each reply.
package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
)

const schema = `
CREATE TABLE IF NOT EXISTS generation_requests (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT    NOT NULL,
	model             TEXT    NOT NULL,
	temperature       REAL    NOT NULL,
	top_p             REAL    NOT NULL,
	top_k             INTEGER NOT NULL,
	max_output_tokens INTEGER NOT NULL,
	history_turns     INTEGER NOT NULL,
	prompt_chars      INTEGER NOT NULL,
	reply_chars       INTEGER NOT NULL,
	error             TEXT    NOT NULL DEFAULT '',
	latency_ms        INTEGER NOT NULL,
	created_at        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generation_requests_session ON generation_requests(session_id, id);
`

// Entry is a stored generation call.
type Entry struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"sessionId"`
	Model           string    `json:"model"`
	Temperature     float64   `json:"temperature"`
	TopP            float64   `json:"topP"`
	TopK            int       `json:"topK"`
	MaxOutputTokens int       `json:"maxOutputTokens"`
	HistoryTurns    int       `json:"historyTurns"`
	PromptChars     int       `json:"promptChars"`
	ReplyChars      int       `json:"replyChars"`
	Error           string    `json:"error,omitempty"`
	LatencyMs       int64     `json:"latencyMs"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store is a sqlite-backed request log.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create request log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open request log: %w", err)
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create request log schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record implements conversation.Recorder.
func (s *Store) Record(ctx context.Context, r conversation.Record) error {
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_requests
			(session_id, model, temperature, top_p, top_k, max_output_tokens,
			 history_turns, prompt_chars, reply_chars, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Config.Model, r.Config.Temperature, r.Config.TopP, r.Config.TopK, r.Config.MaxOutputTokens,
		r.HistoryTurns, r.PromptChars, r.ReplyChars, errText, r.Latency.Milliseconds(),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request log entry: %w", err)
	}
	return nil
}

// ListBySession returns a session's entries, oldest first.
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, model, temperature, top_p, top_k, max_output_tokens,
		       history_turns, prompt_chars, reply_chars, error, latency_ms, created_at
		FROM generation_requests
		WHERE session_id = ?
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query request log: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Model, &e.Temperature, &e.TopP, &e.TopK, &e.MaxOutputTokens,
			&e.HistoryTurns, &e.PromptChars, &e.ReplyChars, &e.Error, &e.LatencyMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan request log entry: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
