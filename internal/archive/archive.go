// Package archive keeps a sqlite record of completed sessions so finished
// audits stay queryable after their journals are garbage-collected. The
// archive is strictly best-effort: every failure returns an error, which the
// orchestrator logs and downgrades to a warning.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ganaudit/internal/logging"
	"ganaudit/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS completed_sessions (
    id               TEXT PRIMARY KEY,
    completion_reason TEXT NOT NULL,
    total_loops      INTEGER NOT NULL,
    final_score      INTEGER NOT NULL,
    final_verdict    TEXT NOT NULL,
    config_json      TEXT NOT NULL,
    created_at       TIMESTAMP NOT NULL,
    completed_at     TIMESTAMP NOT NULL,
    archived_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_completed_reason ON completed_sessions(completion_reason);
CREATE INDEX IF NOT EXISTS idx_completed_at ON completed_sessions(completed_at);
`

// Record is one archived session summary.
type Record struct {
	ID               string    `json:"id"`
	CompletionReason string    `json:"completionReason"`
	TotalLoops       int       `json:"totalLoops"`
	FinalScore       int       `json:"finalScore"`
	FinalVerdict     string    `json:"finalVerdict"`
	CreatedAt        time.Time `json:"createdAt"`
	CompletedAt      time.Time `json:"completedAt"`
}

// Archive is a mutex-guarded sqlite store of completed sessions.
type Archive struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the archive database at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: init schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.db.Close()
}

// RecordCompleted upserts the session summary. INSERT OR REPLACE keeps the
// operation idempotent across repeated completions.
func (a *Archive) RecordCompleted(state *types.SessionState) error {
	if state == nil || !state.IsComplete {
		return fmt.Errorf("archive: session not complete")
	}

	finalScore := 0
	finalVerdict := ""
	if n := len(state.History); n > 0 {
		finalScore = state.History[n-1].Score
		finalVerdict = string(state.History[n-1].Verdict)
	}
	cfgJSON, err := json.Marshal(state.Config)
	if err != nil {
		return fmt.Errorf("archive: marshal config: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, err = a.db.Exec(
		`INSERT OR REPLACE INTO completed_sessions
		 (id, completion_reason, total_loops, final_score, final_verdict, config_json, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		state.ID, state.CompletionReason, len(state.History), finalScore, finalVerdict,
		string(cfgJSON), state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("archive: upsert %s: %w", state.ID, err)
	}
	logging.Get(logging.CategoryArchive).Info("archived session %s (reason=%s loops=%d score=%d)",
		state.ID, state.CompletionReason, len(state.History), finalScore)
	return nil
}

// List returns archived sessions, newest first, optionally filtered by
// completion reason.
func (a *Archive) List(reason string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	query := `SELECT id, completion_reason, total_loops, final_score, final_verdict, created_at, completed_at
	          FROM completed_sessions`
	args := []interface{}{}
	if reason != "" {
		query += ` WHERE completion_reason = ?`
		args = append(args, reason)
	}
	query += ` ORDER BY completed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.CompletionReason, &r.TotalLoops, &r.FinalScore,
			&r.FinalVerdict, &r.CreatedAt, &r.CompletedAt); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
