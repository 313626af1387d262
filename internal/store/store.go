// Package store provides the durable session store: one JSON journal per
// session under the state directory, written atomically (temp file + rename).
// The store owns the canonical SessionState instances; readers always get
// deep copies. Writes for a single session are serialized.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ganaudit/internal/logging"
	"ganaudit/internal/types"
)

// SessionStore maps sessionId -> SessionState backed by journal files.
type SessionStore struct {
	dir          string
	writeRetries int

	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	now func() time.Time
}

// sessionEntry pairs a session with its write lock. The per-session mutex
// serializes journal writes so history grows by exactly one entry per audit.
type sessionEntry struct {
	mu    sync.Mutex
	state *types.SessionState
	// dirty marks in-memory state that failed to persist; the next successful
	// write flushes it.
	dirty bool
}

// New creates a session store rooted at dir (created on demand).
func New(dir string, writeRetries int) (*SessionStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session store: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &SessionStore{
		dir:          dir,
		writeRetries: writeRetries,
		sessions:     make(map[string]*sessionEntry),
		now:          time.Now,
	}, nil
}

// Dir returns the journal directory.
func (s *SessionStore) Dir() string { return s.dir }

// GetOrCreate loads the session from memory or disk, creating it with the
// given defaults when absent. A corrupt or unreadable journal falls back to
// a fresh session with a logged warning (the audit proceeds with degraded
// history).
func (s *SessionStore) GetOrCreate(id string, defaults types.SessionConfig) (*types.SessionState, error) {
	if id == "" {
		return nil, fmt.Errorf("session store: %w: empty id", types.ErrInvalidThought)
	}

	ent := s.entry(id)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.state != nil {
		return ent.state.Clone(), nil
	}

	state, err := s.load(id)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategorySession).Warn("journal for %s unreadable (%v), starting fresh", id, err)
		}
		now := s.now()
		state = &types.SessionState{
			ID:        id,
			Config:    defaults,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if perr := s.persist(state); perr != nil {
			logging.Get(logging.CategorySession).Warn("initial persist for %s failed: %v", id, perr)
			ent.dirty = true
		}
		logging.Audit(logging.AuditSessionCreated, id, "", nil)
	}
	ent.state = state
	return state.Clone(), nil
}

// Get returns a snapshot of the session, or ErrSessionNotFound.
func (s *SessionStore) Get(id string) (*types.SessionState, error) {
	ent := s.entry(id)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.state == nil {
		state, err := s.load(id)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, types.ErrSessionNotFound
			}
			return nil, fmt.Errorf("session store: load %s: %w", id, err)
		}
		ent.state = state
	}
	return ent.state.Clone(), nil
}

// UpdateConfig replaces the session config and persists.
// Returns the updated snapshot; a persistence failure is returned alongside
// the advanced in-memory state.
func (s *SessionStore) UpdateConfig(id string, cfg types.SessionConfig) (*types.SessionState, error) {
	ent := s.entry(id)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.state == nil {
		return nil, types.ErrSessionNotFound
	}
	ent.state.Config = cfg
	ent.state.UpdatedAt = s.now()
	err := s.persistEntry(ent)
	return ent.state.Clone(), err
}

// AppendIteration journals one completed iteration. The in-memory state
// always advances; a non-nil error means persistence is degraded and the
// caller should attach a PersistenceDegraded warning to the review.
func (s *SessionStore) AppendIteration(id string, rec types.IterationRecord) (*types.SessionState, error) {
	timer := logging.StartTimer(logging.CategorySession, "AppendIteration")
	defer timer.Stop()

	ent := s.entry(id)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.state == nil {
		return nil, types.ErrSessionNotFound
	}

	ent.state.History = append(ent.state.History, rec)
	ent.state.CurrentLoop = len(ent.state.History)
	ent.state.UpdatedAt = s.now()

	err := s.persistEntry(ent)
	logging.Audit(logging.AuditIterationSaved, id, "", map[string]interface{}{
		"thought": rec.ThoughtNumber,
		"score":   rec.Score,
		"loop":    ent.state.CurrentLoop,
	})
	return ent.state.Clone(), err
}

// MarkComplete flags the session complete. Idempotent: completing an already
// complete session keeps the original reason.
func (s *SessionStore) MarkComplete(id, reason string) (*types.SessionState, error) {
	ent := s.entry(id)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.state == nil {
		return nil, types.ErrSessionNotFound
	}
	if ent.state.IsComplete {
		return ent.state.Clone(), nil
	}
	ent.state.IsComplete = true
	ent.state.CompletionReason = reason
	ent.state.UpdatedAt = s.now()

	err := s.persistEntry(ent)
	logging.Audit(logging.AuditSessionComplete, id, reason, nil)
	return ent.state.Clone(), err
}

// GCOlderThan removes journals not updated within age. Fails soft: an
// unreadable or undeletable file logs a warning and is skipped. In-memory
// copies of collected sessions are dropped.
func (s *SessionStore) GCOlderThan(age time.Duration) (removed int) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("gc: cannot read %s: %v", s.dir, err)
		return 0
	}
	cutoff := s.now().Add(-age)

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		id := strings.TrimSuffix(de.Name(), ".json")

		ent := s.entry(id)
		ent.mu.Lock()
		if err := os.Remove(filepath.Join(s.dir, de.Name())); err != nil {
			logging.Get(logging.CategorySession).Warn("gc: remove %s: %v", de.Name(), err)
			ent.mu.Unlock()
			continue
		}
		ent.state = nil
		ent.mu.Unlock()

		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()

		removed++
		logging.Audit(logging.AuditSessionGC, id, "", nil)
	}
	if removed > 0 {
		logging.Session("gc removed %d session journals older than %v", removed, age)
	}
	return removed
}

// List returns the ids of all sessions present on disk.
func (s *SessionStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	var ids []string
	for _, de := range entries {
		if !de.IsDir() && strings.HasSuffix(de.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(de.Name(), ".json"))
		}
	}
	return ids, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *SessionStore) entry(id string) *sessionEntry {
	s.mu.RLock()
	ent, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return ent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.sessions[id]; ok {
		return ent
	}
	ent = &sessionEntry{}
	s.sessions[id] = ent
	return ent
}

func (s *SessionStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *SessionStore) load(id string) (*types.SessionState, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}
	var state types.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt journal: %w", err)
	}
	return &state, nil
}

// persistEntry writes the entry's state with retry, tracking dirtiness so a
// later successful write flushes earlier failures.
func (s *SessionStore) persistEntry(ent *sessionEntry) error {
	if err := s.persist(ent.state); err != nil {
		ent.dirty = true
		logging.Get(logging.CategorySession).Error("persist %s failed after retries: %v", ent.state.ID, err)
		return fmt.Errorf("%s: %w", types.WarnPersistenceDegraded, err)
	}
	ent.dirty = false
	return nil
}

// persist writes the journal atomically: marshal, write temp file in the same
// directory, rename over the target. Readers see either the old or the new
// state. Retries with exponential backoff up to writeRetries additional
// attempts.
func (s *SessionStore) persist(state *types.SessionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	op := func() error {
		tmp, err := os.CreateTemp(s.dir, state.ID+".*.tmp")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return err
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return err
		}
		if err := os.Rename(tmpName, s.path(state.ID)); err != nil {
			os.Remove(tmpName)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	return backoff.Retry(op, backoff.WithMaxRetries(bo, uint64(s.writeRetries)))
}
