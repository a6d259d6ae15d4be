// Package agent provides the conversation layer: sessions, agent instances,
// multi-agent registry, routing, and cross-agent delegation.
package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kaia-ai/kaia/pkg/domain"
)

// Session is an active conversation. Its history is append-only: messages are
// added, never rewritten.
type Session struct {
	mu        sync.RWMutex
	ID        string           `json:"id"`  // ULID, globally unique
	Key       string           `json:"key"` // caller-provided lookup key
	Msgs      []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSession creates an empty session with a generated ULID. key is the
// caller-scoped lookup key.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		ID:        domain.NewMessageID(),
		Key:       key,
		Msgs:      make([]domain.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message and updates the timestamp (thread-safe).
func (s *Session) AddMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Msgs = append(s.Msgs, msg)
	s.UpdatedAt = time.Now()
}

// Messages returns a copy of the message history (thread-safe).
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.Message, len(s.Msgs))
	copy(cp, s.Msgs)
	return cp
}

// Truncate keeps only the last N messages.
func (s *Session) Truncate(maxMessages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Msgs) <= maxMessages {
		return
	}
	s.Msgs = s.Msgs[len(s.Msgs)-maxMessages:]
}

// Store manages sessions keyed by caller-provided ID with JSON persistence.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	dataDir  string
}

// NewStore creates a session store with a data directory for persistence.
func NewStore(dataDir string) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		dataDir:  dataDir,
	}
}

// validateSessionID checks if a session ID is safe for filesystem use.
// It rejects path separators, parent directory references, and null bytes.
func (st *Store) validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("session ID contains path separators: %q", id)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("session ID contains parent directory reference: %q", id)
	}
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("session ID contains null byte: %q", id)
	}
	if clean := filepath.Clean(id); clean != id {
		return fmt.Errorf("session ID not clean path: %q vs %q", id, clean)
	}
	return nil
}

// GetOrCreate returns an existing session or creates a new one, loading from
// disk when a persisted copy exists.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s
	}

	s := NewSession(id)
	if loaded, err := st.loadFromDisk(id); err == nil {
		s = loaded
	}
	st.sessions[id] = s
	return s
}

// Get returns an existing session or ErrSessionNotFound.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, domain.NewDomainError("Store.Get", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Save persists a session to disk as JSON.
func (st *Store) Save(id string) error {
	if err := st.validateSessionID(id); err != nil {
		return domain.NewDomainError("Store.Save", err, id)
	}

	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		return domain.NewDomainError("Store.Save", domain.ErrSessionNotFound, id)
	}

	if err := os.MkdirAll(st.dataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := filepath.Join(st.dataDir, id+".json")
	return os.WriteFile(path, data, 0600)
}

// Delete removes a session from memory and disk.
func (st *Store) Delete(id string) error {
	if err := st.validateSessionID(id); err != nil {
		return domain.NewDomainError("Store.Delete", err, id)
	}

	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return domain.NewDomainError("Store.Delete", domain.ErrSessionNotFound, id)
	}

	path := filepath.Join(st.dataDir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// List returns all active session IDs.
func (st *Store) List() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ReapStale deletes sessions not updated within maxAge and returns the count
// of reaped sessions. Both in-memory state and on-disk files are removed.
func (st *Store) ReapStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	// Phase 1: identify stale sessions under read lock (no nested locks).
	st.mu.RLock()
	var staleIDs []string
	for id, s := range st.sessions {
		s.mu.RLock()
		stale := s.UpdatedAt.Before(cutoff)
		s.mu.RUnlock()
		if stale {
			staleIDs = append(staleIDs, id)
		}
	}
	st.mu.RUnlock()

	if len(staleIDs) == 0 {
		return 0
	}

	// Phase 2: delete under write lock.
	st.mu.Lock()
	for _, id := range staleIDs {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	// Phase 3: clean up disk files (no lock needed).
	for _, id := range staleIDs {
		if err := st.validateSessionID(id); err != nil {
			continue
		}
		os.Remove(filepath.Join(st.dataDir, id+".json"))
	}
	return len(staleIDs)
}

func (st *Store) loadFromDisk(id string) (*Session, error) {
	if err := st.validateSessionID(id); err != nil {
		return nil, domain.NewDomainError("Store.loadFromDisk", err, id)
	}

	data, err := os.ReadFile(filepath.Join(st.dataDir, id+".json"))
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	// Migrate legacy sessions: if Key is empty, the old ID was the lookup
	// key and a proper ULID needs to be assigned.
	if s.Key == "" {
		s.Key = s.ID
		s.ID = domain.NewMessageID()
	}

	return &s, nil
}
