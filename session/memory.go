package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// callSession is the per-call slot. Its own mutex serializes writers on the
// same call while the map lock is only held for lookup.
type callSession struct {
	mu           sync.Mutex
	turns        []Turn
	lastActivity time.Time
	// removed is set under mu once the slot leaves the map
	removed bool
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	sessions    map[string]*callSession
	mu          sync.RWMutex
	maxHistory  int
	idleTimeout time.Duration
	now         func() time.Time
}

// NewMemoryStore creates an in-process store. maxHistory bounds each call's
// history; idleTimeout of 0 keeps sessions until explicitly cleared.
func NewMemoryStore(maxHistory int, idleTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*callSession),
		maxHistory:  maxHistory,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// slot returns the call's session, creating it on miss.
func (s *MemoryStore) slot(callID string) (*callSession, bool) {
	s.mu.RLock()
	cs, ok := s.sessions[callID]
	s.mu.RUnlock()
	if ok {
		return cs, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.sessions[callID]; ok {
		return cs, false
	}
	cs = &callSession{turns: []Turn{}, lastActivity: s.now()}
	s.sessions[callID] = cs
	return cs, true
}

// lockSlot returns the call's live session with its mutex held. A slot that
// was cleared between lookup and lock is skipped for a fresh one.
func (s *MemoryStore) lockSlot(callID string) (*callSession, bool) {
	for {
		cs, created := s.slot(callID)
		cs.mu.Lock()
		if !cs.removed {
			return cs, created
		}
		cs.mu.Unlock()
	}
}

// drop takes a slot out of the map. Caller holds s.mu.
func (s *MemoryStore) drop(callID string, cs *callSession) {
	cs.mu.Lock()
	cs.removed = true
	cs.mu.Unlock()
	delete(s.sessions, callID)
}

// Get returns a copy of the call's history
func (s *MemoryStore) Get(_ context.Context, callID string) ([]Turn, bool, error) {
	cs, created := s.lockSlot(callID)
	defer cs.mu.Unlock()
	cs.lastActivity = s.now()
	return cloneTurns(cs.turns), created, nil
}

// Append adds turns atomically and trims to the history bound
func (s *MemoryStore) Append(_ context.Context, callID string, turns ...Turn) error {
	cs, _ := s.lockSlot(callID)
	defer cs.mu.Unlock()
	cs.turns = Trim(append(cs.turns, turns...), s.maxHistory)
	cs.lastActivity = s.now()
	return nil
}

// Replace swaps the call's whole history
func (s *MemoryStore) Replace(_ context.Context, callID string, turns []Turn) error {
	cs, _ := s.lockSlot(callID)
	defer cs.mu.Unlock()
	cs.turns = Trim(cloneTurns(turns), s.maxHistory)
	cs.lastActivity = s.now()
	return nil
}

// Clear removes a session; absent ids are ignored
func (s *MemoryStore) Clear(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok := s.sessions[callID]; ok {
		s.drop(callID, cs)
	}
	return nil
}

// Count returns current session count
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// CleanupInactiveSessions removes sessions idle for longer than the timeout.
// It is a no-op when no timeout is configured.
func (s *MemoryStore) CleanupInactiveSessions() int {
	if s.idleTimeout <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, cs := range s.sessions {
		cs.mu.Lock()
		idle := now.Sub(cs.lastActivity)
		cs.mu.Unlock()
		if idle > s.idleTimeout {
			s.drop(id, cs)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (s *MemoryStore) StartCleanupRoutine(ctx context.Context) {
	if s.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanupInactiveSessions(); n > 0 {
				log.Info().Int("removed", n).Msg("🧹 Removed idle call sessions")
			}
		}
	}
}
