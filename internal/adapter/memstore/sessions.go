package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
	"vaultrag/internal/port"
)

// SessionStore keeps conversation history in memory. Each session holds at
// most maxTurns turns in a ring buffer and has its own lock, so appends to
// one session never wait on another. The map lock is only taken to create,
// close or sweep sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxTurns int
	ttl      time.Duration
	journal  port.SessionJournal
	now      func() time.Time
}

type session struct {
	mu         sync.Mutex
	turns      *ring
	loaded     bool
	closed     bool // set by Close; a closed session is never written again
	lastActive atomic.Int64 // unix nanoseconds
}

var _ port.SessionMemory = (*SessionStore)(nil)

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithJournal records every turn and reloads history for sessions that are
// not in memory.
func WithJournal(j port.SessionJournal) Option {
	return func(s *SessionStore) { s.journal = j }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a store. ttl <= 0 disables expiry.
func NewSessionStore(maxTurns int, ttl time.Duration, opts ...Option) *SessionStore {
	if maxTurns < 1 {
		maxTurns = 1
	}
	s := &SessionStore{
		sessions: make(map[string]*session),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup returns the session, creating an empty one on a miss.
func (s *SessionStore) lookup(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{turns: newRing(s.maxTurns)}
	sess.lastActive.Store(s.now().UnixNano())
	s.sessions[id] = sess
	return sess
}

// acquire returns the live session for id with its lock held. A session
// closed while the caller waited for its lock is replaced by a new one.
func (s *SessionStore) acquire(id string) *session {
	for {
		sess := s.lookup(id)
		sess.mu.Lock()
		if !sess.closed {
			return sess
		}
		sess.mu.Unlock()
	}
}

// ensureLoaded pulls recent turns from the journal once. Caller holds sess.mu.
func (s *SessionStore) ensureLoaded(id string, sess *session) {
	if sess.loaded {
		return
	}
	sess.loaded = true
	if s.journal == nil {
		return
	}
	turns, err := s.journal.Recent(context.Background(), id, s.maxTurns)
	if err != nil {
		logger.Warn("session %s: journal reload failed: %v", id, err)
		return
	}
	for _, t := range turns {
		sess.turns.push(t)
	}
}

// Append adds a turn, evicting the oldest when the session is full.
func (s *SessionStore) Append(id string, role domain.Role, text string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidConfig, role)
	}
	sess := s.acquire(id)
	defer sess.mu.Unlock()
	s.ensureLoaded(id, sess)

	now := s.now()
	turn := domain.Turn{Role: role, Text: text, At: now}
	sess.turns.push(turn)
	sess.lastActive.Store(now.UnixNano())

	if s.journal != nil {
		if err := s.journal.Record(context.Background(), id, turn); err != nil {
			return fmt.Errorf("journal session %s: %w", id, err)
		}
	}
	return nil
}

// Get returns the session's turns oldest first.
func (s *SessionStore) Get(id string) []domain.Turn {
	sess := s.acquire(id)
	defer sess.mu.Unlock()
	s.ensureLoaded(id, sess)
	sess.lastActive.Store(s.now().UnixNano())
	return sess.turns.items()
}

// EvictIfOver drops the oldest turns until at most maxTurns remain.
func (s *SessionStore) EvictIfOver(id string, maxTurns int) {
	sess := s.acquire(id)
	defer sess.mu.Unlock()
	s.ensureLoaded(id, sess)
	sess.turns.trim(maxTurns)
}

// Close forgets the session and purges its journal. The session stays
// locked until the purge is done, so a concurrent Append either lands
// before Close or in a fresh session after it.
func (s *SessionStore) Close(id string) error {
	sess := s.lookup(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var err error
	if s.journal != nil {
		if perr := s.journal.Purge(context.Background(), id); perr != nil {
			err = fmt.Errorf("purge session %s: %w", id, perr)
		}
	}

	sess.closed = true
	s.mu.Lock()
	if s.sessions[id] == sess {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	return err
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed. Journaled history stays available for reload.
func (s *SessionStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		// A session whose lock is held is in use and survives this sweep.
		if sess.lastActive.Load() < cutoff && sess.mu.TryLock() {
			sess.closed = true
			delete(s.sessions, id)
			sess.mu.Unlock()
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				logger.Debug("expired %d idle sessions", n)
			}
		}
	}
}

// Len returns the number of sessions held in memory.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
