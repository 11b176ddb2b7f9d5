package transcript

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/junyaoz/solace/backend/internal/model/chat"
)

// Store keeps per-session turn history in memory for the process lifetime.
// It synchronizes map access internally; ordering of calls for one session is
// the orchestrator's responsibility.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*record
	now      func() time.Time
}

type record struct {
	meta  chat.Session
	turns []chat.Turn
	// nextSeq keeps growing across trims so surviving turns never renumber.
	nextSeq int
}

// NewStore bootstraps an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*record),
		now:      time.Now,
	}
}

// Append adds a turn to the session, creating the session on first use, and
// returns the stamped turn.
func (s *Store) Append(sessionID string, role chat.Role, content string) chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensure(sessionID)
	turn := chat.Turn{
		Role:      role,
		Content:   content,
		Seq:       rec.nextSeq,
		CreatedAt: s.now(),
	}
	rec.nextSeq++
	rec.turns = append(rec.turns, turn)
	rec.meta.LastActive = s.now()
	return turn
}

// History returns a copy of the ordered turn sequence. Unknown sessions yield
// an empty sequence, never an error.
func (s *Store) History(sessionID string) []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	rec.meta.LastActive = s.now()

	out := make([]chat.Turn, len(rec.turns))
	copy(out, rec.turns)
	return out
}

// Session reports the session metadata, if the session exists.
func (s *Store) Session(sessionID string) (chat.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, false
	}
	rec.meta.LastActive = s.now()
	return rec.meta, true
}

// Trim drops the oldest non-system turns beyond maxTurns, preserving the
// leading system turn. It returns how many turns were dropped.
func (s *Store) Trim(sessionID string, maxTurns int) int {
	if maxTurns < 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return 0
	}
	rec.meta.LastActive = s.now()

	var system []chat.Turn
	rest := rec.turns
	if len(rest) > 0 && rest[0].Role == chat.RoleSystem {
		system = rest[:1]
		rest = rest[1:]
	}
	if len(rest) <= maxTurns {
		return 0
	}

	dropped := len(rest) - maxTurns
	kept := make([]chat.Turn, 0, len(system)+maxTurns)
	kept = append(kept, system...)
	kept = append(kept, rest[dropped:]...)
	rec.turns = kept
	return dropped
}

// Sweep evicts sessions idle for longer than maxIdle and returns the count.
func (s *Store) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	evicted := 0
	for id, rec := range s.sessions {
		if rec.meta.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor sweeps idle sessions on a fixed interval until ctx is done.
// A non-positive maxIdle disables eviction.
func (s *Store) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if maxIdle <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(maxIdle); n > 0 {
					log.Printf("[transcript] evicted %d idle session(s)", n)
				}
			}
		}
	}()
}

// Len reports how many turns the session currently holds.
func (s *Store) Len(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(rec.turns)
}

func (s *Store) ensure(sessionID string) *record {
	rec, ok := s.sessions[sessionID]
	if !ok {
		now := s.now()
		rec = &record{meta: chat.Session{ID: sessionID, CreatedAt: now, LastActive: now}}
		s.sessions[sessionID] = rec
	}
	return rec
}
