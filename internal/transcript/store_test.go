package transcript

import (
	"testing"
	"time"

	"github.com/junyaoz/solace/backend/internal/model/chat"
)

func TestAppendCreatesSessionAndOrdersTurns(t *testing.T) {
	s := NewStore()

	s.Append("s1", chat.RoleSystem, "persona")
	s.Append("s1", chat.RoleUser, "hello")
	s.Append("s1", chat.RoleAssistant, "hi there")

	turns := s.History("s1")
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Seq != i {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
	}
	if turns[0].Role != chat.RoleSystem || turns[1].Role != chat.RoleUser || turns[2].Role != chat.RoleAssistant {
		t.Fatalf("unexpected role ordering: %v %v %v", turns[0].Role, turns[1].Role, turns[2].Role)
	}
}

func TestHistoryUnknownSessionIsEmptyNotError(t *testing.T) {
	s := NewStore()
	if turns := s.History("missing"); len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}
	if _, ok := s.Session("missing"); ok {
		t.Fatal("History must not create sessions")
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append("s1", chat.RoleUser, "original")

	turns := s.History("s1")
	turns[0].Content = "mutated"

	if got := s.History("s1")[0].Content; got != "original" {
		t.Fatalf("stored turn was mutated: %q", got)
	}
}

func TestTrimPreservesSystemTurnAndNewest(t *testing.T) {
	s := NewStore()
	s.Append("s1", chat.RoleSystem, "persona")
	s.Append("s1", chat.RoleUser, "u1")
	s.Append("s1", chat.RoleAssistant, "a1")
	s.Append("s1", chat.RoleUser, "u2")
	s.Append("s1", chat.RoleAssistant, "a2")

	dropped := s.Trim("s1", 2)
	if dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}

	turns := s.History("s1")
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns after trim, got %d", len(turns))
	}
	if turns[0].Role != chat.RoleSystem {
		t.Fatalf("leading system turn lost, got %v", turns[0].Role)
	}
	if turns[1].Content != "u2" || turns[2].Content != "a2" {
		t.Fatalf("expected newest turns kept, got %q %q", turns[1].Content, turns[2].Content)
	}
	// Seq values survive trimming unchanged.
	if turns[1].Seq != 3 || turns[2].Seq != 4 {
		t.Fatalf("seq renumbered after trim: %d %d", turns[1].Seq, turns[2].Seq)
	}
}

func TestTrimWithinBoundIsNoop(t *testing.T) {
	s := NewStore()
	s.Append("s1", chat.RoleSystem, "persona")
	s.Append("s1", chat.RoleUser, "u1")

	if dropped := s.Trim("s1", 10); dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	if n := s.Len("s1"); n != 2 {
		t.Fatalf("expected 2 turns, got %d", n)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	s := NewStore()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.Append("stale", chat.RoleUser, "old")

	clock = clock.Add(time.Hour)
	s.Append("fresh", chat.RoleUser, "new")

	if evicted := s.Sweep(30 * time.Minute); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := s.Session("stale"); ok {
		t.Fatal("stale session survived sweep")
	}
	if _, ok := s.Session("fresh"); !ok {
		t.Fatal("fresh session was evicted")
	}
}

func TestAccessRefreshesLastActive(t *testing.T) {
	s := NewStore()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.Append("s1", chat.RoleUser, "hello")

	clock = clock.Add(time.Hour)
	s.History("s1")

	if evicted := s.Sweep(30 * time.Minute); evicted != 0 {
		t.Fatalf("recently read session evicted: %d", evicted)
	}
}
