package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/hiveboardgame/realtime/internal/store"
)

func setupHandler(t *testing.T) (*Handler, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", DBName: "file:" + t.Name() + "?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return New(s), s
}

func newTestGame(t *testing.T, s *store.Store) *store.Game {
	t.Helper()
	g := &store.Game{ID: "g1", WhiteID: "alice", BlackID: "bob", Status: "InProgress", TimeMode: "RealTime"}
	if err := s.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	return g
}

func TestHandlerPropose_RejectsNonPlayer(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s)
	if _, _, err := h.Propose(context.Background(), "g1", "mallory", time.Now().Add(24*time.Hour)); err != ErrNotAPlayer {
		t.Fatalf("expected ErrNotAPlayer, got %v", err)
	}
}

func TestHandlerPropose_NotifiesBothPlayers(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s)
	sch, notifications, err := h.Propose(context.Background(), "g1", "alice", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if sch.OpponentID != "bob" {
		t.Fatalf("expected opponent bob, got %s", sch.OpponentID)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
}

func TestHandlerAccept_RejectsNonOpponent(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s)
	sch, _, err := h.Propose(context.Background(), "g1", "alice", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if _, err := h.Accept(context.Background(), sch.ID, "alice"); err != ErrNotOpponent {
		t.Fatalf("expected ErrNotOpponent, got %v", err)
	}
}

func TestHandlerAccept_UnagreesSiblings(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s)
	first, _, err := h.Propose(context.Background(), "g1", "alice", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Propose(first) failed: %v", err)
	}
	second, _, err := h.Propose(context.Background(), "g1", "bob", time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Propose(second) failed: %v", err)
	}

	if _, err := h.Accept(context.Background(), second.ID, "alice"); err != nil {
		t.Fatalf("Accept(second) failed: %v", err)
	}
	if _, err := h.Accept(context.Background(), first.ID, "bob"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	schedules, err := s.ListSchedulesByGame(context.Background(), "g1")
	if err != nil {
		t.Fatalf("ListSchedulesByGame failed: %v", err)
	}
	agreedCount := 0
	for _, sc := range schedules {
		if sc.Agreed {
			agreedCount++
		}
		if sc.ID == second.ID && sc.Agreed {
			t.Fatalf("sibling schedule should not remain agreed")
		}
	}
	if agreedCount != 1 {
		t.Fatalf("expected exactly 1 agreed schedule, got %d", agreedCount)
	}
}

func TestHandlerCancel_RejectsThirdParty(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s)
	sch, _, err := h.Propose(context.Background(), "g1", "alice", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if _, err := h.Cancel(context.Background(), sch.ID, "mallory"); err != ErrNotYourSchedule {
		t.Fatalf("expected ErrNotYourSchedule, got %v", err)
	}
}

func TestHandlerSweep_MarksNotifiedAndEmitsReminder(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s)
	sch, _, err := h.Propose(context.Background(), "g1", "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if _, err := h.Accept(context.Background(), sch.ID, "bob"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	notifications, err := h.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 reminder notifications, got %d", len(notifications))
	}

	again, err := h.Sweep(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no notifications on re-sweep, got %d", len(again))
	}
}
