package game

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/hive"
	"github.com/hiveboardgame/realtime/internal/rating"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/subscription"
)

func setupHandler(t *testing.T) (*Handler, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", DBName: "file:" + t.Name() + "?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	h := New(s, rating.NewService(s), chatlog.New(), subscription.New())
	return h, s
}

func newTestGame(t *testing.T, s *store.Store, white, black string) *store.Game {
	t.Helper()
	baseMs := int64(300000)
	g := &store.Game{
		ID:              "g1",
		WhiteID:         white,
		BlackID:         black,
		Status:          string(hive.StatusInProgress),
		TimeMode:        "RealTime",
		WhiteTimeLeftMs: &baseMs,
		BlackTimeLeftMs: &baseMs,
		Rated:           true,
	}
	if err := s.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("failed to create test game: %v", err)
	}
	return g
}

func TestHandlerTurn_AdvancesTurnAndNotifiesOpponent(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s, "white", "black")

	notifications, err := h.Turn(context.Background(), "g1", "white", hive.Move{Piece: "wS1", Position: "0,0"})
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if len(notifications) < 2 {
		t.Fatalf("expected at least 2 notifications, got %d", len(notifications))
	}

	g, err := s.GetGame(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if g.Turn != 1 {
		t.Errorf("expected turn 1, got %d", g.Turn)
	}
}

func TestHandlerTurn_RejectsOutOfTurnMove(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s, "white", "black")

	_, err := h.Turn(context.Background(), "g1", "black", hive.Move{Piece: "bS1", Position: "0,0"})
	if err != ErrNotYourTurn {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}
}

func TestHandlerControl_ResignFinishesGameAndClosesRatings(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s, "white", "black")

	if err := s.WithGameForUpdate(context.Background(), "g1", func(tx *gorm.DB, gg *store.Game) error {
		gg.Turn = 4
		return nil
	}); err != nil {
		t.Fatalf("failed to bump turn: %v", err)
	}

	_, err := h.Control(context.Background(), "g1", "white", hive.Control{Kind: hive.ControlResign, Color: hive.White})
	if err != nil {
		t.Fatalf("Control(Resign) failed: %v", err)
	}

	got, err := s.GetGame(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if got.Status != string(hive.StatusFinished) {
		t.Errorf("expected Finished, got %s", got.Status)
	}
	if got.WhiteRatingAtEnd == nil || got.BlackRatingAtEnd == nil {
		t.Error("expected both ratings closed after resignation")
	}
	if *got.WhiteRatingAtEnd >= 1500 {
		t.Errorf("expected resigning player's rating to drop below 1500, got %v", *got.WhiteRatingAtEnd)
	}
}

func TestHandlerControl_AbortOnlyBeforeTurnTwo(t *testing.T) {
	h, s := setupHandler(t)
	newTestGame(t, s, "white", "black")

	if err := s.WithGameForUpdate(context.Background(), "g1", func(tx *gorm.DB, gg *store.Game) error {
		gg.Turn = 3
		return nil
	}); err != nil {
		t.Fatalf("failed to bump turn: %v", err)
	}

	_, err := h.Control(context.Background(), "g1", "white", hive.Control{Kind: hive.ControlAbort, Color: hive.White})
	if err != hive.ErrControlNotAllowed {
		t.Errorf("expected ErrControlNotAllowed, got %v", err)
	}
}

func TestHandlerCheckTime_TimesOutExpiredMover(t *testing.T) {
	h, s := setupHandler(t)
	g := newTestGame(t, s, "white", "black")

	expired := int64(0)
	past := time.Now().Add(-time.Minute)
	if err := s.WithGameForUpdate(context.Background(), g.ID, func(tx *gorm.DB, gg *store.Game) error {
		gg.WhiteTimeLeftMs = &expired
		gg.LastInteraction = &past
		return nil
	}); err != nil {
		t.Fatalf("failed to expire clock: %v", err)
	}

	notifications, err := h.CheckTime(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("CheckTime failed: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}

	got, err := s.GetGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if got.Status != string(hive.StatusFinished) {
		t.Errorf("expected Finished, got %s", got.Status)
	}
	if got.Result == nil || *got.Result != "timeout" {
		t.Errorf("expected timeout result, got %v", got.Result)
	}
}

func TestHandlerStart_BothReadyStartsGame(t *testing.T) {
	h, s := setupHandler(t)
	g := newTestGame(t, s, "white", "black")
	if err := s.WithGameForUpdate(context.Background(), g.ID, func(tx *gorm.DB, gg *store.Game) error {
		gg.Status = string(hive.StatusNotStarted)
		gg.GameStart = "Ready"
		return nil
	}); err != nil {
		t.Fatalf("failed to set up NotStarted game: %v", err)
	}

	if _, err := h.Start(context.Background(), g.ID, "white"); err != nil {
		t.Fatalf("Start (white) failed: %v", err)
	}
	got, err := s.GetGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if got.Status != string(hive.StatusNotStarted) {
		t.Errorf("expected still NotStarted after one Ready vote, got %s", got.Status)
	}

	if _, err := h.Start(context.Background(), g.ID, "black"); err != nil {
		t.Fatalf("Start (black) failed: %v", err)
	}
	got, err = s.GetGame(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if got.Status != string(hive.StatusInProgress) {
		t.Errorf("expected InProgress after both Ready, got %s", got.Status)
	}
}
