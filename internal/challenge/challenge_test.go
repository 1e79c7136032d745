package challenge

import (
	"context"
	"testing"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/store"
)

func setupHandler(t *testing.T) *Handler {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", DBName: "file:" + t.Name() + "?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return New(s)
}

func intPtr(v int) *int { return &v }

func TestCreate_PublicBroadcastsGlobal(t *testing.T) {
	h := setupHandler(t)

	_, notifications, err := h.Create(context.Background(), CreateRequest{
		ChallengerID: "a", ColorChoice: "White", TimeMode: "Untimed", Visibility: "Public",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(notifications) != 1 || notifications[0].Audience.Kind != broadcast.AudienceGlobal {
		t.Fatalf("expected one Global notification, got %+v", notifications)
	}
}

func TestCreate_DirectNotifiesBothParties(t *testing.T) {
	h := setupHandler(t)

	_, notifications, err := h.Create(context.Background(), CreateRequest{
		ChallengerID: "a", OpponentID: strPtr("b"), ColorChoice: "White", TimeMode: "Untimed", Visibility: "Direct",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected 2 User notifications for a Direct challenge, got %d", len(notifications))
	}
	seen := map[string]bool{}
	for _, n := range notifications {
		if n.Audience.Kind != broadcast.AudienceUser {
			t.Fatalf("expected AudienceUser, got %v", n.Audience.Kind)
		}
		seen[n.Audience.UserID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected both challenger and opponent notified, got %+v", seen)
	}
}

func TestCreate_PrivateNotifiesChallengerOnly(t *testing.T) {
	h := setupHandler(t)

	_, notifications, err := h.Create(context.Background(), CreateRequest{
		ChallengerID: "a", ColorChoice: "White", TimeMode: "Untimed", Visibility: "Private",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected exactly 1 notification for a Private challenge, got %d", len(notifications))
	}
	if notifications[0].Audience.Kind != broadcast.AudienceUser || notifications[0].Audience.UserID != "a" {
		t.Fatalf("expected a User(challenger) notification, got %+v", notifications[0].Audience)
	}
}

func TestAccept_RealTimeSeedsClockInMillisecondsNotSeconds(t *testing.T) {
	h := setupHandler(t)

	c, _, err := h.Create(context.Background(), CreateRequest{
		ChallengerID: "a", ColorChoice: "White", TimeMode: "RealTime",
		TimeBase: intPtr(300000), TimeIncrement: intPtr(0), Visibility: "Public",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	res, err := h.Accept(context.Background(), c.ID, "b")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if res.Game.WhiteTimeLeftMs == nil || *res.Game.WhiteTimeLeftMs != 300000 {
		t.Fatalf("expected white_time_left=300000 (time_base is already ms), got %v", res.Game.WhiteTimeLeftMs)
	}
	if res.Game.BlackTimeLeftMs == nil || *res.Game.BlackTimeLeftMs != 300000 {
		t.Fatalf("expected black_time_left=300000, got %v", res.Game.BlackTimeLeftMs)
	}
}

func TestAccept_RejectsAcceptorAboveRatingBand(t *testing.T) {
	h := setupHandler(t)

	// Default rating is 1500 (internal/store.GetRating's cold-start
	// value); band_upper below that rejects the acceptor.
	c, _, err := h.Create(context.Background(), CreateRequest{
		ChallengerID: "a", ColorChoice: "White", TimeMode: "RealTime",
		TimeBase: intPtr(300000), TimeIncrement: intPtr(0), Rated: true, Visibility: "Public",
		BandUpper: intPtr(1400),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = h.Accept(context.Background(), c.ID, "b")
	if err != ErrOutsideRatingBand {
		t.Fatalf("expected ErrOutsideRatingBand, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
