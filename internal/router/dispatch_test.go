package router

import (
	"context"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/challenge"
	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/game"
	"github.com/hiveboardgame/realtime/internal/rating"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/subscription"
	"github.com/hiveboardgame/realtime/internal/ws"
)

func setupRouter(t *testing.T) (*Router, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", DBName: "file:" + t.Name() + "?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	subs := subscription.New()
	return &Router{
		Games:      game.New(s, rating.NewService(s), chatlog.New(), subs),
		Challenges: challenge.New(s),
		Subs:       subs,
		Fabric:     broadcast.New(subs),
	}, s
}

// authedConn returns a Connection with no live transport (Dispatch
// never touches the underlying websocket for the paths these tests
// exercise) authenticated as userID.
func authedConn(userID string) *ws.Connection {
	c := ws.New(nil)
	c.Authenticate(userID, userID, false, false)
	return c
}

func decodeServerMessage(t *testing.T, raw []byte) ServerMessage {
	t.Helper()
	var msg ServerMessage
	if err := msgpack.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("failed to decode ServerMessage: %v", err)
	}
	return msg
}

func decodeExternalServerError(t *testing.T, raw []byte) ExternalServerError {
	t.Helper()
	msg := decodeServerMessage(t, raw)
	if msg.Kind != KindError {
		t.Fatalf("expected Kind=%q, got %q", KindError, msg.Kind)
	}
	payload, ok := msg.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("expected Payload to decode as a map, got %T", msg.Payload)
	}
	var out ExternalServerError
	if reason, ok := payload["reason"].(string); ok {
		out.Reason = reason
	}
	switch code := payload["status_code"].(type) {
	case int64:
		out.StatusCode = int(code)
	case uint64:
		out.StatusCode = int(code)
	case int8:
		out.StatusCode = int(code)
	case int:
		out.StatusCode = code
	}
	return out
}

func TestDispatch_UnauthenticatedGameTurnReturns401(t *testing.T) {
	r, _ := setupRouter(t)
	conn := ws.New(nil) // anonymous, never authenticated

	r.handleGame(conn, "", false, &GameRequest{ID: "g1", Action: "Turn", Piece: "wS1", Position: "0,0"})

	raw, ok := conn.Pending()
	if !ok {
		t.Fatalf("expected an error reply")
	}
	got := decodeExternalServerError(t, raw)
	if got.StatusCode != 401 {
		t.Errorf("expected status_code 401 for an unauthenticated Turn, got %d", got.StatusCode)
	}
}

func TestDispatch_UnknownGameActionReturns501(t *testing.T) {
	r, _ := setupRouter(t)
	conn := authedConn("alice")

	r.handleGame(conn, "alice", true, &GameRequest{ID: "g1", Action: "Nonsense"})

	raw, ok := conn.Pending()
	if !ok {
		t.Fatalf("expected an error reply")
	}
	got := decodeExternalServerError(t, raw)
	if got.StatusCode != 501 {
		t.Errorf("expected status_code 501 for an unknown game action, got %d", got.StatusCode)
	}
}

// TestDispatch_AcceptRealTimeChallengeSeedsMillisecondClock exercises
// S1's full Create -> Accept path through the router the way a real
// client drives it, guarding against the wire value being
// misinterpreted as seconds.
func TestDispatch_AcceptRealTimeChallengeSeedsMillisecondClock(t *testing.T) {
	r, s := setupRouter(t)
	a := authedConn("a")

	base := 300000
	inc := 0
	r.handleChallenge(a, "a", &ChallengeRequest{
		Action: "Create", ColorChoice: "White", TimeMode: "RealTime",
		TimeBase: &base, TimeIncrement: &inc, Visibility: "Public",
	})

	challenges, err := s.ListPublicChallenges(context.Background())
	if err != nil || len(challenges) != 1 {
		t.Fatalf("expected exactly one public challenge, got %v (err %v)", challenges, err)
	}

	b := authedConn("b")
	r.handleChallenge(b, "b", &ChallengeRequest{Action: "Accept", ID: challenges[0].ID})

	games, err := s.ListPublicChallenges(context.Background())
	if err != nil {
		t.Fatalf("failed to list challenges post-accept: %v", err)
	}
	if len(games) != 0 {
		t.Fatalf("expected the accepted challenge to be removed, got %d remaining", len(games))
	}

	var g store.Game
	if err := s.DB().Where("(white_id = ? AND black_id = ?) OR (white_id = ? AND black_id = ?)", "a", "b", "b", "a").First(&g).Error; err != nil {
		t.Fatalf("expected a game between a and b: %v", err)
	}
	if g.WhiteTimeLeftMs == nil || *g.WhiteTimeLeftMs != 300000 || g.BlackTimeLeftMs == nil || *g.BlackTimeLeftMs != 300000 {
		t.Fatalf("expected both clocks seeded at 300000 ms, got white=%v black=%v", g.WhiteTimeLeftMs, g.BlackTimeLeftMs)
	}
}

func TestDispatch_DuplicateTakebackAcceptSurfacesGcAlreadyPresent(t *testing.T) {
	r, s := setupRouter(t)

	baseMs := int64(300000)
	g := &store.Game{
		ID: "g1", WhiteID: "white", BlackID: "black",
		Status: "InProgress", Turn: 2, TimeMode: "RealTime",
		WhiteTimeLeftMs: &baseMs, BlackTimeLeftMs: &baseMs,
	}
	if err := s.CreateGame(context.Background(), g); err != nil {
		t.Fatalf("failed to seed game: %v", err)
	}

	white := authedConn("white")
	black := authedConn("black")

	r.handleGame(white, "white", true, &GameRequest{ID: "g1", Action: "Control", Control: "TakebackRequest"})
	if _, ok := white.Pending(); ok {
		t.Fatalf("did not expect an error reply for a valid TakebackRequest")
	}

	r.handleGame(black, "black", true, &GameRequest{ID: "g1", Action: "Control", Control: "TakebackAccept"})
	if _, ok := black.Pending(); ok {
		t.Fatalf("did not expect an error reply for the first TakebackAccept")
	}

	// A second TakebackAccept from black must fail distinctly, not with
	// the generic "no matching offer" error.
	r.handleGame(black, "black", true, &GameRequest{ID: "g1", Action: "Control", Control: "TakebackAccept"})
	raw, ok := black.Pending()
	if !ok {
		t.Fatalf("expected an error reply for the duplicate TakebackAccept")
	}
	got := decodeExternalServerError(t, raw)
	if got.Reason != "takeback already accepted" {
		t.Errorf("expected the GcAlreadyPresent reason, got %q", got.Reason)
	}
}
