package tournament

import (
	"context"
	"testing"

	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/game"
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
	gh := game.New(s, rating.NewService(s), chatlog.New(), subscription.New())
	return New(s, gh), s
}

func TestHandlerCreate_SetsCreatorAsOrganizer(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Spring Open", CreatorID: "alice", Seats: 4, MinSeats: 2,
		Rounds: 3, TimeMode: "RealTime", Scoring: "Match",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	organizers, err := tr.Organizers()
	if err != nil {
		t.Fatalf("Organizers failed: %v", err)
	}
	if len(organizers) != 1 || organizers[0] != "alice" {
		t.Fatalf("expected [alice] as organizer, got %v", organizers)
	}
	if tr.Status != "NotStarted" {
		t.Fatalf("expected NotStarted, got %s", tr.Status)
	}
}

func TestHandlerCreate_RejectsInvalidScoringMode(t *testing.T) {
	h, _ := setupHandler(t)
	_, err := h.Create(context.Background(), CreateRequest{
		Name: "Bad", CreatorID: "alice", Seats: 4, MinSeats: 2, Scoring: "Elimination",
	})
	if err != ErrInvalidScoringMode {
		t.Fatalf("expected ErrInvalidScoringMode, got %v", err)
	}
}

func TestHandlerJoin_FillsSeatsThenRejects(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 2, MinSeats: 2, Scoring: "Game",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("Join(bob) failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "carol"); err != ErrTournamentFull {
		t.Fatalf("expected ErrTournamentFull, got %v", err)
	}
}

func TestHandlerJoin_RejectsDuplicateJoin(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 4, MinSeats: 2, Scoring: "Game",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("Join(bob) failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != ErrAlreadyJoined {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
}

func TestHandlerStart_RejectsBelowMinSeats(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 4, MinSeats: 3, Scoring: "Game", TimeMode: "RealTime",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("Join(bob) failed: %v", err)
	}
	if _, err := h.Start(context.Background(), tr.ID, "alice"); err != ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
}

func TestHandlerStart_RejectsNonOrganizer(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 2, MinSeats: 2, Scoring: "Game", TimeMode: "RealTime",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("Join(bob) failed: %v", err)
	}
	if _, err := h.Start(context.Background(), tr.ID, "bob"); err != ErrNotOrganizer {
		t.Fatalf("expected ErrNotOrganizer, got %v", err)
	}
}

func TestHandlerStart_CreatesFirstRoundGamesAndMarksInProgress(t *testing.T) {
	h, s := setupHandler(t)
	base := 300
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Quad", CreatorID: "alice", Seats: 4, MinSeats: 4,
		Scoring: "Game", TimeMode: "RealTime", TimeBase: &base,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, p := range []string{"alice", "bob", "carol", "dave"} {
		if p == "alice" {
			continue
		}
		if _, err := h.Join(context.Background(), tr.ID, p); err != nil {
			t.Fatalf("Join(%s) failed: %v", p, err)
		}
	}
	notifications, err := h.Start(context.Background(), tr.ID, "alice")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(notifications) == 0 {
		t.Fatalf("expected at least one notification")
	}

	updated, err := h.Get(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.Status != "InProgress" {
		t.Fatalf("expected InProgress, got %s", updated.Status)
	}
	games, err := updated.Games()
	if err != nil {
		t.Fatalf("Games failed: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 first-round games for 4 players, got %d", len(games))
	}

	g, err := s.GetGame(context.Background(), games[0])
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if g.TournamentID == nil || *g.TournamentID != tr.ID {
		t.Fatalf("expected game to reference tournament %s", tr.ID)
	}
}

func TestHandlerKick_RemovesPlayerBeforeStart(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 4, MinSeats: 2, Scoring: "Game",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := h.Kick(context.Background(), tr.ID, "alice", "bob"); err != nil {
		t.Fatalf("Kick failed: %v", err)
	}
	updated, err := h.Get(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	players, err := updated.Players()
	if err != nil {
		t.Fatalf("Players failed: %v", err)
	}
	if len(players) != 0 {
		t.Fatalf("expected no players after kick, got %v", players)
	}
}

func TestHandlerInvitation_AcceptMovesInviteeIntoPlayers(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 4, MinSeats: 2, Scoring: "Game",
		Invitees: []string{"bob"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.InvitationAccept(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("InvitationAccept failed: %v", err)
	}
	updated, err := h.Get(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	players, err := updated.Players()
	if err != nil {
		t.Fatalf("Players failed: %v", err)
	}
	if len(players) != 1 || players[0] != "bob" {
		t.Fatalf("expected [bob] as player, got %v", players)
	}
	invitees, err := updated.Invitees()
	if err != nil {
		t.Fatalf("Invitees failed: %v", err)
	}
	if len(invitees) != 0 {
		t.Fatalf("expected invitee list drained, got %v", invitees)
	}
}

func TestHandlerDelete_RejectsAfterStart(t *testing.T) {
	h, _ := setupHandler(t)
	tr, err := h.Create(context.Background(), CreateRequest{
		Name: "Duel", CreatorID: "alice", Seats: 2, MinSeats: 2, Scoring: "Game", TimeMode: "RealTime",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.Join(context.Background(), tr.ID, "bob"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := h.Start(context.Background(), tr.ID, "alice"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.Delete(context.Background(), tr.ID, "alice"); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestRoundRobinPairings_PairsEvenField(t *testing.T) {
	players := []string{"a", "b", "c", "d"}
	pairs := RoundRobinPairings(players, 1)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	seen := map[string]bool{}
	for _, p := range pairs {
		seen[p[0]] = true
		seen[p[1]] = true
	}
	for _, p := range players {
		if !seen[p] {
			t.Fatalf("player %s missing from round-1 pairings", p)
		}
	}
}

func TestRoundRobinPairings_SkipsByeForOddField(t *testing.T) {
	pairs := RoundRobinPairings([]string{"a", "b", "c"}, 1)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair with a bye, got %d", len(pairs))
	}
}
