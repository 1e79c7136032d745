package tournament

import "github.com/hiveboardgame/realtime/internal/store"

// Snapshot is the client-facing view of a store.Tournament (spec §3's
// TournamentResponse), assembled fresh for each notification.
type Snapshot struct {
	ID       string
	Name     string
	Status   string
	Seats    int
	MinSeats int
	Rounds   int
	Scoring  string
	Players  []string
	Games    []string
}

func snapshot(t *store.Tournament) (Snapshot, error) {
	players, err := t.Players()
	if err != nil {
		return Snapshot{}, err
	}
	games, err := t.Games()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:       t.ID,
		Name:     t.Name,
		Status:   t.Status,
		Seats:    t.Seats,
		MinSeats: t.MinSeats,
		Rounds:   t.Rounds,
		Scoring:  t.Scoring,
		Players:  players,
		Games:    games,
	}, nil
}

// Update is the Tournament(id) audience's TournamentUpdate payload
// (spec §4.H.3): one of Created/PlayerJoined/PlayerLeft/Deleted/
// Kicked/Started/AdjudicateResult/Abandoned/Finished/ScoringMode.
type Update struct {
	Kind       string
	Tournament Snapshot
	UserID     string // subject of PlayerJoined/PlayerLeft/Kicked
}

// InvitationUpdate is the targeted User envelope for invitation
// sub-actions (spec §4.H.3).
type InvitationUpdate struct {
	Kind         string // "Created", "Accepted", "Declined", "Retracted"
	TournamentID string
	TournamentName string
}

// GameStarted is the per-player Reaction(New) envelope Start emits
// once per player per first-round game (spec §4.H.3).
type GameStarted struct {
	Game *store.Game
}
