package game

import "github.com/hiveboardgame/realtime/internal/store"

// GameSnapshot is the client-facing view of a store.Game (spec §3's
// GameResponse), assembled fresh for every notification rather than
// cached — the same "project the row, don't cache the projection"
// choice the teacher makes for table snapshots.
type GameSnapshot struct {
	ID              string
	WhiteID         string
	BlackID         string
	Status          string
	Result          *string
	Turn            int
	TimeMode        string
	WhiteTimeLeftMs *int64
	BlackTimeLeftMs *int64
	TournamentID    *string
}

func snapshot(g *store.Game) GameSnapshot {
	return GameSnapshot{
		ID:              g.ID,
		WhiteID:         g.WhiteID,
		BlackID:         g.BlackID,
		Status:          g.Status,
		Result:          g.Result,
		Turn:            g.Turn,
		TimeMode:        g.TimeMode,
		WhiteTimeLeftMs: g.WhiteTimeLeftMs,
		BlackTimeLeftMs: g.BlackTimeLeftMs,
		TournamentID:    g.TournamentID,
	}
}

// GameReaction is the Game(id) audience's GameUpdate::Reaction payload
// (spec §3 GameUpdate variant), covering Turn/Control/Ready/Started/
// New/TimedOut echoes.
type GameReaction struct {
	Kind    string
	Game    GameSnapshot
	Control *ControlInfo
}

// ControlInfo describes the GameControl an echoed Reaction concerns.
type ControlInfo struct {
	Kind  string
	Color string
}

// GameUrgent is the User(opponent) audience's GameUpdate::Urgent
// payload: every game currently awaiting that user's attention (spec
// §3's "Urgent — the per-user list of games currently requiring that
// user's attention").
type GameUrgent struct {
	Games []GameSnapshot
}

// JoinSnapshot answers a Join request: the game state plus the replay
// window of chat the joining connection is entitled to see (spec
// §4.H.2's Join handler).
type JoinSnapshot struct {
	Game GameSnapshot
	Chat []ChatLine
}

// ChatLine is one replayed chat entry handed back on Join.
type ChatLine struct {
	UserID    string
	Username  string
	Text      string
	Turn      *int
	Timestamp int64
}
