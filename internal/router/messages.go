// Package router implements the request dispatch spec §4.G describes:
// it owns the wire codec, decodes ClientRequest envelopes, applies the
// policy table (auth required? additional checks?), calls the
// matching domain handler, and turns the handler's
// []broadcast.Notification into Envelopes for the Fabric to deliver.
// Grounded on the teacher's websocket dispatch switch
// (internal/server/websocket/websocket.go's HandleWebSocket) and
// cmd/server/server.go's route table, generalized from one message
// type ("table action") to the full Hive request surface.
package router

// ClientRequest is the inbound tagged envelope spec §4.G names:
// `LinkDiscord | Pong(nonce) | Chat(Container) | Game{id, GameAction}
// | Challenge(ChallengeAction) | Tournament(TournamentAction) |
// Schedule(ScheduleAction) | Away | DbgMsg(string)`. Go has no sum
// types, so this is a flat struct with one populated field per Kind —
// the idiomatic encoding/msgpack shape for a tagged union (documented
// as an Open Question decision in DESIGN.md).
type ClientRequest struct {
	Kind string `msgpack:"kind"`

	Nonce *uint64 `msgpack:"nonce,omitempty"` // Pong

	Chat       *ChatRequest       `msgpack:"chat,omitempty"`
	Game       *GameRequest       `msgpack:"game,omitempty"`
	Challenge  *ChallengeRequest  `msgpack:"challenge,omitempty"`
	Tournament *TournamentRequest `msgpack:"tournament,omitempty"`
	Schedule   *ScheduleRequest   `msgpack:"schedule,omitempty"`
	DbgMsg     *string            `msgpack:"dbg_msg,omitempty"`
}

const (
	KindLinkDiscord = "LinkDiscord"
	KindPong        = "Pong"
	KindChat        = "Chat"
	KindGame        = "Game"
	KindChallenge   = "Challenge"
	KindTournament  = "Tournament"
	KindSchedule    = "Schedule"
	KindAway        = "Away"
	KindDbgMsg      = "DbgMsg"

	// KindError tags the ExternalServerError envelope spec §6's
	// ServerResult::Err carries.
	KindError = "Error"
)

// ChatRequest mirrors spec §3's Container.
type ChatRequest struct {
	Destination       string  `msgpack:"destination"` // Global|TournamentLobby|GamePlayers|GameSpectators|User
	TournamentID      string  `msgpack:"tournament_id,omitempty"`
	GameID            string  `msgpack:"game_id,omitempty"`
	RecipientID       string  `msgpack:"recipient_id,omitempty"`
	Text              string  `msgpack:"text"`
	Turn              *int    `msgpack:"turn,omitempty"`
}

// GameRequest mirrors spec §4.G's `Game{id, GameAction}`, where
// GameAction ⊃ `CheckTime | Turn(Turn) | Control(GameControl) | Join
// | Start`.
type GameRequest struct {
	ID      string         `msgpack:"id"`
	Action  string         `msgpack:"action"` // CheckTime|Turn|Control|Join|Start
	Piece   string         `msgpack:"piece,omitempty"`
	Position string        `msgpack:"position,omitempty"`
	Control string         `msgpack:"control,omitempty"` // ControlKind for Action=="Control"
}

// ChallengeRequest mirrors spec §4.H.1's sub-actions.
type ChallengeRequest struct {
	Action        string `msgpack:"action"` // Create|Accept|Delete
	ID            string `msgpack:"id,omitempty"`
	OpponentID    string `msgpack:"opponent_id,omitempty"`
	ColorChoice   string `msgpack:"color_choice,omitempty"`
	TimeMode      string `msgpack:"time_mode,omitempty"`
	TimeBase      *int   `msgpack:"time_base,omitempty"`
	TimeIncrement *int   `msgpack:"time_increment,omitempty"`
	DaysPerMove   *int   `msgpack:"days_per_move,omitempty"`
	TotalTime     *int   `msgpack:"total_time,omitempty"`
	Rated         bool   `msgpack:"rated,omitempty"`
	Visibility    string `msgpack:"visibility,omitempty"`
	BandLower     *int   `msgpack:"band_lower,omitempty"`
	BandUpper     *int   `msgpack:"band_upper,omitempty"`
}

// TournamentRequest mirrors spec §4.H.3's sub-actions.
type TournamentRequest struct {
	Action   string `msgpack:"action"`
	ID       string `msgpack:"id,omitempty"`
	TargetID string `msgpack:"target_id,omitempty"` // Kick/InvitationCreate/InvitationRetract/AdjudicateResult(game)

	Name          string   `msgpack:"name,omitempty"`
	Seats         int      `msgpack:"seats,omitempty"`
	MinSeats      int      `msgpack:"min_seats,omitempty"`
	Rounds        int      `msgpack:"rounds,omitempty"`
	TimeMode      string   `msgpack:"time_mode,omitempty"`
	TimeBase      *int     `msgpack:"time_base,omitempty"`
	TimeIncrement *int     `msgpack:"time_increment,omitempty"`
	Scoring       string   `msgpack:"scoring,omitempty"`
	Tiebreakers   []string `msgpack:"tiebreakers,omitempty"`
	Invitees      []string `msgpack:"invitees,omitempty"`
}

// ScheduleRequest mirrors spec §4.H.4's sub-actions.
type ScheduleRequest struct {
	Action       string `msgpack:"action"` // Propose|Accept|Cancel|TournamentPublic|TournamentOwn
	ID           string `msgpack:"id,omitempty"`
	GameID       string `msgpack:"game_id,omitempty"`
	TournamentID string `msgpack:"tournament_id,omitempty"`
	StartAtMs    int64  `msgpack:"start_at_ms,omitempty"`
}

// ServerMessage is the outbound tagged envelope spec §4.F names:
// `Chat([Container]) | Challenge(ChallengeUpdate) | Game(GameUpdate)
// | Tournament(TournamentUpdate) | Schedule(ScheduleUpdate) |
// UserStatus(UserUpdate) | Join(UserResponse) |
// ConnectionUpdated(uid, username) | Ping{nonce, value} |
// Error(string) | RedirectLink(string)`. Domain handler payloads
// (GameReaction, Update, etc.) are carried verbatim under the
// matching field; this wrapper only adds the Kind discriminant the
// client switches on.
type ServerMessage struct {
	Kind    string `msgpack:"kind"`
	Payload any    `msgpack:"payload"`
}

// ExternalServerError is the Payload for Kind=="Error": spec §6's
// `ServerResult = Ok(ServerMessage) | Err(ExternalServerError{user_id,
// field, reason, status_code})`. Auth failures carry status_code 401;
// every other handler rejection (validation, rule violation,
// not-found, conflict, internal) carries 501 (spec §7).
type ExternalServerError struct {
	UserID     string `msgpack:"user_id,omitempty"`
	Field      string `msgpack:"field,omitempty"`
	Reason     string `msgpack:"reason"`
	StatusCode int    `msgpack:"status_code"`
}

// PingMessage is the Payload for Kind=="Ping" (spec §4.A's ping/pong
// cadence, distinct from the transport-level heartbeat).
type PingMessage struct {
	Nonce uint64  `msgpack:"nonce"`
	Value float64 `msgpack:"value"`
}

// UserStatus is the Payload for Kind=="UserStatus" (spec §4.F's
// `UserStatus(UserUpdate)` — broadcast Global the instant an account's
// tab count crosses 0↔1, spec §3/§4.C). Built directly by the
// connection handshake rather than a domain handler, since presence
// has no Create/Update/Delete verbs of its own.
type UserStatus struct {
	UserID   string `msgpack:"user_id"`
	Username string `msgpack:"username"`
	Online   bool   `msgpack:"online"`
}
