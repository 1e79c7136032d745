package router

import (
	"context"
	"time"

	"github.com/hiveboardgame/realtime/internal/auth"
	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/chat"
	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/challenge"
	"github.com/hiveboardgame/realtime/internal/game"
	"github.com/hiveboardgame/realtime/internal/hive"
	"github.com/hiveboardgame/realtime/internal/presence"
	"github.com/hiveboardgame/realtime/internal/ratelimit"
	"github.com/hiveboardgame/realtime/internal/schedule"
	"github.com/hiveboardgame/realtime/internal/subscription"
	"github.com/hiveboardgame/realtime/internal/tournament"
	"github.com/hiveboardgame/realtime/internal/ws"
)

// Router dispatches decoded ClientRequests to their domain handler and
// fans the resulting notifications out through the Fabric (spec
// §4.G).
type Router struct {
	Auth       *auth.Service
	Presence   *presence.Registry
	Subs       *subscription.Registry
	Fabric     *broadcast.Fabric
	Chatlog    *chatlog.Store
	Games      *game.Handler
	Challenges *challenge.Handler
	Tournaments *tournament.Handler
	Schedules  *schedule.Handler
	Chats      *chat.Handler
	// Limiter throttles Turn/Control/Chat frames per authenticated user
	// (spec's domain-stack wiring for golang.org/x/time/rate), nil-safe
	// so tests can omit it.
	Limiter *ratelimit.Limiter
}

// allowAction reports whether userID may send another Turn/Control/Chat
// frame right now. A nil Limiter (e.g. in tests) always allows.
func (r *Router) allowAction(userID string) bool {
	if r.Limiter == nil {
		return true
	}
	return r.Limiter.Allow(userID)
}

// Dispatch decodes raw, applies the policy table, and routes to the
// matching handler. Handler errors are reported to the originating
// connection only (spec §4.G: "never dropped due to a handler
// error").
func (r *Router) Dispatch(conn *ws.Connection, raw []byte) {
	userID, authed := conn.UserID()

	req, err := Decode(raw)
	if err != nil {
		r.replyError(conn, userID, "", "malformed request", 501)
		return
	}

	switch req.Kind {
	case KindPong:
		r.handlePong(conn, req)
	case KindAway:
		// no-op: presence is tab-scoped, not away-scoped in this design.
	case KindDbgMsg:
		// operator debug echo; no handler side effects.
	case KindChat:
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		r.handleChat(conn, userID, req.Chat)
	case KindGame:
		r.handleGame(conn, userID, authed, req.Game)
	case KindChallenge:
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		r.handleChallenge(conn, userID, req.Challenge)
	case KindTournament:
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		r.handleTournament(conn, userID, req.Tournament)
	case KindSchedule:
		r.handleSchedule(conn, userID, authed, req.Schedule)
	case KindLinkDiscord:
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		// Discord account linking is an external-identity concern with
		// no Hive domain semantics; acknowledged but not implemented.
	default:
		r.replyError(conn, userID, "kind", "unknown request kind", 501)
	}
}

func (r *Router) unauthorized(conn *ws.Connection, userID string) {
	r.replyError(conn, userID, "", "unauthorized", 401)
}

func (r *Router) handlePong(conn *ws.Connection, req ClientRequest) {
	if req.Nonce == nil {
		return
	}
	conn.Ping.RecordPong(*req.Nonce, time.Now())
}

func (r *Router) handleChat(conn *ws.Connection, userID string, req *ChatRequest) {
	if req == nil {
		return
	}
	if !r.allowAction(userID) {
		r.replyError(conn, userID, "", "rate limited", 501)
		return
	}
	dest, ok := parseDestination(req.Destination)
	if !ok {
		r.replyError(conn, userID, "destination", "unknown chat destination", 501)
		return
	}
	notification, err := r.Chats.Send(connCtx(), chat.SendRequest{
		Destination:       dest,
		TournamentID:      req.TournamentID,
		GameID:            req.GameID,
		RecipientID:       req.RecipientID,
		SenderID:          userID,
		SenderUsername:    conn.Username(),
		SenderIsAdmin:     conn.IsAdmin(),
		Text:              req.Text,
		Turn:              req.Turn,
	})
	if err != nil {
		r.replyError(conn, userID, "", err.Error(), 501)
		return
	}
	r.deliver([]broadcast.Notification{*notification})
}

func parseDestination(s string) (chat.DestinationKind, bool) {
	switch s {
	case "Global":
		return chat.Global, true
	case "TournamentLobby":
		return chat.TournamentLobby, true
	case "GamePlayers":
		return chat.GamePlayers, true
	case "GameSpectators":
		return chat.GameSpectators, true
	case "User":
		return chat.User, true
	default:
		return 0, false
	}
}

func (r *Router) handleGame(conn *ws.Connection, userID string, authed bool, req *GameRequest) {
	if req == nil {
		return
	}
	switch req.Action {
	case "Turn":
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		if !r.allowAction(userID) {
			r.replyError(conn, userID, "", "rate limited", 501)
			return
		}
		notifications, err := r.Games.Turn(connCtx(), req.ID, userID, hive.Move{Piece: req.Piece, Position: req.Position})
		r.finish(conn, userID, notifications, err)
	case "Control":
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		if !r.allowAction(userID) {
			r.replyError(conn, userID, "", "rate limited", 501)
			return
		}
		color, err := r.Games.ColorOf(connCtx(), req.ID, userID)
		if err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
			return
		}
		notifications, err := r.Games.Control(connCtx(), req.ID, userID, hive.Control{Kind: hive.ControlKind(req.Control), Color: color})
		r.finish(conn, userID, notifications, err)
	case "CheckTime":
		notifications, err := r.Games.CheckTime(connCtx(), req.ID)
		r.finish(conn, userID, notifications, err)
	case "Join":
		snapshot, err := r.Games.Join(connCtx(), req.ID, conn, userID)
		if err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
			return
		}
		r.reply(conn, "Join", snapshot)
	case "Start":
		if !authed {
			r.unauthorized(conn, userID)
			return
		}
		notifications, err := r.Games.Start(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	default:
		r.replyError(conn, userID, "action", "unknown game action", 501)
	}
}

func (r *Router) handleChallenge(conn *ws.Connection, userID string, req *ChallengeRequest) {
	if req == nil {
		return
	}
	switch req.Action {
	case "Create":
		_, notifications, err := r.Challenges.Create(connCtx(), challenge.CreateRequest{
			ChallengerID: userID, OpponentID: optStr(req.OpponentID), ColorChoice: req.ColorChoice,
			TimeMode: req.TimeMode, TimeBase: req.TimeBase, TimeIncrement: req.TimeIncrement,
			DaysPerMove: req.DaysPerMove, TotalTime: req.TotalTime, Rated: req.Rated,
			Visibility: req.Visibility, BandLower: req.BandLower, BandUpper: req.BandUpper,
		})
		r.finish(conn, userID, notifications, err)
	case "Accept":
		result, err := r.Challenges.Accept(connCtx(), req.ID, userID)
		if err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
			return
		}
		r.deliver(challenge.BroadcastAccepted(result))
	case "Delete":
		if err := r.Challenges.Delete(connCtx(), req.ID, userID); err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
		}
	default:
		r.replyError(conn, userID, "action", "unknown challenge action", 501)
	}
}

func (r *Router) handleTournament(conn *ws.Connection, userID string, req *TournamentRequest) {
	if req == nil {
		return
	}
	switch req.Action {
	case "Create":
		t, err := r.Tournaments.Create(connCtx(), tournament.CreateRequest{
			Name: req.Name, CreatorID: userID, Seats: req.Seats, MinSeats: req.MinSeats,
			Rounds: req.Rounds, TimeMode: req.TimeMode, TimeBase: req.TimeBase,
			TimeIncrement: req.TimeIncrement, Scoring: req.Scoring, Tiebreakers: req.Tiebreakers,
			Invitees: req.Invitees,
		})
		if err != nil {
			r.replyError(conn, userID, "", err.Error(), 501)
			return
		}
		r.reply(conn, "Tournament", t)
	case "Get":
		t, err := r.Tournaments.Get(connCtx(), req.ID)
		if err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
			return
		}
		r.reply(conn, "Tournament", t)
	case "GetAll":
		ts, err := r.Tournaments.GetAll(connCtx())
		if err != nil {
			r.replyError(conn, userID, "", err.Error(), 501)
			return
		}
		r.reply(conn, "Tournament", ts)
	case "Join":
		notifications, err := r.Tournaments.Join(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "Leave":
		notifications, err := r.Tournaments.Leave(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "Delete":
		if err := r.Tournaments.Delete(connCtx(), req.ID, userID); err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
		}
	case "InvitationCreate":
		notifications, err := r.Tournaments.InvitationCreate(connCtx(), req.ID, userID, req.TargetID)
		r.finish(conn, userID, notifications, err)
	case "InvitationAccept":
		notifications, err := r.Tournaments.InvitationAccept(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "InvitationDecline":
		if err := r.Tournaments.InvitationDecline(connCtx(), req.ID, userID); err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
		}
	case "InvitationRetract":
		if err := r.Tournaments.InvitationRetract(connCtx(), req.ID, userID, req.TargetID); err != nil {
			r.replyError(conn, userID, "id", err.Error(), 501)
		}
	case "Kick":
		notifications, err := r.Tournaments.Kick(connCtx(), req.ID, userID, req.TargetID)
		r.finish(conn, userID, notifications, err)
	case "Start":
		notifications, err := r.Tournaments.Start(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "AdjudicateResult":
		notifications, err := r.Tournaments.AdjudicateResult(connCtx(), req.ID, userID, req.TargetID)
		r.finish(conn, userID, notifications, err)
	case "Abandon":
		notifications, err := r.Tournaments.Abandon(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "Finish":
		notifications, err := r.Tournaments.Finish(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "UpdateScoringMode":
		if err := r.Tournaments.UpdateScoringMode(connCtx(), req.ID, userID, req.Scoring); err != nil {
			r.replyError(conn, userID, "scoring", err.Error(), 501)
		}
	default:
		r.replyError(conn, userID, "action", "unknown tournament action", 501)
	}
}

func (r *Router) handleSchedule(conn *ws.Connection, userID string, authed bool, req *ScheduleRequest) {
	if req == nil {
		return
	}
	if req.Action != "TournamentPublic" && !authed {
		r.unauthorized(conn, userID)
		return
	}
	switch req.Action {
	case "Propose":
		_, notifications, err := r.Schedules.Propose(connCtx(), req.GameID, userID, time.UnixMilli(req.StartAtMs))
		r.finish(conn, userID, notifications, err)
	case "Accept":
		notifications, err := r.Schedules.Accept(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "Cancel":
		notifications, err := r.Schedules.Cancel(connCtx(), req.ID, userID)
		r.finish(conn, userID, notifications, err)
	case "TournamentPublic":
		snaps, err := r.Schedules.TournamentPublic(connCtx(), req.TournamentID)
		if err != nil {
			r.replyError(conn, userID, "tournament_id", err.Error(), 501)
			return
		}
		r.reply(conn, "Schedule", snaps)
	case "TournamentOwn":
		snaps, err := r.Schedules.TournamentOwn(connCtx(), req.TournamentID, userID)
		if err != nil {
			r.replyError(conn, userID, "tournament_id", err.Error(), 501)
			return
		}
		r.reply(conn, "Schedule", snaps)
	default:
		r.replyError(conn, userID, "action", "unknown schedule action", 501)
	}
}

// finish reports a handler error to the originating connection only,
// or delivers its notifications through the Fabric on success (spec
// §4.G: "Handler errors return status=501-class... logged with the
// failing request").
func (r *Router) finish(conn *ws.Connection, userID string, notifications []broadcast.Notification, err error) {
	if err != nil {
		r.replyError(conn, userID, "", err.Error(), 501)
		return
	}
	r.deliver(notifications)
}

func (r *Router) deliver(notifications []broadcast.Notification) {
	Deliver(r.Fabric, notifications)
}

// Deliver encodes notifications and hands them to fabric — the same
// path Dispatch uses for a connection-originated request, exported so
// internal/jobs can fan out periodic-job notifications (tournament
// auto-start, schedule reminders) through the identical Kind-tagging
// and Sink-resolution logic rather than duplicating it.
func Deliver(fabric *broadcast.Fabric, notifications []broadcast.Notification) {
	envelopes, _ := broadcast.EncodeAll(notifications, func(msg any) ([]byte, error) {
		return Encode(wrap(classify(msg), msg))
	})
	fabric.Deliver(envelopes)
}

// reply sends a direct, unbroadcast ServerMessage to conn only —
// used for request/response sub-actions (Join's snapshot, Tournament
// Get/GetAll, Schedule's snapshot queries) rather than fan-out
// notifications.
func (r *Router) reply(conn *ws.Connection, kind string, payload any) {
	encoded, err := Encode(wrap(kind, payload))
	if err != nil {
		return
	}
	if !conn.Send(encoded) {
		conn.Disconnect()
	}
}

// replyError sends an Err(ExternalServerError) to conn only (spec §6),
// never broadcasting — the inbound frame that triggered it has no
// other effect (spec §7).
func (r *Router) replyError(conn *ws.Connection, userID, field, reason string, statusCode int) {
	r.reply(conn, KindError, ExternalServerError{
		UserID:     userID,
		Field:      field,
		Reason:     reason,
		StatusCode: statusCode,
	})
}

// connCtx is the context handed to domain handlers for each dispatched
// request. Frames arrive off ws.Connection.ReadPump's loop, which has
// no request-scoped context of its own to thread through, so handlers
// run under a background context for the life of the call.
func connCtx() context.Context {
	return context.Background()
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
