package router

import (
	"github.com/hiveboardgame/realtime/internal/challenge"
	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/game"
	"github.com/hiveboardgame/realtime/internal/schedule"
	"github.com/hiveboardgame/realtime/internal/tournament"
)

// classify maps a domain handler's notification payload to the
// ServerMessage.Kind tag spec §4.F's client switches on. Every
// Notification a handler emits must have a case here, or the Fabric
// would deliver an envelope the client can't route.
func classify(msg any) string {
	switch msg.(type) {
	case game.GameReaction, game.GameUrgent, game.JoinSnapshot, game.GameSnapshot:
		return "Game"
	case challenge.ChallengeCreated, challenge.ChallengeRemoved, challenge.GameStarted:
		return "Challenge"
	case tournament.Update, tournament.InvitationUpdate, tournament.GameStarted:
		return "Tournament"
	case schedule.Update:
		return "Schedule"
	case chatlog.Container:
		return "Chat"
	case UserStatus:
		return "UserStatus"
	default:
		return KindDbgMsg
	}
}
