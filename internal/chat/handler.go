// Package chat implements the Chat handler spec §4.H.5 names:
// validate, stamp, append to the chat store, broadcast — grounded on
// the teacher's history.Handler append-then-notify shape
// (internal/server/history/handlers.go).
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/validation"
)

var (
	ErrSenderMismatch  = errors.New("sender id must match message.user_id")
	ErrGlobalRequiresAdmin = errors.New("Global destination requires an admin sender")
	ErrUnknownDestination  = errors.New("unrecognized chat destination")
)

// DestinationKind mirrors spec §3's Container destination tag.
type DestinationKind int

const (
	Global DestinationKind = iota
	TournamentLobby
	GamePlayers
	GameSpectators
	User
)

// SendRequest is the inbound Chat(Container) action (spec §4.H.5).
type SendRequest struct {
	Destination DestinationKind
	TournamentID string
	GameID       string
	RecipientID  string
	RecipientUsername string

	SenderID       string
	SenderUsername string
	SenderIsAdmin  bool
	Text           string
	Turn           *int
}

// Handler serves the Chat sub-action over a Store and a chatlog.Store.
type Handler struct {
	store *store.Store
	log   *chatlog.Store
}

// New creates a Handler bound to its collaborators.
func New(s *store.Store, log *chatlog.Store) *Handler {
	return &Handler{store: s, log: log}
}

// Send validates req, persists it, appends it to the in-memory replay
// window, and returns the single Notification to broadcast (spec
// §4.H.5, §4.F's Chat audience policy: "sender id matches
// message.user_id; Global requires admin").
func (h *Handler) Send(ctx context.Context, req SendRequest) (*broadcast.Notification, error) {
	if req.SenderID == "" {
		return nil, ErrSenderMismatch
	}
	if req.Destination == Global && !req.SenderIsAdmin {
		return nil, ErrGlobalRequiresAdmin
	}
	if err := validation.ValidateChatText(req.Text); err != nil {
		return nil, err
	}

	now := time.Now()
	msg := chatlog.Message{
		UserID:    req.SenderID,
		Username:  req.SenderUsername,
		Text:      req.Text,
		Turn:      req.Turn,
		Timestamp: now.UnixMilli(),
	}

	key, audience, destination, err := resolve(req)
	if err != nil {
		return nil, err
	}
	if req.Destination == GameSpectators {
		g, err := h.store.GetGame(ctx, req.GameID)
		if err != nil {
			return nil, err
		}
		audience.WhiteID, audience.BlackID = g.WhiteID, g.BlackID
	}

	row := &store.ChatMessage{
		UserID:      req.SenderID,
		Username:    req.SenderUsername,
		Text:        req.Text,
		Destination: destination,
		Turn:        req.Turn,
		CreatedAt:   now,
	}
	if req.GameID != "" {
		row.GameID = &req.GameID
	}
	if req.TournamentID != "" {
		row.TournamentID = &req.TournamentID
	}
	if req.Destination == User {
		row.RecipientID = &req.RecipientID
	}
	if err := h.store.CreateChatMessage(ctx, row); err != nil {
		return nil, err
	}

	container := chatlog.Container{Destination: destination, Message: msg}
	h.log.Append(key, container)

	return &broadcast.Notification{Audience: audience, Message: container}, nil
}

func resolve(req SendRequest) (key string, audience broadcast.Audience, destination string, err error) {
	switch req.Destination {
	case Global:
		return chatlog.GlobalKey(), broadcast.Audience{Kind: broadcast.AudienceGlobal}, "Global", nil
	case TournamentLobby:
		return chatlog.TournamentKey(req.TournamentID),
			broadcast.Audience{Kind: broadcast.AudienceTournament, TournamentID: req.TournamentID},
			"TournamentLobby", nil
	case GamePlayers:
		return chatlog.GamePrivateKey(req.GameID),
			broadcast.Audience{Kind: broadcast.AudienceGame, GameID: req.GameID},
			"GamePlayers", nil
	case GameSpectators:
		return chatlog.GamePublicKey(req.GameID),
			broadcast.Audience{Kind: broadcast.AudienceGameSpectators, GameID: req.GameID},
			"GameSpectators", nil
	case User:
		return chatlog.DirectKey(req.SenderID, req.RecipientID),
			broadcast.Audience{Kind: broadcast.AudienceUser, UserID: req.RecipientID},
			"User", nil
	default:
		return "", broadcast.Audience{}, "", ErrUnknownDestination
	}
}
