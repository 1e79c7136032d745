// Package challenge implements the Challenge handlers spec §4.H.1
// names (Create/Accept/Delete), grounded on the teacher's
// matchmaking.HandleJoinMatchmaking/ProcessMatchmaking shape
// (internal/server/matchmaking/matchmaking.go): validate the request,
// persist it, and hand back whatever the caller must broadcast rather
// than writing to a connection directly.
package challenge

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/rating"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/validation"
)

var (
	ErrChallengerIsOpponent   = errors.New("challenger cannot challenge themselves")
	ErrDirectRequiresOpponent = errors.New("direct challenges require an opponent")
	ErrNotYourChallenge       = errors.New("not your challenge to delete")
	ErrAlreadyHasOpponent     = errors.New("challenge already has an opponent")
	ErrOutsideRatingBand      = errors.New("acceptor's rating is above the rating band")
	ErrBelowRatingBand        = errors.New("acceptor's rating is below the rating band")
)

// CreateRequest is the inbound Challenge{Create} action (spec §4.H.1).
type CreateRequest struct {
	ChallengerID  string
	OpponentID    *string
	ColorChoice   string
	TimeMode      string
	TimeBase      *int
	TimeIncrement *int
	DaysPerMove   *int
	TotalTime     *int
	Rated         bool
	Visibility    string
	BandLower     *int
	BandUpper     *int
}

// Handler serves the Challenge sub-actions over a Store.
type Handler struct {
	store *store.Store
}

// New creates a Handler bound to s.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// GetAll lists every open Public challenge, for the REST snapshot
// query (`GET /api/challenges`) and a freshly (re)connected client's
// lobby view.
func (h *Handler) GetAll(ctx context.Context) ([]store.Challenge, error) {
	return h.store.ListPublicChallenges(ctx)
}

// GetForOpponent lists every Direct challenge naming opponentID, for
// the bot REST surface's challenge inbox (`GET
// /api/v1/bot/challenges`).
func (h *Handler) GetForOpponent(ctx context.Context, opponentID string) ([]store.Challenge, error) {
	return h.store.ListChallengesForOpponent(ctx, opponentID)
}

// Create validates and persists a new Challenge (spec §3's Challenge
// invariants: time params match mode, challenger != opponent, Direct
// requires opponent).
func (h *Handler) Create(ctx context.Context, req CreateRequest) (*store.Challenge, []broadcast.Notification, error) {
	if req.OpponentID != nil && *req.OpponentID == req.ChallengerID {
		return nil, nil, ErrChallengerIsOpponent
	}
	if err := validation.ValidateTimeParams(req.TimeMode, req.TimeBase, req.TimeIncrement, req.DaysPerMove, req.TotalTime); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateColorChoice(req.ColorChoice); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateVisibility(req.Visibility); err != nil {
		return nil, nil, err
	}
	if req.Visibility == "Direct" && req.OpponentID == nil {
		return nil, nil, ErrDirectRequiresOpponent
	}
	if err := validation.ValidRatingBand(req.BandLower, req.BandUpper); err != nil {
		return nil, nil, err
	}

	c := &store.Challenge{
		ID:            uuid.New().String(),
		ChallengerID:  req.ChallengerID,
		OpponentID:    req.OpponentID,
		ColorChoice:   req.ColorChoice,
		TimeMode:      req.TimeMode,
		TimeBase:      req.TimeBase,
		TimeIncrement: req.TimeIncrement,
		DaysPerMove:   req.DaysPerMove,
		TotalTime:     req.TotalTime,
		Rated:         req.Rated,
		Visibility:    req.Visibility,
		BandLower:     req.BandLower,
		BandUpper:     req.BandUpper,
		CreatedAt:     time.Now(),
	}
	if err := h.store.CreateChallenge(ctx, c); err != nil {
		return nil, nil, err
	}

	return c, broadcastCreated(c), nil
}

// AcceptResult bundles the new Game with the ids of every Challenge
// the acceptance removed, for the caller's notification fan-out.
type AcceptResult struct {
	Game           *store.Game
	DeletedIDs     []string
}

// Accept resolves a challenge's colors, checks the acceptor's rating
// against the challenge's band, and atomically creates the Game while
// deleting every conflicting Challenge (spec §4.H.1's Accept step).
func (h *Handler) Accept(ctx context.Context, challengeID, accepterID string) (*AcceptResult, error) {
	c, err := h.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if c.Visibility == "Direct" {
		if c.OpponentID == nil || *c.OpponentID != accepterID {
			return nil, ErrNotYourChallenge
		}
	} else if c.OpponentID != nil && *c.OpponentID != accepterID {
		return nil, ErrAlreadyHasOpponent
	}

	if c.BandLower != nil || c.BandUpper != nil {
		base, inc := 0, 0
		if c.TimeBase != nil {
			base = *c.TimeBase
		}
		if c.TimeIncrement != nil {
			inc = *c.TimeIncrement
		}
		speed := rating.Speed(c.TimeMode, base/1000, inc/1000)
		r, err := h.store.GetRating(ctx, accepterID, speed)
		if err != nil {
			return nil, err
		}
		if c.BandUpper != nil && r.Rating > float64(*c.BandUpper) {
			return nil, ErrOutsideRatingBand
		}
		if c.BandLower != nil && r.Rating < float64(*c.BandLower) {
			return nil, ErrBelowRatingBand
		}
	}

	white, black := chooseColors(c.ColorChoice, c.ChallengerID, accepterID)

	var whiteMs, blackMs *int64
	if c.TimeMode == "RealTime" && c.TimeBase != nil {
		ms := int64(*c.TimeBase)
		w, b := ms, ms
		whiteMs, blackMs = &w, &b
	}
	now := time.Now()

	g := &store.Game{
		ID:              uuid.New().String(),
		WhiteID:         white,
		BlackID:         black,
		Status:          "InProgress",
		Turn:            0,
		TimeMode:        c.TimeMode,
		TimeBase:        c.TimeBase,
		TimeIncrement:   c.TimeIncrement,
		WhiteTimeLeftMs: whiteMs,
		BlackTimeLeftMs: blackMs,
		LastInteraction: &now,
		GameStart:       "Moves",
		Rated:           c.Rated,
	}

	deleted, err := h.store.AcceptChallenge(ctx, g, white, black)
	if err != nil {
		return nil, err
	}
	return &AcceptResult{Game: g, DeletedIDs: deleted}, nil
}

// Delete removes a challenge; only its challenger may delete it.
func (h *Handler) Delete(ctx context.Context, challengeID, requesterID string) error {
	c, err := h.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if c.ChallengerID != requesterID {
		return ErrNotYourChallenge
	}
	return h.store.DeleteChallenge(ctx, challengeID)
}

// chooseColors resolves a Challenge's color_choice from the
// challenger's perspective into a concrete (white, black) assignment,
// coin-flipping on "Random" (spec §4.H.1's Accept step).
func chooseColors(choice, challengerID, accepterID string) (white, black string) {
	switch choice {
	case "White":
		return challengerID, accepterID
	case "Black":
		return accepterID, challengerID
	default:
		if rand.Intn(2) == 0 {
			return challengerID, accepterID
		}
		return accepterID, challengerID
	}
}

// ChallengeCreated is the ServerNotification payload announcing a new
// challenge (spec §4.H.1).
type ChallengeCreated struct {
	Challenge *store.Challenge
}

// ChallengeRemoved is the Global payload for each Challenge an Accept
// deleted as a side effect (spec §4.H.1).
type ChallengeRemoved struct {
	ID string
}

// GameStarted is the User(white)/User(black) payload a successful
// Accept emits (spec §4.H.1's "Reaction(New)").
type GameStarted struct {
	Game *store.Game
}

// broadcastCreated announces a new challenge. Public challenges go to
// everyone; Direct challenges notify only the two named parties;
// Private challenges notify only the challenger (spec §3: "Private
// requires neither visibility-side broadcast" beyond that).
func broadcastCreated(c *store.Challenge) []broadcast.Notification {
	switch c.Visibility {
	case "Public":
		return []broadcast.Notification{{
			Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
			Message:  ChallengeCreated{Challenge: c},
		}}
	case "Direct":
		notifications := []broadcast.Notification{
			{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: c.ChallengerID}, Message: ChallengeCreated{Challenge: c}},
		}
		if c.OpponentID != nil {
			notifications = append(notifications, broadcast.Notification{
				Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: *c.OpponentID},
				Message:  ChallengeCreated{Challenge: c},
			})
		}
		return notifications
	case "Private":
		return []broadcast.Notification{{
			Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: c.ChallengerID},
			Message:  ChallengeCreated{Challenge: c},
		}}
	default:
		return nil
	}
}

// BroadcastAccepted builds the notification set for a successful
// Accept: a Reaction(New) to each player, and a Global
// ChallengeUpdate::Removed for every conflicting challenge deleted.
func BroadcastAccepted(res *AcceptResult) []broadcast.Notification {
	notifications := []broadcast.Notification{
		{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: res.Game.WhiteID}, Message: GameStarted{Game: res.Game}},
		{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: res.Game.BlackID}, Message: GameStarted{Game: res.Game}},
	}
	for _, id := range res.DeletedIDs {
		notifications = append(notifications, broadcast.Notification{
			Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
			Message:  ChallengeRemoved{ID: id},
		})
	}
	return notifications
}
