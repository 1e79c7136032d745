// Package tournament implements the Tournament handlers spec §4.H.3
// names, grounded on the teacher's tournament.Service transactional
// create/register/start shape (internal/tournament/service.go,
// starter.go), adapted from poker buy-ins/seating to Hive's
// invitee/player/organizer/round model.
package tournament

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/game"
	"github.com/hiveboardgame/realtime/internal/hive"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/validation"
)

// CreateRequest is the inbound Tournament{Create} action (spec §4.H.3).
type CreateRequest struct {
	Name          string
	CreatorID     string
	Seats         int
	MinSeats      int
	Rounds        int
	TimeMode      string
	TimeBase      *int
	TimeIncrement *int
	Scoring       string
	Tiebreakers   []string
	RoundDuration *int
	StartAt       *time.Time
	Invitees      []string
}

// Handler serves the Tournament sub-actions over a Store, delegating
// Game creation/resignation to internal/game per spec §9's
// rules-engine-boundary note.
type Handler struct {
	store *store.Store
	games *game.Handler
}

// New creates a Handler bound to its collaborators.
func New(s *store.Store, games *game.Handler) *Handler {
	return &Handler{store: s, games: games}
}

// Create persists a new Tournament with its creator as sole organizer.
func (h *Handler) Create(ctx context.Context, req CreateRequest) (*store.Tournament, error) {
	if err := validation.ValidateTournamentName(req.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateSeats(req.Seats, req.MinSeats); err != nil {
		return nil, err
	}
	if req.Scoring != "Game" && req.Scoring != "Match" {
		return nil, ErrInvalidScoringMode
	}

	t := &store.Tournament{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Status:         "NotStarted",
		Seats:          req.Seats,
		MinSeats:       req.MinSeats,
		Rounds:         req.Rounds,
		TimeMode:       req.TimeMode,
		TimeBase:       req.TimeBase,
		TimeIncrement:  req.TimeIncrement,
		Scoring:        req.Scoring,
		RoundDurationS: req.RoundDuration,
		StartAt:        req.StartAt,
	}
	if err := t.SetOrganizers([]string{req.CreatorID}); err != nil {
		return nil, err
	}
	if err := t.SetPlayers(nil); err != nil {
		return nil, err
	}
	if err := t.SetInvitees(req.Invitees); err != nil {
		return nil, err
	}
	if err := t.SetTiebreakers(req.Tiebreakers); err != nil {
		return nil, err
	}
	if err := h.store.CreateTournament(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get fetches a single Tournament by id.
func (h *Handler) Get(ctx context.Context, id string) (*store.Tournament, error) {
	return h.store.GetTournament(ctx, id)
}

// PollAutoStart starts every NotStarted tournament past its StartAt
// that already has enough players — the tournament-start-poll job
// (spec §4.J) calls this on a timer instead of waiting on an organizer
// to call Start. Tournaments still short of MinSeats are skipped, not
// errored, so the next tick picks them up once they fill.
func (h *Handler) PollAutoStart(ctx context.Context, now time.Time) ([]broadcast.Notification, error) {
	due, err := h.store.ListTournamentsDueToStart(ctx, now)
	if err != nil {
		return nil, err
	}
	var notifications []broadcast.Notification
	for i := range due {
		t := &due[i]
		organizers, err := t.Organizers()
		if err != nil || len(organizers) == 0 {
			continue
		}
		players, err := t.Players()
		if err != nil || len(players) < t.MinSeats {
			continue
		}
		n, err := h.Start(ctx, t.ID, organizers[0])
		if err != nil {
			continue
		}
		notifications = append(notifications, n...)
	}
	return notifications, nil
}

// GetAll lists every tournament (spec §4.H.3's GetAll).
func (h *Handler) GetAll(ctx context.Context) ([]store.Tournament, error) {
	var ts []store.Tournament
	err := h.store.DB().WithContext(ctx).Find(&ts).Error
	return ts, err
}

// Join adds userID to the tournament's player list (spec §3 invariant
// |players| ≤ seats).
func (h *Handler) Join(ctx context.Context, tournamentID, userID string) ([]broadcast.Notification, error) {
	var t *store.Tournament
	err := h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		if tt.Status != "NotStarted" {
			return ErrAlreadyStarted
		}
		players, err := tt.Players()
		if err != nil {
			return err
		}
		for _, p := range players {
			if p == userID {
				return ErrAlreadyJoined
			}
		}
		if len(players) >= tt.Seats {
			return ErrTournamentFull
		}
		t = tt
		return tt.SetPlayers(append(players, userID))
	})
	if err != nil {
		return nil, err
	}
	t, err = h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return h.broadcastUpdate("PlayerJoined", t, userID)
}

// Leave removes userID from the tournament's player list.
func (h *Handler) Leave(ctx context.Context, tournamentID, userID string) ([]broadcast.Notification, error) {
	err := h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		if tt.Status != "NotStarted" {
			return ErrAlreadyStarted
		}
		players, err := tt.Players()
		if err != nil {
			return err
		}
		idx := indexOf(players, userID)
		if idx == -1 {
			return ErrNotJoined
		}
		return tt.SetPlayers(append(players[:idx], players[idx+1:]...))
	})
	if err != nil {
		return nil, err
	}
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return h.broadcastUpdate("PlayerLeft", t, userID)
}

// Delete removes a NotStarted tournament; only an organizer may do so.
func (h *Handler) Delete(ctx context.Context, tournamentID, requesterID string) error {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return err
	}
	if t.Status != "NotStarted" {
		return ErrAlreadyStarted
	}
	return h.store.DB().WithContext(ctx).Delete(&store.Tournament{}, "id = ?", tournamentID).Error
}

// InvitationCreate adds inviteeID to the invitee list; organizer-only.
func (h *Handler) InvitationCreate(ctx context.Context, tournamentID, requesterID, inviteeID string) ([]broadcast.Notification, error) {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return nil, err
	}
	err = h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		invitees, err := tt.Invitees()
		if err != nil {
			return err
		}
		if indexOf(invitees, inviteeID) != -1 {
			return ErrAlreadyInvited
		}
		return tt.SetInvitees(append(invitees, inviteeID))
	})
	if err != nil {
		return nil, err
	}
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: inviteeID},
		Message:  InvitationUpdate{Kind: "Created", TournamentID: t.ID, TournamentName: t.Name},
	}}, nil
}

// InvitationAccept moves inviteeID from invitees into players.
func (h *Handler) InvitationAccept(ctx context.Context, tournamentID, userID string) ([]broadcast.Notification, error) {
	err := h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		invitees, err := tt.Invitees()
		if err != nil {
			return err
		}
		idx := indexOf(invitees, userID)
		if idx == -1 {
			return ErrNotInvited
		}
		if err := tt.SetInvitees(append(invitees[:idx], invitees[idx+1:]...)); err != nil {
			return err
		}
		players, err := tt.Players()
		if err != nil {
			return err
		}
		if len(players) >= tt.Seats {
			return ErrTournamentFull
		}
		return tt.SetPlayers(append(players, userID))
	})
	if err != nil {
		return nil, err
	}
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return h.broadcastUpdate("PlayerJoined", t, userID)
}

// InvitationDecline removes userID from invitees without joining.
func (h *Handler) InvitationDecline(ctx context.Context, tournamentID, userID string) error {
	return h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		invitees, err := tt.Invitees()
		if err != nil {
			return err
		}
		idx := indexOf(invitees, userID)
		if idx == -1 {
			return ErrNotInvited
		}
		return tt.SetInvitees(append(invitees[:idx], invitees[idx+1:]...))
	})
}

// InvitationRetract removes inviteeID from invitees; organizer-only.
func (h *Handler) InvitationRetract(ctx context.Context, tournamentID, requesterID, inviteeID string) error {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return err
	}
	return h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		invitees, err := tt.Invitees()
		if err != nil {
			return err
		}
		idx := indexOf(invitees, inviteeID)
		if idx == -1 {
			return ErrNotInvited
		}
		return tt.SetInvitees(append(invitees[:idx], invitees[idx+1:]...))
	})
}

// Kick removes a player before start; organizer-only.
func (h *Handler) Kick(ctx context.Context, tournamentID, requesterID, targetID string) ([]broadcast.Notification, error) {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return nil, err
	}
	err = h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		if tt.Status != "NotStarted" {
			return ErrAlreadyStarted
		}
		players, err := tt.Players()
		if err != nil {
			return err
		}
		idx := indexOf(players, targetID)
		if idx == -1 {
			return ErrNotJoined
		}
		return tt.SetPlayers(append(players[:idx], players[idx+1:]...))
	})
	if err != nil {
		return nil, err
	}
	t, err = h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return h.broadcastUpdate("Kicked", t, targetID)
}

// UpdateScoringMode changes a NotStarted tournament's scoring mode;
// organizer-only.
func (h *Handler) UpdateScoringMode(ctx context.Context, tournamentID, requesterID, scoring string) error {
	if scoring != "Game" && scoring != "Match" {
		return ErrInvalidScoringMode
	}
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return err
	}
	return h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		tt.Scoring = scoring
		return nil
	})
}

// Start transitions NotStarted→InProgress and creates the first
// round's Games via internal/game (spec §4.H.3: "Start additionally
// creates first-round Games and emits one User(player): Reaction(New)
// per player per game").
func (h *Handler) Start(ctx context.Context, tournamentID, requesterID string) ([]broadcast.Notification, error) {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return nil, err
	}
	players, err := t.Players()
	if err != nil {
		return nil, err
	}
	if len(players) < t.MinSeats {
		return nil, ErrNotEnoughPlayers
	}

	err = h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		if tt.Status != "NotStarted" {
			return ErrAlreadyStarted
		}
		tt.Status = "InProgress"
		now := time.Now()
		tt.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	pairs := RoundRobinPairings(players, 1)
	notifications := []broadcast.Notification{}
	for _, pair := range pairs {
		g, err := h.games.CreateGame(ctx, game.NewGameRequest{
			WhiteID:       pair[0],
			BlackID:       pair[1],
			TimeMode:      t.TimeMode,
			TimeBase:      t.TimeBase,
			TimeIncrement: t.TimeIncrement,
			Rated:         true,
			TournamentID:  &tournamentID,
			GameStart:     "Ready",
		})
		if err != nil {
			return nil, err
		}
		if err := h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
			return tt.AppendGame(g.ID)
		}); err != nil {
			return nil, err
		}
		notifications = append(notifications,
			broadcast.Notification{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: pair[0]}, Message: GameStarted{Game: g}},
			broadcast.Notification{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: pair[1]}, Message: GameStarted{Game: g}},
		)
	}

	t, err = h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	update, err := h.broadcastUpdate("Started", t, "")
	if err != nil {
		return nil, err
	}
	return append(notifications, update...), nil
}

// Abandon resigns all of userID's active games in this tournament
// (spec §4.H.3's Abandon).
func (h *Handler) Abandon(ctx context.Context, tournamentID, userID string) ([]broadcast.Notification, error) {
	games, err := h.store.ListGamesByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	var notifications []broadcast.Notification
	for _, g := range games {
		if g.Status != "InProgress" || (g.WhiteID != userID && g.BlackID != userID) {
			continue
		}
		color := hive.White
		if g.BlackID == userID {
			color = hive.Black
		}
		n, err := h.games.Control(ctx, g.ID, userID, hive.Control{Kind: hive.ControlResign, Color: color})
		if err != nil {
			continue
		}
		notifications = append(notifications, n...)
	}
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	update, err := h.broadcastUpdate("Abandoned", t, userID)
	if err != nil {
		return nil, err
	}
	return append(notifications, update...), nil
}

// AdjudicateResult lets an organizer force a game's outcome in a
// tournament context (spec §4.H.3's AdjudicateResult) — the escalation
// path for stuck/disputed games, mirrored after CheckTime's own
// direct Status=Finished transition but organizer-triggered rather
// than clock-triggered.
func (h *Handler) AdjudicateResult(ctx context.Context, tournamentID, requesterID, gameID string) ([]broadcast.Notification, error) {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return nil, err
	}
	if err := h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, g *store.Game) error {
		g.Status = string(hive.StatusAdjudicated)
		now := time.Now()
		g.LastInteraction = &now
		return nil
	}); err != nil {
		return nil, err
	}
	update, err := h.broadcastUpdate("AdjudicateResult", t, "")
	if err != nil {
		return nil, err
	}
	return update, nil
}

// Finish marks a tournament Finished; organizer-only, or automatic
// once every round's games have concluded (spec §3: "no new pairings
// once Finished").
func (h *Handler) Finish(ctx context.Context, tournamentID, requesterID string) ([]broadcast.Notification, error) {
	t, err := h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := h.requireOrganizer(t, requesterID); err != nil {
		return nil, err
	}
	err = h.store.WithTournamentForUpdate(ctx, tournamentID, func(tx *gorm.DB, tt *store.Tournament) error {
		tt.Status = "Finished"
		return nil
	})
	if err != nil {
		return nil, err
	}
	t, err = h.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return h.broadcastUpdate("Finished", t, "")
}

func (h *Handler) requireOrganizer(t *store.Tournament, userID string) error {
	organizers, err := t.Organizers()
	if err != nil {
		return err
	}
	if indexOf(organizers, userID) == -1 {
		return ErrNotOrganizer
	}
	return nil
}

func (h *Handler) broadcastUpdate(kind string, t *store.Tournament, userID string) ([]broadcast.Notification, error) {
	snap, err := snapshot(t)
	if err != nil {
		return nil, err
	}
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceTournament, TournamentID: t.ID},
		Message:  Update{Kind: kind, Tournament: snap, UserID: userID},
	}}, nil
}

func indexOf(ss []string, target string) int {
	for i, s := range ss {
		if s == target {
			return i
		}
	}
	return -1
}
