// Package schedule implements the Schedule sub-actions spec §4.H.4
// names (Propose/Accept/Cancel/TournamentPublic/TournamentOwn),
// grounded on the teacher's tournament.Service transactional mutation
// shape (internal/tournament/service.go) for Accept's atomic
// un-agree-siblings step, and on starter.go's ticker idiom for the
// periodic notification sweep (built in internal/jobs).
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/store"
)

var (
	ErrNotAPlayer     = errors.New("proposer must be a player in this game")
	ErrNotOpponent    = errors.New("only the opponent may accept this schedule")
	ErrNotYourSchedule = errors.New("not a party to this schedule")
)

// Handler serves the Schedule sub-actions over a Store.
type Handler struct {
	store *store.Store
}

// New creates a Handler bound to s.
func New(s *store.Store) *Handler {
	return &Handler{store: s}
}

// Propose persists a new Schedule for a game the proposer plays in
// (spec §4.H.4's Propose).
func (h *Handler) Propose(ctx context.Context, gameID, proposerID string, when time.Time) (*store.Schedule, []broadcast.Notification, error) {
	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	opponentID, ok := opponentOf(g, proposerID)
	if !ok {
		return nil, nil, ErrNotAPlayer
	}

	sch := &store.Schedule{
		ID:           uuid.New().String(),
		GameID:       gameID,
		TournamentID: g.TournamentID,
		ProposerID:   proposerID,
		OpponentID:   opponentID,
		StartAt:      when,
		CreatedAt:    time.Now(),
	}
	if err := h.store.CreateSchedule(ctx, sch); err != nil {
		return nil, nil, err
	}

	update := Update{Kind: "Proposed", Schedule: snapshot(sch)}
	notifications := []broadcast.Notification{
		{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: proposerID}, Message: update},
		{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: opponentID}, Message: update},
	}
	return sch, notifications, nil
}

// Accept sets a Schedule agreed, un-agreeing every sibling for the
// same game, and broadcasts globally (spec §4.H.4's Accept).
func (h *Handler) Accept(ctx context.Context, scheduleID, accepterID string) ([]broadcast.Notification, error) {
	sch, err := h.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sch.OpponentID != accepterID {
		return nil, ErrNotOpponent
	}
	agreed, err := h.store.AgreeSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
		Message:  Update{Kind: "Accepted", Schedule: snapshot(agreed)},
	}}, nil
}

// Cancel deletes a Schedule; either the proposer or the opponent may
// cancel it (spec §4.H.4's Cancel).
func (h *Handler) Cancel(ctx context.Context, scheduleID, requesterID string) ([]broadcast.Notification, error) {
	sch, err := h.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sch.ProposerID != requesterID && sch.OpponentID != requesterID {
		return nil, ErrNotYourSchedule
	}
	if err := h.store.DB().WithContext(ctx).Delete(&store.Schedule{}, "id = ?", scheduleID).Error; err != nil {
		return nil, err
	}
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
		Message:  Update{Kind: "Deleted", Schedule: Snapshot{ID: scheduleID}},
	}}, nil
}

// TournamentPublic returns every Schedule tied to a tournament,
// regardless of who is asking (spec §4.H.4's snapshot query).
func (h *Handler) TournamentPublic(ctx context.Context, tournamentID string) ([]Snapshot, error) {
	var schs []store.Schedule
	err := h.store.DB().WithContext(ctx).Where("tournament_id = ?", tournamentID).Find(&schs).Error
	if err != nil {
		return nil, err
	}
	return snapshots(schs), nil
}

// TournamentOwn returns the subset of a tournament's schedules where
// userID is the proposer or the opponent.
func (h *Handler) TournamentOwn(ctx context.Context, tournamentID, userID string) ([]Snapshot, error) {
	var schs []store.Schedule
	err := h.store.DB().WithContext(ctx).
		Where("tournament_id = ? AND (proposer_id = ? OR opponent_id = ?)", tournamentID, userID, userID).
		Find(&schs).Error
	if err != nil {
		return nil, err
	}
	return snapshots(schs), nil
}

// Sweep emits a reminder notification to both parties of every agreed,
// unnotified schedule whose start_at falls within [now, now+1 week],
// and marks it notified (spec
// §4.H.4's periodic sweep). Called by internal/jobs' schedule ticker.
func (h *Handler) Sweep(ctx context.Context, now time.Time) ([]broadcast.Notification, error) {
	due, err := h.store.ListUnnotifiedDue(ctx, now)
	if err != nil {
		return nil, err
	}
	var notifications []broadcast.Notification
	for i := range due {
		sch := &due[i]
		update := Update{Kind: "Reminder", Schedule: snapshot(sch)}
		notifications = append(notifications,
			broadcast.Notification{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: sch.ProposerID}, Message: update},
			broadcast.Notification{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: sch.OpponentID}, Message: update},
		)
		if err := h.store.MarkNotified(ctx, sch.ID); err != nil {
			return nil, err
		}
	}
	return notifications, nil
}

func opponentOf(g *store.Game, userID string) (string, bool) {
	switch userID {
	case g.WhiteID:
		return g.BlackID, true
	case g.BlackID:
		return g.WhiteID, true
	default:
		return "", false
	}
}
