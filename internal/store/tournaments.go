package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTournament inserts a new Tournament row.
func (s *Store) CreateTournament(ctx context.Context, t *Tournament) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// GetTournament fetches a Tournament by id.
func (s *Store) GetTournament(ctx context.Context, id string) (*Tournament, error) {
	var t Tournament
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// WithTournamentForUpdate locks a Tournament row FOR UPDATE for the
// duration of fn, then persists fn's mutations — grounded on the
// teacher's tournament.Service.RegisterPlayer transaction shape
// (internal/tournament/service.go), adapted to row-locking the way
// currency.Service does rather than gorm's bare tx.Begin().
func (s *Store) WithTournamentForUpdate(ctx context.Context, id string, fn func(tx *gorm.DB, t *Tournament) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := fn(tx, &t); err != nil {
			return err
		}
		return tx.Save(&t).Error
	})
}

// ListTournamentsDueToStart returns NotStarted tournaments whose
// start_at has passed — feeds internal/jobs' tournament-start-poll
// ticker (spec §4.J, grounded on tournament/starter.go's ticker loop).
func (s *Store) ListTournamentsDueToStart(ctx context.Context, now time.Time) ([]Tournament, error) {
	var ts []Tournament
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_at IS NOT NULL AND start_at <= ?", "NotStarted", now).
		Find(&ts).Error
	return ts, err
}

// idList is the JSON shape used for Invitees/Players/Organizers/Games.
type idList []string

func decodeIDs(raw string) (idList, error) {
	if raw == "" {
		return nil, nil
	}
	var ids idList
	err := json.Unmarshal([]byte(raw), &ids)
	return ids, err
}

func encodeIDs(ids idList) (string, error) {
	b, err := json.Marshal(ids)
	return string(b), err
}

// Players decodes Tournament.PlayersJSON.
func (t *Tournament) Players() ([]string, error) { return decodeIDs(t.PlayersJSON) }

// SetPlayers encodes and stores the players list.
func (t *Tournament) SetPlayers(ids []string) error {
	enc, err := encodeIDs(ids)
	if err != nil {
		return err
	}
	t.PlayersJSON = enc
	return nil
}

// Organizers decodes Tournament.OrganizersJSON.
func (t *Tournament) Organizers() ([]string, error) { return decodeIDs(t.OrganizersJSON) }

// SetOrganizers encodes and stores the organizers list. spec §3
// invariant: "organizers are non-empty".
func (t *Tournament) SetOrganizers(ids []string) error {
	enc, err := encodeIDs(ids)
	if err != nil {
		return err
	}
	t.OrganizersJSON = enc
	return nil
}

// Invitees decodes Tournament.InviteesJSON.
func (t *Tournament) Invitees() ([]string, error) { return decodeIDs(t.InviteesJSON) }

// SetInvitees encodes and stores the invitees list.
func (t *Tournament) SetInvitees(ids []string) error {
	enc, err := encodeIDs(ids)
	if err != nil {
		return err
	}
	t.InviteesJSON = enc
	return nil
}

// Games decodes Tournament.GamesJSON.
func (t *Tournament) Games() ([]string, error) { return decodeIDs(t.GamesJSON) }

// AppendGame appends a GameId to the tournament's games list.
func (t *Tournament) AppendGame(gameID string) error {
	ids, err := t.Games()
	if err != nil {
		return err
	}
	ids = append(ids, gameID)
	enc, err := encodeIDs(ids)
	if err != nil {
		return err
	}
	t.GamesJSON = enc
	return nil
}

// Tiebreakers decodes Tournament.TiebreakersJSON.
func (t *Tournament) Tiebreakers() ([]string, error) {
	if t.TiebreakersJSON == "" {
		return nil, nil
	}
	var tb []string
	err := json.Unmarshal([]byte(t.TiebreakersJSON), &tb)
	return tb, err
}

// SetTiebreakers encodes and stores the ordered tiebreaker list.
func (t *Tournament) SetTiebreakers(tb []string) error {
	b, err := json.Marshal(tb)
	if err != nil {
		return err
	}
	t.TiebreakersJSON = string(b)
	return nil
}
