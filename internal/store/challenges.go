package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// CreateChallenge inserts a new Challenge row.
func (s *Store) CreateChallenge(ctx context.Context, c *Challenge) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// GetChallenge fetches a Challenge by id.
func (s *Store) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	var c Challenge
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// DeleteChallenge removes a Challenge row (Challenge.Delete, spec §4.H.1).
func (s *Store) DeleteChallenge(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Challenge{}, "id = ?", id).Error
}

// AcceptChallenge persists a new Game and deletes every Challenge
// touching either whiteID or blackID — including the accepted one —
// in a single transaction, returning the deleted challenge ids (spec
// §4.H.1's Accept: "create the Game and delete all challenges that
// conflict... the store returns the list of deleted IDs"), grounded
// on tournament.Service.RegisterPlayer's "one tx.Begin() for the
// whole multi-table mutation" shape.
func (s *Store) AcceptChallenge(ctx context.Context, g *Game, whiteID, blackID string) ([]string, error) {
	var deleted []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}

		var conflicts []Challenge
		if err := tx.Where("challenger_id IN ? OR opponent_id IN ?", []string{whiteID, blackID}, []string{whiteID, blackID}).
			Find(&conflicts).Error; err != nil {
			return err
		}
		for _, c := range conflicts {
			deleted = append(deleted, c.ID)
		}
		if len(deleted) == 0 {
			return nil
		}
		return tx.Delete(&Challenge{}, "id IN ?", deleted).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListPublicChallenges returns open Public challenges, for the
// challenge-list surface implied by spec §4.H.1.
func (s *Store) ListPublicChallenges(ctx context.Context) ([]Challenge, error) {
	var cs []Challenge
	err := s.db.WithContext(ctx).
		Where("visibility = ?", "Public").
		Order("created_at DESC").
		Find(&cs).Error
	return cs, err
}

// ListChallengesForOpponent returns every Direct challenge naming
// opponentID, for the bot REST surface's challenge inbox
// (original_source/apis/src/api/v1/bot/challenges.rs's
// Challenge::direct_challenges).
func (s *Store) ListChallengesForOpponent(ctx context.Context, opponentID string) ([]Challenge, error) {
	var cs []Challenge
	err := s.db.WithContext(ctx).
		Where("opponent_id = ? AND visibility = ?", opponentID, "Direct").
		Order("created_at DESC").
		Find(&cs).Error
	return cs, err
}
