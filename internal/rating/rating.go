// Package rating updates an account's per-speed rating when a rated
// game concludes and records the change to an audit ledger, adapted
// from the teacher's currency.Service balance-mutation pattern
// (internal/currency/service.go: lock the row, compute before/after,
// write an audit record, all inside one transaction) — here the
// "balance" is a Glicko-style rating/deviation pair instead of a chip
// count.
//
// The update itself is a deterministic stand-in, not a full Glicko-2
// implementation: spec §9 puts the rules engine and rating math
// outside this module's rules-authority boundary, so this package
// only needs a plausible, testable rating delta function.
package rating

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hiveboardgame/realtime/internal/store"
)

// Score is the game outcome from the perspective of the rated player:
// 1.0 win, 0.5 draw, 0.0 loss.
type Score float64

const (
	Win  Score = 1.0
	Draw Score = 0.5
	Loss Score = 0.0
)

// kFactor bounds how far a single result can move a rating, the same
// role BasisPointsTotal plays for the teacher's prize math — a fixed
// constant rather than a tunable, since spec leaves tuning out of scope.
const kFactor = 32.0

// Speed classifies a game's time control into the rating bucket spec
// §3's `Map<Speed, Rating>` is keyed by, using the common
// estimated-game-length convention (base + 40×increment, in seconds).
// Non-RealTime modes map directly onto their own bucket.
func Speed(timeMode string, baseSec, incSec int) string {
	switch timeMode {
	case "Correspondence":
		return "Correspondence"
	case "Untimed":
		return "Untimed"
	}
	estimate := baseSec + 40*incSec
	switch {
	case estimate <= 120:
		return "Bullet"
	case estimate <= 600:
		return "Blitz"
	case estimate <= 1800:
		return "Rapid"
	default:
		return "Classical"
	}
}

// Delta computes the rating change for a player rated `rating` facing
// an opponent rated `opponentRating`, given the observed score. This
// is the standard Elo expected-score update; it's a stand-in for the
// Glicko-2 algorithm a production Hive rating system would use.
func Delta(rating, opponentRating float64, score Score) float64 {
	expected := 1.0 / (1.0 + math.Pow(10, (opponentRating-rating)/400))
	return kFactor * (float64(score) - expected)
}

// Service applies rated-game results to store.Rating rows and writes
// a store.RatingChange audit record, inside one transaction per
// player — grounded on currency.Service.deductChipsInTx's row-lock +
// audit-record shape.
type Service struct {
	db *gorm.DB
}

// NewService creates a Service bound to the store's database handle.
func NewService(s *store.Store) *Service {
	return &Service{db: s.DB()}
}

// Apply updates accountID's rating at speed for a single game result
// against an opponent rated opponentRating, and returns the resulting
// store.RatingChange.
func (s *Service) Apply(ctx context.Context, accountID, speed, gameID string, opponentRating float64, score Score) (*store.RatingChange, error) {
	var change store.RatingChange

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r store.Rating
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&r, "account_id = ? AND speed = ?", accountID, speed).Error
		if err == gorm.ErrRecordNotFound {
			r = store.Rating{AccountID: accountID, Speed: speed, Rating: 1500, Deviation: 350}
			if err := tx.Create(&r).Error; err != nil {
				return fmt.Errorf("failed to seed rating: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock rating: %w", err)
		}

		before := r.Rating
		devBefore := r.Deviation
		delta := Delta(before, opponentRating, score)

		r.Rating = before + delta
		r.Deviation = math.Max(30, devBefore*0.98)

		if err := tx.Save(&r).Error; err != nil {
			return fmt.Errorf("failed to update rating: %w", err)
		}

		change = store.RatingChange{
			ID:              uuid.New().String(),
			AccountID:       accountID,
			Speed:           speed,
			GameID:          gameID,
			RatingBefore:    before,
			RatingAfter:     r.Rating,
			DeviationBefore: devBefore,
			DeviationAfter:  r.Deviation,
		}
		if err := tx.Create(&change).Error; err != nil {
			return fmt.Errorf("failed to record rating change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}
