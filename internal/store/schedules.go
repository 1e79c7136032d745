package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// CreateSchedule inserts a new Schedule row.
func (s *Store) CreateSchedule(ctx context.Context, sch *Schedule) error {
	return s.db.WithContext(ctx).Create(sch).Error
}

// GetSchedule fetches a Schedule by id.
func (s *Store) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	var sch Schedule
	if err := s.db.WithContext(ctx).First(&sch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sch, nil
}

// ListSchedulesByGame returns every Schedule proposed for a game.
func (s *Store) ListSchedulesByGame(ctx context.Context, gameID string) ([]Schedule, error) {
	var schs []Schedule
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("created_at ASC").Find(&schs).Error
	return schs, err
}

// AgreeSchedule marks one Schedule agreed and un-agrees every other
// schedule for the same game, inside one transaction — spec §3's
// invariant: "at most one agreed==true per game; accepting one
// schedule un-agrees all others for the same game".
func (s *Store) AgreeSchedule(ctx context.Context, id string) (*Schedule, error) {
	var agreed Schedule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&agreed, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&Schedule{}).
			Where("game_id = ? AND id <> ?", agreed.GameID, agreed.ID).
			Update("agreed", false).Error; err != nil {
			return err
		}
		agreed.Agreed = true
		return tx.Save(&agreed).Error
	})
	if err != nil {
		return nil, err
	}
	return &agreed, nil
}

// ListUnnotifiedDue returns agreed, not-yet-notified schedules whose
// start_at falls within [now, now+1w] — feeds the periodic sweep spec
// §4.H.4 describes ("agreed && notified==false && start_t within
// [now, now+1w]").
func (s *Store) ListUnnotifiedDue(ctx context.Context, now time.Time) ([]Schedule, error) {
	var schs []Schedule
	err := s.db.WithContext(ctx).
		Where("agreed = ? AND notified = ? AND start_at BETWEEN ? AND ?", true, false, now, now.Add(7*24*time.Hour)).
		Find(&schs).Error
	return schs, err
}

// MarkNotified sets Schedule.notified = true.
func (s *Store) MarkNotified(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Schedule{}).Where("id = ?", id).Update("notified", true).Error
}
