package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// GetAccount fetches an Account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	var acc Account
	if err := s.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// CreateAccount inserts a new Account row.
func (s *Store) CreateAccount(ctx context.Context, acc *Account) error {
	return s.db.WithContext(ctx).Create(acc).Error
}

// GetAccountByEmail fetches a bot Account by its login email — the
// lookup get_token_handler.rs's User::find_by_email performs before
// checking the password hash.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	var acc Account
	if err := s.db.WithContext(ctx).First(&acc, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// GetRating returns the Rating row for (accountID, speed), or a fresh
// 1500/350 Rating if none exists yet — matching spec §3's implicit
// "every account has a rating per speed" default.
func (s *Store) GetRating(ctx context.Context, accountID, speed string) (*Rating, error) {
	var r Rating
	err := s.db.WithContext(ctx).First(&r, "account_id = ? AND speed = ?", accountID, speed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Rating{AccountID: accountID, Speed: speed, Rating: 1500, Deviation: 350}, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRating writes r, creating or updating the (account_id, speed) row.
func (s *Store) UpsertRating(ctx context.Context, r *Rating) error {
	return s.db.WithContext(ctx).Save(r).Error
}
