package store

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateGame inserts a new Game row.
func (s *Store) CreateGame(ctx context.Context, g *Game) error {
	return s.db.WithContext(ctx).Create(g).Error
}

// GetGame fetches a Game by id.
func (s *Store) GetGame(ctx context.Context, id string) (*Game, error) {
	var g Game
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

// WithGameForUpdate runs fn with the Game row locked FOR UPDATE inside
// a transaction, then persists whatever mutations fn made to the
// returned *Game. This is the short critical section spec §3's
// Ownership section calls for ("a short critical section per
// mutation is sufficient"), grounded on the teacher's
// currency.deductChipsInTx row-lock pattern
// (internal/currency/service.go).
func (s *Store) WithGameForUpdate(ctx context.Context, id string, fn func(tx *gorm.DB, g *Game) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g Game
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&g, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := fn(tx, &g); err != nil {
			return err
		}
		return tx.Save(&g).Error
	})
}

// ListGamesByTournament returns every Game belonging to a tournament.
func (s *Store) ListGamesByTournament(ctx context.Context, tournamentID string) ([]Game, error) {
	var gs []Game
	err := s.db.WithContext(ctx).Where("tournament_id = ?", tournamentID).Find(&gs).Error
	return gs, err
}

// HistoryEntry is a single (piece, position) move as recorded in
// Game.history (spec §3).
type HistoryEntry struct {
	Piece    string `json:"piece"`
	Position string `json:"position"`
}

// History decodes Game.HistoryJSON.
func (g *Game) History() ([]HistoryEntry, error) {
	if g.HistoryJSON == "" {
		return nil, nil
	}
	var h []HistoryEntry
	err := json.Unmarshal([]byte(g.HistoryJSON), &h)
	return h, err
}

// SetHistory encodes and stores history, keeping Turn == len(history)
// (spec §3 invariant: "len(history) == turn").
func (g *Game) SetHistory(h []HistoryEntry) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	g.HistoryJSON = string(b)
	g.Turn = len(h)
	return nil
}

// ControlEntry is a single (turn, GameControl) pair as recorded in
// Game.game_control_history (spec §3).
type ControlEntry struct {
	Turn    int    `json:"turn"`
	Variant string `json:"variant"`
	Color   string `json:"color"`
}

// ControlHistory decodes Game.ControlHistoryJSON.
func (g *Game) ControlHistory() ([]ControlEntry, error) {
	if g.ControlHistoryJSON == "" {
		return nil, nil
	}
	var h []ControlEntry
	err := json.Unmarshal([]byte(g.ControlHistoryJSON), &h)
	return h, err
}

// AppendControl appends a GameControl entry and re-encodes.
func (g *Game) AppendControl(e ControlEntry) error {
	h, err := g.ControlHistory()
	if err != nil {
		return err
	}
	h = append(h, e)
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	g.ControlHistoryJSON = string(b)
	return nil
}

// Hashes decodes Game.HashesJSON (ordered position hashes, spec §3).
func (g *Game) Hashes() ([]string, error) {
	if g.HashesJSON == "" {
		return nil, nil
	}
	var h []string
	err := json.Unmarshal([]byte(g.HashesJSON), &h)
	return h, err
}

// AppendHash appends a position hash and re-encodes.
func (g *Game) AppendHash(hash string) error {
	h, err := g.Hashes()
	if err != nil {
		return err
	}
	h = append(h, hash)
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	g.HashesJSON = string(b)
	return nil
}

// SetHashes replaces Game.HashesJSON wholesale — used by takeback to
// drop the last recorded position hash.
func (g *Game) SetHashes(h []string) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	g.HashesJSON = string(b)
	return nil
}

// MoveTimes decodes Game.MoveTimesJSON (duration-remaining-at-move, spec §3).
func (g *Game) MoveTimes() ([]int64, error) {
	if g.MoveTimesJSON == "" {
		return nil, nil
	}
	var mt []int64
	err := json.Unmarshal([]byte(g.MoveTimesJSON), &mt)
	return mt, err
}

// AppendMoveTime appends a remaining-time sample and re-encodes.
func (g *Game) AppendMoveTime(remainingMs int64) error {
	mt, err := g.MoveTimes()
	if err != nil {
		return err
	}
	mt = append(mt, remainingMs)
	return g.SetMoveTimes(mt)
}

// SetMoveTimes replaces Game.MoveTimesJSON wholesale — used by
// takeback to drop the last recorded move time.
func (g *Game) SetMoveTimes(mt []int64) error {
	b, err := json.Marshal(mt)
	if err != nil {
		return err
	}
	g.MoveTimesJSON = string(b)
	return nil
}
