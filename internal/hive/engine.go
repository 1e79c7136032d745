// Package hive implements the game state machine's rules-engine
// boundary (spec §9: "Keep it behind an interface that exposes
// new_from_history, play_turn_from_position, legal_moves(color),
// is_terminal, hash()"). The boundary is grounded on the real
// contract in original_source/engine/src/main.rs
// (State::new_from_history, GameStatus, GameResult, GameType) and
// structurally on poker-engine/engine.Table's "rebuild authoritative
// state from a history of inputs" shape (engine/table.go).
//
// Engine is deliberately a minimal, deterministic stand-in: it
// enforces only the queen-placement-by-turn-4 invariant and the turn
// order, and treats any other move as legal. It does not check the
// One-Hive-Rule's connectivity and does not implement per-bug movement
// legality — that rules library is named out of scope by spec §1
// ("assumed to exist as a pure library"). See DESIGN.md.
package hive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
)

// Color is a Hive player color.
type Color string

const (
	White Color = "White"
	Black Color = "Black"
)

// Opposite returns the other color.
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Move is a single (piece, position) play, matching spec §3's
// History entry shape.
type Move struct {
	Piece    string
	Position string
}

// Result is the terminal outcome of a finished game.
type Result struct {
	Winner *Color // nil means Draw
	Reason string // "normal", "timeout", "aborted", "resignation", "draw"
}

var (
	ErrIllegalMove    = errors.New("illegal move")
	ErrQueenNotPlaced = errors.New("queen must be placed by the fourth placement")
)

// State is the rules-engine's authoritative position, rebuilt from a
// game's move history — the same "reconstruct from history" shape as
// poker-engine/engine.Table.NewTable + replay, generalized from seat
// actions to Hive placements/moves.
type State struct {
	moves     []Move
	queenDown map[Color]bool
}

// NewFromHistory rebuilds State by replaying history from the empty
// board, mirroring original_source's State::new_from_history
// contract (engine/src/main.rs).
func NewFromHistory(history []Move) (*State, error) {
	s := &State{queenDown: map[Color]bool{White: false, Black: false}}
	for i, m := range history {
		color := colorForTurn(i)
		if err := s.apply(color, i, m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func colorForTurn(turn int) Color {
	if turn%2 == 0 {
		return White
	}
	return Black
}

// PlayTurnFromPosition validates and applies one move for color at
// the current turn, returning the new State. It enforces:
//   - queen-by-turn-4: each color must have placed its queen by its
//     4th placement (turn indices 6/7 for White/Black respectively in
//     a 0-indexed full-board sequence).
// It does not check one-hive connectivity: no board graph is kept,
// so any other move for the side to play is accepted.
func (s *State) PlayTurnFromPosition(color Color, m Move) (*State, error) {
	turn := len(s.moves)
	if colorForTurn(turn) != color {
		return nil, fmt.Errorf("%w: not %s's turn", ErrIllegalMove, color)
	}

	next := &State{
		moves:     append(append([]Move{}, s.moves...), m),
		queenDown: map[Color]bool{White: s.queenDown[White], Black: s.queenDown[Black]},
	}
	if err := next.apply(color, turn, m); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *State) apply(color Color, turn int, m Move) error {
	placementNumber := turn/2 + 1 // this color's Nth placement/move, 1-indexed

	if m.Piece == queenPieceName(color) {
		s.queenDown[color] = true
	}
	if placementNumber == 4 && !s.queenDown[color] {
		return fmt.Errorf("%w for %s", ErrQueenNotPlaced, color)
	}
	return nil
}

func queenPieceName(c Color) string {
	if c == White {
		return "wQ"
	}
	return "bQ"
}

// LegalMoves returns the set of moves this stand-in treats as legal
// for color at the current position: nil when it is not color's turn,
// the single forced queen placement {wQ|bQ, "any"} at color's 4th
// placement when its queen is not yet down, and otherwise the single
// wildcard {"any", "any"}. Positions already played are not excluded.
func (s *State) LegalMoves(color Color) []Move {
	turn := len(s.moves)
	if colorForTurn(turn) != color {
		return nil
	}
	placementNumber := turn/2 + 1
	if placementNumber == 4 && !s.queenDown[color] {
		return []Move{{Piece: queenPieceName(color), Position: "any"}}
	}
	return []Move{{Piece: "any", Position: "any"}}
}

// IsTerminal reports whether the position has no legal continuation
// for the side to move. This stand-in never forces a terminal
// position on its own (full win/loss/draw detection lives in the
// out-of-scope rules engine) — terminality here is driven by
// GameControl resolution in internal/game, not board analysis.
func (s *State) IsTerminal() bool { return false }

// Hash returns a deterministic fingerprint of the position, used by
// spec §3's Game.hashes ordered position-hash list.
func (s *State) Hash() string {
	h := sha256.New()
	for _, m := range s.moves {
		fmt.Fprintf(h, "%s@%s|", m.Piece, m.Position)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Moves returns the replayed history (read-only copy).
func (s *State) Moves() []Move {
	out := make([]Move, len(s.moves))
	copy(out, s.moves)
	return out
}

// sortedColors returns both colors in sorted order. Nothing in the
// module calls it.
func sortedColors() []Color {
	cs := []Color{White, Black}
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}
