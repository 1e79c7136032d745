package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/hive"
	"github.com/hiveboardgame/realtime/internal/rating"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/subscription"
)

var (
	ErrGameOver     = errors.New("game has already ended")
	ErrNotYourTurn  = errors.New("not your turn to move")
	ErrNotAPlayer   = errors.New("not a player in this game")
	ErrGameNotReadyToStart = errors.New("game is not awaiting a Start readiness vote")
)

// Handler serves the Game sub-actions Turn/Control/CheckTime/Join/Start
// (spec §4.H.2), calling into internal/hive's pure functions inside
// store.WithGameForUpdate's row-locked critical section.
type Handler struct {
	store     *store.Store
	ratings   *rating.Service
	chat      *chatlog.Store
	subs      *subscription.Registry
	lag       *LagPool
	readiness *ReadinessTracker
}

// New creates a Handler bound to its collaborators.
func New(s *store.Store, ratings *rating.Service, chat *chatlog.Store, subs *subscription.Registry) *Handler {
	return &Handler{
		store:     s,
		ratings:   ratings,
		chat:      chat,
		subs:      subs,
		lag:       NewLagPool(),
		readiness: NewReadinessTracker(),
	}
}

// Turn plays one move for userID (spec §4.H.2's Turn handler).
func (h *Handler) Turn(ctx context.Context, gameID, userID string, move hive.Move) ([]broadcast.Notification, error) {
	var terminal bool

	err := h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, g *store.Game) error {
		if g.Status == string(hive.StatusFinished) || g.Status == string(hive.StatusAdjudicated) {
			return ErrGameOver
		}
		mover := moverColor(g.Turn)
		if moverID(g, mover) != userID {
			return ErrNotYourTurn
		}

		entries, err := g.History()
		if err != nil {
			return err
		}
		state, err := hive.NewFromHistory(toMoves(entries))
		if err != nil {
			return err
		}
		next, err := state.PlayTurnFromPosition(mover, move)
		if err != nil {
			return err
		}

		comp := h.compensation(g, userID)
		h.applyClock(g, mover, comp)

		entries = append(entries, store.HistoryEntry{Piece: move.Piece, Position: move.Position})
		if err := g.SetHistory(entries); err != nil {
			return err
		}
		if err := g.AppendHash(next.Hash()); err != nil {
			return err
		}
		if remaining := timeLeft(g, mover); remaining != nil {
			if err := g.AppendMoveTime(*remaining); err != nil {
				return err
			}
		}
		now := time.Now()
		g.LastInteraction = &now

		// next.IsTerminal() never reports true in this stand-in engine
		// (see hive.State.IsTerminal); kept so a future
		// full-legality engine's terminal signal closes ratings without
		// touching this handler.
		if next.IsTerminal() {
			terminal = true
			g.Status = string(hive.StatusFinished)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if terminal {
		if err := h.closeRatings(ctx, gameID, nil, "normal"); err != nil {
			return nil, err
		}
	}

	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	notifications := []broadcast.Notification{
		{
			Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: opponentOf(g, userID)},
			Message:  GameUrgent{Games: []GameSnapshot{snapshot(g)}},
		},
		{
			Audience: broadcast.Audience{Kind: broadcast.AudienceGame, GameID: gameID},
			Message:  GameReaction{Kind: "Turn", Game: snapshot(g)},
		},
	}
	if g.TimeMode == "RealTime" {
		notifications = append(notifications, broadcast.Notification{
			Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
			Message:  GameReaction{Kind: "Tv", Game: snapshot(g)},
		})
	}
	return notifications, nil
}

// ColorOf resolves which side userID plays in gameID, so callers
// outside this package (internal/router) can populate hive.Control's
// Color field before calling Control without duplicating colorOf's
// lookup rules.
func (h *Handler) ColorOf(ctx context.Context, gameID, userID string) (hive.Color, error) {
	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return "", err
	}
	if userID != g.WhiteID && userID != g.BlackID {
		return "", ErrNotAPlayer
	}
	return colorOf(g, userID), nil
}

// Control applies one GameControl action (spec §4.H.2's Control handler).
func (h *Handler) Control(ctx context.Context, gameID, userID string, c hive.Control) ([]broadcast.Notification, error) {
	var (
		effects     []hive.Effect
		whiteID     string
		blackID     string
		finishedNow bool
	)

	err := h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, g *store.Game) error {
		whiteID, blackID = g.WhiteID, g.BlackID
		if colorOf(g, userID) != c.Color {
			return ErrNotAPlayer
		}

		s, err := gameStateOf(g)
		if err != nil {
			return err
		}

		next, eff, err := hive.Apply(s, hive.Input{Kind: hive.InputControl, Issuer: c.Color, Control: c})
		if err != nil {
			return err
		}
		effects = eff
		g.Status = string(next.Status)
		if err := g.AppendControl(store.ControlEntry{Turn: g.Turn, Variant: string(c.Kind), Color: string(c.Color)}); err != nil {
			return err
		}

		switch c.Kind {
		case hive.ControlAbort:
			g.Status = string(hive.StatusFinished)
			finishedNow = true
		case hive.ControlResign:
			g.Status = string(hive.StatusFinished)
			finishedNow = true
		case hive.ControlDrawAccept:
			g.Status = string(hive.StatusFinished)
			finishedNow = true
		case hive.ControlTakebackAccept:
			entries, err := g.History()
			if err != nil {
				return err
			}
			if len(entries) > 0 {
				entries = entries[:len(entries)-1]
			}
			if err := g.SetHistory(entries); err != nil {
				return err
			}
			hashes, err := g.Hashes()
			if err != nil {
				return err
			}
			if len(hashes) > 0 {
				hashes = hashes[:len(hashes)-1]
			}
			times, err := g.MoveTimes()
			if err != nil {
				return err
			}
			if len(times) > 0 {
				restored := times[len(times)-1]
				times = times[:len(times)-1]
				if colorForTurn(len(entries)) == hive.White {
					g.WhiteTimeLeftMs = &restored
				} else {
					g.BlackTimeLeftMs = &restored
				}
			}
			if err := g.SetHashes(hashes); err != nil {
				return err
			}
			if err := g.SetMoveTimes(times); err != nil {
				return err
			}
		}
		now := time.Now()
		g.LastInteraction = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finishedNow && c.Kind == hive.ControlResign {
		winner := c.Color.Opposite()
		if err := h.closeRatings(ctx, gameID, &winner, "resignation"); err != nil {
			return nil, err
		}
	} else if finishedNow && c.Kind == hive.ControlDrawAccept {
		if err := h.closeRatings(ctx, gameID, nil, "draw"); err != nil {
			return nil, err
		}
	} else if finishedNow && c.Kind == hive.ControlAbort {
		h.lag.Drop(gameID, whiteID, blackID)
		h.readiness.Clear(gameID)
	}

	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	notifications := []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceGame, GameID: gameID},
		Message:  GameReaction{Kind: "Control", Game: snapshot(g), Control: &ControlInfo{Kind: string(c.Kind), Color: string(c.Color)}},
	}}
	for _, eff := range effects {
		if eff == hive.EffectNotifyOpponent {
			notifications = append(notifications, broadcast.Notification{
				Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: opponentOf(g, userID)},
				Message:  GameUrgent{Games: []GameSnapshot{snapshot(g)}},
			})
		}
	}
	if g.TimeMode == "RealTime" && g.Status == string(hive.StatusInProgress) {
		notifications = append(notifications, broadcast.Notification{
			Audience: broadcast.Audience{Kind: broadcast.AudienceGlobal},
			Message:  GameReaction{Kind: "Tv", Game: snapshot(g)},
		})
	}
	return notifications, nil
}

// CheckTime closes a game on flag if the mover's clock has expired
// (spec §4.H.2's CheckTime handler).
func (h *Handler) CheckTime(ctx context.Context, gameID string) ([]broadcast.Notification, error) {
	var expired bool
	var winner hive.Color

	err := h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, g *store.Game) error {
		if g.Status != string(hive.StatusInProgress) {
			return nil
		}
		mover := moverColor(g.Turn)
		remaining := timeLeft(g, mover)
		if remaining == nil {
			return nil
		}
		now := time.Now()
		elapsedMs := now.Sub(lastInteraction(g)).Milliseconds()
		if *remaining-elapsedMs > 0 {
			return nil
		}
		expired = true
		winner = mover.Opposite()
		g.Status = string(hive.StatusFinished)
		g.LastInteraction = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !expired {
		return nil, hive.ErrTimeNotExpired
	}
	if err := h.closeRatings(ctx, gameID, &winner, "timeout"); err != nil {
		return nil, err
	}

	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceGame, GameID: gameID},
		Message:  GameReaction{Kind: "TimedOut", Game: snapshot(g)},
	}}, nil
}

// Join subscribes conn to gameID's updates and returns the snapshot
// and chat replay window a newly-joined connection needs (spec
// §4.H.2's Join handler).
func (h *Handler) Join(ctx context.Context, gameID string, conn subscription.Member, requesterID string) (JoinSnapshot, error) {
	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return JoinSnapshot{}, err
	}
	h.subs.SubscribeGame(gameID, conn)

	key := chatlog.GamePublicKey(gameID)
	if requesterID == g.WhiteID || requesterID == g.BlackID {
		key = chatlog.GamePrivateKey(gameID)
	}
	window := h.chat.Window(key)
	lines := make([]ChatLine, len(window))
	for i, c := range window {
		lines[i] = ChatLine{UserID: c.Message.UserID, Username: c.Message.Username, Text: c.Message.Text, Turn: c.Message.Turn, Timestamp: c.Message.Timestamp}
	}

	return JoinSnapshot{Game: snapshot(g), Chat: lines}, nil
}

// Start records a readiness vote for a NotStarted tournament game and
// starts it once both players have signalled Ready (spec §4.H.2's
// Start handler).
func (h *Handler) Start(ctx context.Context, gameID, userID string) ([]broadcast.Notification, error) {
	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.GameStart != "Ready" || g.Status != string(hive.StatusNotStarted) {
		return nil, ErrGameNotReadyToStart
	}
	opponent := opponentOf(g, userID)

	if !h.readiness.MarkReady(gameID, userID, opponent) {
		return []broadcast.Notification{
			{Audience: broadcast.Audience{Kind: broadcast.AudienceGame, GameID: gameID}, Message: GameReaction{Kind: "Ready", Game: snapshot(g)}},
			{Audience: broadcast.Audience{Kind: broadcast.AudienceUser, UserID: opponent}, Message: GameReaction{Kind: "Ready", Game: snapshot(g)}},
		}, nil
	}

	err = h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, g *store.Game) error {
		g.Status = string(hive.StatusInProgress)
		now := time.Now()
		g.LastInteraction = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.readiness.Clear(gameID)

	g, err = h.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return []broadcast.Notification{{
		Audience: broadcast.Audience{Kind: broadcast.AudienceGame, GameID: gameID},
		Message:  GameReaction{Kind: "Started", Game: snapshot(g)},
	}}, nil
}

// NewGameRequest is the set of parameters CreateGame needs to start a
// fresh Game row, used by Tournament's Start-handler round pairing
// (spec §4.H.3). Challenge.Accept does not use it: it builds its Game
// row itself and persists it through store.AcceptChallenge.
type NewGameRequest struct {
	WhiteID       string
	BlackID       string
	TimeMode      string
	TimeBase      *int
	TimeIncrement *int
	DaysPerMove   *int
	TotalTime     *int
	Rated         bool
	TournamentID  *string
	// GameStart gates whether players must exchange a Start readiness
	// vote (tournament games) or begin InProgress immediately
	// (challenge-originated games).
	GameStart string
}

// CreateGame persists a new Game for req and returns it. Its only
// caller is Tournament.Start; Challenge.Accept inserts its Game inside
// store.AcceptChallenge's transaction instead, so it can delete the
// conflicting challenges atomically. Neither path calls internal/hive.
func (h *Handler) CreateGame(ctx context.Context, req NewGameRequest) (*store.Game, error) {
	status := string(hive.StatusInProgress)
	var lastInteraction *time.Time
	if req.GameStart == "Ready" {
		status = string(hive.StatusNotStarted)
	} else {
		now := time.Now()
		lastInteraction = &now
	}

	var whiteMs, blackMs *int64
	if req.TimeMode == "RealTime" && req.TimeBase != nil {
		ms := int64(*req.TimeBase)
		w, b := ms, ms
		whiteMs, blackMs = &w, &b
	}

	gameStart := req.GameStart
	if gameStart == "" {
		gameStart = "Moves"
	}

	g := &store.Game{
		ID:              uuid.New().String(),
		WhiteID:         req.WhiteID,
		BlackID:         req.BlackID,
		Status:          status,
		Turn:            0,
		TimeMode:        req.TimeMode,
		TimeBase:        req.TimeBase,
		TimeIncrement:   req.TimeIncrement,
		WhiteTimeLeftMs: whiteMs,
		BlackTimeLeftMs: blackMs,
		LastInteraction: lastInteraction,
		TournamentID:    req.TournamentID,
		GameStart:       gameStart,
		Rated:           req.Rated,
	}
	if err := h.store.CreateGame(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// closeRatings recomputes both players' ratings for a finished rated
// game and persists the result/ratings-at-end columns, grounded on
// currency.deductChipsInTx's "one transaction per affected balance"
// shape via rating.Service.Apply.
func (h *Handler) closeRatings(ctx context.Context, gameID string, winner *hive.Color, reason string) error {
	g, err := h.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}

	result := reason
	g.Result = &result
	if err := h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, gg *store.Game) error {
		gg.Result = &result
		return nil
	}); err != nil {
		return err
	}
	h.lag.Drop(gameID, g.WhiteID, g.BlackID)
	h.readiness.Clear(gameID)

	if !g.Rated {
		return nil
	}

	base, inc := 0, 0
	if g.TimeBase != nil {
		base = *g.TimeBase
	}
	if g.TimeIncrement != nil {
		inc = *g.TimeIncrement
	}
	speed := rating.Speed(g.TimeMode, base/1000, inc/1000)

	whiteRating, err := h.store.GetRating(ctx, g.WhiteID, speed)
	if err != nil {
		return err
	}
	blackRating, err := h.store.GetRating(ctx, g.BlackID, speed)
	if err != nil {
		return err
	}

	whiteScore, blackScore := rating.Draw, rating.Draw
	if winner != nil {
		if *winner == hive.White {
			whiteScore, blackScore = rating.Win, rating.Loss
		} else {
			whiteScore, blackScore = rating.Loss, rating.Win
		}
	}

	whiteChange, err := h.ratings.Apply(ctx, g.WhiteID, speed, gameID, blackRating.Rating, whiteScore)
	if err != nil {
		return err
	}
	blackChange, err := h.ratings.Apply(ctx, g.BlackID, speed, gameID, whiteRating.Rating, blackScore)
	if err != nil {
		return err
	}

	return h.store.WithGameForUpdate(ctx, gameID, func(tx *gorm.DB, gg *store.Game) error {
		gg.WhiteRatingAtEnd = &whiteChange.RatingAfter
		gg.BlackRatingAtEnd = &blackChange.RatingAfter
		return nil
	})
}

// compensation computes the lag-compensation amount for userID's move
// on g via the per-(user, game) Tracker, 0 for non-RealTime games
// (spec §4.H.2 step 3).
func (h *Handler) compensation(g *store.Game, userID string) float64 {
	if g.TimeMode != "RealTime" {
		return 0
	}
	base, inc := 0, 0
	if g.TimeBase != nil {
		base = *g.TimeBase
	}
	if g.TimeIncrement != nil {
		inc = *g.TimeIncrement
	}
	tracker := h.lag.Tracker(g.ID, userID, int64(base), int64(inc))
	est, ok := tracker.CompEstimate()
	if !ok {
		return 0
	}
	return tracker.OnMove(est)
}

// applyClock subtracts the mover's elapsed, compensated time since
// last_interaction and credits the configured increment (spec
// §4.H.2 step 3).
func (h *Handler) applyClock(g *store.Game, mover hive.Color, compMs float64) {
	remaining := timeLeft(g, mover)
	if remaining == nil {
		return
	}
	elapsed := time.Since(lastInteraction(g)).Milliseconds()
	spent := elapsed - int64(compMs)
	if spent < 0 {
		spent = 0
	}
	left := *remaining - spent
	if g.TimeIncrement != nil {
		left += int64(*g.TimeIncrement)
	}
	if mover == hive.White {
		g.WhiteTimeLeftMs = &left
	} else {
		g.BlackTimeLeftMs = &left
	}
}

func moverColor(turn int) hive.Color { return colorForTurn(turn) }

func colorForTurn(turn int) hive.Color {
	if turn%2 == 0 {
		return hive.White
	}
	return hive.Black
}

func moverID(g *store.Game, c hive.Color) string {
	if c == hive.White {
		return g.WhiteID
	}
	return g.BlackID
}

func colorOf(g *store.Game, userID string) hive.Color {
	if userID == g.WhiteID {
		return hive.White
	}
	return hive.Black
}

func opponentOf(g *store.Game, userID string) string {
	if userID == g.WhiteID {
		return g.BlackID
	}
	return g.WhiteID
}

func timeLeft(g *store.Game, c hive.Color) *int64 {
	if c == hive.White {
		return g.WhiteTimeLeftMs
	}
	return g.BlackTimeLeftMs
}

func lastInteraction(g *store.Game) time.Time {
	if g.LastInteraction != nil {
		return *g.LastInteraction
	}
	return g.CreatedAt
}

func toMoves(entries []store.HistoryEntry) []hive.Move {
	moves := make([]hive.Move, len(entries))
	for i, e := range entries {
		moves[i] = hive.Move{Piece: e.Piece, Position: e.Position}
	}
	return moves
}

func gameStateOf(g *store.Game) (hive.GameState, error) {
	controls, err := g.ControlHistory()
	if err != nil {
		return hive.GameState{}, err
	}
	hc := make([]hive.Control, len(controls))
	for i, c := range controls {
		hc[i] = hive.Control{Kind: hive.ControlKind(c.Variant), Color: hive.Color(c.Color)}
	}
	return hive.GameState{
		Status:          hive.Status(g.Status),
		Turn:            g.Turn,
		Mover:           colorForTurn(g.Turn),
		ControlHistory:  hc,
		WhiteTimeLeftMs: derefOr(g.WhiteTimeLeftMs, 0),
		BlackTimeLeftMs: derefOr(g.BlackTimeLeftMs, 0),
	}, nil
}

func derefOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}
