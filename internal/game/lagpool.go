package game

import (
	"sync"

	"github.com/hiveboardgame/realtime/internal/lag"
)

// LagPool hands out one lag.Tracker per (game, user) pair, creating
// it from the game's time control on first use. Handler.Turn reads
// through this pool rather than owning Trackers itself, so Trackers
// survive across the short per-request transactions spec §3's
// Ownership section requires (they are per-connection/session state,
// not store-persisted).
type LagPool struct {
	mu       sync.Mutex
	trackers map[string]*lag.Tracker // gameID+"|"+userID -> Tracker
}

// NewLagPool creates an empty LagPool.
func NewLagPool() *LagPool {
	return &LagPool{trackers: make(map[string]*lag.Tracker)}
}

// Tracker returns the Tracker for (gameID, userID), creating it from
// (baseMs, incMs) if this is the first move seen for that pair.
func (p *LagPool) Tracker(gameID, userID string, baseMs, incMs int64) *lag.Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := gameID + "|" + userID
	t, ok := p.trackers[key]
	if !ok {
		t = lag.NewTracker(baseMs, incMs)
		p.trackers[key] = t
	}
	return t
}

// Drop discards both players' Trackers once a game finishes.
func (p *LagPool) Drop(gameID, whiteID, blackID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.trackers, gameID+"|"+whiteID)
	delete(p.trackers, gameID+"|"+blackID)
}
