// Package lag implements spec §4.A's two lag-compensation concerns:
// a per-connection ping/pong round-trip tracker and a per-(user,game)
// move-time compensation quota, in the teacher's struct+sync.Mutex+
// exported-method idiom (internal/server/game/action_tracker.go).
package lag

import (
	"math"
	"sync"
	"time"
)

// estimator is a simple online mean/deviation accumulator ("lag_estimator"
// / "uncomp_stats" / "lag_stats" in spec §4.A), grounded on the
// teacher's preference for small stateful structs over a stats library.
type estimator struct {
	mean      float64
	deviation float64
	n         int
}

// record folds sample into the running mean/deviation using an
// exponentially-weighted update so recent samples dominate, matching
// spec's "moving stat of round-trip times" / EWMA language.
func (e *estimator) record(sample float64) {
	e.n++
	if e.n == 1 {
		e.mean = sample
		e.deviation = 0
		return
	}
	const alpha = 0.1
	delta := sample - e.mean
	e.mean += alpha * delta
	e.deviation += alpha * (math.Abs(delta) - e.deviation)
}

// PingTracker holds the outstanding ping nonces (each with its send
// time) and an EWMA of round-trip times for a single connection
// (spec §4.A).
type PingTracker struct {
	mu          sync.Mutex
	outstanding map[uint64]time.Time
	rtt         estimator
}

// NewPingTracker creates an empty PingTracker.
func NewPingTracker() *PingTracker {
	return &PingTracker{outstanding: make(map[uint64]time.Time)}
}

// RecordPing notes that a ping with nonce was sent at sentAt.
func (p *PingTracker) RecordPing(nonce uint64, sentAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding[nonce] = sentAt
}

// RecordPong resolves a returned pong nonce against its send time and
// folds the round trip into the EWMA. Returns false if nonce is
// unknown (stale or forged pong — ignored, not fatal).
func (p *PingTracker) RecordPong(nonce uint64, receivedAt time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sentAt, ok := p.outstanding[nonce]
	if !ok {
		return false
	}
	delete(p.outstanding, nonce)
	p.rtt.record(float64(receivedAt.Sub(sentAt).Milliseconds()))
	return true
}

// ValueMs returns the current EWMA round-trip time in milliseconds.
func (p *PingTracker) ValueMs() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rtt.mean
}

// Tracker holds the per-(user, game) quota/compensation state spec
// §4.A names: "{quota_gain, quota, quota_max, lag_estimator, uncomp_stats,
// lag_stats, comp_estimate?}".
type Tracker struct {
	mu           sync.Mutex
	quotaGain    float64
	quota        float64
	quotaMax     float64
	lagEstimator estimator
	uncompStats  estimator
	lagStats     estimator
	compEstimate *float64
	compSqErr    float64
}

// NewTracker initialises a Tracker from a game's (base_ms, inc_ms)
// time control, applying spec §4.A's exact formulas:
// `quota_gain = min(100, (base + 40·inc)/2500 + 15)/1000 × 1000` ms,
// `quota := 3·quota_gain`, `quota_max := 7·quota_gain`.
func NewTracker(baseMs, incMs int64) *Tracker {
	gain := math.Min(100, float64(baseMs+40*incMs)/2500+15) / 1000 * 1000
	return &Tracker{
		quotaGain: gain,
		quota:     3 * gain,
		quotaMax:  7 * gain,
	}
}

// OnMove applies a move's measured server-side lag ℓ (milliseconds),
// returning comp — the amount the game state machine subtracts from
// the mover's wall-clock consumption (spec §4.A):
// `comp = min(ℓ, quota); quota := min(quota + quota_gain − comp, quota_max)`.
func (t *Tracker) OnMove(lagMs float64) (comp float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	comp = math.Min(lagMs, t.quota)
	t.quota = math.Min(t.quota+t.quotaGain-comp, t.quotaMax)
	t.uncompStats.record(lagMs)
	t.lagStats.record(lagMs - comp)

	if t.compEstimate != nil {
		err := *t.compEstimate - comp
		t.compSqErr += err * err
	}
	return comp
}

// OnPong folds a half-round-trip sample into lag_estimator and
// recomputes comp_estimate (spec §4.A): `lag_estimator.record(rtt/2);
// comp_estimate := min(max(0, mean − 0.8·deviation), quota_max)`.
func (t *Tracker) OnPong(rttMs float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lagEstimator.record(rttMs / 2)
	est := math.Min(math.Max(0, t.lagEstimator.mean-0.8*t.lagEstimator.deviation), t.quotaMax)
	t.compEstimate = &est
}

// Quota returns the current compensation quota in milliseconds.
func (t *Tracker) Quota() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quota
}

// CompEstimate returns the current predicted compensation, if any
// pong has been observed yet.
func (t *Tracker) CompEstimate() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.compEstimate == nil {
		return 0, false
	}
	return *t.compEstimate, true
}
