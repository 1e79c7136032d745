// Package jobs runs the periodic ticks spec §4.J names — heartbeat,
// ping, tournament-start poll, and schedule sweep — under a single
// Redis leader lock so exactly one process drives them even when the
// server is horizontally scaled. Grounded on the teacher's
// tournament.Starter: a ticker/stopChan loop calling back into a
// service, generalized from one job to four and wrapped in leader
// election instead of running unconditionally in every process.
package jobs

import (
	"context"
	"time"

	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/lock"
	"github.com/hiveboardgame/realtime/internal/logging"
	"github.com/hiveboardgame/realtime/internal/router"
	"github.com/hiveboardgame/realtime/internal/schedule"
	"github.com/hiveboardgame/realtime/internal/tournament"
)

var log = logging.New("jobs")

var leaderKey = lock.JobKey("runner")

// Config controls each ticker's period; zero fields fall back to the
// same defaults internal/config.Load() produces.
type Config struct {
	HeartbeatInterval     time.Duration
	PingInterval          time.Duration
	TournamentPollPeriod  time.Duration
	ScheduleSweepPeriod   time.Duration
}

// Runner owns the four periodic tickers.
type Runner struct {
	locks       *lock.Manager
	fabric      *broadcast.Fabric
	tournaments *tournament.Handler
	schedules   *schedule.Handler
	cfg         Config
}

// New creates a Runner bound to its collaborators.
func New(locks *lock.Manager, fabric *broadcast.Fabric, tournaments *tournament.Handler, schedules *schedule.Handler, cfg Config) *Runner {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 5 * time.Second
	}
	if cfg.TournamentPollPeriod == 0 {
		cfg.TournamentPollPeriod = 5 * time.Second
	}
	if cfg.ScheduleSweepPeriod == 0 {
		cfg.ScheduleSweepPeriod = time.Minute
	}
	return &Runner{locks: locks, fabric: fabric, tournaments: tournaments, schedules: schedules, cfg: cfg}
}

// Run blocks until ctx is cancelled, repeatedly contending for
// leadership and driving the tickers while held. A process that loses
// the lock (or never acquires it) simply retries — no jobs run twice.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l, err := r.locks.Acquire(ctx, leaderKey, lock.DefaultTTL)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(lock.DefaultAcquireTimeout):
			}
			continue
		}

		log.Println("acquired job-runner leadership")
		r.runAsLeader(ctx, l)
	}
}

// runAsLeader drives every ticker until ctx is cancelled or the lock's
// renewal fails (another process may then take over).
func (r *Runner) runAsLeader(ctx context.Context, l *lock.Lock) {
	defer func() {
		if err := l.Release(context.Background()); err != nil {
			log.Printf("releasing leadership lock: %v", err)
		}
	}()

	renew := time.NewTicker(lock.DefaultTTL / 2)
	heartbeat := time.NewTicker(r.cfg.HeartbeatInterval)
	ping := time.NewTicker(r.cfg.PingInterval)
	tournamentPoll := time.NewTicker(r.cfg.TournamentPollPeriod)
	scheduleSweep := time.NewTicker(r.cfg.ScheduleSweepPeriod)
	defer renew.Stop()
	defer heartbeat.Stop()
	defer ping.Stop()
	defer tournamentPoll.Stop()
	defer scheduleSweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-renew.C:
			if err := l.Extend(ctx, lock.DefaultTTL); err != nil {
				log.Printf("lost job-runner leadership: %v", err)
				return
			}
		case <-heartbeat.C:
			r.heartbeat()
		case <-ping.C:
			r.ping()
		case <-tournamentPoll.C:
			r.pollTournaments(ctx)
		case <-scheduleSweep.C:
			r.sweepSchedules(ctx)
		}
	}
}

// heartbeat exists as a tick point for process-level liveness metrics;
// the transport-level keepalive each connection sends is already
// handled by internal/ws's own WritePump ticker, so there is nothing
// further to push to clients here.
func (r *Runner) heartbeat() {}

// ping addresses every live connection directly (not through an
// Audience) since each needs its own nonce recorded against its own
// lag tracker.
func (r *Runner) ping() {
	for _, sink := range r.fabric.AllSinks() {
		nonce := sink.NextPingNonce()
		payload, err := router.Encode(router.ServerMessage{
			Kind:    "Ping",
			Payload: router.PingMessage{Nonce: nonce, Value: sink.PingValueMs()},
		})
		if err != nil {
			continue
		}
		if !sink.Send(payload) {
			sink.Disconnect()
		}
	}
}

func (r *Runner) pollTournaments(ctx context.Context) {
	notifications, err := r.tournaments.PollAutoStart(ctx, time.Now())
	if err != nil {
		log.Printf("tournament auto-start poll: %v", err)
		return
	}
	router.Deliver(r.fabric, notifications)
}

func (r *Runner) sweepSchedules(ctx context.Context) {
	notifications, err := r.schedules.Sweep(ctx, time.Now())
	if err != nil {
		log.Printf("schedule sweep: %v", err)
		return
	}
	router.Deliver(r.fabric, notifications)
}
