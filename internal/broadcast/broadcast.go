// Package broadcast resolves an Envelope's Audience against the
// presence/subscription/global membership and fans it out to every
// matching connection (spec §4.F). It depends only on the Sink
// interface, not on internal/ws.Connection directly, so the
// transport implementation can change without touching this package
// (see DESIGN.md's Open Question decision on transport generation).
package broadcast

import (
	"sync"

	"github.com/hiveboardgame/realtime/internal/subscription"
)

// Sink is the delivery surface a connection exposes to the fabric.
type Sink interface {
	subscription.Member
	UserID() (string, bool)
	// Send attempts a non-blocking enqueue of payload. false means the
	// outbound buffer is full; the fabric responds by marking the
	// connection disconnected rather than blocking (spec §4.F: lossy
	// close).
	Send(payload []byte) bool
	Disconnect()
	// NextPingNonce records a new outstanding application-level ping
	// and returns its nonce, for internal/jobs' ping ticker (spec
	// §4.A's ping/pong cadence, distinct from the transport-level
	// heartbeat internal/ws's pumps send on their own).
	NextPingNonce() uint64
	// PingValueMs reports the most recently measured round-trip time.
	PingValueMs() float64
}

// AudienceKind tags which Audience variant an Envelope targets.
type AudienceKind int

const (
	AudienceGlobal AudienceKind = iota
	AudienceUser
	AudienceGame
	AudienceGameSpectators
	AudienceTournament
)

// Audience selects the recipients of an Envelope (spec §4.F table).
type Audience struct {
	Kind         AudienceKind
	UserID       string // AudienceUser
	GameID       string // AudienceGame / AudienceGameSpectators
	WhiteID      string // AudienceGameSpectators exclusion
	BlackID      string // AudienceGameSpectators exclusion
	TournamentID string // AudienceTournament
}

// Envelope pairs an already-encoded payload with the Audience it's
// delivered to — the unit Deliver actually writes to sockets.
type Envelope struct {
	Audience Audience
	Payload  []byte
}

// Notification pairs a not-yet-encoded domain message with its
// Audience — the unit domain handlers (internal/challenge,
// internal/game, ...) return, since they don't hold a reference to
// the wire codec. internal/router owns the codec and turns
// Notifications into Envelopes via EncodeAll before calling Deliver.
type Notification struct {
	Audience Audience
	Message  any
}

// EncodeAll encodes every Notification's Message with encode,
// producing the Envelopes Deliver consumes. A notification whose
// message fails to encode is dropped and its error collected.
func EncodeAll(notifications []Notification, encode func(any) ([]byte, error)) ([]Envelope, []error) {
	envelopes := make([]Envelope, 0, len(notifications))
	var errs []error
	for _, n := range notifications {
		payload, err := encode(n.Message)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		envelopes = append(envelopes, Envelope{Audience: n.Audience, Payload: payload})
	}
	return envelopes, errs
}

// subscribers is the subset of subscription.Registry the fabric reads.
type subscribers interface {
	GameMembers(gameID string) []subscription.Member
	TournamentMembers(tournamentID string) []subscription.Member
}

// Fabric delivers envelopes to their resolved audiences.
type Fabric struct {
	mu    sync.RWMutex
	all   map[Sink]struct{}
	subs  subscribers
}

// New creates a Fabric backed by subs for Game/Tournament audience resolution.
func New(subs subscribers) *Fabric {
	return &Fabric{
		all:  make(map[Sink]struct{}),
		subs: subs,
	}
}

// Register adds a connection to the Global audience pool. Every
// connection that has ever started a read/write pump must Register so
// it can receive Global broadcasts (spec §3's Subscription note:
// "Global membership is implicit").
func (f *Fabric) Register(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all[s] = struct{}{}
}

// Unregister removes a connection from the Global audience pool.
func (f *Fabric) Unregister(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.all, s)
}

// AllSinks returns every registered connection, for callers outside
// the request/response path (internal/jobs' ping ticker) that need to
// address every live connection individually rather than through an
// Audience.
func (f *Fabric) AllSinks() []Sink {
	return f.globalSnapshot()
}

// Deliver resolves and writes each envelope in order. Per (audience,
// recipient), delivery order matches the order envelopes were
// received by this call; across audiences no ordering is guaranteed
// (spec §4.F).
func (f *Fabric) Deliver(envelopes []Envelope) {
	for _, e := range envelopes {
		f.deliverOne(e)
	}
}

func (f *Fabric) deliverOne(e Envelope) {
	for _, sink := range f.resolve(e.Audience) {
		if !sink.Alive() {
			continue
		}
		if !sink.Send(e.Payload) {
			sink.Disconnect()
		}
	}
}

func (f *Fabric) resolve(a Audience) []Sink {
	switch a.Kind {
	case AudienceGlobal:
		return f.globalSnapshot()
	case AudienceUser:
		return f.filterGlobal(func(s Sink) bool {
			uid, ok := s.UserID()
			return ok && uid == a.UserID
		})
	case AudienceGame:
		return f.fromMembers(f.subs.GameMembers(a.GameID))
	case AudienceGameSpectators:
		return f.filterMembers(f.subs.GameMembers(a.GameID), func(s Sink) bool {
			uid, ok := s.UserID()
			if !ok {
				return true
			}
			return uid != a.WhiteID && uid != a.BlackID
		})
	case AudienceTournament:
		return f.fromMembers(f.subs.TournamentMembers(a.TournamentID))
	default:
		return nil
	}
}

func (f *Fabric) globalSnapshot() []Sink {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Sink, 0, len(f.all))
	for s := range f.all {
		out = append(out, s)
	}
	return out
}

func (f *Fabric) filterGlobal(keep func(Sink) bool) []Sink {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []Sink
	for s := range f.all {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (f *Fabric) fromMembers(members []subscription.Member) []Sink {
	out := make([]Sink, 0, len(members))
	for _, m := range members {
		if s, ok := m.(Sink); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f *Fabric) filterMembers(members []subscription.Member, keep func(Sink) bool) []Sink {
	var out []Sink
	for _, m := range members {
		s, ok := m.(Sink)
		if !ok {
			continue
		}
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
