package broadcast

import (
	"testing"

	"github.com/hiveboardgame/realtime/internal/subscription"
)

type fakeSink struct {
	userID     string
	authed     bool
	alive      bool
	sendOK     bool
	received   [][]byte
	disconnected bool
}

func (f *fakeSink) Alive() bool           { return f.alive }
func (f *fakeSink) UserID() (string, bool) { return f.userID, f.authed }
func (f *fakeSink) Send(payload []byte) bool {
	if !f.sendOK {
		return false
	}
	f.received = append(f.received, payload)
	return true
}
func (f *fakeSink) Disconnect()          { f.disconnected = true }
func (f *fakeSink) NextPingNonce() uint64 { return 0 }
func (f *fakeSink) PingValueMs() float64  { return 0 }

func newFakeSink(userID string) *fakeSink {
	return &fakeSink{userID: userID, authed: userID != "", alive: true, sendOK: true}
}

type fakeSubs struct {
	game        map[string][]*fakeSink
	tournament  map[string][]*fakeSink
}

func (f *fakeSubs) GameMembers(gameID string) []subscription.Member {
	return toMembers(f.game[gameID])
}

func (f *fakeSubs) TournamentMembers(tournamentID string) []subscription.Member {
	return toMembers(f.tournament[tournamentID])
}

func toMembers(sinks []*fakeSink) []subscription.Member {
	out := make([]subscription.Member, len(sinks))
	for i, s := range sinks {
		out[i] = s
	}
	return out
}

func TestFabric_GameSpectatorsExcludesPlayers(t *testing.T) {
	white := newFakeSink("white")
	black := newFakeSink("black")
	spectator := newFakeSink("spectator")

	subs := &fakeSubs{game: map[string][]*fakeSink{"g1": {white, black, spectator}}}
	f := New(subs)

	f.Deliver([]Envelope{{
		Audience: Audience{Kind: AudienceGameSpectators, GameID: "g1", WhiteID: "white", BlackID: "black"},
		Payload:  []byte("tv"),
	}})

	if len(white.received) != 0 {
		t.Errorf("expected white to never receive a GameSpectators envelope, got %d", len(white.received))
	}
	if len(black.received) != 0 {
		t.Errorf("expected black to never receive a GameSpectators envelope, got %d", len(black.received))
	}
	if len(spectator.received) != 1 {
		t.Errorf("expected the spectator to receive the envelope, got %d", len(spectator.received))
	}
}

func TestFabric_AudienceUserDeliversOnlyToThatUser(t *testing.T) {
	a := newFakeSink("a")
	b := newFakeSink("b")

	f := New(&fakeSubs{})
	f.Register(a)
	f.Register(b)

	f.Deliver([]Envelope{{
		Audience: Audience{Kind: AudienceUser, UserID: "a"},
		Payload:  []byte("hi"),
	}})

	if len(a.received) != 1 {
		t.Errorf("expected a to receive the envelope, got %d", len(a.received))
	}
	if len(b.received) != 0 {
		t.Errorf("expected b not to receive the envelope, got %d", len(b.received))
	}
}

func TestFabric_FailedSendDisconnectsSink(t *testing.T) {
	s := newFakeSink("a")
	s.sendOK = false

	f := New(&fakeSubs{})
	f.Register(s)

	f.Deliver([]Envelope{{Audience: Audience{Kind: AudienceGlobal}, Payload: []byte("x")}})

	if !s.disconnected {
		t.Errorf("expected a failed Send to trigger Disconnect")
	}
}
