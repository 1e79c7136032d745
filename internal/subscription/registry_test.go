package subscription

import "testing"

type fakeMember struct {
	alive bool
}

func (f *fakeMember) Alive() bool { return f.alive }

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	r := New()
	m := &fakeMember{alive: true}

	r.SubscribeGame("g1", m)
	r.SubscribeGame("g1", m)
	r.SubscribeGame("g1", m)

	members := r.GameMembers("g1")
	if len(members) != 1 {
		t.Fatalf("expected subscribing 3 times to leave exactly 1 member, got %d", len(members))
	}

	r.UnsubscribeAll(m)
	if members := r.GameMembers("g1"); len(members) != 0 {
		t.Fatalf("expected no members after UnsubscribeAll, got %d", len(members))
	}
}

func TestRegistry_GameMembersPrunesDeadConnections(t *testing.T) {
	r := New()
	live := &fakeMember{alive: true}
	dead := &fakeMember{alive: false}

	r.SubscribeGame("g1", live)
	r.SubscribeGame("g1", dead)

	members := r.GameMembers("g1")
	if len(members) != 1 || members[0] != live {
		t.Fatalf("expected only the live member to survive pruning, got %+v", members)
	}

	// Pruning removes dead entries from the underlying set, not just
	// the returned slice.
	if members := r.GameMembers("g1"); len(members) != 1 {
		t.Fatalf("expected the dead member to stay pruned, got %d members", len(members))
	}
}

func TestRegistry_TournamentMembersIndependentOfGameMembers(t *testing.T) {
	r := New()
	m := &fakeMember{alive: true}

	r.SubscribeTournament("t1", m)
	if got := r.GameMembers("t1"); len(got) != 0 {
		t.Fatalf("expected tournament and game subscription sets to be independent, got %d game members", len(got))
	}
	if got := r.TournamentMembers("t1"); len(got) != 1 {
		t.Fatalf("expected 1 tournament member, got %d", len(got))
	}
}
