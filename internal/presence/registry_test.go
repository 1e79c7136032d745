package presence

import "testing"

func TestRegistry_FirstTabReportsOnlineLastTabReportsOffline(t *testing.T) {
	r := New()
	acc := Account{ID: "u1", Username: "alice"}

	if wasFirst := r.AddTab(acc); !wasFirst {
		t.Fatalf("expected the first tab to cross 0->1")
	}
	if wasFirst := r.AddTab(acc); wasFirst {
		t.Fatalf("expected the second tab not to re-cross 0->1")
	}
	if !r.IsOnline("u1") {
		t.Fatalf("expected u1 to be online with 2 open tabs")
	}

	if wasLast := r.RemoveTab("u1"); wasLast {
		t.Fatalf("expected the first removed tab not to cross 1->0 with one tab left")
	}
	if !r.IsOnline("u1") {
		t.Fatalf("expected u1 to remain online with 1 tab left")
	}
	if wasLast := r.RemoveTab("u1"); !wasLast {
		t.Fatalf("expected the last removed tab to cross 1->0")
	}
	if r.IsOnline("u1") {
		t.Fatalf("expected u1 to be offline with 0 tabs")
	}
}

func TestRegistry_RemoveTabOnUnknownUserIsNoop(t *testing.T) {
	r := New()
	if wasLast := r.RemoveTab("ghost"); wasLast {
		t.Errorf("expected removing a tab for an unknown user to report false")
	}
}

func TestRegistry_OnlineUsersReflectsCurrentTabHolders(t *testing.T) {
	r := New()
	r.AddTab(Account{ID: "u1"})
	r.AddTab(Account{ID: "u2"})
	r.RemoveTab("u1")

	online := r.OnlineUsers()
	if len(online) != 1 || online[0].ID != "u2" {
		t.Fatalf("expected only u2 online, got %+v", online)
	}
}
