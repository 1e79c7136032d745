package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConnection_AnonymousUntilAuthenticated(t *testing.T) {
	c := New(nil)

	if userID, authed := c.UserID(); authed || userID != "" {
		t.Fatalf("expected an anonymous Connection, got userID=%q authed=%v", userID, authed)
	}
	if !c.Alive() {
		t.Fatalf("expected a fresh Connection to be alive")
	}

	c.Authenticate("u1", "alice", false, true)

	userID, authed := c.UserID()
	if !authed || userID != "u1" {
		t.Fatalf("expected authed=true userID=%q, got authed=%v userID=%q", "u1", authed, userID)
	}
	if c.Username() != "alice" {
		t.Errorf("expected username %q, got %q", "alice", c.Username())
	}
	if !c.IsAdmin() {
		t.Errorf("expected IsAdmin to reflect the Authenticate call")
	}
}

func TestConnection_SendBuffersUntilDrained(t *testing.T) {
	c := New(nil)

	if !c.Send([]byte("one")) {
		t.Fatalf("expected Send to succeed on a fresh Connection")
	}

	payload, ok := c.Pending()
	if !ok {
		t.Fatalf("expected a pending payload")
	}
	if string(payload) != "one" {
		t.Errorf("expected payload %q, got %q", "one", payload)
	}

	if _, ok := c.Pending(); ok {
		t.Fatalf("expected no further pending payload after draining the only one")
	}
}

func TestConnection_SendReturnsFalseWhenClosed(t *testing.T) {
	c := New(nil)
	c.closed.Store(true)

	if c.Send([]byte("x")) {
		t.Fatalf("expected Send to fail once the connection reports closed")
	}
	if c.Alive() {
		t.Fatalf("expected Alive to report false once closed")
	}
}

func TestConnection_SendReturnsFalseWhenBufferFull(t *testing.T) {
	c := New(nil)

	for i := 0; i < sendBuffer; i++ {
		if !c.Send([]byte("x")) {
			t.Fatalf("expected Send %d to succeed while under capacity", i)
		}
	}
	if c.Send([]byte("overflow")) {
		t.Fatalf("expected Send to report false once the outbound buffer is full")
	}
}

func TestConnection_NextPingNonceIsMonotonic(t *testing.T) {
	c := New(nil)

	first := c.NextPingNonce()
	second := c.NextPingNonce()
	if second <= first {
		t.Fatalf("expected NextPingNonce to be monotonically increasing, got %d then %d", first, second)
	}
}

func TestConnection_PingValueMsReflectsRecordedPong(t *testing.T) {
	c := New(nil)

	nonce := c.NextPingNonce()
	if !c.Ping.RecordPong(nonce, time.Now().Add(20*time.Millisecond)) {
		t.Fatalf("expected RecordPong to resolve the outstanding nonce")
	}
	if c.PingValueMs() <= 0 {
		t.Errorf("expected a positive round-trip estimate, got %v", c.PingValueMs())
	}
}

// TestConnection_DisconnectIsIdempotent exercises Disconnect against a
// real *websocket.Conn (the one method that touches it), dialed
// through an httptest server the way gorilla/websocket's own
// Upgrader/Dialer pairing is exercised in its examples — New(nil) is
// unsafe here since Disconnect calls c.conn.Close().
func TestConnection_DisconnectIsIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial test server: %v", err)
	}

	c := New(conn)
	c.Disconnect()
	if c.Alive() {
		t.Fatalf("expected Alive to report false after Disconnect")
	}

	// A second Disconnect must not panic (close of a closed channel).
	c.Disconnect()
}
