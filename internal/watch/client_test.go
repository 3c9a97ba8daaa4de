package watch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// flakyServer drops the first connection abnormally and closes the second
// one normally, sending one event on each.
func flakyServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Player-ID") != "alice" {
			http.Error(w, "identity", http.StatusBadRequest)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		n := atomic.AddInt32(&conns, 1)
		ctx := r.Context()
		ev, _ := chessdto.NewEvent(chessdto.EventSnapshot, "s1", int64(n), chessdto.SessionState{SessionID: "s1"})
		_ = wsjson.Write(ctx, c, ev)
		if n == 1 {
			_ = c.Close(websocket.StatusGoingAway, "restart")
			return
		}
		_ = c.Close(websocket.StatusNormalClosure, "session closed")
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

func TestReconnectsUntilNormalClose(t *testing.T) {
	srv, conns := flakyServer(t)
	c := NewClient(wsURL(srv), "alice", WithReconnect(3, 10*time.Millisecond), WithLogger(zap.NewNop()))

	var mu sync.Mutex
	var versions []int64
	var states []State
	c.OnEvent(func(ev chessdto.Event) {
		mu.Lock()
		versions = append(versions, ev.Version)
		mu.Unlock()
	})
	c.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
	_ = c.Close(context.Background())

	if got := atomic.LoadInt32(conns); got != 2 {
		t.Fatalf("connections = %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Fatalf("versions = %v", versions)
	}
	sawReconnect := false
	for _, s := range states {
		if s == StateReconnecting {
			sawReconnect = true
		}
	}
	if !sawReconnect || states[len(states)-1] != StateClosed {
		t.Fatalf("states = %v", states)
	}
}

func TestConnectFailure(t *testing.T) {
	srv, _ := flakyServer(t)
	c := NewClient(wsURL(srv), "bob", WithLogger(zap.NewNop()))
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected rejected handshake")
	}
	if c.State() != StateFailed {
		t.Fatalf("state = %v", c.State())
	}
	if err := c.Send(context.Background(), Command{Type: "ping"}); err == nil {
		t.Fatal("send without connection should fail")
	}
}

func TestBackoff(t *testing.T) {
	c := NewClient("ws://unused", "a", WithReconnect(5, 100*time.Millisecond))
	want := []time.Duration{100, 200, 400, 800, 1600, 3200, 3200}
	for i, w := range want {
		if got := c.backoff(i + 1); got != w*time.Millisecond {
			t.Fatalf("attempt %d = %v, want %v", i+1, got, w*time.Millisecond)
		}
	}
	if StateReconnecting.String() != "reconnecting" || State(99).String() != "disconnected" {
		t.Fatal("state names")
	}
}
