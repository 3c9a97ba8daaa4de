package httpapi

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/watch"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func listen(t *testing.T, e *testEnv) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return ln.Addr().String()
}

func nextEvent(t *testing.T, ch <-chan chessdto.Event) chessdto.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
	}
	return chessdto.Event{}
}

func TestWebSocketStream(t *testing.T) {
	e := newTestEnv(t)
	id, white, black := e.pair(t, "alice", "bob")
	addr := listen(t, e)

	events := make(chan chessdto.Event, 16)
	c := watch.NewClient("ws://"+addr+"/ws/games/"+id, white,
		watch.WithReconnect(0, 0),
		watch.WithLogger(zap.NewNop()),
	)
	c.OnEvent(func(ev chessdto.Event) { events <- ev })
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close(ctx)

	snap := nextEvent(t, events)
	if snap.Type != chessdto.EventSnapshot {
		t.Fatalf("first event = %+v", snap)
	}
	var st chessdto.SessionState
	if err := snap.Decode(&st); err != nil || st.SessionID != id {
		t.Fatalf("snapshot = %+v %v", st, err)
	}

	if _, err := e.reg.SubmitMove(ctx, id, white, "e2", "e4", ""); err != nil {
		t.Fatalf("move: %v", err)
	}
	ev := nextEvent(t, events)
	if ev.Type != chessdto.EventMove || ev.Version != st.Version+1 {
		t.Fatalf("move event = %+v", ev)
	}

	if err := c.Send(ctx, watch.Command{Type: "chat", Payload: chessdto.ChatRequest{Text: "hi"}}); err != nil {
		t.Fatalf("send chat: %v", err)
	}
	ev = nextEvent(t, events)
	var chat chessdto.ChatPayload
	if ev.Type != chessdto.EventChat || ev.Decode(&chat) != nil || chat.From != white || chat.Text != "hi" {
		t.Fatalf("chat event = %+v", ev)
	}

	// white already moved
	if err := c.Send(ctx, watch.Command{Type: "move", Payload: chessdto.MoveRequest{From: "d2", To: "d4"}}); err != nil {
		t.Fatalf("send move: %v", err)
	}
	ev = nextEvent(t, events)
	var er chessdto.ErrorResponse
	if ev.Type != EventError || ev.Decode(&er) != nil || er.Code != chessdto.CodeNotYourTurn {
		t.Fatalf("error event = %+v", ev)
	}

	if err := c.Send(ctx, watch.Command{Type: "resign"}); err != nil {
		t.Fatalf("send resign: %v", err)
	}
	ev = nextEvent(t, events)
	var over chessdto.GameOverPayload
	if ev.Type != chessdto.EventGameOver || ev.Decode(&over) != nil || over.WinnerID != black {
		t.Fatalf("game over = %+v", ev)
	}

	e.reg.WaitHooks()
	e.reg.Destroy(id)
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("stream not closed after destroy")
	}
	if c.State() != watch.StateClosed {
		t.Fatalf("state = %v", c.State())
	}
}

func TestClientCloseIsNotAnsweredTwice(t *testing.T) {
	e := newTestEnv(t)
	id, white, _ := e.pair(t, "alice", "bob")
	addr := listen(t, e)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws/games/"+id, &websocket.DialOptions{
		HTTPHeader: http.Header{headerPlayerID: []string{white}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var snap chessdto.Event
	if err := wsjson.Read(ctx, conn, &snap); err != nil || snap.Type != chessdto.EventSnapshot {
		t.Fatalf("snapshot = %+v %v", snap, err)
	}
	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close handshake: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		closed := e.logs.FilterMessage("ws_closed").All()
		if len(closed) == 1 {
			if got := closed[0].ContextMap()["client_closed"]; got != true {
				t.Fatalf("client_closed = %v", got)
			}
			if _, err := e.reg.Get(id); err != nil {
				t.Fatalf("session gone after client close: %v", err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("handler did not finish after client close")
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	e := newTestEnv(t)
	id, _, _ := e.pair(t, "alice", "bob")
	addr := listen(t, e)

	c := watch.NewClient("ws://"+addr+"/ws/games/"+id, "", watch.WithReconnect(0, 0), watch.WithLogger(zap.NewNop()))
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected handshake failure")
	}
	if c.State() != watch.StateFailed {
		t.Fatalf("state = %v", c.State())
	}
}
