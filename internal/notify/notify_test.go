package notify

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-arena/internal/arena"
)

type fakeWebhook struct {
	mu       sync.Mutex
	statuses []int
	bodies   [][]byte
	tokens   []string
}

func (f *fakeWebhook) handle(ctx *fasthttp.RequestCtx) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, append([]byte(nil), ctx.PostBody()...))
	f.tokens = append(f.tokens, string(ctx.Request.Header.Peek(tokenHeader)))
	status := fasthttp.StatusOK
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		f.statuses = f.statuses[1:]
	}
	ctx.SetStatusCode(status)
}

func (f *fakeWebhook) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func startWebhook(t *testing.T, statuses ...int) (*fakeWebhook, *Client) {
	t.Helper()
	f := &fakeWebhook{statuses: statuses}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: f.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	c := NewClient("http://webhook.test/arena",
		WithToken("s3cret"),
		WithBackoff(time.Millisecond),
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
	)
	return f, c
}

func TestPostRetriesServerErrors(t *testing.T) {
	f, c := startWebhook(t, 503, 502, 200)
	if err := c.Post(context.Background(), map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if f.hits() != 3 {
		t.Fatalf("hits = %d", f.hits())
	}
	for _, tok := range f.tokens {
		if tok != "s3cret" {
			t.Fatalf("token = %q", tok)
		}
	}
}

func TestPostGivesUp(t *testing.T) {
	f, c := startWebhook(t, 500, 500, 500, 500)
	err := c.Post(context.Background(), struct{}{})
	if err == nil || !strings.Contains(err.Error(), "status=500") {
		t.Fatalf("err = %v", err)
	}
	if f.hits() != 3 {
		t.Fatalf("hits = %d", f.hits())
	}
}

func TestPostNoRetryOnClientError(t *testing.T) {
	f, c := startWebhook(t, 400)
	if err := c.Post(context.Background(), struct{}{}); err == nil {
		t.Fatalf("expected error")
	}
	if f.hits() != 1 {
		t.Fatalf("hits = %d", f.hits())
	}
}

func TestHookPayloads(t *testing.T) {
	f, c := startWebhook(t)
	h := NewHook(c)
	ctx := context.Background()
	if err := h.GameFinished(ctx, arena.FinishedEvent{
		SessionID: "g1", Mode: "pvp", White: "u1", Black: "u2", WinnerID: "u2",
		Reason: "checkmate", MovesUCI: []string{"f2f3", "e7e5", "g2g4", "d8h4"},
	}); err != nil {
		t.Fatalf("GameFinished: %v", err)
	}
	if err := h.Captured(ctx, arena.PieceEvent{SessionID: "g1", PlayerID: "u1", Side: "white", Move: "e4d5", Piece: "pawn"}); err != nil {
		t.Fatalf("Captured: %v", err)
	}
	if err := h.Promoted(ctx, arena.PieceEvent{SessionID: "g1", PlayerID: "u1", Side: "white", Move: "a7a8q", Piece: "queen"}); err != nil {
		t.Fatalf("Promoted: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	want := []string{EventGameFinished, EventCapture, EventPromotion}
	if len(f.bodies) != len(want) {
		t.Fatalf("bodies = %d", len(f.bodies))
	}
	for i, raw := range f.bodies {
		var n struct {
			Event     string          `json:"event"`
			SessionID string          `json:"sessionId"`
			Data      json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &n); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if n.Event != want[i] || n.SessionID != "g1" {
			t.Errorf("notification %d = %+v", i, n)
		}
	}
	var fin FinishedData
	var env struct {
		Data *FinishedData `json:"data"`
	}
	env.Data = &fin
	_ = json.Unmarshal(f.bodies[0], &env)
	if fin.WinnerID != "u2" || len(fin.Moves) != 4 {
		t.Errorf("finished data = %+v", fin)
	}
}
