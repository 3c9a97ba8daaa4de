package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

const (
	wsWriteTimeout = 10 * time.Second
	// EventError is pushed back to a connection whose command failed.
	EventError = "error"
)

// wsCommand is a client frame; the push channel also accepts moves, chat
// and resignation so a client can stay on one connection.
type wsCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.WriteJSON(v)
}

func (w *wsConn) closeWith(code int, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// handleWS streams one session: a snapshot first, then every committed
// event in order. The stream ends when the session is destroyed or the
// client falls behind.
func (h *handler) handleWS(c *websocket.Conn) {
	conn := &wsConn{Conn: c}
	id := c.Params("id")
	identity, _ := c.Locals(localIdentity).(string)
	log := h.log.With(zap.String("session_id", id), zap.String("identity", identity))

	sub := h.Hub.Subscribe(id, identity)
	defer h.Hub.Unsubscribe(sub)

	st, err := h.Registry.Snapshot(id)
	if err != nil {
		// gone already: hand over the mirrored final state, if any
		if h.Snapshots != nil {
			if mirrored, lerr := h.Snapshots.Load(context.Background(), id); lerr == nil {
				h.sendSnapshot(conn, mirrored)
			}
		}
		h.sendError(conn, err)
		conn.closeWith(websocket.CloseNormalClosure, "unknown session")
		return
	}
	if err := h.sendSnapshot(conn, st); err != nil {
		return
	}

	detach, err := h.Registry.Attach(id, identity)
	if err != nil {
		conn.closeWith(websocket.CloseNormalClosure, "unknown session")
		return
	}
	defer detach()

	done := make(chan struct{})
	var peerClosed atomic.Bool
	go func() {
		defer close(done)
		if h.readCommands(conn, id, identity, log) {
			peerClosed.Store(true)
		}
		h.Hub.Unsubscribe(sub)
	}()

	for ev := range sub.C {
		// the snapshot already covers these
		if ev.Type != chessdto.EventChat && ev.Version <= st.Version {
			continue
		}
		if err := conn.send(ev); err != nil {
			log.Debug("ws_write_failed", zap.Error(err))
			break
		}
	}
	switch {
	case peerClosed.Load():
		// the read loop already answered the client's close frame
	case sub.Lagged():
		conn.closeWith(websocket.ClosePolicyViolation, "lagged; resync by pull")
	default:
		conn.closeWith(websocket.CloseNormalClosure, "session closed")
	}
	_ = conn.Close()
	<-done
	log.Debug("ws_closed", zap.Bool("lagged", sub.Lagged()), zap.Bool("client_closed", peerClosed.Load()))
}

func (h *handler) sendSnapshot(conn *wsConn, st chessdto.SessionState) error {
	ev, err := chessdto.NewEvent(chessdto.EventSnapshot, st.SessionID, st.Version, st)
	if err != nil {
		return err
	}
	return conn.send(ev)
}

func (h *handler) sendError(conn *wsConn, err error) {
	code := "INTERNAL"
	var de chessdto.DomainError
	if errors.As(err, &de) {
		code = de.Code
	}
	_ = conn.send(errorEvent(code, err))
}

func errorEvent(code string, err error) chessdto.Event {
	raw, _ := json.Marshal(chessdto.ErrorResponse{Error: err.Error(), Code: code})
	return chessdto.Event{Type: EventError, Payload: raw}
}

// readCommands runs until the connection fails. It reports whether the
// client ended it with a close frame.
func (h *handler) readCommands(conn *wsConn, id, identity string, log *zap.Logger) bool {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return true
			}
			log.Debug("ws_read_failed", zap.Error(err))
			return false
		}
		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			h.sendError(conn, fmt.Errorf("malformed frame: %w", chessdto.ErrBadRequest))
			continue
		}
		if err := h.runCommand(id, identity, cmd); err != nil {
			h.sendError(conn, err)
		}
	}
}

func (h *handler) runCommand(id, identity string, cmd wsCommand) error {
	switch cmd.Type {
	case "move":
		var req chessdto.MoveRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return fmt.Errorf("move payload: %w", chessdto.ErrBadRequest)
		}
		if err := validate.Struct(req); err != nil {
			return fmt.Errorf("move payload: %w", chessdto.ErrBadRequest)
		}
		_, err := h.Registry.SubmitMove(context.Background(), id, identity, req.From, req.To, req.Promotion)
		return err
	case "chat":
		var req chessdto.ChatRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return fmt.Errorf("chat payload: %w", chessdto.ErrBadRequest)
		}
		_, err := h.Registry.Chat(id, identity, req.Text)
		return err
	case "resign":
		_, err := h.Registry.Resign(id, identity)
		return err
	case "ping":
		return nil
	}
	return fmt.Errorf("unknown command %q: %w", cmd.Type, chessdto.ErrBadRequest)
}
