package syncwire

import (
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

const defaultBuffer = 64

// Subscriber is one push connection on a session channel. C is closed when
// the session goes away or the subscriber falls too far behind; in the
// latter case Lagged reports true and the client should resync by pull.
type Subscriber struct {
	SessionID string
	Identity  string
	C         <-chan chessdto.Event

	ch     chan chessdto.Event
	lagged bool
	closed bool
}

// Lagged reports whether events were dropped for this subscriber.
func (s *Subscriber) Lagged() bool { return s.lagged }

// Hub fans committed events out to push subscribers and wakes long-polls.
// Publish never blocks, so it is safe to call under a session lock.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	buffer int
	waits  *WaitRegistry
	log    *zap.Logger
}

func NewHub(buffer int, waits *WaitRegistry, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if waits == nil {
		waits = NewWaitRegistry()
	}
	if log == nil {
		log = obslog.L()
	}
	return &Hub{
		subs:   make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		waits:  waits,
		log:    log,
	}
}

// Waits exposes the long-poll registry fed by this hub.
func (h *Hub) Waits() *WaitRegistry { return h.waits }

// Subscribe joins the session channel. The caller sends its own snapshot
// first; events published after Subscribe returns are delivered in order.
func (h *Hub) Subscribe(sessionID, identity string) *Subscriber {
	ch := make(chan chessdto.Event, h.buffer)
	sub := &Subscriber{SessionID: sessionID, Identity: identity, C: ch, ch: ch}
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	n := len(set)
	h.mu.Unlock()
	h.log.Debug("ws_subscribe", zap.String("session_id", sessionID), zap.String("identity", identity), zap.Int("subscribers", n))
	return sub
}

// Unsubscribe leaves the channel. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *Subscriber) {
	if set, ok := h.subs[sub.SessionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.SessionID)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Subscribers returns the number of push connections on a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Publish delivers ev to every subscriber of its session.
func (h *Hub) Publish(ev chessdto.Event) {
	h.mu.Lock()
	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			sub.lagged = true
			h.dropLocked(sub)
			h.log.Warn("ws_lagging", zap.String("session_id", ev.SessionID), zap.String("identity", sub.Identity), zap.Int64("version", ev.Version))
		}
	}
	h.mu.Unlock()
	if ev.Type != chessdto.EventChat {
		h.waits.Notify(ev.SessionID)
	}
}

// MatchReady wakes a queued identity waiting on its pairing.
func (h *Hub) MatchReady(identity string) {
	h.waits.Notify(MatchKey(identity))
}

// SessionClosed ends every subscription of a destroyed session.
func (h *Hub) SessionClosed(sessionID string) {
	h.mu.Lock()
	for sub := range h.subs[sessionID] {
		h.dropLocked(sub)
	}
	h.mu.Unlock()
	h.waits.Notify(sessionID)
}

// Close ends every subscription and releases parked long-polls.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, set := range h.subs {
		for sub := range set {
			h.dropLocked(sub)
		}
	}
	h.mu.Unlock()
	h.waits.Shutdown()
}
