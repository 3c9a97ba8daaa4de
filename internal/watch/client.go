// Package watch follows a session's push stream over WebSocket and
// reconnects when the stream drops.
package watch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
	// StateClosed is final: the server ended the stream on purpose or
	// Close was called.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "disconnected"
}

type EventCallback func(ev chessdto.Event)

type StateCallback func(state State)

// Command is a client frame sent on the stream.
type Command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Client struct {
	url      string
	identity string

	connM sync.Mutex
	conn  *websocket.Conn
	state State

	cbM      sync.RWMutex
	eventCbs map[int]EventCallback
	stateCbs map[int]StateCallback
	nextCbID int

	maxReconnectAttempts int
	reconnectBase        time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	log *zap.Logger
}

type Option func(*Client)

func WithReconnect(attempts int, base time.Duration) Option {
	return func(c *Client) {
		c.maxReconnectAttempts = attempts
		c.reconnectBase = base
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient targets url (ws://host/ws/games/<id>) as identity.
func NewClient(url, identity string, opts ...Option) *Client {
	c := &Client{
		url:                  url,
		identity:             strings.TrimSpace(identity),
		state:                StateDisconnected,
		eventCbs:             make(map[int]EventCallback),
		stateCbs:             make(map[int]StateCallback),
		maxReconnectAttempts: 5,
		reconnectBase:        200 * time.Millisecond,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		log:                  obslog.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	return c
}

func (c *Client) State() State {
	c.connM.Lock()
	defer c.connM.Unlock()
	return c.state
}

func (c *Client) Connect(ctx context.Context) error {
	c.connM.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.connM.Unlock()
		return nil
	}
	c.connM.Unlock()
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	hdr := http.Header{}
	if c.identity != "" {
		hdr.Set("X-Player-ID", c.identity)
	}
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionDisabled,
		HTTPHeader:      hdr,
	})
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.connM.Lock()
	c.conn = conn
	c.connM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var ev chessdto.Event
		if err := wsjson.Read(c.rootCtx, conn, &ev); err != nil {
			if c.isStopping() {
				return
			}
			c.dropConn(conn)
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				c.log.Debug("watch_stream_closed", zap.String("url", c.url))
				c.setState(StateClosed)
				c.stop()
				return
			}
			c.log.Warn("watch_stream_lost", zap.String("url", c.url), zap.Error(err))
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}

		c.cbM.RLock()
		callbacks := make([]EventCallback, 0, len(c.eventCbs))
		for _, cb := range c.eventCbs {
			callbacks = append(callbacks, cb)
		}
		c.cbM.RUnlock()
		for _, cb := range callbacks {
			cb(ev)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			if c.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// listen notices the close and reconnects
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 {
		c.setState(StateFailed)
		return
	}
	c.setState(StateReconnecting)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(c.backoff(attempt)):
			}
			conn, err := c.dial(c.rootCtx)
			if err != nil {
				c.log.Debug("watch_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			c.attach(conn)
			return
		}
		c.setState(StateFailed)
	}()
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * c.reconnectBase
}

// Send writes a command frame on the current connection.
func (c *Client) Send(ctx context.Context, cmd Command) error {
	conn := c.current()
	if conn == nil {
		return errors.New("watch: not connected")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, cmd)
}

func (c *Client) OnEvent(cb EventCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.eventCbs[c.nextCbID] = cb
	return c.nextCbID
}

func (c *Client) RemoveEventCallback(id int) {
	c.cbM.Lock()
	delete(c.eventCbs, id)
	c.cbM.Unlock()
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.stateCbs[c.nextCbID] = cb
	return c.nextCbID
}

func (c *Client) RemoveStateCallback(id int) {
	c.cbM.Lock()
	delete(c.stateCbs, id)
	c.cbM.Unlock()
}

func (c *Client) setState(state State) {
	c.connM.Lock()
	if c.state == StateClosed {
		c.connM.Unlock()
		return
	}
	c.state = state
	c.connM.Unlock()

	c.cbM.RLock()
	callbacks := make([]StateCallback, 0, len(c.stateCbs))
	for _, cb := range c.stateCbs {
		callbacks = append(callbacks, cb)
	}
	c.cbM.RUnlock()
	for _, cb := range callbacks {
		cb(state)
	}
}

func (c *Client) current() *websocket.Conn {
	c.connM.Lock()
	defer c.connM.Unlock()
	return c.conn
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.connM.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connM.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, "reconnect")
}

func (c *Client) stop() { c.stopOnce.Do(func() { close(c.stopCh) }) }

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Done is closed once the client stops for good.
func (c *Client) Done() <-chan struct{} { return c.stopCh }

func (c *Client) Close(ctx context.Context) error {
	defer c.rootCancel()
	c.stop()
	if conn := c.current(); conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	c.setState(StateClosed)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
