package syncwire

import (
	"context"
	"sync"
	"time"
)

// DefaultWaitTimeout bounds a single long-poll.
const DefaultWaitTimeout = 25 * time.Second

// MatchKey is the wait key notified when identity gets paired.
func MatchKey(identity string) string { return "match:" + identity }

type waiter struct {
	notify chan struct{}
}

// WaitRegistry parks long-polling requests until their key is notified.
type WaitRegistry struct {
	mu       sync.Mutex
	waiters  map[string][]*waiter
	shutdown chan struct{}
	once     sync.Once
}

func NewWaitRegistry() *WaitRegistry {
	return &WaitRegistry{
		waiters:  make(map[string][]*waiter),
		shutdown: make(chan struct{}),
	}
}

// Wait blocks until key is notified, timeout passes, ctx ends or the
// registry shuts down. ready is checked after registering so a change that
// lands between the caller's check and the wait is not lost. It reports
// whether the wait ended because of a change.
func (w *WaitRegistry) Wait(ctx context.Context, key string, timeout time.Duration, ready func() bool) bool {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	req := &waiter{notify: make(chan struct{}, 1)}
	w.mu.Lock()
	w.waiters[key] = append(w.waiters[key], req)
	w.mu.Unlock()
	defer w.remove(key, req)

	if ready != nil && ready() {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-req.notify:
		return true
	case <-t.C:
	case <-ctx.Done():
	case <-w.shutdown:
	}
	return false
}

// Notify wakes every request parked on key.
func (w *WaitRegistry) Notify(key string) {
	w.mu.Lock()
	list := w.waiters[key]
	delete(w.waiters, key)
	w.mu.Unlock()
	for _, req := range list {
		select {
		case req.notify <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of parked requests for key.
func (w *WaitRegistry) Pending(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiters[key])
}

// Shutdown releases every parked request.
func (w *WaitRegistry) Shutdown() {
	w.once.Do(func() { close(w.shutdown) })
}

func (w *WaitRegistry) remove(key string, req *waiter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.waiters[key]
	for i, r := range list {
		if r == req {
			w.waiters[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(w.waiters[key]) == 0 {
		delete(w.waiters, key)
	}
}
