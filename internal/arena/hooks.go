package arena

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Hook receives post-commit notifications. Each call is independent: an
// error is logged and never affects the committed session or later hooks.
type Hook interface {
	Name() string
	SessionStarted(ctx context.Context, ev StartedEvent) error
	Committed(ctx context.Context, state chessdto.SessionState) error
	Captured(ctx context.Context, ev PieceEvent) error
	Promoted(ctx context.Context, ev PieceEvent) error
	GameFinished(ctx context.Context, ev FinishedEvent) error
}

// NopHook implements Hook with no-ops; embed it to override selectively.
type NopHook struct{}

func (NopHook) SessionStarted(context.Context, StartedEvent) error { return nil }
func (NopHook) Committed(context.Context, chessdto.SessionState) error { return nil }
func (NopHook) Captured(context.Context, PieceEvent) error { return nil }
func (NopHook) Promoted(context.Context, PieceEvent) error { return nil }
func (NopHook) GameFinished(context.Context, FinishedEvent) error { return nil }

type job struct {
	sessionID string
	kind      string
	run       func(ctx context.Context, h Hook) error
	after     func()
}

// hookRunner executes hook jobs on a few lanes. Jobs of one session always
// land on the same lane, so they run in commit order.
type hookRunner struct {
	hooks   []Hook
	lanes   []chan job
	timeout time.Duration
	log     *zap.Logger

	pending sync.WaitGroup
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newHookRunner(hooks []Hook, lanes int, timeout time.Duration, log *zap.Logger) *hookRunner {
	if lanes < 1 {
		lanes = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &hookRunner{hooks: hooks, lanes: make([]chan job, lanes), timeout: timeout, log: log}
	for i := range r.lanes {
		r.lanes[i] = make(chan job, 256)
		r.wg.Add(1)
		go r.loop(r.lanes[i])
	}
	return r
}

func (r *hookRunner) loop(ch <-chan job) {
	defer r.wg.Done()
	for j := range ch {
		r.exec(j)
		r.pending.Done()
	}
}

func (r *hookRunner) exec(j job) {
	for _, h := range r.hooks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.safeRun(ctx, h, j)
		cancel()
		if err != nil {
			r.log.Warn("hook_failed",
				zap.String("hook", h.Name()),
				zap.String("kind", j.kind),
				zap.String("session_id", j.sessionID),
				zap.Error(err),
			)
		}
	}
	if j.after != nil {
		j.after()
	}
}

func (r *hookRunner) safeRun(ctx context.Context, h Hook, j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = hookPanic{value: rec}
		}
	}()
	return j.run(ctx, h)
}

type hookPanic struct{ value any }

func (p hookPanic) Error() string { return fmt.Sprintf("hook panicked: %v", p.value) }

func (r *hookRunner) lane(sessionID string) chan job {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return r.lanes[h.Sum32()%uint32(len(r.lanes))]
}

// submit enqueues jobs in order. It must not be called with a session lock
// held, since a full lane blocks.
func (r *hookRunner) submit(jobs []job) {
	if len(jobs) == 0 {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		for _, j := range jobs {
			r.log.Warn("hook_dropped", zap.String("kind", j.kind), zap.String("session_id", j.sessionID))
		}
		return
	}
	for _, j := range jobs {
		r.pending.Add(1)
		r.lane(j.sessionID) <- j
	}
}

// wait blocks until every submitted job has run.
func (r *hookRunner) wait() { r.pending.Wait() }

func (r *hookRunner) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, ch := range r.lanes {
		close(ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func startedJob(ev StartedEvent) job {
	return job{sessionID: ev.SessionID, kind: "session_started", run: func(ctx context.Context, h Hook) error {
		return h.SessionStarted(ctx, ev)
	}}
}

func committedJob(state chessdto.SessionState) job {
	return job{sessionID: state.SessionID, kind: "committed", run: func(ctx context.Context, h Hook) error {
		return h.Committed(ctx, state)
	}}
}

func capturedJob(ev PieceEvent) job {
	return job{sessionID: ev.SessionID, kind: "captured", run: func(ctx context.Context, h Hook) error {
		return h.Captured(ctx, ev)
	}}
}

func promotedJob(ev PieceEvent) job {
	return job{sessionID: ev.SessionID, kind: "promoted", run: func(ctx context.Context, h Hook) error {
		return h.Promoted(ctx, ev)
	}}
}

func finishedJob(ev FinishedEvent, after func()) job {
	return job{sessionID: ev.SessionID, kind: "game_finished", after: after, run: func(ctx context.Context, h Hook) error {
		return h.GameFinished(ctx, ev)
	}}
}
