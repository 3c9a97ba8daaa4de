package ai

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
)

const (
	ErrPoolFull   staticErr = "ai: search queue is full"
	ErrPoolClosed staticErr = "ai: pool is shutting down"
)

// Task is one queued search request.
type Task struct {
	SessionID  string
	Position   rules.Position
	Difficulty int
	response   chan<- outcome
}

type outcome struct {
	res Result
	err error
}

// Pool runs searches on a fixed set of workers, each owning its Searcher.
type Pool struct {
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
}

// NewPool starts workers goroutines behind a queue of queueSize pending tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 2
	}
	if queueSize < 1 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	searcher := NewSearcher(time.Now().UnixNano() + int64(id))
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			res, err := searcher.ChooseMove(p.ctx, task.Position, task.Difficulty)
			if err == nil {
				obslog.L().Debug("ai_search",
					zap.String("session_id", task.SessionID),
					zap.Int("difficulty", task.Difficulty),
					zap.String("move", res.Move.UCI()),
					zap.Int("score", res.Score),
					zap.Int("depth", res.Depth),
					zap.Int("nodes", res.Nodes),
					zap.Duration("elapsed", res.Elapsed),
					zap.Bool("timed_out", res.TimedOut),
				)
			}
			// response is buffered; the caller may have gone away.
			task.response <- outcome{res: res, err: err}
		case <-p.ctx.Done():
			return
		}
	}
}

// ChooseMove queues a search and waits for its result. It fails fast with
// ErrPoolFull instead of blocking when the queue is saturated.
func (p *Pool) ChooseMove(ctx context.Context, sessionID string, pos rules.Position, difficulty int) (Result, error) {
	if p.ctx.Err() != nil {
		return Result{}, ErrPoolClosed
	}
	resp := make(chan outcome, 1)
	task := Task{SessionID: sessionID, Position: pos, Difficulty: difficulty, response: resp}
	select {
	case p.tasks <- task:
	case <-p.ctx.Done():
		return Result{}, ErrPoolClosed
	default:
		return Result{}, ErrPoolFull
	}
	select {
	case out := <-resp:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-p.ctx.Done():
		return Result{}, ErrPoolClosed
	}
}

// Shutdown stops the workers. In-flight searches see a cancelled context and
// return their best move immediately.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.closeOnce.Do(p.cancel)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return staticErr("ai: shutdown timeout exceeded")
	}
}
