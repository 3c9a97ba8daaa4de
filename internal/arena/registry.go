package arena

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/ai"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Mover chooses the computer's reply.
type Mover interface {
	ChooseMove(ctx context.Context, sessionID string, pos rules.Position, difficulty int) (ai.Result, error)
}

// Publisher receives committed events in order. Publish is called with the
// session lock held and must not block.
type Publisher interface {
	Publish(ev chessdto.Event)
	MatchReady(identity string)
	SessionClosed(sessionID string)
}

type nopPublisher struct{}

func (nopPublisher) Publish(chessdto.Event) {}
func (nopPublisher) MatchReady(string)      {}
func (nopPublisher) SessionClosed(string)   {}

// Options tunes registry lifecycle policies. Zero values pick defaults.
type Options struct {
	Policy MatchPolicy
	// DisconnectGrace is how long a participant may stay without a push
	// connection before forfeiting. Zero never forfeits.
	DisconnectGrace time.Duration
	// IdleTTL aborts waiting or in-progress sessions without activity.
	IdleTTL time.Duration
	// FinishedRetention keeps reported sessions around for late pulls.
	FinishedRetention time.Duration
	// QueueTTL drops queue entries whose owner has not polled within it.
	QueueTTL          time.Duration
	AITimeout         time.Duration
	HookLanes         int
	HookTimeout       time.Duration
	Logger            *zap.Logger
	Now               func() time.Time
}

// Registry owns every live session and the matchmaking queue.
type Registry struct {
	mover Mover
	pub   Publisher
	hooks *hookRunner
	opts  Options
	log   *zap.Logger
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	queue    matchQueue
	matched  map[string]MatchTicket
}

// NewRegistry builds a registry. pub may be nil; hooks run in the given order.
func NewRegistry(mover Mover, pub Publisher, hooks []Hook, opts Options) *Registry {
	if pub == nil {
		pub = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = obslog.L()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy == "" {
		opts.Policy = PolicyClosest
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = 5 * time.Second
	}
	if opts.HookLanes <= 0 {
		opts.HookLanes = 4
	}
	return &Registry{
		mover:    mover,
		pub:      pub,
		hooks:    newHookRunner(hooks, opts.HookLanes, opts.HookTimeout, opts.Logger),
		opts:     opts,
		log:      opts.Logger,
		now:      opts.Now,
		sessions: make(map[string]*Session),
		queue:    matchQueue{policy: opts.Policy},
		matched:  make(map[string]MatchTicket),
	}
}

func randomSide() rules.Side {
	if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 1 {
		return rules.Black
	}
	return rules.White
}

func (r *Registry) register(s *Session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
}

// CreateAIGame starts an in-progress session with identity on white and the
// computer on black.
func (r *Registry) CreateAIGame(identity string, difficulty int) (*Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || identity == chessdto.AIIdentity {
		return nil, fmt.Errorf("identity %q: %w", identity, chessdto.ErrBadRequest)
	}
	if difficulty < ai.MinDifficulty || difficulty > ai.MaxDifficulty {
		return nil, fmt.Errorf("difficulty %d: %w", difficulty, chessdto.ErrBadRequest)
	}
	s := newSession(r, uuid.NewString(), chessdto.ModeAI, r.now())
	s.difficulty = difficulty
	var jobs []job
	s.mu.Lock()
	s.startLocked(identity, chessdto.AIIdentity, &jobs)
	s.mu.Unlock()
	r.register(s)
	r.hooks.submit(jobs)
	r.log.Info("session_create",
		zap.String("session_id", s.id),
		zap.String("mode", s.mode),
		zap.String("white", identity),
		zap.Int("difficulty", difficulty),
	)
	return s, nil
}

// Enqueue pairs identity with a queued opponent or queues it.
func (r *Registry) Enqueue(identity string, rating int) (MatchTicket, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || identity == chessdto.AIIdentity {
		return MatchTicket{}, fmt.Errorf("identity %q: %w", identity, chessdto.ErrBadRequest)
	}
	var jobs []job
	r.mu.Lock()
	if r.queue.contains(identity) {
		r.mu.Unlock()
		return MatchTicket{}, fmt.Errorf("identity %s: %w", identity, chessdto.ErrAlreadyQueued)
	}
	delete(r.matched, identity)
	now := r.now()
	entry := queueEntry{Identity: identity, Rating: rating, QueuedAt: now, LastSeen: now}
	idx := r.queue.pick(entry)
	if idx < 0 {
		r.queue.push(entry)
		size := r.queue.size()
		r.mu.Unlock()
		r.log.Debug("match_queued", zap.String("identity", identity), zap.Int("rating", rating), zap.Int("queue", size))
		return MatchTicket{Pending: true}, nil
	}
	opp := r.queue.removeAt(idx)

	s := newSession(r, uuid.NewString(), chessdto.ModePvP, r.now())
	mySide := randomSide()
	seats := [2]string{}
	seats[mySide] = identity
	seats[mySide.Other()] = opp.Identity
	s.mu.Lock()
	s.startLocked(seats[rules.White], seats[rules.Black], &jobs)
	s.mu.Unlock()
	r.sessions[s.id] = s
	mine := MatchTicket{SessionID: s.id, Side: mySide, Opponent: opp.Identity}
	r.matched[opp.Identity] = MatchTicket{SessionID: s.id, Side: mySide.Other(), Opponent: identity}
	r.mu.Unlock()

	r.pub.MatchReady(opp.Identity)
	r.hooks.submit(jobs)
	r.log.Info("match_paired",
		zap.String("session_id", s.id),
		zap.String("white", seats[rules.White]),
		zap.String("black", seats[rules.Black]),
		zap.Int("rating_gap", abs(rating-opp.Rating)),
		zap.String("policy", string(r.opts.Policy)),
	)
	return mine, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MatchStatus reports whether identity is still queued or has been paired
// since it queued. ok is false when neither holds. A queued caller counts as
// alive until the next QueueTTL window.
func (r *Registry) MatchStatus(identity string) (MatchTicket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.matched[identity]; ok {
		return t, true
	}
	if r.queue.touch(identity, r.now()) {
		return MatchTicket{Pending: true}, true
	}
	return MatchTicket{}, false
}

// LeaveQueue drops a queued-but-unmatched entry.
func (r *Registry) LeaveQueue(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matched, identity)
	return r.queue.remove(identity)
}

// QueueLen returns the number of waiting entries.
func (r *Registry) QueueLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queue.size()
}

// CreateWaiting opens a human-vs-human session holding only host.
func (r *Registry) CreateWaiting(host string) (*Session, error) {
	host = strings.TrimSpace(host)
	if host == "" || host == chessdto.AIIdentity {
		return nil, fmt.Errorf("identity %q: %w", host, chessdto.ErrBadRequest)
	}
	s := newSession(r, uuid.NewString(), chessdto.ModePvP, r.now())
	s.host = host
	r.register(s)
	r.log.Info("session_create", zap.String("session_id", s.id), zap.String("mode", s.mode), zap.String("host", host))
	return s, nil
}

// Seat adds identity as the second player of a waiting session, assigns
// sides at random and starts the game. It returns the joiner's side.
func (r *Registry) Seat(sessionID, identity string) (rules.Side, string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || identity == chessdto.AIIdentity {
		return rules.White, "", fmt.Errorf("identity %q: %w", identity, chessdto.ErrBadRequest)
	}
	s, err := r.Get(sessionID)
	if err != nil {
		return rules.White, "", err
	}
	var jobs []job
	s.mu.Lock()
	if s.status != StatusWaiting {
		s.mu.Unlock()
		return rules.White, "", fmt.Errorf("session %s: %w", sessionID, chessdto.ErrLobbyFull)
	}
	if identity == s.host {
		s.mu.Unlock()
		return rules.White, "", fmt.Errorf("cannot join own lobby: %w", chessdto.ErrBadRequest)
	}
	host := s.host
	side := randomSide()
	seats := [2]string{}
	seats[side] = identity
	seats[side.Other()] = host
	s.startLocked(seats[rules.White], seats[rules.Black], &jobs)
	s.mu.Unlock()
	r.hooks.submit(jobs)
	r.log.Info("lobby_seated", zap.String("session_id", sessionID), zap.String("host", host), zap.String("guest", identity))
	return side, host, nil
}

// Get looks up a live session.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, chessdto.ErrUnknownSession)
	}
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Destroy removes a session. Calling it again is a no-op.
func (r *Registry) Destroy(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
		for id, t := range r.matched {
			if t.SessionID == sessionID {
				delete(r.matched, id)
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.stopForfeitsLocked()
	s.mu.Unlock()
	r.pub.SessionClosed(sessionID)
	r.log.Debug("session_destroy", zap.String("session_id", sessionID))
}

// SubmitMove applies identity's move and, in AI sessions, the computer's
// reply. The outcome lists every committed event in order.
func (r *Registry) SubmitMove(ctx context.Context, sessionID, identity, from, to, promotion string) (MoveOutcome, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return MoveOutcome{}, err
	}
	fromSq, err := rules.ParseSquare(from)
	if err != nil {
		return MoveOutcome{}, err
	}
	toSq, err := rules.ParseSquare(to)
	if err != nil {
		return MoveOutcome{}, err
	}
	promo, err := rules.ParsePromotion(promotion)
	if err != nil {
		return MoveOutcome{}, err
	}
	out, turn, jobs, err := s.submit(identity, fromSq, toSq, promo)
	if err != nil {
		return MoveOutcome{}, err
	}
	r.hooks.submit(jobs)
	if turn != nil {
		r.runAI(ctx, s, turn, &out)
	}
	return out, nil
}

// runAI searches off the session lock and commits the reply.
func (r *Registry) runAI(ctx context.Context, s *Session, turn *aiTurn, out *MoveOutcome) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.AITimeout)
	defer cancel()
	var m rules.Move
	res, err := r.mover.ChooseMove(sctx, s.id, turn.pos, s.difficulty)
	if err == nil {
		m = res.Move
		r.log.Debug("ai_move",
			zap.String("session_id", s.id),
			zap.String("move", m.UCI()),
			zap.Int("depth", res.Depth),
			zap.Duration("elapsed", res.Elapsed),
		)
	} else {
		moves := turn.pos.LegalMoves()
		if len(moves) == 0 {
			s.clearPending()
			return
		}
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(moves))))
		m = moves[n.Int64()]
		r.log.Warn("ai_fallback", zap.String("session_id", s.id), zap.String("move", m.UCI()), zap.Error(err))
	}
	r.hooks.submit(s.applyAI(turn, m, out))
}

// Resign ends the game in the opponent's favour. A host leaving a lobby
// nobody joined abandons it instead.
func (r *Registry) Resign(sessionID, identity string) (chessdto.GameOverPayload, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return chessdto.GameOverPayload{}, err
	}
	over, jobs, err := s.resign(identity)
	if err != nil {
		return over, err
	}
	r.hooks.submit(jobs)
	r.cleanupAbandoned(s)
	return over, nil
}

// Undo takes back moves in an AI session until it is identity's turn again.
func (r *Registry) Undo(sessionID, identity string) (chessdto.UndoPayload, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return chessdto.UndoPayload{}, err
	}
	payload, jobs, err := s.undo(identity)
	if err != nil {
		return payload, err
	}
	r.hooks.submit(jobs)
	return payload, nil
}

// Chat relays text to the session's push subscribers.
func (r *Registry) Chat(sessionID, identity, text string) (chessdto.Event, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return chessdto.Event{}, err
	}
	return s.chat(identity, text)
}

// Snapshot returns the pull state of a live session.
func (r *Registry) Snapshot(sessionID string) (chessdto.SessionState, error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return chessdto.SessionState{}, err
	}
	return s.Snapshot(), nil
}

// Attach registers a push connection of identity. Non-participants may
// watch; they are not tracked. The returned detach must be called once.
func (r *Registry) Attach(sessionID, identity string) (func(), error) {
	s, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !s.attach(identity) {
		return func() {}, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() { s.detach(identity, r.opts.DisconnectGrace) })
	}, nil
}

func (r *Registry) forfeit(s *Session, identity string) {
	jobs := s.forfeit(identity)
	if len(jobs) > 0 {
		r.log.Info("session_forfeit", zap.String("session_id", s.id), zap.String("identity", identity))
	}
	r.hooks.submit(jobs)
}

// reportDone runs on the hook lane once every finish hook saw the session.
func (r *Registry) reportDone(s *Session) {
	s.mu.Lock()
	s.reported = true
	s.mu.Unlock()
	if r.opts.FinishedRetention <= 0 {
		r.Destroy(s.id)
	}
}

// cleanupAbandoned destroys sessions finished without a report, once their
// committed hooks have been queued.
func (r *Registry) cleanupAbandoned(s *Session) {
	res, ok := s.Result()
	if !ok || res.Outcome != OutcomeAbandoned || r.opts.FinishedRetention > 0 {
		return
	}
	r.hooks.submit([]job{{sessionID: s.id, kind: "destroy", run: func(context.Context, Hook) error { return nil }, after: func() { r.Destroy(s.id) }}})
}

// Sweep aborts idle sessions, destroys expired finished ones and drops stale
// queue entries. It returns the number of sessions removed or aborted.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	n := 0
	for _, s := range list {
		abandon, destroy := s.sweepable(now, r.opts.IdleTTL, r.opts.FinishedRetention)
		switch {
		case destroy:
			r.Destroy(s.id)
			n++
		case abandon:
			jobs := s.abandon()
			r.hooks.submit(jobs)
			r.log.Info("session_idle_abort", zap.String("session_id", s.id))
			r.hooks.submit([]job{{sessionID: s.id, kind: "destroy", run: func(context.Context, Hook) error { return nil }, after: func() { r.Destroy(s.id) }}})
			n++
		}
	}

	if r.opts.QueueTTL > 0 {
		r.mu.Lock()
		dropped := r.queue.expire(now.Add(-r.opts.QueueTTL))
		r.mu.Unlock()
		for _, id := range dropped {
			r.log.Info("match_expired", zap.String("identity", id))
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.log.Debug("sweep", zap.Int("sessions", n), zap.Int("live", r.Len()))
			}
		}
	}
}

// WaitHooks blocks until every queued hook call has finished.
func (r *Registry) WaitHooks() { r.hooks.wait() }

// Close drains pending hooks and stops the hook workers.
func (r *Registry) Close() {
	r.hooks.close()
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()
	for _, s := range list {
		s.mu.Lock()
		s.stopForfeitsLocked()
		s.mu.Unlock()
	}
}
