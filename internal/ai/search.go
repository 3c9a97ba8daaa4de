package ai

import (
	"context"
	"math/rand"
	"time"

	"github.com/park285/cheese-arena/internal/rules"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// ErrNoMove is returned when the side to move has no legal move.
const ErrNoMove staticErr = "ai: no legal move"

const (
	infinity  = 1 << 30
	mateScore = 100000
	// how many nodes pass between clock checks
	clockMask = 255
)

// Result describes a finished search.
type Result struct {
	Move     rules.Move
	Score    int // from the mover's point of view
	Depth    int // deepest fully completed iteration
	Nodes    int
	Elapsed  time.Duration
	TimedOut bool
}

// Searcher runs depth-limited alpha-beta searches. A Searcher is not safe for
// concurrent use; the Pool gives each worker its own.
type Searcher struct {
	rng *rand.Rand
	now func() time.Time
}

func NewSearcher(seed int64) *Searcher {
	return &Searcher{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

// ChooseMove searches pos at the given difficulty.
func (s *Searcher) ChooseMove(ctx context.Context, pos rules.Position, difficulty int) (Result, error) {
	return s.Search(ctx, pos, LevelFor(difficulty))
}

type searchState struct {
	ctx      context.Context
	deadline time.Time
	now      func() time.Time
	nodes    int
	stopped  bool
}

func (st *searchState) expired() bool {
	if st.stopped {
		return true
	}
	st.nodes++
	if st.nodes&clockMask != 0 {
		return false
	}
	if st.ctx.Err() != nil || !st.now().Before(st.deadline) {
		st.stopped = true
	}
	return st.stopped
}

// Search runs iterative deepening up to lvl.Depth within lvl.Budget. The move
// returned always comes from pos.LegalMoves. When the budget runs out the best
// fully searched root move so far is returned.
func (s *Searcher) Search(ctx context.Context, pos rules.Position, lvl Level) (Result, error) {
	start := s.now()
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return Result{}, ErrNoMove
	}
	s.rng.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })

	st := &searchState{ctx: ctx, deadline: start.Add(lvl.Budget), now: s.now}
	res := Result{Move: moves[0], Score: -infinity}
	if len(moves) == 1 {
		res.Score = 0
		res.Elapsed = s.now().Sub(start)
		return res, nil
	}

	for depth := 1; depth <= lvl.Depth; depth++ {
		bestIdx, bestScore := -1, -infinity
		alpha := -infinity
		for i, m := range moves {
			score := -s.negamax(st, pos.After(m), depth-1, 1, -infinity, -alpha)
			if st.stopped {
				break
			}
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
			if score > alpha {
				alpha = score
			}
		}
		// moves[0] is searched first, so any completed root move was compared
		// against the previous best.
		if bestIdx >= 0 {
			res.Move, res.Score = moves[bestIdx], bestScore
			// search the current best first next iteration
			moves[0], moves[bestIdx] = moves[bestIdx], moves[0]
		}
		if st.stopped {
			res.TimedOut = true
			break
		}
		res.Depth = depth
		if bestScore >= mateScore-depth {
			break
		}
	}
	if res.Score == -infinity {
		res.Score = 0
	}
	res.Nodes = st.nodes
	res.Elapsed = s.now().Sub(start)
	return res, nil
}

// negamax scores p for its side to move.
func (s *Searcher) negamax(st *searchState, p rules.Position, depth, ply, alpha, beta int) int {
	if st.expired() {
		return 0
	}
	if depth <= 0 && !p.InCheck(p.Turn) {
		return sideScore(p)
	}
	moves := p.LegalMoves()
	if len(moves) == 0 {
		if p.InCheck(p.Turn) {
			return -mateScore + ply
		}
		return 0
	}
	if depth <= 0 {
		return sideScore(p)
	}
	best := -infinity
	for _, m := range moves {
		score := -s.negamax(st, p.After(m), depth-1, ply+1, -beta, -alpha)
		if st.stopped {
			return 0
		}
		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}
	return best
}

func sideScore(p rules.Position) int {
	if p.Turn == rules.White {
		return Evaluate(p)
	}
	return -Evaluate(p)
}
