package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/rules"
)

func position(t *testing.T, fen string) rules.Position {
	t.Helper()
	e, err := rules.NewFromFEN(fen)
	if err != nil {
		t.Fatalf("NewFromFEN: %v", err)
	}
	return e.Position()
}

func isLegal(pos rules.Position, m rules.Move) bool {
	for _, lm := range pos.LegalMoves() {
		if lm == m {
			return true
		}
	}
	return false
}

func TestLevelsIncreaseDepth(t *testing.T) {
	prev := 0
	for d := MinDifficulty; d <= MaxDifficulty; d++ {
		lvl := LevelFor(d)
		if lvl.Depth <= prev {
			t.Fatalf("difficulty %d depth %d not above %d", d, lvl.Depth, prev)
		}
		if lvl.Budget <= 0 {
			t.Fatalf("difficulty %d has no budget", d)
		}
		prev = lvl.Depth
	}
	if LevelFor(0).Difficulty != MinDifficulty || LevelFor(99).Difficulty != MaxDifficulty {
		t.Fatalf("difficulty not clamped")
	}
	if got := LevelFor(5).Budget; got != 750*time.Millisecond {
		t.Fatalf("level 5 budget = %v", got)
	}
}

func TestEvaluateMaterial(t *testing.T) {
	if got := Evaluate(rules.StartPosition()); got != 0 {
		t.Fatalf("start eval = %d", got)
	}
	p := position(t, "4k3/8/8/8/8/8/8/R2QK3 w - - 0 1")
	if got := Evaluate(p); got != 1400 {
		t.Fatalf("eval = %d, want 1400", got)
	}
	w, b := Material(p)
	if w != 14 || b != 0 {
		t.Fatalf("material = %d/%d", w, b)
	}
}

func TestFindsMateInOne(t *testing.T) {
	pos := position(t, "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1")
	s := NewSearcher(1)
	res, err := s.ChooseMove(context.Background(), pos, 2)
	if err != nil {
		t.Fatalf("ChooseMove: %v", err)
	}
	if res.Move.UCI() != "a1a8" {
		t.Fatalf("move = %s, want a1a8", res.Move.UCI())
	}
	if res.Score < mateScore-2 {
		t.Fatalf("score = %d, want mate", res.Score)
	}
}

func TestTakesHangingQueen(t *testing.T) {
	pos := position(t, "4k3/8/8/3q4/4P3/8/8/4K3 w - - 0 1")
	for seed := int64(0); seed < 5; seed++ {
		res, err := NewSearcher(seed).ChooseMove(context.Background(), pos, 1)
		if err != nil {
			t.Fatalf("ChooseMove: %v", err)
		}
		if res.Move.UCI() != "e4d5" {
			t.Fatalf("seed %d: move = %s, want e4d5", seed, res.Move.UCI())
		}
	}
}

func TestNoMoveInMate(t *testing.T) {
	e := rules.New()
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if _, err := e.ApplyUCI(mv); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if _, err := NewSearcher(1).ChooseMove(context.Background(), e.Position(), 3); !errors.Is(err, ErrNoMove) {
		t.Fatalf("err = %v, want ErrNoMove", err)
	}
}

func TestAlwaysLegalWithinBudget(t *testing.T) {
	fens := []string{
		rules.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
		"n1n5/PPPk4/8/8/8/8/4Kppp/5N1N b - - 0 1",
	}
	const margin = 150 * time.Millisecond
	s := NewSearcher(3)
	for _, fen := range fens {
		pos := position(t, fen)
		for d := MinDifficulty; d <= MaxDifficulty; d++ {
			start := time.Now()
			res, err := s.ChooseMove(context.Background(), pos, d)
			took := time.Since(start)
			if err != nil {
				t.Fatalf("%s d=%d: %v", fen, d, err)
			}
			if !isLegal(pos, res.Move) {
				t.Fatalf("%s d=%d: illegal move %s", fen, d, res.Move.UCI())
			}
			if budget := LevelFor(d).Budget; took > budget+margin {
				t.Fatalf("%s d=%d: took %v, budget %v", fen, d, took, budget)
			}
		}
	}
}

func TestCancelledContextStillReturnsMove(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pos := rules.StartPosition()
	res, err := NewSearcher(9).ChooseMove(ctx, pos, 5)
	if err != nil {
		t.Fatalf("ChooseMove: %v", err)
	}
	if !isLegal(pos, res.Move) {
		t.Fatalf("illegal move %s", res.Move.UCI())
	}
}

func TestPoolChooseMove(t *testing.T) {
	p := NewPool(2, 4)
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })

	pos := rules.StartPosition()
	res, err := p.ChooseMove(context.Background(), "s1", pos, 1)
	if err != nil {
		t.Fatalf("pool ChooseMove: %v", err)
	}
	if !isLegal(pos, res.Move) {
		t.Fatalf("illegal move %s", res.Move.UCI())
	}

	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := p.ChooseMove(context.Background(), "s2", pos, 1); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("after shutdown err = %v", err)
	}
}
