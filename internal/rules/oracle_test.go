package rules

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

// oracleMoves lists the reference library's legal moves for fen in UCI form.
func oracleMoves(t *testing.T, fen string) []string {
	t.Helper()
	opt, err := nchess.FEN(fen)
	if err != nil {
		t.Fatalf("oracle FEN(%q): %v", fen, err)
	}
	game := nchess.NewGame(opt)
	valid := game.ValidMoves()
	out := make([]string, 0, len(valid))
	for i := range valid {
		out = append(out, valid[i].String())
	}
	sort.Strings(out)
	return out
}

func ourMoves(e *Engine) []string {
	moves := e.LegalMoves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.UCI())
	}
	sort.Strings(out)
	return out
}

func TestLegalMovesMatchOracle(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
		"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
		"rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3",
		"n1n5/PPPk4/8/8/8/8/4Kppp/5N1N b - - 0 1",
	}
	for _, fen := range fens {
		e := mustEngine(t, fen)
		got, want := ourMoves(e), oracleMoves(t, fen)
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("%s\n got %v\nwant %v", fen, got, want)
		}
	}
}

// Random games compared ply by ply against the oracle, including its FEN.
func TestRandomGamesMatchOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for game := 0; game < 8; game++ {
		e := New()
		ref := nchess.NewGame()
		for ply := 0; ply < 120 && !e.IsGameOver(); ply++ {
			got, want := ourMoves(e), oracleMoves(t, e.FEN())
			if strings.Join(got, " ") != strings.Join(want, " ") {
				t.Fatalf("game %d ply %d %s\n got %v\nwant %v", game, ply, e.FEN(), got, want)
			}
			pick := got[rng.Intn(len(got))]
			if _, err := e.ApplyUCI(pick); err != nil {
				t.Fatalf("apply %s: %v", pick, err)
			}
			if err := ref.PushNotationMove(pick, nchess.UCINotation{}, nil); err != nil {
				t.Fatalf("oracle apply %s: %v", pick, err)
			}
			if board := strings.Fields(ref.FEN())[0]; board != strings.Fields(e.FEN())[0] {
				t.Fatalf("placement diverged after %s: %s vs %s", pick, e.FEN(), ref.FEN())
			}
		}
	}
}
