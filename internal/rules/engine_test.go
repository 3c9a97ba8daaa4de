package rules

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

func mustEngine(t *testing.T, fen string) *Engine {
	t.Helper()
	e, err := NewFromFEN(fen)
	if err != nil {
		t.Fatalf("NewFromFEN(%q): %v", fen, err)
	}
	return e
}

func play(t *testing.T, e *Engine, moves ...string) {
	t.Helper()
	for _, mv := range moves {
		if _, err := e.ApplyUCI(mv); err != nil {
			t.Fatalf("apply %s at %s: %v", mv, e.FEN(), err)
		}
	}
}

func uciSet(moves []Move) map[string]bool {
	out := make(map[string]bool, len(moves))
	for _, m := range moves {
		out[m.UCI()] = true
	}
	return out
}

func TestStartPositionHasTwentyMoves(t *testing.T) {
	e := New()
	if got := len(e.LegalMoves()); got != 20 {
		t.Fatalf("start moves = %d, want 20", got)
	}
	if e.FEN() != StartFEN {
		t.Fatalf("FEN = %q", e.FEN())
	}
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3",
		"4k3/8/8/8/8/8/8/4K3 b - - 37 90",
	}
	for _, fen := range fens {
		e := mustEngine(t, fen)
		if got := e.FEN(); got != fen {
			t.Errorf("round trip:\n got %q\nwant %q", got, fen)
		}
	}
}

func TestLoadPositionRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"five fields":      "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0",
		"seven ranks":      "rnbqkbnr/pppppppp/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"short rank":       "rnbqkbnr/pppppppp/8/8/7/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"long rank":        "rnbqkbnr/pppppppp/9/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"bad piece":        "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNX w KQkq - 0 1",
		"bad side":         "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1",
		"bad castling":     "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkx - 0 1",
		"repeat castling":  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KK - 0 1",
		"bad en passant":   "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e9 0 1",
		"ep wrong rank":    "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e3 0 1",
		"ep beside king":   "8/8/8/3Pk3/8/8/8/4K3 w - e6 0 1",
		"ep no pawn":       "4k3/8/8/3P4/8/8/8/4K3 w - e6 0 1",
		"ep target filled": "4k3/8/4n3/3Pp3/8/8/8/4K3 w - e6 0 1",
		"ep origin filled": "4k3/4n3/8/3Pp3/8/8/8/4K3 w - e6 0 1",
		"negative clock":   "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - -1 1",
		"zero full move":   "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 0",
		"two white kings":  "4k3/8/8/8/8/8/8/3KK3 w - - 0 1",
		"no black king":    "8/8/8/8/8/8/8/4K3 w - - 0 1",
		"pawn on rank 8":   "P3k3/8/8/8/8/8/8/4K3 w - - 0 1",
		"opponent checked": "4k3/4R3/8/8/8/8/8/4K3 w - - 0 1",
	}
	for name, fen := range cases {
		t.Run(name, func(t *testing.T) {
			e := New()
			play(t, e, "e2e4")
			before := e.FEN()
			err := e.LoadPosition(fen)
			if !errors.Is(err, chessdto.ErrInvalidPosition) {
				t.Fatalf("LoadPosition err = %v, want InvalidPosition", err)
			}
			if e.FEN() != before || e.Ply() != 1 {
				t.Fatalf("failed load mutated engine: %q ply=%d", e.FEN(), e.Ply())
			}
		})
	}
}

func TestApplyUndoRestoresFEN(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 3",
		"n1n5/PPPk4/8/8/8/8/4Kppp/5N1N b - - 0 1",
	}
	for _, fen := range fens {
		e := mustEngine(t, fen)
		for _, m := range e.LegalMoves() {
			if _, err := e.ApplyMove(m.From, m.To, m.Promotion); err != nil {
				t.Fatalf("%s: apply %s: %v", fen, m.UCI(), err)
			}
			undone, err := e.UndoLastMove()
			if err != nil {
				t.Fatalf("%s: undo %s: %v", fen, m.UCI(), err)
			}
			if undone != m {
				t.Fatalf("undo returned %+v, want %+v", undone, m)
			}
			if got := e.FEN(); got != fen {
				t.Fatalf("after %s + undo:\n got %q\nwant %q", m.UCI(), got, fen)
			}
		}
	}
}

func TestUndoWithoutHistory(t *testing.T) {
	e := New()
	if _, err := e.UndoLastMove(); !errors.Is(err, chessdto.ErrNoHistory) {
		t.Fatalf("err = %v, want NoHistory", err)
	}
}

func TestRandomPlayNeverLeavesKingInCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for game := 0; game < 20; game++ {
		e := New()
		for ply := 0; ply < 200 && !e.IsGameOver(); ply++ {
			moves := e.LegalMoves()
			mover := e.Turn()
			for _, m := range moves {
				after := e.Position().After(m)
				if after.InCheck(mover) {
					t.Fatalf("%s: %s leaves %s in check", e.FEN(), m.UCI(), mover)
				}
			}
			m := moves[rng.Intn(len(moves))]
			if _, err := e.ApplyMove(m.From, m.To, m.Promotion); err != nil {
				t.Fatalf("apply %s: %v", m.UCI(), err)
			}
		}
		start := e.Ply()
		for i := 0; i < start; i++ {
			if _, err := e.UndoLastMove(); err != nil {
				t.Fatalf("undo: %v", err)
			}
		}
		if e.FEN() != StartFEN {
			t.Fatalf("full unwind ended at %q", e.FEN())
		}
	}
}

func TestQueenCheckRestrictsReplies(t *testing.T) {
	e := New()
	play(t, e, "e2e4", "e7e5", "d1h5", "b8c6", "h5f7")
	if !e.IsInCheck(Black) {
		t.Fatalf("black should be in check after Qxf7+")
	}
	moves := e.LegalMoves()
	if len(moves) != 1 || moves[0].UCI() != "e8f7" {
		t.Fatalf("replies = %v, want only Kxf7", uciSet(moves))
	}
	if _, err := e.ApplyUCI("g8f6"); !errors.Is(err, chessdto.ErrIllegalMove) {
		t.Fatalf("ignoring check: err = %v, want IllegalMove", err)
	}
	if got := e.SANMoves()[4]; got != "Qxf7+" {
		t.Fatalf("SAN = %q, want Qxf7+", got)
	}
}

func TestFoolsMate(t *testing.T) {
	e := New()
	play(t, e, "f2f3", "e7e5", "g2g4", "d8h4")
	if !e.IsCheckmate() || !e.IsGameOver() {
		t.Fatalf("expected checkmate, status=%s", e.Status())
	}
	if e.IsDraw() || e.IsStalemate() {
		t.Fatalf("checkmate must not count as a draw")
	}
	if e.Turn() != White {
		t.Fatalf("mated side should be to move")
	}
	if got := strings.Join(e.SANMoves(), " "); got != "f3 e5 g4 Qh4#" {
		t.Fatalf("SAN = %q", got)
	}
}

func TestCastling(t *testing.T) {
	e := mustEngine(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	set := uciSet(e.LegalMoves())
	if !set["e1g1"] || !set["e1c1"] {
		t.Fatalf("castling missing: %v", set)
	}
	m, err := e.ApplyUCI("e1g1")
	if err != nil {
		t.Fatalf("castle: %v", err)
	}
	if m.Flag != FlagCastleKing {
		t.Fatalf("flag = %s", m.Flag)
	}
	if got := e.FEN(); got != "r3k2r/8/8/8/8/8/8/R4RK1 b kq - 1 1" {
		t.Fatalf("after O-O: %q", got)
	}
	play(t, e, "a8b8")
	if got := e.Position().Castling.String(); got != "k" {
		t.Fatalf("rook move should drop q: %q", got)
	}

	blocked := mustEngine(t, "r3k2r/8/8/8/8/8/5r2/R3K2R w KQkq - 0 1")
	set = uciSet(blocked.LegalMoves())
	if set["e1g1"] {
		t.Fatalf("castled through attacked f1")
	}
	if !set["e1c1"] {
		t.Fatalf("queenside castle should remain legal")
	}

	inCheck := mustEngine(t, "r3k2r/8/8/8/8/8/4r3/R3K2R w KQkq - 0 1")
	set = uciSet(inCheck.LegalMoves())
	if set["e1g1"] || set["e1c1"] {
		t.Fatalf("castled out of check")
	}

	captured := mustEngine(t, "r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1")
	play(t, captured, "a8a1")
	if got := captured.Position().Castling.String(); got != "Kk" {
		t.Fatalf("captured rook rights: %q", got)
	}
}

func TestEnPassant(t *testing.T) {
	e := mustEngine(t, "4k3/3p4/8/4P3/8/8/8/4K3 b - - 0 1")
	play(t, e, "d7d5")
	if got := e.Position().EnPassant.String(); got != "d6" {
		t.Fatalf("ep target = %s", got)
	}
	m, err := e.ApplyUCI("e5d6")
	if err != nil {
		t.Fatalf("ep capture: %v", err)
	}
	if m.Flag != FlagEnPassant || m.Captured != Pawn {
		t.Fatalf("move = %+v", m)
	}
	if got := e.FEN(); got != "4k3/8/3P4/8/8/8/8/4K3 b - - 0 2" {
		t.Fatalf("after exd6: %q", got)
	}

	late := mustEngine(t, "4k3/3p4/8/4P3/8/8/8/4K3 b - - 0 1")
	play(t, late, "d7d5", "e1e2", "e8e7")
	if uciSet(late.LegalMoves())["e5d6"] {
		t.Fatalf("ep allowed after an intervening move")
	}

	pinned := mustEngine(t, "8/8/8/KPp4r/8/8/8/4k3 w - c6 0 2")
	if uciSet(pinned.LegalMoves())["b5c6"] {
		t.Fatalf("ep exposing own king must be illegal")
	}
}

func TestEnPassantNeedsCapturablePawn(t *testing.T) {
	e := New()
	if err := e.LoadPosition("8/8/8/3Pk3/8/8/8/4K3 w - e6 0 1"); !errors.Is(err, chessdto.ErrInvalidPosition) {
		t.Fatalf("LoadPosition err = %v, want InvalidPosition", err)
	}

	// a hand-built position bypasses the parser; generation must still refuse
	p := mustEngine(t, "8/8/8/3Pk3/8/8/8/4K3 w - - 0 1").Position()
	p.EnPassant = NewSquare(4, 5)
	for _, m := range p.LegalMoves() {
		if m.Flag == FlagEnPassant {
			t.Fatalf("generated %s capturing a %v", m.UCI(), m.Captured)
		}
	}
	for _, m := range p.LegalMoves() {
		after := p.After(m)
		kings := 0
		for _, pc := range after.Board {
			if pc.Kind == King {
				kings++
			}
		}
		if kings != 2 {
			t.Fatalf("%s leaves %d kings", m.UCI(), kings)
		}
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	e := mustEngine(t, "8/P7/8/8/8/8/8/k6K w - - 0 1")
	sq := func(s string) Square {
		v, err := ParseSquare(s)
		if err != nil {
			t.Fatalf("ParseSquare: %v", err)
		}
		return v
	}
	m, err := e.ApplyMove(sq("a7"), sq("a8"), NoKind)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if m.Promotion != Queen || e.PieceAt(sq("a8")) != (Piece{Kind: Queen, Side: White}) {
		t.Fatalf("default promotion = %s", m.Promotion)
	}
	if _, err := e.UndoLastMove(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	m, err = e.ApplyMove(sq("a7"), sq("a8"), Knight)
	if err != nil || m.Promotion != Knight {
		t.Fatalf("underpromotion: %+v %v", m, err)
	}
	if got := e.SANMoves()[0]; got != "a8=N" {
		t.Fatalf("SAN = %q", got)
	}
}

func TestDrawDetection(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		want Status
	}{
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", Stalemate},
		{"bare kings", "8/8/8/4k3/8/8/8/4K3 w - - 0 1", InsufficientMaterial},
		{"king and knight", "8/8/8/4k3/8/8/8/4K1N1 w - - 0 1", InsufficientMaterial},
		{"same coloured bishops", "8/8/8/4k3/8/8/2b5/4KB2 w - - 0 1", InsufficientMaterial},
		{"opposite coloured bishops", "8/8/8/4k3/8/8/3b4/4KB2 w - - 0 1", Ongoing},
		{"fifty moves", "4k3/8/8/8/8/8/8/R3K3 w - - 100 80", FiftyMoveRule},
		{"rook ending", "4k3/8/8/8/8/8/8/R3K3 w - - 99 80", Ongoing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := mustEngine(t, tc.fen)
			if got := e.Status(); got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
			if e.IsDraw() != (tc.want != Ongoing) {
				t.Fatalf("IsDraw mismatch for %s", tc.want)
			}
		})
	}
}

func TestThreefoldRepetition(t *testing.T) {
	e := New()
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	play(t, e, shuffle...)
	if e.IsDraw() {
		t.Fatalf("second occurrence is not a draw")
	}
	play(t, e, shuffle...)
	if e.Status() != ThreefoldRepetition {
		t.Fatalf("status = %s, want threefold", e.Status())
	}
	if _, err := e.UndoLastMove(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	play(t, e, "f6g8")
	if e.Status() != ThreefoldRepetition {
		t.Fatalf("undo/redo lost repetition count")
	}
	_, _ = e.UndoLastMove()
	if e.IsDraw() {
		t.Fatalf("undo should leave the repetition below three")
	}
}

func TestSANDisambiguation(t *testing.T) {
	e := mustEngine(t, "4k3/8/8/8/8/8/R6R/4K3 w - - 0 1")
	play(t, e, "a2d2")
	if got := e.SANMoves()[0]; got != "Rad2" {
		t.Fatalf("file disambiguation = %q", got)
	}

	e = mustEngine(t, "4k3/8/8/R7/8/8/8/R3K3 w - - 0 1")
	play(t, e, "a1a3")
	if got := e.SANMoves()[0]; got != "R1a3" {
		t.Fatalf("rank disambiguation = %q", got)
	}

	e = mustEngine(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	play(t, e, "e1c1", "e8g8")
	if got := strings.Join(e.SANMoves(), " "); got != "O-O-O O-O" {
		t.Fatalf("castling SAN = %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	e := New()
	play(t, e, "e2e4")
	c := e.Clone()
	play(t, c, "e7e5")
	if e.Ply() != 1 || c.Ply() != 2 {
		t.Fatalf("ply: orig=%d clone=%d", e.Ply(), c.Ply())
	}
	if _, err := c.UndoLastMove(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if c.FEN() != e.FEN() {
		t.Fatalf("clone diverged: %q vs %q", c.FEN(), e.FEN())
	}
}
