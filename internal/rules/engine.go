package rules

import (
	"fmt"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Status is the terminal classification of the current position.
type Status uint8

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
	FiftyMoveRule
	InsufficientMaterial
	ThreefoldRepetition
)

func (s Status) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case FiftyMoveRule:
		return "fifty_move_rule"
	case InsufficientMaterial:
		return "insufficient_material"
	case ThreefoldRepetition:
		return "threefold_repetition"
	}
	return "ongoing"
}

// IsDraw reports whether s is one of the drawn terminations.
func (s Status) IsDraw() bool { return s >= Stalemate }

type played struct {
	prior Position
	move  Move
}

// Engine owns one game's position plus the history needed to undo moves and
// detect repetition. An Engine is not safe for concurrent use.
type Engine struct {
	start   Position
	pos     Position
	history []played
	seen    map[string]int
}

// New returns an engine at the standard start position.
func New() *Engine {
	e := &Engine{}
	e.Reset()
	return e
}

// NewFromFEN returns an engine at the given position.
func NewFromFEN(fen string) (*Engine, error) {
	e := &Engine{}
	if err := e.LoadPosition(fen); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset restores the standard start position and clears history.
func (e *Engine) Reset() { e.load(StartPosition()) }

// LoadPosition replaces the current game with fen. On error the engine is
// left untouched.
func (e *Engine) LoadPosition(fen string) error {
	p, err := parseFEN(fen)
	if err != nil {
		return err
	}
	e.load(p)
	return nil
}

func (e *Engine) load(p Position) {
	e.start = p
	e.pos = p
	e.history = e.history[:0]
	e.seen = map[string]int{p.repetitionKey(): 1}
}

// Clone returns an independent deep copy.
func (e *Engine) Clone() *Engine {
	c := &Engine{
		start:   e.start,
		pos:     e.pos,
		history: append([]played(nil), e.history...),
		seen:    make(map[string]int, len(e.seen)),
	}
	for k, v := range e.seen {
		c.seen[k] = v
	}
	return c
}

func (e *Engine) Position() Position { return e.pos }
func (e *Engine) FEN() string { return e.pos.FEN() }
func (e *Engine) StartFEN() string { return e.start.FEN() }
func (e *Engine) Turn() Side { return e.pos.Turn }
func (e *Engine) Board() [64]Piece { return e.pos.Board }
func (e *Engine) PieceAt(sq Square) Piece {
	if !sq.Valid() {
		return Piece{}
	}
	return e.pos.Board[sq]
}

// Ply is the number of moves applied since the last reset or load.
func (e *Engine) Ply() int { return len(e.history) }

// LegalMoves lists every legal move for the side to move.
func (e *Engine) LegalMoves() []Move { return e.pos.legalMoves(NoSquare) }

// LegalMovesFrom lists the legal moves of the piece on sq.
func (e *Engine) LegalMovesFrom(sq Square) []Move {
	if !sq.Valid() {
		return nil
	}
	return e.pos.legalMoves(sq)
}

// ApplyMove plays from→to. promo selects the promotion piece; NoKind
// defaults to a queen and is ignored for non-promoting moves.
func (e *Engine) ApplyMove(from, to Square, promo Kind) (Move, error) {
	if !from.Valid() || !to.Valid() {
		return Move{}, fmt.Errorf("apply %s%s: %w", from, to, chessdto.ErrIllegalMove)
	}
	if promo == NoKind {
		promo = Queen
	}
	var found *Move
	for _, m := range e.pos.legalMoves(from) {
		if m.To != to {
			continue
		}
		if m.Promotion != NoKind && m.Promotion != promo {
			continue
		}
		mm := m
		found = &mm
		break
	}
	if found == nil {
		return Move{}, fmt.Errorf("apply %s%s: %w", from, to, chessdto.ErrIllegalMove)
	}
	e.push(*found)
	return *found, nil
}

// ApplyUCI parses long algebraic notation (e2e4, e7e8q) and applies it.
func (e *Engine) ApplyUCI(uci string) (Move, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return Move{}, fmt.Errorf("uci %q: %w", uci, chessdto.ErrIllegalMove)
	}
	from, err := ParseSquare(uci[:2])
	if err != nil {
		return Move{}, fmt.Errorf("uci %q: %w", uci, chessdto.ErrIllegalMove)
	}
	to, err := ParseSquare(uci[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("uci %q: %w", uci, chessdto.ErrIllegalMove)
	}
	promo, err := ParsePromotion(uci[4:])
	if err != nil {
		return Move{}, err
	}
	return e.ApplyMove(from, to, promo)
}

func (e *Engine) push(m Move) {
	e.history = append(e.history, played{prior: e.pos, move: m})
	e.pos = e.pos.play(m)
	e.seen[e.pos.repetitionKey()]++
}

// UndoLastMove reverts the most recent move and returns it.
func (e *Engine) UndoLastMove() (Move, error) {
	if len(e.history) == 0 {
		return Move{}, fmt.Errorf("undo: %w", chessdto.ErrNoHistory)
	}
	key := e.pos.repetitionKey()
	if e.seen[key] <= 1 {
		delete(e.seen, key)
	} else {
		e.seen[key]--
	}
	last := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	e.pos = last.prior
	return last.move, nil
}

// Moves returns the applied moves in order.
func (e *Engine) Moves() []Move {
	out := make([]Move, len(e.history))
	for i, h := range e.history {
		out[i] = h.move
	}
	return out
}

// SANMoves returns the applied moves in standard algebraic notation.
func (e *Engine) SANMoves() []string {
	out := make([]string, len(e.history))
	for i, h := range e.history {
		out[i] = SAN(h.prior, h.move)
	}
	return out
}

// LastMove returns the most recently applied move.
func (e *Engine) LastMove() (Move, bool) {
	if len(e.history) == 0 {
		return Move{}, false
	}
	return e.history[len(e.history)-1].move, true
}

func (e *Engine) IsInCheck(side Side) bool { return e.pos.InCheck(side) }

func (e *Engine) IsCheckmate() bool { return e.Status() == Checkmate }

func (e *Engine) IsStalemate() bool { return e.Status() == Stalemate }

// IsDraw covers stalemate, the fifty-move rule, insufficient material and
// threefold repetition.
func (e *Engine) IsDraw() bool { return e.Status().IsDraw() }

func (e *Engine) IsGameOver() bool { return e.Status() != Ongoing }

// Status classifies the current position. Checkmate takes precedence over
// every draw rule.
func (e *Engine) Status() Status {
	if len(e.pos.legalMoves(NoSquare)) == 0 {
		if e.pos.InCheck(e.pos.Turn) {
			return Checkmate
		}
		return Stalemate
	}
	if e.pos.insufficientMaterial() {
		return InsufficientMaterial
	}
	if e.pos.HalfMove >= 100 {
		return FiftyMoveRule
	}
	if e.seen[e.pos.repetitionKey()] >= 3 {
		return ThreefoldRepetition
	}
	return Ongoing
}

// LegalMoves lists the legal moves in p without any history bookkeeping.
func (p Position) LegalMoves() []Move { return p.legalMoves(NoSquare) }

// After returns the position reached by playing m, which must come from
// p.LegalMoves.
func (p Position) After(m Move) Position { return p.play(m) }
