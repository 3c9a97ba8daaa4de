package rules

// Position is a complete, self-contained chess position. It is a value
// type; copying it yields an independent snapshot.
type Position struct {
	Board     [64]Piece
	Turn      Side
	Castling  Castling
	EnPassant Square
	HalfMove  int
	FullMove  int
}

type delta struct{ df, dr int }

var (
	knightDeltas = []delta{{1, 2}, {2, 1}, {-1, 2}, {-2, 1}, {1, -2}, {2, -1}, {-1, -2}, {-2, -1}}
	kingDeltas   = []delta{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	rookDirs     = []delta{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs   = []delta{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// castlingLoss[sq] lists the rights forfeited when a piece leaves or lands on sq.
var castlingLoss = func() [64]Castling {
	var t [64]Castling
	t[NewSquare(4, 0)] = WhiteKingside | WhiteQueenside
	t[NewSquare(0, 0)] = WhiteQueenside
	t[NewSquare(7, 0)] = WhiteKingside
	t[NewSquare(4, 7)] = BlackKingside | BlackQueenside
	t[NewSquare(0, 7)] = BlackQueenside
	t[NewSquare(7, 7)] = BlackKingside
	return t
}()

func step(sq Square, d delta) (Square, bool) {
	f, r := sq.File()+d.df, sq.Rank()+d.dr
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return NoSquare, false
	}
	return NewSquare(f, r), true
}

// StartPosition returns the standard initial position.
func StartPosition() Position {
	p, err := parseFEN(StartFEN)
	if err != nil {
		panic("rules: bad start FEN: " + err.Error())
	}
	return p
}

func (p *Position) kingSquare(side Side) Square {
	for i, pc := range p.Board {
		if pc.Kind == King && pc.Side == side {
			return Square(i)
		}
	}
	return NoSquare
}

// Attacked reports whether sq is attacked by any piece of side by.
func (p *Position) Attacked(sq Square, by Side) bool {
	if !sq.Valid() {
		return false
	}
	pawnRank := -1
	if by == Black {
		pawnRank = 1
	}
	for _, df := range []int{-1, 1} {
		if s, ok := step(sq, delta{df, pawnRank}); ok {
			if pc := p.Board[s]; pc.Kind == Pawn && pc.Side == by {
				return true
			}
		}
	}
	for _, d := range knightDeltas {
		if s, ok := step(sq, d); ok {
			if pc := p.Board[s]; pc.Kind == Knight && pc.Side == by {
				return true
			}
		}
	}
	for _, d := range kingDeltas {
		if s, ok := step(sq, d); ok {
			if pc := p.Board[s]; pc.Kind == King && pc.Side == by {
				return true
			}
		}
	}
	if p.slidingAttack(sq, by, rookDirs, Rook) || p.slidingAttack(sq, by, bishopDirs, Bishop) {
		return true
	}
	return false
}

func (p *Position) slidingAttack(sq Square, by Side, dirs []delta, kind Kind) bool {
	for _, d := range dirs {
		s := sq
		for {
			var ok bool
			s, ok = step(s, d)
			if !ok {
				break
			}
			pc := p.Board[s]
			if pc.Empty() {
				continue
			}
			if pc.Side == by && (pc.Kind == kind || pc.Kind == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// InCheck reports whether side's king is attacked.
func (p *Position) InCheck(side Side) bool {
	k := p.kingSquare(side)
	return k != NoSquare && p.Attacked(k, side.Other())
}

// play returns the position after m. m must be pseudo-legal in p.
func (p Position) play(m Move) Position {
	n := p
	mover := n.Board[m.From]
	n.Board[m.From] = Piece{}
	rank := m.From.Rank()
	switch m.Flag {
	case FlagEnPassant:
		n.Board[NewSquare(m.To.File(), rank)] = Piece{}
	case FlagCastleKing:
		n.Board[NewSquare(5, rank)] = n.Board[NewSquare(7, rank)]
		n.Board[NewSquare(7, rank)] = Piece{}
	case FlagCastleQueen:
		n.Board[NewSquare(3, rank)] = n.Board[NewSquare(0, rank)]
		n.Board[NewSquare(0, rank)] = Piece{}
	}
	if m.Promotion != NoKind {
		mover.Kind = m.Promotion
	}
	n.Board[m.To] = mover

	n.Castling &^= castlingLoss[m.From] | castlingLoss[m.To]
	n.EnPassant = NoSquare
	if m.Flag == FlagDoublePush {
		n.EnPassant = NewSquare(m.From.File(), (m.From.Rank()+m.To.Rank())/2)
	}
	if m.Piece == Pawn || m.Captured != NoKind {
		n.HalfMove = 0
	} else {
		n.HalfMove++
	}
	if p.Turn == Black {
		n.FullMove++
	}
	n.Turn = p.Turn.Other()
	return n
}

// repetitionKey identifies a position for threefold repetition: placement,
// side to move, castling rights and a capturable en-passant square.
func (p *Position) repetitionKey() string {
	ep := NoSquare
	if p.EnPassant != NoSquare && p.epCapturable() {
		ep = p.EnPassant
	}
	return p.placement() + " " + sideToken(p.Turn) + " " + p.Castling.String() + " " + ep.String()
}

func (p *Position) epCapturable() bool {
	dr := -1
	if p.Turn == Black {
		dr = 1
	}
	for _, df := range []int{-1, 1} {
		if s, ok := step(p.EnPassant, delta{df, dr}); ok {
			if pc := p.Board[s]; pc.Kind == Pawn && pc.Side == p.Turn {
				return true
			}
		}
	}
	return false
}

// insufficientMaterial covers K v K, K+minor v K and bishops-only on one square colour.
func (p *Position) insufficientMaterial() bool {
	var minors, bishops, lightBishops int
	for i, pc := range p.Board {
		switch pc.Kind {
		case NoKind, King:
		case Pawn, Rook, Queen:
			return false
		case Knight:
			minors++
		case Bishop:
			minors++
			bishops++
			if Square(i).light() {
				lightBishops++
			}
		}
	}
	if minors <= 1 {
		return true
	}
	return bishops == minors && (lightBishops == 0 || lightBishops == bishops)
}
