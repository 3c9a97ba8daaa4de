package rules

var promotionKinds = []Kind{Queen, Rook, Bishop, Knight}

// legalMoves returns every legal move for the side to move. When from is a
// valid square only moves of the piece on it are produced.
func (p *Position) legalMoves(from Square) []Move {
	pseudo := p.pseudoMoves(from, make([]Move, 0, 48))
	legal := pseudo[:0]
	us := p.Turn
	for _, m := range pseudo {
		n := p.play(m)
		if !n.InCheck(us) {
			legal = append(legal, m)
		}
	}
	return legal
}

func (p *Position) pseudoMoves(only Square, out []Move) []Move {
	us := p.Turn
	for i := 0; i < 64; i++ {
		sq := Square(i)
		if only != NoSquare && sq != only {
			continue
		}
		pc := p.Board[sq]
		if pc.Empty() || pc.Side != us {
			continue
		}
		switch pc.Kind {
		case Pawn:
			out = p.pawnMoves(sq, out)
		case Knight:
			out = p.stepMoves(sq, Knight, knightDeltas, out)
		case Bishop:
			out = p.slideMoves(sq, Bishop, bishopDirs, out)
		case Rook:
			out = p.slideMoves(sq, Rook, rookDirs, out)
		case Queen:
			out = p.slideMoves(sq, Queen, rookDirs, out)
			out = p.slideMoves(sq, Queen, bishopDirs, out)
		case King:
			out = p.stepMoves(sq, King, kingDeltas, out)
			out = p.castleMoves(sq, out)
		}
	}
	return out
}

func (p *Position) stepMoves(from Square, kind Kind, deltas []delta, out []Move) []Move {
	for _, d := range deltas {
		to, ok := step(from, d)
		if !ok {
			continue
		}
		target := p.Board[to]
		if target.Empty() {
			out = append(out, Move{From: from, To: to, Piece: kind})
		} else if target.Side != p.Turn {
			out = append(out, Move{From: from, To: to, Piece: kind, Captured: target.Kind})
		}
	}
	return out
}

func (p *Position) slideMoves(from Square, kind Kind, dirs []delta, out []Move) []Move {
	for _, d := range dirs {
		to := from
		for {
			var ok bool
			to, ok = step(to, d)
			if !ok {
				break
			}
			target := p.Board[to]
			if target.Empty() {
				out = append(out, Move{From: from, To: to, Piece: kind})
				continue
			}
			if target.Side != p.Turn {
				out = append(out, Move{From: from, To: to, Piece: kind, Captured: target.Kind})
			}
			break
		}
	}
	return out
}

func (p *Position) pawnMoves(from Square, out []Move) []Move {
	dir, startRank, lastRank := 1, 1, 7
	if p.Turn == Black {
		dir, startRank, lastRank = -1, 6, 0
	}
	add := func(m Move) {
		if m.To.Rank() == lastRank {
			for _, k := range promotionKinds {
				pm := m
				pm.Promotion = k
				out = append(out, pm)
			}
			return
		}
		out = append(out, m)
	}

	if one, ok := step(from, delta{0, dir}); ok && p.Board[one].Empty() {
		add(Move{From: from, To: one, Piece: Pawn})
		if from.Rank() == startRank {
			if two, ok := step(one, delta{0, dir}); ok && p.Board[two].Empty() {
				out = append(out, Move{From: from, To: two, Piece: Pawn, Flag: FlagDoublePush})
			}
		}
	}
	for _, df := range []int{-1, 1} {
		to, ok := step(from, delta{df, dir})
		if !ok {
			continue
		}
		target := p.Board[to]
		if !target.Empty() && target.Side != p.Turn {
			add(Move{From: from, To: to, Piece: Pawn, Captured: target.Kind})
		} else if to == p.EnPassant && target.Empty() && p.Board[NewSquare(to.File(), from.Rank())] == (Piece{Kind: Pawn, Side: p.Turn.Other()}) {
			out = append(out, Move{From: from, To: to, Piece: Pawn, Captured: Pawn, Flag: FlagEnPassant})
		}
	}
	return out
}

func (p *Position) castleMoves(from Square, out []Move) []Move {
	rank := 0
	kingSide, queenSide := WhiteKingside, WhiteQueenside
	if p.Turn == Black {
		rank = 7
		kingSide, queenSide = BlackKingside, BlackQueenside
	}
	if from != NewSquare(4, rank) || p.Castling&(kingSide|queenSide) == 0 {
		return out
	}
	them := p.Turn.Other()
	if p.Attacked(from, them) {
		return out
	}
	rook := Piece{Kind: Rook, Side: p.Turn}
	if p.Castling&kingSide != 0 && p.Board[NewSquare(7, rank)] == rook &&
		p.Board[NewSquare(5, rank)].Empty() && p.Board[NewSquare(6, rank)].Empty() &&
		!p.Attacked(NewSquare(5, rank), them) && !p.Attacked(NewSquare(6, rank), them) {
		out = append(out, Move{From: from, To: NewSquare(6, rank), Piece: King, Flag: FlagCastleKing})
	}
	if p.Castling&queenSide != 0 && p.Board[NewSquare(0, rank)] == rook &&
		p.Board[NewSquare(1, rank)].Empty() && p.Board[NewSquare(2, rank)].Empty() && p.Board[NewSquare(3, rank)].Empty() &&
		!p.Attacked(NewSquare(3, rank), them) && !p.Attacked(NewSquare(2, rank), them) {
		out = append(out, Move{From: from, To: NewSquare(2, rank), Piece: King, Flag: FlagCastleQueen})
	}
	return out
}
