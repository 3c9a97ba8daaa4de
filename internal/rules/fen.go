package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func invalidFEN(format string, args ...any) error {
	return fmt.Errorf("fen: "+format+": %w", append(args, chessdto.ErrInvalidPosition)...)
}

// parseFEN validates s completely and returns the decoded position.
func parseFEN(s string) (Position, error) {
	var p Position
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return p, invalidFEN("expected 6 fields, got %d", len(fields))
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return p, invalidFEN("expected 8 ranks, got %d", len(ranks))
	}
	kings := [2]int{}
	for i, row := range ranks {
		rank := 7 - i
		file := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				if file > 8 {
					return p, invalidFEN("rank %d overflows", rank+1)
				}
				continue
			}
			pc, ok := pieceFromFEN(c)
			if !ok {
				return p, invalidFEN("bad piece %q", c)
			}
			if file > 7 {
				return p, invalidFEN("rank %d overflows", rank+1)
			}
			if pc.Kind == Pawn && (rank == 0 || rank == 7) {
				return p, invalidFEN("pawn on rank %d", rank+1)
			}
			if pc.Kind == King {
				kings[pc.Side]++
			}
			p.Board[NewSquare(file, rank)] = pc
			file++
		}
		if file != 8 {
			return p, invalidFEN("rank %d has %d files", rank+1, file)
		}
	}
	if kings[White] != 1 || kings[Black] != 1 {
		return p, invalidFEN("need exactly one king per side")
	}

	switch fields[1] {
	case "w":
		p.Turn = White
	case "b":
		p.Turn = Black
	default:
		return p, invalidFEN("side to move %q", fields[1])
	}

	if fields[2] != "-" {
		for j := 0; j < len(fields[2]); j++ {
			var bit Castling
			switch fields[2][j] {
			case 'K':
				bit = WhiteKingside
			case 'Q':
				bit = WhiteQueenside
			case 'k':
				bit = BlackKingside
			case 'q':
				bit = BlackQueenside
			default:
				return p, invalidFEN("castling %q", fields[2])
			}
			if p.Castling&bit != 0 {
				return p, invalidFEN("castling %q repeats", fields[2])
			}
			p.Castling |= bit
		}
	}

	p.EnPassant = NoSquare
	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return p, invalidFEN("en passant %q", fields[3])
		}
		want := 5
		if p.Turn == Black {
			want = 2
		}
		if sq.Rank() != want {
			return p, invalidFEN("en passant %q on wrong rank", fields[3])
		}
		// the pawn that just double-pushed sits behind the target and passed over it
		back := -1
		if p.Turn == Black {
			back = 1
		}
		pushed := NewSquare(sq.File(), sq.Rank()+back)
		origin := NewSquare(sq.File(), sq.Rank()-back)
		if p.Board[pushed] != (Piece{Kind: Pawn, Side: p.Turn.Other()}) || !p.Board[sq].Empty() || !p.Board[origin].Empty() {
			return p, invalidFEN("en passant %q without a double-pushed pawn", fields[3])
		}
		p.EnPassant = sq
	}

	half, err := strconv.Atoi(fields[4])
	if err != nil || half < 0 {
		return p, invalidFEN("half-move clock %q", fields[4])
	}
	full, err := strconv.Atoi(fields[5])
	if err != nil || full < 1 {
		return p, invalidFEN("full-move number %q", fields[5])
	}
	p.HalfMove, p.FullMove = half, full

	if p.InCheck(p.Turn.Other()) {
		return p, invalidFEN("side not to move is in check")
	}
	return p, nil
}

func pieceFromFEN(c byte) (Piece, bool) {
	side := White
	if c >= 'a' && c <= 'z' {
		side = Black
		c -= 'a' - 'A'
	}
	var k Kind
	switch c {
	case 'P':
		k = Pawn
	case 'N':
		k = Knight
	case 'B':
		k = Bishop
	case 'R':
		k = Rook
	case 'Q':
		k = Queen
	case 'K':
		k = King
	default:
		return Piece{}, false
	}
	return Piece{Kind: k, Side: side}, true
}

func (p *Position) placement() string {
	var b strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.Board[NewSquare(file, rank)]
			if pc.Empty() {
				empty++
				continue
			}
			if empty > 0 {
				b.WriteByte(byte('0' + empty))
				empty = 0
			}
			b.WriteByte(pc.FEN())
		}
		if empty > 0 {
			b.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			b.WriteByte('/')
		}
	}
	return b.String()
}

func sideToken(s Side) string {
	if s == White {
		return "w"
	}
	return "b"
}

// FEN encodes p.
func (p *Position) FEN() string {
	return fmt.Sprintf("%s %s %s %s %d %d",
		p.placement(), sideToken(p.Turn), p.Castling.String(), p.EnPassant.String(), p.HalfMove, p.FullMove)
}
