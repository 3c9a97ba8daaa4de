package rules

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Side identifies a chess colour.
type Side uint8

const (
	White Side = iota
	Black
)

func (s Side) Other() Side { return s ^ 1 }

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// ParseSide accepts "white"/"w" and "black"/"b".
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	}
	return White, false
}

// Kind is a piece type. NoKind marks an empty square or an absent promotion.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{' ', 'p', 'n', 'b', 'r', 'q', 'k'}

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	}
	return ""
}

// Letter returns the lower-case FEN letter, or 0 for NoKind.
func (k Kind) Letter() byte {
	if k == NoKind || int(k) >= len(kindLetters) {
		return 0
	}
	return kindLetters[k]
}

// ParsePromotion maps "q", "queen", "N", ... to a promotion kind.
// Empty input returns NoKind without error.
func ParsePromotion(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoKind, nil
	case "q", "queen":
		return Queen, nil
	case "r", "rook":
		return Rook, nil
	case "b", "bishop":
		return Bishop, nil
	case "n", "knight":
		return Knight, nil
	}
	return NoKind, fmt.Errorf("promotion %q: %w", s, chessdto.ErrIllegalMove)
}

// Piece is the content of one square. The zero value is an empty square.
type Piece struct {
	Kind Kind
	Side Side
}

func (p Piece) Empty() bool { return p.Kind == NoKind }

// FEN returns the single FEN character for p (upper case for white).
func (p Piece) FEN() byte {
	c := p.Kind.Letter()
	if c == 0 {
		return 0
	}
	if p.Side == White {
		c -= 'a' - 'A'
	}
	return c
}

// Square indexes the board from a1 (0) to h8 (63).
type Square int8

const NoSquare Square = -1

func NewSquare(file, rank int) Square { return Square(rank*8 + file) }

func (s Square) File() int { return int(s) & 7 }
func (s Square) Rank() int { return int(s) >> 3 }

func (s Square) Valid() bool { return s >= 0 && s < 64 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// light reports whether s is a light square (h1 is light).
func (s Square) light() bool { return (s.File()+s.Rank())%2 == 1 }

// ParseSquare parses algebraic coordinates like "e4".
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("square %q: %w", s, chessdto.ErrBadRequest)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}

// Flag marks the special-move variant of a Move.
type Flag uint8

const (
	FlagNone Flag = iota
	FlagDoublePush
	FlagEnPassant
	FlagCastleKing
	FlagCastleQueen
)

func (f Flag) String() string {
	switch f {
	case FlagDoublePush:
		return "double_push"
	case FlagEnPassant:
		return "en_passant"
	case FlagCastleKing:
		return "castle_kingside"
	case FlagCastleQueen:
		return "castle_queenside"
	}
	return "none"
}

// Move is a fully described move as produced by move generation.
type Move struct {
	From      Square
	To        Square
	Piece     Kind
	Promotion Kind
	Captured  Kind
	Flag      Flag
}

// UCI returns long algebraic notation, e.g. e2e4 or e7e8q.
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoKind {
		s += string(m.Promotion.Letter())
	}
	return s
}

func (m Move) IsCapture() bool { return m.Captured != NoKind }

// Castling rights bits.
type Castling uint8

const (
	WhiteKingside Castling = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside
)

func (c Castling) String() string {
	if c == 0 {
		return "-"
	}
	var b strings.Builder
	if c&WhiteKingside != 0 {
		b.WriteByte('K')
	}
	if c&WhiteQueenside != 0 {
		b.WriteByte('Q')
	}
	if c&BlackKingside != 0 {
		b.WriteByte('k')
	}
	if c&BlackQueenside != 0 {
		b.WriteByte('q')
	}
	return b.String()
}
