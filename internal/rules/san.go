package rules

import "strings"

// SAN renders m, played from prior, in standard algebraic notation with
// check and mate suffixes.
func SAN(prior Position, m Move) string {
	var b strings.Builder
	switch m.Flag {
	case FlagCastleKing:
		b.WriteString("O-O")
	case FlagCastleQueen:
		b.WriteString("O-O-O")
	default:
		if m.Piece == Pawn {
			if m.IsCapture() {
				b.WriteByte(byte('a' + m.From.File()))
			}
		} else {
			b.WriteByte(m.Piece.Letter() - ('a' - 'A'))
			b.WriteString(disambiguate(prior, m))
		}
		if m.IsCapture() {
			b.WriteByte('x')
		}
		b.WriteString(m.To.String())
		if m.Promotion != NoKind {
			b.WriteByte('=')
			b.WriteByte(m.Promotion.Letter() - ('a' - 'A'))
		}
	}

	after := prior.play(m)
	if after.InCheck(after.Turn) {
		if len(after.legalMoves(NoSquare)) == 0 {
			b.WriteByte('#')
		} else {
			b.WriteByte('+')
		}
	}
	return b.String()
}

func disambiguate(prior Position, m Move) string {
	var rivals []Move
	for _, o := range prior.legalMoves(NoSquare) {
		if o.Piece == m.Piece && o.To == m.To && o.From != m.From {
			rivals = append(rivals, o)
		}
	}
	if len(rivals) == 0 {
		return ""
	}
	sameFile, sameRank := false, false
	for _, o := range rivals {
		if o.From.File() == m.From.File() {
			sameFile = true
		}
		if o.From.Rank() == m.From.Rank() {
			sameRank = true
		}
	}
	switch {
	case !sameFile:
		return string(rune('a' + m.From.File()))
	case !sameRank:
		return string(rune('1' + m.From.Rank()))
	default:
		return m.From.String()
	}
}
