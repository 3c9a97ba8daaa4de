package ai

import "github.com/park285/cheese-arena/internal/rules"

// pieceValue is in hundredths of a pawn. The king carries no material value.
var pieceValue = [...]int{
	rules.NoKind: 0,
	rules.Pawn:   100,
	rules.Knight: 300,
	rules.Bishop: 325,
	rules.Rook:   500,
	rules.Queen:  900,
	rules.King:   0,
}

// Evaluate returns the signed material balance, positive for white.
func Evaluate(p rules.Position) int {
	score := 0
	for _, pc := range p.Board {
		if pc.Empty() {
			continue
		}
		if pc.Side == rules.White {
			score += pieceValue[pc.Kind]
		} else {
			score -= pieceValue[pc.Kind]
		}
	}
	return score
}

// Material sums each side's material in whole pawns, for display.
func Material(p rules.Position) (white, black int) {
	for _, pc := range p.Board {
		if pc.Empty() {
			continue
		}
		if pc.Side == rules.White {
			white += pieceValue[pc.Kind]
		} else {
			black += pieceValue[pc.Kind]
		}
	}
	return white / 100, black / 100
}
