package progress

import "math"

const (
	InitialRating = 1000
	MinRating     = 100
	KFactor       = 32

	// fixed adjustment for games against the computer, which has no rating
	aiRatingDelta = 5

	winCoins  = 10
	drawCoins = 5
)

// Expected is the Elo expected score of a player rated ra against rb.
func Expected(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

// Elo returns both new ratings after a game where a scored scoreA
// (1 win, 0.5 draw, 0 loss).
func Elo(ra, rb int, scoreA float64) (int, int) {
	na := int(math.Round(float64(ra) + KFactor*(scoreA-Expected(ra, rb))))
	nb := int(math.Round(float64(rb) + KFactor*((1-scoreA)-Expected(rb, ra))))
	return clampRating(na), clampRating(nb)
}

func clampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	return r
}
