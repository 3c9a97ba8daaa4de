package ai

import "time"

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Level is the search configuration for one difficulty.
type Level struct {
	Difficulty int
	Depth      int
	Budget     time.Duration
}

// LevelFor clamps difficulty to [MinDifficulty, MaxDifficulty] and returns
// its depth and wall-clock budget. Deeper levels get less time per ply.
func LevelFor(difficulty int) Level {
	if difficulty < MinDifficulty {
		difficulty = MinDifficulty
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}
	depth := difficulty
	return Level{Difficulty: difficulty, Depth: depth, Budget: time.Duration(depth) * perPly(depth)}
}

func perPly(depth int) time.Duration {
	switch {
	case depth <= 3:
		return 400 * time.Millisecond
	case depth == 4:
		return 250 * time.Millisecond
	default:
		return 150 * time.Millisecond
	}
}
