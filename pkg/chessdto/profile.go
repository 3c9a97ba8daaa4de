package chessdto

import "time"

// Profile is a player's persisted rating and wallet.
type Profile struct {
	PlayerID    string    `json:"playerId"`
	Rating      int       `json:"rating"`
	Coins       int       `json:"coins"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Draws       int       `json:"draws"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type QuestProgress struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Progress  int    `json:"progress"`
	Target    int    `json:"target"`
	Reward    int    `json:"reward"`
	Completed bool   `json:"completed"`
}

// QuestBoard is one player's quest state for a UTC day (YYYY-MM-DD).
type QuestBoard struct {
	Day    string          `json:"day"`
	Quests []QuestProgress `json:"quests"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
}
