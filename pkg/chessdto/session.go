package chessdto

import "time"

// Session modes.
const (
	ModeAI  = "ai"
	ModePvP = "pvp"
)

// Session statuses.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// AIIdentity occupies the computer's seat in AI sessions.
const AIIdentity = "ai"

type MaterialScore struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// SessionState is the authoritative pull snapshot of one session.
type SessionState struct {
	SessionID  string        `json:"sessionId"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status"`
	White      string        `json:"white,omitempty"`
	Black      string        `json:"black,omitempty"`
	Difficulty int           `json:"difficulty,omitempty"`
	FEN        string        `json:"fen"`
	Turn       string        `json:"turn"`
	InCheck    bool          `json:"inCheck"`
	GameOver   bool          `json:"gameOver"`
	Winner     string        `json:"winner,omitempty"`
	WinnerID   string        `json:"winnerId,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	MovesUCI   []string      `json:"movesUci"`
	MovesSAN   []string      `json:"movesSan"`
	Material   MaterialScore `json:"material"`
	Version    int64         `json:"version"`
	StartedAt  time.Time     `json:"startedAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
