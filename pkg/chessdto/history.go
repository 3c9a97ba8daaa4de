package chessdto

import "time"

// GameRecord is the stored summary of a finished session.
type GameRecord struct {
	ID        int64     `json:"id,omitempty"`
	SessionID string    `json:"sessionId"`
	Mode      string    `json:"mode"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Result    string    `json:"result"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	StartFEN  string    `json:"startFen"`
	ECO       string    `json:"eco,omitempty"`
	Opening   string    `json:"opening,omitempty"`
	MovesUCI  []string  `json:"movesUci"`
	MovesSAN  []string  `json:"movesSan"`
	PGN       string    `json:"pgn"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

