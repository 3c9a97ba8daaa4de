package lobby

import "time"

// State is the lifecycle of a private match room.
type State string

const (
	StateLobby   State = "LOBBY"
	StateActive  State = "ACTIVE"
	StateAborted State = "ABORTED"
)

// Meta is stored as JSON in Redis under lobby:<code>.
type Meta struct {
	Code          string    `json:"code"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	CreatorID     string    `json:"creator_id"`
	CreatorRating int       `json:"creator_rating,omitempty"`
	SessionID     string    `json:"session_id"`

	WhiteID string `json:"white_id,omitempty"`
	BlackID string `json:"black_id,omitempty"`
}

type MakeResult struct {
	Code      string
	SessionID string
}

type JoinResult struct {
	SessionID string
	Side      string
	Opponent  string
}
