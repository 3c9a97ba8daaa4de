package chessdto

// AppliedMove describes one committed move.
type AppliedMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Piece     string `json:"piece"`
	Promotion string `json:"promotion,omitempty"`
	Captured  string `json:"captured,omitempty"`
	Flag      string `json:"flag,omitempty"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
}

// MovePayload is the result of one applied move, human or AI.
type MovePayload struct {
	By       string      `json:"by"`
	Side     string      `json:"side"`
	Move     AppliedMove `json:"move"`
	FEN      string      `json:"fen"`
	Turn     string      `json:"turn"`
	InCheck  bool        `json:"inCheck"`
	GameOver bool        `json:"gameOver"`
	Winner   string      `json:"winner,omitempty"`
}

// Game-over reasons.
const (
	ReasonCheckmate   = "checkmate"
	ReasonDraw        = "draw"
	ReasonResignation = "resignation"
	ReasonDisconnect  = "disconnect"
	ReasonAbandoned   = "abandoned"
)

// GameOverPayload announces the terminal result. Winner is a side name and
// empty for draws; Detail refines draws (stalemate, threefold_repetition, ...).
type GameOverPayload struct {
	Winner   string `json:"winner,omitempty"`
	WinnerID string `json:"winnerId,omitempty"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

type ChatPayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// UndoPayload reports a rollback in an AI session.
type UndoPayload struct {
	Undone []string `json:"undone"`
	FEN    string   `json:"fen"`
	Turn   string   `json:"turn"`
}
