package chessdto

type CreateAIGameRequest struct {
	Difficulty int `json:"difficulty" validate:"required,min=1,max=5"`
}

type CreateAIGameResponse struct {
	SessionID string `json:"sessionId"`
	Side      string `json:"side"`
}

type MatchRequest struct {
	Rating int `json:"rating" validate:"omitempty,min=100,max=4000"`
}

// MatchResponse is either Pending or a seated session.
type MatchResponse struct {
	Pending   bool   `json:"pending,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Side      string `json:"side,omitempty"`
	Opponent  string `json:"opponent,omitempty"`
}

type LobbyCreateRequest struct {
	Rating int `json:"rating" validate:"omitempty,min=100,max=4000"`
}

type LobbyResponse struct {
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
}

type MoveRequest struct {
	From      string `json:"from" validate:"required,len=2"`
	To        string `json:"to" validate:"required,len=2"`
	Promotion string `json:"promotion,omitempty" validate:"omitempty,max=6"`
}

// MoveResponse lists the events committed by one submission in order.
type MoveResponse struct {
	Events []Event `json:"events"`
}

type ChatRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
