package notify

import (
	"context"
	"time"

	"github.com/park285/cheese-arena/internal/arena"
)

// Event names understood by the account bridge.
const (
	EventGameFinished = "onGameFinished"
	EventCapture      = "onCapture"
	EventPromotion    = "onPromotion"
)

// Notification is the webhook body.
type Notification struct {
	Event     string    `json:"event"`
	SessionID string    `json:"sessionId"`
	At        time.Time `json:"at"`
	Data      any       `json:"data"`
}

type FinishedData struct {
	Mode     string   `json:"mode"`
	White    string   `json:"white"`
	Black    string   `json:"black"`
	WinnerID string   `json:"winnerId,omitempty"`
	Reason   string   `json:"reason"`
	Detail   string   `json:"detail,omitempty"`
	Moves    []string `json:"moves"`
}

type PieceData struct {
	PlayerID string `json:"playerId"`
	Side     string `json:"side"`
	Move     string `json:"move"`
	Piece    string `json:"piece"`
}

type poster interface {
	Post(ctx context.Context, v any) error
}

// Hook forwards finish, capture and promotion events.
type Hook struct {
	arena.NopHook
	c   poster
	now func() time.Time
}

func NewHook(c *Client) *Hook { return &Hook{c: c, now: time.Now} }

func (h *Hook) Name() string { return "notify" }

func (h *Hook) send(ctx context.Context, event, sessionID string, data any) error {
	return h.c.Post(ctx, Notification{Event: event, SessionID: sessionID, At: h.now().UTC(), Data: data})
}

func (h *Hook) Captured(ctx context.Context, ev arena.PieceEvent) error {
	return h.send(ctx, EventCapture, ev.SessionID, PieceData{PlayerID: ev.PlayerID, Side: ev.Side, Move: ev.Move, Piece: ev.Piece})
}

func (h *Hook) Promoted(ctx context.Context, ev arena.PieceEvent) error {
	return h.send(ctx, EventPromotion, ev.SessionID, PieceData{PlayerID: ev.PlayerID, Side: ev.Side, Move: ev.Move, Piece: ev.Piece})
}

func (h *Hook) GameFinished(ctx context.Context, ev arena.FinishedEvent) error {
	return h.send(ctx, EventGameFinished, ev.SessionID, FinishedData{
		Mode:     ev.Mode,
		White:    ev.White,
		Black:    ev.Black,
		WinnerID: ev.WinnerID,
		Reason:   ev.Reason,
		Detail:   ev.Detail,
		Moves:    ev.MovesUCI,
	})
}
