package arena

import (
	"time"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting    Status = chessdto.StatusWaiting
	StatusInProgress Status = chessdto.StatusInProgress
	StatusFinished   Status = chessdto.StatusFinished
)

// Outcome classifies a finished session.
type Outcome string

const (
	OutcomeCheckmate   Outcome = "checkmate"
	OutcomeStalemate   Outcome = "stalemate"
	OutcomeDrawOther   Outcome = "draw_other"
	OutcomeResignation Outcome = "resignation"
	OutcomeDisconnect  Outcome = "disconnect"
	OutcomeAbandoned   Outcome = "abandoned"
)

// Result is the terminal result of a session. Decisive is false for draws
// and abandoned sessions, in which case Winner is meaningless.
type Result struct {
	Outcome  Outcome
	Detail   string
	Decisive bool
	Winner   rules.Side
}

// Reason maps the outcome to the wire reason.
func (r Result) Reason() string {
	switch r.Outcome {
	case OutcomeCheckmate:
		return chessdto.ReasonCheckmate
	case OutcomeStalemate, OutcomeDrawOther:
		return chessdto.ReasonDraw
	case OutcomeResignation:
		return chessdto.ReasonResignation
	case OutcomeDisconnect:
		return chessdto.ReasonDisconnect
	}
	return chessdto.ReasonAbandoned
}

func (r Result) WinnerName() string {
	if !r.Decisive {
		return ""
	}
	return r.Winner.String()
}

func resultFromStatus(st rules.Status, mover rules.Side) Result {
	switch st {
	case rules.Checkmate:
		return Result{Outcome: OutcomeCheckmate, Detail: st.String(), Decisive: true, Winner: mover}
	case rules.Stalemate:
		return Result{Outcome: OutcomeStalemate, Detail: st.String()}
	}
	return Result{Outcome: OutcomeDrawOther, Detail: st.String()}
}

// StartedEvent is emitted when a session enters in-progress.
type StartedEvent struct {
	SessionID string
	Mode      string
	White     string
	Black     string
	At        time.Time
}

// PieceEvent reports a capture or promotion by PlayerID.
type PieceEvent struct {
	SessionID string
	PlayerID  string
	Side      string
	Move      string
	Piece     string
}

// FinishedEvent is the terminal report handed to collaborators. WinnerID is
// empty for draws.
type FinishedEvent struct {
	SessionID  string
	Mode       string
	Difficulty int
	White      string
	Black      string
	WinnerID   string
	Winner     string
	Reason     string
	Detail     string
	StartFEN   string
	FinalFEN   string
	MovesUCI   []string
	MovesSAN   []string
	StartedAt  time.Time
	EndedAt    time.Time
}

// Draw reports whether the game ended without a winner.
func (e FinishedEvent) Draw() bool { return e.WinnerID == "" }

// MoveOutcome lists, in commit order, everything one submission changed.
// AI and Over are nil when the submission produced no AI reply or did not
// end the game.
type MoveOutcome struct {
	Events []chessdto.Event
	Human  chessdto.MovePayload
	AI     *chessdto.MovePayload
	Over   *chessdto.GameOverPayload
}

// MatchTicket is the outcome of a queue request.
type MatchTicket struct {
	Pending   bool
	SessionID string
	Side      rules.Side
	Opponent  string
}
