package chessdto

// DomainError is the structured rejection returned to callers for every
// recoverable rules/session failure. Values are comparable, so sentinels
// below work with errors.Is even after wrapping.
type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}

const (
	CodeInvalidPosition     = "INVALID_POSITION"
	CodeIllegalMove         = "ILLEGAL_MOVE"
	CodeUnknownSession      = "UNKNOWN_SESSION"
	CodeNotAParticipant     = "NOT_A_PARTICIPANT"
	CodeNotYourTurn         = "NOT_YOUR_TURN"
	CodeGameAlreadyFinished = "GAME_ALREADY_FINISHED"
	CodeNoHistory           = "NO_HISTORY"
	CodeBadRequest          = "BAD_REQUEST"
	CodeAlreadyQueued       = "ALREADY_QUEUED"
	CodeLobbyNotFound       = "LOBBY_NOT_FOUND"
	CodeLobbyFull           = "LOBBY_FULL"
)

var (
	ErrInvalidPosition     = DomainError{Code: CodeInvalidPosition, Message: "invalid position"}
	ErrIllegalMove         = DomainError{Code: CodeIllegalMove, Message: "illegal move"}
	ErrUnknownSession      = DomainError{Code: CodeUnknownSession, Message: "unknown session"}
	ErrNotAParticipant     = DomainError{Code: CodeNotAParticipant, Message: "not a participant"}
	ErrNotYourTurn         = DomainError{Code: CodeNotYourTurn, Message: "not your turn", Retryable: true}
	ErrGameAlreadyFinished = DomainError{Code: CodeGameAlreadyFinished, Message: "game already finished"}
	ErrNoHistory           = DomainError{Code: CodeNoHistory, Message: "no move to undo"}
	ErrBadRequest          = DomainError{Code: CodeBadRequest, Message: "bad request"}
	ErrAlreadyQueued       = DomainError{Code: CodeAlreadyQueued, Message: "already waiting for a match"}
	ErrLobbyNotFound       = DomainError{Code: CodeLobbyNotFound, Message: "lobby not found or expired"}
	ErrLobbyFull           = DomainError{Code: CodeLobbyFull, Message: "lobby already has two participants"}
)
