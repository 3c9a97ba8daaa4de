package chessdto

import "encoding/json"

// Push event types.
const (
	EventSnapshot = "snapshot"
	EventMove     = "move"
	EventGameOver = "game_over"
	EventChat     = "chat"
	EventUndo     = "undo"
	EventStarted  = "started"
)

// Event is the envelope for every pushed or batched session change.
// Version is the session version after the change; chat events carry the
// version they were sent at.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Version   int64           `json:"version"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into an envelope.
func NewEvent(typ, sessionID string, version int64, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, SessionID: sessionID, Version: version, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error { return json.Unmarshal(e.Payload, v) }
