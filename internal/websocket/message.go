package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Actions sent by the server.
const (
	ActionState        = "state"
	ActionError        = "error"
	ActionTasksChanged = "tasks_changed"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals a message with the given action and payload.
func Encode(action string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket payload")
		raw = nil
	}
	out, _ := json.Marshal(Message{Action: action, Payload: raw})
	return out
}

// NewStateMessage wraps a session state snapshot.
func NewStateMessage(state any) []byte {
	return Encode(ActionState, state)
}

// NewErrorMessage creates an error message for the client.
func NewErrorMessage(msg string) []byte {
	return Encode(ActionError, msg)
}

// NewTasksChangedMessage tells every session that the task table changed.
func NewTasksChangedMessage() []byte {
	return Encode(ActionTasksChanged, nil)
}
