package messages

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// ClientMessage represents a frame from a console client
type ClientMessage struct {
	Type    string          `json:"type"` // "text", "control"
	Payload json.RawMessage `json:"payload"`
}

// TextPayload carries one typed guest utterance
type TextPayload struct {
	Text  string `json:"text"`
	Phone string `json:"phone,omitempty"` // caller number to act as; defaults per connection
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "ping", "reset"
}

// Control actions
const (
	ActionPing  = "ping"
	ActionReset = "reset"
)

// DecodeClientMessage parses a raw frame.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodePayload unpacks the frame payload into v.
func (m *ClientMessage) DecodePayload(v any) error {
	return sonic.Unmarshal(m.Payload, v)
}
