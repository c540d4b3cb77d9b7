package messages

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeConnectionClosed = "CONNECTION_CLOSED"
	ErrCodeBufferFull       = "BUFFER_FULL"
)

// Message types
const (
	TypeText    = "text"
	TypeControl = "control"
	TypeTurn    = "turn"
	TypeStatus  = "status"
	TypeError   = "error"
)

// Status values
const (
	StatusConnected = "connected"
	StatusPong      = "pong"
	StatusReset     = "reset"
)

// ServerMessage represents a frame sent to a console client
type ServerMessage struct {
	Type      string      `json:"type"` // "turn", "status", "error"
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload"`
}

// TurnPayload is the agent's answer to one utterance
type TurnPayload struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Transfer     bool   `json:"transfer"`
	VoiceID      string `json:"voice_id"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status  string `json:"status"` // "connected", "pong", "reset"
	Message string `json:"message,omitempty"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewTurnMessage creates a turn result message
func NewTurnMessage(sessionID string, turn TurnPayload) *ServerMessage {
	return &ServerMessage{
		Type:      TypeTurn,
		SessionID: sessionID,
		Payload:   turn,
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
