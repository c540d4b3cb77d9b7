package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/messages"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout    = 10 * time.Second
	writeBufferSize = 32
	turnQueueSize   = 4
	maxFrameSize    = 16 * 1024
)

// consoleSession is one text console connection acting as one phone call.
type consoleSession struct {
	ID    string
	phone string
	conn  *websocket.Conn
	agent Agent

	// Use channels for non-blocking writes
	writeChan chan any
	turnChan  chan messages.TextPayload

	mu        sync.RWMutex
	closed    bool
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

func newConsoleSession(conn *websocket.Conn, a Agent, phone string) *consoleSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &consoleSession{
		ID:        "console-" + uuid.NewString(),
		phone:     phone,
		conn:      conn,
		agent:     a,
		writeChan: make(chan any, writeBufferSize),
		turnChan:  make(chan messages.TextPayload, turnQueueSize),
		CloseChan: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameSize)

	phone := r.URL.Query().Get("phone")
	if phone == "" {
		phone = s.config.DemoGuestPhone
	}

	cs := newConsoleSession(conn, s.agent, phone)
	s.consoles.add(cs)
	log.Info().Str("call", logging.ShortID(cs.ID)).Str("phone", phone).Msg("✅ Console connected")

	cs.Start()
	<-cs.CloseChan

	s.consoles.remove(cs.ID)
	if err := s.agent.Reset(context.Background(), cs.ID); err != nil {
		log.Warn().Err(err).Str("call", logging.ShortID(cs.ID)).Msg("⚠️ Failed to clear console session")
	}
	log.Info().Str("call", logging.ShortID(cs.ID)).Msg("🔌 Console closed")
}

// Start launches the write pump, the turn loop and the read loop.
func (cs *consoleSession) Start() {
	go cs.writePump()
	go cs.turnLoop()
	go cs.readLoop()
	cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusConnected, ""))
}

// writePump handles all outgoing messages in a single goroutine
func (cs *consoleSession) writePump() {
	defer func() {
		_ = cs.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = cs.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = cs.conn.Close()
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case msg := <-cs.writeChan:
			_ = cs.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cs.conn.WriteJSON(msg); err != nil {
				cs.Close()
				return
			}
		}
	}
}

// queueMessage adds a message to the write queue (non-blocking)
func (cs *consoleSession) queueMessage(msg any) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed {
		return
	}
	select {
	case cs.writeChan <- msg:
	default:
		log.Warn().Str("call", logging.ShortID(cs.ID)).Msg("⚠️ Console write queue full, dropping frame")
	}
}

// Close terminates the session. Safe to call more than once.
func (cs *consoleSession) Close() {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	cs.closed = true
	cs.mu.Unlock()

	cs.cancel()
	close(cs.CloseChan)
}

func (cs *consoleSession) readLoop() {
	defer cs.Close()

	for {
		messageType, data, err := cs.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Only text frames are accepted"))
			continue
		}

		msg, err := messages.DecodeClientMessage(data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
			continue
		}
		cs.processClientMessage(msg)
	}
}

func (cs *consoleSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case messages.TypeText:
		var payload messages.TextPayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid text payload"))
			return
		}
		cs.handleText(&payload)

	case messages.TypeControl:
		var payload messages.ControlPayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		cs.handleControlMessage(&payload)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (cs *consoleSession) handleText(payload *messages.TextPayload) {
	payload.Text = strings.TrimSpace(payload.Text)
	if payload.Text == "" {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Text must not be empty"))
		return
	}
	if payload.Phone == "" {
		payload.Phone = cs.phone
	}
	select {
	case cs.turnChan <- *payload:
	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeBufferFull, "Too many pending messages"))
	}
}

// turnLoop runs the console's turns one at a time, in order. The read loop
// keeps running meanwhile so a disconnect cancels the turn in flight.
func (cs *consoleSession) turnLoop() {
	for {
		select {
		case <-cs.CloseChan:
			return
		case p := <-cs.turnChan:
			result := cs.agent.HandleTurn(cs.ctx, cs.ID, p.Phone, p.Text)
			cs.queueMessage(messages.NewTurnMessage(cs.ID, messages.TurnPayload{
				Text:         result.Text,
				LanguageCode: result.LanguageCode,
				Transfer:     result.Transfer,
				VoiceID:      result.VoiceID,
			}))
		}
	}
}

func (cs *consoleSession) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case messages.ActionPing:
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusPong, ""))
	case messages.ActionReset:
		if err := cs.agent.Reset(cs.ctx, cs.ID); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionFailed, err.Error()))
			return
		}
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusReset, "Conversation cleared"))
	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

// consoleRegistry tracks open consoles so shutdown can close them.
type consoleRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*consoleSession
}

func newConsoleRegistry() *consoleRegistry {
	return &consoleRegistry{sessions: make(map[string]*consoleSession)}
}

func (r *consoleRegistry) add(cs *consoleSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[cs.ID] = cs
}

func (r *consoleRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *consoleRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *consoleRegistry) closeAll() {
	r.mu.RLock()
	open := make([]*consoleSession, 0, len(r.sessions))
	for _, cs := range r.sessions {
		open = append(open, cs)
	}
	r.mu.RUnlock()

	for _, cs := range open {
		cs.Close()
	}
}
