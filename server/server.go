// Package server exposes the phone agent over the telephony webhook, a
// websocket text console, and a few operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/room4-2/concierge/agent"
	"github.com/room4-2/concierge/calllog"
	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/metrics"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultRecentCalls = 5

// Agent answers caller turns.
type Agent interface {
	HandleTurn(ctx context.Context, callID, phone, text string) agent.TurnResult
	Reset(ctx context.Context, callID string) error
	ActiveSessions(ctx context.Context) (int, error)
}

// Synthesizer renders reply text to an audio file under the static directory.
type Synthesizer interface {
	Enabled() bool
	Synthesize(ctx context.Context, text string) (string, error)
}

// CallLister reads back recent calls.
type CallLister interface {
	RecentCalls(ctx context.Context, limit int) ([]calllog.Call, error)
}

// Deps are the collaborators of the server. Speech, Calls and Metrics may be nil.
type Deps struct {
	Agent   Agent
	Speech  Synthesizer
	Calls   CallLister
	Metrics *metrics.Metrics
}

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	config     *config.Config
	hotelName  string
	agent      Agent
	speech     Synthesizer
	calls      CallLister
	metrics    *metrics.Metrics
	consoles   *consoleRegistry
}

// NewServer builds the HTTP server and its routes.
func NewServer(cfg *config.Config, hotelName string, deps Deps) *Server {
	s := &Server{
		config:    cfg,
		hotelName: hotelName,
		agent:     deps.Agent,
		speech:    deps.Speech,
		calls:     deps.Calls,
		metrics:   deps.Metrics,
		consoles:  newConsoleRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4 * 1024,
			WriteBufferSize:   4 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// a turn may wait on the model and on speech synthesis
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /voice", s.metrics.Middleware("voice", http.HandlerFunc(s.handleVoice)))
	mux.Handle("POST /handle-speech", s.metrics.Middleware("handle_speech", http.HandlerFunc(s.handleSpeech)))
	mux.Handle("GET /health", s.metrics.Middleware("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /calls", s.metrics.Middleware("calls", http.HandlerFunc(s.handleCalls)))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir))))
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": s.hotelName + " phone agent is running"})
	})
	return mux
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("🚀 Server starting")
	log.Info().Msgf("📡 Voice webhook: %s/voice", s.config.HostURL)
	log.Info().Msgf("📡 Text console: ws://localhost:%d/ws", s.config.Port)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("🛑 Shutting down server...")
	s.consoles.closeAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.agent.ActiveSessions(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Session count unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": n,
		"consoles": s.consoles.count(),
	})
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "call log disabled"})
		return
	}

	limit := defaultRecentCalls
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	calls, err := s.calls.RecentCalls(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to read call log")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "call log unavailable"})
		return
	}
	if calls == nil {
		calls = []calllog.Call{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
