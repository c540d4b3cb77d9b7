// Package agent drives one call turn end to end: session history, context,
// model, tools, voice, and the session write-back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/room4-2/concierge/functions"
	"github.com/room4-2/concierge/gemini"
	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/metrics"
	"github.com/room4-2/concierge/pms"
	"github.com/room4-2/concierge/prompt"
	"github.com/room4-2/concierge/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Apology is spoken when a turn cannot be completed.
const Apology = "I apologize, but I'm having trouble connecting to the service right now. Please try again."

// Gateway sends one turn to the language model.
type Gateway interface {
	Send(ctx context.Context, history []session.Turn, instruction string, tools []*genai.Tool, userText string) (gemini.Result, error)
}

// ToolDispatcher executes the tool calls of a turn.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, callID, phone string, calls []*genai.FunctionCall) functions.Outcome
}

// VoiceResolver maps a language code to a voice id.
type VoiceResolver interface {
	Resolve(languageCode string) string
	Default() string
}

// CallLogger is the optional write-only transcript sink.
type CallLogger interface {
	LogCallStart(ctx context.Context, callID, phone string) error
	LogTurn(ctx context.Context, callID, role, text string) error
}

// Deps wires an Orchestrator. CallLog and Metrics may be nil.
type Deps struct {
	Sessions   session.Store
	Guests     pms.Store
	Prompts    *prompt.Builder
	Gateway    Gateway
	Tools      []*genai.Tool
	Dispatcher ToolDispatcher
	Voices     VoiceResolver
	CallLog    CallLogger
	Metrics    *metrics.Metrics
}

// Orchestrator is safe for concurrent use across calls.
type Orchestrator struct {
	sessions   session.Store
	guests     pms.Store
	prompts    *prompt.Builder
	gateway    Gateway
	tools      []*genai.Tool
	dispatcher ToolDispatcher
	voices     VoiceResolver
	callLog    CallLogger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New wires an Orchestrator. CallLog and Metrics may be nil.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		sessions:   d.Sessions,
		guests:     d.Guests,
		prompts:    d.Prompts,
		gateway:    d.Gateway,
		tools:      d.Tools,
		dispatcher: d.Dispatcher,
		voices:     d.Voices,
		callLog:    d.CallLog,
		metrics:    d.Metrics,
		now:        time.Now,
	}
}

// errDiscarded marks a turn whose request went away while the model was busy.
var errDiscarded = errors.New("request abandoned during model call")

// HandleTurn answers one caller utterance. It always returns a result; any
// failure degrades to a spoken apology without touching the session.
func (o *Orchestrator) HandleTurn(ctx context.Context, callID, phone, text string) (result TurnResult) {
	turnID := uuid.NewString()
	logger := log.With().
		Str("call", logging.ShortID(callID)).
		Str("turn", logging.ShortID(turnID)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("❌ Turn panicked")
			o.metrics.RecordTurn(metrics.OutcomeDegraded)
			result = o.degraded()
		}
	}()

	logger.Info().Str("said", text).Msg("📞 Guest said")

	result, err := o.runTurn(ctx, logger, callID, phone, text)
	switch {
	case errors.Is(err, errDiscarded):
		logger.Warn().Msg("⚠️ Request abandoned, discarding model result")
		o.metrics.RecordTurn(metrics.OutcomeDiscarded)
		return o.degraded()
	case err != nil:
		var perr *gemini.ProviderError
		if errors.As(err, &perr) {
			logger.Error().Err(err).Bool("timeout", perr.Timeout).Msg("❌ Model call failed")
		} else {
			logger.Error().Err(err).Msg("❌ Turn failed")
		}
		o.metrics.RecordTurn(metrics.OutcomeDegraded)
		return o.degraded()
	}

	o.metrics.RecordTurn(metrics.OutcomeOK)
	logger.Info().Str("reply", result.Text).Bool("transfer", result.Transfer).Str("lang", result.LanguageCode).Msg("🗣️ Agent replied")
	return result
}

func (o *Orchestrator) runTurn(ctx context.Context, logger zerolog.Logger, callID, phone, text string) (TurnResult, error) {
	history, created, err := o.sessions.Get(ctx, callID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load session: %w", err)
	}
	if created {
		o.startCall(ctx, logger, callID, phone)
	}

	instruction := o.prompts.Build(o.buildInput(ctx, logger, phone))

	// the model call ignores request cancellation; an abandoned turn is dropped after it returns
	detached := context.WithoutCancel(ctx)
	started := time.Now()
	raw, err := o.gateway.Send(detached, history, instruction, o.tools, text)
	o.metrics.RecordModelLatency(time.Since(started))
	if err != nil {
		return TurnResult{}, err
	}
	if ctx.Err() != nil {
		return TurnResult{}, errDiscarded
	}

	result := Normalize(raw)
	if len(raw.ToolCalls) > 0 && o.dispatcher != nil {
		outcome := o.dispatcher.Dispatch(detached, callID, phone, raw.ToolCalls)
		if outcome.Text != "" {
			result.Text = outcome.Text
		}
		if outcome.Transfer {
			result.Transfer = true
		}
	}
	if result.Text == "" {
		result.Text = Acknowledgement
	}
	result.VoiceID = o.voices.Resolve(result.LanguageCode)

	err = o.sessions.Append(detached, callID,
		session.Turn{Role: session.RoleUser, Content: text},
		session.Turn{Role: session.RoleAssistant, Content: result.Text},
	)
	if err != nil {
		// tools already ran, so the caller still gets the answer
		logger.Error().Err(err).Msg("❌ Failed to save session")
	}

	o.logTurns(detached, logger, callID, text, result.Text)
	if n, err := o.sessions.Count(detached); err == nil {
		o.metrics.SetActiveSessions(n)
	}
	return result, nil
}

func (o *Orchestrator) startCall(ctx context.Context, logger zerolog.Logger, callID, phone string) {
	logger.Info().Str("from", phone).Msg("📞 New call")
	if err := o.guests.RecordVisit(ctx, phone); err != nil {
		logger.Warn().Err(err).Msg("⚠️ Failed to record visit")
	}
	if o.callLog != nil {
		if err := o.callLog.LogCallStart(ctx, callID, phone); err != nil {
			logger.Warn().Err(err).Msg("⚠️ Failed to log call start")
		}
	}
}

// buildInput gathers what the instruction needs. Lookup failures leave the
// corresponding facts out rather than failing the turn.
func (o *Orchestrator) buildInput(ctx context.Context, logger zerolog.Logger, phone string) prompt.Input {
	in := prompt.Input{Guest: pms.Guest{Phone: phone}, Now: o.now()}

	guest, err := o.guests.GetGuest(ctx, phone)
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️ Guest lookup failed")
	} else {
		in.Guest = guest
	}

	booking, err := o.guests.GetActiveBooking(ctx, phone)
	switch {
	case err == nil:
		in.Room = booking.Room
	case !errors.Is(err, pms.ErrNotFound):
		logger.Warn().Err(err).Msg("⚠️ Booking lookup failed")
	}
	return in
}

func (o *Orchestrator) logTurns(ctx context.Context, logger zerolog.Logger, callID, said, reply string) {
	if o.callLog == nil {
		return
	}
	if err := o.callLog.LogTurn(ctx, callID, string(session.RoleUser), said); err != nil {
		logger.Warn().Err(err).Msg("⚠️ Failed to log transcript")
		return
	}
	if err := o.callLog.LogTurn(ctx, callID, string(session.RoleAssistant), reply); err != nil {
		logger.Warn().Err(err).Msg("⚠️ Failed to log transcript")
	}
}

func (o *Orchestrator) degraded() TurnResult {
	return TurnResult{
		Text:         Apology,
		LanguageCode: defaultLanguage,
		Transfer:     false,
		VoiceID:      o.voices.Default(),
	}
}

// Reset clears the call's conversation, as at the start of a new call.
func (o *Orchestrator) Reset(ctx context.Context, callID string) error {
	if err := o.sessions.Clear(ctx, callID); err != nil {
		return err
	}
	if n, err := o.sessions.Count(ctx); err == nil {
		o.metrics.SetActiveSessions(n)
	}
	return nil
}

// ActiveSessions reports the session store's live count.
func (o *Orchestrator) ActiveSessions(ctx context.Context) (int, error) {
	return o.sessions.Count(ctx)
}
