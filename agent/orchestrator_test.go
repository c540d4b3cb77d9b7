package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/functions"
	"github.com/room4-2/concierge/gemini"
	"github.com/room4-2/concierge/pms"
	"github.com/room4-2/concierge/prompt"
	"github.com/room4-2/concierge/session"
	"github.com/room4-2/concierge/voice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/genai"
)

const (
	guestPhone = "+15550001234"
	otherPhone = "+15550009999"
)

// scriptedGateway answers from a function so each test decides the model's move.
type scriptedGateway struct {
	mu           sync.Mutex
	reply        func(ctx context.Context, userText string) (gemini.Result, error)
	instructions []string
	histories    [][]session.Turn
}

func (g *scriptedGateway) Send(ctx context.Context, history []session.Turn, instruction string, _ []*genai.Tool, userText string) (gemini.Result, error) {
	g.mu.Lock()
	g.instructions = append(g.instructions, instruction)
	g.histories = append(g.histories, history)
	g.mu.Unlock()
	return g.reply(ctx, userText)
}

func jsonReply(text, lang string, transfer bool) func(context.Context, string) (gemini.Result, error) {
	return func(context.Context, string) (gemini.Result, error) {
		payload := `{"text":"` + text + `","language_code":"` + lang + `","transfer":` + map[bool]string{true: "true", false: "false"}[transfer] + `}`
		return gemini.Result{Text: payload, JSON: payload}, nil
	}
}

func toolReply(calls ...*genai.FunctionCall) func(context.Context, string) (gemini.Result, error) {
	return func(context.Context, string) (gemini.Result, error) {
		return gemini.Result{ToolCalls: calls}, nil
	}
}

type memoryCallLog struct {
	mu     sync.Mutex
	starts []string
	turns  []string
}

func (m *memoryCallLog) LogCallStart(_ context.Context, callID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, callID)
	return nil
}

func (m *memoryCallLog) LogTurn(_ context.Context, _, role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, role+": "+text)
	return nil
}

type OrchestratorTestSuite struct {
	suite.Suite
	ctx      context.Context
	sessions *session.MemoryStore
	guests   *pms.MemoryStore
	gateway  *scriptedGateway
	callLog  *memoryCallLog
	orch     *Orchestrator
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.sessions = session.NewMemoryStore(40, 0)
	s.guests = pms.NewMemoryStore()
	s.gateway = &scriptedGateway{reply: jsonReply("Hello!", "en", false)}
	s.callLog = &memoryCallLog{}

	hotel := config.DefaultHotel()
	s.orch = New(Deps{
		Sessions: s.sessions,
		Guests:   s.guests,
		Prompts:  prompt.NewBuilder(hotel, functions.Declarations()),
		Gateway:  s.gateway,
		Tools:    functions.Tools(),
		Dispatcher: functions.NewDispatcher(functions.Options{
			Store:     s.guests,
			HotelName: hotel.Name,
		}),
		Voices:  voice.NewResolver(""),
		CallLog: s.callLog,
	})
	s.orch.now = func() time.Time { return time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC) }
}

func (s *OrchestratorTestSuite) seedRoom402() {
	s.Require().NoError(s.guests.Seed(s.ctx, pms.Reservation{
		Phone: guestPhone, Name: "Alex", Room: "402", Nights: 3, Balance: 450,
	}))
}

func (s *OrchestratorTestSuite) history(callID string) []session.Turn {
	turns, _, err := s.sessions.Get(s.ctx, callID)
	s.Require().NoError(err)
	return turns
}

func (s *OrchestratorTestSuite) ticketCount() int {
	n, err := s.guests.TicketCount(s.ctx)
	s.Require().NoError(err)
	return n
}

func (s *OrchestratorTestSuite) TestHistoryGrowsByOnePairPerTurn() {
	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Hi there")
	s.Equal("Hello!", res.Text)
	s.Equal(voice.DefaultVoice, res.VoiceID)

	turns := s.history("CA1")
	s.Require().Len(turns, 2)
	s.Equal(session.Turn{Role: session.RoleUser, Content: "Hi there"}, turns[0])
	s.Equal(session.Turn{Role: session.RoleAssistant, Content: "Hello!"}, turns[1])

	s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Thanks")
	s.Len(s.history("CA1"), 4)

	// second turn saw the first exchange as history
	s.Len(s.gateway.histories[1], 2)
}

func (s *OrchestratorTestSuite) TestEndToEndTicketWithBooking() {
	s.seedRoom402()
	s.gateway.reply = toolReply(&genai.FunctionCall{
		Name: functions.CreateMaintenanceTicket,
		Args: map[string]any{"issue_type": "Engineering", "description": "air conditioning broken"},
	})

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "My air conditioning is broken.")

	s.Contains(res.Text, "TKT-1")
	s.False(res.Transfer)
	s.Equal("en", res.LanguageCode)
	s.Equal(1, s.ticketCount())
	s.Contains(s.history("CA1")[1].Content, "TKT-1")
}

func (s *OrchestratorTestSuite) TestEndToEndTicketWithoutBooking() {
	s.gateway.reply = toolReply(&genai.FunctionCall{
		Name: functions.CreateMaintenanceTicket,
		Args: map[string]any{"issue_type": "Engineering", "description": "air conditioning broken"},
	})

	before := s.ticketCount()
	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "My air conditioning is broken.")

	s.Equal(functions.NoBookingTicket, res.Text)
	s.False(res.Transfer)
	s.Equal(before, s.ticketCount())
}

func (s *OrchestratorTestSuite) TestTransferBeatsRoomService() {
	s.gateway.reply = func(context.Context, string) (gemini.Result, error) {
		payload := `{"text":"Your burger is coming.","language_code":"en","transfer":false}`
		return gemini.Result{
			Text: payload,
			JSON: payload,
			ToolCalls: []*genai.FunctionCall{
				{Name: functions.BookRoomService, Args: map[string]any{"item": "Cheeseburger"}},
				{Name: functions.TransferCall, Args: map[string]any{"reason": "wants a manager"}},
			},
		}, nil
	}

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Burger, and get me a manager")

	s.True(res.Transfer)
	s.Equal(functions.HoldMessage, res.Text)
	s.NotContains(res.Text, "Cheeseburger")
}

func (s *OrchestratorTestSuite) TestModelTransferFlagIsKept() {
	s.gateway.reply = jsonReply("Let me get someone for you.", "en", true)

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "I want a human")
	s.True(res.Transfer)
	s.Equal("Let me get someone for you.", res.Text)
}

func (s *OrchestratorTestSuite) TestLanguageSelectsVoice() {
	s.gateway.reply = jsonReply("Bonjour !", "fr", false)

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Bonjour")
	s.Equal("fr", res.LanguageCode)
	s.Equal(voice.NewResolver("").Resolve("fr"), res.VoiceID)
}

func (s *OrchestratorTestSuite) TestUnknownLanguageUsesDefaultVoice() {
	s.gateway.reply = jsonReply("...", "xx", false)

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "?")
	s.Equal(voice.DefaultVoice, res.VoiceID)
}

func (s *OrchestratorTestSuite) TestMalformedOutputFallsBackToRawText() {
	s.gateway.reply = func(context.Context, string) (gemini.Result, error) {
		return gemini.Result{Text: "Breakfast is served until eleven."}, nil
	}

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "When is breakfast?")
	s.Equal("Breakfast is served until eleven.", res.Text)
	s.Equal("en", res.LanguageCode)
	s.False(res.Transfer)
}

func (s *OrchestratorTestSuite) TestEmptyToolTurnGetsAcknowledgement() {
	s.gateway.reply = toolReply(&genai.FunctionCall{Name: "retired_tool"})

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Do the thing")
	s.Equal(Acknowledgement, res.Text)
	s.Len(s.history("CA1"), 2)
}

func (s *OrchestratorTestSuite) TestProviderErrorDegrades() {
	s.gateway.reply = func(context.Context, string) (gemini.Result, error) {
		return gemini.Result{}, &gemini.ProviderError{Timeout: true, Err: context.DeadlineExceeded}
	}

	res := s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Hello?")
	s.Equal(Apology, res.Text)
	s.False(res.Transfer)
	s.Equal(voice.DefaultVoice, res.VoiceID)
	s.Empty(s.history("CA1"))
}

func (s *OrchestratorTestSuite) TestPanicDegrades() {
	s.gateway.reply = func(context.Context, string) (gemini.Result, error) {
		panic("boom")
	}

	var res TurnResult
	s.NotPanics(func() { res = s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Hello?") })
	s.Equal(Apology, res.Text)
	s.False(res.Transfer)
}

func (s *OrchestratorTestSuite) TestAbandonedRequestIsDiscarded() {
	s.seedRoom402()
	ctx, cancel := context.WithCancel(s.ctx)

	s.gateway.reply = func(modelCtx context.Context, _ string) (gemini.Result, error) {
		cancel()
		// the model call itself is not cancelled
		s.NoError(modelCtx.Err())
		return gemini.Result{ToolCalls: []*genai.FunctionCall{{
			Name: functions.CreateMaintenanceTicket,
			Args: map[string]any{"issue_type": "Engineering", "description": "leak"},
		}}}, nil
	}

	res := s.orch.HandleTurn(ctx, "CA1", guestPhone, "There's a leak")
	s.Equal(Apology, res.Text)
	s.Equal(0, s.ticketCount())
	s.Empty(s.history("CA1"))
}

func (s *OrchestratorTestSuite) TestFirstTurnStartsCall() {
	s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Hi")
	s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Again")

	g, err := s.guests.GetGuest(s.ctx, guestPhone)
	s.Require().NoError(err)
	s.Equal(1, g.Visits)
	s.Equal([]string{"CA1"}, s.callLog.starts)
	s.Equal([]string{"user: Hi", "assistant: Hello!", "user: Again", "assistant: Hello!"}, s.callLog.turns)
}

func (s *OrchestratorTestSuite) TestInstructionCarriesGuestContext() {
	s.seedRoom402()
	order := "1 x Cheeseburger"
	s.Require().NoError(s.guests.UpdateGuest(s.ctx, guestPhone, pms.GuestUpdate{LastOrder: &order}))

	s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Hi")

	instruction := s.gateway.instructions[0]
	s.Contains(instruction, "Alex")
	s.Contains(instruction, "room 402")
	s.Contains(instruction, order)
}

func (s *OrchestratorTestSuite) TestResetClearsSession() {
	s.orch.HandleTurn(s.ctx, "CA1", guestPhone, "Hi")
	s.Require().NoError(s.orch.Reset(s.ctx, "CA1"))
	s.Require().NoError(s.orch.Reset(s.ctx, "CA1"))

	n, err := s.orch.ActiveSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *OrchestratorTestSuite) TestSlowCallDoesNotBlockOtherCalls() {
	release := make(chan struct{})
	s.gateway.reply = func(_ context.Context, userText string) (gemini.Result, error) {
		if strings.HasPrefix(userText, "slow") {
			<-release
		}
		payload := `{"text":"ok","language_code":"en","transfer":false}`
		return gemini.Result{Text: payload, JSON: payload}, nil
	}

	slowDone := make(chan TurnResult)
	go func() { slowDone <- s.orch.HandleTurn(s.ctx, "CA-slow", guestPhone, "slow question") }()

	fast := make(chan TurnResult)
	go func() { fast <- s.orch.HandleTurn(s.ctx, "CA-fast", otherPhone, "fast question") }()

	select {
	case res := <-fast:
		s.Equal("ok", res.Text)
	case <-time.After(2 * time.Second):
		s.Fail("fast call blocked behind slow call")
	}

	close(release)
	s.Equal("ok", (<-slowDone).Text)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

type failingSessions struct{ session.Store }

func (failingSessions) Get(context.Context, string) ([]session.Turn, bool, error) {
	return nil, false, errors.New("redis down")
}

func TestSessionStoreFailureDegrades(t *testing.T) {
	orch := New(Deps{
		Sessions: failingSessions{},
		Guests:   pms.NewMemoryStore(),
		Prompts:  prompt.NewBuilder(nil, nil),
		Gateway:  &scriptedGateway{reply: jsonReply("hi", "en", false)},
		Voices:   voice.NewResolver("Google.en-GB-Neural2-A"),
	})

	res := orch.HandleTurn(context.Background(), "CA1", guestPhone, "Hello")
	require.Equal(t, Apology, res.Text)
	assert.Equal(t, "Google.en-GB-Neural2-A", res.VoiceID)
	assert.False(t, res.Transfer)
}
