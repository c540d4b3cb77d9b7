package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/room4-2/concierge/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	delay    time.Duration
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: string(genai.RoleModel), Parts: parts}}},
	}
}

func TestSendTextAndJSON(t *testing.T) {
	fake := &fakeModels{resp: response(&genai.Part{Text: `{"text":"Hello!","language_code":"en","transfer":false}`})}
	g := NewGatewayWith(fake, "", time.Second)

	history := []session.Turn{
		{Role: session.RoleSystem, Content: "ignored"},
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "hello"},
	}
	res, err := g.Send(context.Background(), history, "be nice", nil, "what time is breakfast?")
	require.NoError(t, err)

	assert.True(t, res.IsJSON())
	assert.Equal(t, res.Text, res.JSON)
	assert.Empty(t, res.ToolCalls)

	assert.Equal(t, defaultModel, fake.model)
	require.Len(t, fake.contents, 3)
	assert.Equal(t, string(genai.RoleUser), fake.contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), fake.contents[1].Role)
	assert.Equal(t, "what time is breakfast?", fake.contents[2].Parts[0].Text)
	assert.Equal(t, "be nice", fake.config.SystemInstruction.Parts[0].Text)
}

func TestSendKeepsReplyBudgetFromThinking(t *testing.T) {
	fake := &fakeModels{resp: response(&genai.Part{Text: "ok"})}
	_, err := NewGatewayWith(fake, "", time.Second).Send(context.Background(), nil, "", nil, "hi")
	require.NoError(t, err)

	require.NotNil(t, fake.config.ThinkingConfig)
	require.NotNil(t, fake.config.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, int32(0), *fake.config.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, int32(maxReplyTokens), fake.config.MaxOutputTokens)

	_, err = NewGatewayWith(fake, "gemini-2.5-pro", time.Second).Send(context.Background(), nil, "", nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, int32(minThinkingBudget), *fake.config.ThinkingConfig.ThinkingBudget)
	assert.Equal(t, int32(maxReplyTokens+minThinkingBudget), fake.config.MaxOutputTokens)
}

func TestSendToolCalls(t *testing.T) {
	fake := &fakeModels{resp: response(
		&genai.Part{Text: "One moment."},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "check_bill"}},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "transfer_call", Args: map[string]any{"reason": "upset"}}},
	)}
	g := NewGatewayWith(fake, "gemini-test", time.Second)

	res, err := g.Send(context.Background(), nil, "", []*genai.Tool{}, "my bill please")
	require.NoError(t, err)

	assert.Equal(t, "One moment.", res.Text)
	assert.False(t, res.IsJSON())
	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, "transfer_call", res.ToolCalls[1].Name)
	assert.Equal(t, "gemini-test", fake.model)
}

func TestSendProviderError(t *testing.T) {
	g := NewGatewayWith(&fakeModels{err: errors.New("503 unavailable")}, "", time.Second)

	_, err := g.Send(context.Background(), nil, "", nil, "hi")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Timeout)
}

func TestSendTimeout(t *testing.T) {
	g := NewGatewayWith(&fakeModels{delay: time.Second, resp: response(&genai.Part{Text: "late"})}, "", 20*time.Millisecond)

	_, err := g.Send(context.Background(), nil, "", nil, "hi")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendEmptyResponse(t *testing.T) {
	g := NewGatewayWith(&fakeModels{resp: &genai.GenerateContentResponse{}}, "", time.Second)

	_, err := g.Send(context.Background(), nil, "", nil, "hi")
	var perr *ProviderError
	assert.ErrorAs(t, err, &perr)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"text":"hi"}`, `{"text":"hi"}`},
		{"fenced", "```json\n{\"text\":\"hi\"}\n```", `{"text":"hi"}`},
		{"prose around", `Sure! {"text":"hi","transfer":false} Thanks`, `{"text":"hi","transfer":false}`},
		{"plain prose", "Breakfast is at seven.", ""},
		{"truncated", `{"text":"hi`, ""},
		{"array", `[1,2]`, ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
