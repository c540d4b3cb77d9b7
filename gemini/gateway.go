// Package gemini is the model gateway: one GenerateContent round trip per
// call turn, with a bounded wait.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/room4-2/concierge/session"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

const (
	defaultModel = "gemini-2.5-flash"
	// spoken replies are short; thinking tokens are billed against the same cap
	maxReplyTokens = 300
	// smallest budget models that cannot switch thinking off accept
	minThinkingBudget = 128
)

// ProviderError reports that the model call failed or timed out.
type ProviderError struct {
	Timeout bool
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("model provider timeout: %v", e.Err)
	}
	return fmt.Sprintf("model provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Result is the raw model output for one turn.
type Result struct {
	// Text is everything the model said, verbatim.
	Text string
	// JSON is the structured payload found in Text, empty when there is none.
	JSON      string
	ToolCalls []*genai.FunctionCall
}

// IsJSON reports whether the model produced a structured payload.
func (r Result) IsJSON() bool { return r.JSON != "" }

// Generator is the slice of the genai client the gateway needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gateway sends conversations to Gemini.
type Gateway struct {
	models  Generator
	model   string
	timeout time.Duration
}

// NewGateway creates a GenAI client for the Gemini API backend.
func NewGateway(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewGatewayWith(client.Models, model, timeout), nil
}

// NewGatewayWith wraps any Generator, used by tests.
func NewGatewayWith(models Generator, model string, timeout time.Duration) *Gateway {
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Gateway{models: models, model: model, timeout: timeout}
}

// thinkingFor turns thinking off on flash models and keeps it minimal
// elsewhere, leaving the full reply budget for the answer either way.
func thinkingFor(model string) (*genai.ThinkingConfig, int32) {
	if strings.Contains(model, "flash") {
		return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}, maxReplyTokens
	}
	return &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](minThinkingBudget)}, maxReplyTokens + minThinkingBudget
}

// Send runs one turn: history plus the new user text, under the given
// instruction and tools. Failures come back as *ProviderError.
func (g *Gateway) Send(ctx context.Context, history []session.Turn, instruction string, tools []*genai.Tool, userText string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := BuildContents(history, userText)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		},
		Tools:       tools,
		Temperature: genai.Ptr[float32](0.4),
	}
	config.ThinkingConfig, config.MaxOutputTokens = thinkingFor(g.model)

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		return Result{}, &ProviderError{Timeout: timedOut, Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Result{}, &ProviderError{Err: errors.New("empty response")}
	}

	var (
		text  strings.Builder
		calls []*genai.FunctionCall
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}

	res := Result{Text: text.String(), ToolCalls: calls}
	res.JSON = ExtractJSON(res.Text)
	log.Debug().Int("tool_calls", len(calls)).Bool("json", res.IsJSON()).Msg("📥 Received from Gemini")
	return res, nil
}

// BuildContents converts session history into Gemini contents. System turns
// are carried by the instruction, not the conversation, and are skipped.
func BuildContents(history []session.Turn, userText string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role
		switch turn.Role {
		case session.RoleUser:
			role = genai.RoleUser
		case session.RoleAssistant:
			role = genai.RoleModel
		default:
			continue
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return append(contents, genai.NewContentFromText(userText, genai.RoleUser))
}

// ExtractJSON finds the JSON object in a model reply, tolerating markdown
// fences and surrounding prose. It returns "" when there is no valid object.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	candidate := s[start : end+1]
	if !gjson.Valid(candidate) || !gjson.Parse(candidate).IsObject() {
		return ""
	}
	return candidate
}
