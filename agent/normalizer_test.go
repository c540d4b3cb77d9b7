package agent

import (
	"testing"

	"github.com/room4-2/concierge/gemini"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestNormalize(t *testing.T) {
	tool := []*genai.FunctionCall{{Name: "check_bill"}}

	tests := []struct {
		name string
		in   gemini.Result
		want TurnResult
	}{
		{
			name: "full payload",
			in:   gemini.Result{JSON: `{"text":"Bonjour","language_code":"FR","transfer":false}`},
			want: TurnResult{Text: "Bonjour", LanguageCode: "fr"},
		},
		{
			name: "transfer flag",
			in:   gemini.Result{JSON: `{"text":"One moment","language_code":"en","transfer":true}`},
			want: TurnResult{Text: "One moment", LanguageCode: "en", Transfer: true},
		},
		{
			name: "missing language",
			in:   gemini.Result{JSON: `{"text":"Hi"}`},
			want: TurnResult{Text: "Hi", LanguageCode: "en"},
		},
		{
			name: "plain prose",
			in:   gemini.Result{Text: "  The pool opens at seven.  "},
			want: TurnResult{Text: "The pool opens at seven.", LanguageCode: "en"},
		},
		{
			name: "nothing at all",
			in:   gemini.Result{},
			want: TurnResult{Text: Acknowledgement, LanguageCode: "en"},
		},
		{
			name: "empty text in payload",
			in:   gemini.Result{JSON: `{"text":"","language_code":"de","transfer":false}`},
			want: TurnResult{Text: Acknowledgement, LanguageCode: "de"},
		},
		{
			name: "tool calls pending",
			in:   gemini.Result{ToolCalls: tool},
			want: TurnResult{LanguageCode: "en"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
