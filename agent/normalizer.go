package agent

import (
	"strings"

	"github.com/room4-2/concierge/gemini"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// Acknowledgement is spoken when neither the model nor a tool produced text.
	Acknowledgement = "I'm on it."
	defaultLanguage = "en"
)

// replySchema describes the reply format requested in the instruction. It is
// only used to log drift; replies that do not match are still accepted.
const replySchema = `{
  "type": "object",
  "properties": {
    "text": {"type": "string"},
    "language_code": {"type": "string", "pattern": "^[a-zA-Z]{2}([-_][a-zA-Z]{2,4})?$"},
    "transfer": {"type": "boolean"}
  },
  "required": ["text", "language_code", "transfer"]
}`

var replySchemaLoader = gojsonschema.NewStringLoader(replySchema)

// TurnResult is what the caller hears next.
type TurnResult struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Transfer     bool   `json:"transfer"`
	VoiceID      string `json:"voice_id"`
}

// Normalize turns raw model output into a TurnResult. It never fails: a
// missing or malformed payload falls back to the raw text in English. Text is
// left empty only when tool calls are pending to fill it.
func Normalize(res gemini.Result) TurnResult {
	out := TurnResult{LanguageCode: defaultLanguage}

	if res.IsJSON() {
		checkContract(res.JSON)

		fields := gjson.GetMany(res.JSON, "text", "language_code", "transfer")
		out.Text = strings.TrimSpace(fields[0].String())
		if code := strings.ToLower(strings.TrimSpace(fields[1].String())); code != "" {
			out.LanguageCode = code
		}
		out.Transfer = fields[2].Bool()
	} else {
		out.Text = strings.TrimSpace(res.Text)
		if out.Text != "" {
			log.Debug().Msg("⚠️ Model reply was not JSON, using raw text")
		}
	}

	if out.Text == "" && len(res.ToolCalls) == 0 {
		out.Text = Acknowledgement
	}
	return out
}

func checkContract(payload string) {
	result, err := gojsonschema.Validate(replySchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		log.Debug().Err(err).Msg("reply schema check failed")
		return
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		log.Debug().Strs("issues", issues).Msg("⚠️ Model reply drifted from the output format")
	}
}
