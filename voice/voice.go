// Package voice maps a reply's language to the telephony voice that speaks it.
package voice

import "strings"

// DefaultVoice speaks anything the table does not cover.
const DefaultVoice = "Google.en-US-Neural2-F"

var voices = map[string]string{
	"en": "Google.en-US-Neural2-F",
	"es": "Google.es-US-Neural2-A",
	"fr": "Google.fr-FR-Neural2-A",
	"de": "Google.de-DE-Neural2-A",
	"it": "Google.it-IT-Neural2-A",
	"pt": "Google.pt-BR-Neural2-A",
	"ja": "Google.ja-JP-Neural2-B",
	"ko": "Google.ko-KR-Neural2-A",
	"zh": "Google.cmn-CN-Wavenet-A",
	"hi": "Google.hi-IN-Neural2-A",
	"ar": "Google.ar-XA-Wavenet-A",
	"nl": "Google.nl-NL-Wavenet-A",
	"ru": "Google.ru-RU-Wavenet-A",
	"tr": "Google.tr-TR-Wavenet-A",
}

// Resolver is a total lookup from language code to voice id.
type Resolver struct {
	fallback string
}

// NewResolver returns a resolver falling back to fallback, or DefaultVoice
// when fallback is empty.
func NewResolver(fallback string) *Resolver {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultVoice
	}
	return &Resolver{fallback: fallback}
}

// Resolve accepts bare codes ("fr") and region tags ("fr-CA", "pt_BR").
func (r *Resolver) Resolve(languageCode string) string {
	code := strings.ToLower(strings.TrimSpace(languageCode))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if v, ok := voices[code]; ok {
		return v
	}
	return r.fallback
}

// Default is the voice used when nothing better is known.
func (r *Resolver) Default() string {
	return r.fallback
}

// Languages lists the codes with a dedicated voice.
func Languages() []string {
	out := make([]string, 0, len(voices))
	for code := range voices {
		out = append(out, code)
	}
	return out
}
