// Package tts turns reply text into mp3 files the telephony provider can play.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/room4-2/concierge/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	defaultWSBase  = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	defaultModel   = "eleven_multilingual_v2"
	defaultFormat  = "mp3_44100_128"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	// WelcomeFile is the pre-generated greeting; it is never swept.
	WelcomeFile = "welcome.mp3"

	writeTimeout = 5 * time.Second
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("elevenlabs api key is not set")

// ElevenLabs synthesizes speech over the stream-input websocket and stores
// the result under the static directory.
type ElevenLabs struct {
	apiKey    string
	voiceID   string
	model     string
	staticDir string
	wsBase    string
	timeout   time.Duration
	dialer    *websocket.Dialer
	metrics   *metrics.Metrics
}

func NewElevenLabs(apiKey, voiceID, staticDir string, m *metrics.Metrics) *ElevenLabs {
	if strings.TrimSpace(voiceID) == "" {
		voiceID = DefaultVoiceID
	}
	return &ElevenLabs{
		apiKey:    strings.TrimSpace(apiKey),
		voiceID:   voiceID,
		model:     defaultModel,
		staticDir: staticDir,
		wsBase:    defaultWSBase,
		timeout:   10 * time.Second,
		dialer:    websocket.DefaultDialer,
		metrics:   m,
	}
}

// WithWSBaseURL points the synthesizer at another endpoint.
func (e *ElevenLabs) WithWSBaseURL(base string) *ElevenLabs {
	if base = strings.TrimSpace(base); base != "" {
		e.wsBase = base
	}
	return e
}

// Enabled reports whether synthesis can be attempted at all.
func (e *ElevenLabs) Enabled() bool {
	return e != nil && e.apiKey != ""
}

// StaticDir is where generated files land.
func (e *ElevenLabs) StaticDir() string {
	return e.staticDir
}

// Synthesize writes text as a fresh <uuid>.mp3 and returns its file name
// relative to the static directory.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (string, error) {
	return e.SynthesizeFile(ctx, text, uuid.NewString()+".mp3")
}

// SynthesizeFile writes text to name inside the static directory. The file
// only appears once the full stream has arrived.
func (e *ElevenLabs) SynthesizeFile(ctx context.Context, text, name string) (string, error) {
	if !e.Enabled() {
		return "", ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("nothing to synthesize")
	}

	started := time.Now()
	audio, err := e.stream(ctx, text)
	if err != nil {
		e.metrics.RecordTTS("error", time.Since(started))
		return "", err
	}
	if len(audio) == 0 {
		e.metrics.RecordTTS("empty", time.Since(started))
		return "", fmt.Errorf("elevenlabs returned no audio")
	}

	if err := writeAtomic(filepath.Join(e.staticDir, name), audio); err != nil {
		e.metrics.RecordTTS("error", time.Since(started))
		return "", err
	}
	e.metrics.RecordTTS("ok", time.Since(started))
	log.Debug().Str("file", name).Int("bytes", len(audio)).Dur("took", time.Since(started)).Msg("🔊 Audio generated")
	return name, nil
}

func (e *ElevenLabs) stream(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	wsURL, err := buildWSURL(e.wsBase, e.voiceID, e.model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("elevenlabs dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("elevenlabs dial: %w", err)
	}
	defer conn.Close()

	// unblock the read loop when the deadline passes
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.5,
			},
		},
		{"text": text + " ", "flush": true},
		{"text": ""},
	}
	for _, m := range messages {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(m); err != nil {
			return nil, fmt.Errorf("elevenlabs send: %w", err)
		}
	}

	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return audio, nil
			}
			return nil, fmt.Errorf("elevenlabs read: %w", err)
		}

		msg := gjson.ParseBytes(data)
		if apiErr := msg.Get("error").String(); apiErr != "" {
			return nil, fmt.Errorf("elevenlabs: %s", apiErr)
		}
		if chunk := msg.Get("audio").String(); chunk != "" {
			raw, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs audio chunk: %w", err)
			}
			audio = append(audio, raw...)
		}
		if msg.Get("isFinal").Bool() || msg.Get("is_final").Bool() {
			return audio, nil
		}
	}
}

func buildWSURL(base, voiceID, model string) (string, error) {
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		q.Set("model_id", model)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", defaultFormat)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tts-*")
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
