package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/tts"

	"github.com/rs/zerolog/log"
)

const (
	speechAction = "/handle-speech"
	notCaught    = "I didn't catch that."
)

// handleVoice answers a new inbound call.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	log.Info().Str("call", logging.ShortID(callID)).Str("from", r.PostFormValue("From")).Msg("📞 Incoming call")

	if err := s.agent.Reset(r.Context(), callID); err != nil {
		log.Warn().Err(err).Str("call", logging.ShortID(callID)).Msg("⚠️ Failed to reset session")
	}

	resp := &twimlResponse{}
	if s.hasWelcomeAudio() {
		resp.Play(s.staticURL(tts.WelcomeFile))
	} else {
		resp.Say(s.config.DefaultVoice, "Welcome to "+s.hotelName+". How can I help?")
	}
	resp.Gather(speechAction, s.config.GatherLanguage).Redirect("/voice")
	writeTwiML(w, resp)
}

// handleSpeech runs one turn for a transcribed utterance.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callID := r.PostFormValue("CallSid")
	if callID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	phone := r.PostFormValue("From")
	speech := strings.TrimSpace(r.PostFormValue("SpeechResult"))

	resp := &twimlResponse{}
	if speech == "" {
		resp.Say(s.config.DefaultVoice, notCaught).Gather(speechAction, s.config.GatherLanguage)
		writeTwiML(w, resp)
		return
	}

	result := s.agent.HandleTurn(r.Context(), callID, phone, speech)

	if url, ok := s.synthesize(r, callID, result.Text); ok {
		resp.Play(url)
	} else {
		resp.Say(result.VoiceID, result.Text)
	}

	if result.Transfer && s.config.FrontDeskNumber != "" {
		log.Info().Str("call", logging.ShortID(callID)).Msg("📞 Transferring to front desk")
		resp.Dial(s.config.FrontDeskNumber)
	} else {
		resp.Gather(speechAction, s.config.GatherLanguage)
	}
	writeTwiML(w, resp)
}

// synthesize returns a playable URL, or false when the caller should hear
// the provider's built-in voice instead.
func (s *Server) synthesize(r *http.Request, callID, text string) (string, bool) {
	if s.speech == nil || !s.speech.Enabled() {
		return "", false
	}
	name, err := s.speech.Synthesize(r.Context(), text)
	if err != nil {
		log.Warn().Err(err).Str("call", logging.ShortID(callID)).Msg("⚠️ Speech synthesis failed, using built-in voice")
		return "", false
	}
	return s.staticURL(name), true
}

func (s *Server) hasWelcomeAudio() bool {
	info, err := os.Stat(filepath.Join(s.config.StaticDir, tts.WelcomeFile))
	return err == nil && !info.IsDir()
}

func (s *Server) staticURL(name string) string {
	return strings.TrimRight(s.config.HostURL, "/") + "/static/" + name
}
