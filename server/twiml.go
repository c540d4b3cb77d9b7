package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go/twiml"
)

const gatherTimeout = 3

// twimlResponse collects voice verbs. They render in the order added.
type twimlResponse struct {
	verbs []twiml.Element
}

func (r *twimlResponse) Say(voice, text string) *twimlResponse {
	r.verbs = append(r.verbs, &twiml.VoiceSay{Voice: voice, Message: text})
	return r
}

func (r *twimlResponse) Play(url string) *twimlResponse {
	r.verbs = append(r.verbs, &twiml.VoicePlay{Url: url})
	return r
}

func (r *twimlResponse) Gather(action, language string) *twimlResponse {
	r.verbs = append(r.verbs, &twiml.VoiceGather{
		Input:    "speech",
		Action:   action,
		Method:   http.MethodPost,
		Timeout:  strconv.Itoa(gatherTimeout),
		Language: language,
	})
	return r
}

func (r *twimlResponse) Redirect(url string) *twimlResponse {
	r.verbs = append(r.verbs, &twiml.VoiceRedirect{Method: http.MethodPost, Url: url})
	return r
}

func (r *twimlResponse) Dial(number string) *twimlResponse {
	r.verbs = append(r.verbs, &twiml.VoiceDial{Number: number})
	return r
}

func writeTwiML(w http.ResponseWriter, resp *twimlResponse) {
	body, err := twiml.Voice(resp.verbs)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to render TwiML")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, body)
}
