package messages

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextFrame(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"text","payload":{"text":"hi","phone":"+15550001234"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeText, msg.Type)

	var p TextPayload
	require.NoError(t, msg.DecodePayload(&p))
	assert.Equal(t, TextPayload{Text: "hi", Phone: "+15550001234"}, p)
}

func TestDecodeControlFrame(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"control","payload":{"action":"reset"}}`))
	require.NoError(t, err)

	var p ControlPayload
	require.NoError(t, msg.DecodePayload(&p))
	assert.Equal(t, ActionReset, p.Action)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestServerFrames(t *testing.T) {
	data, err := sonic.Marshal(NewTurnMessage("console-1", TurnPayload{Text: "Hello", LanguageCode: "en", VoiceID: "v"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"turn","sessionId":"console-1","payload":{"text":"Hello","language_code":"en","transfer":false,"voice_id":"v"}}`, string(data))

	data, err = sonic.Marshal(NewErrorMessage("", ErrCodeInvalidMessage, "bad"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"code":"INVALID_MESSAGE","message":"bad"}}`, string(data))
}
