package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	setup(&buf, "debug", "json")
	log.Debug().Str("call", "CA123").Msg("hello")

	assert.Contains(t, buf.String(), `"call":"CA123"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	setup(&buf, "chatty", "json")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "CA123456", ShortID("CA1234567890"))
	assert.Equal(t, "abc", ShortID("abc"))
}
