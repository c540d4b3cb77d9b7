// Command prewarm generates the welcome greeting ahead of time so callers hear
// it without waiting on synthesis.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/tts"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("HOTEL_CONFIG", "hotel.yaml")
	v.SetDefault("STATIC_DIR", "static")
	v.SetDefault("ELEVENLABS_VOICE_ID", tts.DefaultVoiceID)
	v.SetDefault("LOG_LEVEL", "info")

	logging.Setup(v.GetString("LOG_LEVEL"), "console")

	hotel, err := config.LoadHotel(v.GetString("HOTEL_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load hotel facts")
	}

	synth := tts.NewElevenLabs(v.GetString("ELEVENLABS_API_KEY"), v.GetString("ELEVENLABS_VOICE_ID"), v.GetString("STATIC_DIR"), nil)
	if !synth.Enabled() {
		log.Fatal().Msg("ELEVENLABS_API_KEY not set")
	}

	text := fmt.Sprintf("Welcome to %s! It is my absolute pleasure to serve you. How may I brighten your stay today?", hotel.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info().Msgf("Generating '%s'...", tts.WelcomeFile)
	name, err := synth.SynthesizeFile(ctx, text, tts.WelcomeFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate welcome audio")
	}
	log.Info().Str("file", name).Str("dir", synth.StaticDir()).Msg("✅ Welcome audio saved")
}
