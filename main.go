package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/concierge/agent"
	"github.com/room4-2/concierge/calllog"
	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/db"
	"github.com/room4-2/concierge/functions"
	"github.com/room4-2/concierge/gemini"
	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/metrics"
	"github.com/room4-2/concierge/notify"
	"github.com/room4-2/concierge/pms"
	"github.com/room4-2/concierge/prompt"
	"github.com/room4-2/concierge/server"
	"github.com/room4-2/concierge/session"
	"github.com/room4-2/concierge/tts"
	"github.com/room4-2/concierge/voice"

	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	hotel, err := config.LoadHotel(cfg.HotelConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load hotel facts")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.OpenAndMigrate(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	guests := pms.NewSQLStore(database)
	seedDemoGuest(ctx, cfg, guests)
	calls := calllog.NewStore(database)

	m := metrics.New("concierge")

	sessions, runCleanup := openSessions(ctx, cfg)
	go runCleanup(ctx)

	gateway, err := gemini.NewGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ModelTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini gateway")
	}

	var sender notify.Sender = notify.LogSender{}
	if cfg.SMSEnabled() {
		sender = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	} else {
		log.Info().Msg("📵 Twilio SMS credentials missing, notifications will only be logged")
	}
	events := notify.NewDispatcher(sender, cfg.NotifyWorkers, 64, m)
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		events.Run(ctx)
	}()

	orch := agent.New(agent.Deps{
		Sessions: sessions,
		Guests:   guests,
		Prompts:  prompt.NewBuilder(hotel, functions.Declarations()),
		Gateway:  gateway,
		Tools:    functions.Tools(),
		Dispatcher: functions.NewDispatcher(functions.Options{
			Store:      guests,
			Events:     events,
			HotelName:  hotel.Name,
			StaffPhone: cfg.StaffPhone,
			Metrics:    m,
		}),
		Voices:  voice.NewResolver(cfg.DefaultVoice),
		CallLog: calls,
		Metrics: m,
	})

	speech := tts.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.StaticDir, m)
	if !speech.Enabled() {
		log.Info().Msg("🔇 ELEVENLABS_API_KEY not set, replies use the built-in telephony voice")
	}
	if err := os.MkdirAll(cfg.StaticDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StaticDir).Msg("Failed to create static directory")
	}
	go tts.NewSweeper(cfg.StaticDir, cfg.AudioRetention).Run(ctx)

	srv := server.NewServer(cfg, hotel.Name, server.Deps{
		Agent:   orch,
		Speech:  speech,
		Calls:   calls,
		Metrics: m,
	})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		cancel()
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	cancel()
	<-notifyDone
	log.Info().Msg("Server stopped")
}

// openSessions picks the session backend, falling back to memory when Redis
// is unreachable at startup.
func openSessions(ctx context.Context, cfg *config.Config) (session.Store, func(context.Context)) {
	if cfg.SessionBackend == "redis" {
		client, err := session.Connect(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			log.Info().Str("addr", cfg.RedisURL).Msg("🗃️ Using Redis session store")
			store := session.NewRedisStore(client, cfg.MaxHistory, cfg.SessionTimeout)
			return store, store.StartCleanupRoutine
		}
		log.Warn().Err(err).Msg("⚠️ Redis unavailable, falling back to in-memory sessions")
	}

	store := session.NewMemoryStore(cfg.MaxHistory, cfg.SessionTimeout)
	return store, store.StartCleanupRoutine
}

func seedDemoGuest(ctx context.Context, cfg *config.Config, guests pms.Store) {
	if cfg.DemoGuestPhone == "" {
		return
	}
	err := guests.Seed(ctx, pms.Reservation{
		Phone:   cfg.DemoGuestPhone,
		Name:    cfg.DemoGuestName,
		Room:    cfg.DemoRoom,
		Nights:  3,
		Balance: 450,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo guest")
	}
	log.Info().Str("phone", cfg.DemoGuestPhone).Str("room", cfg.DemoRoom).Msg("🏨 Demo guest ready")
}
