package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/room4-2/concierge/agent"
	"github.com/room4-2/concierge/config"
	"github.com/room4-2/concierge/functions"
	"github.com/room4-2/concierge/gemini"
	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/notify"
	"github.com/room4-2/concierge/pms"
	"github.com/room4-2/concierge/prompt"
	"github.com/room4-2/concierge/session"
	"github.com/room4-2/concierge/voice"

	"github.com/rs/zerolog/log"
)

// script walks through the tools a guest would typically reach for.
var script = []string{
	"Hi, this is room 402. Who am I speaking with?",
	"My air conditioning is broken.",
	"How much do I owe so far?",
	"Can I get two club sandwiches sent up?",
	"¿A qué hora cierra la piscina?",
	"Actually, please put me through to a manager.",
}

func main() {
	phone := flag.String("phone", "+15550001234", "caller number to act as")
	hotelPath := flag.String("hotel", "hotel.yaml", "hotel facts file")
	flag.Parse()

	logging.Setup(os.Getenv("LOG_LEVEL"), "console")

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY not set")
	}

	hotel, err := config.LoadHotel(*hotelPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load hotel facts")
	}

	ctx := context.Background()

	gateway, err := gemini.NewGateway(ctx, apiKey, os.Getenv("GEMINI_MODEL"), 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway")
	}

	guests := pms.NewMemoryStore()
	if err := guests.Seed(ctx, pms.Reservation{Phone: *phone, Name: "Alex", Room: "402", Nights: 3, Balance: 450}); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed guest")
	}

	events := notify.NewDispatcher(notify.LogSender{}, 1, 16, nil)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		events.Run(runCtx)
	}()

	orch := agent.New(agent.Deps{
		Sessions: session.NewMemoryStore(40, 0),
		Guests:   guests,
		Prompts:  prompt.NewBuilder(hotel, functions.Declarations()),
		Gateway:  gateway,
		Tools:    functions.Tools(),
		Dispatcher: functions.NewDispatcher(functions.Options{
			Store:     guests,
			Events:    events,
			HotelName: hotel.Name,
		}),
		Voices: voice.NewResolver(""),
	})

	const callID = "CA-test-text"
	for _, line := range script {
		fmt.Printf("\n👤 %s\n", line)
		res := orch.HandleTurn(ctx, callID, *phone, line)
		fmt.Printf("🤖 %s\n   [lang=%s voice=%s transfer=%t]\n", res.Text, res.LanguageCode, res.VoiceID, res.Transfer)
		if res.Transfer {
			fmt.Println("📞 Call would be transferred here")
			break
		}
	}

	n, _ := guests.TicketCount(ctx)
	g, _ := guests.GetGuest(ctx, *phone)
	fmt.Printf("\nTickets opened: %d, last order: %q, visits: %d\n", n, g.LastOrder, g.Visits)

	stop()
	<-done
}
