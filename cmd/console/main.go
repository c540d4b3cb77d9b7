package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/room4-2/concierge/messages"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	phone := flag.String("phone", "", "caller number to act as (server default when empty)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	target, err := url.Parse(*serverURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid server URL")
	}
	if *phone != "" {
		q := target.Query()
		q.Set("phone", *phone)
		target.RawQuery = q.Encode()
	}

	log.Info().Msgf("🔌 Connecting to %s...", target)
	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("Read error")
				}
				return
			}
			printFrame(gjson.ParseBytes(data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("Type to talk to the front desk. /ping and /reset are control commands, Ctrl-C quits.")
	for {
		select {
		case <-done:
			log.Info().Msg("Connection closed")
			return
		case <-interrupt:
			log.Info().Msg("👋 Interrupted, closing...")
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case line, ok := <-lines:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				<-done
				return
			}
			if err := send(conn, strings.TrimSpace(line)); err != nil {
				log.Error().Err(err).Msg("Send error")
				return
			}
		}
	}
}

func send(conn *websocket.Conn, line string) error {
	if line == "" {
		return nil
	}

	frame := map[string]any{"type": messages.TypeText, "payload": messages.TextPayload{Text: line}}
	if action, ok := strings.CutPrefix(line, "/"); ok {
		frame = map[string]any{"type": messages.TypeControl, "payload": messages.ControlPayload{Action: action}}
	}

	data, err := sonic.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func printFrame(msg gjson.Result) {
	payload := msg.Get("payload")
	switch msg.Get("type").String() {
	case messages.TypeTurn:
		fmt.Printf("🤖 %s\n", payload.Get("text").String())
		fmt.Printf("   [lang=%s voice=%s transfer=%t]\n",
			payload.Get("language_code").String(), payload.Get("voice_id").String(), payload.Get("transfer").Bool())
	case messages.TypeStatus:
		log.Info().Str("session", msg.Get("sessionId").String()).Msgf("📊 Status: %s %s",
			payload.Get("status").String(), payload.Get("message").String())
	case messages.TypeError:
		log.Error().Msgf("❌ %s: %s", payload.Get("code").String(), payload.Get("message").String())
	default:
		log.Warn().Msgf("Unknown frame: %s", msg.Raw)
	}
}
