// Package notify delivers best-effort SMS side messages: order confirmations
// to guests and ticket alerts to staff. Failures are logged and counted,
// never returned to the phone agent.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one message to one phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	rest       *twilio.RestClient
}

// NewTwilioSender sends from the given number with a 10 second request timeout.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return NewTwilioSenderWithClient(accountSID, authToken, from, &http.Client{Timeout: 10 * time.Second})
}

// NewTwilioSenderWithClient routes API calls through httpClient.
func NewTwilioSenderWithClient(accountSID, authToken, from string, httpClient *http.Client) *TwilioSender {
	base := &client.Client{
		Credentials: client.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(accountSID)

	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   accountSID,
			Password:   authToken,
			AccountSid: accountSID,
			Client:     base,
		}),
	}
}

func (s *TwilioSender) Send(ctx context.Context, phone, message string) error {
	if s.accountSID == "" || s.authToken == "" {
		return fmt.Errorf("missing twilio credentials")
	}
	if phone == "" {
		return fmt.Errorf("missing destination number")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetPathAccountSid(s.accountSID)
	params.SetTo(phone)
	params.SetFrom(s.from)
	params.SetBody(message)

	if _, err := s.rest.Api.CreateMessage(params); err != nil {
		var apiErr *client.TwilioRestError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("twilio %d (code %d): %s", apiErr.Status, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio request: %w", err)
	}
	return nil
}

// LogSender only logs; it stands in when no SMS credentials are configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, phone, message string) error {
	log.Info().Str("to", phone).Str("body", message).Msg("📨 SMS (not sent, no credentials)")
	return nil
}
