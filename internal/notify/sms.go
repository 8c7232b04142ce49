package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wazeportal/ingest/config"
	apperrors "github.com/wazeportal/ingest/internal/errors"
	"github.com/wazeportal/ingest/internal/models"
)

// SMSSender delivers notifications through the Twilio messaging API.
type SMSSender struct {
	cfg    config.TwilioConfig
	client *twilio.RestClient
}

func NewSMSSender(cfg config.TwilioConfig) *SMSSender {
	var client *twilio.RestClient
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
	}
	return &SMSSender{cfg: cfg, client: client}
}

func (s *SMSSender) Channel() models.Channel {
	return models.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, contact, message string) error {
	if s.client == nil || s.cfg.FromNumber == "" {
		return fmt.Errorf("%w: twilio", apperrors.ErrChannelConfig)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(contact)
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(message)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms to %s: %w", contact, err)
	}
	return nil
}
