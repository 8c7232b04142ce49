package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/wazeportal/ingest/config"
	apperrors "github.com/wazeportal/ingest/internal/errors"
	"github.com/wazeportal/ingest/internal/models"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	cfg config.SMTPConfig
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

func (s *EmailSender) Channel() models.Channel {
	return models.ChannelEmail
}

func (s *EmailSender) Send(ctx context.Context, contact, message string) error {
	if s.cfg.Server == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("%w: smtp", apperrors.ErrChannelConfig)
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, contact, s.cfg.Subject, message)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Server)
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)

	if err := smtp.SendMail(addr, auth, from, []string{contact}, []byte(body)); err != nil {
		return fmt.Errorf("send email to %s: %w", contact, err)
	}
	return nil
}
