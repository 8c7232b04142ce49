package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wazeportal/ingest/config"
	apperrors "github.com/wazeportal/ingest/internal/errors"
	"github.com/wazeportal/ingest/internal/models"
)

// WhatsAppSender delivers notifications through a WhatsApp gateway. The
// gateway pairs a physical device; a send against a disconnected device
// silently drops the message, so connectivity is checked first.
type WhatsAppSender struct {
	cfg    config.WhatsAppConfig
	client *http.Client
}

func NewWhatsAppSender(cfg config.WhatsAppConfig) *WhatsAppSender {
	return &WhatsAppSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *WhatsAppSender) Channel() models.Channel {
	return models.ChannelWhatsApp
}

func (s *WhatsAppSender) Send(ctx context.Context, contact, message string) error {
	if s.cfg.BaseURL == "" || s.cfg.DeviceToken == "" {
		return fmt.Errorf("%w: whatsapp", apperrors.ErrChannelConfig)
	}

	if err := s.checkDevice(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"device_token": s.cfg.DeviceToken,
		"number":       contact,
		"message":      message,
	})
	if err != nil {
		return fmt.Errorf("encode whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/message/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp to %s: %w", contact, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("whatsapp gateway returned status %d for %s", resp.StatusCode, contact)
	}
	return nil
}

// checkDevice verifies the paired device is connected before sending.
func (s *WhatsAppSender) checkDevice(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.BaseURL+"/device/"+s.cfg.DeviceToken+"/status", nil)
	if err != nil {
		return fmt.Errorf("build device status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp device status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whatsapp device status returned %d", resp.StatusCode)
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&status); err != nil {
		return fmt.Errorf("decode device status: %w", err)
	}
	if status.Status != "connected" {
		return fmt.Errorf("whatsapp device not connected: %s", status.Status)
	}
	return nil
}
