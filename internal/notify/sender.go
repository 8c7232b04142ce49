package notify

import (
	"context"
	"fmt"

	"github.com/wazeportal/ingest/internal/models"
)

// Sender delivers one notification over a single channel.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, contact, message string) error
}

// FormatAlertMessage renders the notification body for an alert. Texts stay
// in Portuguese to match the portal's audience.
func FormatAlertMessage(a *models.Alert) string {
	if a == nil {
		return "Novo alerta de transito recebido."
	}
	msg := fmt.Sprintf("Novo alerta: %s", a.Type)
	if a.Subtype != "" {
		msg += fmt.Sprintf(" (%s)", a.Subtype)
	}
	if a.Street != "" {
		msg += fmt.Sprintf(" em %s", a.Street)
	}
	if a.City != "" {
		msg += fmt.Sprintf(", %s", a.City)
	}
	return msg
}
