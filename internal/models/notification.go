package models

import "time"

// Delivery channels.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Delivery statuses, kept in Portuguese to match the portal schema.
const (
	SendPending = "PENDENTE"
	SendQueued  = "FILA"
	SendSent    = "ENVIADO"
	SendError   = "ERRO"
)

// QueueEntry is one fila_envio row: a freshly-inserted alert awaiting
// fan-out. Created only on insert, never on update or duplicate.
type QueueEntry struct {
	ID         int64     `json:"id" db:"id"`
	AlertUUID  string    `json:"alert_uuid" db:"uuid_alerta"`
	Type       string    `json:"type" db:"type"`
	Subtype    string    `json:"subtype" db:"subtype"`
	PartnerID  int       `json:"partner_id" db:"id_parceiro"`
	CreatedAt  time.Time `json:"created_at" db:"data_criacao"`
	Sent       bool      `json:"sent" db:"enviado"`
	SendStatus string    `json:"send_status" db:"status_envio"`
	SentAt     *time.Time `json:"sent_at,omitempty" db:"data_envio"`
	ErrorMsg   string    `json:"error_msg,omitempty" db:"mensagem_erro"`
}

// DeliveryTask is one fila_envio_detalhes row: a single (alert, user,
// channel) dispatch. At most one task exists per such triple.
type DeliveryTask struct {
	ID         int64     `json:"id" db:"id"`
	QueueID    int64     `json:"queue_id" db:"fila_id"`
	AlertUUID  string    `json:"alert_uuid" db:"uuid_allert"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Contact    string    `json:"contact" db:"contact"` // email address or phone number
	Channel    Channel   `json:"channel" db:"metodo"`
	SendStatus string    `json:"send_status" db:"status_envio"`
	Message    string    `json:"message,omitempty" db:"mensagem"`
	CreatedAt  time.Time `json:"created_at" db:"data_criacao"`
	UpdatedAt  time.Time `json:"updated_at" db:"data_atualizacao"`
}

// UserPreference is one user_notification_preferences row joined to its
// user's contact data. Subtype may be empty, meaning "any subtype of this
// type".
type UserPreference struct {
	UserID          int64  `json:"user_id" db:"user_id"`
	Email           string `json:"email" db:"email"`
	Phone           string `json:"phone" db:"phone_number"`
	PartnerID       int    `json:"partner_id" db:"id_parceiro"`
	Type            string `json:"type" db:"type"`
	Subtype         string `json:"subtype" db:"subtype"`
	ReceiveEmail    bool   `json:"receive_email" db:"receive_email"`
	ReceiveSMS      bool   `json:"receive_sms" db:"receive_sms"`
	ReceiveWhatsApp bool   `json:"receive_whatsapp" db:"receive_whatsapp"`
}

// Contact returns the contact value for a channel, empty when the user has
// not opted in or has no usable contact on file.
func (p UserPreference) Contact(ch Channel) string {
	switch ch {
	case ChannelEmail:
		if p.ReceiveEmail {
			return p.Email
		}
	case ChannelSMS:
		if p.ReceiveSMS {
			return p.Phone
		}
	case ChannelWhatsApp:
		if p.ReceiveWhatsApp {
			return p.Phone
		}
	}
	return ""
}

// AllChannels lists every delivery channel in dispatch order.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp}
}
