package model

import (
	"errors"
	"time"
)

// MessageChannel identifies the transport a message travelled on.
type MessageChannel string

const (
	MessageChannelSMS      MessageChannel = "sms"
	MessageChannelWhatsApp MessageChannel = "whatsapp"
	MessageChannelEmail    MessageChannel = "email"
)

type MessageDirection string

const (
	MessageDirectionInbound  MessageDirection = "inbound"
	MessageDirectionOutbound MessageDirection = "outbound"
)

// MessageStatus is the delivery state of a message. Rows are immutable
// after creation except for status updates driven by delivery webhooks.
type MessageStatus string

const (
	MessageStatusPendingApproval MessageStatus = "pending_approval"
	MessageStatusSent            MessageStatus = "sent"
	MessageStatusDelivered       MessageStatus = "delivered"
	MessageStatusReceived        MessageStatus = "received"
	MessageStatusFailed          MessageStatus = "failed"
)

// Metadata keys used across channels.
const (
	MetaProviderMessageID = "provider_message_id"
	MetaSubject           = "subject"
	MetaFrom              = "from"
	MetaTo                = "to"
)

type Message struct {
	ID        int64             `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ThreadID  int64             `json:"thread_id"  db:"thread_id"  gorm:"column:thread_id;not null;index"`
	Channel   MessageChannel    `json:"channel"    db:"channel"    gorm:"column:channel;not null;index"`
	Direction MessageDirection  `json:"direction"  db:"direction"  gorm:"column:direction;not null"`
	Status    MessageStatus     `json:"status"     db:"status"     gorm:"column:status;not null"`
	Body      string            `json:"body"       db:"body"       gorm:"column:body"`
	Metadata  map[string]string `json:"metadata"                   gorm:"-"`
	CreatedAt time.Time         `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Message) TableName() string { return "messages" }

// ProviderMessageID returns the provider-side identifier stored in
// metadata, or "" when the message has never been cross-referenced.
func (m *Message) ProviderMessageID() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[MetaProviderMessageID]
}

// MessageCreateRequest is the input for sending an outbound message.
type MessageCreateRequest struct {
	UserID    int64
	ContactID int64
	Channel   MessageChannel
	Body      string
	Subject   string // email only
}

func (p MessageCreateRequest) Validate() error {
	if p.ContactID == 0 {
		return errors.New("contact_id is required")
	}
	if p.Body == "" {
		return errors.New("body is required")
	}
	switch p.Channel {
	case MessageChannelSMS, MessageChannelWhatsApp, MessageChannelEmail:
	default:
		return errors.New("channel must be one of sms, whatsapp, email")
	}
	return nil
}

// MessageFilter controls List queries.
type MessageFilter struct {
	ThreadID  *int64
	Channel   *MessageChannel
	Direction *MessageDirection
	Statuses  []MessageStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	Desc      bool
}
