package repository

import (
	"encoding/json"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
)

type MessageEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ThreadID  int64     `db:"thread_id"  gorm:"column:thread_id;not null;index"`
	Channel   string    `db:"channel"    gorm:"column:channel;not null;index"`
	Direction string    `db:"direction"  gorm:"column:direction;not null"`
	Status    string    `db:"status"     gorm:"column:status;not null"`
	Body      string    `db:"body"       gorm:"column:body"`
	Metadata  string    `db:"metadata"   gorm:"column:metadata"` // JSON object
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`

	// ProviderMessageID duplicates metadata["provider_message_id"] as a
	// real column so delivery webhooks and the history merger can match
	// without scanning JSON.
	ProviderMessageID string `db:"provider_message_id" gorm:"column:provider_message_id;index"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	meta := ""
	if len(m.Metadata) > 0 {
		if b, err := json.Marshal(m.Metadata); err == nil {
			meta = string(b)
		}
	}
	return &MessageEntity{
		ID:                m.ID,
		ThreadID:          m.ThreadID,
		Channel:           string(m.Channel),
		Direction:         string(m.Direction),
		Status:            string(m.Status),
		Body:              m.Body,
		Metadata:          meta,
		ProviderMessageID: m.ProviderMessageID(),
		CreatedAt:         m.CreatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	var meta map[string]string
	if e.Metadata != "" {
		_ = json.Unmarshal([]byte(e.Metadata), &meta)
	}
	// The column is authoritative: MarkDispatched writes it without
	// rewriting the metadata JSON.
	if e.ProviderMessageID != "" {
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta[model.MetaProviderMessageID] = e.ProviderMessageID
	}
	return &model.Message{
		ID:        e.ID,
		ThreadID:  e.ThreadID,
		Channel:   model.MessageChannel(e.Channel),
		Direction: model.MessageDirection(e.Direction),
		Status:    model.MessageStatus(e.Status),
		Body:      e.Body,
		Metadata:  meta,
		CreatedAt: e.CreatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
