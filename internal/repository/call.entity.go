package repository

import (
	"time"

	"github.com/calvora/sales-gateway/internal/model"
)

type CallEntity struct {
	ID               int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	SessionID        string     `db:"session_id"        gorm:"column:session_id;not null;uniqueIndex"`
	ProviderCallID   string     `db:"provider_call_id"  gorm:"column:provider_call_id"`
	UserID           *int64     `db:"user_id"           gorm:"column:user_id;index"`
	ContactID        *int64     `db:"contact_id"        gorm:"column:contact_id;index"`
	Direction        string     `db:"direction"         gorm:"column:direction;not null"`
	Status           string     `db:"status"            gorm:"column:status;not null;index"`
	StartedAt        *time.Time `db:"started_at"        gorm:"column:started_at"`
	EndedAt          *time.Time `db:"ended_at"          gorm:"column:ended_at"`
	Duration         *int       `db:"duration"          gorm:"column:duration"`
	Cost             *float64   `db:"cost"              gorm:"column:cost"`
	Sentiment        *string    `db:"sentiment"         gorm:"column:sentiment"`
	DisconnectReason *string    `db:"disconnect_reason" gorm:"column:disconnect_reason"`
	Transcript       *string    `db:"transcript"        gorm:"column:transcript"`
	Summary          *string    `db:"summary"           gorm:"column:summary"`
	RecordingURL     *string    `db:"recording_url"     gorm:"column:recording_url"`
	LogURL           *string    `db:"log_url"           gorm:"column:log_url"`
	CreatedAt        time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (CallEntity) TableName() string {
	return "calls"
}

func toCallEntity(m *model.Call) *CallEntity {
	if m == nil {
		return nil
	}
	return &CallEntity{
		ID:               m.ID,
		SessionID:        m.SessionID,
		ProviderCallID:   m.ProviderCallID,
		UserID:           m.UserID,
		ContactID:        m.ContactID,
		Direction:        string(m.Direction),
		Status:           string(m.Status),
		StartedAt:        m.StartedAt,
		EndedAt:          m.EndedAt,
		Duration:         m.Duration,
		Cost:             m.Cost,
		Sentiment:        m.Sentiment,
		DisconnectReason: m.DisconnectReason,
		Transcript:       m.Transcript,
		Summary:          m.Summary,
		RecordingURL:     m.RecordingURL,
		LogURL:           m.LogURL,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toCallModel(e *CallEntity) *model.Call {
	if e == nil {
		return nil
	}
	return &model.Call{
		ID:               e.ID,
		SessionID:        e.SessionID,
		ProviderCallID:   e.ProviderCallID,
		UserID:           e.UserID,
		ContactID:        e.ContactID,
		Direction:        model.CallDirection(e.Direction),
		Status:           model.CallStatus(e.Status),
		StartedAt:        e.StartedAt,
		EndedAt:          e.EndedAt,
		Duration:         e.Duration,
		Cost:             e.Cost,
		Sentiment:        e.Sentiment,
		DisconnectReason: e.DisconnectReason,
		Transcript:       e.Transcript,
		Summary:          e.Summary,
		RecordingURL:     e.RecordingURL,
		LogURL:           e.LogURL,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func toCallModels(entities []*CallEntity) []*model.Call {
	if entities == nil {
		return nil
	}
	models := make([]*model.Call, len(entities))
	for i, e := range entities {
		models[i] = toCallModel(e)
	}
	return models
}
