package model

import (
	"errors"
	"time"
)

// CallStatus is the lifecycle state of a call attempt.
type CallStatus string

const (
	CallStatusScheduled  CallStatus = "scheduled"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// Call is one row per call attempt. SessionID is the provider-issued
// correlation key: exactly one Call row exists per session id, and
// asynchronous webhooks are matched against it.
type Call struct {
	ID               int64         `json:"id"                db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	SessionID        string        `json:"session_id"        db:"session_id"         gorm:"column:session_id;not null;uniqueIndex"`
	ProviderCallID   string        `json:"provider_call_id"  db:"provider_call_id"   gorm:"column:provider_call_id"`
	UserID           *int64        `json:"user_id"           db:"user_id"            gorm:"column:user_id;index"`
	ContactID        *int64        `json:"contact_id"        db:"contact_id"         gorm:"column:contact_id;index"`
	Direction        CallDirection `json:"direction"         db:"direction"          gorm:"column:direction;not null"`
	Status           CallStatus    `json:"status"            db:"status"             gorm:"column:status;not null;index"`
	StartedAt        *time.Time    `json:"started_at"        db:"started_at"         gorm:"column:started_at"`
	EndedAt          *time.Time    `json:"ended_at"          db:"ended_at"           gorm:"column:ended_at"`
	Duration         *int          `json:"duration"          db:"duration"           gorm:"column:duration"` // seconds
	Cost             *float64      `json:"cost"              db:"cost"               gorm:"column:cost"`
	Sentiment        *string       `json:"sentiment"         db:"sentiment"          gorm:"column:sentiment"`
	DisconnectReason *string       `json:"disconnect_reason" db:"disconnect_reason"  gorm:"column:disconnect_reason"`
	Transcript       *string       `json:"transcript"        db:"transcript"         gorm:"column:transcript"`
	Summary          *string       `json:"summary"           db:"summary"            gorm:"column:summary"`
	RecordingURL     *string       `json:"recording_url"     db:"recording_url"      gorm:"column:recording_url"`
	LogURL           *string       `json:"log_url"           db:"log_url"            gorm:"column:log_url"`
	CreatedAt        time.Time     `json:"created_at"        db:"created_at"         gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time     `json:"updated_at"        db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (Call) TableName() string { return "calls" }

// CallUpdate carries the fields of one webhook event. Nil pointers and
// empty strings mean "not present in the payload".
type CallUpdate struct {
	Status           CallStatus
	StartedAt        *time.Time
	EndedAt          *time.Time
	Duration         *int
	Cost             *float64
	Sentiment        *string
	DisconnectReason *string
	Transcript       *string
	Summary          *string
	RecordingURL     *string
	LogURL           *string
}

// MergeCallFields applies one webhook update to an existing Call row.
// Fields present in the update overwrite; fields absent keep their prior
// value. Last write wins across events, there is no transition check.
func MergeCallFields(existing Call, incoming CallUpdate) Call {
	merged := existing
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if incoming.StartedAt != nil {
		merged.StartedAt = incoming.StartedAt
	}
	if incoming.EndedAt != nil {
		merged.EndedAt = incoming.EndedAt
	}
	if incoming.Duration != nil {
		merged.Duration = incoming.Duration
	}
	if incoming.Cost != nil {
		merged.Cost = incoming.Cost
	}
	if incoming.Sentiment != nil {
		merged.Sentiment = incoming.Sentiment
	}
	if incoming.DisconnectReason != nil {
		merged.DisconnectReason = incoming.DisconnectReason
	}
	if incoming.Transcript != nil {
		merged.Transcript = incoming.Transcript
	}
	if incoming.Summary != nil {
		merged.Summary = incoming.Summary
	}
	if incoming.RecordingURL != nil {
		merged.RecordingURL = incoming.RecordingURL
	}
	if incoming.LogURL != nil {
		merged.LogURL = incoming.LogURL
	}
	return merged
}

// CallCreateRequest is the input for initiating an outbound call.
type CallCreateRequest struct {
	UserID    int64
	ContactID int64
}

func (p CallCreateRequest) Validate() error {
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if p.ContactID == 0 {
		return errors.New("contact_id is required")
	}
	return nil
}

// CallFilter controls List queries.
type CallFilter struct {
	UserID    *int64
	ContactID *int64
	Statuses  []CallStatus
	Direction *CallDirection
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
	Desc      bool
}
