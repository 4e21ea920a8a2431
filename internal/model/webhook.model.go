package model

// Voice webhook event types.
const (
	VoiceEventCallInitiated = "call_initiated"
	VoiceEventCallEnded     = "call_ended"
	VoiceEventCallAnalyzed  = "call_analyzed"
)

// VoiceWebhookEvent is the provider's call-lifecycle callback. Numeric
// fields are pointers so an omitted field is distinguishable from a
// zero value when merging into the Call row.
type VoiceWebhookEvent struct {
	SessionID     string   `json:"session_id"`
	EventType     string   `json:"event_type"`
	CallerNumber  string   `json:"caller_number"`
	Timestamp     string   `json:"timestamp"`
	Duration      *int     `json:"duration"`
	Cost          *float64 `json:"cost"`
	SessionStatus string   `json:"session_status"`
	UserSentiment string   `json:"user_sentiment"`
	EndStatus     string   `json:"end_status"`
	Transcript    string   `json:"transcript"`
	Summary       string   `json:"summary"`
	RecordingURL  string   `json:"recording_url"`
	PublicLogURL  string   `json:"public_log_url"`
}

// InboundMessage is the normalized form of an SMS/WhatsApp webhook
// (form-encoded MessageSid/From/To/Body/MessageStatus fields).
type InboundMessage struct {
	MessageSid string
	From       string
	To         string
	Body       string
	Status     string
	Channel    MessageChannel
}

// Email webhook event types.
const (
	EmailEventSent      = "email.sent"
	EmailEventDelivered = "email.delivered"
	EmailEventReceived  = "email.received"
)

type EmailWebhookEvent struct {
	Type string           `json:"type"`
	Data EmailWebhookData `json:"data"`
}

type EmailWebhookData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	EmailID string `json:"email_id"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}
