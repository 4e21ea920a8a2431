package fixtures

import (
	"time"

	"github.com/calvora/sales-gateway/internal/model"
)

var (
	TestUser1 = model.User{
		ID:    1,
		Name:  "Alice Seller",
		Email: "alice@example.com",
		Phone: "+15550000001",
	}

	TestUser2 = model.User{
		ID:    2,
		Name:  "Bob Closer",
		Email: "bob@example.com",
		Phone: "+15550000002",
	}
)

func NewTestContact(userID int64, name, phone string) *model.Contact {
	uid := userID
	return &model.Contact{
		UserID: &uid,
		Name:   name,
		Phone:  model.NormalizePhone(phone),
		Source: model.ContactSourceManual,
		Status: model.ContactStatusNew,
	}
}

func NewTestContactCreateRequest(userID int64, name, phone string) model.ContactCreateRequest {
	return model.ContactCreateRequest{
		UserID: userID,
		Name:   name,
		Phone:  phone,
		Source: model.ContactSourceManual,
	}
}

func NewTestCall(sessionID string, contactID int64, direction model.CallDirection, status model.CallStatus) *model.Call {
	cid := contactID
	return &model.Call{
		SessionID: sessionID,
		ContactID: &cid,
		Direction: direction,
		Status:    status,
	}
}

func NewTestMessageCreateRequest(userID, contactID int64, channel model.MessageChannel, body string) model.MessageCreateRequest {
	return model.MessageCreateRequest{
		UserID:    userID,
		ContactID: contactID,
		Channel:   channel,
		Body:      body,
	}
}

func NewVoiceEvent(sessionID, eventType, caller string) *model.VoiceWebhookEvent {
	return &model.VoiceWebhookEvent{
		SessionID:    sessionID,
		EventType:    eventType,
		CallerNumber: caller,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

func NewInboundSMS(sid, from, to, body string) *model.InboundMessage {
	return &model.InboundMessage{
		MessageSid: sid,
		From:       from,
		To:         to,
		Body:       body,
		Channel:    model.MessageChannelSMS,
	}
}

var (
	ValidPhoneNumbers = []string{
		"+15551234567",
		"+447700900123",
		"+4915112345678",
		"+81312345678",
	}

	InvalidPhoneNumbers = []string{
		"",
		"   ",
	}
)

func ContactFilterByUser(userID int64) model.ContactFilter {
	return model.ContactFilter{
		UserID: &userID,
		Limit:  50,
		Offset: 0,
		Desc:   false,
	}
}

func CallFilterByContact(userID, contactID int64) model.CallFilter {
	return model.CallFilter{
		UserID:    &userID,
		ContactID: &contactID,
		Limit:     50,
		Offset:    0,
		Desc:      false,
	}
}

func MessageFilterByThread(threadID int64) model.MessageFilter {
	return model.MessageFilter{
		ThreadID: &threadID,
		Limit:    50,
		Offset:   0,
		Desc:     false,
	}
}

func MessageFilterByTimeRange(threadID int64, from, to time.Time) model.MessageFilter {
	return model.MessageFilter{
		ThreadID: &threadID,
		From:     &from,
		To:       &to,
		Limit:    50,
		Offset:   0,
		Desc:     false,
	}
}
