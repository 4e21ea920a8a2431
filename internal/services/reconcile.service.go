package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/calvora/sales-gateway/pkg/logger"
)

// ErrSessionNotFound signals a voice webhook for an unknown session id.
// The handler answers 404 so the provider stops re-delivering.
var ErrSessionNotFound = errors.New("session not found")

type ReconcileContactRepository interface {
	Create(ctx context.Context, c *model.Contact) (*model.Contact, error)
	FindByPhoneForUser(ctx context.Context, phone string, userID int64) (*model.Contact, error)
	FindOrCreateByPhone(ctx context.Context, phone string, defaults *model.Contact) (*model.Contact, error)
	FindOrCreateByEmail(ctx context.Context, email string, defaults *model.Contact) (*model.Contact, error)
	TouchLastContact(ctx context.Context, id int64, at time.Time) error
}

type ReconcileCallRepository interface {
	Create(ctx context.Context, c *model.Call) (*model.Call, error)
	GetBySessionID(ctx context.Context, sessionID string) (*model.Call, error)
	UpdateBySessionID(ctx context.Context, sessionID string, update model.CallUpdate) (*model.Call, error)
}

type ThreadRepository interface {
	FindOrCreate(ctx context.Context, contactID int64, label string) (*model.Thread, error)
}

type ReconcileMessageRepository interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status model.MessageStatus) (int64, error)
}

type UserRepository interface {
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
}

// ReconcileService merges asynchronous provider callbacks into the
// local stores, creating contacts, threads, calls and messages on
// demand.
type ReconcileService struct {
	contactRepo ReconcileContactRepository
	callRepo    ReconcileCallRepository
	threadRepo  ThreadRepository
	messageRepo ReconcileMessageRepository
	userRepo    UserRepository
}

func NewReconcileService(
	contactRepo ReconcileContactRepository,
	callRepo ReconcileCallRepository,
	threadRepo ThreadRepository,
	messageRepo ReconcileMessageRepository,
	userRepo UserRepository,
) *ReconcileService {
	return &ReconcileService{
		contactRepo: contactRepo,
		callRepo:    callRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

/* ===================== VOICE ===================== */

// HandleVoiceEvent applies one voice provider callback. call_initiated
// events for unknown sessions create a Contact and an inbound Call; any
// other event for an unknown session returns ErrSessionNotFound.
func (s *ReconcileService) HandleVoiceEvent(ctx context.Context, ev *model.VoiceWebhookEvent) error {
	if ev.SessionID == "" {
		return errors.New("session_id is required")
	}

	eventTime := parseEventTime(ev.Timestamp)

	if ev.EventType == model.VoiceEventCallInitiated {
		if _, err := s.callRepo.GetBySessionID(ctx, ev.SessionID); err == nil {
			// Replayed call_initiated: fall through to the update path.
			return s.applyCallUpdate(ctx, ev, eventTime)
		} else if !errors.Is(err, repository.ErrCallNotFound) {
			return err
		}
		return s.createInboundCall(ctx, ev, eventTime)
	}

	return s.applyCallUpdate(ctx, ev, eventTime)
}

func (s *ReconcileService) createInboundCall(ctx context.Context, ev *model.VoiceWebhookEvent, eventTime time.Time) error {
	phone := model.NormalizePhone(ev.CallerNumber)

	contact, err := s.contactRepo.FindOrCreateByPhone(ctx, phone, &model.Contact{
		Name:   fmt.Sprintf("Unknown caller %s", phone),
		Source: model.ContactSourceWebhook,
		Status: model.ContactStatusNew,
	})
	if err != nil {
		return fmt.Errorf("find or create contact: %w", err)
	}

	call := &model.Call{
		SessionID: ev.SessionID,
		ContactID: &contact.ID,
		UserID:    contact.UserID,
		Direction: model.CallDirectionInbound,
		Status:    model.CallStatusInProgress,
		StartedAt: &eventTime,
	}
	if _, err := s.callRepo.Create(ctx, call); err != nil {
		return fmt.Errorf("create inbound call: %w", err)
	}

	logger.Info("inbound call created", "session_id", ev.SessionID, "contact_id", contact.ID)
	return nil
}

func (s *ReconcileService) applyCallUpdate(ctx context.Context, ev *model.VoiceWebhookEvent, eventTime time.Time) error {
	update := voiceEventToUpdate(ev, eventTime)

	merged, err := s.callRepo.UpdateBySessionID(ctx, ev.SessionID, update)
	if err != nil {
		if errors.Is(err, repository.ErrCallNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if merged.Status == model.CallStatusCompleted && merged.ContactID != nil {
		if err := s.contactRepo.TouchLastContact(ctx, *merged.ContactID, eventTime); err != nil {
			logger.Warn("failed to touch last contact", "contact_id", *merged.ContactID, "error", err)
		}
	}

	logger.Info("call reconciled", "session_id", ev.SessionID, "status", string(merged.Status), "event_type", ev.EventType)
	return nil
}

// voiceEventToUpdate maps payload fields to a merge update. Empty
// strings and nil numbers are treated as absent and retain the row's
// prior values.
func voiceEventToUpdate(ev *model.VoiceWebhookEvent, eventTime time.Time) model.CallUpdate {
	update := model.CallUpdate{
		Status:   voiceStatus(ev.SessionStatus),
		Duration: ev.Duration,
		Cost:     ev.Cost,
	}
	if ev.UserSentiment != "" {
		update.Sentiment = &ev.UserSentiment
	}
	if ev.EndStatus != "" {
		update.DisconnectReason = &ev.EndStatus
	}
	if ev.Transcript != "" {
		update.Transcript = &ev.Transcript
	}
	if ev.Summary != "" {
		update.Summary = &ev.Summary
	}
	if ev.RecordingURL != "" {
		update.RecordingURL = &ev.RecordingURL
	}
	if ev.PublicLogURL != "" {
		update.LogURL = &ev.PublicLogURL
	}
	if update.Status == model.CallStatusCompleted || update.Status == model.CallStatusFailed {
		update.EndedAt = &eventTime
	}
	return update
}

func voiceStatus(sessionStatus string) model.CallStatus {
	switch sessionStatus {
	case "completed", "ended":
		return model.CallStatusCompleted
	case "failed", "error":
		return model.CallStatusFailed
	case "in-progress", "ongoing":
		return model.CallStatusInProgress
	}
	// Unknown or absent: retain the row's current status.
	return ""
}

/* ===================== SMS / WHATSAPP ===================== */

// HandleInboundMessage applies one SMS/WhatsApp webhook. A payload with
// a body is an inbound message appended to the contact's thread; a
// body-less payload is a delivery receipt for an earlier outbound
// message, matched by provider message id.
func (s *ReconcileService) HandleInboundMessage(ctx context.Context, in *model.InboundMessage) error {
	if in.Body == "" && in.Status != "" {
		return s.applyDeliveryReceipt(ctx, in)
	}

	phone := model.NormalizePhone(in.From)

	contact, err := s.resolveMessagingContact(ctx, in, phone)
	if err != nil {
		return err
	}

	thread, err := s.threadRepo.FindOrCreate(ctx, contact.ID, string(in.Channel))
	if err != nil {
		return fmt.Errorf("find or create thread: %w", err)
	}

	msg := &model.Message{
		ThreadID:  thread.ID,
		Channel:   in.Channel,
		Direction: model.MessageDirectionInbound,
		Status:    model.MessageStatusReceived,
		Body:      in.Body,
		Metadata: map[string]string{
			model.MetaProviderMessageID: in.MessageSid,
			model.MetaFrom:              in.From,
			model.MetaTo:                in.To,
		},
	}
	if _, err := s.messageRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("create inbound message: %w", err)
	}

	logger.Info("inbound message recorded", "channel", string(in.Channel), "contact_id", contact.ID, "sid", in.MessageSid)
	return nil
}

// resolveMessagingContact finds the contact a webhook belongs to. For
// WhatsApp the lookup is scoped to the user owning the receiving
// number, since one provider number serves multiple users.
func (s *ReconcileService) resolveMessagingContact(ctx context.Context, in *model.InboundMessage, phone string) (*model.Contact, error) {
	defaults := &model.Contact{
		Name:   fmt.Sprintf("Unknown sender %s", phone),
		Source: model.ContactSourceWebhook,
		Status: model.ContactStatusNew,
	}

	if in.Channel == model.MessageChannelWhatsApp {
		user, err := s.userRepo.GetByPhone(ctx, model.NormalizePhone(in.To))
		if err == nil {
			contact, err := s.contactRepo.FindByPhoneForUser(ctx, phone, user.ID)
			if err == nil {
				return contact, nil
			}
			if !errors.Is(err, repository.ErrContactNotFound) {
				return nil, err
			}
			defaults.UserID = &user.ID
			defaults.Phone = phone
			return s.contactRepo.Create(ctx, defaults)
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
	}

	return s.contactRepo.FindOrCreateByPhone(ctx, phone, defaults)
}

func (s *ReconcileService) applyDeliveryReceipt(ctx context.Context, in *model.InboundMessage) error {
	status := deliveryStatus(in.Status)
	if status == "" {
		logger.Debug("ignoring delivery receipt with unknown status", "status", in.Status, "sid", in.MessageSid)
		return nil
	}

	updated, err := s.messageRepo.UpdateStatusByProviderID(ctx, in.MessageSid, status)
	if err != nil {
		return err
	}
	if updated == 0 {
		logger.Debug("delivery receipt matched no messages", "sid", in.MessageSid)
	}
	return nil
}

func deliveryStatus(providerStatus string) model.MessageStatus {
	switch providerStatus {
	case "sent":
		return model.MessageStatusSent
	case "delivered":
		return model.MessageStatusDelivered
	case "failed", "undelivered":
		return model.MessageStatusFailed
	}
	return ""
}

/* ===================== EMAIL ===================== */

// HandleEmailEvent dispatches on the provider event type: delivery
// status events update existing rows by provider message id, receipt
// events create Contact/Thread/Message keyed by the sender address.
func (s *ReconcileService) HandleEmailEvent(ctx context.Context, ev *model.EmailWebhookEvent) error {
	switch ev.Type {
	case model.EmailEventSent:
		_, err := s.messageRepo.UpdateStatusByProviderID(ctx, ev.Data.EmailID, model.MessageStatusSent)
		return err
	case model.EmailEventDelivered:
		_, err := s.messageRepo.UpdateStatusByProviderID(ctx, ev.Data.EmailID, model.MessageStatusDelivered)
		return err
	case model.EmailEventReceived:
		return s.recordInboundEmail(ctx, ev)
	}
	logger.Debug("ignoring unknown email event", "type", ev.Type)
	return nil
}

func (s *ReconcileService) recordInboundEmail(ctx context.Context, ev *model.EmailWebhookEvent) error {
	contact, err := s.contactRepo.FindOrCreateByEmail(ctx, ev.Data.From, &model.Contact{
		Name:   ev.Data.From,
		Source: model.ContactSourceWebhook,
		Status: model.ContactStatusNew,
	})
	if err != nil {
		return fmt.Errorf("find or create contact: %w", err)
	}

	thread, err := s.threadRepo.FindOrCreate(ctx, contact.ID, string(model.MessageChannelEmail))
	if err != nil {
		return fmt.Errorf("find or create thread: %w", err)
	}

	body := ev.Data.Text
	if body == "" {
		body = ev.Data.HTML
	}

	msg := &model.Message{
		ThreadID:  thread.ID,
		Channel:   model.MessageChannelEmail,
		Direction: model.MessageDirectionInbound,
		Status:    model.MessageStatusReceived,
		Body:      body,
		Metadata: map[string]string{
			model.MetaProviderMessageID: ev.Data.EmailID,
			model.MetaSubject:           ev.Data.Subject,
			model.MetaFrom:              ev.Data.From,
			model.MetaTo:                ev.Data.To,
		},
	}
	if _, err := s.messageRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("create inbound email: %w", err)
	}

	logger.Info("inbound email recorded", "contact_id", contact.ID, "email_id", ev.Data.EmailID)
	return nil
}

func parseEventTime(ts string) time.Time {
	if ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
