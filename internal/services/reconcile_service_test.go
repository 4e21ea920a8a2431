package services

import (
	"context"
	"testing"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) FindByPhoneForUser(ctx context.Context, phone string, userID int64) (*model.Contact, error) {
	args := m.Called(ctx, phone, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) FindOrCreateByPhone(ctx context.Context, phone string, defaults *model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, phone, defaults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) FindOrCreateByEmail(ctx context.Context, email string, defaults *model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, email, defaults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) TouchLastContact(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockCallRepository struct {
	mock.Mock
}

func (m *MockCallRepository) Create(ctx context.Context, c *model.Call) (*model.Call, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

func (m *MockCallRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Call, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

func (m *MockCallRepository) UpdateBySessionID(ctx context.Context, sessionID string, update model.CallUpdate) (*model.Call, error) {
	args := m.Called(ctx, sessionID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

type MockThreadRepository struct {
	mock.Mock
}

func (m *MockThreadRepository) FindOrCreate(ctx context.Context, contactID int64, label string) (*model.Thread, error) {
	args := m.Called(ctx, contactID, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thread), args.Error(1)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageStore) UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status model.MessageStatus) (int64, error) {
	args := m.Called(ctx, providerMessageID, status)
	return args.Get(0).(int64), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func newReconcileService() (*ReconcileService, *MockContactRepository, *MockCallRepository, *MockThreadRepository, *MockMessageStore, *MockUserRepository) {
	contactRepo := new(MockContactRepository)
	callRepo := new(MockCallRepository)
	threadRepo := new(MockThreadRepository)
	messageRepo := new(MockMessageStore)
	userRepo := new(MockUserRepository)
	svc := NewReconcileService(contactRepo, callRepo, threadRepo, messageRepo, userRepo)
	return svc, contactRepo, callRepo, threadRepo, messageRepo, userRepo
}

func TestReconcile_UnknownSessionReturnsNotFound(t *testing.T) {
	svc, _, callRepo, _, _, _ := newReconcileService()
	ctx := context.Background()

	callRepo.On("UpdateBySessionID", ctx, "missing", mock.Anything).
		Return(nil, repository.ErrCallNotFound)

	err := svc.HandleVoiceEvent(ctx, &model.VoiceWebhookEvent{
		SessionID: "missing",
		EventType: "call_ended",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	callRepo.AssertExpectations(t)
}

func TestReconcile_CallInitiatedCreatesContactAndInboundCall(t *testing.T) {
	svc, contactRepo, callRepo, _, _, _ := newReconcileService()
	ctx := context.Background()

	contact := &model.Contact{ID: 7, Phone: "+15551234567", Name: "Unknown caller +15551234567"}
	contactRepo.On("FindOrCreateByPhone", ctx, "+15551234567", mock.MatchedBy(func(d *model.Contact) bool {
		return d.Source == model.ContactSourceWebhook && d.Name == "Unknown caller +15551234567"
	})).Return(contact, nil)

	callRepo.On("GetBySessionID", ctx, "s1").Return(nil, repository.ErrCallNotFound)
	callRepo.On("Create", ctx, mock.MatchedBy(func(c *model.Call) bool {
		return c.SessionID == "s1" &&
			c.Direction == model.CallDirectionInbound &&
			c.Status == model.CallStatusInProgress &&
			c.ContactID != nil && *c.ContactID == 7
	})).Return(&model.Call{ID: 1, SessionID: "s1"}, nil)

	err := svc.HandleVoiceEvent(ctx, &model.VoiceWebhookEvent{
		SessionID:    "s1",
		EventType:    model.VoiceEventCallInitiated,
		CallerNumber: "15551234567",
		Timestamp:    "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	contactRepo.AssertExpectations(t)
	callRepo.AssertExpectations(t)
}

func TestReconcile_UpdatePrefersPresentFields(t *testing.T) {
	svc, _, callRepo, _, _, _ := newReconcileService()
	ctx := context.Background()

	duration := 42
	callRepo.On("UpdateBySessionID", ctx, "s1", mock.MatchedBy(func(u model.CallUpdate) bool {
		return u.Duration != nil && *u.Duration == 42 && u.Cost == nil && u.Status == ""
	})).Return(&model.Call{ID: 1, SessionID: "s1", Status: model.CallStatusInProgress}, nil)

	err := svc.HandleVoiceEvent(ctx, &model.VoiceWebhookEvent{
		SessionID: "s1",
		EventType: "call_ended",
		Duration:  &duration,
	})
	require.NoError(t, err)
	callRepo.AssertExpectations(t)
}

func TestReconcile_CompletedCallTouchesLastContact(t *testing.T) {
	svc, contactRepo, callRepo, _, _, _ := newReconcileService()
	ctx := context.Background()

	contactID := int64(7)
	eventTime, _ := time.Parse(time.RFC3339, "2024-01-01T00:05:00Z")
	duration := 120

	callRepo.On("UpdateBySessionID", ctx, "s1", mock.Anything).
		Return(&model.Call{
			ID:        1,
			SessionID: "s1",
			Status:    model.CallStatusCompleted,
			ContactID: &contactID,
			Duration:  &duration,
		}, nil)
	contactRepo.On("TouchLastContact", ctx, contactID, eventTime).Return(nil)

	err := svc.HandleVoiceEvent(ctx, &model.VoiceWebhookEvent{
		SessionID:     "s1",
		SessionStatus: "completed",
		Duration:      &duration,
		Timestamp:     "2024-01-01T00:05:00Z",
	})
	require.NoError(t, err)
	contactRepo.AssertExpectations(t)
	callRepo.AssertExpectations(t)
}

func TestReconcile_InboundSMSAppendsMessage(t *testing.T) {
	svc, contactRepo, _, threadRepo, messageRepo, _ := newReconcileService()
	ctx := context.Background()

	contact := &model.Contact{ID: 3, Phone: "+15550001111"}
	contactRepo.On("FindOrCreateByPhone", ctx, "+15550001111", mock.Anything).Return(contact, nil)
	threadRepo.On("FindOrCreate", ctx, int64(3), "sms").Return(&model.Thread{ID: 9, ContactID: 3}, nil)
	messageRepo.On("Create", ctx, mock.MatchedBy(func(msg *model.Message) bool {
		return msg.ThreadID == 9 &&
			msg.Direction == model.MessageDirectionInbound &&
			msg.Status == model.MessageStatusReceived &&
			msg.Metadata[model.MetaProviderMessageID] == "SM1"
	})).Return(&model.Message{ID: 100}, nil)

	err := svc.HandleInboundMessage(ctx, &model.InboundMessage{
		MessageSid: "SM1",
		From:       "+15550001111",
		To:         "+15559998888",
		Body:       "hi there",
		Channel:    model.MessageChannelSMS,
	})
	require.NoError(t, err)
	messageRepo.AssertExpectations(t)
}

func TestReconcile_WhatsAppScopesContactByReceivingUser(t *testing.T) {
	svc, contactRepo, _, threadRepo, messageRepo, userRepo := newReconcileService()
	ctx := context.Background()

	user := &model.User{ID: 5, Phone: "+15559998888"}
	userRepo.On("GetByPhone", ctx, "+15559998888").Return(user, nil)

	contact := &model.Contact{ID: 4, Phone: "+15550001111"}
	contactRepo.On("FindByPhoneForUser", ctx, "+15550001111", int64(5)).Return(contact, nil)
	threadRepo.On("FindOrCreate", ctx, int64(4), "whatsapp").Return(&model.Thread{ID: 10, ContactID: 4}, nil)
	messageRepo.On("Create", ctx, mock.Anything).Return(&model.Message{ID: 101}, nil)

	err := svc.HandleInboundMessage(ctx, &model.InboundMessage{
		MessageSid: "WA1",
		From:       "+15550001111",
		To:         "+15559998888",
		Body:       "hello",
		Channel:    model.MessageChannelWhatsApp,
	})
	require.NoError(t, err)
	userRepo.AssertExpectations(t)
	contactRepo.AssertExpectations(t)
}

// A redelivered inbound webhook is stored again: ingestion does not
// dedup on provider message id, only the history merger does.
func TestReconcile_InboundSMSReplayStoresTwice(t *testing.T) {
	svc, contactRepo, _, threadRepo, messageRepo, _ := newReconcileService()
	ctx := context.Background()

	contact := &model.Contact{ID: 3, Phone: "+15550001111"}
	contactRepo.On("FindOrCreateByPhone", ctx, "+15550001111", mock.Anything).Return(contact, nil).Twice()
	threadRepo.On("FindOrCreate", ctx, int64(3), "sms").Return(&model.Thread{ID: 9, ContactID: 3}, nil).Twice()
	messageRepo.On("Create", ctx, mock.Anything).Return(&model.Message{ID: 100}, nil).Twice()

	in := &model.InboundMessage{
		MessageSid: "SM1",
		From:       "+15550001111",
		To:         "+15559998888",
		Body:       "hi there",
		Channel:    model.MessageChannelSMS,
	}
	require.NoError(t, svc.HandleInboundMessage(ctx, in))
	require.NoError(t, svc.HandleInboundMessage(ctx, in))
	messageRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestReconcile_DeliveryReceiptUpdatesByProviderID(t *testing.T) {
	svc, _, _, _, messageRepo, _ := newReconcileService()
	ctx := context.Background()

	messageRepo.On("UpdateStatusByProviderID", ctx, "SM9", model.MessageStatusDelivered).
		Return(int64(1), nil)

	err := svc.HandleInboundMessage(ctx, &model.InboundMessage{
		MessageSid: "SM9",
		From:       "+15550001111",
		Status:     "delivered",
		Channel:    model.MessageChannelSMS,
	})
	require.NoError(t, err)
	messageRepo.AssertExpectations(t)
}

func TestReconcile_EmailEvents(t *testing.T) {
	t.Run("delivered updates message status", func(t *testing.T) {
		svc, _, _, _, messageRepo, _ := newReconcileService()
		ctx := context.Background()

		messageRepo.On("UpdateStatusByProviderID", ctx, "em-1", model.MessageStatusDelivered).
			Return(int64(1), nil)

		err := svc.HandleEmailEvent(ctx, &model.EmailWebhookEvent{
			Type: model.EmailEventDelivered,
			Data: model.EmailWebhookData{EmailID: "em-1"},
		})
		require.NoError(t, err)
		messageRepo.AssertExpectations(t)
	})

	t.Run("received creates contact thread and message", func(t *testing.T) {
		svc, contactRepo, _, threadRepo, messageRepo, _ := newReconcileService()
		ctx := context.Background()

		contact := &model.Contact{ID: 11, Email: "lead@example.com"}
		contactRepo.On("FindOrCreateByEmail", ctx, "lead@example.com", mock.Anything).Return(contact, nil)
		threadRepo.On("FindOrCreate", ctx, int64(11), "email").Return(&model.Thread{ID: 20, ContactID: 11}, nil)
		messageRepo.On("Create", ctx, mock.MatchedBy(func(msg *model.Message) bool {
			return msg.Channel == model.MessageChannelEmail &&
				msg.Metadata[model.MetaSubject] == "Question" &&
				msg.Body == "plain text body"
		})).Return(&model.Message{ID: 102}, nil)

		err := svc.HandleEmailEvent(ctx, &model.EmailWebhookEvent{
			Type: model.EmailEventReceived,
			Data: model.EmailWebhookData{
				From:    "lead@example.com",
				To:      "sales@acme.io",
				Subject: "Question",
				EmailID: "em-2",
				Text:    "plain text body",
			},
		})
		require.NoError(t, err)
		messageRepo.AssertExpectations(t)
	})
}
