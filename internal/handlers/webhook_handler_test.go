package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) HandleVoiceEvent(ctx context.Context, ev *model.VoiceWebhookEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockReconcileService) HandleInboundMessage(ctx context.Context, in *model.InboundMessage) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockReconcileService) HandleEmailEvent(ctx context.Context, ev *model.EmailWebhookEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func setupFormContext(method, path, form string) *xhttp.RequestCtx {
	ctx := setupTestContext(method, path, []byte(form))
	ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
	return ctx
}

func TestWebhookHandler_Voice(t *testing.T) {
	t.Run("applies event", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleVoiceEvent", mock.Anything, mock.MatchedBy(func(ev *model.VoiceWebhookEvent) bool {
			return ev.SessionID == "sess-1" && ev.EventType == "call_ended"
		})).Return(nil)

		body, _ := json.Marshal(map[string]any{
			"session_id": "sess-1",
			"event_type": "call_ended",
			"duration":   120,
		})
		ctx := setupTestContext("POST", "/webhooks/voice", body)
		handler.VoiceWebhook(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("unknown session yields 404", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleVoiceEvent", mock.Anything, mock.Anything).Return(services.ErrSessionNotFound)

		body, _ := json.Marshal(map[string]any{
			"session_id": "never-seen",
			"event_type": "call_ended",
		})
		ctx := setupTestContext("POST", "/webhooks/voice", body)
		handler.VoiceWebhook(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("missing session id", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		ctx := setupTestContext("POST", "/webhooks/voice", []byte(`{"event_type":"call_ended"}`))
		handler.VoiceWebhook(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "HandleVoiceEvent", mock.Anything, mock.Anything)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		ctx := setupTestContext("POST", "/webhooks/voice", []byte("{not json"))
		handler.VoiceWebhook(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestWebhookHandler_SMS(t *testing.T) {
	t.Run("parses form fields", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleInboundMessage", mock.Anything, mock.MatchedBy(func(in *model.InboundMessage) bool {
			return in.MessageSid == "SM1" &&
				in.From == "+15551234567" &&
				in.Body == "hello" &&
				in.Channel == model.MessageChannelSMS
		})).Return(nil)

		ctx := setupFormContext("POST", "/webhooks/sms",
			"MessageSid=SM1&From=%2B15551234567&To=%2B15550000000&Body=hello")
		handler.SMSWebhook(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "received", response["status"])
		svc.AssertExpectations(t)
	})

	t.Run("service error still acks", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleInboundMessage", mock.Anything, mock.Anything).Return(errors.New("db down"))

		ctx := setupFormContext("POST", "/webhooks/sms", "MessageSid=SM2&From=%2B15551234567&Body=hi")
		handler.SMSWebhook(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("whatsapp channel is tagged", func(t *testing.T) {
		svc := new(MockReconcileService)
		handler := NewWebhookHandler(svc)

		svc.On("HandleInboundMessage", mock.Anything, mock.MatchedBy(func(in *model.InboundMessage) bool {
			return in.Channel == model.MessageChannelWhatsApp
		})).Return(nil)

		ctx := setupFormContext("POST", "/webhooks/whatsapp", "MessageSid=SM3&From=%2B15551234567&Body=hola")
		handler.WhatsAppWebhook(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})
}

func TestWebhookHandler_Email(t *testing.T) {
	svc := new(MockReconcileService)
	handler := NewWebhookHandler(svc)

	svc.On("HandleEmailEvent", mock.Anything, mock.MatchedBy(func(ev *model.EmailWebhookEvent) bool {
		return ev.Type == model.EmailEventDelivered && ev.Data.EmailID == "em-1"
	})).Return(nil)

	body, _ := json.Marshal(model.EmailWebhookEvent{
		Type: model.EmailEventDelivered,
		Data: model.EmailWebhookData{EmailID: "em-1"},
	})
	ctx := setupTestContext("POST", "/webhooks/email", body)
	handler.EmailWebhook(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}
