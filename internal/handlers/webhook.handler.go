package handlers

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/calvora/sales-gateway/pkg/logger"
	"github.com/fasthttp/router"
)

type ReconcileService interface {
	HandleVoiceEvent(ctx context.Context, ev *model.VoiceWebhookEvent) error
	HandleInboundMessage(ctx context.Context, in *model.InboundMessage) error
	HandleEmailEvent(ctx context.Context, ev *model.EmailWebhookEvent) error
}

// WebhookHandler terminates provider callbacks. These routes are not
// behind auth: providers authenticate out of band and the handlers
// never expose stored data.
type WebhookHandler struct {
	svc ReconcileService
}

func NewWebhookHandler(svc ReconcileService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/voice", h.VoiceWebhook)
	e.POST("/webhooks/sms", h.SMSWebhook)
	e.POST("/webhooks/whatsapp", h.WhatsAppWebhook)
	e.POST("/webhooks/email", h.EmailWebhook)
}

// VoiceWebhook applies one call-lifecycle event. Unknown sessions get
// a 404 so the provider stops replaying events for calls this system
// never initiated; call_initiated is the exception and registers the
// call instead.
func (h *WebhookHandler) VoiceWebhook(ctx *xhttp.RequestCtx) {
	var ev model.VoiceWebhookEvent
	if err := readJSON(ctx, &ev); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if ev.SessionID == "" {
		writeError(ctx, xhttp.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.svc.HandleVoiceEvent(ctx, &ev); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "unknown session")
			return
		}
		logger.Error("voice webhook failed", "session_id", ev.SessionID, "event", ev.EventType, "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) SMSWebhook(ctx *xhttp.RequestCtx) {
	h.inboundMessage(ctx, model.MessageChannelSMS)
}

func (h *WebhookHandler) WhatsAppWebhook(ctx *xhttp.RequestCtx) {
	h.inboundMessage(ctx, model.MessageChannelWhatsApp)
}

// inboundMessage handles the form-encoded SMS/WhatsApp callback. The
// response is always success-shaped: messaging providers retry
// non-2xx responses aggressively and a stuck replay loop is worse
// than one dropped message.
func (h *WebhookHandler) inboundMessage(ctx *xhttp.RequestCtx, channel model.MessageChannel) {
	args := ctx.PostArgs()
	in := model.InboundMessage{
		MessageSid: string(args.Peek("MessageSid")),
		From:       string(args.Peek("From")),
		To:         string(args.Peek("To")),
		Body:       string(args.Peek("Body")),
		Status:     string(args.Peek("MessageStatus")),
		Channel:    channel,
	}
	if in.Status == "" {
		in.Status = string(args.Peek("SmsStatus"))
	}

	if err := h.svc.HandleInboundMessage(ctx, &in); err != nil {
		logger.Error("inbound message webhook failed",
			"channel", channel,
			"message_sid", in.MessageSid,
			"error", err)
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) EmailWebhook(ctx *xhttp.RequestCtx) {
	var ev model.EmailWebhookEvent
	if err := readJSON(ctx, &ev); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.HandleEmailEvent(ctx, &ev); err != nil {
		logger.Error("email webhook failed", "type", ev.Type, "email_id", ev.Data.EmailID, "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
}
