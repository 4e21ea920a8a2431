package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type MessageService interface {
	Send(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error)
	List(ctx context.Context, userID, contactID int64, f model.MessageFilter) ([]*model.Message, int64, error)
}

type HistoryService interface {
	GetHistory(ctx context.Context, userID, contactID int64, channel model.MessageChannel) ([]services.HistoryEntry, error)
}

type MessageHandler struct {
	svc     MessageService
	history HistoryService
}

func NewMessageHandler(svc MessageService, history HistoryService) *MessageHandler {
	return &MessageHandler{svc: svc, history: history}
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler, protected xhttp.MiddlewareFunc) {
	e.POST("/messages", protected(h.SendMessage))
	e.GET("/contacts/{id}/messages", protected(h.ListMessages))
	e.GET("/contacts/{id}/history", protected(h.GetHistory))
}

type sendMessageRequest struct {
	ContactID int64  `json:"contact_id"`
	Channel   string `json:"channel"`
	Body      string `json:"body"`
	Subject   string `json:"subject"`
}

type messageListResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

type historyResponse struct {
	Items []services.HistoryEntry `json:"items"`
}

func (h *MessageHandler) SendMessage(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	msg, err := h.svc.Send(ctx, model.MessageCreateRequest{
		UserID:    claims.UserID,
		ContactID: req.ContactID,
		Channel:   model.MessageChannel(req.Channel),
		Body:      req.Body,
		Subject:   req.Subject,
	})
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, msg)
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	contactID, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid contact id")
		return
	}

	var f model.MessageFilter
	if v := query(ctx, "channel"); v != "" {
		channel := model.MessageChannel(v)
		f.Channel = &channel
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.MessageStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, claims.UserID, contactID, f)
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, messageListResponse{Items: items, Total: total})
}

// GetHistory returns the merged local/provider conversation for one
// contact and channel.
func (h *MessageHandler) GetHistory(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	contactID, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid contact id")
		return
	}

	channel := model.MessageChannel(query(ctx, "channel"))
	switch channel {
	case model.MessageChannelSMS, model.MessageChannelWhatsApp, model.MessageChannelEmail:
	default:
		writeError(ctx, xhttp.StatusBadRequest, "channel must be one of sms, whatsapp, email")
		return
	}

	entries, err := h.history.GetHistory(ctx, claims.UserID, contactID, channel)
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, historyResponse{Items: entries})
}
