package handlers

import (
	"context"
	"errors"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type CrmService interface {
	Connect(ctx context.Context, userID int64, p model.CrmConnectRequest) (*model.CrmIntegration, error)
	Disconnect(ctx context.Context, userID int64, platform model.CrmPlatform) error
	List(ctx context.Context, userID int64) ([]*model.CrmIntegration, error)
	Sync(ctx context.Context, userID int64, platform model.CrmPlatform) (*services.SyncResult, error)
	Push(ctx context.Context, userID, contactID int64, platform model.CrmPlatform) error
}

type CrmHandler struct {
	svc CrmService
}

func NewCrmHandler(svc CrmService) *CrmHandler {
	return &CrmHandler{svc: svc}
}

func RegisterCrmRoutes(e *router.Group, h *CrmHandler, protected xhttp.MiddlewareFunc) {
	e.GET("/crm/integrations", protected(h.ListIntegrations))
	e.POST("/crm/integrations", protected(h.Connect))
	e.DELETE("/crm/integrations/{platform}", protected(h.Disconnect))
	e.POST("/crm/integrations/{platform}/sync", protected(h.Sync))
	e.POST("/crm/integrations/{platform}/contacts/{id}", protected(h.PushContact))
}

type connectCrmRequest struct {
	Platform    string `json:"platform"`
	AccessToken string `json:"access_token"`
}

func (h *CrmHandler) Connect(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	var req connectCrmRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	integration, err := h.svc.Connect(ctx, claims.UserID, model.CrmConnectRequest{
		UserID:      claims.UserID,
		Platform:    model.CrmPlatform(req.Platform),
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, integration)
}

func (h *CrmHandler) Disconnect(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	platform := model.CrmPlatform(routeString(ctx, "platform"))
	if err := h.svc.Disconnect(ctx, claims.UserID, platform); err != nil {
		if errors.Is(err, services.ErrIntegrationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "integration not found")
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "disconnected"})
}

func (h *CrmHandler) ListIntegrations(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	items, err := h.svc.List(ctx, claims.UserID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": items})
}

// Sync imports the platform's contacts into the caller's contact list.
func (h *CrmHandler) Sync(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	platform := model.CrmPlatform(routeString(ctx, "platform"))
	result, err := h.svc.Sync(ctx, claims.UserID, platform)
	if err != nil {
		if errors.Is(err, services.ErrIntegrationNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "integration not found")
			return
		}
		writeError(ctx, xhttp.StatusBadGateway, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, result)
}

func (h *CrmHandler) PushContact(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	platform := model.CrmPlatform(routeString(ctx, "platform"))
	contactID, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid contact id")
		return
	}

	if err := h.svc.Push(ctx, claims.UserID, contactID, platform); err != nil {
		switch {
		case errors.Is(err, services.ErrIntegrationNotFound):
			writeError(ctx, xhttp.StatusNotFound, "integration not found")
		case errors.Is(err, services.ErrContactNotFound):
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
		default:
			writeError(ctx, xhttp.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "pushed"})
}
