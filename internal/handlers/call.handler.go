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

type CallService interface {
	Initiate(ctx context.Context, userID, contactID int64) (*model.Call, error)
	InitiateAll(ctx context.Context, userID int64) (*services.BatchResult, error)
	Get(ctx context.Context, userID, callID int64) (*model.Call, error)
	Detail(ctx context.Context, userID, callID int64) (*model.Call, error)
	List(ctx context.Context, userID int64, f model.CallFilter) ([]*model.Call, int64, error)
}

type CallHandler struct {
	svc CallService
}

func NewCallHandler(svc CallService) *CallHandler {
	return &CallHandler{svc: svc}
}

func RegisterCallRoutes(e *router.Group, h *CallHandler, protected xhttp.MiddlewareFunc) {
	e.POST("/calls", protected(h.InitiateCall))
	e.POST("/calls/batch", protected(h.InitiateBatch))
	e.GET("/calls", protected(h.ListCalls))
	e.GET("/calls/{id}", protected(h.GetCall))
	e.GET("/calls/{id}/detail", protected(h.GetCallDetail))
}

type initiateCallRequest struct {
	ContactID int64 `json:"contact_id"`
}

type callListResponse struct {
	Items []*model.Call `json:"items"`
	Total int64         `json:"total"`
}

func (h *CallHandler) InitiateCall(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	var req initiateCallRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.ContactID == 0 {
		writeError(ctx, xhttp.StatusBadRequest, "contact_id is required")
		return
	}

	call, err := h.svc.Initiate(ctx, claims.UserID, req.ContactID)
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
			return
		}
		writeError(ctx, xhttp.StatusBadGateway, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, call)
}

// InitiateBatch dials every contact of the caller. Partial failures
// come back per contact; 207 signals a mixed outcome.
func (h *CallHandler) InitiateBatch(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	result, err := h.svc.InitiateAll(ctx, claims.UserID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}

	status := xhttp.StatusOK
	if result.Failed > 0 && result.Succeeded > 0 {
		status = xhttp.StatusMultiStatus
	} else if result.Failed > 0 && result.Succeeded == 0 && result.Total > 0 {
		status = xhttp.StatusBadGateway
	}
	writeJSON(ctx, status, result)
}

func (h *CallHandler) GetCall(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid call id")
		return
	}

	call, err := h.svc.Get(ctx, claims.UserID, id)
	if err != nil {
		if errors.Is(err, services.ErrCallNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "call not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, call)
}

// GetCallDetail is GetCall plus a provider-log backfill for rows that
// never received their post-call webhook.
func (h *CallHandler) GetCallDetail(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid call id")
		return
	}

	call, err := h.svc.Detail(ctx, claims.UserID, id)
	if err != nil {
		if errors.Is(err, services.ErrCallNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "call not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, call)
}

func (h *CallHandler) ListCalls(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	var f model.CallFilter
	if v := query(ctx, "contact_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.ContactID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.CallStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "direction"); v != "" {
		direction := model.CallDirection(v)
		f.Direction = &direction
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
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

	items, total, err := h.svc.List(ctx, claims.UserID, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, callListResponse{Items: items, Total: total})
}
