package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type ContactService interface {
	Create(ctx context.Context, p model.ContactCreateRequest) (*model.Contact, error)
	Get(ctx context.Context, userID, contactID int64) (*model.Contact, error)
	Update(ctx context.Context, userID int64, contact *model.Contact) (*model.Contact, error)
	List(ctx context.Context, userID int64, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type ContactHandler struct {
	svc ContactService
}

func NewContactHandler(svc ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

func RegisterContactRoutes(e *router.Group, h *ContactHandler, protected xhttp.MiddlewareFunc) {
	e.POST("/contacts", protected(h.CreateContact))
	e.GET("/contacts", protected(h.ListContacts))
	e.GET("/contacts/{id}", protected(h.GetContact))
	e.PUT("/contacts/{id}", protected(h.UpdateContact))
}

type contactRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Status   string `json:"status"`
}

type contactListResponse struct {
	Items []*model.Contact `json:"items"`
	Total int64            `json:"total"`
}

func (h *ContactHandler) CreateContact(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	var req contactRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	contact, err := h.svc.Create(ctx, model.ContactCreateRequest{
		UserID:   claims.UserID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Category: req.Category,
		Source:   req.Source,
	})
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, contact)
}

func (h *ContactHandler) GetContact(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid contact id")
		return
	}

	contact, err := h.svc.Get(ctx, claims.UserID, id)
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contact)
}

func (h *ContactHandler) UpdateContact(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	id, err := routeInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid contact id")
		return
	}

	var req contactRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	contact, err := h.svc.Update(ctx, claims.UserID, &model.Contact{
		ID:       id,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Category: req.Category,
		Status:   model.ContactStatus(req.Status),
	})
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "contact not found")
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contact)
}

func (h *ContactHandler) ListContacts(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	var f model.ContactFilter
	if v := query(ctx, "status"); v != "" {
		status := model.ContactStatus(v)
		f.Status = &status
	}
	if v := query(ctx, "category"); v != "" {
		f.Category = &v
	}
	if v := query(ctx, "phone"); v != "" {
		normalized := model.NormalizePhone(v)
		f.Phone = &normalized
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

	items, total, err := h.svc.List(ctx, claims.UserID, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, contactListResponse{Items: items, Total: total})
}
