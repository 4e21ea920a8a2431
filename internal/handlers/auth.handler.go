package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/calvora/sales-gateway/internal/auth"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/services"
	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type AuthService interface {
	Signup(ctx context.Context, p model.SignupRequest) (*model.User, string, error)
	Login(ctx context.Context, p model.LoginRequest) (*model.User, string, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

type AuthHandler struct {
	svc          AuthService
	cookieTTL    time.Duration
	cookieSecure bool
}

func NewAuthHandler(svc AuthService, cookieTTL time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		cookieTTL:    cookieTTL,
		cookieSecure: cookieSecure,
	}
}

func RegisterAuthRoutes(e *router.Group, h *AuthHandler, protected xhttp.MiddlewareFunc) {
	e.POST("/auth/signup", h.Signup)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/logout", h.Logout)
	e.GET("/auth/me", protected(h.Me))
}

type sessionResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (h *AuthHandler) Signup(ctx *xhttp.RequestCtx) {
	var req model.SignupRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	user, token, err := h.svc.Signup(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			writeError(ctx, xhttp.StatusConflict, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	auth.SetSessionCookie(ctx, token, h.cookieTTL, h.cookieSecure)
	writeJSON(ctx, xhttp.StatusCreated, sessionResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(ctx *xhttp.RequestCtx) {
	var req model.LoginRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	user, token, err := h.svc.Login(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(ctx, xhttp.StatusUnauthorized, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	auth.SetSessionCookie(ctx, token, h.cookieTTL, h.cookieSecure)
	writeJSON(ctx, xhttp.StatusOK, sessionResponse{User: user, Token: token})
}

func (h *AuthHandler) Logout(ctx *xhttp.RequestCtx) {
	auth.ClearSessionCookie(ctx)
	writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) Me(ctx *xhttp.RequestCtx) {
	claims, ok := identity(ctx)
	if !ok {
		return
	}

	user, err := h.svc.Me(ctx, claims.UserID)
	if err != nil {
		writeError(ctx, xhttp.StatusNotFound, "user not found")
		return
	}
	writeJSON(ctx, xhttp.StatusOK, user)
}
