package auth

import (
	"strings"
	"time"

	xhttp "github.com/calvora/sales-gateway/pkg/http"
	"github.com/valyala/fasthttp"
)

const CookieName = "auth_token"

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

const identityKey = "auth_identity"

// RequireToken verifies the session token and injects the caller's
// identity into the request context. The cookie is the primary
// carrier; a bearer header is accepted for API clients.
func RequireToken(m *Manager) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			raw := tokenFromRequest(ctx)
			if raw == "" {
				unauthorized(ctx, "missing auth token")
				return
			}

			claims, err := m.Verify(raw, time.Now())
			if err != nil {
				unauthorized(ctx, "invalid auth token")
				return
			}

			ctx.SetUserValue(identityKey, claims)
			next(ctx)
		}
	}
}

// WithIdentity injects claims directly, bypassing token verification.
// Used by tests and internal tooling.
func WithIdentity(ctx *xhttp.RequestCtx, claims Claims) {
	ctx.SetUserValue(identityKey, claims)
}

// Identity returns the verified claims injected by RequireToken.
func Identity(ctx *xhttp.RequestCtx) (Claims, bool) {
	v := ctx.UserValue(identityKey)
	claims, ok := v.(Claims)
	return claims, ok
}

// SetSessionCookie attaches the signed token as an http-only cookie.
func SetSessionCookie(ctx *xhttp.RequestCtx, token string, ttl time.Duration, secure bool) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(CookieName)
	c.SetValue(token)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSecure(secure)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	c.SetExpire(time.Now().Add(ttl))
	ctx.Response.Header.SetCookie(c)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(ctx *xhttp.RequestCtx) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(CookieName)
	c.SetValue("")
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetExpire(fasthttp.CookieExpireDelete)
	ctx.Response.Header.SetCookie(c)
}

func tokenFromRequest(ctx *xhttp.RequestCtx) string {
	if v := ctx.Request.Header.Cookie(CookieName); len(v) > 0 {
		return string(v)
	}
	raw := strings.TrimSpace(string(ctx.Request.Header.Peek(authorizationHeader)))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimPrefix(raw, bearerPrefix)
	}
	return ""
}

func unauthorized(ctx *xhttp.RequestCtx, msg string) {
	ctx.SetStatusCode(xhttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + msg + `"}`)
}
