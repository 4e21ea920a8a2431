package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the only supported JWT claims shape for this service. The
// phone claim scopes shared-number webhook traffic to the owning user.
type Claims struct {
	jwt.RegisteredClaims

	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}
