package middleware // middleware holds the authentication, authorization and rate limit middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/response"
	"github.com/prodhub/production-api/internal/utils"
)

// Context keys set by Authenticate.
const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
)

// Identity is the caller attached to the request by Authenticate.
type Identity struct {
	UserID string
	Email  string
	Role   model.Role
}

// AccessVerifier checks access tokens.  *utils.TokenService satisfies it.
type AccessVerifier interface {
	VerifyAccess(raw string) (*utils.AccessClaims, error)
}

// Authenticate requires an `Authorization: Bearer <token>` header carrying
// a valid access token.  On success the caller's id, email and role are
// stored in the echo context.
func Authenticate(tokens AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := tokens.VerifyAccess(raw)
			if err != nil {
				return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid or expired access token")
			}

			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxEmail, claims.Email)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// CurrentUser returns the identity stored by Authenticate.
func CurrentUser(c echo.Context) (Identity, bool) {
	id, _ := c.Get(ctxUserID).(string)
	role, _ := c.Get(ctxRole).(model.Role)
	if id == "" || role == "" {
		return Identity{}, false
	}
	email, _ := c.Get(ctxEmail).(string)
	return Identity{UserID: id, Email: email, Role: role}, true
}
