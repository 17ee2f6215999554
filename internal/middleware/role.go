package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/response"
)

// RequireRole enforces that the authenticated user's role is in allowed.
// It must run after Authenticate; a request without an identity is
// treated as lacking every role.
func RequireRole(allowed model.RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, ok := CurrentUser(c)
			if !ok || !allowed.Has(who.Role) {
				return response.Fail(c, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
