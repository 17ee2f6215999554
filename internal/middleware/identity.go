package middleware

import "github.com/labstack/echo/v4"

// userID returns the authenticated user id for rate-limit keys, or "anon"
// on public routes where Authenticate has not run.
func userID(c echo.Context) string {
	if who, ok := CurrentUser(c); ok {
		return who.UserID
	}
	return "anon"
}
