package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/response"
	"github.com/prodhub/production-api/internal/service"
)

// fail maps a service error onto the JSON envelope.  Unknown errors are
// logged and reported as INTERNAL_ERROR without detail.
func fail(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrBootstrapLocked):
		return response.Fail(c, http.StatusConflict, response.CodeBootstrapLocked, "Bootstrap already completed")
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.Fail(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid email or password")
	case errors.Is(err, service.ErrInvalidRefresh):
		return response.Fail(c, http.StatusUnauthorized, response.CodeInvalidRefresh, "Refresh token expired or revoked")
	case errors.Is(err, service.ErrInvalidReset):
		return response.Fail(c, http.StatusBadRequest, response.CodeInvalidReset, "Reset token is invalid or expired")
	case errors.Is(err, service.ErrUserExists):
		return response.Fail(c, http.StatusConflict, response.CodeUserExists, "User with this email already exists")
	case errors.Is(err, service.ErrUserNotFound):
		return response.Fail(c, http.StatusNotFound, response.CodeNotFound, "User not found")
	case errors.Is(err, service.ErrForbidden):
		return response.Fail(c, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions")
	case errors.Is(err, service.ErrProjectNotFound):
		return response.Fail(c, http.StatusNotFound, response.CodeNotFound, "Project not found")
	case errors.Is(err, service.ErrProjectCode):
		return response.Fail(c, http.StatusInternalServerError, response.CodeProjectCode, "Could not generate a unique project code")
	}
	log.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "error", err)
	return response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
}

// ErrorHandler replaces echo's default so that unmatched routes, bind
// failures and recovered panics still answer with the envelope.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			_ = fail(c, log, err)
			return
		}
		var werr error
		switch he.Code {
		case http.StatusNotFound:
			werr = response.Fail(c, he.Code, response.CodeNotFound, "Route not found")
		case http.StatusMethodNotAllowed:
			werr = response.Fail(c, he.Code, response.CodeNotFound, "Route not found")
		case http.StatusRequestEntityTooLarge:
			werr = response.Fail(c, he.Code, response.CodeValidation, "Request body too large")
		case http.StatusUnauthorized:
			werr = response.Fail(c, he.Code, response.CodeUnauthorized, "Unauthorized")
		case http.StatusForbidden:
			werr = response.Fail(c, he.Code, response.CodeForbidden, "Forbidden")
		case http.StatusTooManyRequests:
			werr = response.Fail(c, he.Code, response.CodeTooManyRequests, "Rate limit exceeded")
		default:
			if he.Code >= 500 {
				log.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
				werr = response.Fail(c, he.Code, response.CodeInternal, "Internal server error")
			} else {
				werr = response.Fail(c, he.Code, response.CodeValidation, http.StatusText(he.Code))
			}
		}
		if werr != nil {
			log.Error("write error response", "error", werr)
		}
	}
}
