// Package response writes the JSON envelope shared by every endpoint:
// {success, data?, error?{code, message, details?}}.
package response

import "github.com/labstack/echo/v4"

// Error codes returned in the envelope.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidRefresh     = "INVALID_REFRESH"
	CodeInvalidReset       = "INVALID_RESET"
	CodeBootstrapLocked    = "BOOTSTRAP_LOCKED"
	CodeUserExists         = "USER_EXISTS"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeProjectCode        = "PROJECT_CODE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data,omitempty"`
	Pagination any        `json:"pagination,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// OK writes a success envelope.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Page writes a success envelope with pagination metadata.
func Page(c echo.Context, data, pagination any) error {
	return c.JSON(200, Envelope{Success: true, Data: data, Pagination: pagination})
}

// Fail writes an error envelope.
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// Invalid writes a 400 VALIDATION_ERROR envelope with field details.
func Invalid(c echo.Context, message string, details any) error {
	return c.JSON(400, Envelope{Error: &ErrorBody{Code: CodeValidation, Message: message, Details: details}})
}
