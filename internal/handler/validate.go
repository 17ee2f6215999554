package handler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/response"
)

// validate checks single values against validator tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldErrors collects per-field validation messages.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

// email accepts a bare address with a dotted domain, so "a@b" and
// "Name <a@x.com>" are both rejected.
func (f fieldErrors) email(field, v string) {
	if err := validate.Var(v, "required,email,max=254"); err != nil {
		f.add(field, "Invalid email")
	}
}

func (f fieldErrors) uuid(field, v string) {
	if _, err := uuid.Parse(v); err != nil {
		f.add(field, "Invalid uuid")
	}
}

func (f fieldErrors) required(field, v string) {
	if strings.TrimSpace(v) == "" {
		f.add(field, "Required")
	}
}

func (f fieldErrors) minLen(field, v string, n int) {
	if utf8.RuneCountInString(v) < n {
		f.add(field, fmt.Sprintf("Must be at least %d characters", n))
	}
}

// optMinLen checks a field only when it was sent.
func (f fieldErrors) optMinLen(field string, v *string, n int) {
	if v != nil {
		f.minLen(field, *v, n)
	}
}

func (f fieldErrors) oneOf(field string, ok bool) {
	if !ok {
		f.add(field, "Invalid value")
	}
}

func (f fieldErrors) respond(c echo.Context) error {
	return response.Invalid(c, "Validation failed", echo.Map{"fieldErrors": f})
}

func badBody(c echo.Context) error {
	return response.Invalid(c, "Invalid request body", nil)
}
