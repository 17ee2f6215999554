package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodhub/production-api/internal/config"
	"github.com/prodhub/production-api/internal/handler"
	"github.com/prodhub/production-api/internal/metrics"
	"github.com/prodhub/production-api/internal/middleware"
	"github.com/prodhub/production-api/internal/queue"
	"github.com/prodhub/production-api/internal/repository/memory"
	"github.com/prodhub/production-api/internal/router"
	"github.com/prodhub/production-api/internal/service"
	"github.com/prodhub/production-api/internal/utils"
)

type nopMailer struct{}

func (nopMailer) SendPasswordReset(context.Context, queue.PasswordResetRequested) error { return nil }

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination"`
	Error      *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type authData struct {
	User struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		UserType string `json:"userType"`
		Active   bool   `json:"active"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}

// newServer wires the full HTTP stack over in-memory stores.
func newServer(t *testing.T, production bool) *echo.Echo {
	t.Helper()
	signer, err := utils.NewTokenService(utils.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     "15m",
		RefreshTTL:    "7d",
	})
	require.NoError(t, err)

	env := "development"
	if production {
		env = "production"
	}
	cfg := config.Config{Env: env, Version: "1.2.3", BodyLimit: "2M"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	users := memory.NewUsers()
	auth := service.NewAuthService(users, memory.NewTokens(), signer, nopMailer{}, service.AuthOptions{
		BcryptCost:       4,
		ExposeResetToken: cfg.ExposeResetToken(),
		Logger:           log,
		Events:           m,
	})

	e := router.New(cfg, log, m)
	router.RegisterRoutes(e, cfg.Version, m)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, log), signer,
		middleware.NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))
	router.RegisterUsers(e, handler.NewUsersHandler(service.NewUserService(users), log), signer)
	router.RegisterProjects(e, handler.NewProjectsHandler(service.NewProjectService(memory.NewProjects(), users), log), signer)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path string, body any, bearer string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

var adminBody = map[string]string{"email": "a@x.com", "password": "longenough1", "fullName": "Admin A"}

func bootstrap(t *testing.T, e *echo.Echo) authData {
	t.Helper()
	rec, env := call(t, e, http.MethodPost, "/api/auth/bootstrap", adminBody, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authData](t, env.Data)
}

func TestBootstrapThenLocked(t *testing.T) {
	e := newServer(t, false)

	first := bootstrap(t, e)
	assert.Equal(t, "ADMIN_PRODUCER", first.User.Role)
	assert.Equal(t, "INTERNAL_STAFF", first.User.UserType)
	assert.NotEmpty(t, first.Tokens.AccessToken)
	assert.NotEmpty(t, first.Tokens.RefreshToken)

	rec, env := call(t, e, http.MethodPost, "/api/auth/bootstrap", adminBody, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BOOTSTRAP_LOCKED", env.Error.Code)
}

func TestBootstrapValidation(t *testing.T) {
	e := newServer(t, false)

	rec, env := call(t, e, http.MethodPost, "/api/auth/bootstrap",
		map[string]string{"email": "not-an-email", "password": "short", "fullName": "A"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	details := decode[struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}](t, env.Error.Details)
	assert.Contains(t, details.FieldErrors, "email")
	assert.Contains(t, details.FieldErrors, "password")
	assert.Contains(t, details.FieldErrors, "fullName")

	// a domain without a dot is not deliverable
	rec, env = call(t, e, http.MethodPost, "/api/auth/bootstrap",
		map[string]string{"email": "a@b", "password": "longenough1", "fullName": "Admin A"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details = decode[struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}](t, env.Error.Details)
	assert.Equal(t, map[string][]string{"email": {"Invalid email"}}, details.FieldErrors)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newServer(t, false)
	bootstrap(t, e)

	rec, env := call(t, e, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	_, unknown := call(t, e, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "nobody@x.com", "password": "wrong-password"}, "")
	require.NotNil(t, unknown.Error)
	assert.Equal(t, env.Error, unknown.Error)
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)
	body := map[string]string{"refreshToken": boot.Tokens.RefreshToken}

	rec, env := call(t, e, http.MethodPost, "/api/auth/refresh", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[authData](t, env.Data)
	assert.NotEqual(t, boot.Tokens.RefreshToken, next.Tokens.RefreshToken)

	rec, env = call(t, e, http.MethodPost, "/api/auth/refresh", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_REFRESH", env.Error.Code)
}

func TestLogoutTwice(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)
	body := map[string]string{"refreshToken": boot.Tokens.RefreshToken}

	rec, env := call(t, e, http.MethodPost, "/api/auth/logout", body, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Signed out"}`, string(env.Data))

	rec, env = call(t, e, http.MethodPost, "/api/auth/logout", body, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"message":"Already signed out"}`, string(env.Data))

	rec, _ = call(t, e, http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": "junk"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForgotPasswordIdenticalInProduction(t *testing.T) {
	e := newServer(t, true)
	bootstrap(t, e)

	known, _ := call(t, e, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "a@x.com"}, "")
	unknown, _ := call(t, e, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@x.com"}, "")

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.Bytes(), unknown.Body.Bytes())
	assert.NotContains(t, known.Body.String(), "resetToken")
}

func TestResetPasswordEndsSessions(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)

	_, env := call(t, e, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "a@x.com"}, "")
	forgot := decode[struct {
		Message    string `json:"message"`
		ResetToken string `json:"resetToken"`
	}](t, env.Data)
	assert.Equal(t, "If an account exists, a reset link has been sent.", forgot.Message)
	require.NotEmpty(t, forgot.ResetToken)

	rec, env := call(t, e, http.MethodPost, "/api/auth/reset-password",
		map[string]string{"token": forgot.ResetToken, "newPassword": "brand-new-pass"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Password reset successfully"}`, string(env.Data))

	rec, env = call(t, e, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refreshToken": boot.Tokens.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_REFRESH", env.Error.Code)

	rec, env = call(t, e, http.MethodPost, "/api/auth/reset-password",
		map[string]string{"token": forgot.ResetToken, "newPassword": "another-pass-1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RESET", env.Error.Code)
}

func TestRegisterAccessControl(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)
	crew := map[string]string{
		"email": "crew@x.com", "password": "longenough1", "fullName": "Crew One",
		"role": "CREW", "userType": "CREW",
	}

	rec, env := call(t, e, http.MethodPost, "/api/auth/register", crew, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	rec, env = call(t, e, http.MethodPost, "/api/auth/register", crew, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	rec, env = call(t, e, http.MethodPost, "/api/auth/register", crew, boot.Tokens.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}](t, env.Data)
	assert.Equal(t, "crew@x.com", created.User.Email)
	assert.Equal(t, "CREW", created.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	rec, env = call(t, e, http.MethodPost, "/api/auth/register", crew, boot.Tokens.AccessToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_EXISTS", env.Error.Code)

	_, env = call(t, e, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "crew@x.com", "password": "longenough1"}, "")
	crewLogin := decode[authData](t, env.Data)

	crew["email"] = "other@x.com"
	rec, env = call(t, e, http.MethodPost, "/api/auth/register", crew, crewLogin.Tokens.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)

	rec, _ := call(t, e, http.MethodGet, "/api/auth/me", nil, boot.Tokens.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeRoundTrip(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)

	rec, env := call(t, e, http.MethodGet, "/api/auth/me", nil, boot.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"email":"a@x.com"`)

	rec, env = call(t, e, http.MethodPatch, "/api/auth/me", map[string]string{"phone": "123"}, boot.Tokens.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = call(t, e, http.MethodPatch, "/api/auth/me",
		map[string]string{"fullName": "New Name", "phone": "555-0100"}, boot.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"fullName":"New Name"`)
	assert.Contains(t, string(env.Data), `"phone":"555-0100"`)
}

func TestUsersAdmin(t *testing.T) {
	e := newServer(t, false)
	boot := bootstrap(t, e)
	token := boot.Tokens.AccessToken

	rec, env := call(t, e, http.MethodGet, "/api/users?limit=10", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":1,"page":1,"limit":10,"totalPages":1}`, string(env.Pagination))

	rec, env = call(t, e, http.MethodGet, "/api/users?limit=0", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = call(t, e, http.MethodPatch, "/api/users/"+boot.User.ID,
		map[string]string{"role": "ACCOUNTANT"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"role":"ACCOUNTANT"`)

	rec, env = call(t, e, http.MethodPatch, "/api/users/"+boot.User.ID,
		map[string]string{"role": "KING"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = call(t, e, http.MethodDelete, "/api/users/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = call(t, e, http.MethodDelete, "/api/users/"+boot.User.ID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"active":false`)
}

func TestServiceEndpoints(t *testing.T) {
	e := newServer(t, false)

	rec, env := call(t, e, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)

	_, env = call(t, e, http.MethodGet, "/api/version", nil, "")
	assert.JSONEq(t, `{"version":"1.2.3"}`, string(env.Data))

	rec, env = call(t, e, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "Route not found", env.Error.Message)
}
