package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/middleware"
	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/response"
	"github.com/prodhub/production-api/internal/service"
)

// requestTimeout bounds the store calls made for a single request.
const requestTimeout = 5 * time.Second

// Messages returned by flows that carry no data of their own.
const (
	msgSignedOut        = "Signed out"
	msgAlreadySignedOut = "Already signed out"
	msgResetRequested   = "If an account exists, a reset link has been sent."
	msgPasswordReset    = "Password reset successfully"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Log  *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Auth: auth, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	UserType string `json:"userType"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type updateMeReq struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
}

type userView struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	FullName string         `json:"fullName"`
	Role     model.Role     `json:"role"`
	UserType model.UserType `json:"userType"`
	Active   bool           `json:"active"`
	Phone    *string        `json:"phone"`
}

type authResp struct {
	User   userView          `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

type userResp struct {
	User userView `json:"user"`
}

type messageResp struct {
	Message string `json:"message"`
}

type forgotResp struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
}

// presentUser strips credential fields before a user leaves the API.
func presentUser(u model.User) userView {
	return userView{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
		UserType: u.UserType,
		Active:   u.Active,
		Phone:    u.Phone,
	}
}

func presentAuth(r service.AuthResult) authResp {
	return authResp{User: presentUser(r.User), Tokens: r.Tokens}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Bootstrap creates the first administrator while no users exist.
func (h *AuthHandler) Bootstrap(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	fe := fieldErrors{}
	fe.email("email", req.Email)
	fe.minLen("password", req.Password, 10)
	fe.minLen("fullName", strings.TrimSpace(req.FullName), 2)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Bootstrap(ctx, service.BootstrapInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusCreated, presentAuth(res))
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	fe := fieldErrors{}
	fe.email("email", req.Email)
	fe.minLen("password", req.Password, 1)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, presentAuth(res))
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	raw := strings.TrimSpace(req.RefreshToken)
	fe := fieldErrors{}
	fe.required("refreshToken", raw)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, presentAuth(res))
}

// Logout revokes one session.  Tokens that are already unusable still
// produce a 200 so clients can always clear local state.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	raw := strings.TrimSpace(req.RefreshToken)
	fe := fieldErrors{}
	fe.required("refreshToken", raw)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	revoked, err := h.Auth.Logout(ctx, raw)
	if err != nil {
		return fail(c, h.Log, err)
	}
	msg := msgSignedOut
	if !revoked {
		msg = msgAlreadySignedOut
	}
	return response.OK(c, http.StatusOK, messageResp{Message: msg})
}

// ForgotPassword always answers with the same message so the response does
// not reveal whether the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	fe := fieldErrors{}
	fe.email("email", req.Email)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	raw, err := h.Auth.ForgotPassword(ctx, req.Email)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, forgotResp{Message: msgResetRequested, ResetToken: raw})
}

// ResetPassword consumes a reset token and ends all of the user's sessions.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	fe := fieldErrors{}
	fe.minLen("token", strings.TrimSpace(req.Token), 20)
	fe.minLen("newPassword", req.NewPassword, 10)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, messageResp{Message: msgPasswordReset})
}

// Register lets an administrator create an account.  No tokens are issued.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = normEmail(req.Email)
	role := model.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	userType := model.UserType(strings.ToUpper(strings.TrimSpace(req.UserType)))
	fe := fieldErrors{}
	fe.email("email", req.Email)
	fe.minLen("password", req.Password, 10)
	fe.minLen("fullName", strings.TrimSpace(req.FullName), 2)
	if role != "" {
		fe.oneOf("role", role.Valid())
	}
	if userType != "" {
		fe.oneOf("userType", userType.Valid())
	}
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     role,
		UserType: userType,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusCreated, userResp{User: presentUser(u)})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	who, ok := middleware.CurrentUser(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.Me(ctx, who.UserID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, userResp{User: presentUser(u)})
}

// UpdateMe changes the caller's own name or phone.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	who, ok := middleware.CurrentUser(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	var req updateMeReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		req.FullName = &name
	}
	fe := fieldErrors{}
	fe.optMinLen("fullName", req.FullName, 2)
	fe.optMinLen("phone", req.Phone, 5)
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.UpdateMe(ctx, who.UserID, req.FullName, req.Phone)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, userResp{User: presentUser(u)})
}
