package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/queue"
	"github.com/prodhub/production-api/internal/repository"
	"github.com/prodhub/production-api/internal/utils"
)

// ResetTokenTTL bounds how long a password reset link stays valid.
const ResetTokenTTL = time.Hour

// UserStore is the credential store used by the auth flows.
type UserStore interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (model.User, error)
	Update(ctx context.Context, id string, upd repository.UserUpdate) (model.User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ResetPassword(ctx context.Context, id, tokenHash, passwordHash string) error
	List(ctx context.Context, f repository.UserFilter) ([]model.User, int, error)
}

// TokenStore records issued refresh tokens so they can be revoked.
type TokenStore interface {
	Create(ctx context.Context, t model.RefreshToken) error
	FindByID(ctx context.Context, id string) (model.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, ev queue.PasswordResetRequested) error
}

// EventRecorder counts auth outcomes.  *metrics.Metrics satisfies it.
type EventRecorder interface {
	AuthEvent(flow, outcome string)
	RefreshReuse()
}

// AuthOptions holds the non-collaborator settings of AuthService.
type AuthOptions struct {
	BcryptCost       int
	FrontendURL      string
	ExposeResetToken bool
	Logger           *slog.Logger
	Events           EventRecorder
}

// TokenPair is returned by every flow that starts a session.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// AuthResult is a user together with a fresh token pair.
type AuthResult struct {
	User   model.User
	Tokens TokenPair
}

// BootstrapInput and RegisterInput carry validated account data.
type BootstrapInput struct {
	Email    string
	Password string
	FullName string
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     model.Role
	UserType model.UserType
}

// AuthService orchestrates bootstrap, login, refresh rotation, logout,
// password reset and account registration.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	signer *utils.TokenService
	mailer ResetMailer
	opts   AuthOptions
	log    *slog.Logger
	now    func() time.Time
}

func NewAuthService(users UserStore, tokens TokenStore, signer *utils.TokenService, mailer ResetMailer, opts AuthOptions) *AuthService {
	if users == nil || tokens == nil || signer == nil || mailer == nil {
		panic("nil dependency passed to NewAuthService")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = noopRecorder{}
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		signer: signer,
		mailer: mailer,
		opts:   opts,
		log:    logger.With("component", "auth"),
		now:    time.Now,
	}
}

// Bootstrap creates the first administrative account.  It only succeeds
// while the user table is empty.
func (s *AuthService) Bootstrap(ctx context.Context, in BootstrapInput) (AuthResult, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return AuthResult{}, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		s.opts.Events.AuthEvent("bootstrap", "locked")
		return AuthResult{}, ErrBootstrapLocked
	}
	u, err := s.createUser(ctx, in.Email, in.Password, in.FullName, model.RoleAdminProducer, model.UserTypeInternalStaff)
	if err != nil {
		return AuthResult{}, err
	}
	res, err := s.startSession(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	s.log.InfoContext(ctx, "bootstrap admin created", "user_id", u.ID)
	s.opts.Events.AuthEvent("bootstrap", "success")
	return res, nil
}

// Login checks credentials and opens a new session.  Every failure maps to
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if err != nil || !u.Active {
		utils.BurnPasswordCheck(password)
		s.opts.Events.AuthEvent("login", "rejected")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.opts.Events.AuthEvent("login", "rejected")
		return AuthResult{}, ErrInvalidCredentials
	}
	res, err := s.startSession(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	s.opts.Events.AuthEvent("login", "success")
	return res, nil
}

// Refresh exchanges a refresh token for a new pair.  The presented token is
// revoked first, so each refresh token can be used at most once.
func (s *AuthService) Refresh(ctx context.Context, raw string) (AuthResult, error) {
	claims, err := s.signer.VerifyRefresh(raw)
	if err != nil {
		s.opts.Events.AuthEvent("refresh", "rejected")
		return AuthResult{}, ErrInvalidRefresh
	}
	rec, err := s.tokens.FindByID(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.opts.Events.AuthEvent("refresh", "rejected")
			return AuthResult{}, ErrInvalidRefresh
		}
		return AuthResult{}, fmt.Errorf("load refresh token: %w", err)
	}
	now := s.now().UTC()
	if rec.RevokedAt != nil {
		// A rotated token came back: either a replay or a client bug.
		s.log.WarnContext(ctx, "revoked refresh token presented", "user_id", rec.UserID, "token_id", rec.ID)
		s.opts.Events.RefreshReuse()
		s.opts.Events.AuthEvent("refresh", "rejected")
		return AuthResult{}, ErrInvalidRefresh
	}
	if rec.UserID != claims.UserID || !rec.Usable(now) {
		s.opts.Events.AuthEvent("refresh", "rejected")
		return AuthResult{}, ErrInvalidRefresh
	}
	revoked, err := s.tokens.Revoke(ctx, rec.ID, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !revoked {
		// Lost the race against a concurrent rotation of the same token.
		s.opts.Events.AuthEvent("refresh", "rejected")
		return AuthResult{}, ErrInvalidRefresh
	}
	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("load user: %w", err)
	}
	if err != nil || !u.Active {
		s.opts.Events.AuthEvent("refresh", "rejected")
		return AuthResult{}, fmt.Errorf("%w: user no longer active", ErrInvalidRefresh)
	}
	res, err := s.startSession(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	s.opts.Events.AuthEvent("refresh", "success")
	return res, nil
}

// Logout revokes the session behind a refresh token.  It reports whether a
// live session was ended; unparseable, unknown or already revoked tokens are
// not an error.
func (s *AuthService) Logout(ctx context.Context, raw string) (bool, error) {
	claims, err := s.signer.VerifyRefresh(raw)
	if err != nil {
		return false, nil
	}
	revoked, err := s.tokens.Revoke(ctx, claims.TokenID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	s.opts.Events.AuthEvent("logout", "success")
	return revoked, nil
}

// ForgotPassword issues a reset token for an active account and mails it.
// The returned raw token is empty unless ExposeResetToken is set and the
// account exists; callers must not otherwise vary their response.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.opts.Events.AuthEvent("forgot_password", "unknown")
			return "", nil
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	if !u.Active {
		s.opts.Events.AuthEvent("forgot_password", "unknown")
		return "", nil
	}

	raw, err := utils.NewResetToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now().UTC()
	if err := s.users.SetResetToken(ctx, u.ID, utils.HashResetToken(raw), now.Add(ResetTokenTTL)); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	ev := queue.PasswordResetRequested{
		UserID:      u.ID,
		To:          u.Email,
		Name:        u.FullName,
		ResetLink:   ResetLink(s.opts.FrontendURL, raw),
		RequestedAt: now.Format(time.RFC3339),
	}
	if err := s.mailer.SendPasswordReset(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "password reset mail not dispatched", "user_id", u.ID, "error", err)
	}
	s.opts.Events.AuthEvent("forgot_password", "issued")

	if !s.opts.ExposeResetToken {
		return "", nil
	}
	return raw, nil
}

// ResetPassword sets a new password for the holder of a valid reset token
// and ends every session of that user.
func (s *AuthService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	tokenHash := utils.HashResetToken(strings.TrimSpace(raw))
	u, err := s.users.GetByResetToken(ctx, tokenHash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.opts.Events.AuthEvent("reset_password", "rejected")
			return ErrInvalidReset
		}
		return fmt.Errorf("load user by reset token: %w", err)
	}
	hash, err := utils.HashPassword(newPassword, s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.ResetPassword(ctx, u.ID, tokenHash, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Consumed by a concurrent reset since the lookup.
			s.opts.Events.AuthEvent("reset_password", "rejected")
			return ErrInvalidReset
		}
		return fmt.Errorf("store password: %w", err)
	}
	n, err := s.tokens.DeleteAllForUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("drop sessions: %w", err)
	}
	s.log.InfoContext(ctx, "password reset", "user_id", u.ID, "sessions_ended", n)
	s.opts.Events.AuthEvent("reset_password", "success")
	return nil
}

// Register creates an account on behalf of an administrator.  No session
// is opened for the new user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.User{}, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	role := in.Role
	if role == "" {
		role = model.RoleProducer
	}
	userType := in.UserType
	if userType == "" {
		userType = model.UserTypeInternalStaff
	}
	return s.createUser(ctx, email, in.Password, in.FullName, role, userType)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// UpdateMe changes the caller's own name and phone.
func (s *AuthService) UpdateMe(ctx context.Context, userID string, fullName, phone *string) (model.User, error) {
	u, err := s.users.Update(ctx, userID, repository.UserUpdate{FullName: fullName, Phone: phone})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, fullName string, role model.Role, userType model.UserType) (model.User, error) {
	hash, err := utils.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		UserType:     userType,
		Active:       true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// startSession stores a new refresh-token row and signs both tokens.
func (s *AuthService) startSession(ctx context.Context, u model.User) (AuthResult, error) {
	tokenID := uuid.NewString()
	refresh, err := s.signer.SignRefresh(u.ID, tokenID)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.tokens.Create(ctx, model.RefreshToken{ID: tokenID, UserID: u.ID, ExpiresAt: refresh.Exp}); err != nil {
		return AuthResult{}, fmt.Errorf("store refresh token: %w", err)
	}
	access, err := s.signer.SignAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		User: u,
		Tokens: TokenPair{
			AccessToken:  access.Token,
			RefreshToken: refresh.Token,
			ExpiresAt:    refresh.Exp,
		},
	}, nil
}

// ResetLink builds the link mailed to the user.  Without a frontend base
// URL the raw token itself is sent.
func ResetLink(frontendURL, raw string) string {
	base := strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	if base == "" {
		return raw
	}
	return base + "/reset-password?token=" + raw
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopRecorder struct{}

func (noopRecorder) AuthEvent(string, string) {}
func (noopRecorder) RefreshReuse()            {}
