package utils // package utils provides token signing, hashing and password helpers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens

	"github.com/prodhub/production-api/internal/model"
)

// DefaultRefreshTTL is used when a configured duration cannot be parsed.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// refreshType is the marker carried by every refresh token.
const refreshType = "refresh"

// ErrInvalidToken is returned for a bad signature, malformed payload or
// expired token.  Callers never learn which.
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig carries the signing material and lifetimes.  Access and
// refresh tokens never share a secret.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     string // e.g. "15m"
	RefreshTTL    string // e.g. "7d"
}

// AccessClaims identify the caller for a single request.
type AccessClaims struct {
	UserID string     `json:"userId"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only what is needed to find the stored token row.
type RefreshClaims struct {
	UserID  string `json:"userId"`
	TokenID string `json:"tokenId"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized JWT together with its expiry.
type SignedToken struct {
	Token string
	Exp   time.Time
}

// TokenService signs and verifies access and refresh tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService validates cfg and returns a ready service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets are not configured")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     ParseDuration(cfg.AccessTTL, 15*time.Minute),
		refreshTTL:    ParseDuration(cfg.RefreshTTL, DefaultRefreshTTL),
		now:           time.Now,
	}, nil
}

// RefreshTTL is the lifetime applied to new refresh tokens and their rows.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// SignAccess builds a short-lived HS256 access token.
func (s *TokenService) SignAccess(userID, email string, role model.Role) (SignedToken, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// SignRefresh builds a refresh token bound to a stored token identifier.
func (s *TokenService) SignRefresh(userID, tokenID string) (SignedToken, error) {
	now := s.now().UTC()
	exp := now.Add(s.refreshTTL)
	claims := RefreshClaims{
		UserID:  userID,
		TokenID: tokenID,
		Type:    refreshType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyAccess checks signature and expiry of an access token.
func (s *TokenService) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(raw, claims, s.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry and the refresh type marker.
func (s *TokenService) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(raw, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != refreshType || claims.UserID == "" || claims.TokenID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(raw string, claims jwt.Claims, secret []byte) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		// Reject tokens using different algorithms.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses "<n><unit>" with unit s, m, h or d.  Anything else
// yields def.
func ParseDuration(value string, def time.Duration) time.Duration {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return def
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return def
	}
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit
}
