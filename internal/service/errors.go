package service

import "errors"

// Flow-level failures.  Credential, refresh and reset errors are
// deliberately coarse so that responses never reveal which check failed.
var (
	ErrBootstrapLocked    = errors.New("bootstrap already completed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRefresh     = errors.New("refresh token expired or revoked")
	ErrInvalidReset       = errors.New("reset token is invalid or expired")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrProjectNotFound    = errors.New("project not found")
	ErrProjectCode        = errors.New("could not generate a unique project code")
)
