package service

import "errors"

// Service-level error taxonomy. Handlers map these onto HTTP statuses; the
// credential errors deliberately share one message so responses cannot be
// used to enumerate accounts.
var (
	ErrValidation         = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email not verified")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUnsupportedAvatar  = errors.New("unsupported avatar format")
	ErrAvatarTooLarge     = errors.New("avatar too large")
)
