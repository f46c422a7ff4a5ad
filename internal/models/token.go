package models

import "time"

// TokenPurpose tags a single-use action token with the one flow it may
// redeem.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify_email"
	PurposeResetPassword TokenPurpose = "reset_password"
)

// ActionToken is a single-use, time-limited token. Only the sha256 hash is
// stored; redemption deletes the row.
type ActionToken struct {
	TokenHash []byte
	UserID    string
	Purpose   TokenPurpose
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Session is a refresh-token session. The refresh token itself is opaque and
// hashed at rest; rotation replaces the hash in place.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
