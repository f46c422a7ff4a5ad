package service

import (
	"context"
	"io"
	"time"

	"userhub/api/internal/models"
)

// Store interfaces implemented by the pgx repositories. Services depend on
// these so the flows can be tested against in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context, limit int, offset int) ([]models.User, error)
	MarkVerified(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, user models.User) error
	UpdateAvatar(ctx context.Context, id string, avatarURL string) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type TokenStore interface {
	Insert(ctx context.Context, token models.ActionToken) error
	Redeem(ctx context.Context, tokenHash []byte, purpose models.TokenPurpose) (string, error)
	DeleteForUser(ctx context.Context, userID string, purpose models.TokenPurpose) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshHash(ctx context.Context, refreshHash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID string) error
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error
}

// Revoker tracks revoked access-token ids until their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AvatarStore is the object-storage slice used by the profile flow.
type AvatarStore interface {
	PutAvatar(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
