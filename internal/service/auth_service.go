package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"userhub/api/internal/config"
	"userhub/api/internal/ids"
	"userhub/api/internal/mail"
	"userhub/api/internal/models"
	"userhub/api/internal/repository"
	"userhub/api/internal/security"
)

type AuthService struct {
	users    UserStore
	tokens   TokenStore
	sessions SessionStore
	revoker  Revoker
	mailer   mail.Mailer
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	tokens TokenStore,
	sessions SessionStore,
	revoker Revoker,
	mailer mail.Mailer,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		revoker:  revoker,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates an unverified account and mails a verification link. No
// session is issued; unverified users cannot log in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	if input.Email == "" || input.Username == "" || input.Password == "" {
		return models.User{}, fmt.Errorf("%w: username, email and password required", ErrValidation)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		IsVerified:   false,
	}

	// The unique constraints are the source of truth; concurrent duplicate
	// registrations lose here, not in an application-level check.
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return models.User{}, ErrEmailTaken
		case errors.Is(err, repository.ErrUsernameTaken):
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, err
	}

	if err := s.issueVerification(ctx, user); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("send verification failed")
	}

	return user, nil
}

func (s *AuthService) issueVerification(ctx context.Context, user models.User) error {
	if err := s.tokens.DeleteForUser(ctx, user.ID, models.PurposeVerifyEmail); err != nil {
		return err
	}

	token, hash, err := security.GenerateOpaqueToken(0)
	if err != nil {
		return err
	}

	if err := s.tokens.Insert(ctx, models.ActionToken{
		TokenHash: hash,
		UserID:    user.ID,
		Purpose:   models.PurposeVerifyEmail,
		ExpiresAt: time.Now().Add(s.cfg.Security.VerificationTTL),
	}); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimSuffix(s.cfg.Mail.BaseURL, "/"), token)
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening:\n\n%s\n\nThe link expires in %s.\n", user.Username, link, s.cfg.Security.VerificationTTL)
	return s.mailer.Send(ctx, user.Email, "Verify your email", body)
}

// VerifyEmail redeems a verification token. Redemption is single-use: the
// store deletes the token row in the same statement that resolves it.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenInvalid
	}

	userID, err := s.tokens.Redeem(ctx, security.HashOpaqueToken(token), models.PurposeVerifyEmail)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	return nil
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

// Login checks credentials and issues an access token plus a refresh-token
// session. Unknown email and wrong password return the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return AuthResult{}, ErrNotVerified
	}

	return s.createSession(ctx, user, input.IPAddress, input.UserAgent)
}

func (s *AuthService) createSession(ctx context.Context, user models.User, ipAddress string, userAgent string) (AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.Security.RefreshTTL),
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		string(user.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.Security.MaxSessions {
		return nil
	}
	return s.sessions.DeleteOldestSessions(ctx, userID, s.cfg.Security.MaxSessions)
}

// Refresh rotates the refresh token and mints a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, ipAddress string, userAgent string) (AuthResult, error) {
	session, err := s.sessions.FindByRefreshHash(ctx, security.HashOpaqueToken(refreshToken))
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	newToken, newHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session.RefreshTokenHash = newHash
	session.IPAddress = ipAddress
	session.UserAgent = userAgent
	session.ExpiresAt = time.Now().Add(s.cfg.Security.RefreshTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		string(user.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		User:         user,
	}, nil
}

// Logout drops the session and revokes the presented access token until its
// natural expiry. Idempotent: a missing session is not an error.
func (s *AuthService) Logout(ctx context.Context, claims security.AccessClaims) error {
	if err := s.sessions.DeleteByID(ctx, claims.SessionID); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}

	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		s.log.Warn().Err(err).Str("jti", claims.ID).Msg("revoke access token failed")
	}
	return nil
}

// ForgotPassword always succeeds so responses cannot reveal whether an email
// is registered. A fresh reset token replaces any outstanding one.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	if err := s.tokens.DeleteForUser(ctx, user.ID, models.PurposeResetPassword); err != nil {
		return err
	}

	token, hash, err := security.GenerateOpaqueToken(0)
	if err != nil {
		return err
	}

	if err := s.tokens.Insert(ctx, models.ActionToken{
		TokenHash: hash,
		UserID:    user.ID,
		Purpose:   models.PurposeResetPassword,
		ExpiresAt: time.Now().Add(s.cfg.Security.ResetTTL),
	}); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimSuffix(s.cfg.Mail.BaseURL, "/"), token)
	body := fmt.Sprintf("Hi %s,\n\nReset your password by opening:\n\n%s\n\nThe link expires in %s. If you did not request this, ignore this mail.\n", user.Username, link, s.cfg.Security.ResetTTL)
	if err := s.mailer.Send(ctx, user.Email, "Reset your password", body); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("send reset mail failed")
	}
	return nil
}

// ResetPassword redeems a reset token, replaces the password hash and
// revokes every session of the user.
func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrTokenInvalid
	}

	userID, err := s.tokens.Redeem(ctx, security.HashOpaqueToken(token), models.PurposeResetPassword)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return err
	}

	return s.sessions.DeleteForUser(ctx, userID)
}
