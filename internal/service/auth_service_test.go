package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/api/internal/config"
	"userhub/api/internal/models"
	"userhub/api/internal/security"
)

type authFixture struct {
	svc      *AuthService
	users    *memUserStore
	tokens   *memTokenStore
	sessions *memSessionStore
	revoker  *memRevoker
	mailer   *memMailer
	cfg      *config.AppConfig
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret: "test-secret",
			JWTAccessTTL:    15 * time.Minute,
			RefreshTTL:      time.Hour,
			VerificationTTL: time.Hour,
			ResetTTL:        time.Hour,
			MaxSessions:     3,
		},
		Mail: config.MailConfig{BaseURL: "http://localhost:8080"},
	}

	users := newMemUserStore()
	tokens := newMemTokenStore()
	sessions := newMemSessionStore()
	revoker := newMemRevoker()
	mailer := &memMailer{}

	return &authFixture{
		svc:      NewAuthService(users, tokens, sessions, revoker, mailer, cfg, zerolog.Nop()),
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		revoker:  revoker,
		mailer:   mailer,
		cfg:      cfg,
	}
}

// tokenFromMail pulls the opaque token out of the link in the last mail.
func tokenFromMail(t *testing.T, mailer *memMailer) string {
	t.Helper()
	msg, ok := mailer.last()
	require.True(t, ok, "expected a mail to have been sent")
	idx := strings.Index(msg.Body, "token=")
	require.GreaterOrEqual(t, idx, 0, "mail body has no token link")
	token := msg.Body[idx+len("token="):]
	if end := strings.IndexAny(token, "\n \t"); end >= 0 {
		token = token[:end]
	}
	return token
}

func registerAndVerify(t *testing.T, f *authFixture, username, email, password string) models.User {
	t.Helper()
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Username: username, Email: email, Password: password})
	require.NoError(t, err)

	require.NoError(t, f.svc.VerifyEmail(ctx, tokenFromMail(t, f.mailer)))
	verified, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	return verified
}

func TestRegisterCreatesUnverifiedUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{
		Username: "testuser",
		Email:    "Test@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, "test@example.com", user.Email, "email is normalized")
	assert.Equal(t, models.RoleUser, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEmpty(t, user.ID)

	msg, ok := f.mailer.last()
	require.True(t, ok)
	assert.Equal(t, "test@example.com", msg.To)
	assert.Contains(t, msg.Body, "verify-email?token=")
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "testuser", Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "other", Email: "test@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "testuser", Email: "other@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginBeforeVerificationFails(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "testuser", Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "testuser", Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	token := tokenFromMail(t, f.mailer)
	require.NoError(t, f.svc.VerifyEmail(ctx, token))

	err = f.svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid, "second redemption must fail")
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.VerifyEmail(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLoginIssuesTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	result, err := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "testuser", result.User.Username)

	claims, err := security.ParseAccessToken(result.AccessToken, f.cfg.Security.JWTAccessSecret)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, string(models.RoleUser), claims.Role)

	_, err = f.sessions.GetByID(ctx, claims.SessionID)
	assert.NoError(t, err, "login persists a session row")
}

func TestLoginErrorsDoNotRevealAccounts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	_, wrongPassword := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "wrong-password"})
	_, unknownEmail := f.svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error(), "identical message for both failure modes")
}

func TestLoginEnforcesSessionLimit(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user := registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	for i := 0; i < f.cfg.Security.MaxSessions+2; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
		require.NoError(t, err)
	}

	count, err := f.sessions.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, f.cfg.Security.MaxSessions)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	login, err := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, login.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = f.svc.Refresh(ctx, login.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "rotated-out refresh token is dead")

	_, err = f.svc.Refresh(ctx, refreshed.RefreshToken, "", "")
	assert.NoError(t, err, "current refresh token still works")
}

func TestLogoutIsIdempotentAndRevokes(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	login, err := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	claims, err := security.ParseAccessToken(login.AccessToken, f.cfg.Security.JWTAccessSecret)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, *claims))
	require.NoError(t, f.svc.Logout(ctx, *claims), "second logout succeeds")

	revoked, err := f.revoker.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = f.sessions.GetByID(ctx, claims.SessionID)
	assert.Error(t, err, "session row is gone")
}

func TestForgotPasswordUnknownEmailSucceedsSilently(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.ForgotPassword(context.Background(), "nobody@example.com")
	assert.NoError(t, err)

	_, sent := f.mailer.last()
	assert.False(t, sent, "no mail for unknown addresses")
}

func TestResetPasswordFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	login, err := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "test@example.com"))
	token := tokenFromMail(t, f.mailer)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "newpassword456"))

	_, err = f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "old password no longer works")

	_, err = f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "newpassword456"})
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "reset revokes existing sessions")

	err = f.svc.ResetPassword(ctx, token, "thirdpassword789")
	assert.ErrorIs(t, err, ErrTokenInvalid, "reset token is single use")
}

func TestForgotPasswordReplacesOutstandingToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registerAndVerify(t, f, "testuser", "test@example.com", "password123")

	require.NoError(t, f.svc.ForgotPassword(ctx, "test@example.com"))
	first := tokenFromMail(t, f.mailer)

	require.NoError(t, f.svc.ForgotPassword(ctx, "test@example.com"))
	second := tokenFromMail(t, f.mailer)
	require.NotEqual(t, first, second)

	err := f.svc.ResetPassword(ctx, first, "newpassword456")
	assert.ErrorIs(t, err, ErrTokenInvalid, "re-requesting invalidates the earlier token")

	assert.NoError(t, f.svc.ResetPassword(ctx, second, "newpassword456"))
}
