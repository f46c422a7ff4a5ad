package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"userhub/api/internal/config"
	"userhub/api/internal/media/sniffer"
	"userhub/api/internal/models"
	"userhub/api/internal/repository"
)

type AccountService struct {
	users   UserStore
	auth    *AuthService
	avatars AvatarStore
	cfg     *config.AppConfig
	log     zerolog.Logger
}

func NewAccountService(
	users UserStore,
	auth *AuthService,
	avatars AvatarStore,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		users:   users,
		auth:    auth,
		avatars: avatars,
		cfg:     cfg,
		log:     log,
	}
}

type ProfileUpdate struct {
	Username *string
	Email    *string
	Bio      *string
	Location *string
	Website  *string
}

// UpdateProfile persists the caller's own record. Changing the email resets
// verification and mails a fresh link; duplicate identity fields surface as
// conflicts from the unique constraints.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	emailChanged := false
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return models.User{}, fmt.Errorf("%w: username must not be empty", ErrValidation)
		}
		user.Username = username
	}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		if email == "" {
			return models.User{}, fmt.Errorf("%w: email must not be empty", ErrValidation)
		}
		if email != user.Email {
			user.Email = email
			user.IsVerified = false
			emailChanged = true
		}
	}
	if update.Bio != nil {
		user.Bio = update.Bio
	}
	if update.Location != nil {
		user.Location = update.Location
	}
	if update.Website != nil {
		user.Website = update.Website
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return models.User{}, ErrEmailTaken
		case errors.Is(err, repository.ErrUsernameTaken):
			return models.User{}, ErrUsernameTaken
		case errors.Is(err, repository.ErrUserNotFound):
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if emailChanged {
		if err := s.auth.issueVerification(ctx, user); err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("send verification failed")
		}
	}

	return user, nil
}

// UploadAvatar sniffs the payload, stores it and records the public URL.
func (s *AccountService) UploadAvatar(ctx context.Context, user models.User, r io.Reader, size int64) (string, error) {
	if size > s.cfg.Security.MaxAvatarSizeBytes {
		return "", ErrAvatarTooLarge
	}

	result, head, err := sniffer.Detect(r)
	if err != nil {
		return "", ErrUnsupportedAvatar
	}
	switch result.Type {
	case sniffer.TypeJPEG, sniffer.TypePNG, sniffer.TypeGIF, sniffer.TypeWEBP:
	default:
		return "", ErrUnsupportedAvatar
	}

	body := io.MultiReader(bytes.NewReader(head), io.LimitReader(r, s.cfg.Security.MaxAvatarSizeBytes))
	key := fmt.Sprintf("%s/avatar.%s", user.ID, result.Type)

	url, err := s.avatars.PutAvatar(ctx, key, body, size, result.MIME)
	if err != nil {
		return "", err
	}

	if err := s.users.UpdateAvatar(ctx, user.ID, url); err != nil {
		return "", err
	}
	return url, nil
}

// ListUsers pages through all accounts for the admin panel.
func (s *AccountService) ListUsers(ctx context.Context, limit int, offset int) ([]models.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *AccountService) UpdateUserRole(ctx context.Context, id string, rawRole string) (models.User, error) {
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %s", ErrInvalidRole, rawRole)
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// DeleteUser removes the record. The second delete of the same id reports
// not found rather than failing harder.
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
