package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	users "github.com/AdamBeresnev/brick-bracket/internal/user"
	"github.com/AdamBeresnev/brick-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/rs/zerolog"
)

type UserService struct {
	store  *store.UserStore
	cfg    *config.Config
	logger zerolog.Logger
}

func NewUserService(store *store.UserStore, cfg *config.Config, logger zerolog.Logger) *UserService {
	return &UserService{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// FindOrCreateUserByProvider returns the user behind an OAuth login, creating
// it on first sight and refreshing its profile and admin flag otherwise.
func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	admin := s.cfg.IsAdminEmail(gothUser.Email)
	username := utils.FirstNonBlank(gothUser.NickName, gothUser.Name, gothUser.Email)

	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)
	if err == nil {
		changed := utils.Deref(user.AvatarURL, "") != strings.TrimSpace(gothUser.AvatarURL) ||
			user.Username != username ||
			(admin && !user.IsAdmin)
		if changed {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			user.Username = username
			user.IsAdmin = user.IsAdmin || admin
			if err := s.store.UpdateUserProfile(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to update user profile: %w", err)
			}
		}
		return user, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	newUser := &users.User{
		ID:         uuid.New(),
		Email:      gothUser.Email,
		Username:   username,
		CreatedAt:  utcNow(),
		Provider:   utils.Ptr(gothUser.Provider),
		ProviderID: utils.Ptr(gothUser.UserID),
		AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
		IsAdmin:    admin,
	}
	if err := s.store.CreateUser(ctx, newUser); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().
		Str("user_id", newUser.ID.String()).
		Str("provider", gothUser.Provider).
		Bool("admin", admin).
		Msg("user created")
	return newUser, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SyncAdmins promotes existing users listed in ADMIN_EMAILS.
func (s *UserService) SyncAdmins(ctx context.Context) error {
	n, err := s.store.PromoteAdmins(ctx, s.cfg.AdminEmails)
	if err != nil {
		return fmt.Errorf("failed to sync admins: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("promoted", n).Msg("admin flags synced")
	}
	return nil
}
