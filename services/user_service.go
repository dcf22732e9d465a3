package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
)

const (
	maxDisplayNameLength = 32
	maxPronounsLength    = 20
)

type UpsertUserInput struct {
	DiscordUsername string          `json:"discord_username"`
	DisplayName     string          `json:"display_name"`
	Role            models.UserRole `json:"role"`
	IsAdmin         bool            `json:"is_admin"`
	Country         *string         `json:"country,omitempty"`
}

type UserService interface {
	Upsert(ctx context.Context, input UpsertUserInput) (user *models.User, created bool, err error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	UpdateDisplayName(ctx context.Context, id int, displayName string) (*models.User, error)
	UpdatePronouns(ctx context.Context, id int, pronouns string) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	logger   *slog.Logger
}

func NewUserService(userRepo repositories.UserRepository, logger *slog.Logger) UserService {
	return &userService{userRepo: userRepo, logger: logger}
}

// Upsert creates a user by discord username or updates the role, admin flag and display name
// of an existing one. Scores are never touched.
func (s *userService) Upsert(ctx context.Context, input UpsertUserInput) (*models.User, bool, error) {
	input.DiscordUsername = strings.TrimSpace(input.DiscordUsername)
	if input.DiscordUsername == "" {
		return nil, false, fmt.Errorf("%w: discord username is required", ErrValidationFailed)
	}
	if input.Role == "" {
		input.Role = models.RoleRunner
	}
	if !input.Role.IsValid() {
		return nil, false, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, input.Role)
	}
	displayName, err := normalizeDisplayName(input.DisplayName, input.DiscordUsername)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.userRepo.GetByDiscordUsername(ctx, input.DiscordUsername)
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, false, err
	}

	if existing != nil {
		existing.Role = input.Role
		existing.IsAdmin = input.IsAdmin
		existing.DisplayName = displayName
		if input.Country != nil {
			existing.Country = input.Country
		}
		if err := s.userRepo.Update(ctx, nil, existing); err != nil {
			return nil, false, handleRepositoryError(err)
		}
		s.logger.Info("user updated", slog.Int("user_id", existing.ID), slog.String("role", string(existing.Role)))
		return existing, false, nil
	}

	u := &models.User{
		DiscordUsername: input.DiscordUsername,
		DisplayName:     displayName,
		Role:            input.Role,
		IsAdmin:         input.IsAdmin,
		Country:         input.Country,
		CurrentBracket:  models.BracketNormal,
		BestTimeMs:      models.DefaultBestTimeMs,
	}
	if err := s.userRepo.Create(ctx, nil, u); err != nil {
		return nil, false, handleRepositoryError(err)
	}
	s.logger.Info("user created", slog.Int("user_id", u.ID), slog.String("role", string(u.Role)))
	return u, true, nil
}

func normalizeDisplayName(name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", fmt.Errorf("%w: display name is longer than %d characters", ErrValidationFailed, maxDisplayNameLength)
	}
	return name, nil
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, err := s.userRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return u, nil
}

func (s *userService) UpdateDisplayName(ctx context.Context, id int, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrValidationFailed)
	}
	name, err := normalizeDisplayName(displayName, "")
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateDisplayName(ctx, id, name); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.GetByID(ctx, id)
}

// UpdatePronouns sets the pronouns, an empty value clears them.
func (s *userService) UpdatePronouns(ctx context.Context, id int, pronouns string) (*models.User, error) {
	pronouns = strings.TrimSpace(pronouns)
	if utf8.RuneCountInString(pronouns) > maxPronounsLength {
		return nil, fmt.Errorf("%w: pronouns are longer than %d characters", ErrValidationFailed, maxPronounsLength)
	}
	var value *string
	if pronouns != "" {
		value = &pronouns
	}
	if err := s.userRepo.UpdatePronouns(ctx, id, value); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.GetByID(ctx, id)
}
