package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-workshop/internal/domain"
	"github.com/Tomlord1122/todo-workshop/internal/repository"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
)

type CreateUserRequest struct {
	Username                    string `json:"username" validate:"required,max=80"`
	Email                       string `json:"email" validate:"required,email,max=120"`
	EmailNotificationsEnabled   *bool  `json:"email_notifications_enabled"`
	BrowserNotificationsEnabled *bool  `json:"browser_notifications_enabled"`
}

type UpdateUserRequest struct {
	Email                       *string `json:"email" validate:"omitempty,email,max=120"`
	EmailNotificationsEnabled   *bool   `json:"email_notifications_enabled"`
	BrowserNotificationsEnabled *bool   `json:"browser_notifications_enabled"`
}

type UserResponse struct {
	ID                          uint   `json:"id"`
	Username                    string `json:"username"`
	Email                       string `json:"email"`
	CreatedAt                   string `json:"created_at"`
	EmailNotificationsEnabled   bool   `json:"email_notifications_enabled"`
	BrowserNotificationsEnabled bool   `json:"browser_notifications_enabled"`
}

func toUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:                          u.ID,
		Username:                    u.Username,
		Email:                       u.Email,
		CreatedAt:                   u.CreatedAt.Format(time.RFC3339),
		EmailNotificationsEnabled:   u.EmailNotificationsEnabled,
		BrowserNotificationsEnabled: u.BrowserNotificationsEnabled,
	}
}

// UserService manages the user registry and notification preferences.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, id uint) (*UserResponse, error)
	ListUsers(ctx context.Context) ([]UserResponse, error)
	UpdateUser(ctx context.Context, id uint, req UpdateUserRequest) (*UserResponse, error)
}

type userService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{users: repo.User, logger: logger}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if err := s.ensureUsernameFree(ctx, req.Username); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:                    req.Username,
		Email:                       req.Email,
		EmailNotificationsEnabled:   boolOr(req.EmailNotificationsEnabled, true),
		BrowserNotificationsEnabled: boolOr(req.BrowserNotificationsEnabled, true),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUniqueViolation(err, "create user")
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return toUserResponse(user), nil
}

func (s *userService) GetUser(ctx context.Context, id uint) (*UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, *toUserResponse(&users[i]))
	}
	return out, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uint, req UpdateUserRequest) (*UserResponse, error) {
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		req.Email = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		if err := s.ensureEmailFree(ctx, *req.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}
	if req.EmailNotificationsEnabled != nil {
		user.EmailNotificationsEnabled = *req.EmailNotificationsEnabled
	}
	if req.BrowserNotificationsEnabled != nil {
		user.BrowserNotificationsEnabled = *req.BrowserNotificationsEnabled
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUniqueViolation(err, "update user")
	}
	return toUserResponse(user), nil
}

func (s *userService) find(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("fetch user %d: %w", id, err)
	}
	return user, nil
}

func (s *userService) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("check username: %w", err)
	}
}

// ensureEmailFree fails when another user than self owns email.
func (s *userService) ensureEmailFree(ctx context.Context, email string, self uint) error {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.ID == self {
			return nil
		}
		return ErrEmailTaken
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("check email: %w", err)
	}
}

// mapUniqueViolation covers the race between the existence checks and the
// write.
func mapUniqueViolation(err error, op string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		if strings.Contains(constraint, "email") {
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
