package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Minhal128/CodeX/common/id"
	"github.com/Minhal128/CodeX/internal/model"
	"github.com/Minhal128/CodeX/internal/store"
)

type UserService interface {
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, displayName, email string) (*model.User, error)
}

type userService struct {
	userStore store.UserStore
}

func NewUserService(userStore store.UserStore) UserService {
	return &userService{userStore: userStore}
}

func (s *userService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.userStore.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list users", "error", err)
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *userService) Create(ctx context.Context, displayName, email string) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}

	user := &model.User{
		ID:          id.NewString(),
		DisplayName: displayName,
		Email:       strings.TrimSpace(email),
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to create user",
			"error", err,
			"email", email,
		)
		return nil, fmt.Errorf("creating user: %w", err)
	}

	slog.InfoContext(ctx, "user created", "user_id", user.ID)
	return user, nil
}
