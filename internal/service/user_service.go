package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/taskmaster-api/internal/repository"
)

// ============================================
// User Service
// ============================================

type UserService interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
	List(ctx context.Context, search string, limit, offset int) ([]*repository.User, int, error)
	UpdateProfile(ctx context.Context, userID string, update UserProfileUpdate) (*repository.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	Deactivate(ctx context.Context, userID string) error
}

// UserProfileUpdate carries optional profile fields; nil means "leave as is"
type UserProfileUpdate struct {
	FirstName *string
	LastName  *string
	Avatar    *string
	Bio       *string
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetByID(ctx context.Context, id string) (*repository.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, search string, limit, offset int) ([]*repository.User, int, error) {
	return s.userRepo.FindActive(ctx, search, limit, offset)
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, update UserProfileUpdate) (*repository.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Avatar != nil {
		user.Avatar = update.Avatar
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}

	if user.FirstName == "" || user.LastName == "" {
		return nil, ErrInvalidInput
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.userRepo.UpdatePassword(ctx, userID, string(hashed))
}

func (s *userService) Deactivate(ctx context.Context, userID string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.IsActive = false
	return s.userRepo.Update(ctx, user)
}
