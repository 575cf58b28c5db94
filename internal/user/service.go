// Package user provides role administration and admin bootstrap.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buildwise/backend/internal/auth"
	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/repository"
)

// PasswordHasher hashes passwords for new credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// BootstrapInput describes the first admin account.
type BootstrapInput struct {
	Email    string
	Password string
	Name     string
}

// Service manages user roles.
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	now      func() time.Time
}

// NewService creates a Service. hasher is only needed by BootstrapAdmin.
func NewService(userRepo repository.UserRepository, hasher PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		now:      time.Now,
	}
}

// Promote grants the ADMIN role to the user with email.
func (s *Service) Promote(ctx context.Context, email string) (*model.User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Role == model.RoleAdmin {
		return nil, model.NewValidationError("User is already an admin")
	}

	updated, err := s.updateRole(ctx, user.ID, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	slog.Info("user promoted to admin", slog.String("user_id", updated.ID))
	return updated, nil
}

// Demote returns the admin with email to the STUDENT role.
// An admin can never demote themself; that check runs before the lookup.
func (s *Service) Demote(ctx context.Context, actorEmail, email string) (*model.User, error) {
	if err := auth.ValidateEmail(email); err != nil {
		return nil, err
	}
	if normalize(actorEmail) != "" && normalize(actorEmail) == normalize(email) {
		return nil, model.NewForbiddenError("You cannot demote yourself")
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleAdmin {
		return nil, model.NewValidationError("User is not an admin")
	}

	updated, err := s.updateRole(ctx, user.ID, model.RoleStudent)
	if err != nil {
		return nil, err
	}
	slog.Info("admin demoted to student", slog.String("user_id", updated.ID))
	return updated, nil
}

// ListAdmins returns every admin, newest first.
func (s *Service) ListAdmins(ctx context.Context) ([]*model.User, error) {
	admins, err := s.userRepo.ListByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return admins, nil
}

// BootstrapAdmin creates the first admin with a password credential.
// It refuses when any admin exists or when the email is already registered.
func (s *Service) BootstrapAdmin(ctx context.Context, in BootstrapInput) (*model.User, error) {
	req := auth.SignupRequest{Email: in.Email, Password: in.Password, Name: in.Name}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindFirstByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to look up admins: %w", err)
	}
	if existing != nil {
		return nil, &model.APIError{
			Kind:    model.KindConflict,
			Message: fmt.Sprintf("An admin already exists (%s); use promote-admin to add more", existing.Email),
		}
	}

	taken, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if taken != nil {
		return nil, emailTakenError(req.Email)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	admin := &model.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Role:      model.RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &model.Credential{
		ID:           uuid.NewString(),
		UserID:       admin.ID,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.CreateWithCredential(ctx, admin, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, emailTakenError(req.Email)
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("bootstrap admin created", slog.String("user_id", admin.ID))
	return admin, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := auth.ValidateEmail(email); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByEmail(ctx, normalize(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) updateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	updated, err := s.userRepo.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	return updated, nil
}

func emailTakenError(email string) error {
	return &model.APIError{
		Kind:    model.KindConflict,
		Message: fmt.Sprintf("User with email %s already exists; promote it with promote-admin %s", email, email),
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
