package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/repository"
)

var (
	// ErrInvalidFields indicates a create request with a malformed short id or PIN.
	ErrInvalidFields = errors.New("invalid fields")
	// ErrInvalidRole indicates an unsupported role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidShortID indicates an update with a malformed short id.
	ErrInvalidShortID = errors.New("invalid user id")
	// ErrInvalidPin indicates an update with a PIN that is too short.
	ErrInvalidPin = errors.New("invalid pin")
	// ErrUserExists indicates the short id is already taken.
	ErrUserExists = errors.New("user exists")
	// ErrUserNotFound indicates the target user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// RequestMeta carries the client attribution recorded with administrative actions.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// CreateUserInput captures the payload for creating a user.
type CreateUserInput struct {
	ShortID string
	Pin     string
	Role    domain.Role
	Name    string
}

// UpdateUserInput captures an admin edit. Nil fields are left unchanged.
type UpdateUserInput struct {
	Name    *string
	ShortID *string
	Pin     *string
}

// UserService handles user lifecycle operations.
type UserService struct {
	users  port.UserRepository
	hasher port.PinHasher
	audit  *AuditLogger
}

// NewUserService constructs UserService.
func NewUserService(users port.UserRepository, hasher port.PinHasher, audit *AuditLogger) *UserService {
	return &UserService{users: users, hasher: hasher, audit: audit}
}

// CreateUser hashes the PIN and persists a new active user.
func (s *UserService) CreateUser(ctx context.Context, meta RequestMeta, input CreateUserInput) (*domain.User, error) {
	shortID := domain.NormalizeShortID(input.ShortID)
	if !domain.IsValidShortID(shortID) || !domain.IsValidPin(input.Pin) {
		return nil, ErrInvalidFields
	}

	role := input.Role
	if role == "" {
		role = domain.RoleEmployee
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	pinHash, err := s.hasher.Hash(input.Pin)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	user := domain.User{
		ID:      uuid.NewString(),
		ShortID: shortID,
		Name:    normalizeName(input.Name),
		PinHash: pinHash,
		Role:    role,
		Active:  true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.recordAdminEvent(ctx, meta, domain.AuthEventAdminCreateUser, user.ID, user.ShortID)

	user.PinHash = ""
	return &user, nil
}

// UpdateUser applies an admin edit. A new PIN also clears the lockout state.
func (s *UserService) UpdateUser(ctx context.Context, meta RequestMeta, id string, input UpdateUserInput) error {
	var update domain.UserUpdate

	if input.Name != nil {
		if name := normalizeName(*input.Name); name != nil {
			update.Name = name
		} else {
			update.ClearName = true
		}
	}

	if input.ShortID != nil {
		shortID := domain.NormalizeShortID(*input.ShortID)
		if !domain.IsValidShortID(shortID) {
			return ErrInvalidShortID
		}
		update.ShortID = &shortID
	}

	if input.Pin != nil {
		if !domain.IsValidPin(*input.Pin) {
			return ErrInvalidPin
		}
		pinHash, err := s.hasher.Hash(*input.Pin)
		if err != nil {
			return fmt.Errorf("hash pin: %w", err)
		}
		update.PinHash = &pinHash
		update.ResetFailures = true
	}

	if update.Empty() {
		return nil
	}

	if err := s.users.Update(ctx, id, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrUserNotFound
		case errors.Is(err, repository.ErrConflict):
			return ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}

	shortID := ""
	if update.ShortID != nil {
		shortID = *update.ShortID
	}
	s.recordAdminEvent(ctx, meta, domain.AuthEventAdminUpdateUser, id, shortID)
	return nil
}

// DeleteUser removes the user identified by id.
func (s *UserService) DeleteUser(ctx context.Context, meta RequestMeta, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.recordAdminEvent(ctx, meta, domain.AuthEventAdminDeleteUser, id, "")
	return nil
}

// CurrentUser resolves the active user behind a verified session. It returns
// nil without error when the user no longer exists or is inactive.
func (s *UserService) CurrentUser(ctx context.Context, claims domain.SessionClaims) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.Active {
		return nil, nil
	}

	user.PinHash = ""
	return user, nil
}

func (s *UserService) recordAdminEvent(ctx context.Context, meta RequestMeta, eventType domain.AuthEventType, targetID, targetShortID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, domain.AuthEvent{
		UserIDShort: domain.StringPtr(targetShortID),
		UserID:      domain.StringPtr(targetID),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		EventType:   eventType,
		Success:     true,
	})
}

func normalizeName(value string) *string {
	return domain.StringPtr(strings.TrimSpace(value))
}
