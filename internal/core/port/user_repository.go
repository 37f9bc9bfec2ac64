package port

import (
	"context"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

// UserRepository exposes persistence behavior for time-clock users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByShortID(ctx context.Context, shortID string) (*domain.User, error)
	Update(ctx context.Context, id string, update domain.UserUpdate) error
	Delete(ctx context.Context, id string) error
	UpdateCredential(ctx context.Context, id string, pinHash string) error
	UpdateFailureState(ctx context.Context, id string, state domain.FailureState) error
}
