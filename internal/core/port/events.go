package port

import (
	"context"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

// AuthEventPublisher mirrors audit events onto the message bus.
type AuthEventPublisher interface {
	PublishAuthEvent(ctx context.Context, event domain.AuthEvent) error
}
