package port

import (
	"context"
	"time"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

// AuthEventRepository is the append-only audit store.
type AuthEventRepository interface {
	Insert(ctx context.Context, event domain.AuthEvent) error
	// CountFailedByIP counts unsuccessful events of eventType from ip that occurred at or after since.
	CountFailedByIP(ctx context.Context, eventType domain.AuthEventType, ip string, since time.Time) (int, error)
}
