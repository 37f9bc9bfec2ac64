package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/logger"
)

// AuditLogger appends auth events to the audit store and mirrors them to the
// event bus. Writes never fail the caller.
type AuditLogger struct {
	events    port.AuthEventRepository
	publisher port.AuthEventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditLogger constructs an AuditLogger. publisher may be nil.
func NewAuditLogger(events port.AuthEventRepository, publisher port.AuthEventPublisher, log *zap.Logger) *AuditLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditLogger{
		events:    events,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// Record stores event, filling in its id and timestamp when absent.
func (a *AuditLogger) Record(ctx context.Context, event domain.AuthEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now().UTC()
	}

	log := logger.WithContext(ctx, a.logger).With(
		zap.String("event_type", string(event.EventType)),
		zap.String("ip", logger.MaskIP(event.IP)),
	)

	if err := a.events.Insert(ctx, event); err != nil {
		log.Warn("failed to store auth event", zap.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.PublishAuthEvent(ctx, event); err != nil {
			log.Warn("failed to publish auth event", zap.Error(err))
		}
	}
}

// CountRecentFailedLogins counts failed logins from ip since the given instant.
// A store error is logged and reported as zero.
func (a *AuditLogger) CountRecentFailedLogins(ctx context.Context, ip string, since time.Time) int {
	count, err := a.events.CountFailedByIP(ctx, domain.AuthEventLogin, ip, since)
	if err != nil {
		logger.WithContext(ctx, a.logger).Warn("failed to count ip failures",
			zap.String("ip", logger.MaskIP(ip)),
			zap.Error(err),
		)
		return 0
	}
	return count
}
