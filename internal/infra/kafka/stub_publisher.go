package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// PublishAuthEvent logs the event at debug level.
func (p *StubPublisher) PublishAuthEvent(_ context.Context, event domain.AuthEvent) error {
	p.logger.Debug("auth event",
		zap.String("event_type", string(event.EventType)),
		zap.Bool("success", event.Success),
		zap.String("reason", event.ReasonString()),
		zap.String("ip", logger.MaskIP(event.IP)),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

var _ port.AuthEventPublisher = (*StubPublisher)(nil)
