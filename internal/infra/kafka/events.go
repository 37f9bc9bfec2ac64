package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/config"
)

const (
	schemaVersion = "1.0"
	// AuthEventsTopic is the unprefixed topic carrying audit events.
	AuthEventsTopic = "auth.events"
)

// EventPublisher mirrors audit events to Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   authEventPayload  `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type authEventPayload struct {
	UserIDShort *string `json:"user_id_short,omitempty"`
	UserID      *string `json:"user_id,omitempty"`
	IP          string  `json:"ip"`
	UserAgent   string  `json:"user_agent,omitempty"`
	Success     bool    `json:"success"`
	Reason      string  `json:"reason,omitempty"`
}

// PublishAuthEvent queues event on the auth events topic, keyed by client IP.
func (p *EventPublisher) PublishAuthEvent(ctx context.Context, event domain.AuthEvent) error {
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: string(event.EventType),
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload: authEventPayload{
			UserIDShort: event.UserIDShort,
			UserID:      event.UserID,
			IP:          event.IP,
			UserAgent:   event.UserAgent,
			Success:     event.Success,
			Reason:      event.ReasonString(),
		},
		Metadata: metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(AuthEventsTopic),
		Key:   sarama.StringEncoder(event.IP),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.AuthEventPublisher = (*EventPublisher)(nil)
