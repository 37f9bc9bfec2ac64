package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
)

const authEventsTable = "auth_events"

// AuthEventRepository persists the append-only authentication audit log.
type AuthEventRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuthEventRepository constructs the audit repository.
func NewAuthEventRepository(exec pgExecutor) *AuthEventRepository {
	return &AuthEventRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends event to the log.
func (r *AuthEventRepository) Insert(ctx context.Context, event domain.AuthEvent) error {
	var reason any
	if event.Reason != nil {
		reason = string(*event.Reason)
	}

	stmt, args, err := r.builder.Insert(authEventsTable).
		Columns(
			"id",
			"occurred_at",
			"user_id_short",
			"user_id",
			"ip",
			"user_agent",
			"event_type",
			"success",
			"reason",
		).
		Values(
			event.ID,
			event.OccurredAt,
			event.UserIDShort,
			event.UserID,
			event.IP,
			event.UserAgent,
			string(event.EventType),
			event.Success,
			reason,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert auth event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}

	return nil
}

// CountFailedByIP counts unsuccessful events of eventType from ip since the given instant.
func (r *AuthEventRepository) CountFailedByIP(ctx context.Context, eventType domain.AuthEventType, ip string, since time.Time) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From(authEventsTable).
		Where(squirrel.Eq{
			"event_type": string(eventType),
			"success":    false,
			"ip":         ip,
		}).
		Where(squirrel.GtOrEq{"occurred_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count auth events sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count auth events: %w", err)
	}

	return count, nil
}

var _ port.AuthEventRepository = (*AuthEventRepository)(nil)
