package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/repository"
)

const usersTable = "users"

var userColumns = []string{
	"id",
	"user_id_short",
	"name",
	"pin_hash",
	"role",
	"active",
	"failed_attempts",
	"last_failed_at",
	"locked_until",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a user repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row. A duplicate short id yields repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.ShortID,
			user.Name,
			user.PinHash,
			string(user.Role),
			user.Active,
			user.FailedAttempts,
			user.LastFailedAt,
			user.LockedUntil,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByShortID retrieves a user by the two digit login identifier.
func (r *UserRepository) GetByShortID(ctx context.Context, shortID string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id_short": shortID})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user    domain.User
		role    string
		pinHash *string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.ShortID,
		&user.Name,
		&pinHash,
		&role,
		&user.Active,
		&user.FailedAttempts,
		&user.LastFailedAt,
		&user.LockedUntil,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	// A NULL credential is treated as absent.
	if pinHash != nil {
		user.PinHash = *pinHash
	}

	return &user, nil
}

// Update applies the non-nil fields of update to the user identified by id.
func (r *UserRepository) Update(ctx context.Context, id string, update domain.UserUpdate) error {
	if update.Empty() {
		return nil
	}

	query := r.builder.Update(usersTable).Where(squirrel.Eq{"id": id})
	switch {
	case update.ClearName:
		query = query.Set("name", nil)
	case update.Name != nil:
		query = query.Set("name", *update.Name)
	}
	if update.ShortID != nil {
		query = query.Set("user_id_short", *update.ShortID)
	}
	if update.PinHash != nil {
		query = query.Set("pin_hash", *update.PinHash)
	}
	if update.ResetFailures {
		query = query.
			Set("failed_attempts", 0).
			Set("last_failed_at", nil).
			Set("locked_until", nil)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user: %w", repository.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes the user row.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(usersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateCredential replaces the stored PIN credential.
func (r *UserRepository) UpdateCredential(ctx context.Context, id, pinHash string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("pin_hash", pinHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update credential sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateFailureState writes the lockout counters.
func (r *UserRepository) UpdateFailureState(ctx context.Context, id string, state domain.FailureState) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("failed_attempts", state.FailedAttempts).
		Set("last_failed_at", state.LastFailedAt).
		Set("locked_until", state.LockedUntil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update failure state sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update failure state: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
