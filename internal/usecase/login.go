package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/logger"
	"github.com/arklim/timeclock-auth/internal/repository"
)

var (
	// ErrInvalidLoginInput indicates the short id or PIN has the wrong shape.
	ErrInvalidLoginInput = errors.New("invalid login input")
)

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithLoginMetrics records login decisions on m.
func WithLoginMetrics(m port.LoginMetrics) AuthOption {
	return func(s *AuthService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer traces logins with tracer.
func WithTracer(tracer trace.Tracer) AuthOption {
	return func(s *AuthService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResponseFloor runs pad after every login decision with the instant the
// attempt started.
func WithResponseFloor(pad func(started time.Time)) AuthOption {
	return func(s *AuthService) {
		s.pad = pad
	}
}

// AuthService decides PIN login attempts.
type AuthService struct {
	users    port.UserRepository
	audit    *AuditLogger
	verifier port.CredentialVerifier
	hasher   port.PinHasher
	sessions port.SessionIssuer
	policy   domain.LockoutPolicy
	logger   *zap.Logger

	metrics port.LoginMetrics
	tracer  trace.Tracer
	now     func() time.Time
	pad     func(started time.Time)
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	audit *AuditLogger,
	verifier port.CredentialVerifier,
	hasher port.PinHasher,
	sessions port.SessionIssuer,
	policy domain.LockoutPolicy,
	log *zap.Logger,
	opts ...AuthOption,
) (*AuthService, error) {
	if users == nil || audit == nil || verifier == nil || hasher == nil || sessions == nil {
		return nil, fmt.Errorf("auth service: missing dependency")
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &AuthService{
		users:    users,
		audit:    audit,
		verifier: verifier,
		hasher:   hasher,
		sessions: sessions,
		policy:   policy,
		logger:   log,
		metrics:  noopMetrics{},
		tracer:   noop.NewTracerProvider().Tracer(""),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login validates req and decides the attempt. Credential failures (unknown
// user, wrong PIN, locked or inactive account) all yield
// LoginOutcomeInvalidCredentials; the internal cause is in Reason. An error is
// returned only for malformed input (ErrInvalidLoginInput) and infrastructure
// failures that prevent a decision.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	started := s.now()
	if s.pad != nil {
		defer s.pad(started)
	}

	req.UserIDShort = domain.NormalizeShortID(req.UserIDShort)
	if !req.Valid() {
		return domain.LoginResult{}, ErrInvalidLoginInput
	}

	result, err := s.login(ctx, req, started.UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return domain.LoginResult{}, err
	}

	span.SetAttributes(
		attribute.String("login.outcome", string(result.Outcome)),
		attribute.String("login.reason", string(result.Reason)),
	)
	s.metrics.ObserveLogin(result.Outcome, result.Reason)
	return result, nil
}

func (s *AuthService) login(ctx context.Context, req domain.LoginRequest, now time.Time) (domain.LoginResult, error) {
	log := logger.WithContext(ctx, s.logger).With(
		zap.String("user_id_short", logger.MaskString(req.UserIDShort)),
		zap.String("ip", logger.MaskIP(req.ClientIP)),
	)

	event := domain.AuthEvent{
		OccurredAt:  now,
		UserIDShort: domain.StringPtr(req.UserIDShort),
		IP:          req.ClientIP,
		UserAgent:   req.UserAgent,
		EventType:   domain.AuthEventLogin,
	}

	recent := s.audit.CountRecentFailedLogins(ctx, req.ClientIP, now.Add(-s.policy.Window))
	if recent >= s.policy.MaxFailedAttempts {
		log.Info("login throttled by ip", zap.Int("recent_failures", recent))
		s.audit.Record(ctx, event.WithReason(domain.ReasonIPLocked))
		return rejected(domain.LoginOutcomeTooManyAttempts, domain.ReasonIPLocked), nil
	}

	user, err := s.users.GetByShortID(ctx, req.UserIDShort)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.LoginResult{}, fmt.Errorf("lookup user: %w", err)
		}
		s.equalize(req.Pin)
		s.audit.Record(ctx, event.WithReason(domain.ReasonInvalidCredentials))
		return rejected(domain.LoginOutcomeInvalidCredentials, domain.ReasonInvalidCredentials), nil
	}

	event.UserID = domain.StringPtr(user.ID)

	if s.policy.IsLocked(user.LockedUntil, now) {
		s.equalize(req.Pin)
		log.Info("login rejected for locked account", zap.Timep("locked_until", user.LockedUntil))
		s.audit.Record(ctx, event.WithReason(domain.ReasonUserLocked))
		return rejected(domain.LoginOutcomeInvalidCredentials, domain.ReasonUserLocked), nil
	}

	verified := s.verify(req.Pin, user.PinHash)

	if !verified.OK || !user.Active {
		reason := domain.ReasonInvalidCredentials
		if verified.OK {
			reason = domain.ReasonInactiveUser
		}

		state := s.policy.RecordFailure(user.FailureState(), now)
		if err := s.users.UpdateFailureState(ctx, user.ID, state); err != nil {
			log.Warn("failed to persist failure state", zap.Error(err))
		}
		if state.LockedUntil != nil {
			log.Info("account locked after repeated failures", zap.Int("failed_attempts", state.FailedAttempts))
		} else {
			log.Info("login rejected", zap.String("reason", string(reason)),
				zap.Int("remaining_attempts", s.policy.Remaining(state, now)))
		}

		s.audit.Record(ctx, event.WithReason(reason))
		return rejected(domain.LoginOutcomeInvalidCredentials, reason), nil
	}

	if verified.Legacy {
		s.upgradeCredential(ctx, log, user.ID, req.Pin)
	}

	if err := s.users.UpdateFailureState(ctx, user.ID, s.policy.RecordSuccess()); err != nil {
		log.Warn("failed to reset failure state", zap.Error(err))
	}

	token, expiresAt, err := s.sessions.Issue(user.ID, user.Role)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue session: %w", err)
	}

	event.Success = true
	s.audit.Record(ctx, event)

	return domain.LoginResult{
		Outcome:      domain.LoginOutcomeSuccess,
		Role:         user.Role,
		UserID:       user.ID,
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthService) verify(pin, stored string) domain.VerifyResult {
	start := time.Now()
	defer func() { s.metrics.ObserveVerify(time.Since(start)) }()
	return s.verifier.Verify(pin, stored)
}

func (s *AuthService) equalize(pin string) {
	start := time.Now()
	defer func() { s.metrics.ObserveVerify(time.Since(start)) }()
	s.verifier.Equalize(pin)
}

func (s *AuthService) upgradeCredential(ctx context.Context, log *zap.Logger, userID, pin string) {
	hashed, err := s.hasher.Hash(pin)
	if err != nil {
		log.Warn("failed to hash legacy credential", zap.Error(err))
		return
	}
	if err := s.users.UpdateCredential(ctx, userID, hashed); err != nil {
		log.Warn("failed to upgrade legacy credential", zap.Error(err))
		return
	}
	log.Info("legacy credential upgraded")
}

func rejected(outcome domain.LoginOutcome, reason domain.AuthEventReason) domain.LoginResult {
	return domain.LoginResult{Outcome: outcome, Reason: reason}
}

type noopMetrics struct{}

func (noopMetrics) ObserveLogin(domain.LoginOutcome, domain.AuthEventReason) {}

func (noopMetrics) ObserveVerify(time.Duration) {}
