package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/config"
	"github.com/arklim/timeclock-auth/internal/infra/database"
	kafkainfra "github.com/arklim/timeclock-auth/internal/infra/kafka"
	"github.com/arklim/timeclock-auth/internal/infra/logger"
	redisinfra "github.com/arklim/timeclock-auth/internal/infra/redis"
	"github.com/arklim/timeclock-auth/internal/infra/security"
	"github.com/arklim/timeclock-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/timeclock-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/timeclock-auth/internal/repository/redis"
	"github.com/arklim/timeclock-auth/internal/transport/http/middleware"
	"github.com/arklim/timeclock-auth/internal/transport/http/routes"
	"github.com/arklim/timeclock-auth/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	store    *postgresrepo.Store
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	var tracer trace.Tracer
	if cfg.Telemetry.TracingEnabled() {
		a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		tracer = a.tracer.Tracer(telemetry.TracerName)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.store = postgresrepo.NewStore(pool)
	repos := a.store.Repositories()

	var throttle port.RequestThrottle
	if cfg.Redis.Enabled() {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		throttle = redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.RateLimitPrefix,
		})
	} else {
		log.Info("redis not configured, request rate limiting disabled")
	}

	var publisher port.AuthEventPublisher
	if cfg.Kafka.Enabled() {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			publisher = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			publisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		publisher = kafkainfra.NewStubPublisher(log)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init argon2 hasher: %w", err)
	}

	equalizer, err := security.NewTimingEqualizer(hasher, cfg.Lockout.MinResponseTime)
	if err != nil {
		return nil, fmt.Errorf("init timing equalizer: %w", err)
	}

	sessions, err := security.NewSessionSigner(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("init session signer: %w", err)
	}

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{SkipPaths: []string{"/metrics"}})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	policy := domain.NewLockoutPolicy(cfg.Lockout.MaxFailedAttempts, cfg.Lockout.Window, cfg.Lockout.LockDuration)
	audit := usecase.NewAuditLogger(repos.AuthEvents, publisher, log)

	authService, err := usecase.NewAuthService(
		repos.Users,
		audit,
		security.NewLegacyVerifier(hasher, equalizer, log),
		hasher,
		sessions,
		policy,
		log,
		usecase.WithLoginMetrics(authMetrics),
		usecase.WithTracer(tracer),
		usecase.WithResponseFloor(equalizer.Pad),
	)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	userService := usecase.NewUserService(repos.Users, hasher, audit)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(throttle, log),
		Metrics:     httpMetrics,
		Sessions:    sessions,
		Database:    a.store,
		Services: routes.ServiceSet{
			Auth:  authService,
			Users: userService,
		},
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	log.Info("lockout policy configured",
		zap.Int("max_failed_attempts", policy.MaxFailedAttempts),
		zap.Duration("window", policy.Window),
		zap.Duration("lock_duration", policy.LockDuration),
		zap.Duration("min_response_time", cfg.Lockout.MinResponseTime),
	)

	ok = true
	return a, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting time clock auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		a.close(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		a.close(context.Background())
		return err
	}
}

// close releases every initialised dependency in reverse order of creation.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shutdown tracer provider", zap.Error(err))
		}
	}
}
