package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/infra/config"
	"github.com/arklim/timeclock-auth/internal/infra/security"
	redisrepo "github.com/arklim/timeclock-auth/internal/repository/redis"
	"github.com/arklim/timeclock-auth/internal/transport/http/middleware"
	httproutes "github.com/arklim/timeclock-auth/internal/transport/http/routes"
	"github.com/arklim/timeclock-auth/internal/usecase"
)

type stubAuth struct {
	calls     int
	clientIPs []string
}

func (s *stubAuth) Login(_ context.Context, req domain.LoginRequest) (domain.LoginResult, error) {
	s.calls++
	s.clientIPs = append(s.clientIPs, req.ClientIP)
	return domain.LoginResult{Outcome: domain.LoginOutcomeInvalidCredentials}, nil
}

type stubUsers struct{}

func (stubUsers) CurrentUser(context.Context, domain.SessionClaims) (*domain.User, error) {
	return nil, nil
}

func (stubUsers) CreateUser(context.Context, usecase.RequestMeta, usecase.CreateUserInput) (*domain.User, error) {
	return &domain.User{ID: "id", ShortID: "08", Role: domain.RoleEmployee, Active: true}, nil
}

func (stubUsers) UpdateUser(context.Context, usecase.RequestMeta, string, usecase.UpdateUserInput) error {
	return nil
}

func (stubUsers) DeleteUser(context.Context, usecase.RequestMeta, string) error {
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App:       config.AppSettings{Env: "test"},
		Session:   config.SessionSettings{CookieName: "session", TTL: time.Hour},
		RateLimit: config.RateLimitSettings{LoginMaxAttempts: 2, WindowDuration: time.Minute},
	}
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config:   testConfig(),
		Logger:   zaptest.NewLogger(t),
		Database: pinger{},
		Cache:    pinger{err: errors.New("redis down")},
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "redis down") {
		t.Fatalf("expected 503 naming redis, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestLoginRouteIsRateLimitedAndInstrumented(t *testing.T) {
	gin.SetMode(gin.TestMode)

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry, SkipPaths: []string{"/metrics"}})
	if err != nil {
		t.Fatalf("NewHTTPMetrics returned error: %v", err)
	}

	signer, err := security.NewSessionSigner("routes-secret", "timeclock", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionSigner returned error: %v", err)
	}

	auth := &stubAuth{}
	logger := zaptest.NewLogger(t)
	throttle := redisrepo.NewRateLimitRepository(client, redisrepo.SlidingWindowConfig{KeyPrefix: "test"})

	r := httproutes.Register(httproutes.Dependencies{
		Config:         testConfig(),
		Logger:         logger,
		RateLimiter:    middleware.NewRateLimiter(throttle, logger),
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Sessions:       signer,
		Services:       httproutes.ServiceSet{Auth: auth, Users: stubUsers{}},
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"userId":"07","pin":"1234"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		statuses = append(statuses, rr.Code)
	}

	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("unexpected status sequence %v", statuses)
		}
	}
	if auth.calls != 2 {
		t.Fatalf("expected limiter to stop the third attempt, got %d calls", auth.calls)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `timeclock_http_requests_total{method="POST",route="/api/v1/auth/login",status="429"} 1`) {
		t.Fatalf("expected login metrics in scrape output:\n%s", rr.Body.String())
	}
}

func TestAdminRoutesRequireAdminSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	signer, err := security.NewSessionSigner("routes-secret", "timeclock", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionSigner returned error: %v", err)
	}
	r := httproutes.Register(httproutes.Dependencies{
		Config:   testConfig(),
		Logger:   zaptest.NewLogger(t),
		Sessions: signer,
		Services: httproutes.ServiceSet{Auth: &stubAuth{}, Users: stubUsers{}},
	})

	token, _, err := signer.Issue("admin-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	for _, cookie := range []*http.Cookie{nil, {Name: "session", Value: token}} {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/abc", nil)
		want := http.StatusForbidden
		if cookie != nil {
			req.AddCookie(cookie)
			want = http.StatusOK
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("expected %d, got %d", want, rr.Code)
		}
	}
}

func TestLoginClientIPIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		proxies []string
		want    []string
	}{
		{name: "no trusted proxies", want: []string{"203.0.113.7", "203.0.113.7", "203.0.113.7"}},
		{name: "peer is a trusted proxy", proxies: []string{"203.0.113.0/24"}, want: []string{"10.9.9.0", "10.9.9.1", "10.9.9.2"}},
		{name: "invalid proxy list", proxies: []string{"not-an-ip"}, want: []string{"203.0.113.7", "203.0.113.7", "203.0.113.7"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.App.TrustedProxies = tc.proxies

			auth := &stubAuth{}
			r := httproutes.Register(httproutes.Dependencies{
				Config:   cfg,
				Logger:   zaptest.NewLogger(t),
				Services: httproutes.ServiceSet{Auth: auth, Users: stubUsers{}},
			})

			for i := 0; i < 3; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"userId":"07","pin":"1234"}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Forwarded-For", "10.9.9."+strconv.Itoa(i))
				req.RemoteAddr = "203.0.113.7:41000"
				r.ServeHTTP(httptest.NewRecorder(), req)
			}

			if len(auth.clientIPs) != len(tc.want) {
				t.Fatalf("expected %d logins, got %v", len(tc.want), auth.clientIPs)
			}
			for i := range tc.want {
				if auth.clientIPs[i] != tc.want[i] {
					t.Fatalf("expected client ips %v, got %v", tc.want, auth.clientIPs)
				}
			}
		})
	}
}
