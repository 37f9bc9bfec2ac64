package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
	"github.com/arklim/timeclock-auth/internal/infra/security"
	"github.com/arklim/timeclock-auth/internal/repository"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User

	lookups       int
	failureWrites int
	lookupErr     error
	failureErr    error
	credentialErr error
}

func newMemUserRepo(users ...domain.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *memUserRepo) get(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.ShortID == user.ShortID {
			return fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) GetByShortID(_ context.Context, shortID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, user := range r.users {
		if user.ShortID == shortID {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) Update(_ context.Context, id string, update domain.UserUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.ShortID != nil {
		for otherID, other := range r.users {
			if otherID != id && other.ShortID == *update.ShortID {
				return fmt.Errorf("update user: %w", repository.ErrConflict)
			}
		}
		user.ShortID = *update.ShortID
	}
	if update.ClearName {
		user.Name = nil
	} else if update.Name != nil {
		user.Name = update.Name
	}
	if update.PinHash != nil {
		user.PinHash = *update.PinHash
	}
	if update.ResetFailures {
		user.ApplyFailureState(domain.FailureState{})
	}
	r.users[id] = user
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) UpdateCredential(_ context.Context, id, pinHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.credentialErr != nil {
		return r.credentialErr
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PinHash = pinHash
	r.users[id] = user
	return nil
}

func (r *memUserRepo) UpdateFailureState(_ context.Context, id string, state domain.FailureState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failureWrites++
	if r.failureErr != nil {
		return r.failureErr
	}
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.ApplyFailureState(state)
	r.users[id] = user
	return nil
}

type memAuthEvents struct {
	mu        sync.Mutex
	events    []domain.AuthEvent
	insertErr error
	countErr  error
}

func (m *memAuthEvents) Insert(_ context.Context, event domain.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memAuthEvents) CountFailedByIP(_ context.Context, eventType domain.AuthEventType, ip string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, event := range m.events {
		if event.EventType == eventType && !event.Success && event.IP == ip && !event.OccurredAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memAuthEvents) all() []domain.AuthEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuthEvent(nil), m.events...)
}

type recordingPublisher struct {
	events []domain.AuthEvent
	err    error
}

func (p *recordingPublisher) PublishAuthEvent(_ context.Context, event domain.AuthEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type failingSessions struct{}

func (failingSessions) Issue(string, domain.Role) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer unavailable")
}

func (failingSessions) Verify(string) (*domain.SessionClaims, error) {
	return nil, errors.New("signer unavailable")
}

var testArgon2Config = security.Argon2Config{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// countingVerifier counts real verifications and dummy equalisations.
type countingVerifier struct {
	mu       sync.Mutex
	inner    port.CredentialVerifier
	verifies int
	dummies  int
}

func (v *countingVerifier) Verify(pin, stored string) domain.VerifyResult {
	v.mu.Lock()
	v.verifies++
	v.mu.Unlock()
	return v.inner.Verify(pin, stored)
}

func (v *countingVerifier) Equalize(pin string) {
	v.mu.Lock()
	v.dummies++
	v.mu.Unlock()
	v.inner.Equalize(pin)
}

func (v *countingVerifier) counts() (verifies, dummies int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifies, v.dummies
}

func (v *countingVerifier) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verifies, v.dummies = 0, 0
}

type authHarness struct {
	service  *AuthService
	verifier *countingVerifier
	users    *memUserRepo
	events   *memAuthEvents
	hasher   *security.Argon2Hasher
	sessions *security.SessionSigner
	now      time.Time
}

func (h *authHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *authHarness) login(t *testing.T, shortID, pin, ip string) domain.LoginResult {
	t.Helper()

	result, err := h.service.Login(context.Background(), domain.LoginRequest{
		UserIDShort: shortID,
		Pin:         pin,
		ClientIP:    ip,
		UserAgent:   "kiosk/1.0",
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	return result
}

func newAuthHarness(t *testing.T, users ...domain.User) *authHarness {
	t.Helper()

	hasher, err := security.NewArgon2Hasher(testArgon2Config)
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	equalizer, err := security.NewTimingEqualizer(hasher, 0)
	if err != nil {
		t.Fatalf("NewTimingEqualizer returned error: %v", err)
	}
	sessions, err := security.NewSessionSigner("test-secret", "timeclock", 0)
	if err != nil {
		t.Fatalf("NewSessionSigner returned error: %v", err)
	}

	logger := zaptest.NewLogger(t)
	h := &authHarness{
		users:    newMemUserRepo(users...),
		events:   &memAuthEvents{},
		hasher:   hasher,
		sessions: sessions,
		now:      time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	sessions.WithClock(clock)

	audit := NewAuditLogger(h.events, nil, logger)
	audit.now = clock
	h.verifier = &countingVerifier{inner: security.NewLegacyVerifier(hasher, equalizer, logger)}

	h.service, err = NewAuthService(
		h.users,
		audit,
		h.verifier,
		hasher,
		sessions,
		domain.DefaultLockoutPolicy(),
		logger,
		WithClock(clock),
	)
	if err != nil {
		t.Fatalf("NewAuthService returned error: %v", err)
	}
	return h
}

func mustHash(t *testing.T, h *authHarness, pin string) string {
	t.Helper()

	encoded, err := h.hasher.Hash(pin)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	return encoded
}

func (h *authHarness) addUser(user domain.User) {
	h.users.mu.Lock()
	defer h.users.mu.Unlock()
	h.users.users[user.ID] = user
}
