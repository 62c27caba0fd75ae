package unit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clearpay/portal/internal/adapters/memory"
	"github.com/clearpay/portal/internal/adapters/security"
	"github.com/clearpay/portal/internal/application"
	"github.com/clearpay/portal/internal/domain"
	"github.com/clearpay/portal/internal/ports"
)

const allowedOrigin = "https://portal.clearpay.example"

type fakePrincipalRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Principal
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{byID: make(map[uuid.UUID]domain.Principal)}
}

func (r *fakePrincipalRepo) FindByEmail(_ context.Context, email string, kind domain.PrincipalKind) (domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Email == email && p.Kind == kind {
			return p, nil
		}
	}
	return domain.Principal{}, domain.ErrNotFound
}

func (r *fakePrincipalRepo) FindByID(_ context.Context, id uuid.UUID) (domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return domain.Principal{}, domain.ErrNotFound
}

func (r *fakePrincipalRepo) Create(_ context.Context, principal domain.Principal) (domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Email == principal.Email && p.Kind == principal.Kind {
			return domain.Principal{}, domain.ErrConflict
		}
	}
	r.byID[principal.ID] = principal
	return principal, nil
}

func (r *fakePrincipalRepo) UpdateLoginBookkeeping(_ context.Context, id uuid.UUID, lastLoginAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.LastLoginAt = &lastLoginAt
	p.UpdatedAt = lastLoginAt
	r.byID[id] = p
	return nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
}

func (r *fakeAttemptRepo) Insert(_ context.Context, attempt domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) ListRecent(_ context.Context, limit int, since *time.Time) ([]domain.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LoginAttempt, 0, limit)
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if since != nil && r.attempts[i].AttemptAt.Before(*since) {
			continue
		}
		out = append(out, r.attempts[i])
	}
	return out, nil
}

type fixture struct {
	service    *application.Service
	principals *fakePrincipalRepo
	attempts   *fakeAttemptRepo
	events     *memory.EventLog
	hasher     ports.PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer, err := security.NewEphemeralJWTSigner("unit-test-key", 24*time.Hour)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	principals := newFakePrincipalRepo()
	attempts := &fakeAttemptRepo{}
	events := memory.NewEventLog(1024)
	hasher := security.NewArgon2Hasher(security.Argon2Params{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1})

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
			Lockout: ports.LockoutPolicy{
				Threshold:    5,
				BaseDuration: 15 * time.Minute,
				Multiplier:   2,
				MaxDuration:  24 * time.Hour,
			},
			LockoutIdleTTL:  48 * time.Hour,
			RateLimit:       5,
			RateLimitWindow: time.Minute,
			AllowedOrigins:  []string{allowedOrigin},
			AnomalyWindow:   30 * time.Minute,
		},
		Principals:    principals,
		LoginAttempts: attempts,
		Lockouts:      memory.NewLockoutStore(),
		Rates:         memory.NewRateLimitStore(),
		RefreshTokens: memory.NewRefreshTokenStore(),
		Events:        events,
		Hasher:        hasher,
		TokenSigner:   signer,
	})

	return &fixture{
		service:    service,
		principals: principals,
		attempts:   attempts,
		events:     events,
		hasher:     hasher,
	}
}

func (f *fixture) registerCustomer(t *testing.T, email, password string) application.PrincipalSummary {
	t.Helper()
	summary, err := f.service.RegisterCustomer(context.Background(), application.RegisterCustomerRequest{
		Email:    email,
		Password: password,
		FullName: "Test Customer",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return summary
}

func (f *fixture) seedEmployee(t *testing.T, email, password string) domain.Principal {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	now := time.Now().UTC()
	principal, err := f.principals.Create(context.Background(), domain.Principal{
		ID:           uuid.New(),
		Kind:         domain.KindEmployee,
		Email:        email,
		PasswordHash: hash,
		Status:       domain.StatusActive,
		EmployeeID:   "EMP-1001",
		Department:   "fraud-ops",
		Permissions:  []string{"security.unlock"},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	return principal
}

func (f *fixture) hasEvent(t *testing.T, eventType string) bool {
	t.Helper()
	events, err := f.events.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	summary := f.registerCustomer(t, "user@example.com", "Correct-Horse-7x")
	if summary.ID == uuid.Nil {
		t.Fatalf("register returned empty principal id")
	}
	if summary.AccountNumber == "" {
		t.Fatalf("customer must receive an account number")
	}

	loginRes, err := f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
		Email:     "user@example.com",
		Password:  "Correct-Horse-7x",
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginRes.Credentials.AccessToken == "" || loginRes.Credentials.RefreshToken == "" {
		t.Fatalf("login must mint both tokens")
	}

	claims, err := f.service.ValidateAccess(ctx, loginRes.Credentials.AccessToken, "fp-1")
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}
	if claims.PrincipalID != summary.ID {
		t.Fatalf("access token principal mismatch")
	}

	rotated, err := f.service.Rotate(ctx, loginRes.Credentials.RefreshToken, "fp-1")
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rotated.Credentials.RefreshToken == loginRes.Credentials.RefreshToken {
		t.Fatalf("rotation must mint a new refresh token")
	}

	// The superseded refresh token must never exchange again.
	if _, err := f.service.Rotate(ctx, loginRes.Credentials.RefreshToken, "fp-1"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token on replay, got %v", err)
	}
	if !f.hasEvent(t, domain.EventTokenRejected) {
		t.Fatalf("refresh replay must be recorded")
	}

	f.service.Logout(ctx, rotated.Credentials.AccessToken, rotated.Credentials.RefreshToken, "fp-1")
	if _, err := f.service.Rotate(ctx, rotated.Credentials.RefreshToken, "fp-1"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token after logout, got %v", err)
	}
}

func TestEmployeeNamespaceIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.seedEmployee(t, "ops@example.com", "Fraud-Desk-42x")

	if _, err := f.service.Login(ctx, domain.KindEmployee, application.LoginRequest{
		Email:     "ops@example.com",
		Password:  "Fraud-Desk-42x",
		IPAddress: "10.0.0.1",
		UserAgent: "unit-test",
	}); err != nil {
		t.Fatalf("employee login failed: %v", err)
	}

	// Same email in the customer namespace must not resolve.
	if _, err := f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
		Email:     "ops@example.com",
		Password:  "Fraud-Desk-42x",
		IPAddress: "10.0.0.1",
		UserAgent: "unit-test",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials across namespaces, got %v", err)
	}
}

func TestProgressiveLockout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.registerCustomer(t, "victim@example.com", "Correct-Horse-7x")

	badLogin := func() error {
		_, err := f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
			Email:     "victim@example.com",
			Password:  "Wrong-Horse-7x",
			IPAddress: "203.0.113.9",
			UserAgent: "unit-test",
		})
		return err
	}

	for i := 1; i <= 4; i++ {
		if err := badLogin(); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}

	var lockErr *domain.LockoutError
	if err := badLogin(); !errors.As(err, &lockErr) {
		t.Fatalf("attempt 5 must lock the account, got %v", err)
	}
	firstRemaining := lockErr.Remaining
	if firstRemaining <= 14*time.Minute || firstRemaining > 15*time.Minute {
		t.Fatalf("first lockout must last about 15 minutes, got %v", firstRemaining)
	}
	if !f.hasEvent(t, domain.EventAccountLockout) {
		t.Fatalf("lockout must be recorded as a security event")
	}

	// While locked, even the correct password is refused without verification.
	_, err := f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
		Email:     "victim@example.com",
		Password:  "Correct-Horse-7x",
		IPAddress: "203.0.113.9",
		UserAgent: "unit-test",
	})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("locked identity must refuse login, got %v", err)
	}

	status, err := f.service.CheckLocked(ctx, domain.KindCustomer, "victim@example.com")
	if err != nil {
		t.Fatalf("check locked: %v", err)
	}
	if !status.Locked {
		t.Fatalf("check locked must report the active lock")
	}

	// Operator override, then a second round of failures must escalate.
	if err := f.service.Unlock(ctx, domain.KindCustomer, "victim@example.com"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if err := badLogin(); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("post-unlock attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	var secondLock *domain.LockoutError
	if err := badLogin(); !errors.As(err, &secondLock) {
		t.Fatalf("expected a second lockout, got %v", err)
	}
	if secondLock.Remaining <= firstRemaining {
		t.Fatalf("second lockout (%v) must outlast the first (%v)", secondLock.Remaining, firstRemaining)
	}
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.registerCustomer(t, "reset@example.com", "Correct-Horse-7x")

	login := func(password string) error {
		_, err := f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
			Email:     "reset@example.com",
			Password:  password,
			IPAddress: "127.0.0.1",
			UserAgent: "unit-test",
		})
		return err
	}

	for i := 0; i < 4; i++ {
		if err := login("Wrong-Horse-7x"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials, got %v", err)
		}
	}
	if err := login("Correct-Horse-7x"); err != nil {
		t.Fatalf("correct password must still succeed below threshold: %v", err)
	}

	// The counter restarted: four more failures stay short of the threshold.
	for i := 0; i < 4; i++ {
		if err := login("Wrong-Horse-7x"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials after reset, got %v", err)
		}
	}
	if err := login("Correct-Horse-7x"); err != nil {
		t.Fatalf("login must succeed, counter was reset: %v", err)
	}
}

func TestRateLimiterBudget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	fingerprint := domain.Fingerprint("198.51.100.7", "curl/8.0")

	for i := 0; i < 5; i++ {
		if err := f.service.AllowRequest(ctx, fingerprint); err != nil {
			t.Fatalf("request %d within budget failed: %v", i+1, err)
		}
	}

	err := f.service.AllowRequest(ctx, fingerprint)
	var rateErr *domain.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Fatalf("rate limit error must carry a retry hint")
	}
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("rate limit error must unwrap to the sentinel")
	}
	if !f.hasEvent(t, domain.EventRateLimited) {
		t.Fatalf("rate limiting must be recorded")
	}

	// A different client fingerprint keeps its own budget.
	other := domain.Fingerprint("198.51.100.8", "curl/8.0")
	if err := f.service.AllowRequest(ctx, other); err != nil {
		t.Fatalf("other fingerprint must not share the budget: %v", err)
	}
}

func TestCSRFDoubleSubmit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	token, err := f.service.IssueCSRFToken(ctx)
	if err != nil {
		t.Fatalf("issue csrf token: %v", err)
	}

	valid := application.CSRFCheck{
		Method:        http.MethodPost,
		CookieToken:   token,
		HeaderToken:   token,
		ContentType:   "application/json",
		RequestedWith: application.RequestedWithValue,
		Origin:        allowedOrigin,
	}

	cases := []struct {
		name    string
		mutate  func(c application.CSRFCheck) application.CSRFCheck
		wantErr bool
	}{
		{name: "all conditions met", mutate: func(c application.CSRFCheck) application.CSRFCheck { return c }, wantErr: false},
		{name: "safe method bypasses", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			return application.CSRFCheck{Method: http.MethodGet}
		}, wantErr: false},
		{name: "missing header token", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.HeaderToken = ""
			return c
		}, wantErr: true},
		{name: "token mismatch", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.HeaderToken = c.HeaderToken[1:] + "x"
			return c
		}, wantErr: true},
		{name: "form content type", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.ContentType = "application/x-www-form-urlencoded"
			return c
		}, wantErr: true},
		{name: "missing requested-with marker", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.RequestedWith = ""
			return c
		}, wantErr: true},
		{name: "disallowed origin", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.Origin = "https://evil.example"
			return c
		}, wantErr: true},
		{name: "referer fallback allowed", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.Origin = ""
			c.Referer = allowedOrigin + "/login"
			return c
		}, wantErr: false},
		{name: "referer fallback disallowed", mutate: func(c application.CSRFCheck) application.CSRFCheck {
			c.Origin = ""
			c.Referer = "https://evil.example/login"
			return c
		}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := f.service.ValidateCSRF(ctx, tc.mutate(valid))
			if tc.wantErr && !errors.Is(err, domain.ErrCSRFRejected) {
				t.Fatalf("expected csrf rejection, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected pass, got %v", err)
			}
		})
	}
}

func TestCSRFTokensAreSingleIssue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.IssueCSRFToken(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := f.service.IssueCSRFToken(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first == second {
		t.Fatalf("consecutive csrf tokens must differ")
	}

	// The cookie reflects the latest issue, so only the matching pair passes.
	err = f.service.ValidateCSRF(ctx, application.CSRFCheck{
		Method:        http.MethodPost,
		CookieToken:   second,
		HeaderToken:   first,
		ContentType:   "application/json",
		RequestedWith: application.RequestedWithValue,
		Origin:        allowedOrigin,
	})
	if !errors.Is(err, domain.ErrCSRFRejected) {
		t.Fatalf("stale header token must be rejected, got %v", err)
	}
}

func TestThreatClassifier(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	matches := f.service.Classify(ctx, application.RequestSurface{
		Method:      http.MethodPost,
		Path:        "/portal/v1/auth/customer/login",
		Body:        `{"email":"' OR '1'='1","password":"x"}`,
		Fingerprint: "fp-attacker",
	})
	if len(matches) == 0 {
		t.Fatalf("sql injection payload must match")
	}
	if matches[0].Type != domain.EventSQLInjection || matches[0].Severity != domain.SeverityHigh {
		t.Fatalf("expected high-severity sql injection, got %+v", matches[0])
	}
	if !f.hasEvent(t, domain.EventSQLInjection) {
		t.Fatalf("classification must append to the event log")
	}

	benign := f.service.Classify(ctx, application.RequestSurface{
		Method:      http.MethodPost,
		Path:        "/portal/v1/auth/customer/login",
		Body:        `{"email":"user@example.com","password":"Correct-Horse-7x"}`,
		Fingerprint: "fp-normal",
	})
	if len(benign) != 0 {
		t.Fatalf("benign payload must not match, got %+v", benign)
	}

	probe := f.service.Classify(ctx, application.RequestSurface{
		Method:      http.MethodGet,
		Path:        "/wp-admin/setup.php",
		Fingerprint: "fp-scanner",
	})
	if len(probe) != 1 || probe[0].Type != domain.EventReconProbe || probe[0].Severity != domain.SeverityLow {
		t.Fatalf("recon probe must classify low severity, got %+v", probe)
	}
}

func TestSessionAnomalyDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	principal := uuid.New()

	f.service.ObserveSession(ctx, principal, "fp-home", "Mozilla/5.0")
	if f.hasEvent(t, domain.EventSessionAnomaly) {
		t.Fatalf("first observation must not be anomalous")
	}

	f.service.ObserveSession(ctx, principal, "fp-home", "Mozilla/5.0")
	if f.hasEvent(t, domain.EventSessionAnomaly) {
		t.Fatalf("repeat observation must not be anomalous")
	}

	f.service.ObserveSession(ctx, principal, "fp-cafe", "Mozilla/5.0")
	if !f.hasEvent(t, domain.EventSessionAnomaly) {
		t.Fatalf("a new fingerprint mid-window must be recorded")
	}
}

func TestLoginHistoryAudit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.registerCustomer(t, "audit@example.com", "Correct-Horse-7x")

	f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
		Email:     "audit@example.com",
		Password:  "Wrong-Horse-7x",
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	})
	if _, err := f.service.Login(ctx, domain.KindCustomer, application.LoginRequest{
		Email:     "audit@example.com",
		Password:  "Correct-Horse-7x",
		IPAddress: "127.0.0.1",
		UserAgent: "unit-test",
	}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	history, err := f.service.LoginHistory(ctx, 10, nil)
	if err != nil {
		t.Fatalf("login history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(history))
	}
	if history[0].Status != "SUCCESS" {
		t.Fatalf("newest attempt must be the success, got %s", history[0].Status)
	}
	if history[1].Status != "FAILED" || history[1].FailureReason == "" {
		t.Fatalf("failed attempt must carry a reason, got %+v", history[1])
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.registerCustomer(t, "dup@example.com", "Correct-Horse-7x")

	_, err := f.service.RegisterCustomer(ctx, application.RegisterCustomerRequest{
		Email:    "dup@example.com",
		Password: "Correct-Horse-7x",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
}
