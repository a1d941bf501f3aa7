package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"

	"gatehouse/internal/auth/guard"
	"gatehouse/internal/auth/models"
	authservice "gatehouse/internal/auth/service"
	"gatehouse/internal/auth/store"
	"gatehouse/internal/authz"
	"gatehouse/internal/platform/health"
	ratelimitconfig "gatehouse/internal/ratelimit/config"
	ratelimitmodels "gatehouse/internal/ratelimit/models"
	ratelimitservice "gatehouse/internal/ratelimit/service"
	"gatehouse/internal/ratelimit/store/bucket"
	"gatehouse/internal/session"
	"gatehouse/pkg/secrets"
)

const (
	routerTestSigningKey = "0123456789abcdef0123456789abcdef"
	testPassword         = "correct horse battery"
)

type RouterTestSuite struct {
	suite.Suite
	server *httptest.Server
	store  *store.InMemoryUserStore

	admin       *models.Account
	client      *models.Account
	adminToken  string
	clientToken string
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	s.buildServer(nil, 0)
}

func (s *RouterTestSuite) TearDownTest() {
	s.server.Close()
}

// buildServer assembles the real stack end to end. A nil rate limit config
// uses the documented tiers; refreshAfter overrides the session refresh
// threshold when nonzero.
func (s *RouterTestSuite) buildServer(rlConfig *ratelimitconfig.Config, refreshAfter time.Duration) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.store = store.NewInMemoryUserStore()

	g, err := guard.New(s.store, guard.WithLogger(logger))
	s.Require().NoError(err)

	svc, err := authservice.NewService(s.store, g, secrets.NewBcryptHasher(4), authservice.WithLogger(logger))
	s.Require().NoError(err)

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if refreshAfter > 0 {
		sessionOpts = append(sessionOpts, session.WithRefreshAfter(refreshAfter))
	}
	manager, err := session.NewManager(routerTestSigningKey, s.store, sessionOpts...)
	s.Require().NoError(err)

	limiterOpts := []ratelimitservice.Option{ratelimitservice.WithLogger(logger)}
	if rlConfig != nil {
		limiterOpts = append(limiterOpts, ratelimitservice.WithConfig(rlConfig))
	}
	limiter, err := ratelimitservice.New(bucket.New(), limiterOpts...)
	s.Require().NoError(err)

	healthHandler := health.New("test")
	healthHandler.RegisterCheck("user_store", s.store.Ping)

	router := NewRouter(RouterDeps{
		Auth:     NewAuthHandler(svc, manager, g, limiter, logger),
		Accounts: NewAccountHandler(s.store),
		Health:   healthHandler,
		Sessions: manager,
		Limiter:  limiter,
		Global:   rate.NewLimiter(rate.Limit(10000), 10000),
		Logger:   logger,
	})
	s.server = httptest.NewServer(router)

	s.admin = s.seedAccount("admin@example.com", models.RoleAdmin)
	s.client = s.seedAccount("client@example.com", models.RoleClient)
	s.adminToken = s.mustLogin("admin@example.com", "10.9.9.1")
	s.clientToken = s.mustLogin("client@example.com", "10.9.9.2")
}

// seedAccount writes directly into the store so seeding neither burns rate
// limit tiers nor depends on registration, which only mints CLIENT roles.
func (s *RouterTestSuite) seedAccount(email string, role models.Role) *models.Account {
	hash, err := secrets.NewBcryptHasher(4).Hash(testPassword)
	s.Require().NoError(err)

	account := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Seeded Account",
		PasswordHash: hash,
		Role:         role,
	}
	s.Require().NoError(s.store.Create(context.Background(), account))
	return account
}

func (s *RouterTestSuite) request(method, path, ip, token string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterTestSuite) decode(resp *http.Response, dst any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(dst))
}

func (s *RouterTestSuite) mustLogin(email, ip string) string {
	resp := s.request(http.MethodPost, "/auth/login", ip, "", models.LoginRequest{
		Email:    email,
		Password: testPassword,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body models.LoginResponse
	s.decode(resp, &body)
	s.Require().NotEmpty(body.Token)
	return body.Token
}

func (s *RouterTestSuite) TestHealthz() {
	resp := s.request(http.MethodGet, "/healthz", "10.0.0.1", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterTestSuite) TestLoginSuccess() {
	resp := s.request(http.MethodPost, "/auth/login", "10.0.0.2", "", models.LoginRequest{
		Email:    "client@example.com",
		Password: testPassword,
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("no-store", resp.Header.Get("Cache-Control"))

	var body models.LoginResponse
	s.decode(resp, &body)
	s.NotEmpty(body.Token)
	s.Equal(s.client.ID, body.Account.ID)
	s.Equal("client@example.com", body.Account.Email)
}

func (s *RouterTestSuite) TestLoginResponseNeverCarriesPasswordHash() {
	resp := s.request(http.MethodPost, "/auth/login", "10.0.0.3", "", models.LoginRequest{
		Email:    "client@example.com",
		Password: testPassword,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.NotContains(string(raw), "password")
	s.NotContains(string(raw), "hash")
}

func (s *RouterTestSuite) TestLoginFailuresIndistinguishable() {
	wrongPassword := s.request(http.MethodPost, "/auth/login", "10.0.0.4", "", models.LoginRequest{
		Email:    "client@example.com",
		Password: "not the password",
	})
	s.Equal(http.StatusUnauthorized, wrongPassword.StatusCode)
	var wrongBody map[string]any
	s.decode(wrongPassword, &wrongBody)

	unknownEmail := s.request(http.MethodPost, "/auth/login", "10.0.0.4", "", models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	s.Equal(http.StatusUnauthorized, unknownEmail.StatusCode)
	var unknownBody map[string]any
	s.decode(unknownEmail, &unknownBody)

	s.Equal(wrongBody["error"], unknownBody["error"])
	s.Equal(wrongBody["error_description"], unknownBody["error_description"])
}

func (s *RouterTestSuite) TestLoginTierExhaustion() {
	// Unknown email keeps the account lockout out of the picture; the IP
	// still burns through the login tier.
	for i := 0; i < 5; i++ {
		resp := s.request(http.MethodPost, "/auth/login", "10.0.1.1", "", models.LoginRequest{
			Email:    "nobody@example.com",
			Password: "guess",
		})
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	resp := s.request(http.MethodPost, "/auth/login", "10.0.1.1", "", models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "guess",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.Equal("0", resp.Header.Get("X-RateLimit-Remaining"))
	s.NotEmpty(resp.Header.Get("Retry-After"))
}

func (s *RouterTestSuite) TestAccountLockoutOverHTTP() {
	for i := 0; i < 5; i++ {
		// Distinct IPs keep the login tier clear; only the account lockout
		// accumulates.
		resp := s.request(http.MethodPost, "/auth/login", fmt.Sprintf("10.0.2.%d", i+1), "", models.LoginRequest{
			Email:    "client@example.com",
			Password: "brute force guess",
		})
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	resp := s.request(http.MethodPost, "/auth/login", "10.0.2.100", "", models.LoginRequest{
		Email:    "client@example.com",
		Password: testPassword,
	})
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.NotEmpty(resp.Header.Get("Retry-After"))

	var body map[string]any
	s.decode(resp, &body)
	s.Equal("account_locked", body["error"])
}

func (s *RouterTestSuite) TestStandardTierExhaustion() {
	// A narrow standard tier keeps the test fast; the window arithmetic is
	// identical at 60.
	cfg := ratelimitconfig.Default()
	cfg.Tiers[ratelimitmodels.ClassStandard] = ratelimitconfig.Tier{MaxRequests: 3, Window: time.Minute}
	s.server.Close()
	s.buildServer(cfg, 0)

	for i := 0; i < 3; i++ {
		resp := s.request(http.MethodGet, "/auth/me", "10.0.3.1", s.clientToken, nil)
		resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := s.request(http.MethodGet, "/auth/me", "10.0.3.1", s.clientToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.Equal("0", resp.Header.Get("X-RateLimit-Remaining"))
}

func (s *RouterTestSuite) TestRateLimitHeadersOnAllowedResponses() {
	resp := s.request(http.MethodGet, "/auth/me", "10.0.4.1", s.clientToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("60", resp.Header.Get("X-RateLimit-Limit"))
	s.Equal("59", resp.Header.Get("X-RateLimit-Remaining"))
	s.NotEmpty(resp.Header.Get("X-RateLimit-Reset"))
}

func (s *RouterTestSuite) TestRegisterFlow() {
	resp := s.request(http.MethodPost, "/auth/register", "10.0.5.1", "", models.RegisterRequest{
		Email:    "fresh@example.com",
		Name:     "Fresh Account",
		Password: testPassword,
	})
	s.Equal(http.StatusCreated, resp.StatusCode)

	var body models.RegisterResponse
	s.decode(resp, &body)
	s.Equal(models.RoleClient, body.Account.Role)

	token := s.mustLogin("fresh@example.com", "10.0.5.2")
	s.NotEmpty(token)
}

func (s *RouterTestSuite) TestRegisterDuplicateEmail() {
	resp := s.request(http.MethodPost, "/auth/register", "10.0.5.3", "", models.RegisterRequest{
		Email:    "client@example.com",
		Name:     "Impostor",
		Password: testPassword,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *RouterTestSuite) TestRegisterValidation() {
	resp := s.request(http.MethodPost, "/auth/register", "10.0.5.4", "", models.RegisterRequest{
		Email:    "not-an-email",
		Name:     "Bad Email",
		Password: testPassword,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *RouterTestSuite) TestPasswordResetAlwaysAccepted() {
	for _, email := range []string{"client@example.com", "nobody@example.com"} {
		resp := s.request(http.MethodPost, "/auth/password-reset", "10.0.6.1", "", map[string]string{
			"email": email,
		})
		resp.Body.Close()
		s.Equal(http.StatusAccepted, resp.StatusCode)
	}
}

func (s *RouterTestSuite) TestPasswordResetTierExhaustion() {
	for i := 0; i < 3; i++ {
		resp := s.request(http.MethodPost, "/auth/password-reset", "10.0.6.2", "", map[string]string{
			"email": "client@example.com",
		})
		resp.Body.Close()
		s.Equal(http.StatusAccepted, resp.StatusCode)
	}

	resp := s.request(http.MethodPost, "/auth/password-reset", "10.0.6.2", "", map[string]string{
		"email": "client@example.com",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func (s *RouterTestSuite) TestMe() {
	resp := s.request(http.MethodGet, "/auth/me", "10.0.7.1", s.clientToken, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var body MeResponse
	s.decode(resp, &body)
	s.Equal(s.client.ID, body.Account.ID)
	s.False(body.SessionExpires.IsZero())
	s.False(body.LastRefreshed.IsZero())
}

func (s *RouterTestSuite) TestMeWithoutToken() {
	resp := s.request(http.MethodGet, "/auth/me", "10.0.7.2", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterTestSuite) TestMeWithGarbageToken() {
	resp := s.request(http.MethodGet, "/auth/me", "10.0.7.3", "not.a.jwt", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterTestSuite) TestRefreshedTokenHeader() {
	s.server.Close()
	s.buildServer(nil, time.Nanosecond)

	resp := s.request(http.MethodGet, "/auth/me", "10.0.8.1", s.clientToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	rotated := resp.Header.Get(authz.RefreshedTokenHeader)
	s.Require().NotEmpty(rotated)

	// The refresh stamp has one-second precision and the rotation can land in
	// the same wall second as the login, so compare claims, not token bytes.
	before := s.sessionClaims(s.clientToken)
	after := s.sessionClaims(rotated)
	s.GreaterOrEqual(after.LastRefresh.Unix(), before.LastRefresh.Unix())
	s.Equal(before.IssuedAt.Unix(), after.IssuedAt.Unix(), "issue time survives rotation")
	s.Equal(before.ExpiresAt.Unix(), after.ExpiresAt.Unix(), "absolute expiry survives rotation")

	again := s.request(http.MethodGet, "/auth/me", "10.0.8.1", rotated, nil)
	defer again.Body.Close()
	s.Equal(http.StatusOK, again.StatusCode)
}

func (s *RouterTestSuite) sessionClaims(token string) *session.Claims {
	claims := new(session.Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(routerTestSigningKey), nil
	})
	s.Require().NoError(err)
	return claims
}

func (s *RouterTestSuite) TestOwnerRouteAccess() {
	own := s.request(http.MethodGet, "/accounts/"+s.client.ID.String(), "10.0.9.1", s.clientToken, nil)
	s.Equal(http.StatusOK, own.StatusCode)
	var body models.PublicAccount
	s.decode(own, &body)
	s.Equal(s.client.ID, body.ID)

	other := s.request(http.MethodGet, "/accounts/"+s.admin.ID.String(), "10.0.9.1", s.clientToken, nil)
	defer other.Body.Close()
	s.Equal(http.StatusForbidden, other.StatusCode)

	asAdmin := s.request(http.MethodGet, "/accounts/"+s.client.ID.String(), "10.0.9.2", s.adminToken, nil)
	defer asAdmin.Body.Close()
	s.Equal(http.StatusOK, asAdmin.StatusCode)
}

func (s *RouterTestSuite) TestAdminRouteAccess() {
	denied := s.request(http.MethodGet, "/admin/accounts/"+s.client.ID.String(), "10.0.10.1", s.clientToken, nil)
	s.Equal(http.StatusForbidden, denied.StatusCode)
	var body map[string]any
	s.decode(denied, &body)
	s.Contains(body["error_description"], "ADMIN")

	allowed := s.request(http.MethodGet, "/admin/accounts/"+s.client.ID.String(), "10.0.10.2", s.adminToken, nil)
	defer allowed.Body.Close()
	s.Equal(http.StatusOK, allowed.StatusCode)
}

func (s *RouterTestSuite) TestSecurityHeaders() {
	resp := s.request(http.MethodGet, "/healthz", "10.0.11.1", "", nil)
	defer resp.Body.Close()
	s.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
	s.Equal("DENY", resp.Header.Get("X-Frame-Options"))
	s.Empty(resp.Header.Get("Strict-Transport-Security"))
}

func (s *RouterTestSuite) TestErrorBodyShape() {
	resp := s.request(http.MethodPost, "/auth/login", "10.0.12.1", "", models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "guess",
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	var body map[string]any
	s.decode(resp, &body)
	s.Equal("invalid_credentials", body["error"])
	s.NotEmpty(body["error_description"])
	s.EqualValues(http.StatusUnauthorized, body["code"])
	s.NotEmpty(body["timestamp"])
}
