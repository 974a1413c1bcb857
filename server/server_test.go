package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/repo-dashboard/auth"
	"github.com/jrsteele09/repo-dashboard/billing"
	"github.com/jrsteele09/repo-dashboard/cache"
	"github.com/jrsteele09/repo-dashboard/dashboard"
	"github.com/jrsteele09/repo-dashboard/github"
	"github.com/jrsteele09/repo-dashboard/internal/config"
	"github.com/jrsteele09/repo-dashboard/server"
	"github.com/jrsteele09/repo-dashboard/subscriptions"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "0123456789abcdef0123456789abcdef"
	testLogin       = "octocat"
	testToken       = "gho_octocat"
	testPaymentURL  = "https://buy.stripe.com/test_abc"
	testCustomerID  = "cus_123"
	testAllowedSite = "https://app.example.com"
)

type fakeGitHub struct{}

func (fakeGitHub) User(_ context.Context, accessToken string) (*github.User, error) {
	return &github.User{Login: strings.TrimPrefix(accessToken, "gho_"), ID: 42}, nil
}

func (fakeGitHub) ListPage(context.Context, string, string, url.Values, int, int) ([]json.RawMessage, error) {
	return []json.RawMessage{json.RawMessage(`{"full_name":"octocat/hello-world","html_url":"https://github.com/octocat/hello-world"}`)}, nil
}

func (fakeGitHub) SearchIssues(context.Context, string, string, int) ([]json.RawMessage, error) {
	return []json.RawMessage{}, nil
}

type fakeCustomers struct{}

func (fakeCustomers) CustomerEmail(context.Context, string) (string, bool, error) {
	return "octocat@example.com", false, nil
}

func (fakeCustomers) PortalSessionURL(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.stripe.com/p/session/" + customerID + "?return_url=" + url.QueryEscape(returnURL), nil
}

// testFixture is a fully wired server backed by in-memory tiers and fake upstreams
type testFixture struct {
	srv    *server.Server
	repo   *subscriptions.InMemoryRepo
	engine *dashboard.Engine
	codec  *auth.TokenCodec
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("APP_NAME", "Repo Dashboard")
	t.Setenv("CORS_ALLOWED_ORIGINS", testAllowedSite)
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("LOGIN_RATE_LIMIT", "0.0001")
	t.Setenv("LOGIN_RATE_BURST", "2")

	repo := subscriptions.NewInMemoryRepo()
	manager, err := auth.NewManager(auth.Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Secret:       []byte(testSecret),
	}, fakeGitHub{})
	require.NoError(t, err)

	processor, err := billing.NewProcessor(billing.Config{
		WebhookSecret:  "whsec_test",
		PaymentLinkID:  "plink_1",
		PaymentLinkURL: testPaymentURL,
	}, fakeCustomers{}, billing.Hooks{
		OnSubscribe: func(ctx context.Context, login, email, customerID string) error {
			return repo.ActivateSubscription(ctx, login, email, customerID)
		},
		OnCancel: repo.DeactivateByEmail,
	})
	require.NoError(t, err)

	renderer, err := dashboard.NewRenderer()
	require.NoError(t, err)
	engine, err := dashboard.NewEngine(repo, cache.NewInMemoryStore(), fakeGitHub{}, renderer)
	require.NoError(t, err)

	srv, err := server.New(config.New(), manager, processor, repo, engine)
	require.NoError(t, err)

	codec, err := auth.NewTokenCodec([]byte(testSecret), nil)
	require.NoError(t, err)

	return &testFixture{srv: srv, repo: repo, engine: engine, codec: codec}
}

func (f *testFixture) sessionCookie(t *testing.T, login string) *http.Cookie {
	t.Helper()
	value, _, err := f.codec.EncodeSession(auth.Account{Login: login, ID: 42}, "gho_"+login, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: value}
}

func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) get(t *testing.T, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return f.do(req)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// TestIndexAnonymous shows the landing page without a session
func TestIndexAnonymous(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Sign in with GitHub")
	require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

// TestIndexTamperedSession treats a forged cookie as anonymous
func TestIndexTamperedSession(t *testing.T) {
	f := setupTestFixture(t)
	cookie := f.sessionCookie(t, testLogin)
	cookie.Value = "x" + cookie.Value

	rec := f.get(t, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Sign in with GitHub")
}

// TestIndexInactiveShowsPricing offers the per-account payment link
func TestIndexInactiveShowsPricing(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.repo.UpsertCredential(context.Background(), testLogin, testToken))

	rec := f.get(t, "/", f.sessionCookie(t, testLogin))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, testPaymentURL)
	require.Contains(t, body, "client_reference_id=octocat")
}

// TestIndexActiveServesDashboard renders a placeholder until the first refresh, then the stored page
func TestIndexActiveServesDashboard(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.repo.UpsertCredential(ctx, testLogin, testToken))
	require.NoError(t, f.repo.ActivateSubscription(ctx, testLogin, "octocat@example.com", testCustomerID))
	cookie := f.sessionCookie(t, testLogin)

	rec := f.get(t, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), dashboard.GeneratingLabel)

	require.NoError(t, f.engine.RefreshAccount(ctx, testLogin, testToken))
	rec = f.get(t, "/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "octocat/hello-world")
	require.NotContains(t, rec.Body.String(), dashboard.GeneratingLabel)
}

// TestUnknownPathNotFound only serves the index at the root
func TestUnknownPathNotFound(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.get(t, "/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestAPIUser requires a session and returns the account snapshot
func TestAPIUser(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, server.RouteAPIUser, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Not authenticated", decodeJSON(t, rec)["error"])

	rec = f.get(t, server.RouteAPIUser, f.sessionCookie(t, testLogin))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	require.Equal(t, testLogin, body["login"])
	require.EqualValues(t, 42, body["id"])
	require.NotContains(t, rec.Body.String(), testToken, "the access token never leaves the cookie")
}

// TestPortalSession covers the unauthenticated, no customer and success branches
func TestPortalSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	rec := f.get(t, server.RouteAPIPortalSession, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, f.repo.UpsertCredential(ctx, testLogin, testToken))
	rec = f.get(t, server.RouteAPIPortalSession, f.sessionCookie(t, testLogin))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "No subscription found", decodeJSON(t, rec)["error"])

	require.NoError(t, f.repo.ActivateSubscription(ctx, testLogin, "octocat@example.com", testCustomerID))
	rec = f.get(t, server.RouteAPIPortalSession, f.sessionCookie(t, testLogin))
	require.Equal(t, http.StatusOK, rec.Code)
	portal, ok := decodeJSON(t, rec)["url"].(string)
	require.True(t, ok)
	require.Contains(t, portal, testCustomerID)
	require.Contains(t, portal, url.QueryEscape("http://example.com/"))
}

// TestWebhookRoutes accepts deliveries on both paths and rejects empty bodies
func TestWebhookRoutes(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{server.RouteWebhook, server.RouteWebhookStripe} {
		rec := f.do(httptest.NewRequest(http.MethodPost, path, strings.NewReader("")))
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		require.Equal(t, "No body", decodeJSON(t, rec)["error"], path)

		rec = f.do(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"type":"checkout.session.completed"}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		require.Equal(t, "No signature", decodeJSON(t, rec)["error"], path)
	}

	rec := f.get(t, server.RouteWebhook, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestLoginRedirectsAndRateLimits sends the browser to GitHub until the per-IP budget runs out
func TestLoginRedirectsAndRateLimits(t *testing.T) {
	f := setupTestFixture(t)

	for i := 0; i < 2; i++ {
		rec := f.get(t, server.RouteLogin, nil)
		require.Equal(t, http.StatusFound, rec.Code)
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "github.com", location.Host)
		require.Equal(t, "S256", location.Query().Get("code_challenge_method"))
		require.Equal(t, "http://example.com/callback", location.Query().Get("redirect_uri"))
	}

	rec := f.get(t, server.RouteLogin, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	req := httptest.NewRequest(http.MethodGet, server.RouteLogin, nil)
	req.RemoteAddr = "198.51.100.4:5555"
	rec = f.do(req)
	require.Equal(t, http.StatusFound, rec.Code, "other clients keep their own budget")
}

// TestLoginRateLimitIgnoresForwardedFor keeps throttling a peer that rotates X-Forwarded-For
func TestLoginRateLimitIgnoresForwardedFor(t *testing.T) {
	f := setupTestFixture(t)

	blocked := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, server.RouteLogin, nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		if f.do(req).Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	require.Equal(t, 8, blocked)
}

// TestLoginRateLimitTrustedProxy keys on the forwarded client when the peer is a trusted proxy
func TestLoginRateLimitTrustedProxy(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")
	f := setupTestFixture(t)

	login := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, server.RouteLogin, nil)
		req.RemoteAddr = "10.0.0.2:8443"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		return f.do(req).Code
	}

	// The left-most hop is written by the client and must not change the bucket
	require.Equal(t, http.StatusFound, login("1.1.1.1, 203.0.113.9"))
	require.Equal(t, http.StatusFound, login("2.2.2.2, 203.0.113.9, 10.0.0.7"))
	require.Equal(t, http.StatusTooManyRequests, login("3.3.3.3, 203.0.113.9"))

	require.Equal(t, http.StatusFound, login("203.0.113.10"), "other clients behind the proxy keep their own budget")
}

// TestLogoutClearsSession expires the session cookie and redirects home
func TestLogoutClearsSession(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, server.RouteLogout, f.sessionCookie(t, testLogin))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cleared = c.MaxAge < 0
		}
	}
	require.True(t, cleared)
}

// TestCorsPreflight answers allowed origins only
func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAPIUser, nil)
	req.Header.Set("Origin", testAllowedSite)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, testAllowedSite, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, server.RouteAPIUser, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestHealthAndRequestID reports liveness and echoes a request id
func TestHealthAndRequestID(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get(t, server.RouteHealth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON(t, rec)["status"])

	rec = f.get(t, server.RouteAPIUser, nil)
	require.NotEmpty(t, rec.Header().Get(server.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, server.RouteAPIUser, nil)
	req.Header.Set(server.RequestIDHeader, "req-123")
	rec = f.do(req)
	require.Equal(t, "req-123", rec.Header().Get(server.RequestIDHeader))
}

// TestRecoverMiddleware answers 500 when a handler panics
func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	handler := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, f.srv.LoggingMiddleware, f.srv.RecoverMiddleware)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
