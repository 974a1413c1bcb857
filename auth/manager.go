package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/repo-dashboard/github"
	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	SessionCookieName = "session"
	StateCookieName   = "oauth_state"
	CallbackPath      = "/callback"

	redirectParam = "redirect_to"
)

var DefaultScopes = []string{"user:email", "repo", "read:org"}

// ProfileFetcher loads the account behind an access token.
type ProfileFetcher interface {
	User(ctx context.Context, accessToken string) (*github.User, error)
}

// SessionHook runs after a successful exchange and before the session cookie is issued.
// An error aborts the login with a 500 and no session.
type SessionHook func(ctx context.Context, account Account, accessToken string) error

// Config holds the GitHub OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	// AuthURL and TokenURL override the GitHub endpoints when set.
	AuthURL  string
	TokenURL string
	// BaseURL is the public origin used for the callback URI. Derived per request when empty.
	BaseURL string
	Secret  []byte
}

// Manager runs the PKCE authorization code flow against GitHub and issues signed
// session cookies. It keeps no server side state.
type Manager struct {
	oauth      oauth2.Config
	baseURL    string
	codec      *TokenCodec
	profiles   ProfileFetcher
	onSession  SessionHook
	now        func() time.Time
	transitTTL time.Duration
	sessionTTL time.Duration
}

type Option func(*Manager)

// WithNowTime overrides the clock used for token issue and expiry checks.
func WithNowTime(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithSessionHook(hook SessionHook) Option {
	return func(m *Manager) {
		m.onSession = hook
	}
}

func WithTTLs(transit, session time.Duration) Option {
	return func(m *Manager) {
		m.transitTTL = transit
		m.sessionTTL = session
	}
}

func NewManager(cfg Config, profiles ProfileFetcher, opts ...Option) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("[NewManager] client id is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("[NewManager] profile fetcher is required")
	}

	endpoint := githuboauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	m := &Manager{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		baseURL:    cfg.BaseURL,
		profiles:   profiles,
		now:        time.Now,
		transitTTL: 600 * time.Second,
		sessionTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(m)
	}

	codec, err := NewTokenCodec(cfg.Secret, m.now)
	if err != nil {
		return nil, fmt.Errorf("[NewManager] %w", err)
	}
	m.codec = codec
	return m, nil
}

// Login starts the flow: it stores the signed transit state in a short lived cookie and
// redirects to GitHub with the same value as the state parameter.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request) {
	verifier, err := GenerateVerifier()
	if err != nil {
		log.Err(err).Msg("generate pkce verifier")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	redirectTo := r.URL.Query().Get(redirectParam)
	if err := ValidateRedirect(redirectTo); err != nil {
		if redirectTo != "" {
			log.Warn().Err(err).Msg("dropping login redirect")
		}
		redirectTo = "/"
	}

	state, err := m.codec.EncodeTransit(redirectTo, verifier, m.transitTTL)
	if err != nil {
		log.Err(err).Msg("encode transit state")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.setCookie(w, StateCookieName, state, int(m.transitTTL.Seconds()))

	cfg := m.configFor(r)
	authURL := cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", CodeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the flow. The state query parameter must equal the transit cookie
// byte for byte before anything else is trusted.
func (m *Manager) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	if err := checkState(cookie.Value, state); err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("oauth callback rejected")
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	transit, err := m.codec.DecodeTransit(state)
	if err != nil {
		log.Warn().Err(err).Msg("invalid oauth transit state")
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	cfg := m.configFor(r)
	accessToken, err := exchange(ctx, cfg, code, transit.CodeVerifier)
	if err != nil {
		log.Warn().Err(err).Msg("oauth code exchange failed")
		http.Error(w, "Failed to get access token", http.StatusBadRequest)
		return
	}

	user, err := m.profiles.User(ctx, accessToken)
	if err != nil {
		log.Warn().Err(err).Msg("fetch github profile")
		http.Error(w, "Failed to get user info", http.StatusBadRequest)
		return
	}
	account := Account{Login: user.Login, ID: user.ID, AvatarURL: user.AvatarURL, Email: user.Email}

	if m.onSession != nil {
		if err := m.onSession(ctx, account, accessToken); err != nil {
			log.Err(err).Str("login", account.Login).Msg("session hook failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	session, _, err := m.codec.EncodeSession(account, accessToken, m.sessionTTL)
	if err != nil {
		log.Err(err).Msg("encode session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.setCookie(w, SessionCookieName, session, int(m.sessionTTL.Seconds()))
	m.clearCookie(w, StateCookieName)
	log.Info().Str("login", account.Login).Msg("login completed")
	http.Redirect(w, r, SafeRedirect(transit.RedirectTo), http.StatusFound)
}

// checkState compares the callback state with the value pinned in the state cookie at login.
func checkState(cookieValue, state string) error {
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(state)) != 1 {
		return errors.ErrStateMismatch
	}
	return nil
}

// exchange trades the authorization code for an access token, proving the PKCE verifier.
func exchange(ctx context.Context, cfg *oauth2.Config, code, verifier string) (string, error) {
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenExchange, err)
	}
	return token.AccessToken, nil
}

// Logout clears the session cookie. It is safe without an active session.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	m.clearCookie(w, SessionCookieName)
	http.Redirect(w, r, SafeRedirect(r.URL.Query().Get(redirectParam)), http.StatusFound)
}

// Session decodes the session cookie. Absent, malformed, tampered and expired cookies
// all yield nil.
func (m *Manager) Session(r *http.Request) *Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := m.codec.DecodeSession(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring session cookie")
		return nil
	}
	return session
}

func (m *Manager) CurrentUser(r *http.Request) *Account {
	session := m.Session(r)
	if session == nil {
		return nil
	}
	account := session.Account
	return &account
}

func (m *Manager) AccessToken(r *http.Request) string {
	session := m.Session(r)
	if session == nil {
		return ""
	}
	return session.AccessToken
}

// Origin returns the public origin for r.
func (m *Manager) Origin(r *http.Request) string {
	if m.baseURL != "" {
		return m.baseURL
	}
	return RequestOrigin(r)
}

func (m *Manager) configFor(r *http.Request) *oauth2.Config {
	cfg := m.oauth
	cfg.RedirectURL = m.Origin(r) + CallbackPath
	return &cfg
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	m.setCookie(w, name, "", -1)
}

// RequestOrigin derives scheme://host from the request, honouring X-Forwarded-Proto.
func RequestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
