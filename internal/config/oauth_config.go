package config

import (
	"strings"
	"time"
)

// OAuthConfig describes the GitHub OAuth application used for login.
type OAuthConfig interface {
	GetGitHubClientID() string
	GetGitHubClientSecret() string
	GetGitHubScopes() []string
	GetGitHubAuthURL() string
	GetGitHubTokenURL() string
	GetGitHubAPIURL() string
	GetTransitStateExpiry() time.Duration
	GetSessionExpiry() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGitHubClientID() string {
	return GetEnv("GITHUB_CLIENT_ID", "")
}

func (OAuth) GetGitHubClientSecret() string {
	return GetEnv("GITHUB_CLIENT_SECRET", "")
}

func (OAuth) GetGitHubScopes() []string {
	return strings.Fields(GetEnv("GITHUB_SCOPES", "user:email repo read:org"))
}

func (OAuth) GetGitHubAuthURL() string {
	return GetEnv("GITHUB_AUTH_URL", "https://github.com/login/oauth/authorize")
}

func (OAuth) GetGitHubTokenURL() string {
	return GetEnv("GITHUB_TOKEN_URL", "https://github.com/login/oauth/access_token")
}

func (OAuth) GetGitHubAPIURL() string {
	return strings.TrimSuffix(GetEnv("GITHUB_API_URL", "https://api.github.com"), "/")
}

func (OAuth) GetTransitStateExpiry() time.Duration {
	return 600 * time.Second
}

func (OAuth) GetSessionExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
