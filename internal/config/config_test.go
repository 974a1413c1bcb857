package config_test

import (
	"net/netip"
	"testing"

	"github.com/jrsteele09/repo-dashboard/internal/config"
	"github.com/stretchr/testify/require"
)

// TestEnvDefaults verifies the defaults used when nothing is configured
func TestEnvDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SYNC_PAGE_SIZE", "")
	t.Setenv("GITHUB_SCOPES", "")
	t.Setenv("TRUSTED_PROXIES", "")

	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, 100, c.GetSyncPageSize())
	require.Equal(t, 2, c.GetSyncHourUTC())
	require.Equal(t, []string{"user:email", "repo", "read:org"}, c.GetGitHubScopes())
	require.Empty(t, c.GetDatabaseURL())
	require.Empty(t, c.GetTrustedProxies())
}

// TestEnvOverrides verifies environment values replace defaults
func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("SYNC_MAX_PAGES", "5")
	t.Setenv("SYNC_PAGE_SIZE", "not-a-number")
	t.Setenv("BASE_URL", "https://dash.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	c := config.New()
	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 5, c.GetSyncMaxPages())
	require.Equal(t, 100, c.GetSyncPageSize())
	require.Equal(t, "https://dash.example.com", c.GetBaseURL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example.com"))
}

// TestTrustedProxies parses addresses and ranges and skips junk entries
func TestTrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7, not-an-ip, ,2001:db8::/32")

	proxies := config.New().GetTrustedProxies()
	require.Len(t, proxies, 3)
	require.True(t, proxies.Contains(netip.MustParseAddr("10.1.2.3")))
	require.True(t, proxies.Contains(netip.MustParseAddr("192.0.2.7")))
	require.True(t, proxies.Contains(netip.MustParseAddr("::ffff:192.0.2.7")))
	require.True(t, proxies.Contains(netip.MustParseAddr("2001:db8::1")))
	require.False(t, proxies.Contains(netip.MustParseAddr("192.0.2.8")))
	require.False(t, proxies.Contains(netip.MustParseAddr("203.0.113.9")))
}
