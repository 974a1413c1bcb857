package auth_test

import (
	"testing"

	"github.com/jrsteele09/repo-dashboard/auth"
	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testCodeVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testCodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

// TestCodeChallenge checks the S256 transform against the RFC 7636 appendix B vector
func TestCodeChallenge(t *testing.T) {
	require.Equal(t, testCodeChallenge, auth.CodeChallenge(testCodeVerifier))
}

// TestGenerateVerifier verifies length and uniqueness
func TestGenerateVerifier(t *testing.T) {
	a, err := auth.GenerateVerifier()
	require.NoError(t, err)
	b, err := auth.GenerateVerifier()
	require.NoError(t, err)

	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
	require.NotContains(t, a, "=")
}

// TestSafeRedirect verifies only local paths survive
func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                         "/",
		"/":                        "/",
		"/dashboard?tab=prs":       "/dashboard?tab=prs",
		"dashboard":                "/",
		"//evil.example.com":       "/",
		"/\\evil.example.com":      "/",
		"https://evil.example.com": "/",
		"/ok\r\nSet-Cookie: x=1":   "/",
	}
	for in, want := range tests {
		require.Equal(t, want, auth.SafeRedirect(in), in)
	}
}

// TestValidateRedirect reports foreign targets as ErrInvalidRedirect
func TestValidateRedirect(t *testing.T) {
	require.NoError(t, auth.ValidateRedirect("/dashboard?tab=prs"))
	for _, target := range []string{"", "dashboard", "//evil.example.com", "https://evil.example.com/"} {
		require.ErrorIs(t, auth.ValidateRedirect(target), errors.ErrInvalidRedirect, target)
	}
}
