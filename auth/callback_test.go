package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// TestCheckState rejects any callback state that differs from the pinned cookie
func TestCheckState(t *testing.T) {
	require.NoError(t, checkState("state-1", "state-1"))
	require.ErrorIs(t, checkState("state-1", "state-2"), errors.ErrStateMismatch)
	require.ErrorIs(t, checkState("state-1", "state-1x"), errors.ErrStateMismatch)
	require.ErrorIs(t, checkState("", "state-1"), errors.ErrStateMismatch)
}

// TestExchange wraps every token endpoint failure in ErrTokenExchange
func TestExchange(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{"issued", http.StatusOK, `{"access_token":"gho_1","token_type":"bearer"}`, "gho_1", nil},
		{"rejected code", http.StatusBadRequest, `{"error":"bad_verification_code"}`, "", errors.ErrTokenExchange},
		{"no access token", http.StatusOK, `{"token_type":"bearer"}`, "", errors.ErrTokenExchange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verifier string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				verifier = r.PostForm.Get("code_verifier")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cfg := &oauth2.Config{
				ClientID: "client-1",
				Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
			}
			token, err := exchange(context.Background(), cfg, "code-1", "verifier-1")
			require.Equal(t, "verifier-1", verifier)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, token)
		})
	}
}
