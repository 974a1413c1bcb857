package auth

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenIssuer     = "repo-dashboard"
	sessionAudience = "session"
	transitAudience = "oauth_state"
)

// Account is the identity snapshot carried in a session.
type Account struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Session is the decoded session cookie.
type Session struct {
	Account     Account
	AccessToken string
}

// TransitState is the decoded OAuth state round-tripped through GitHub.
type TransitState struct {
	RedirectTo   string
	CodeVerifier string
}

type sessionClaims struct {
	Account     Account `json:"acct"`
	AccessToken string  `json:"tok"`
	jwt.RegisteredClaims
}

type transitClaims struct {
	RedirectTo   string `json:"rt,omitempty"`
	CodeVerifier string `json:"cv"`
	jwt.RegisteredClaims
}

// TokenCodec signs session and transit values as HS256 JWTs. Each kind uses its own key
// derived from the root secret, so a transit token can never be replayed as a session.
type TokenCodec struct {
	sessionKey []byte
	transitKey []byte
	now        func() time.Time
}

func NewTokenCodec(secret []byte, now func() time.Time) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("[NewTokenCodec] secret is required")
	}
	if now == nil {
		now = time.Now
	}
	sessionKey, err := deriveKey(secret, sessionAudience)
	if err != nil {
		return nil, err
	}
	transitKey, err := deriveKey(secret, transitAudience)
	if err != nil {
		return nil, err
	}
	return &TokenCodec{sessionKey: sessionKey, transitKey: transitKey, now: now}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

func (c *TokenCodec) EncodeSession(account Account, accessToken string, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(ttl)
	claims := sessionClaims{
		Account:          account,
		AccessToken:      accessToken,
		RegisteredClaims: c.registered(sessionAudience, account.Login, now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.sessionKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

func (c *TokenCodec) DecodeSession(raw string) (*Session, error) {
	var claims sessionClaims
	if err := c.parse(raw, &claims, c.sessionKey, sessionAudience); err != nil {
		return nil, err
	}
	if claims.Account.Login == "" || claims.AccessToken == "" {
		return nil, errors.ErrInvalidSession
	}
	return &Session{
		Account:     claims.Account,
		AccessToken: claims.AccessToken,
	}, nil
}

func (c *TokenCodec) EncodeTransit(redirectTo, verifier string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := transitClaims{
		RedirectTo:       redirectTo,
		CodeVerifier:     verifier,
		RegisteredClaims: c.registered(transitAudience, "", now, now.Add(ttl)),
	}
	nonce, err := randomString(16)
	if err != nil {
		return "", err
	}
	claims.ID = nonce
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.transitKey)
	if err != nil {
		return "", fmt.Errorf("sign transit state: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) DecodeTransit(raw string) (*TransitState, error) {
	var claims transitClaims
	if err := c.parse(raw, &claims, c.transitKey, transitAudience); err != nil {
		return nil, err
	}
	if claims.CodeVerifier == "" {
		return nil, errors.ErrInvalidState
	}
	return &TransitState{
		RedirectTo:   claims.RedirectTo,
		CodeVerifier: claims.CodeVerifier,
	}, nil
}

func (c *TokenCodec) registered(audience, subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (c *TokenCodec) parse(raw string, claims jwt.Claims, key []byte, audience string) error {
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return errors.Wrapf(errors.ErrSessionExpired, "%s token", audience)
		}
		return fmt.Errorf("%w: %v", errors.ErrInvalidState, err)
	}
	return nil
}
