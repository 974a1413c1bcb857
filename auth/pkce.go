package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const verifierBytes = 32

// GenerateVerifier returns a PKCE code verifier: 32 random bytes, base64url unpadded (43 chars).
func GenerateVerifier() (string, error) {
	return randomString(verifierBytes)
}

// CodeChallenge derives the S256 challenge for a verifier.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func randomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
