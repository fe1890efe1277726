package oidcflow

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/oidc-agent/agentd/pkg/crypto"
)

const (
	stateBytes    = 24 // byte length of the state nonce before base64 encoding
	verifierBytes = 32 // fixed-length PKCE code verifier, URL-safe base64
)

// newState generates the 24-byte URL-safe base64 `state` nonce used to
// correlate an authorization-code redirect back to its initiating record.
func newState() (string, error) {
	b, err := crypto.RandBytes(stateBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newPKCEVerifier generates a fixed-length URL-safe base64 PKCE code
// verifier.
func newPKCEVerifier() (string, error) {
	b, err := crypto.RandBytes(verifierBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// pkceChallenge derives the PKCE code challenge from verifier via
// SHA-256 + URL-safe base64 (the "S256" method).
func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
