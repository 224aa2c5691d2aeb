package oauthmodel

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

const stateLength = 32

// PKCE is a code verifier and its S256 challenge.
type PKCE struct {
	CodeVerifier  string
	CodeChallenge string
	Method        CodeMethodType
}

// NewPKCE generates a fresh 32 byte verifier (RFC 7636 section 4.1).
func NewPKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		CodeVerifier:  verifier,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:        CodeMethodTypeS256,
	}
}

// NewState returns an unguessable base64url state value.
func NewState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
