package config

import "time"

const (
	stateTTLVar      = "IDP_OWOX_STATE_TTL"
	cookieSecretVar  = "IDP_OWOX_COOKIE_SECRET"
	secureCookiesVar = "IDP_OWOX_SECURE_COOKIES"
)

type SecurityConfig interface {
	GetStateTTL() time.Duration
	GetCookieSecret() string
	GetSecureCookies() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetStateTTL bounds a single redirect round-trip.
func (Security) GetStateTTL() time.Duration {
	return GetEnvDuration(stateTTLVar, time.Minute)
}

func (Security) GetCookieSecret() string {
	return GetEnv(cookieSecretVar, "")
}

// GetSecureCookies forces the Secure attribute regardless of the request scheme.
// It also decides the name the social-login provider gives its session cookie.
func (Security) GetSecureCookies() bool {
	return GetEnvBool(secureCookiesVar, false)
}
