package config

import (
	"strings"
	"time"
)

const (
	clientIDVar            = "IDP_OWOX_CLIENT_ID"
	identityBaseURLVar     = "IDP_OWOX_BASE_URL"
	backchannelPrefixVar   = "IDP_OWOX_BACKCHANNEL_PREFIX"
	backchannelTokenVar    = "IDP_OWOX_BACKCHANNEL_TOKEN"
	identityTimeoutVar     = "IDP_OWOX_TIMEOUT"
	jwtIssuerVar           = "IDP_OWOX_JWT_ISSUER"
	jwtClockToleranceVar   = "IDP_OWOX_JWT_CLOCK_TOLERANCE"
	jwtKeyCacheTTLVar      = "IDP_OWOX_JWT_CACHE_TTL"
	defaultIdentityTimeout = 3 * time.Second
)

// IdentityConfig describes the Identity Authority the bridge talks to.
type IdentityConfig interface {
	GetClientID() string
	GetIdentityBaseURL() string
	GetBackchannelPrefix() string
	GetBackchannelToken() string
	GetIdentityTimeout() time.Duration
	GetJWTIssuer() string
	GetJWTClockTolerance() time.Duration
	GetJWTKeyCacheTTL() time.Duration
	GetJWKSURL() string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

func (Identity) GetIdentityBaseURL() string {
	return strings.TrimRight(GetEnv(identityBaseURLVar, ""), "/")
}

func (Identity) GetBackchannelPrefix() string {
	prefix := strings.TrimRight(GetEnv(backchannelPrefixVar, "/api/backchannel"), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func (Identity) GetIdentityTimeout() time.Duration {
	return GetEnvDuration(identityTimeoutVar, defaultIdentityTimeout)
}

// GetJWTIssuer defaults to the Identity Authority base URL.
func (i Identity) GetJWTIssuer() string {
	return GetEnv(jwtIssuerVar, i.GetIdentityBaseURL())
}

func (Identity) GetJWTClockTolerance() time.Duration {
	return GetEnvDuration(jwtClockToleranceVar, 5*time.Second)
}

func (Identity) GetJWTKeyCacheTTL() time.Duration {
	return GetEnvDuration(jwtKeyCacheTTLVar, time.Hour)
}

func (i Identity) GetJWKSURL() string {
	return i.GetIdentityBaseURL() + "/api/idp/.well-known/jwks.json"
}

// GetBackchannelToken is the bearer credential for the auth-flow completion API.
func (Identity) GetBackchannelToken() string {
	return GetEnv(backchannelTokenVar, "")
}
