package config

import (
	"net/url"
	"strings"
)

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

// NewAllowedOrigins normalizes each entry to scheme://host[:port]. Entries that
// are not absolute URLs are skipped, except the "*" wildcard.
func NewAllowedOrigins(origins ...string) AllowedOrigins {
	allowed := make(AllowedOrigins, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowed[o] = nullValue{}
			continue
		}
		if origin, ok := OriginOf(o); ok {
			allowed[origin] = nullValue{}
		}
	}
	return allowed
}

// OriginOf returns the lower-cased scheme://host of an absolute http(s) URL.
func OriginOf(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	if normalized, ok := OriginOf(origin); ok {
		origin = normalized
	}
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins returns the Platform origins; they are trusted both for
// redirect pass-through and for credentialed CORS calls to the token endpoint.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	return NewAllowedOrigins(GetEnvList(allowedRedirectOriginsVar)...)
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization, X-OWOX-Authorization"
}
