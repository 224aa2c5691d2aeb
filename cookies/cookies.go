package cookies

import (
	"net/http"
	"strings"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/rs/zerolog/log"
)

const (
	// RefreshTokenCookie holds the Identity Authority refresh token.
	RefreshTokenCookie = "refreshToken"
	// StateCookie carries the Platform state across the social-login round-trip.
	StateCookie = "idp-owox-state"
	// ParamsCookie carries the sealed PlatformParams across the same round-trip.
	ParamsCookie = "idp-owox-params"

	// SocialSessionCookie is the bare name of the social-login session cookie.
	SocialSessionCookie = "better-auth.session_token"
	SecurePrefix        = "__Secure-"
	HostPrefix          = "__Host-"

	platformCookieMaxAge = 15 * time.Minute
)

// socialCookies are the provider cookies that must not outlive a finished flow.
var socialCookies = []string{
	SocialSessionCookie,
	"better-auth.session_data",
	"better-auth.dont_remember",
}

// Jar writes and reads the bridge cookies. Every cookie is HttpOnly, SameSite=Lax,
// Path=/ and Secure when the request came over https or secure cookies are forced.
type Jar struct {
	forceSecure bool
	sealer      *Sealer
}

func NewJar(forceSecure bool, sealer *Sealer) *Jar {
	return &Jar{forceSecure: forceSecure, sealer: sealer}
}

// IsSecure reports whether cookies for r get the Secure attribute.
func (j *Jar) IsSecure(r *http.Request) bool {
	return j.forceSecure || Scheme(r) == "https"
}

// Scheme determines the scheme (http/https), honouring X-Forwarded-Proto.
func Scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(scheme, ",")[0]))
	}
	return "http"
}

// Set writes a cookie living maxAge seconds.
func (j *Jar) Set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.IsSecure(r) || isPrefixed(name),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// Clear expires a cookie immediately.
func (j *Jar) Clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   j.IsSecure(r) || isPrefixed(name),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func isPrefixed(name string) bool {
	return strings.HasPrefix(name, SecurePrefix) || strings.HasPrefix(name, HostPrefix)
}

// Value returns the cookie value or "".
func Value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (j *Jar) SetRefreshToken(w http.ResponseWriter, r *http.Request, token string, maxAge int64) {
	j.Set(w, r, RefreshTokenCookie, token, int(maxAge))
}

func (j *Jar) RefreshToken(r *http.Request) string {
	return Value(r, RefreshTokenCookie)
}

func (j *Jar) ClearRefreshToken(w http.ResponseWriter, r *http.Request) {
	j.Clear(w, r, RefreshTokenCookie)
}

func (j *Jar) SetState(w http.ResponseWriter, r *http.Request, state string) {
	j.Set(w, r, StateCookie, state, int(platformCookieMaxAge.Seconds()))
}

func (j *Jar) State(r *http.Request) string {
	return Value(r, StateCookie)
}

// SetParams stores the pass-through params sealed, so they cannot be edited client side.
func (j *Jar) SetParams(w http.ResponseWriter, r *http.Request, params oauthmodel.PlatformParams) {
	if params.IsEmpty() {
		return
	}
	data, err := params.MarshalBinary()
	if err != nil {
		log.Err(err).Msg("Failed to encode platform params cookie")
		return
	}
	sealed, err := j.sealer.Seal(data)
	if err != nil {
		log.Err(err).Msg("Failed to seal platform params cookie")
		return
	}
	j.Set(w, r, ParamsCookie, sealed, int(platformCookieMaxAge.Seconds()))
}

// Params returns the sealed params, or empty params when the cookie is absent or tampered with.
func (j *Jar) Params(r *http.Request) oauthmodel.PlatformParams {
	var params oauthmodel.PlatformParams
	value := Value(r, ParamsCookie)
	if value == "" {
		return params
	}
	data, err := j.sealer.Open(value)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable platform params cookie")
		return params
	}
	if err := params.UnmarshalBinary(data); err != nil {
		return oauthmodel.PlatformParams{}
	}
	return params
}

// ClearPlatform removes the state and params cookies.
func (j *Jar) ClearPlatform(w http.ResponseWriter, r *http.Request) {
	j.Clear(w, r, StateCookie)
	j.Clear(w, r, ParamsCookie)
}

// ClearSocial removes the social-login cookies under every name variant.
func (j *Jar) ClearSocial(w http.ResponseWriter, r *http.Request) {
	for _, name := range socialCookies {
		j.Clear(w, r, name)
		j.Clear(w, r, SecurePrefix+name)
	}
	j.Clear(w, r, HostPrefix+SocialSessionCookie)
}

// ClearAll removes every cookie the bridge or the social-login provider may have set.
func (j *Jar) ClearAll(w http.ResponseWriter, r *http.Request) {
	j.ClearRefreshToken(w, r)
	j.ClearPlatform(w, r)
	j.ClearSocial(w, r)
}
