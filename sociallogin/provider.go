package sociallogin

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/cookies"
)

// SessionUser is the user attached to a provider session.
type SessionUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
}

// Session is a live social-login session.
type Session struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"-"`
}

// Provider adapts the embedded social-login service.
type Provider interface {
	// Handle serves a provider request. Redirects are returned, not followed.
	Handle(ctx context.Context, r *http.Request) (*http.Response, error)
	// GetSession looks up the session carried by cookie. It returns (nil, nil) when there is none.
	GetSession(ctx context.Context, cookie *http.Cookie) (*Session, error)
	// CookieName is the session cookie name the provider uses in this deployment.
	CookieName() string
}

// SessionCookieNames lists every name the provider may give its session cookie.
func SessionCookieNames() []string {
	return []string{
		cookies.SocialSessionCookie,
		cookies.SecurePrefix + cookies.SocialSessionCookie,
		cookies.HostPrefix + cookies.SocialSessionCookie,
	}
}

// ExtractSessionToken returns the session token a provider response sets, or "".
// Cookies being cleared are ignored.
func ExtractSessionToken(resp *http.Response, names []string) string {
	if resp == nil {
		return ""
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	for _, c := range resp.Cookies() {
		if _, ok := wanted[c.Name]; !ok || c.Value == "" || c.MaxAge < 0 {
			continue
		}
		if v, err := url.QueryUnescape(c.Value); err == nil {
			return v
		}
		return c.Value
	}
	return ""
}
