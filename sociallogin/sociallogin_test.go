package sociallogin_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/sociallogin"
	"github.com/stretchr/testify/require"
)

const mountPath = "/auth/better-auth"

type providerConfig struct {
	url    string
	secure bool
}

func (c providerConfig) GetSocialLoginURL() string { return c.url }
func (c providerConfig) GetSecureCookies() bool { return c.secure }

func newProvider(t *testing.T, handler http.Handler) *sociallogin.HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	provider, err := sociallogin.NewHTTPProvider(providerConfig{url: srv.URL + "/api/auth"}, mountPath)
	require.NoError(t, err)
	return provider
}

func TestExtractSessionToken(t *testing.T) {
	names := sociallogin.SessionCookieNames()

	t.Run("secure prefixed cookie", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Add("Set-Cookie", "better-auth.state=x; Path=/")
		resp.Header.Add("Set-Cookie", "__Secure-better-auth.session_token=abc.def%3D; Path=/; HttpOnly; Secure")
		require.Equal(t, "abc.def=", sociallogin.ExtractSessionToken(resp, names))
	})

	t.Run("cleared cookie is ignored", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Add("Set-Cookie", "better-auth.session_token=; Max-Age=0")
		require.Empty(t, sociallogin.ExtractSessionToken(resp, names))
	})

	t.Run("no response", func(t *testing.T) {
		require.Empty(t, sociallogin.ExtractSessionToken(nil, names))
	})
}

func TestHTTPProviderHandle(t *testing.T) {
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/callback/google", r.URL.Path)
		require.Equal(t, "code=1&state=s", r.URL.RawQuery)
		require.Equal(t, "auth.test", r.Header.Get("X-Forwarded-Host"))
		http.SetCookie(w, &http.Cookie{Name: cookies.SocialSessionCookie, Value: "tok"})
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))

	r := httptest.NewRequest(http.MethodGet, "http://auth.test/auth/better-auth/callback/google?code=1&state=s", nil)
	resp, err := provider.Handle(context.Background(), r)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "tok", sociallogin.ExtractSessionToken(resp, sociallogin.SessionCookieNames()))
}

func TestHTTPProviderGetSession(t *testing.T) {
	ctx := context.Background()
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/get-session", r.URL.Path)
		c, err := r.Cookie(cookies.SecurePrefix + cookies.SocialSessionCookie)
		if err != nil || c.Value != "good" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, "null")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session": map[string]any{"id": "s1", "userId": "u1", "token": "good", "expiresAt": "2026-03-01T12:00:00Z"},
			"user":    map[string]any{"id": "u1", "email": "user@test.io", "name": "User", "emailVerified": true},
		})
	}))

	t.Run("found", func(t *testing.T) {
		session, err := provider.GetSession(ctx, &http.Cookie{Name: cookies.SecurePrefix + cookies.SocialSessionCookie, Value: "good"})
		require.NoError(t, err)
		require.Equal(t, "s1", session.ID)
		require.Equal(t, "u1", session.User.ID)
		require.True(t, session.User.EmailVerified)
	})

	t.Run("wrong cookie name", func(t *testing.T) {
		session, err := provider.GetSession(ctx, &http.Cookie{Name: cookies.SocialSessionCookie, Value: "good"})
		require.NoError(t, err)
		require.Nil(t, session)
	})
}

func TestCookieName(t *testing.T) {
	secure, err := sociallogin.NewHTTPProvider(providerConfig{url: "http://localhost:3001/api/auth", secure: true}, mountPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(secure.CookieName(), cookies.SecurePrefix))

	_, err = sociallogin.NewHTTPProvider(providerConfig{url: "not a url"}, mountPath)
	require.Error(t, err)
}
