package cookies_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/stretchr/testify/require"
)

func newJar(t *testing.T, forceSecure bool) *cookies.Jar {
	t.Helper()
	sealer, err := cookies.NewSealer("test-secret")
	require.NoError(t, err)
	return cookies.NewJar(forceSecure, sealer)
}

// roundTrip copies the Set-Cookie headers of rec onto a new request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "https://auth.test/auth/sign-in", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRefreshTokenCookie(t *testing.T) {
	jar := newJar(t, false)

	t.Run("attributes over https", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "https://auth.test/", nil)
		rec := httptest.NewRecorder()
		jar.SetRefreshToken(rec, r, "ref", 120)

		c := cookieByName(rec, cookies.RefreshTokenCookie)
		require.NotNil(t, c)
		require.Equal(t, "ref", c.Value)
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteLaxMode, c.SameSite)
		require.Equal(t, 120, c.MaxAge)
		require.Equal(t, "/", c.Path)
	})

	t.Run("plain http is not secure", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
		rec := httptest.NewRecorder()
		jar.SetRefreshToken(rec, r, "ref", 120)
		require.False(t, cookieByName(rec, cookies.RefreshTokenCookie).Secure)
	})

	t.Run("forwarded proto", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://internal/", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		require.True(t, jar.IsSecure(r))
	})

	t.Run("clear", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
		rec := httptest.NewRecorder()
		jar.ClearRefreshToken(rec, r)
		require.Equal(t, -1, cookieByName(rec, cookies.RefreshTokenCookie).MaxAge)
	})
}

func TestParamsCookie(t *testing.T) {
	jar := newJar(t, true)
	params := oauthmodel.PlatformParams{Source: "platform", RedirectTo: "/data-marts", ProjectID: "p1"}

	rec := httptest.NewRecorder()
	jar.SetParams(rec, httptest.NewRequest(http.MethodGet, "/", nil), params)
	sealed := cookieByName(rec, cookies.ParamsCookie)
	require.NotNil(t, sealed)
	require.NotContains(t, sealed.Value, "data-marts")

	require.Equal(t, params, jar.Params(roundTrip(rec)))

	t.Run("tampered value is ignored", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: cookies.ParamsCookie, Value: sealed.Value[:len(sealed.Value)-2] + "AA"})
		require.True(t, jar.Params(r).IsEmpty())
	})

	t.Run("other key cannot open", func(t *testing.T) {
		other := newJarWithSecret(t, "another-secret")
		require.True(t, other.Params(roundTrip(rec)).IsEmpty())
	})
}

func newJarWithSecret(t *testing.T, secret string) *cookies.Jar {
	t.Helper()
	sealer, err := cookies.NewSealer(secret)
	require.NoError(t, err)
	return cookies.NewJar(false, sealer)
}

func TestClearAll(t *testing.T) {
	jar := newJar(t, false)
	rec := httptest.NewRecorder()
	jar.ClearAll(rec, httptest.NewRequest(http.MethodGet, "http://localhost/", nil))

	cleared := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cleared[c.Name] = c
	}
	for _, name := range []string{
		cookies.RefreshTokenCookie,
		cookies.StateCookie,
		cookies.ParamsCookie,
		cookies.SocialSessionCookie,
		cookies.SecurePrefix + cookies.SocialSessionCookie,
		cookies.HostPrefix + cookies.SocialSessionCookie,
	} {
		require.Contains(t, cleared, name)
		require.Equal(t, -1, cleared[name].MaxAge)
	}
	require.True(t, cleared[cookies.HostPrefix+cookies.SocialSessionCookie].Secure)
}
