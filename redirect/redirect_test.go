package redirect_test

import (
	"testing"

	"github.com/OWOX/owox-data-marts-sub009/internal/config"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/OWOX/owox-data-marts-sub009/redirect"
	"github.com/stretchr/testify/require"
)

const platformURL = "https://platform.test/auth/sign-in?lang=en"

var allowed = config.NewAllowedOrigins("https://platform.test", "https://app.test")

func TestSanitizeRedirect(t *testing.T) {
	cases := []struct {
		name   string
		target string
		want   string
		ok     bool
	}{
		{"relative path", "/data-marts?x=1", "/data-marts?x=1", true},
		{"protocol relative", "//evil.test/x", "", false},
		{"allowed origin", "https://APP.test/projects", "https://APP.test/projects", true},
		{"foreign origin", "https://evil.test/", "", false},
		{"javascript", "javascript:alert(1)", "", false},
		{"backslash", "/\\evil.test", "", false},
		{"empty", "  ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := redirect.SanitizeRedirect(tc.target, allowed)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBuildPlatformRedirectURL(t *testing.T) {
	t.Run("code, state and pass-through params", func(t *testing.T) {
		u, err := redirect.BuildPlatformRedirectURL(platformURL, "code-1", "state-1", oauthmodel.PlatformParams{
			RedirectTo:    "/data-marts",
			AppRedirectTo: "https://evil.test/steal",
			ClientID:      "client-1",
			ProjectID:     "p1",
		}, allowed)
		require.NoError(t, err)

		q := u.Query()
		require.Equal(t, "platform.test", u.Host)
		require.Equal(t, "en", q.Get("lang"))
		require.Equal(t, "code-1", q.Get(oauthmodel.ParamCode))
		require.Equal(t, "state-1", q.Get(oauthmodel.ParamState))
		require.Equal(t, "app", q.Get(oauthmodel.ParamSource))
		require.Equal(t, "/data-marts", q.Get(oauthmodel.ParamRedirectTo))
		require.False(t, q.Has(oauthmodel.ParamAppRedirectTo))
		require.Equal(t, "client-1", q.Get(oauthmodel.ParamClientID))
		require.Equal(t, "p1", q.Get(oauthmodel.ParamProjectID))
	})

	t.Run("declared source is kept", func(t *testing.T) {
		u, err := redirect.BuildPlatformRedirectURL(platformURL, "c", "s", oauthmodel.PlatformParams{Source: "platform"}, allowed)
		require.NoError(t, err)
		require.Equal(t, "platform", u.Query().Get(oauthmodel.ParamSource))
	})

	t.Run("relative base url", func(t *testing.T) {
		_, err := redirect.BuildPlatformRedirectURL("/auth/sign-in", "c", "s", oauthmodel.PlatformParams{}, allowed)
		require.ErrorIs(t, err, redirect.ErrInvalidBaseURL)
	})
}

func TestBuildPlatformEntryURL(t *testing.T) {
	u, err := redirect.BuildPlatformEntryURL(platformURL, "", oauthmodel.PlatformParams{CodeChallenge: "abc"}, allowed)
	require.NoError(t, err)
	require.False(t, u.Query().Has(oauthmodel.ParamState))
	require.False(t, u.Query().Has(oauthmodel.ParamCode))
	require.Equal(t, "abc", u.Query().Get(oauthmodel.ParamCodeChallenge))
}
