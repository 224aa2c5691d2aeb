package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/authstate"
	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/identity"
	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/OWOX/owox-data-marts-sub009/token"
	"github.com/stretchr/testify/require"
)

type identityConfig struct {
	baseURL string
}

func (c identityConfig) GetClientID() string { return "client-1" }
func (c identityConfig) GetIdentityBaseURL() string { return c.baseURL }
func (c identityConfig) GetIdentityTimeout() time.Duration { return time.Second }

type testFixture struct {
	now       time.Time
	states    *authstate.InMemoryRepo
	facade    *token.Facade
	signer    *signer
	exchanges atomic.Int32
	revoked   chan string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		signer:  newSigner(t),
		revoked: make(chan string, 4),
	}
	f.states = authstate.NewInMemoryRepo(func() time.Time { return f.now })

	mux := http.NewServeMux()
	mux.HandleFunc(identity.TokenPath, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") == "authorization_code" {
			f.exchanges.Add(1)
			if r.PostForm.Get("code_verifier") != "verifier-1" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":             "acc",
			"token_type":               "Bearer",
			"expires_in":               900,
			"refresh_token":            "rotated",
			"refresh_token_expires_in": 3600,
		})
	})
	mux.HandleFunc(identity.IntrospectionPath, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("token") != "live" {
			writeJSON(w, http.StatusOK, map[string]any{"active": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"active": true, "userId": "u1", "email": "user@test.io", "roles": []string{"admin"}})
	})
	mux.HandleFunc(identity.RevocationPath, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.revoked <- r.PostForm.Get("token")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sealer, err := cookies.NewSealer("secret")
	require.NoError(t, err)
	f.facade = token.NewFacade(
		f.states,
		identity.NewClient(identityConfig{baseURL: srv.URL}),
		f.signer.verifier(),
		cookies.NewJar(false, sealer),
	)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	ctx := context.Background()

	t.Run("state is redeemable once", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.states.Save(ctx, authstate.New("state-1", "verifier-1", f.now, time.Minute)))

		tokens, err := f.facade.ExchangeAuthorizationCode(ctx, "code-1", "state-1")
		require.NoError(t, err)
		require.Equal(t, "acc", tokens.AccessToken)
		require.True(t, tokens.HasRefreshToken())

		_, err = f.facade.ExchangeAuthorizationCode(ctx, "code-1", "state-1")
		require.True(t, autherrors.IsStateExpired(err))
		require.Equal(t, int32(1), f.exchanges.Load())
	})

	t.Run("expired state", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.states.Save(ctx, authstate.New("state-1", "verifier-1", f.now, time.Minute)))
		f.now = f.now.Add(2 * time.Minute)

		_, err := f.facade.ExchangeAuthorizationCode(ctx, "code-1", "state-1")
		ae, ok := autherrors.AsAuthentication(err)
		require.True(t, ok)
		require.Equal(t, autherrors.ReasonStateExpired, ae.Reason)
		require.Zero(t, f.exchanges.Load())
	})

	t.Run("unknown state", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.facade.ExchangeAuthorizationCode(ctx, "code-1", "nope")
		require.True(t, autherrors.IsStateExpired(err))
	})

	t.Run("missing code", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.facade.ExchangeAuthorizationCode(ctx, "", "state-1")
		require.True(t, autherrors.IsAuthentication(err))
		require.False(t, autherrors.IsStateExpired(err))
	})
}

func TestIntrospect(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	payload, err := f.facade.Introspect(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, "u1", payload.UserID)
	require.Contains(t, payload.Roles, "admin")

	payload, err = f.facade.Introspect(ctx, "dead")
	require.NoError(t, err)
	require.Nil(t, payload)
}

func TestParse(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	payload, err := f.facade.Parse(ctx, f.signer.sign(t, f.signer.payload(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, "user@test.io", payload.Email)

	payload, err = f.facade.Parse(ctx, "garbage")
	require.NoError(t, err)
	require.Nil(t, payload)

	t.Run("key set outage is not an invalid token", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(down.Close)
		facade := token.NewFacade(f.states, identity.NewClient(identityConfig{baseURL: down.URL}),
			token.NewVerifier(remoteConfig{jwksURL: down.URL + identity.JWKSPath, cacheTTL: time.Hour}), nil)

		payload, err := facade.Parse(ctx, f.signer.sign(t, f.signer.payload(time.Minute)))
		require.Nil(t, payload)
		require.True(t, autherrors.IsIdpFailed(err))
	})
}

func TestRefreshTokenCookieLifecycle(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	t.Run("store rotated token", func(t *testing.T) {
		tokens, err := f.facade.Refresh(ctx, "old")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		f.facade.StoreTokens(rec, httptest.NewRequest(http.MethodPost, "/auth/access-token", nil), tokens)
		c := rec.Result().Cookies()
		require.Len(t, c, 1)
		require.Equal(t, cookies.RefreshTokenCookie, c[0].Name)
		require.Equal(t, "rotated", c[0].Value)
		require.Equal(t, 3600, c[0].MaxAge)
	})

	t.Run("revoke then clear", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/auth/sign-out", nil)
		r.AddCookie(&http.Cookie{Name: cookies.RefreshTokenCookie, Value: "rt-1"})
		require.Equal(t, "rt-1", f.facade.RefreshTokenFromRequest(r))

		rec := httptest.NewRecorder()
		f.facade.RevokeAndClear(ctx, rec, r)
		require.Equal(t, "rt-1", <-f.revoked)
		require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
	})

	t.Run("nothing to store", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.facade.StoreTokens(rec, httptest.NewRequest(http.MethodGet, "/", nil), &oauthmodel.TokenSet{AccessToken: "a"})
		require.Empty(t, rec.Result().Cookies())
	})
}
