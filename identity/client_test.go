package identity_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/identity"
	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "client-1"
	testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type testConfig struct {
	baseURL string
	timeout time.Duration
	token   string
}

func (c testConfig) GetClientID() string { return testClientID }
func (c testConfig) GetIdentityBaseURL() string { return c.baseURL }
func (c testConfig) GetIdentityTimeout() time.Duration { return c.timeout }
func (c testConfig) GetBackchannelPrefix() string { return "/backchannel" }
func (c testConfig) GetBackchannelToken() string { return c.token }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, handler http.HandlerFunc) *identity.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return identity.NewClient(testConfig{baseURL: srv.URL, timeout: time.Second})
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, identity.TokenPath, r.URL.Path)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			require.Equal(t, "xyz", r.PostForm.Get("code"))
			require.Equal(t, testVerifier, r.PostForm.Get("code_verifier"))
			require.Equal(t, testClientID, r.PostForm.Get("client_id"))
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":             "acc",
				"token_type":               "Bearer",
				"expires_in":               900,
				"refresh_token":            "ref",
				"refresh_token_expires_in": 2592000,
			})
		})

		set, err := client.ExchangeCode(ctx, "xyz", testVerifier)
		require.NoError(t, err)
		require.Equal(t, "acc", set.AccessToken)
		require.Equal(t, "ref", set.RefreshToken)
		require.Equal(t, int64(900), set.AccessTokenExpiresIn)
		require.Equal(t, int64(2592000), set.RefreshTokenExpiresIn)
		require.True(t, set.HasRefreshToken())
	})

	t.Run("invalid grant is an authentication failure", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "code already used"})
		})
		_, err := client.ExchangeCode(ctx, "xyz", testVerifier)
		require.True(t, autherrors.IsAuthentication(err))
		require.NotContains(t, err.Error(), "code already used")
	})

	t.Run("server error is an idp failure", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "server_error"})
		})
		_, err := client.ExchangeCode(ctx, "xyz", testVerifier)
		require.True(t, autherrors.IsIdpFailed(err))
	})
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()

	t.Run("rotated", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			require.Equal(t, "old", r.PostForm.Get("refresh_token"))
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":             "acc",
				"token_type":               "Bearer",
				"expires_in":               900,
				"refresh_token":            "new",
				"refresh_token_expires_in": 120,
			})
		})
		set, err := client.RefreshToken(ctx, "old")
		require.NoError(t, err)
		require.Equal(t, "new", set.RefreshToken)
		require.Equal(t, int64(120), set.RefreshTokenExpiresIn)
	})

	t.Run("not rotated", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "acc", "token_type": "Bearer", "expires_in": 900})
		})
		set, err := client.RefreshToken(ctx, "old")
		require.NoError(t, err)
		require.False(t, set.HasRefreshToken())
	})

	t.Run("unauthorized", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
		})
		_, err := client.RefreshToken(ctx, "old")
		require.True(t, autherrors.IsAuthentication(err))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		t.Cleanup(srv.Close)
		client := identity.NewClient(testConfig{baseURL: srv.URL, timeout: 20 * time.Millisecond})

		_, err := client.RefreshToken(ctx, "old")
		require.True(t, autherrors.IsIdpFailed(err))
	})
}

func TestIntrospectAndRevoke(t *testing.T) {
	ctx := context.Background()
	var revoked string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case identity.IntrospectionPath:
			if r.PostForm.Get("token") == "live" {
				writeJSON(w, http.StatusOK, map[string]any{"active": true, "email": "user@example.com"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"active": false})
		case identity.RevocationPath:
			revoked = r.PostForm.Get("token")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := client.Introspect(ctx, "live")
	require.NoError(t, err)
	require.True(t, res.Active)
	require.Contains(t, string(res.Raw), "user@example.com")

	res, err = client.Introspect(ctx, "dead")
	require.NoError(t, err)
	require.False(t, res.Active)

	require.NoError(t, client.Revoke(ctx, "ref"))
	require.Equal(t, "ref", revoked)
}

func TestCompleteAuthFlow(t *testing.T) {
	ctx := context.Background()
	payload := identity.AuthFlowPayload{
		State:    "abc123",
		UserInfo: identity.UserInfo{UID: "acc-1", SigninProvider: "google", Email: "user@example.com"},
	}

	newCompletion := func(t *testing.T, handler http.HandlerFunc) *identity.CompletionClient {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		return identity.NewCompletionClient(testConfig{baseURL: srv.URL, timeout: time.Second, token: "svc-token"})
	}

	t.Run("returns code", func(t *testing.T) {
		client := newCompletion(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/backchannel/idp/auth-flow/complete", r.URL.Path)
			require.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
			var got identity.AuthFlowPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			require.Equal(t, payload, got)
			writeJSON(w, http.StatusOK, map[string]any{"code": "code-123"})
		})
		code, err := client.CompleteAuthFlow(ctx, payload)
		require.NoError(t, err)
		require.Equal(t, "code-123", code)
	})

	t.Run("expired state", func(t *testing.T) {
		client := newCompletion(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "state_expired"})
		})
		_, err := client.CompleteAuthFlow(ctx, payload)
		require.True(t, autherrors.IsStateExpired(err))
	})

	t.Run("missing code", func(t *testing.T) {
		client := newCompletion(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		})
		_, err := client.CompleteAuthFlow(ctx, payload)
		require.True(t, autherrors.IsIdpFailed(err))
	})
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(fmt.Sprintf("status %d is an upstream failure", status), func(t *testing.T) {
			client := newCompletion(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, status, map[string]any{"error": "unauthorized"})
			})
			_, err := client.CompleteAuthFlow(ctx, payload)
			require.True(t, autherrors.IsIdpFailed(err))
			require.False(t, autherrors.IsAuthentication(err))
		})
	}
}
