package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/rs/zerolog"
)

const (
	owoxAuthorizationHeader = "X-OWOX-Authorization"
	healthTimeout           = 2 * time.Second
)

type accessTokenResponse struct {
	AccessToken          string `json:"accessToken"`
	AccessTokenExpiresIn int64  `json:"accessTokenExpiresIn"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// AccessTokenHandler trades the refresh token cookie for a fresh access token.
// A rotated refresh token replaces the cookie.
func (s *Server) AccessTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		refreshToken := s.tokens.RefreshTokenFromRequest(r)
		if refreshToken == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		tokens, err := s.tokens.Refresh(ctx, refreshToken)
		switch {
		case err == nil:
		case autherrors.IsAuthentication(err):
			zerolog.Ctx(ctx).Info().Err(err).Msg("Refresh token rejected")
			s.tokens.ClearRefreshTokenCookie(w, r)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		default:
			zerolog.Ctx(ctx).Err(err).Msg("Refresh failed")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporarily_unavailable"})
			return
		}

		s.tokens.StoreTokens(w, r, tokens)
		writeJSON(w, http.StatusOK, accessTokenResponse{
			AccessToken:          tokens.AccessToken,
			AccessTokenExpiresIn: tokens.AccessTokenExpiresIn,
		})
	}
}

// UserInfoHandler returns the verified claims of the access token the caller presents.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken := bearerToken(r)
		if accessToken == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		payload, err := s.tokens.Parse(r.Context(), accessToken)
		if err != nil {
			zerolog.Ctx(r.Context()).Err(err).Msg("Access token parse failed")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporarily_unavailable"})
			return
		}
		if payload == nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// bearerToken reads X-OWOX-Authorization first, then the standard Authorization header.
func bearerToken(r *http.Request) string {
	for _, header := range []string{owoxAuthorizationHeader, "Authorization"} {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			continue
		}
		if scheme, rest, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, "Bearer") {
			value = strings.TrimSpace(rest)
		}
		if value != "" {
			return value
		}
	}
	return ""
}

// PreflightHandler answers OPTIONS requests that reach it without an Origin.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler reports liveness and whether the configured stores answer.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		for _, store := range s.stores {
			if err := store.Ping(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
