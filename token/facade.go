package token

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/OWOX/owox-data-marts-sub009/authstate"
	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/identity"
	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IdentityClient is the Identity Authority surface the facade relies on.
type IdentityClient interface {
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauthmodel.TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*oauthmodel.TokenSet, error)
	Introspect(ctx context.Context, token string) (*identity.Introspection, error)
	Revoke(ctx context.Context, token string) error
}

// Facade wraps the Identity Authority token operations and the refresh token cookie.
type Facade struct {
	states   authstate.Repo
	client   IdentityClient
	verifier *Verifier
	jar      *cookies.Jar
	logger   zerolog.Logger
}

func NewFacade(states authstate.Repo, client IdentityClient, verifier *Verifier, jar *cookies.Jar) *Facade {
	return &Facade{
		states:   states,
		client:   client,
		verifier: verifier,
		jar:      jar,
		logger:   log.With().Str("component", "TokenFacade").Logger(),
	}
}

// ExchangeAuthorizationCode consumes the state and redeems code with its verifier.
// A state that is unknown, expired or already used fails with ReasonStateExpired.
func (f *Facade) ExchangeAuthorizationCode(ctx context.Context, code, state string) (*oauthmodel.TokenSet, error) {
	if code == "" || state == "" {
		return nil, autherrors.NewAuthentication(autherrors.ReasonMissingParameter, nil)
	}

	authState, err := f.states.Consume(ctx, state)
	switch {
	case errors.Is(err, authstate.ErrNotFound), errors.Is(err, authstate.ErrExpired):
		return nil, autherrors.NewAuthentication(autherrors.ReasonStateExpired, err)
	case err != nil:
		return nil, autherrors.NewIdpFailed("consume-state", err)
	}

	tokens, err := f.client.ExchangeCode(ctx, code, authState.CodeVerifier)
	if err != nil {
		return nil, errors.Wrap(err, "[ExchangeAuthorizationCode]")
	}
	return tokens, nil
}

func (f *Facade) Refresh(ctx context.Context, refreshToken string) (*oauthmodel.TokenSet, error) {
	tokens, err := f.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Refresh]")
	}
	return tokens, nil
}

// Introspect returns nil when the Identity Authority reports the token inactive.
func (f *Facade) Introspect(ctx context.Context, token string) (*Payload, error) {
	result, err := f.client.Introspect(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "[Introspect]")
	}
	if !result.Active {
		return nil, nil
	}
	var payload Payload
	if err := json.Unmarshal(result.Raw, &payload); err != nil {
		return nil, autherrors.NewIdpFailed("introspect", errors.Wrap(err, "decode claims"))
	}
	return &payload, nil
}

// Parse verifies token locally. Invalid tokens yield (nil, nil); an unreachable
// key set is returned as an IdpFailedError.
func (f *Facade) Parse(ctx context.Context, token string) (*Payload, error) {
	payload, err := f.verifier.Verify(ctx, token)
	if autherrors.IsIdpFailed(err) {
		return nil, errors.Wrap(err, "[Parse]")
	}
	if err != nil {
		f.logger.Debug().Err(err).Msg("Access token rejected")
		return nil, nil
	}
	return payload, nil
}

func (f *Facade) Revoke(ctx context.Context, token string) error {
	return errors.Wrap(f.client.Revoke(ctx, token), "[Revoke]")
}

func (f *Facade) SetRefreshTokenCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int64) {
	f.jar.SetRefreshToken(w, r, token, maxAge)
}

// StoreTokens writes the refresh token cookie when the set carries a usable one.
func (f *Facade) StoreTokens(w http.ResponseWriter, r *http.Request, tokens *oauthmodel.TokenSet) {
	if tokens.HasRefreshToken() {
		f.SetRefreshTokenCookie(w, r, tokens.RefreshToken, tokens.RefreshTokenExpiresIn)
	}
}

func (f *Facade) ClearRefreshTokenCookie(w http.ResponseWriter, r *http.Request) {
	f.jar.ClearRefreshToken(w, r)
}

func (f *Facade) RefreshTokenFromRequest(r *http.Request) string {
	return f.jar.RefreshToken(r)
}

// RevokeAndClear revokes the request's refresh token, then clears its cookie.
// A failed revocation is logged; the cookie is cleared regardless.
func (f *Facade) RevokeAndClear(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if token := f.RefreshTokenFromRequest(r); token != "" {
		if err := f.Revoke(ctx, token); err != nil {
			f.logger.Warn().Err(err).Msg("Failed to revoke refresh token")
		}
	}
	f.ClearRefreshTokenCookie(w, r)
}
