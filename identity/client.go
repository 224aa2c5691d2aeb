package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Identity Authority endpoints, relative to its base URL.
const (
	TokenPath         = "/api/idp/token"
	IntrospectionPath = "/api/idp/introspection"
	RevocationPath    = "/api/idp/revocation"
	JWKSPath          = "/api/idp/.well-known/jwks.json"

	maxResponseBytes = 1 << 20
)

// Config is the part of the service configuration the client needs.
type Config interface {
	GetClientID() string
	GetIdentityBaseURL() string
	GetIdentityTimeout() time.Duration
}

// Introspection is the introspection endpoint answer. Raw holds the full JSON
// body so callers can decode their own claim set.
type Introspection struct {
	Active bool
	Raw    json.RawMessage
}

// Client talks to the Identity Authority. Every request is bounded by the
// configured timeout.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	oauth      *oauth2.Config
	logger     zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is kept as is.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(cfg Config, options ...Option) *Client {
	baseURL := strings.TrimRight(cfg.GetIdentityBaseURL(), "/")
	c := &Client{
		baseURL:    baseURL,
		clientID:   cfg.GetClientID(),
		httpClient: &http.Client{Timeout: cfg.GetIdentityTimeout()},
		oauth: &oauth2.Config{
			ClientID: cfg.GetClientID(),
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger: log.With().Str("component", "IdentityClient").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// JWKSURL is where the Identity Authority publishes its signing keys.
func (c *Client) JWKSURL() string {
	return c.baseURL + JWKSPath
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// ExchangeCode redeems an authorization code with its PKCE verifier.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauthmodel.TokenSet, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, c.tokenError(string(oauthmodel.AuthorizationCodeGrant), err)
	}
	return toTokenSet(tok)
}

// RefreshToken runs the refresh_token grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*oauthmodel.TokenSet, error) {
	if refreshToken == "" {
		return nil, autherrors.NewAuthentication(autherrors.ReasonInvalidGrant, errors.New("empty refresh token"))
	}
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.tokenError(string(oauthmodel.RefreshTokenGrant), err)
	}
	set, err := toTokenSet(tok)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == refreshToken {
		// the Identity Authority did not rotate it
		set.RefreshToken = ""
		set.RefreshTokenExpiresIn = 0
	}
	return set, nil
}

// Introspect asks the Identity Authority whether token is active.
func (c *Client) Introspect(ctx context.Context, token string) (*Introspection, error) {
	body, err := c.postForm(ctx, "introspect", IntrospectionPath, url.Values{
		"token":     {token},
		"client_id": {c.clientID},
	})
	if err != nil {
		return nil, err
	}
	var head struct {
		Active bool `json:"active"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, autherrors.NewIdpFailed("introspect", errors.Wrap(err, "malformed introspection response"))
	}
	return &Introspection{Active: head.Active, Raw: body}, nil
}

// Revoke invalidates a refresh token at the Identity Authority.
func (c *Client) Revoke(ctx context.Context, token string) error {
	_, err := c.postForm(ctx, "revoke", RevocationPath, url.Values{
		"token":           {token},
		"token_type_hint": {"refresh_token"},
		"client_id":       {c.clientID},
	})
	return err
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, autherrors.NewIdpFailed(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, autherrors.NewIdpFailed(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, autherrors.NewIdpFailed(op, errors.Wrap(err, "read response"))
	}
	if err := statusError(op, resp.StatusCode); err != nil {
		c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Str("body", truncate(body)).Msg("Identity Authority request failed")
		return nil, err
	}
	return body, nil
}

func statusError(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return autherrors.NewAuthentication(autherrors.ReasonInvalidToken, nil, "op", op)
	case status == http.StatusForbidden:
		return autherrors.NewAuthentication(autherrors.ReasonForbidden, nil, "op", op)
	default:
		return autherrors.NewIdpFailed(op, fmt.Errorf("unexpected status %d", status))
	}
}

// tokenError maps token endpoint failures. Upstream text stays in the logs.
func (c *Client) tokenError(grant string, err error) error {
	op := "token:" + grant
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return autherrors.NewIdpFailed(op, err)
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	c.logger.Warn().Str("op", op).Int("status", status).Str("error_code", re.ErrorCode).Str("body", truncate(re.Body)).Msg("Token request rejected")

	switch {
	case status == http.StatusUnauthorized || re.ErrorCode == "invalid_grant" || re.ErrorCode == "invalid_token":
		return autherrors.NewAuthentication(autherrors.ReasonInvalidGrant, nil, "grant", grant)
	case status == http.StatusForbidden:
		return autherrors.NewAuthentication(autherrors.ReasonForbidden, nil, "grant", grant)
	default:
		return autherrors.NewIdpFailed(op, fmt.Errorf("status %d error %q", status, re.ErrorCode))
	}
}

func toTokenSet(tok *oauth2.Token) (*oauthmodel.TokenSet, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, autherrors.NewIdpFailed("token", errors.New("response without access token"))
	}
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return &oauthmodel.TokenSet{
		AccessToken:           tok.AccessToken,
		RefreshToken:          tok.RefreshToken,
		AccessTokenExpiresIn:  expiresIn,
		RefreshTokenExpiresIn: extraSeconds(tok.Extra("refresh_token_expires_in")),
	}, nil
}

func extraSeconds(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
