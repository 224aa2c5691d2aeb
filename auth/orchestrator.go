package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/authstate"
	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/identity"
	"github.com/OWOX/owox-data-marts-sub009/internal/config"
	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/OWOX/owox-data-marts-sub009/redirect"
	"github.com/OWOX/owox-data-marts-sub009/sessions"
	"github.com/OWOX/owox-data-marts-sub009/token"
	"github.com/OWOX/owox-data-marts-sub009/usercontext"
	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenService is the token facade surface the flows use.
type TokenService interface {
	ExchangeAuthorizationCode(ctx context.Context, code, state string) (*oauthmodel.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*oauthmodel.TokenSet, error)
	Parse(ctx context.Context, token string) (*token.Payload, error)
	StoreTokens(w http.ResponseWriter, r *http.Request, tokens *oauthmodel.TokenSet)
	Revoke(ctx context.Context, token string) error
	ClearRefreshTokenCookie(w http.ResponseWriter, r *http.Request)
}

type UserContextResolver interface {
	ResolveFromToken(ctx context.Context, accessToken string) (*usercontext.UserContext, error)
}

type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionToken, providerHint string) (*sessions.Resolution, error)
}

// FlowCompleter mints the Platform authorization code for a verified user.
type FlowCompleter interface {
	CompleteAuthFlow(ctx context.Context, payload identity.AuthFlowPayload) (string, error)
}

type AuthInfoRecorder interface {
	PersistFromPayload(ctx context.Context, payload *token.Payload)
	PersistLastLoginMethod(ctx context.Context, userID, method string)
}

// Services holds every collaborator of the FlowOrchestrator.
type Services struct {
	States      authstate.Repo
	Tokens      TokenService
	UserContext UserContextResolver
	Sessions    SessionResolver
	Completion  FlowCompleter
	AuthInfo    AuthInfoRecorder
	Cookies     *cookies.Jar
}

type Config interface {
	GetBaseURL() string
	GetClientID() string
	GetPlatformSignInURL() string
	GetAllowedRedirectOrigins() config.AllowedOrigins
	GetStateTTL() time.Duration
}

// FlowOrchestrator drives a sign-in from START to COMPLETED or FAILED.
type FlowOrchestrator struct {
	services       Services
	baseURL        string
	clientID       string
	platformSignIn string
	allowed        config.AllowedOrigins
	stateTTL       time.Duration
	nowTime        func() time.Time
	logger         zerolog.Logger
}

type Option func(*FlowOrchestrator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *FlowOrchestrator) {
		o.nowTime = nowFunc
	}
}

func NewFlowOrchestrator(services Services, cfg Config, options ...Option) (*FlowOrchestrator, error) {
	switch {
	case services.States == nil:
		return nil, errors.New("[NewFlowOrchestrator] States repo is required")
	case services.Tokens == nil:
		return nil, errors.New("[NewFlowOrchestrator] Tokens is required")
	case services.UserContext == nil:
		return nil, errors.New("[NewFlowOrchestrator] UserContext is required")
	case services.Sessions == nil:
		return nil, errors.New("[NewFlowOrchestrator] Sessions is required")
	case services.Completion == nil:
		return nil, errors.New("[NewFlowOrchestrator] Completion is required")
	case services.AuthInfo == nil:
		return nil, errors.New("[NewFlowOrchestrator] AuthInfo is required")
	case services.Cookies == nil:
		return nil, errors.New("[NewFlowOrchestrator] Cookies is required")
	}

	o := &FlowOrchestrator{
		services:       services,
		baseURL:        strings.TrimRight(cfg.GetBaseURL(), "/"),
		clientID:       cfg.GetClientID(),
		platformSignIn: cfg.GetPlatformSignInURL(),
		allowed:        cfg.GetAllowedRedirectOrigins(),
		stateTTL:       cfg.GetStateTTL(),
		nowTime:        time.Now,
		logger:         log.With().Str("component", "FlowOrchestrator").Logger(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// AllowedRedirectOrigins is the allow-list applied to pass-through redirect targets.
func (o *FlowOrchestrator) AllowedRedirectOrigins() config.AllowedOrigins {
	return o.allowed
}

// Start creates a PKCE pair and a state, stores them, and sends the browser to the Platform.
func (o *FlowOrchestrator) Start(ctx context.Context, params oauthmodel.PlatformParams) (*Outcome, error) {
	pkce := oauthmodel.NewPKCE()
	state, err := oauthmodel.NewState()
	if err != nil {
		return nil, errors.Wrap(err, "[Start] state")
	}
	if err := o.services.States.Save(ctx, authstate.New(state, pkce.CodeVerifier, o.nowTime(), o.stateTTL)); err != nil {
		return nil, autherrors.NewIdpFailed("save-state", err)
	}

	params.Source = string(oauthmodel.SourceApp)
	params.ClientID = o.clientID
	params.CodeChallenge = pkce.CodeChallenge
	target, err := redirect.BuildPlatformEntryURL(o.platformSignIn, state, params, o.allowed)
	if err != nil {
		return nil, errors.Wrap(err, "[Start] platform url")
	}
	return &Outcome{State: StateAwaitingProvider, RedirectURL: target}, nil
}

// CompleteWithRefreshToken is the fast path. A nil RedirectURL means the caller
// renders the interactive page.
func (o *FlowOrchestrator) CompleteWithRefreshToken(ctx context.Context, w http.ResponseWriter, r *http.Request, refreshToken string, params oauthmodel.PlatformParams) *Outcome {
	state := o.services.Cookies.State(r)
	if state == "" {
		state = strings.TrimSpace(r.URL.Query().Get(oauthmodel.ParamState))
	}
	if state == "" || refreshToken == "" {
		return &Outcome{State: StateAwaitingProvider}
	}

	target, liveToken, err := o.fastPath(ctx, w, r, refreshToken, state, params)
	if err == nil {
		o.services.Cookies.ClearPlatform(w, r)
		o.services.Cookies.ClearSocial(w, r)
		return &Outcome{State: StateCompleted, RedirectURL: target}
	}

	if autherrors.IsStateExpired(err) {
		o.logger.Info().Msg("Fast path hit an expired state, restarting sign-in")
		o.services.Cookies.ClearAll(w, r)
		return o.signInOutcome()
	}
	if ae, ok := autherrors.AsAuthentication(err); ok && dropsRefreshToken(ae.Reason) {
		o.logger.Warn().Err(err).Str("reason", string(ae.Reason)).Msg("Refresh token does not resolve to a user, dropping it")
		if err := o.services.Tokens.Revoke(ctx, liveToken); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to revoke refresh token")
		}
		o.services.Tokens.ClearRefreshTokenCookie(w, r)
		return &Outcome{State: StateAwaitingProvider}
	}
	o.logger.Warn().Err(err).Msg("Platform fast path failed, falling back to UI")
	return &Outcome{State: StateAwaitingProvider}
}

// dropsRefreshToken lists the failures that say the refresh token itself is
// no good for this user. Everything else leaves the token in place.
func dropsRefreshToken(reason autherrors.Reason) bool {
	switch reason {
	case autherrors.ReasonInvalidGrant,
		autherrors.ReasonEmailMissing,
		autherrors.ReasonUserNotFound,
		autherrors.ReasonEmailUnverified,
		autherrors.ReasonAccountNotFound:
		return true
	default:
		return false
	}
}

// fastPath also returns the refresh token that is live after the call, which is
// the rotated one once the refresh succeeded.
func (o *FlowOrchestrator) fastPath(ctx context.Context, w http.ResponseWriter, r *http.Request, refreshToken, state string, params oauthmodel.PlatformParams) (*url.URL, string, error) {
	tokens, err := o.services.Tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, refreshToken, err
	}
	o.services.Tokens.StoreTokens(w, r, tokens)
	if tokens.RefreshToken != "" {
		refreshToken = tokens.RefreshToken
	}

	uc, err := o.services.UserContext.ResolveFromToken(ctx, tokens.AccessToken)
	if err != nil {
		return nil, refreshToken, err
	}
	target, err := o.complete(ctx, state, uc.User, uc.Account, params)
	if err != nil {
		return nil, refreshToken, err
	}
	o.services.AuthInfo.PersistLastLoginMethod(ctx, uc.User.ID, uc.Account.ProviderID)
	return target, refreshToken, nil
}

// CompleteWithSocialSession is the social path, run when the social-login provider
// has just issued a session. A nil RedirectURL with StateFailed means the caller
// renders the error page.
func (o *FlowOrchestrator) CompleteWithSocialSession(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionToken string, params oauthmodel.PlatformParams, providerHint string) *Outcome {
	state := o.services.Cookies.State(r)
	if state == "" {
		o.logger.Warn().Msg("Missing state for social login flow")
		o.services.Cookies.ClearAll(w, r)
		return o.signInOutcome()
	}

	res, err := o.services.Sessions.ResolveSession(ctx, sessionToken, providerHint)
	if err == nil && res == nil {
		err = autherrors.NewAuthentication(autherrors.ReasonSessionNotFound, nil)
	}
	var target *url.URL
	if err == nil {
		target, err = o.complete(ctx, state, res.User, res.Account, params)
	}

	switch {
	case err == nil:
		o.services.Cookies.ClearAll(w, r)
		o.services.AuthInfo.PersistLastLoginMethod(ctx, res.User.ID, res.Account.ProviderID)
		return &Outcome{State: StateCompleted, RedirectURL: target}
	case autherrors.IsStateExpired(err):
		o.services.Cookies.ClearAll(w, r)
		return o.signInOutcome()
	default:
		o.logger.Warn().Err(err).Msg("Social login completion failed")
		o.services.Cookies.ClearAll(w, r)
		return &Outcome{State: StateFailed}
	}
}

// CompleteCallback redeems the authorization code the Platform returned for a
// flow this service started.
func (o *FlowOrchestrator) CompleteCallback(ctx context.Context, w http.ResponseWriter, r *http.Request, code, state string) (*Outcome, error) {
	tokens, err := o.services.Tokens.ExchangeAuthorizationCode(ctx, code, state)
	if autherrors.IsStateExpired(err) {
		o.services.Cookies.ClearAll(w, r)
		return o.signInOutcome(), nil
	}
	if err != nil {
		o.services.Cookies.ClearPlatform(w, r)
		return &Outcome{State: StateFailed}, errors.Wrap(err, "[CompleteCallback]")
	}

	o.services.Tokens.StoreTokens(w, r, tokens)
	payload, err := o.services.Tokens.Parse(ctx, tokens.AccessToken)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Cannot read access token after exchange")
	}
	o.services.AuthInfo.PersistFromPayload(ctx, payload)
	o.services.Cookies.ClearPlatform(w, r)
	o.services.Cookies.ClearSocial(w, r)

	return &Outcome{State: StateCompleted, RedirectURL: o.localURL("/")}, nil
}

func (o *FlowOrchestrator) complete(ctx context.Context, state string, user *users.DatabaseUser, account *users.DatabaseAccount, params oauthmodel.PlatformParams) (*url.URL, error) {
	payload := BuildUserInfoPayload(state, user, account)
	o.logger.Info().Str("userId", user.ID).Str("provider", payload.UserInfo.SigninProvider).Msg("Completing auth flow")

	code, err := o.services.Completion.CompleteAuthFlow(ctx, payload)
	if err != nil {
		return nil, err
	}
	target, err := redirect.BuildPlatformRedirectURL(o.platformSignIn, code, state, params, o.allowed)
	if err != nil {
		return nil, autherrors.NewIdpFailed("build-redirect", err)
	}
	return target, nil
}

// BuildUserInfoPayload describes the user to the completion API.
func BuildUserInfoPayload(state string, user *users.DatabaseUser, account *users.DatabaseAccount) identity.AuthFlowPayload {
	return identity.AuthFlowPayload{
		State: state,
		UserInfo: identity.UserInfo{
			UID:            account.AccountID,
			SigninProvider: account.ProviderID,
			Email:          user.Email,
			FullName:       user.Name,
			Avatar:         user.Image,
		},
	}
}

func (o *FlowOrchestrator) signInOutcome() *Outcome {
	return &Outcome{State: StateFailed, RedirectURL: o.localURL(SignInPath)}
}

func (o *FlowOrchestrator) localURL(path string) *url.URL {
	u, err := url.Parse(o.baseURL + path)
	if err != nil {
		return &url.URL{Path: path}
	}
	return u
}
