package server

import (
	"net/http"
	"strings"

	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/OWOX/owox-data-marts-sub009/redirect"
	"github.com/rs/zerolog"
)

type pageVariant int

const (
	pageSignIn pageVariant = iota
	pageSignUp
)

// IdpStartHandler begins a flow this service owns and sends the browser to the Platform.
func (s *Server) IdpStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthmodel.PlatformParamsFromQuery(r.URL.Query())
		outcome, err := s.flows.Start(r.Context(), params)
		if err != nil {
			zerolog.Ctx(r.Context()).Err(err).Msg("Failed to start auth flow")
			http.Redirect(w, r, s.errorPageURL("temporarily_unavailable"), http.StatusFound)
			return
		}
		s.redirectOutcome(w, r, outcome)
	}
}

// SignInPageHandler serves the sign-in and sign-up pages. The Platform context
// from the query is kept in cookies for the social path. A valid refresh token
// completes the flow without showing the page.
func (s *Server) SignInPageHandler(variant pageVariant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)
		q := r.URL.Query()

		queryState := strings.TrimSpace(q.Get(oauthmodel.ParamState))
		cookieState := s.jar.State(r)
		params := oauthmodel.PlatformParamsFromQuery(q)

		if variant == pageSignUp && queryState == "" && cookieState == "" {
			s.redirectToPlatformSignUp(w, r, params)
			return
		}

		// A new state in the query starts a new flow; the cookie belongs to an older one.
		stateChanged := queryState != "" && cookieState != "" && queryState != cookieState
		if queryState != "" {
			s.jar.SetState(w, r, queryState)
		}
		if !stateChanged {
			params = params.Merge(s.jar.Params(r))
		}
		s.jar.SetParams(w, r, params)

		if stateChanged {
			logger.Info().Msg("State in query differs from cookie, skipping fast path")
		} else if refreshToken := s.tokens.RefreshTokenFromRequest(r); refreshToken != "" {
			outcome := s.flows.CompleteWithRefreshToken(ctx, w, r, refreshToken, params)
			logger.Debug().Stringer("state", outcome.State).Msg("Fast path finished")
			if s.redirectOutcome(w, r, outcome) {
				return
			}
		}

		s.renderSignIn(w, r, variant)
	}
}

func (s *Server) renderSignIn(w http.ResponseWriter, r *http.Request, variant pageVariant) {
	data := signInPageData{
		AppName:       s.config.GetAppName(),
		SignUp:        variant == pageSignUp,
		Providers:     socialProviders,
		ProviderBase:  strings.TrimSuffix(RouteSocialLogin, "/"),
		EmailEndpoint: "/sign-in/email",
		CallbackHref:  RouteSignIn,
		SignInHref:    RouteSignIn,
		SignUpHref:    RouteSignUp,
	}
	if data.SignUp {
		data.EmailEndpoint = "/sign-up/email"
	}
	if code := r.URL.Query().Get("error"); code != "" {
		data.ErrorMessage = AuthErrorMessage(code)
	}
	render(w, r, s.signInPage, http.StatusOK, data)
}

func (s *Server) redirectToPlatformSignUp(w http.ResponseWriter, r *http.Request, params oauthmodel.PlatformParams) {
	target, err := redirect.BuildPlatformEntryURL(s.config.GetPlatformSignUpURL(), "", params, s.flows.AllowedRedirectOrigins())
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Platform sign-up URL is not configured")
		s.renderSignIn(w, r, pageSignUp)
		return
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// CallbackHandler receives the Platform's answer to a flow started at idp-start.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		if code := q.Get("error"); code != "" {
			zerolog.Ctx(ctx).Warn().Str("error", code).Msg("Platform returned an error to the callback")
			http.Redirect(w, r, s.errorPageURL(code), http.StatusFound)
			return
		}

		outcome, err := s.flows.CompleteCallback(ctx, w, r, q.Get(oauthmodel.ParamCode), q.Get(oauthmodel.ParamState))
		if err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("Callback failed")
			http.Redirect(w, r, s.errorPageURL(callbackErrorCode(err)), http.StatusFound)
			return
		}
		if !s.redirectOutcome(w, r, outcome) {
			http.Redirect(w, r, s.localURL("/"), http.StatusFound)
		}
	}
}

func callbackErrorCode(err error) string {
	ae, ok := autherrors.AsAuthentication(err)
	switch {
	case ok && ae.Reason == autherrors.ReasonMissingParameter:
		return "invalid_request"
	case ok && ae.Reason == autherrors.ReasonForbidden:
		return "access_denied"
	case ok:
		return "invalid_grant"
	case autherrors.IsIdpFailed(err):
		return "temporarily_unavailable"
	default:
		return "server_error"
	}
}

// SignOutHandler revokes the refresh token before dropping every auth cookie.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.tokens.RevokeAndClear(r.Context(), w, r)
		s.jar.ClearAll(w, r)

		target := s.config.GetSignOutRedirectURL()
		if target == "" {
			target = s.localURL(RouteSignIn)
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// ErrorPageHandler renders fixed text for the error code; the code is not echoed.
func (s *Server) ErrorPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderAuthError(w, r, r.URL.Query().Get("error"))
	}
}
