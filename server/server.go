package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/OWOX/owox-data-marts-sub009/auth"
	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/OWOX/owox-data-marts-sub009/internal/config"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/OWOX/owox-data-marts-sub009/sociallogin"
	"github.com/OWOX/owox-data-marts-sub009/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Flows is the part of the flow orchestrator the handlers drive.
type Flows interface {
	Start(ctx context.Context, params oauthmodel.PlatformParams) (*auth.Outcome, error)
	CompleteWithRefreshToken(ctx context.Context, w http.ResponseWriter, r *http.Request, refreshToken string, params oauthmodel.PlatformParams) *auth.Outcome
	CompleteWithSocialSession(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionToken string, params oauthmodel.PlatformParams, providerHint string) *auth.Outcome
	CompleteCallback(ctx context.Context, w http.ResponseWriter, r *http.Request, code, state string) (*auth.Outcome, error)
	AllowedRedirectOrigins() config.AllowedOrigins
}

// Tokens is the token facade as seen by the API handlers.
type Tokens interface {
	Refresh(ctx context.Context, refreshToken string) (*oauthmodel.TokenSet, error)
	Parse(ctx context.Context, token string) (*token.Payload, error)
	StoreTokens(w http.ResponseWriter, r *http.Request, tokens *oauthmodel.TokenSet)
	ClearRefreshTokenCookie(w http.ResponseWriter, r *http.Request)
	RefreshTokenFromRequest(r *http.Request) string
	RevokeAndClear(ctx context.Context, w http.ResponseWriter, r *http.Request)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Flows    Flows
	Tokens   Tokens
	Provider sociallogin.Provider
	Cookies  *cookies.Jar
	Stores   []Pinger
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	flows    Flows
	tokens   Tokens
	provider sociallogin.Provider
	jar      *cookies.Jar
	stores   []Pinger

	signInPage *template.Template
	errorPage  *template.Template
	logger     zerolog.Logger
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Flows == nil || deps.Tokens == nil || deps.Cookies == nil {
		return nil, errors.New("[Server New] flows, tokens and cookies are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		flows:    deps.Flows,
		tokens:   deps.Tokens,
		provider: deps.Provider,
		jar:      deps.Cookies,
		stores:   deps.Stores,
		logger:   log.With().Str("component", "Server").Logger(),
	}

	var err error
	if s.signInPage, err = ParseTemplate("sign_in.html"); err != nil {
		return nil, fmt.Errorf("[Server New] sign-in template: %w", err)
	}
	if s.errorPage, err = ParseTemplate("error.html"); err != nil {
		return nil, fmt.Errorf("[Server New] error template: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

func (s *Server) localURL(path string) string {
	return s.config.GetBaseURL() + path
}

// errorPageURL points at the local error page for a provider or flow error code.
func (s *Server) errorPageURL(code string) string {
	return s.localURL(RouteAuthError) + "?error=" + url.QueryEscape(code)
}

func (s *Server) redirectOutcome(w http.ResponseWriter, r *http.Request, outcome *auth.Outcome) bool {
	if !outcome.Redirects() {
		return false
	}
	http.Redirect(w, r, outcome.RedirectURL.String(), http.StatusFound)
	return true
}
