package server

import (
	"fmt"
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	// PLATFORM FLOW
	s.RegisterRouteHandler("GET "+RouteIdpStart, ChainMiddleware(s.IdpStartHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSignIn, ChainMiddleware(s.SignInPageHandler(pageSignIn), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSignUp, ChainMiddleware(s.SignInPageHandler(pageSignUp), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthError, ChainMiddleware(s.ErrorPageHandler(), s.HTMLMiddleWare()...))

	// API routes
	s.RegisterRouteHandler("POST "+RouteAccessToken, ChainMiddleware(s.AccessTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAccessToken, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIUser, ChainMiddleware(s.UserInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPIUser, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	// Social-login provider, all methods
	if s.provider != nil {
		s.RegisterRouteHandler(RouteSocialLogin, ChainMiddleware(s.SocialLoginProxyHandler(), s.ProxyMiddleware()...))
	}

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.PathValue("file"), "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			s.logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func (s *Server) logError(method, path, error string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	if s.env != "DEV" {
		displayMethod = method
	} else {
		error = Red + error + ResetColor
	}
	s.logger.Warn().Msgf("[%-19s] %s %s", displayMethod, path, error)
}
