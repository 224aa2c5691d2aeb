package server

import "github.com/OWOX/owox-data-marts-sub009/auth"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Platform flow
	RouteIdpStart  = "/auth/idp-start"
	RouteSignIn    = auth.SignInPath
	RouteSignUp    = "/auth/sign-up"
	RouteCallback  = "/auth/callback"
	RouteSignOut   = "/auth/sign-out"
	RouteAuthError = "/auth/error"

	// API Routes
	RouteAccessToken = "/auth/access-token"
	RouteAPIUser     = "/auth/api/user"

	// Social-login provider mount point, everything below it is proxied
	RouteSocialLogin = "/auth/better-auth/"

	RouteHealth = "/healthz"

	// Static Asset Routes (patterns)
	RouteStatic = "/auth/static/{file}"
)
