package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"

	authErrorHeading        = "Sign in failed"
	defaultAuthErrorMessage = "Unable to complete sign in. Please try again."
)

// knownAuthErrors maps OAuth, social-login and provider error codes to fixed text.
// Unknown codes fall back to defaultAuthErrorMessage; the code itself is never shown.
var knownAuthErrors = map[string]string{
	// OAuth/OIDC standard errors
	"access_denied":              "Access was denied. Please try again and grant the required permissions.",
	"invalid_request":            "The sign-in request is invalid. Please try again.",
	"unauthorized_client":        "This application is not authorized for this sign-in request.",
	"unsupported_response_type":  "The identity provider returned an unsupported response type.",
	"invalid_scope":              "Requested permissions are invalid or unavailable.",
	"server_error":               "The identity provider encountered an error. Please try again later.",
	"temporarily_unavailable":    "Sign in is temporarily unavailable. Please try again later.",
	"invalid_client":             "Authentication client configuration is invalid.",
	"invalid_grant":              "The sign-in grant is invalid or has expired. Please try again.",
	"interaction_required":       "Additional interaction is required to complete sign in.",
	"login_required":             "Please sign in with your account to continue.",
	"account_selection_required": "Please select an account to continue.",
	"consent_required":           "Additional consent is required to continue.",
	"admin_consent_required":     "Administrator approval is required for this sign in.",
	"invalid_resource":           "Requested resource is unavailable for this account.",

	// Social-login callback errors
	"signup_disabled":                          "Sign up is currently disabled.",
	"account_already_linked_to_different_user": "This social account is already linked to another user.",
	"unable_to_link_account":                   "Unable to link this social account. Please try again.",
	"unable_to_get_user_info":                  "Unable to get account data from the identity provider.",
	"email_doesnt_match":                       "The returned email does not match the expected account.",
	"email_not_found":                          "Email was not returned by the identity provider.",
	"oauth_provider_not_found":                 "Requested sign-in provider is not configured.",
	"no_callback_url":                          "Sign-in callback URL is missing.",
	"no_code":                                  "Authorization code is missing from the callback.",
	"state_mismatch":                           "Sign-in state mismatch detected. Please try again.",
	"state_not_found":                          "Sign-in state was not found. Please restart sign in.",
	"invalid_callback_request":                 "OAuth callback request is invalid.",

	// Google and Microsoft error hints
	"redirect_uri_mismatch": "Authentication redirect URL configuration is incorrect.",
	"org_internal":          "This sign-in is restricted to organization accounts.",
	"admin_policy_enforced": "Your organization policy blocked the requested access.",
	"disallowed_useragent":  "This browser is not allowed for this sign-in flow.",
}

// AuthErrorMessage resolves an error code to the text shown to the user.
func AuthErrorMessage(code string) string {
	if msg, ok := knownAuthErrors[code]; ok {
		return msg
	}
	return defaultAuthErrorMessage
}

type socialProvider struct {
	ID    string
	Label string
}

var socialProviders = []socialProvider{
	{ID: "google", Label: "Google"},
	{ID: "microsoft", Label: "Microsoft"},
}

type signInPageData struct {
	AppName       string
	SignUp        bool
	ErrorMessage  string
	Providers     []socialProvider
	ProviderBase  string
	EmailEndpoint string
	CallbackHref  string
	SignInHref    string
	SignUpHref    string
}

type errorPageData struct {
	AppName   string
	Heading   string
	Message   string
	HomeHref  string
	HomeLabel string
}

// render buffers the page; a template failure becomes a plain 500.
func render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("template", tmpl.Name()).Msg("Failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderAuthError(w http.ResponseWriter, r *http.Request, code string) {
	render(w, r, s.errorPage, http.StatusBadRequest, errorPageData{
		AppName:   s.config.GetAppName(),
		Heading:   authErrorHeading,
		Message:   AuthErrorMessage(code),
		HomeHref:  "/",
		HomeLabel: "Go to home",
	})
}
