package server

import (
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/OWOX/owox-data-marts-sub009/auth"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/OWOX/owox-data-marts-sub009/sociallogin"
	"github.com/rs/zerolog"
)

const credentialProvider = "credential"

var callbackProviderPattern = regexp.MustCompile(`/callback/([^/]+)`)

// SocialLoginProxyHandler forwards everything under the mount point to the
// social-login provider. When the provider answers with a fresh session cookie
// the flow is completed here instead of passing the answer back.
func (s *Server) SocialLoginProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		resp, err := s.provider.Handle(ctx, r)
		if err != nil {
			logger.Err(err).Str("path", r.URL.Path).Msg("Social-login provider request failed")
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Internal server error"})
			return
		}
		defer resp.Body.Close()

		if !isMagicLinkVerification(r.URL.Path) {
			if sessionToken := sociallogin.ExtractSessionToken(resp, sociallogin.SessionCookieNames()); sessionToken != "" {
				params := oauthmodel.PlatformParamsFromQuery(r.URL.Query()).Merge(s.jar.Params(r))
				outcome := s.flows.CompleteWithSocialSession(ctx, w, r, sessionToken, params, ProviderHint(r.URL.Path))
				logger.Debug().Stringer("state", outcome.State).Msg("Social path finished")
				if s.redirectOutcome(w, r, outcome) {
					return
				}
				if outcome.State == auth.StateFailed {
					s.renderAuthError(w, r, "")
					return
				}
			}
		}

		copyResponse(w, resp)
	}
}

// ProviderHint names the sign-in method a provider path belongs to, or "".
func ProviderHint(path string) string {
	if m := callbackProviderPattern.FindStringSubmatch(path); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if strings.Contains(path, "/sign-in/email") || strings.Contains(path, "/sign-up/email") {
		return credentialProvider
	}
	return ""
}

// isMagicLinkVerification matches the paths that only confirm an email; the
// session they set is completed by the follow-up sign-in.
func isMagicLinkVerification(path string) bool {
	return strings.Contains(path, "/magic-link/verify")
}

func copyResponse(w http.ResponseWriter, resp *http.Response) {
	header := w.Header()
	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, v := range values {
			header.Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
