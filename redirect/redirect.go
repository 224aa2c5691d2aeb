package redirect

import (
	"net/url"
	"strings"

	"github.com/OWOX/owox-data-marts-sub009/internal/config"
	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/pkg/errors"
)

// OriginAllowList decides which absolute redirect targets may be passed on.
type OriginAllowList interface {
	IsAllowedOrigin(origin string) bool
}

var ErrInvalidBaseURL = errors.New("platform url must be absolute")

// SanitizeRedirect keeps relative paths ("/x" but not "//x") and absolute URLs
// whose origin is allow-listed. Anything else is dropped.
func SanitizeRedirect(target string, allowed OriginAllowList) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsAny(target, "\\\r\n\t") {
		return "", false
	}
	if strings.HasPrefix(target, "/") {
		if strings.HasPrefix(target, "//") {
			return "", false
		}
		return target, true
	}
	origin, ok := config.OriginOf(target)
	if !ok || allowed == nil || !allowed.IsAllowedOrigin(origin) {
		return "", false
	}
	return target, true
}

// BuildPlatformEntryURL sends the user to a Platform page with the pass-through
// params and, when set, the state.
func BuildPlatformEntryURL(baseURL, state string, params oauthmodel.PlatformParams, allowed OriginAllowList) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "[BuildPlatformEntryURL]")
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	q := u.Query()
	q.Set(oauthmodel.ParamSource, params.SourceOrDefault())
	if target, ok := SanitizeRedirect(params.RedirectTo, allowed); ok {
		q.Set(oauthmodel.ParamRedirectTo, target)
	}
	if target, ok := SanitizeRedirect(params.AppRedirectTo, allowed); ok {
		q.Set(oauthmodel.ParamAppRedirectTo, target)
	}
	setIf(q, oauthmodel.ParamClientID, params.ClientID)
	setIf(q, oauthmodel.ParamCodeChallenge, params.CodeChallenge)
	setIf(q, oauthmodel.ParamProjectID, params.ProjectID)
	setIf(q, oauthmodel.ParamState, state)
	u.RawQuery = q.Encode()
	return u, nil
}

// BuildPlatformRedirectURL completes a flow: the Platform redeems code for the given state.
func BuildPlatformRedirectURL(baseURL, code, state string, params oauthmodel.PlatformParams, allowed OriginAllowList) (*url.URL, error) {
	u, err := BuildPlatformEntryURL(baseURL, state, params, allowed)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set(oauthmodel.ParamCode, code)
	q.Set(oauthmodel.ParamState, state)
	u.RawQuery = q.Encode()
	return u, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
