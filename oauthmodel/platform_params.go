package oauthmodel

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Query keys of the pass-through parameters.
const (
	ParamSource        = "source"
	ParamRedirectTo    = "redirect-to"
	ParamAppRedirectTo = "app-redirect-to"
	ParamClientID      = "clientId"
	ParamCodeChallenge = "codeChallenge"
	ParamProjectID     = "projectId"
	ParamState         = "state"
	ParamCode          = "code"
)

// PlatformParams are threaded across redirects between the app, this bridge and the Platform.
// None of them is trusted: redirect targets are validated before being forwarded.
type PlatformParams struct {
	Source        string `json:"source,omitempty"`
	RedirectTo    string `json:"redirectTo,omitempty"`
	AppRedirectTo string `json:"appRedirectTo,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
	CodeChallenge string `json:"codeChallenge,omitempty"`
	ProjectID     string `json:"projectId,omitempty"`
}

// PlatformParamsFromQuery reads the pass-through parameters from a query string.
func PlatformParamsFromQuery(q url.Values) PlatformParams {
	get := func(key string) string { return strings.TrimSpace(q.Get(key)) }
	return PlatformParams{
		Source:        get(ParamSource),
		RedirectTo:    get(ParamRedirectTo),
		AppRedirectTo: get(ParamAppRedirectTo),
		ClientID:      get(ParamClientID),
		CodeChallenge: get(ParamCodeChallenge),
		ProjectID:     get(ParamProjectID),
	}
}

// IsEmpty is true when no parameter is set.
func (p PlatformParams) IsEmpty() bool {
	return p == PlatformParams{}
}

// Merge fills the unset fields of p from fallback.
func (p PlatformParams) Merge(fallback PlatformParams) PlatformParams {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return PlatformParams{
		Source:        pick(p.Source, fallback.Source),
		RedirectTo:    pick(p.RedirectTo, fallback.RedirectTo),
		AppRedirectTo: pick(p.AppRedirectTo, fallback.AppRedirectTo),
		ClientID:      pick(p.ClientID, fallback.ClientID),
		CodeChallenge: pick(p.CodeChallenge, fallback.CodeChallenge),
		ProjectID:     pick(p.ProjectID, fallback.ProjectID),
	}
}

// SourceOrDefault returns the declared source, "app" when unset.
func (p PlatformParams) SourceOrDefault() string {
	if p.Source == "" {
		return string(SourceApp)
	}
	return p.Source
}

func (p PlatformParams) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

func (p *PlatformParams) UnmarshalBinary(data []byte) error {
	var decoded PlatformParams
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ErrInvalidPlatformParams
	}
	*p = decoded
	return nil
}
