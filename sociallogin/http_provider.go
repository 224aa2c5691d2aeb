package sociallogin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/cookies"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	sessionPath     = "/get-session"
	providerTimeout = 10 * time.Second
	maxSessionBytes = 1 << 20
)

// hop-by-hop headers are not forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type ProviderConfig interface {
	GetSocialLoginURL() string
	GetSecureCookies() bool
}

// HTTPProvider forwards requests to an external social-login service mounted
// under mountPath on this server.
type HTTPProvider struct {
	baseURL    *url.URL
	mountPath  string
	secure     bool
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewHTTPProvider(cfg ProviderConfig, mountPath string) (*HTTPProvider, error) {
	baseURL, err := url.Parse(strings.TrimRight(cfg.GetSocialLoginURL(), "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid social login url %q", cfg.GetSocialLoginURL())
	}
	return &HTTPProvider{
		baseURL:   baseURL,
		mountPath: strings.TrimRight(mountPath, "/"),
		secure:    cfg.GetSecureCookies(),
		httpClient: &http.Client{
			Timeout: providerTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: log.With().Str("component", "SocialLoginProvider").Logger(),
	}, nil
}

var _ Provider = (*HTTPProvider)(nil)

func (p *HTTPProvider) CookieName() string {
	if p.secure {
		return cookies.SecurePrefix + cookies.SocialSessionCookie
	}
	return cookies.SocialSessionCookie
}

func (p *HTTPProvider) target(path, rawQuery string) *url.URL {
	u := *p.baseURL
	u.Path = p.baseURL.Path + path
	u.RawQuery = rawQuery
	return &u
}

func (p *HTTPProvider) Handle(ctx context.Context, r *http.Request) (*http.Response, error) {
	rest := strings.TrimPrefix(r.URL.Path, p.mountPath)
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, p.target(rest, r.URL.RawQuery).String(), r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPProvider Handle]")
	}
	req.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Set("X-Forwarded-Host", r.Host)
	req.Header.Set("X-Forwarded-Proto", cookies.Scheme(r))
	req.ContentLength = r.ContentLength

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPProvider Handle]")
	}
	return resp, nil
}

// GetSession calls the provider's session endpoint with cookie as the only credential.
func (p *HTTPProvider) GetSession(ctx context.Context, cookie *http.Cookie) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target(sessionPath, "").String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPProvider GetSession]")
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPProvider GetSession]")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[HTTPProvider GetSession] unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Session *Session     `json:"session"`
		User    *SessionUser `json:"user"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSessionBytes)).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[HTTPProvider GetSession] decode")
	}
	if body.Session == nil || body.User == nil || body.User.ID == "" {
		return nil, nil
	}
	body.Session.User = *body.User
	return body.Session, nil
}
