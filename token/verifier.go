package token

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/coreos/go-oidc/v3/oidc"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// minKeyRefetch bounds how often an unknown signing key forces a JWKS reload.
	minKeyRefetch = 30 * time.Second
	maxJWKSBytes  = 1 << 20
)

// ErrTokenRejected marks tokens that fail signature or claim checks.
var ErrTokenRejected = errors.New("access token rejected")

// VerifierConfig holds the local verification settings.
type VerifierConfig interface {
	GetJWKSURL() string
	GetJWTIssuer() string
	GetJWTClockTolerance() time.Duration
	GetJWTKeyCacheTTL() time.Duration
	GetIdentityTimeout() time.Duration
}

// Verifier checks access tokens locally against the Identity Authority signing keys.
// Keys are cached for the configured TTL; a TTL of zero or less keeps them until a
// token arrives that none of them can verify.
type Verifier struct {
	jwksURL    string
	issuer     string
	leeway     time.Duration
	cacheTTL   time.Duration
	httpClient *http.Client
	nowTime    func() time.Time
	logger     zerolog.Logger

	mu        sync.Mutex
	keySet    oidc.KeySet
	fetchedAt time.Time
	static    bool
}

type VerifierOption func(*Verifier)

// WithKeySet pins the key set, turning off remote fetching.
func WithKeySet(keySet oidc.KeySet) VerifierOption {
	return func(v *Verifier) {
		v.keySet = keySet
		v.static = true
	}
}

func WithVerifierNowTime(nowTime func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowTime = nowTime
	}
}

// WithVerifierHTTPClient replaces the client used for JWKS requests.
func WithVerifierHTTPClient(httpClient *http.Client) VerifierOption {
	return func(v *Verifier) {
		v.httpClient = httpClient
	}
}

func NewVerifier(cfg VerifierConfig, options ...VerifierOption) *Verifier {
	v := &Verifier{
		jwksURL:    cfg.GetJWKSURL(),
		issuer:     cfg.GetJWTIssuer(),
		leeway:     cfg.GetJWTClockTolerance(),
		cacheTTL:   cfg.GetJWTKeyCacheTTL(),
		httpClient: &http.Client{Timeout: cfg.GetIdentityTimeout()},
		nowTime:    time.Now,
		logger:     log.With().Str("component", "TokenVerifier").Logger(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// keys returns the cached key set, loading it when missing or stale. With force
// the set is reloaded unless it was loaded less than minKeyRefetch ago. A failed
// reload keeps serving a previously loaded set.
func (v *Verifier) keys(ctx context.Context, force bool) (oidc.KeySet, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.static {
		return v.keySet, false, nil
	}

	now := v.nowTime()
	age := now.Sub(v.fetchedAt)
	switch {
	case v.keySet == nil:
	case force && age >= minKeyRefetch:
	case !force && v.cacheTTL > 0 && age >= v.cacheTTL:
	default:
		return v.keySet, false, nil
	}

	keySet, err := v.fetchKeys(ctx)
	if err != nil {
		if v.keySet != nil && !force {
			v.logger.Warn().Err(err).Msg("JWKS reload failed, keeping cached keys")
			return v.keySet, false, nil
		}
		return nil, false, err
	}
	v.keySet = keySet
	v.fetchedAt = now
	return keySet, true, nil
}

func (v *Verifier) fetchKeys(ctx context.Context) (oidc.KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[fetchKeys] request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[fetchKeys] get")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[fetchKeys] unexpected status %d", resp.StatusCode)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&jwks); err != nil {
		return nil, errors.Wrap(err, "[fetchKeys] decode")
	}
	publicKeys := make([]crypto.PublicKey, 0, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if !k.Valid() || !k.IsPublic() {
			continue
		}
		publicKeys = append(publicKeys, k.Key)
	}
	if len(publicKeys) == 0 {
		return nil, errors.New("[fetchKeys] no signing keys")
	}
	v.logger.Debug().Int("keys", len(publicKeys)).Msg("Loaded JWKS")
	return &oidc.StaticKeySet{PublicKeys: publicKeys}, nil
}

// Verify checks signature, issuer and expiry and returns the claims. Rejected
// tokens wrap ErrTokenRejected; an unreachable key set is an IdpFailedError.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Payload, error) {
	if rawToken == "" {
		return nil, errors.Wrap(ErrTokenRejected, "[Verify] empty token")
	}

	keySet, fresh, err := v.keys(ctx, false)
	if err != nil {
		return nil, autherrors.NewIdpFailed("jwks", err)
	}
	body, err := keySet.VerifySignature(ctx, rawToken)
	if err != nil && !v.static && !fresh {
		// The signing key may have rotated since the cached set was loaded.
		reloaded, refetched, ferr := v.keys(ctx, true)
		if ferr != nil {
			return nil, autherrors.NewIdpFailed("jwks", ferr)
		}
		if refetched {
			body, err = reloaded.VerifySignature(ctx, rawToken)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(ErrTokenRejected, "[Verify] signature: %v", err)
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrapf(ErrTokenRejected, "[Verify] claims: %v", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowTime),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if err := jwt.NewValidator(opts...).Validate(&payload); err != nil {
		return nil, errors.Wrapf(ErrTokenRejected, "[Verify] claims: %v", err)
	}
	return &payload, nil
}
