package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const completePath = "/idp/auth-flow/complete"

// UserInfo identifies the signed-in user to the Platform.
type UserInfo struct {
	UID            string `json:"uid"`
	SigninProvider string `json:"signinProvider"`
	Email          string `json:"email"`
	FullName       string `json:"fullName,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
}

// AuthFlowPayload is sent to the completion API to mint a Platform authorization code.
type AuthFlowPayload struct {
	State    string   `json:"state"`
	UserInfo UserInfo `json:"userInfo"`
}

type CompletionConfig interface {
	GetIdentityBaseURL() string
	GetBackchannelPrefix() string
	GetBackchannelToken() string
	GetIdentityTimeout() time.Duration
}

// CompletionClient calls the Platform backchannel that turns a verified user and a
// state into an authorization code.
type CompletionClient struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewCompletionClient authenticates with the static backchannel bearer token when one is configured.
func NewCompletionClient(cfg CompletionConfig) *CompletionClient {
	httpClient := &http.Client{Timeout: cfg.GetIdentityTimeout()}
	if token := cfg.GetBackchannelToken(); token != "" {
		httpClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		}
	}
	return &CompletionClient{
		endpoint:   strings.TrimRight(cfg.GetIdentityBaseURL(), "/") + cfg.GetBackchannelPrefix() + completePath,
		httpClient: httpClient,
		logger:     log.With().Str("component", "CompletionClient").Logger(),
	}
}

// CompleteAuthFlow returns the authorization code for payload.State.
// A state the Platform no longer knows yields an AuthenticationError with ReasonStateExpired.
func (c *CompletionClient) CompleteAuthFlow(ctx context.Context, payload AuthFlowPayload) (string, error) {
	const op = "complete-auth-flow"

	data, err := json.Marshal(payload)
	if err != nil {
		return "", autherrors.NewIdpFailed(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", autherrors.NewIdpFailed(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", autherrors.NewIdpFailed(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", autherrors.NewIdpFailed(op, errors.Wrap(err, "read response"))
	}

	var result struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode == http.StatusGone || result.Error == string(autherrors.ReasonStateExpired) {
		return "", autherrors.NewAuthentication(autherrors.ReasonStateExpired, nil, "op", op)
	}
	// 401 and 403 here judge this service's backchannel credential, not the user.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", truncate(body)).Msg("Auth flow completion failed")
		return "", autherrors.NewIdpFailed(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if result.Code == "" {
		return "", autherrors.NewIdpFailed(op, fmt.Errorf("response without code"))
	}
	return result.Code, nil
}
