package oauthmodel_test

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/OWOX/owox-data-marts-sub009/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestNewPKCE(t *testing.T) {
	pkce := oauthmodel.NewPKCE()
	require.Equal(t, oauthmodel.CodeMethodTypeS256, pkce.Method)
	require.GreaterOrEqual(t, len(pkce.CodeVerifier), 43)

	sum := sha256.Sum256([]byte(pkce.CodeVerifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), pkce.CodeChallenge)

	require.NotEqual(t, pkce.CodeVerifier, oauthmodel.NewPKCE().CodeVerifier)
}

func TestNewState(t *testing.T) {
	a, err := oauthmodel.NewState()
	require.NoError(t, err)
	b, err := oauthmodel.NewState()
	require.NoError(t, err)
	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}

func TestPlatformParams(t *testing.T) {
	q := url.Values{}
	q.Set("source", " platform ")
	q.Set("redirect-to", "/data-marts")
	q.Set("projectId", "p1")

	params := oauthmodel.PlatformParamsFromQuery(q)
	require.Equal(t, "platform", params.Source)
	require.Equal(t, "/data-marts", params.RedirectTo)
	require.Equal(t, "p1", params.ProjectID)

	merged := oauthmodel.PlatformParams{ProjectID: "p2"}.Merge(params)
	require.Equal(t, "p2", merged.ProjectID)
	require.Equal(t, "platform", merged.Source)

	require.True(t, oauthmodel.PlatformParams{}.IsEmpty())
	require.Equal(t, "app", oauthmodel.PlatformParams{}.SourceOrDefault())

	var decoded oauthmodel.PlatformParams
	require.ErrorIs(t, decoded.UnmarshalBinary([]byte("{not json")), oauthmodel.ErrInvalidPlatformParams)
}
