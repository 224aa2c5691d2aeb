package oauthmodel

// TokenSet is the Identity Authority token endpoint response for both grants.
type TokenSet struct {
	// AccessToken is a signed JWT issued for the Platform.
	AccessToken string `json:"accessToken"`

	// RefreshToken is opaque and long-lived. It is written only into an
	// HTTP-only cookie and never returned to client scripts.
	// Empty when the Identity Authority did not issue one.
	RefreshToken string `json:"-"`

	// AccessTokenExpiresIn is the access token lifetime in seconds.
	AccessTokenExpiresIn int64 `json:"accessTokenExpiresIn"`

	// RefreshTokenExpiresIn is the refresh token lifetime in seconds, used as the cookie max-age.
	// Zero when absent.
	RefreshTokenExpiresIn int64 `json:"-"`
}

// HasRefreshToken reports whether the set carries a refresh token the caller can persist.
func (t *TokenSet) HasRefreshToken() bool {
	return t != nil && t.RefreshToken != "" && t.RefreshTokenExpiresIn > 0
}
