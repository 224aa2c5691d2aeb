package oauthmodel

// GrantType represents the OAuth 2.0 grant type sent to the Identity Authority token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, code_verifier
	// Returns: access_token and a refresh_token
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Token request includes: refresh_token, client_id
	// Returns: new access_token and a rotated refresh_token
	RefreshTokenGrant GrantType = "refresh_token"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	// Server validates: SHA256(provided code_verifier) == stored code_challenge
	CodeMethodTypeS256 CodeMethodType = "S256"
)

// Source tells the bridge who initiated a sign-in round-trip.
type Source string

const (
	// SourceApp is the default: the data-marts app started the flow through /auth/idp-start.
	SourceApp Source = "app"
)
