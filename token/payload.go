package token

import "github.com/golang-jwt/jwt/v5"

// Payload is the claim set of a Platform access token.
type Payload struct {
	UserID         string   `json:"userId"`
	ProjectID      string   `json:"projectId"`
	Email          string   `json:"email"`
	FullName       string   `json:"fullName,omitempty"`
	ProjectTitle   string   `json:"projectTitle,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	SigninProvider string   `json:"signinProvider,omitempty"`
	ExternalUserID string   `json:"externalUserId,omitempty"`
	EmailVerified  *bool    `json:"emailVerified,omitempty"`
	jwt.RegisteredClaims
}
