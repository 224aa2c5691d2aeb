package users

import (
	"net/mail"
	"strings"
	"time"
)

// DatabaseUser is the local user row the bridge reads and updates.
type DatabaseUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Name          string `json:"name,omitempty"`
	Image         string `json:"image,omitempty"`

	// FirstLoginMethod is set once, from the first token carrying a sign-in provider.
	FirstLoginMethod *string `json:"firstLoginMethod,omitempty"`
	// LastLoginMethod is overwritten after every successful authentication.
	LastLoginMethod *string `json:"lastLoginMethod,omitempty"`
	// ExternalUserID is the Identity Authority user id, set once.
	ExternalUserID *string `json:"externalUserId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DatabaseAccount links a local user to one external identity provider.
type DatabaseAccount struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ProviderID string    `json:"providerId"`
	AccountID  string    `json:"accountId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NormalizeEmail trims and lower-cases an address. It returns false when the
// result is empty or not a bare RFC 5322 address.
func NormalizeEmail(email string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", false
	}
	return normalized, true
}
