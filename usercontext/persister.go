package usercontext

import (
	"context"

	"github.com/OWOX/owox-data-marts-sub009/accounts"
	"github.com/OWOX/owox-data-marts-sub009/token"
	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuthInfoPersister records how users sign in. Every method is best effort:
// failures are logged and never returned.
type AuthInfoPersister struct {
	users  users.UserRepo
	logger zerolog.Logger
}

func NewAuthInfoPersister(userRepo users.UserRepo) *AuthInfoPersister {
	return &AuthInfoPersister{
		users:  userRepo,
		logger: log.With().Str("component", "AuthInfoPersister").Logger(),
	}
}

// PersistFromPayload stores the sign-in provider as first login method and the
// Identity Authority user id as external user id, both write-once. The provider
// also becomes the last login method.
func (p *AuthInfoPersister) PersistFromPayload(ctx context.Context, payload *token.Payload) {
	if payload == nil {
		return
	}
	email, ok := users.NormalizeEmail(payload.Email)
	if !ok {
		p.logger.Warn().Msg("Cannot persist auth info: email missing from token payload")
		return
	}

	externalID := payload.ExternalUserID
	if externalID == "" {
		externalID = payload.UserID
	}
	method := accounts.NormalizeProvider(payload.SigninProvider)
	if externalID == "" && method == "" {
		return
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		p.logger.Warn().Err(err).Str("tokenUserId", payload.UserID).Msg("Cannot persist auth info: user lookup failed")
		return
	}

	if method != "" && user.FirstLoginMethod == nil {
		if err := p.users.SetFirstLoginMethod(ctx, user.ID, method); err != nil {
			p.logger.Warn().Err(err).Str("userId", user.ID).Msg("Failed to persist first login method")
		}
	}
	if externalID != "" && user.ExternalUserID == nil {
		if err := p.users.SetExternalUserID(ctx, user.ID, externalID); err != nil {
			p.logger.Warn().Err(err).Str("userId", user.ID).Msg("Failed to persist external user id")
		}
	}
	p.PersistLastLoginMethod(ctx, user.ID, method)
}

// PersistLastLoginMethod overwrites the user's last login method.
func (p *AuthInfoPersister) PersistLastLoginMethod(ctx context.Context, userID, method string) {
	method = accounts.NormalizeProvider(method)
	if userID == "" || method == "" {
		return
	}
	if err := p.users.SetLastLoginMethod(ctx, userID, method); err != nil {
		p.logger.Warn().Err(err).Str("userId", userID).Str("method", method).Msg("Failed to persist last login method")
	}
}
