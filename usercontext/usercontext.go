package usercontext

import (
	"context"

	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/internal/utils"
	"github.com/OWOX/owox-data-marts-sub009/token"
	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenParser verifies an access token. Invalid tokens yield (nil, nil).
type TokenParser interface {
	Parse(ctx context.Context, token string) (*token.Payload, error)
}

type AccountResolver interface {
	Resolve(ctx context.Context, user *users.DatabaseUser, preferredProvider string) (*users.DatabaseAccount, error)
}

// UserContext is the verified identity behind an access token.
type UserContext struct {
	Payload *token.Payload
	User    *users.DatabaseUser
	Account *users.DatabaseAccount
}

// Service maps an access token to the local user and account.
type Service struct {
	parser   TokenParser
	users    users.UserRepo
	resolver AccountResolver
	logger   zerolog.Logger
}

func NewService(parser TokenParser, userRepo users.UserRepo, resolver AccountResolver) *Service {
	return &Service{
		parser:   parser,
		users:    userRepo,
		resolver: resolver,
		logger:   log.With().Str("component", "UserContextService").Logger(),
	}
}

// ResolveFromToken fails with an AuthenticationError on every expected miss. The
// email address is never put into the error.
func (s *Service) ResolveFromToken(ctx context.Context, accessToken string) (*UserContext, error) {
	payload, err := s.parser.Parse(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[ResolveFromToken] parse")
	}
	if payload == nil {
		return nil, autherrors.NewAuthentication(autherrors.ReasonInvalidToken, nil)
	}

	email, ok := users.NormalizeEmail(payload.Email)
	if !ok {
		return nil, autherrors.NewAuthentication(autherrors.ReasonEmailMissing, nil, "tokenUserId", payload.UserID)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return nil, autherrors.NewAuthentication(autherrors.ReasonUserNotFound, nil, "tokenUserId", payload.UserID)
	}
	if err != nil {
		return nil, autherrors.NewIdpFailed("load-user", err)
	}

	if !user.EmailVerified {
		return nil, autherrors.NewAuthentication(autherrors.ReasonEmailUnverified, nil, "userId", user.ID)
	}

	account, err := s.resolver.Resolve(ctx, user, utils.Value(user.LastLoginMethod))
	if err != nil {
		return nil, autherrors.NewIdpFailed("resolve-account", err)
	}
	if account == nil {
		return nil, autherrors.NewAuthentication(autherrors.ReasonAccountNotFound, nil, "userId", user.ID)
	}

	s.logger.Debug().Str("userId", user.ID).Str("provider", account.ProviderID).Msg("User context resolved")
	return &UserContext{Payload: payload, User: user, Account: account}, nil
}
