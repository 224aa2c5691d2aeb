package sessions

import (
	"context"
	"net/http"

	"github.com/OWOX/owox-data-marts-sub009/cookies"
	autherrors "github.com/OWOX/owox-data-marts-sub009/internal/errors"
	"github.com/OWOX/owox-data-marts-sub009/sociallogin"
	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CandidateTag names where a session cookie name comes from.
type CandidateTag string

const (
	TagConfigured     CandidateTag = "configured"
	TagBare           CandidateTag = "bare"
	TagSecurePrefixed CandidateTag = "secure-prefixed"
	TagHostLocked     CandidateTag = "host-locked"
)

// Candidate is one cookie name a session token may have been issued under.
type Candidate struct {
	Tag  CandidateTag
	Name string
}

// SessionLookup is the part of sociallogin.Provider the bridge needs.
type SessionLookup interface {
	GetSession(ctx context.Context, cookie *http.Cookie) (*sociallogin.Session, error)
	CookieName() string
}

// AccountResolver picks the account representing the user's sign-in.
type AccountResolver interface {
	Resolve(ctx context.Context, user *users.DatabaseUser, preferredProvider string) (*users.DatabaseAccount, error)
}

// Resolution is the outcome of a successful session lookup.
type Resolution struct {
	User    *users.DatabaseUser
	Account *users.DatabaseAccount
	Session *sociallogin.Session
}

// Bridge turns a raw social-login session token into a local user and account.
// The token alone does not say which cookie name it was issued under, so every
// candidate name is tried in order.
type Bridge struct {
	provider SessionLookup
	users    users.UserRepo
	resolver AccountResolver
	logger   zerolog.Logger
}

func NewBridge(provider SessionLookup, userRepo users.UserRepo, resolver AccountResolver) *Bridge {
	return &Bridge{
		provider: provider,
		users:    userRepo,
		resolver: resolver,
		logger:   log.With().Str("component", "SessionBridge").Logger(),
	}
}

// Candidates returns the cookie names to try, duplicates removed, configured name first.
func (b *Bridge) Candidates() []Candidate {
	all := []Candidate{
		{Tag: TagConfigured, Name: b.provider.CookieName()},
		{Tag: TagBare, Name: cookies.SocialSessionCookie},
		{Tag: TagSecurePrefixed, Name: cookies.SecurePrefix + cookies.SocialSessionCookie},
		{Tag: TagHostLocked, Name: cookies.HostPrefix + cookies.SocialSessionCookie},
	}
	seen := make(map[string]struct{}, len(all))
	candidates := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.Name == "" {
			continue
		}
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		candidates = append(candidates, c)
	}
	return candidates
}

// ResolveSession returns (nil, nil) when no candidate yields a session. A missing
// user or account is an AuthenticationError.
func (b *Bridge) ResolveSession(ctx context.Context, sessionToken, providerHint string) (*Resolution, error) {
	if sessionToken == "" {
		return nil, nil
	}

	session, err := b.lookup(ctx, sessionToken)
	if err != nil || session == nil {
		return nil, err
	}

	userID := session.UserID
	if userID == "" {
		userID = session.User.ID
	}
	user, err := b.users.GetByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, autherrors.NewAuthentication(autherrors.ReasonUserNotFound, nil, "userId", userID)
	}
	if err != nil {
		return nil, autherrors.NewIdpFailed("load-user", err)
	}

	preferred := providerHint
	if preferred == "" && user.LastLoginMethod != nil {
		preferred = *user.LastLoginMethod
	}
	account, err := b.resolver.Resolve(ctx, user, preferred)
	if err != nil {
		return nil, autherrors.NewIdpFailed("resolve-account", err)
	}
	if account == nil {
		return nil, autherrors.NewAuthentication(autherrors.ReasonAccountNotFound, nil, "userId", user.ID)
	}
	return &Resolution{User: user, Account: account, Session: session}, nil
}

func (b *Bridge) lookup(ctx context.Context, sessionToken string) (*sociallogin.Session, error) {
	var lastErr error
	for _, c := range b.Candidates() {
		session, err := b.provider.GetSession(ctx, &http.Cookie{Name: c.Name, Value: sessionToken})
		if err != nil {
			b.logger.Warn().Err(err).Str("candidate", string(c.Tag)).Msg("Session lookup failed")
			lastErr = err
			continue
		}
		if session != nil {
			b.logger.Debug().Str("candidate", string(c.Tag)).Msg("Session resolved")
			return session, nil
		}
	}
	if lastErr != nil {
		return nil, autherrors.NewIdpFailed("get-session", lastErr)
	}
	return nil, nil
}
