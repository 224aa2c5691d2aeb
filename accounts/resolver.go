package accounts

import (
	"context"
	"strings"

	"github.com/OWOX/owox-data-marts-sub009/internal/utils"
	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/pkg/errors"
)

// CredentialProvider is the canonical id of the email/password account.
const CredentialProvider = "credential"

var providerAliases = map[string]string{
	"email":          CredentialProvider,
	"email-password": CredentialProvider,
	"credential":     CredentialProvider,
}

// NormalizeProvider trims and lower-cases a provider id and maps known aliases
// to their canonical value. Empty input stays empty.
func NormalizeProvider(provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// Resolver picks the linked account that best represents how the user signs in.
type Resolver struct {
	users    users.UserRepo
	accounts users.AccountRepo
}

func NewResolver(userRepo users.UserRepo, accountRepo users.AccountRepo) *Resolver {
	return &Resolver{users: userRepo, accounts: accountRepo}
}

// Resolve tries, in order: preferredProvider, the user's last login method, the
// user's first login method, and finally the most recently linked account.
// It returns (nil, nil) when the user has no linked account.
func (r *Resolver) Resolve(ctx context.Context, user *users.DatabaseUser, preferredProvider string) (*users.DatabaseAccount, error) {
	if user == nil {
		return nil, nil
	}

	tried := make(map[string]struct{}, 3)
	for _, candidate := range []string{
		preferredProvider,
		utils.Value(user.LastLoginMethod),
		utils.Value(user.FirstLoginMethod),
	} {
		provider := NormalizeProvider(candidate)
		if provider == "" {
			continue
		}
		if _, done := tried[provider]; done {
			continue
		}
		tried[provider] = struct{}{}

		account, err := r.accounts.GetByUserAndProvider(ctx, user.ID, provider)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, users.ErrNotFound) {
			return nil, errors.Wrapf(err, "[Resolver Resolve] provider %s", provider)
		}
	}

	account, err := r.accounts.GetLatestByUser(ctx, user.ID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Resolver Resolve] latest account")
	}
	return account, nil
}

// ResolveByUserID loads the user and resolves its account. Both are nil when the user does not exist.
func (r *Resolver) ResolveByUserID(ctx context.Context, userID, preferredProvider string) (*users.DatabaseUser, *users.DatabaseAccount, error) {
	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Resolver ResolveByUserID]")
	}
	account, err := r.Resolve(ctx, user, preferredProvider)
	return user, account, err
}

// ResolveByEmail normalizes the address before the lookup.
func (r *Resolver) ResolveByEmail(ctx context.Context, email, preferredProvider string) (*users.DatabaseUser, *users.DatabaseAccount, error) {
	normalized, ok := users.NormalizeEmail(email)
	if !ok {
		return nil, nil, nil
	}
	user, err := r.users.GetByEmail(ctx, normalized)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Resolver ResolveByEmail]")
	}
	account, err := r.Resolve(ctx, user, preferredProvider)
	return user, account, err
}
