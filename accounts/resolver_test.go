package accounts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/OWOX/owox-data-marts-sub009/accounts"
	"github.com/OWOX/owox-data-marts-sub009/internal/utils"
	"github.com/OWOX/owox-data-marts-sub009/users"
	fakeuserrepo "github.com/OWOX/owox-data-marts-sub009/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testUserID = "u1"
	testEmail  = "user@example.com"
)

type testFixture struct {
	repo     *fakeuserrepo.FakeUserRepo
	resolver *accounts.Resolver
	user     *users.DatabaseUser
}

func setupTestFixture(t *testing.T, user *users.DatabaseUser, providers ...string) *testFixture {
	t.Helper()

	repo := fakeuserrepo.NewFakeUserRepo()
	repo.Upsert(user)
	for _, p := range providers {
		repo.AddAccount(&users.DatabaseAccount{UserID: user.ID, ProviderID: p, AccountID: "acc-" + p})
	}
	return &testFixture{
		repo:     repo,
		resolver: accounts.NewResolver(repo, repo),
		user:     user,
	}
}

func TestNormalizeProvider(t *testing.T) {
	for in, want := range map[string]string{
		" Email ":        "credential",
		"EMAIL":          "credential",
		"email-password": "credential",
		"Credential":     "credential",
		" Google ":       "google",
		"":               "",
	} {
		require.Equal(t, want, accounts.NormalizeProvider(in), in)
	}
}

func TestResolvePriority(t *testing.T) {
	ctx := context.Background()
	user := func() *users.DatabaseUser {
		return &users.DatabaseUser{
			ID:               testUserID,
			Email:            testEmail,
			LastLoginMethod:  utils.Ptr("google"),
			FirstLoginMethod: utils.Ptr("email"),
		}
	}

	t.Run("last login method wins over first", func(t *testing.T) {
		f := setupTestFixture(t, user(), "credential", "google")
		account, err := f.resolver.Resolve(ctx, f.user, "")
		require.NoError(t, err)
		require.Equal(t, "acc-google", account.AccountID)
	})

	t.Run("explicit preference wins", func(t *testing.T) {
		f := setupTestFixture(t, user(), "credential", "google")
		account, err := f.resolver.Resolve(ctx, f.user, " EMAIL ")
		require.NoError(t, err)
		require.Equal(t, "acc-credential", account.AccountID)
		require.Equal(t, []string{"credential"}, f.repo.AccountLookups)
	})

	t.Run("missing candidate moves to next", func(t *testing.T) {
		f := setupTestFixture(t, user(), "credential", "google")
		account, err := f.resolver.Resolve(ctx, f.user, "microsoft")
		require.NoError(t, err)
		require.Equal(t, "acc-google", account.AccountID)
		require.Equal(t, []string{"microsoft", "google"}, f.repo.AccountLookups)
	})

	t.Run("first login method", func(t *testing.T) {
		f := setupTestFixture(t, user(), "credential", "linkedin")
		account, err := f.resolver.Resolve(ctx, f.user, "")
		require.NoError(t, err)
		require.Equal(t, "acc-credential", account.AccountID)
	})

	t.Run("latest account fallback", func(t *testing.T) {
		f := setupTestFixture(t, user(), "linkedin", "microsoft")
		account, err := f.resolver.Resolve(ctx, f.user, "")
		require.NoError(t, err)
		require.Equal(t, "acc-microsoft", account.AccountID)
		require.Equal(t, 1, f.repo.LatestLookups)
	})

	t.Run("duplicate candidates are queried once", func(t *testing.T) {
		u := user()
		u.LastLoginMethod = utils.Ptr("Google")
		u.FirstLoginMethod = utils.Ptr("google")
		f := setupTestFixture(t, u, "microsoft")
		_, err := f.resolver.Resolve(ctx, f.user, "google")
		require.NoError(t, err)
		require.Equal(t, []string{"google"}, f.repo.AccountLookups)
	})

	t.Run("no accounts is not an error", func(t *testing.T) {
		f := setupTestFixture(t, user())
		account, err := f.resolver.Resolve(ctx, f.user, "")
		require.NoError(t, err)
		require.Nil(t, account)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		f := setupTestFixture(t, user(), "google")
		f.repo.Err = errors.New("db down")
		_, err := f.resolver.Resolve(ctx, f.user, "")
		require.Error(t, err)
	})
}

func TestResolveByEmail(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, &users.DatabaseUser{ID: testUserID, Email: testEmail}, "google")

	user, account, err := f.resolver.ResolveByEmail(ctx, " USER@example.com ", "")
	require.NoError(t, err)
	require.Equal(t, testUserID, user.ID)
	require.Equal(t, "acc-google", account.AccountID)

	user, account, err = f.resolver.ResolveByEmail(ctx, "nobody@example.com", "")
	require.NoError(t, err)
	require.Nil(t, user)
	require.Nil(t, account)

	user, account, err = f.resolver.ResolveByUserID(ctx, testUserID, "")
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
	require.Equal(t, "acc-google", account.AccountID)
}
