package fakeuserrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OWOX/owox-data-marts-sub009/internal/utils"
	"github.com/OWOX/owox-data-marts-sub009/users"
	"github.com/google/uuid"
)

var (
	_ users.UserRepo    = (*FakeUserRepo)(nil)
	_ users.AccountRepo = (*FakeUserRepo)(nil)
)

// FakeUserRepo keeps users and accounts in memory and counts lookups.
type FakeUserRepo struct {
	users    map[string]*users.DatabaseUser
	emailIds map[string]string // email to user id
	accounts []*users.DatabaseAccount
	lock     sync.RWMutex

	AccountLookups []string // provider ids queried through GetByUserAndProvider
	LatestLookups  int
	Err            error // returned by every call when set
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.DatabaseUser),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.DatabaseUser) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.emailIds[strings.ToLower(user.Email)] = user.ID
}

// AddAccount links an account; CreatedAt defaults to an increasing timestamp.
func (ur *FakeUserRepo) AddAccount(account *users.DatabaseAccount) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(ur.accounts)) * time.Hour)
	}
	ur.accounts = append(ur.accounts, account)
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.DatabaseUser, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.Err != nil {
		return nil, ur.Err
	}
	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.DatabaseUser, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.Err != nil {
		return nil, ur.Err
	}
	u, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (ur *FakeUserRepo) SetFirstLoginMethod(_ context.Context, userID, method string) error {
	return ur.update(userID, func(u *users.DatabaseUser) {
		if utils.Value(u.FirstLoginMethod) == "" {
			u.FirstLoginMethod = utils.Ptr(method)
		}
	})
}

func (ur *FakeUserRepo) SetExternalUserID(_ context.Context, userID, externalUserID string) error {
	return ur.update(userID, func(u *users.DatabaseUser) {
		if utils.Value(u.ExternalUserID) == "" {
			u.ExternalUserID = utils.Ptr(externalUserID)
		}
	})
}

func (ur *FakeUserRepo) SetLastLoginMethod(_ context.Context, userID, method string) error {
	return ur.update(userID, func(u *users.DatabaseUser) {
		u.LastLoginMethod = utils.Ptr(method)
	})
}

func (ur *FakeUserRepo) update(userID string, apply func(*users.DatabaseUser)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if ur.Err != nil {
		return ur.Err
	}
	u, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	apply(u)
	return nil
}

func (ur *FakeUserRepo) GetByUserAndProvider(_ context.Context, userID, providerID string) (*users.DatabaseAccount, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.AccountLookups = append(ur.AccountLookups, providerID)
	if ur.Err != nil {
		return nil, ur.Err
	}
	return latest(ur.accounts, func(a *users.DatabaseAccount) bool {
		return a.UserID == userID && a.ProviderID == providerID
	})
}

func (ur *FakeUserRepo) GetLatestByUser(_ context.Context, userID string) (*users.DatabaseAccount, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.LatestLookups++
	if ur.Err != nil {
		return nil, ur.Err
	}
	return latest(ur.accounts, func(a *users.DatabaseAccount) bool {
		return a.UserID == userID
	})
}

func latest(accounts []*users.DatabaseAccount, match func(*users.DatabaseAccount) bool) (*users.DatabaseAccount, error) {
	var matched []*users.DatabaseAccount
	for _, a := range accounts {
		if match(a) {
			matched = append(matched, a)
		}
	}
	if len(matched) == 0 {
		return nil, users.ErrNotFound
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	a := *matched[0]
	return &a, nil
}
