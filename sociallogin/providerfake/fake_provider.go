package fakeprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/OWOX/owox-data-marts-sub009/sociallogin"
)

var _ sociallogin.Provider = (*FakeProvider)(nil)

// FakeProvider serves sessions from memory. A session is only found under the
// cookie name it was registered with.
type FakeProvider struct {
	Name    string
	Handler http.HandlerFunc // serves Handle; 404 when nil
	Err     error            // returned by GetSession when set

	lock     sync.Mutex
	sessions map[string]*sociallogin.Session // cookie name + "=" + token
	Lookups  []string                        // cookie names queried
}

func NewFakeProvider(cookieName string) *FakeProvider {
	return &FakeProvider{
		Name:     cookieName,
		sessions: make(map[string]*sociallogin.Session),
	}
}

// AddSession registers session under cookieName=token.
func (p *FakeProvider) AddSession(cookieName, token string, session *sociallogin.Session) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.sessions[cookieName+"="+token] = session
}

func (p *FakeProvider) CookieName() string {
	return p.Name
}

func (p *FakeProvider) GetSession(_ context.Context, cookie *http.Cookie) (*sociallogin.Session, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.Lookups = append(p.Lookups, cookie.Name)
	if p.Err != nil {
		return nil, p.Err
	}
	session, ok := p.sessions[cookie.Name+"="+cookie.Value]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (p *FakeProvider) Handle(_ context.Context, r *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	if p.Handler == nil {
		http.NotFound(rec, r)
	} else {
		p.Handler(rec, r)
	}
	return rec.Result(), nil
}
