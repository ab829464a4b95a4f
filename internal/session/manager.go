package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"semaphore/gradebook/internal/crypto"
	"semaphore/gradebook/internal/model"
)

const tokenKey = "sid"

// Manager binds server-side sessions to a signed cookie that only carries
// the opaque session token.
type Manager struct {
	cookies *sessions.CookieStore
	store   Store
	name    string
	ttl     time.Duration
}

func NewManager(store Store, secret, cookieName string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	cookies.MaxAge(int(ttl.Seconds()))
	return &Manager{cookies: cookies, store: store, name: cookieName, ttl: ttl}, nil
}

// Start opens a new session for identity and writes its cookie.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, identity model.Identity) error {
	token, err := crypto.NewSessionToken()
	if err != nil {
		return err
	}
	if err := m.store.Save(r.Context(), token, identity, m.ttl); err != nil {
		return err
	}
	// a cookie that no longer decodes still yields a usable new session
	sess, _ := m.cookies.Get(r, m.name)
	sess.Values[tokenKey] = token
	sess.Options.Secure = r.TLS != nil
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("write session cookie: %w", err)
	}
	return nil
}

// Identity resolves the session cookie of r. It returns ErrNotFound when the
// request carries no live session.
func (m *Manager) Identity(r *http.Request) (model.Identity, error) {
	token, ok := m.token(r)
	if !ok {
		return model.Identity{}, ErrNotFound
	}
	return m.store.Load(r.Context(), token)
}

// End deletes the server-side session and expires the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) error {
	if token, ok := m.token(r); ok {
		if err := m.store.Delete(r.Context(), token); err != nil {
			return err
		}
	}
	sess, _ := m.cookies.Get(r, m.name)
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func (m *Manager) token(r *http.Request) (string, bool) {
	sess, err := m.cookies.Get(r, m.name)
	if err != nil || sess.IsNew {
		return "", false
	}
	token, ok := sess.Values[tokenKey].(string)
	return token, ok && token != ""
}
