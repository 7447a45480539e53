package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
)

const CookieName = "fc_session"

// Manager ties a Store to the session cookie.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	logger *log.Logger
	now    func() time.Time
}

func NewManager(store Store, ttl time.Duration, secureCookie bool, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		secure: secureCookie,
		logger: logger.WithComponent(log.ComponentSession),
		now:    time.Now,
	}
}

// Start stores a new session for cred and sets its cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, user core.User, cred api.Credentials) (Session, error) {
	s := New(cred.Token, user, m.ttl, m.now())
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.InfoContext(ctx, "Session started",
		log.FieldUserID, user.ID,
		log.FieldSessionID, shortID(s.ID))
	return s, nil
}

// Load returns the session named by the request cookie.
func (m *Manager) Load(r *http.Request) (Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Session{}, ErrNotFound
	}
	s, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		return Session{}, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(r.Context(), s.ID)
		return Session{}, ErrExpired
	}
	return s, nil
}

// End deletes the request's session, if any, and clears the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if err := m.store.Delete(r.Context(), c.Value); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.WarnContext(r.Context(), "Failed to delete session",
				log.FieldSessionID, shortID(c.Value),
				log.FieldError, err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// shortID keeps full session ids out of the logs.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
