// Package auth implements the dashboard password gate. A successful login
// issues a session cookie; the middleware resolves it into a Session carried
// on the request context.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apphttp "findash/internal/http"
)

// CookieName is the session cookie set on login
const CookieName = "findash_session"

// ErrInvalidPassword is returned for a wrong login password
var ErrInvalidPassword = errors.New("invalid password")

// Session is an authenticated browser session
type Session struct {
	Token   string    `json:"-"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

type contextKey struct{}

// WithSession returns ctx carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session attached by the middleware
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}

// Manager checks the password and tracks live sessions
type Manager struct {
	password string
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a gate for password. An empty password disables it.
func NewManager(password string, ttl time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		password: password,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("component", "auth").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Enabled reports whether a password is required
func (m *Manager) Enabled() bool {
	return m.password != ""
}

// Login checks password and starts a session
func (m *Manager) Login(password string) (*Session, error) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) != 1 {
		return nil, ErrInvalidPassword
	}

	now := m.now()
	s := &Session{
		Token:   uuid.NewString(),
		Created: now,
		Expires: now.Add(m.ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)
	m.sessions[s.Token] = s
	return s, nil
}

// Lookup returns the live session for token
func (m *Manager) Lookup(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, false
	}
	if !m.now().Before(s.Expires) {
		delete(m.sessions, token)
		return nil, false
	}
	return s, true
}

// Logout ends the session for token
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) pruneLocked(now time.Time) {
	for token, s := range m.sessions {
		if !now.Before(s.Expires) {
			delete(m.sessions, token)
		}
	}
}

// Middleware rejects requests without a live session. With the gate
// disabled every request passes.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil {
			apphttp.ErrorResponse(w, r, "login required", http.StatusUnauthorized)
			return
		}
		s, ok := m.Lookup(cookie.Value)
		if !ok {
			apphttp.ErrorResponse(w, r, "session expired", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RegisterRoutes mounts login, logout and session status
func (m *Manager) RegisterRoutes(r chi.Router) {
	r.Post("/login", m.handleLogin)
	r.Post("/logout", m.handleLogout)
	r.Get("/session", m.handleSession)
}

type loginRequest struct {
	Password string `json:"password"`
}

func (m *Manager) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !m.Enabled() {
		apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "gate": false})
		return
	}

	var req loginRequest
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apphttp.ErrorResponse(w, r, "invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		req.Password = r.FormValue("password")
	}

	s, err := m.Login(req.Password)
	if err != nil {
		m.log.Warn().Str("remote", r.RemoteAddr).Msg("failed login")
		apphttp.ErrorResponse(w, r, "Contraseña incorrecta", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.Expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	m.log.Info().Time("expires", s.Expires).Msg("session started")
	apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "expires": s.Expires})
}

func (m *Manager) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		m.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	apphttp.WriteJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

func (m *Manager) handleSession(w http.ResponseWriter, r *http.Request) {
	if !m.Enabled() {
		apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "gate": false})
		return
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		if s, ok := m.Lookup(cookie.Value); ok {
			apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"authenticated": true, "gate": true, "session": s})
			return
		}
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false, "gate": true})
}
