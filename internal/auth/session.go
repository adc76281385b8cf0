package auth

import (
	"sync"
	"time"
)

// Identity is the signed-in state the editor consumes.
type Identity interface {
	CurrentUser() (User, bool)
	SignedIn() bool
	SignOut()
	Token() string
}

// Session is a client-side Identity holding a bearer token.
type Session struct {
	mu        sync.RWMutex
	user      User
	token     string
	expiresAt time.Time
	now       func() time.Time
	onSignOut []func()
}

// NewSession creates a signed-in session from a token, reading the user from
// its claims.
func NewSession(token string) (*Session, error) {
	user, exp, err := ParseUnverified(token)
	if err != nil {
		return nil, err
	}
	return &Session{user: user, token: token, expiresAt: exp, now: time.Now}, nil
}

// Anonymous returns a signed-out session.
func Anonymous() *Session {
	return &Session{now: time.Now}
}

func (s *Session) CurrentUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.signedInLocked() {
		return User{}, false
	}
	return s.user, true
}

func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedInLocked()
}

func (s *Session) signedInLocked() bool {
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.now().Before(s.expiresAt)
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.signedInLocked() {
		return ""
	}
	return s.token
}

// SignOut clears the session and runs OnSignOut callbacks once.
func (s *Session) SignOut() {
	s.mu.Lock()
	wasSignedIn := s.token != ""
	s.user = User{}
	s.token = ""
	s.expiresAt = time.Time{}
	callbacks := append([]func(){}, s.onSignOut...)
	s.mu.Unlock()

	if !wasSignedIn {
		return
	}
	for _, cb := range callbacks {
		cb()
	}
}

// OnSignOut registers a callback run when the session signs out.
func (s *Session) OnSignOut(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}
