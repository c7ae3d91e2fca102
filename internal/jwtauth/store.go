package jwtauth

import (
	"errors"
	"sync"
	"time"
)

// RefreshStore tracks active refresh token jtis for rotation and revocation.
// In-memory: resets on restart, which is acceptable for the single-user
// deployment model.
type RefreshStore struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewRefreshStore() *RefreshStore {
	return &RefreshStore{active: make(map[string]struct{})}
}

// Add registers a refresh token jti as active.
func (s *RefreshStore) Add(jti string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jti] = struct{}{}
}

// IsValid reports whether a jti is currently active.
func (s *RefreshStore) IsValid(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[jti]
	return ok
}

// Revoke deactivates a jti, e.g. on logout.
func (s *RefreshStore) Revoke(jti string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jti)
}

// Rotate invalidates oldJti and activates newJti. Fails if oldJti is not
// active, which makes a replayed refresh token detectable.
func (s *RefreshStore) Rotate(oldJti, newJti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[oldJti]; !ok {
		return errors.New("refresh token is not active")
	}
	delete(s.active, oldJti)
	s.active[newJti] = struct{}{}
	return nil
}

// LoginLimiter is a sliding-window rate limiter for login attempts. After
// maxAttempts failures within window, logins lock out for the lockout
// duration.
type LoginLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	failures    []time.Time
	lockedUntil time.Time

	now func() time.Time
}

func NewLoginLimiter(maxAttempts int, window, lockout time.Duration) *LoginLimiter {
	return &LoginLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}
}

// IsLocked reports whether logins are currently locked out. An expired
// lockout resets all state.
func (l *LoginLimiter) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockedUntil.IsZero() {
		return false
	}
	if l.now().Before(l.lockedUntil) {
		return true
	}
	l.lockedUntil = time.Time{}
	l.failures = nil
	return false
}

// RecordFailure notes a failed login attempt and may trigger a lockout.
func (l *LoginLimiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.failures[:0]
	for _, t := range l.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.failures = append(kept, now)
	if len(l.failures) >= l.maxAttempts {
		l.lockedUntil = now.Add(l.lockout)
	}
}

// Reset clears all limiter state, called after a successful login.
func (l *LoginLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = nil
	l.lockedUntil = time.Time{}
}
