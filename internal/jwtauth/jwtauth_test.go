package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	issuer, err := NewIssuer(Config{Secret: "test-secret"})
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(Config{})
	require.Error(t, err)
}

func TestTokenPairRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, jti, err := issuer.NewTokenPair()
	require.NoError(t, err)
	require.NotEmpty(t, jti)
	require.Equal(t, "bearer", pair.TokenType)

	access, err := issuer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "owner", access.Subject)
	require.Equal(t, TokenUseAccess, access.Use)
	require.Empty(t, access.ID)

	refresh, err := issuer.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, jti, refresh.ID)
	require.Equal(t, TokenUseRefresh, refresh.Use)
}

func TestVerifyRejectsWrongUse(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, _, err := issuer.NewTokenPair()
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrWrongTokenUse)
	_, err = issuer.VerifyRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer, err := NewIssuer(Config{Secret: "test-secret", AccessTTL: -time.Minute})
	require.NoError(t, err)
	pair, _, err := issuer.NewTokenPair()
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, _, err := issuer.NewTokenPair()
	require.NoError(t, err)

	other, err := NewIssuer(Config{Secret: "other-secret"})
	require.NoError(t, err)
	_, err = other.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessTokenTTLWithoutExpiration(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.AccessTokenTTL(-1)
	require.NoError(t, err)
	claims, err := issuer.VerifyAccess(token)
	require.NoError(t, err)
	require.Nil(t, claims.ExpiresAt)
}

func TestRefreshStoreRotation(t *testing.T) {
	store := NewRefreshStore()
	store.Add("a")
	require.True(t, store.IsValid("a"))

	require.NoError(t, store.Rotate("a", "b"))
	require.False(t, store.IsValid("a"))
	require.True(t, store.IsValid("b"))

	// A replayed rotation of the already-used jti fails.
	require.Error(t, store.Rotate("a", "c"))

	store.Revoke("b")
	require.False(t, store.IsValid("b"))
}

func TestLoginLimiterLockout(t *testing.T) {
	now := time.Now()
	limiter := NewLoginLimiter(3, time.Minute, 15*time.Minute)
	limiter.now = func() time.Time { return now }

	require.False(t, limiter.IsLocked())
	limiter.RecordFailure()
	limiter.RecordFailure()
	require.False(t, limiter.IsLocked())
	limiter.RecordFailure()
	require.True(t, limiter.IsLocked())

	// Lockout expires after the configured duration.
	now = now.Add(15*time.Minute + time.Second)
	require.False(t, limiter.IsLocked())

	limiter.RecordFailure()
	require.False(t, limiter.IsLocked())
}

func TestLoginLimiterWindowPruning(t *testing.T) {
	now := time.Now()
	limiter := NewLoginLimiter(3, time.Minute, 15*time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.RecordFailure()
	limiter.RecordFailure()
	// Old failures age out of the window before the third one arrives.
	now = now.Add(2 * time.Minute)
	limiter.RecordFailure()
	require.False(t, limiter.IsLocked())
}

func TestLoginLimiterReset(t *testing.T) {
	limiter := NewLoginLimiter(1, time.Minute, 15*time.Minute)
	limiter.RecordFailure()
	require.True(t, limiter.IsLocked())
	limiter.Reset()
	require.False(t, limiter.IsLocked())
}
