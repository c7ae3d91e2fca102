// Package jwtauth issues and verifies the HMAC SHA-256 access/refresh token
// pairs protecting the HTTP API and the terminal socket. Access tokens are
// short-lived, refresh tokens rotate: every refresh invalidates the previous
// refresh token via its jti.
package jwtauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cristalhq/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenUseAccess marks tokens accepted by API and socket auth.
	TokenUseAccess = "access"
	// TokenUseRefresh marks tokens accepted only by the refresh endpoint.
	TokenUseRefresh = "refresh"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrWrongTokenUse = errors.New("wrong token use")
)

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Claims carried by both token kinds. jti is set on refresh tokens only.
type Claims struct {
	jwt.RegisteredClaims
	Use string `json:"use"`
}

// Config for an Issuer.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer creates and verifies token pairs with a single HMAC secret.
type Issuer struct {
	signer     *jwt.HSAlg
	verifier   *jwt.HSAlg
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(c Config) (*Issuer, error) {
	if c.Secret == "" {
		return nil, errors.New("no token HMAC secret key set")
	}
	if c.AccessTTL == 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	signer, err := jwt.NewSignerHS(jwt.HS256, []byte(c.Secret))
	if err != nil {
		return nil, fmt.Errorf("error creating HMAC signer: %w", err)
	}
	verifier, err := jwt.NewVerifierHS(jwt.HS256, []byte(c.Secret))
	if err != nil {
		return nil, fmt.Errorf("error creating HMAC verifier: %w", err)
	}
	return &Issuer{
		signer:     signer,
		verifier:   verifier,
		accessTTL:  c.AccessTTL,
		refreshTTL: c.RefreshTTL,
	}, nil
}

// NewTokenPair builds a fresh access/refresh pair. The returned jti
// identifies the refresh token for store registration.
func (i *Issuer) NewTokenPair() (TokenPair, string, error) {
	now := time.Now()
	builder := jwt.NewBuilder(i.signer)

	access, err := builder.Build(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		Use: TokenUseAccess,
	})
	if err != nil {
		return TokenPair{}, "", err
	}

	jti := uuid.NewString()
	refresh, err := builder.Build(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner",
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
		Use: TokenUseRefresh,
	})
	if err != nil {
		return TokenPair{}, "", err
	}

	return TokenPair{
		AccessToken:  access.String(),
		RefreshToken: refresh.String(),
		TokenType:    "bearer",
	}, jti, nil
}

// AccessTokenTTL builds a standalone access token with an explicit TTL,
// used by the gentoken CLI command. ttl <= 0 means no expiration.
func (i *Issuer) AccessTokenTTL(ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "owner",
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		Use: TokenUseAccess,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	token, err := jwt.NewBuilder(i.signer).Build(claims)
	if err != nil {
		return "", err
	}
	return token.String(), nil
}

// VerifyAccess validates an access token.
func (i *Issuer) VerifyAccess(raw string) (*Claims, error) {
	return i.verify(raw, TokenUseAccess)
}

// VerifyRefresh validates a refresh token and requires a jti.
func (i *Issuer) VerifyRefresh(raw string) (*Claims, error) {
	claims, err := i.verify(raw, TokenUseRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) verify(raw, use string) (*Claims, error) {
	token, err := jwt.Parse([]byte(raw), i.verifier)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	if err := json.Unmarshal(token.Claims(), claims); err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.IsValidAt(time.Now()) {
		return nil, ErrInvalidToken
	}
	if claims.Use != use {
		return nil, ErrWrongTokenUse
	}
	return claims, nil
}
