package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/JongoDB/arc4de/internal/origin"
)

var validLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "none"}

// Validate validates config and returns error if problems found.
func (c Config) Validate() error {
	if !slices.Contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http_server.port: %d", c.HTTP.Port)
	}

	if c.Auth.Password == "" {
		return errors.New("auth.password is required")
	}
	if c.Auth.TokenHMACSecretKey == "" {
		return errors.New("auth.token_hmac_secret_key is required")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("auth.access_token_ttl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return errors.New("auth.refresh_token_ttl must exceed auth.access_token_ttl")
	}

	if c.Session.Width <= 0 || c.Session.Height <= 0 {
		return fmt.Errorf("invalid session size %dx%d", c.Session.Width, c.Session.Height)
	}
	if c.Session.TTL > 0 && c.Session.CleanupInterval <= 0 {
		return errors.New("session.cleanup_interval must be positive when session.ttl is set")
	}

	if c.WebSocket.AuthTimeout <= 0 {
		return errors.New("websocket.auth_timeout must be positive")
	}
	if c.WebSocket.MessageSizeLimit <= 0 {
		return errors.New("websocket.message_size_limit must be positive")
	}

	if _, err := origin.NewChecker(c.Client.AllowedOrigins); err != nil {
		return fmt.Errorf("in client.allowed_origins: %w", err)
	}

	return nil
}
