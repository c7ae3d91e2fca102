// Package origin authorizes browser requests by their Origin header.
package origin

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Checker authorizes request origins. Same-host origins are always
// allowed, other origins must match one of the configured glob patterns.
type Checker struct {
	patterns []glob.Glob
}

func NewChecker(allowedOrigins []string) (*Checker, error) {
	var globs []glob.Glob
	for _, pattern := range allowedOrigins {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("malformed origin pattern: %w", err)
		}
		globs = append(globs, g)
	}
	return &Checker{patterns: globs}, nil
}

func (c *Checker) Check(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid request Origin %s", origin)
	}
	if strings.EqualFold(u.Host, r.Host) {
		return nil
	}

	host := strings.ToLower(u.Host)
	for _, pattern := range c.patterns {
		if pattern.Match(host) || pattern.Match(strings.ToLower(origin)) {
			return nil
		}
	}

	return fmt.Errorf("request Origin %s is not authorized", origin)
}
