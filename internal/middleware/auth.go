package middleware

import (
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer access token.
type TokenVerifier func(token string) error

// BearerAuth middleware authorizes requests using a JWT access token from
// the Authorization header (Authorization: Bearer <TOKEN>). Requests with
// a missing, malformed or invalid token get a 401 response.
type BearerAuth struct {
	verify TokenVerifier
}

func NewBearerAuth(verify TokenVerifier) *BearerAuth {
	return &BearerAuth{verify: verify}
}

func (a *BearerAuth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w)
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(w)
			return
		}
		if err := a.verify(parts[1]); err != nil {
			unauthorized(w)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
}
