package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHandler() http.Handler {
	fn := func(rw http.ResponseWriter, req *http.Request) {}
	return http.HandlerFunc(fn)
}

func testVerify(token string) error {
	if token != "valid-token" {
		return errors.New("invalid token")
	}
	return nil
}

func TestBearerAuthMissingHeader(t *testing.T) {
	ts := httptest.NewServer(NewBearerAuth(testVerify).Middleware(testHandler()))
	defer ts.Close()

	res, err := http.Get(ts.URL)
	require.NoError(t, err)
	require.Equal(t, res.StatusCode, http.StatusUnauthorized)
	require.Equal(t, "Bearer", res.Header.Get("WWW-Authenticate"))
}

func TestBearerAuthMalformedHeader(t *testing.T) {
	ts := httptest.NewServer(NewBearerAuth(testVerify).Middleware(testHandler()))
	defer ts.Close()

	for _, header := range []string{"valid-token", "Basic valid-token", "Bearer a b"} {
		req, err := http.NewRequest("GET", ts.URL, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", header)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, res.StatusCode, http.StatusUnauthorized)
	}
}

func TestBearerAuthInvalidToken(t *testing.T) {
	ts := httptest.NewServer(NewBearerAuth(testVerify).Middleware(testHandler()))
	defer ts.Close()

	req, err := http.NewRequest("GET", ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer forged")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, res.StatusCode, http.StatusUnauthorized)
}

func TestBearerAuthValidToken(t *testing.T) {
	ts := httptest.NewServer(NewBearerAuth(testVerify).Middleware(testHandler()))
	defer ts.Close()

	for _, scheme := range []string{"Bearer", "bearer"} {
		req, err := http.NewRequest("GET", ts.URL, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", scheme+" valid-token")
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, res.StatusCode, http.StatusOK)
	}
}
