package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	h := NewHandler(Config{})

	ts := httptest.NewServer(h)
	defer ts.Close()

	res, err := http.Get(ts.URL)
	require.NoError(t, err)
	require.Equal(t, res.StatusCode, http.StatusOK)
	defer res.Body.Close()

	require.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
	require.NotContains(t, body, "version")
}

func TestHealthHandlerShowVersion(t *testing.T) {
	h := NewHandler(Config{ShowVersion: true})

	ts := httptest.NewServer(h)
	defer ts.Close()

	res, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Contains(t, body, "version")
}
