// Package health serves the liveness endpoint.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/JongoDB/arc4de/internal/build"
)

// Config of health check handler.
type Config struct {
	// ShowVersion includes the server version in the response.
	ShowVersion bool
}

// Handler handles health endpoint.
type Handler struct {
	config Config
}

// NewHandler creates new Handler.
func NewHandler(c Config) *Handler {
	return &Handler{config: c}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]string{"status": "ok"}
	if h.config.ShowVersion {
		resp["version"] = build.Version
	}
	_ = json.NewEncoder(w).Encode(resp)
}
